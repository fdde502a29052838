package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schoolgate/backend/internal/auth"
	"github.com/schoolgate/backend/pkg/response"
)

const (
	// ContextUserID is the key for the authenticated identity id (int64).
	ContextUserID = "user_id"
	// ContextUserRole is the key for the identity role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for the identity email in gin context.
	ContextUserEmail = "user_email"
	// ContextSchoolID is the key for the tenant id of school-role tokens (int64).
	ContextSchoolID = "school_id"
)

// JWT returns a middleware that validates a JWT and sets identity claims in
// context. The token is read from the Authorization header, or from the
// "token" query parameter for EventSource/WebSocket clients that cannot set
// headers.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, "invalid authorization header")
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			token = c.Query("token")
		}
		if token == "" {
			response.Unauthorized(c, "missing token")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextSchoolID, claims.SchoolID)
		c.Next()
	}
}

// GuardianID returns the authenticated guardian id from context.
func GuardianID(c *gin.Context) int64 {
	return c.MustGet(ContextUserID).(int64)
}

// SchoolID returns the authenticated school's tenant id from context.
func SchoolID(c *gin.Context) int64 {
	return c.MustGet(ContextSchoolID).(int64)
}

// Identity returns the authenticated id and role, for surfaces shared by
// more than one role.
func Identity(c *gin.Context) (int64, string) {
	return c.MustGet(ContextUserID).(int64), c.GetString(ContextUserRole)
}
