package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolgate/backend/pkg/response"
)

// RequireRole gates a route group to the given roles. It runs after JWT so
// the role claim is already on the context; a guardian token hitting a
// school route gets 403, not 404, so clients can tell auth from routing.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if role == "" {
			response.Unauthorized(c, "missing identity")
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "role not allowed here")
			c.Abort()
			return
		}
		c.Next()
	}
}
