package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
	"github.com/schoolgate/backend/pkg/utils"
)

// GuardianRegisterRequest is the body for POST /auth/guardian/register.
type GuardianRegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
}

// LoginRequest is the body for the login endpoints.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SchoolRegisterRequest is the body for POST /auth/school/register.
type SchoolRegisterRequest struct {
	Name      string `json:"name" binding:"required"`
	AdminName string `json:"admin_name"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
}

// GuardianTokenResponse is the guardian auth response with JWT.
type GuardianTokenResponse struct {
	Token    string          `json:"token"`
	Guardian models.Guardian `json:"guardian"`
}

// SchoolTokenResponse is the school auth response with JWT.
type SchoolTokenResponse struct {
	Token  string        `json:"token"`
	School models.School `json:"school"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// RegisterGuardian handles POST /auth/guardian/register.
func (h *Handler) RegisterGuardian(c *gin.Context) {
	var req GuardianRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	existing, err := h.repo.GuardianByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Internal(c, "failed to check email")
		return
	}
	if existing != nil {
		response.Conflict(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	g, err := h.repo.CreateGuardian(c.Request.Context(), req.Name, req.Email, hash, req.Phone)
	if err != nil {
		response.Internal(c, "failed to create guardian")
		return
	}

	token, err := h.jwt.Generate(g.ID, g.Email, RoleGuardian, 0)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, GuardianTokenResponse{Token: token, Guardian: *g})
}

// LoginGuardian handles POST /auth/guardian/login.
func (h *Handler) LoginGuardian(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	g, err := h.repo.GuardianByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Internal(c, "login failed")
		return
	}
	if g == nil || !utils.CheckPassword(req.Password, g.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(g.ID, g.Email, RoleGuardian, 0)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, GuardianTokenResponse{Token: token, Guardian: *g})
}

// RegisterSchool handles POST /auth/school/register. The school's
// isolated database is provisioned lazily on first tenant open.
func (h *Handler) RegisterSchool(c *gin.Context) {
	var req SchoolRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	existing, err := h.repo.SchoolByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Internal(c, "failed to check email")
		return
	}
	if existing != nil {
		response.Conflict(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	s, err := h.repo.CreateSchool(c.Request.Context(), req.Name, req.AdminName, req.Email, hash)
	if err != nil {
		response.Internal(c, "failed to create school")
		return
	}
	h.logger.Info("school registered", zap.Int64("school_id", s.ID), zap.String("name", s.Name))

	token, err := h.jwt.Generate(s.ID, s.Email, RoleSchool, s.ID)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, SchoolTokenResponse{Token: token, School: *s})
}

// AdminTokenResponse is the admin auth response with JWT.
type AdminTokenResponse struct {
	Token string       `json:"token"`
	Admin models.Admin `json:"admin"`
}

// LoginAdmin handles POST /auth/admin/login. There is no admin
// registration; accounts are seeded in the database.
func (h *Handler) LoginAdmin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	a, err := h.repo.AdminByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Internal(c, "login failed")
		return
	}
	if a == nil || !utils.CheckPassword(req.Password, a.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(a.ID, a.Email, RoleAdmin, 0)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, AdminTokenResponse{Token: token, Admin: *a})
}

// LoginSchool handles POST /auth/school/login.
func (h *Handler) LoginSchool(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	s, err := h.repo.SchoolByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Internal(c, "login failed")
		return
	}
	if s == nil || !utils.CheckPassword(req.Password, s.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(s.ID, s.Email, RoleSchool, s.ID)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, SchoolTokenResponse{Token: token, School: *s})
}
