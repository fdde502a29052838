package teachers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
	"github.com/schoolgate/backend/pkg/utils"
)

// initialPasswordDigits is the length of the numeric one-time password
// handed back when a school registers a teacher.
const initialPasswordDigits = 6

// Roster is the teacher directory the handler works against. Satisfied by
// Repository.
type Roster interface {
	ForSchool(ctx context.Context, schoolID int64) ([]models.Teacher, error)
	ByEmail(ctx context.Context, email string) (*models.Teacher, error)
	Create(ctx context.Context, name, email, passwordHash, subject string, schoolID int64) (*models.Teacher, error)
	Link(ctx context.Context, teacherID, schoolID int64) error
	Unlink(ctx context.Context, teacherID, schoolID int64) error
}

// Handler serves teacher management for the authenticated school.
type Handler struct {
	roster Roster
	logger *zap.Logger
}

func NewHandler(roster Roster, logger *zap.Logger) *Handler {
	return &Handler{roster: roster, logger: logger}
}

// List returns the school's attached teachers.
func (h *Handler) List(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	list, err := h.roster.ForSchool(c.Request.Context(), schoolID)
	if err != nil {
		h.logger.Error("list teachers", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to list teachers")
		return
	}
	if list == nil {
		list = []models.Teacher{}
	}
	response.OK(c, list)
}

type createTeacherRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject"`
}

// createTeacherResponse carries the generated password exactly once; it is
// stored only as a hash.
type createTeacherResponse struct {
	Teacher  models.Teacher `json:"teacher"`
	Password string         `json:"password"`
}

// Create registers a teacher for the school. The account gets a generated
// numeric password to be passed on out of band.
func (h *Handler) Create(c *gin.Context) {
	schoolID := middleware.SchoolID(c)

	var in createTeacherRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	existing, err := h.roster.ByEmail(ctx, in.Email)
	if err != nil {
		h.logger.Error("check teacher email", zap.String("email", in.Email), zap.Error(err))
		response.Internal(c, "failed to create teacher")
		return
	}
	if existing != nil {
		response.Conflict(c, "email already registered; use the link flow instead")
		return
	}

	password := utils.RandomDigits(initialPasswordDigits)
	hash, err := utils.HashPassword(password)
	if err != nil {
		response.Internal(c, "failed to create teacher")
		return
	}

	t, err := h.roster.Create(ctx, in.Name, in.Email, hash, in.Subject, schoolID)
	if err != nil {
		h.logger.Error("create teacher", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to create teacher")
		return
	}
	response.Created(c, createTeacherResponse{Teacher: *t, Password: password})
}

// Search finds a teacher by exact email so a school can link an existing
// account. Returns data null when no account matches.
func (h *Handler) Search(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		response.BadRequest(c, "email query parameter is required")
		return
	}
	t, err := h.roster.ByEmail(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("search teacher", zap.String("email", email), zap.Error(err))
		response.Internal(c, "failed to search teachers")
		return
	}
	response.OK(c, t)
}

type linkTeacherRequest struct {
	TeacherID int64 `json:"teacher_id" binding:"required"`
}

// Link attaches an existing teacher account to the school.
func (h *Handler) Link(c *gin.Context) {
	schoolID := middleware.SchoolID(c)

	var in linkTeacherRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.roster.Link(c.Request.Context(), in.TeacherID, schoolID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "teacher not found")
			return
		}
		h.logger.Error("link teacher", zap.Int64("teacher_id", in.TeacherID), zap.Error(err))
		response.Internal(c, "failed to link teacher")
		return
	}
	response.OK(c, gin.H{"linked": true})
}

// Unlink detaches a teacher from the school.
func (h *Handler) Unlink(c *gin.Context) {
	schoolID := middleware.SchoolID(c)

	teacherID, err := strconv.ParseInt(c.Param("teacherId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid teacher id")
		return
	}
	if err := h.roster.Unlink(c.Request.Context(), teacherID, schoolID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "teacher not found at this school")
			return
		}
		h.logger.Error("unlink teacher", zap.Int64("teacher_id", teacherID), zap.Error(err))
		response.Internal(c, "failed to unlink teacher")
		return
	}
	response.OK(c, gin.H{"unlinked": true})
}
