package schools

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
)

// Handler serves the school directory and per-school settings.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List returns every registered school. Guardians use this to pick a school
// before linking students; the directory carries no tenant data.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.Schools(c.Request.Context())
	if err != nil {
		h.logger.Error("list schools", zap.Error(err))
		response.Internal(c, "failed to list schools")
		return
	}
	if list == nil {
		list = []models.School{}
	}
	response.OK(c, list)
}

// Get returns one school by id.
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid school id")
		return
	}
	s, err := h.repo.School(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get school", zap.Int64("school_id", id), zap.Error(err))
		response.Internal(c, "failed to load school")
		return
	}
	if s == nil {
		response.NotFound(c, "school not found")
		return
	}
	response.OK(c, s)
}

// Search filters the directory by name substring.
func (h *Handler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.BadRequest(c, "missing query parameter q")
		return
	}
	list, err := h.repo.Search(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("search schools", zap.String("q", q), zap.Error(err))
		response.Internal(c, "failed to search schools")
		return
	}
	if list == nil {
		list = []models.School{}
	}
	response.OK(c, list)
}

// Settings returns the guardian-visible profile of one school.
func (h *Handler) Settings(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid school id")
		return
	}
	s, err := h.repo.School(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("school settings", zap.Int64("school_id", id), zap.Error(err))
		response.Internal(c, "failed to load school")
		return
	}
	if s == nil {
		response.NotFound(c, "school not found")
		return
	}
	response.OK(c, models.SchoolSettings{
		Address:   s.Address,
		Number:    s.Number,
		ZipCode:   s.ZipCode,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
	})
}

// UpdateSettings overwrites the authenticated school's own profile.
func (h *Handler) UpdateSettings(c *gin.Context) {
	schoolID := middleware.SchoolID(c)

	var in models.SchoolSettings
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.repo.UpdateSettings(c.Request.Context(), schoolID, in); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "school not found")
			return
		}
		h.logger.Error("update school settings", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to update settings")
		return
	}
	response.OK(c, gin.H{"updated": true})
}
