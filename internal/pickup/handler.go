package pickup

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
)

const guardianLimit = 20

// Handler serves pickup requests on both sides of the gate.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type createRequest struct {
	StudentID int64 `json:"student_id" binding:"required"`
}

// Create opens a pickup request for one of the guardian's linked students.
func (h *Handler) Create(c *gin.Context) {
	guardianID := middleware.GuardianID(c)
	schoolID, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid school id")
		return
	}

	var in createRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	linked, err := h.repo.LinkedToGuardian(ctx, schoolID, in.StudentID, guardianID)
	if err != nil {
		h.logger.Error("pickup access check", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to create pickup request")
		return
	}
	if !linked {
		response.Forbidden(c, "student is not linked to this guardian")
		return
	}

	p := &models.PickupRequest{StudentID: in.StudentID, GuardianID: guardianID}
	if err := h.repo.Create(ctx, schoolID, p); err != nil {
		h.logger.Error("create pickup request", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to create pickup request")
		return
	}
	response.Created(c, p)
}

// Mine returns the guardian's recent requests in one school.
func (h *Handler) Mine(c *gin.Context) {
	guardianID := middleware.GuardianID(c)
	schoolID, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid school id")
		return
	}
	list, err := h.repo.ForGuardian(c.Request.Context(), schoolID, guardianID, guardianLimit)
	if err != nil {
		h.logger.Error("guardian pickups", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to load pickup requests")
		return
	}
	if list == nil {
		list = []models.PickupRequest{}
	}
	response.OK(c, list)
}

// Queue returns the authenticated school's open requests, oldest first.
func (h *Handler) Queue(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	list, err := h.repo.Queue(c.Request.Context(), schoolID)
	if err != nil {
		h.logger.Error("pickup queue", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to load pickup queue")
		return
	}
	if list == nil {
		list = []models.PickupRequest{}
	}
	response.OK(c, list)
}

type updateRequest struct {
	Status string `json:"status" binding:"required"`
}

// Update moves one request to called or completed.
func (h *Handler) Update(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	requestID, err := strconv.ParseInt(c.Param("requestId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}

	var in updateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	status := models.PickupStatus(in.Status)
	if status != models.PickupCalled && status != models.PickupCompleted {
		response.BadRequest(c, "status must be called or completed")
		return
	}

	if err := h.repo.UpdateStatus(c.Request.Context(), schoolID, requestID, status); err != nil {
		if IsNotFound(err) {
			response.NotFound(c, "pickup request not found")
			return
		}
		h.logger.Error("update pickup request", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to update pickup request")
		return
	}
	response.OK(c, gin.H{"updated": true})
}
