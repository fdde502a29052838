package attendance

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/auth"
	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/internal/schools"
	"github.com/schoolgate/backend/pkg/queue"
	"github.com/schoolgate/backend/pkg/response"
)

const recentLimit = 50

// Handler serves attendance recording for schools and the per-student
// ledger for guardians.
type Handler struct {
	repo   *Repository
	school *schools.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

func NewHandler(repo *Repository, school *schools.Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, school: school, queue: q, logger: logger}
}

type recordRequest struct {
	StudentID int64  `json:"student_id" binding:"required"`
	Kind      string `json:"kind" binding:"required"`
}

// Record registers one gate passage with the kind in the body. The passage
// lands in the ledger and the access event log, and a phone alert job is
// queued for the student's guardians. Queue trouble never fails the
// recording.
func (h *Handler) Record(c *gin.Context) {
	var in recordRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	kind := models.AccessKind(in.Kind)
	if !kind.Valid() {
		response.BadRequest(c, "kind must be arrival or departure")
		return
	}
	h.record(c, in.StudentID, kind)
}

// Arrival records an arrival passage; the gate device only sends the
// student id.
func (h *Handler) Arrival(c *gin.Context) {
	h.recordFixed(c, models.AccessArrival)
}

// Departure records a departure passage.
func (h *Handler) Departure(c *gin.Context) {
	h.recordFixed(c, models.AccessDeparture)
}

func (h *Handler) recordFixed(c *gin.Context, kind models.AccessKind) {
	var in struct {
		StudentID int64 `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	h.record(c, in.StudentID, kind)
}

func (h *Handler) record(c *gin.Context, studentID int64, kind models.AccessKind) {
	schoolID := middleware.SchoolID(c)
	ctx := c.Request.Context()
	ev, phone, err := h.repo.Record(ctx, schoolID, studentID, kind)
	if err != nil {
		if IsUnknownStudent(err) {
			response.NotFound(c, "student not found")
			return
		}
		h.logger.Error("record attendance", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to record attendance")
		return
	}

	if h.queue != nil && phone != "" {
		schoolName := ""
		if s, err := h.school.School(ctx, schoolID); err == nil && s != nil {
			schoolName = s.Name
		}
		err := h.queue.EnqueueGuardianAlert(ctx, queue.GuardianAlertPayload{
			SchoolID:    schoolID,
			SchoolName:  schoolName,
			StudentID:   ev.StudentID,
			StudentName: ev.StudentName,
			Phone:       phone,
			Kind:        string(ev.Kind),
			RecordedAt:  ev.RecordedAt,
		})
		if err != nil {
			h.logger.Warn("enqueue guardian alert", zap.Int64("student_id", ev.StudentID), zap.Error(err))
		}
	}
	response.Created(c, ev)
}

// Recent returns the authenticated school's latest ledger rows.
func (h *Handler) Recent(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	list, err := h.repo.Recent(c.Request.Context(), schoolID, recentLimit)
	if err != nil {
		h.logger.Error("recent attendance", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to load attendance")
		return
	}
	if list == nil {
		list = []models.AttendanceRecord{}
	}
	response.OK(c, list)
}

// Month returns one student's ledger for a calendar month. Schools read
// their own students; guardians read students linked to them.
func (h *Handler) Month(c *gin.Context) {
	schoolID, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		schoolID = middleware.SchoolID(c)
	}
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}

	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()
	if y, err := strconv.Atoi(c.Query("year")); err == nil {
		year = y
	}
	if m, err := strconv.Atoi(c.Query("month")); err == nil && m >= 1 && m <= 12 {
		month = time.Month(m)
	}

	ctx := c.Request.Context()
	if role, _ := c.Get(middleware.ContextUserRole); role == auth.RoleGuardian {
		guardianID := middleware.GuardianID(c)
		linked, err := h.repo.LinkedToGuardian(ctx, schoolID, studentID, guardianID)
		if err != nil {
			h.logger.Error("attendance month", zap.Int64("school_id", schoolID), zap.Error(err))
			response.Internal(c, "failed to load attendance")
			return
		}
		if !linked {
			response.Forbidden(c, "student is not linked to this guardian")
			return
		}
	}

	list, err := h.repo.Month(ctx, schoolID, studentID, year, month)
	if err != nil {
		h.logger.Error("attendance month", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to load attendance")
		return
	}
	if list == nil {
		list = []models.AttendanceRecord{}
	}
	response.OK(c, list)
}
