package events

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
	"github.com/schoolgate/backend/pkg/storage"
)

const dateLayout = "2006-01-02"

// Handler serves event management for schools and the aggregated feed plus
// participation confirmation for guardians.
type Handler struct {
	repo    *Repository
	service *Service
	s3      *storage.S3
	logger  *zap.Logger
}

func NewHandler(repo *Repository, service *Service, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, service: service, s3: s3, logger: logger}
}

type eventRequest struct {
	Title           string   `json:"title" binding:"required"`
	Description     string   `json:"description"`
	EventDate       string   `json:"event_date"`
	Cost            *float64 `json:"cost"`
	ClassName       string   `json:"class_name"`
	PaymentKey      string   `json:"payment_key"`
	PaymentDeadline string   `json:"payment_deadline"`
	Kind            string   `json:"kind"`
}

func (in *eventRequest) toModel() (*models.SchoolEvent, error) {
	e := &models.SchoolEvent{
		Title:       in.Title,
		Description: in.Description,
		Cost:        in.Cost,
		ClassName:   in.ClassName,
		PaymentKey:  in.PaymentKey,
		Kind:        models.EventKind(in.Kind),
	}
	if e.Kind == "" {
		e.Kind = models.EventGeneric
	}
	if in.EventDate != "" {
		t, err := time.Parse(dateLayout, in.EventDate)
		if err != nil {
			return nil, errors.New("event_date must be YYYY-MM-DD")
		}
		e.EventDate = &t
	}
	if in.PaymentDeadline != "" {
		t, err := time.Parse(dateLayout, in.PaymentDeadline)
		if err != nil {
			return nil, errors.New("payment_deadline must be YYYY-MM-DD")
		}
		e.PaymentDeadline = &t
	}
	return e, nil
}

// Create adds an event to the authenticated school.
func (h *Handler) Create(c *gin.Context) {
	schoolID := middleware.SchoolID(c)

	var in eventRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	e, err := in.toModel()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.Create(c.Request.Context(), schoolID, e); err != nil {
		h.logger.Error("create event", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List returns every event of the authenticated school.
func (h *Handler) List(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	list, err := h.repo.EventsForSchool(c.Request.Context(), schoolID)
	if err != nil {
		h.logger.Error("list events", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	if list == nil {
		list = []models.SchoolEvent{}
	}
	response.OK(c, list)
}

// Update overwrites one event of the authenticated school.
func (h *Handler) Update(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}

	var in eventRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	e, err := in.toModel()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	e.ID = eventID
	if err := h.repo.Update(c.Request.Context(), schoolID, e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("update event", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// Delete removes one event of the authenticated school.
func (h *Handler) Delete(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), schoolID, eventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("delete event", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to delete event")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

// Participants lists the participation state of one event.
func (h *Handler) Participants(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.repo.Participants(c.Request.Context(), schoolID, eventID)
	if err != nil {
		h.logger.Error("event participants", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to list participants")
		return
	}
	if list == nil {
		list = []models.EventParticipation{}
	}
	response.OK(c, list)
}

// SetParticipation lets the school record or correct a student's answer,
// for confirmations arriving on paper.
func (h *Handler) SetParticipation(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}

	var in struct {
		StudentID int64  `json:"student_id" binding:"required"`
		Status    string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	status := models.ParticipationStatus(in.Status)
	if status != models.ParticipationPending && status != models.ParticipationConfirmed {
		response.BadRequest(c, "status must be pending or confirmed")
		return
	}

	p := &models.EventParticipation{EventID: eventID, StudentID: in.StudentID, Status: status}
	if err := h.repo.UpsertParticipation(c.Request.Context(), schoolID, p); err != nil {
		h.logger.Error("set participation", zap.Int64("event_id", eventID), zap.Error(err))
		response.Internal(c, "failed to set participation")
		return
	}
	response.OK(c, p)
}

// ReceiptDownloadURL returns a short-lived presigned link to one student's
// payment receipt. The receipts bucket is private; clients never get the
// raw object URL.
func (h *Handler) ReceiptDownloadURL(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "file storage is not configured")
		return
	}

	ctx := c.Request.Context()
	p, err := h.repo.Participation(ctx, schoolID, eventID, studentID)
	if err != nil {
		h.logger.Error("load participation", zap.Int64("event_id", eventID), zap.Error(err))
		response.Internal(c, "failed to load participation")
		return
	}
	if p == nil || p.ReceiptURL == "" {
		response.NotFound(c, "no receipt on file")
		return
	}
	key := storage.KeyFromURL(p.ReceiptURL)
	if key == "" {
		response.NotFound(c, "no receipt on file")
		return
	}

	url, err := h.s3.GeneratePresignedDownloadURL(ctx, h.s3.ReceiptsBucket(), key, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign receipt download", zap.Int64("event_id", eventID), zap.Error(err))
		response.Internal(c, "failed to generate download link")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(h.s3.PresignExpire().Seconds())})
}

// Feed returns the authenticated guardian's aggregated event feed.
func (h *Handler) Feed(c *gin.Context) {
	guardianID := middleware.GuardianID(c)
	list, err := h.service.ForGuardian(c.Request.Context(), guardianID)
	if err != nil {
		h.logger.Error("guardian event feed", zap.Int64("guardian_id", guardianID), zap.Error(err))
		response.Internal(c, "failed to load events")
		return
	}
	if list == nil {
		list = []models.SchoolEvent{}
	}
	response.OK(c, list)
}

// Confirm records a guardian's participation answer for one student,
// uploading the payment receipt when one is attached. Repeating the call
// updates the existing answer.
func (h *Handler) Confirm(c *gin.Context) {
	guardianID := middleware.GuardianID(c)
	schoolID, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid school id")
		return
	}
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	studentID, err := strconv.ParseInt(c.PostForm("student_id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student_id")
		return
	}

	ctx := c.Request.Context()
	linked, err := h.repo.LinkedToGuardian(ctx, schoolID, studentID, guardianID)
	if err != nil {
		h.logger.Error("confirm participation", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to confirm participation")
		return
	}
	if !linked {
		response.Forbidden(c, "student is not linked to this guardian")
		return
	}

	event, err := h.repo.Event(ctx, schoolID, eventID)
	if err != nil {
		h.logger.Error("confirm participation", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to confirm participation")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}

	receiptURL := ""
	if file, err := c.FormFile("receipt"); err == nil {
		if h.s3 == nil {
			response.ServiceUnavailable(c, "file storage is not configured")
			return
		}
		// A replaced receipt leaves its old object orphaned; remove it.
		if prev, err := h.repo.Participation(ctx, schoolID, eventID, studentID); err == nil && prev != nil && prev.ReceiptURL != "" {
			if key := storage.KeyFromURL(prev.ReceiptURL); key != "" {
				if err := h.s3.DeleteObject(ctx, h.s3.ReceiptsBucket(), key); err != nil {
					h.logger.Warn("delete old receipt", zap.Int64("event_id", eventID), zap.Error(err))
				}
			}
		}
		if file.Size > storage.MaxUploadSize {
			response.BadRequest(c, "receipt exceeds the upload size limit")
			return
		}
		contentType := file.Header.Get("Content-Type")
		if contentType == "" {
			contentType = storage.ContentTypeForFilename(file.Filename)
		}
		if !storage.ValidateUploadType(contentType, file.Filename) {
			response.BadRequest(c, "unsupported receipt file type")
			return
		}
		src, err := file.Open()
		if err != nil {
			response.BadRequest(c, "failed to read receipt")
			return
		}
		defer src.Close()

		receiptURL, err = h.s3.Upload(ctx, h.s3.ReceiptsBucket(),
			storage.ReceiptKey(schoolID, eventID, file.Filename), contentType, src, file.Size)
		if err != nil {
			h.logger.Error("upload receipt", zap.Int64("event_id", eventID), zap.Error(err))
			response.Internal(c, "failed to store receipt")
			return
		}
	}

	p := &models.EventParticipation{
		EventID:    eventID,
		StudentID:  studentID,
		Status:     models.ParticipationConfirmed,
		ReceiptURL: receiptURL,
	}
	if err := h.repo.UpsertParticipation(ctx, schoolID, p); err != nil {
		h.logger.Error("confirm participation", zap.Int64("event_id", eventID), zap.Error(err))
		response.Internal(c, "failed to confirm participation")
		return
	}
	response.OK(c, p)
}
