package notifications

import (
	"context"
	"errors"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/aggregate"
	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
)

// historyLimit caps the rows fetched per tenant, not the merged result.
const historyLimit = 20

const (
	streamKindNotifications = "notifications"
	streamKindEvents        = "events"
)

// Handler serves the guardian notification surface: the one-shot poll, the
// delivery history, and the two SSE streams.
type Handler struct {
	engine    *Engine
	repo      *Repository
	guardians aggregate.GuardianFinder
	schools   aggregate.SchoolLister
	registry  *StreamRegistry
	logger    *zap.Logger
}

func NewHandler(engine *Engine, repo *Repository, guardians aggregate.GuardianFinder, schools aggregate.SchoolLister, registry *StreamRegistry, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, repo: repo, guardians: guardians, schools: schools, registry: registry, logger: logger}
}

// Check returns at most one pending access event, already marked delivered,
// or null when nothing is pending.
func (h *Handler) Check(c *gin.Context) {
	guardianID := middleware.GuardianID(c)
	ev, err := h.engine.CheckOne(c.Request.Context(), guardianID)
	if err != nil {
		if errors.Is(err, aggregate.ErrUnknownGuardian) {
			response.NotFound(c, "guardian not found")
			return
		}
		h.logger.Error("check notifications", zap.Int64("guardian_id", guardianID), zap.Error(err))
		response.Internal(c, "failed to check notifications")
		return
	}
	response.OK(c, ev)
}

// History returns the guardian's access events across every school, newest
// first, delivered or not.
func (h *Handler) History(c *gin.Context) {
	guardianID := middleware.GuardianID(c)

	merged, err := aggregate.AcrossTenants(c.Request.Context(), h.guardians, h.schools, guardianID,
		func(ctx context.Context, school models.School) ([]models.AccessEvent, error) {
			list, err := h.repo.History(ctx, school.ID, guardianID, historyLimit)
			if err != nil {
				return nil, err
			}
			for i := range list {
				list[i].SchoolID = school.ID
				list[i].SchoolName = school.Name
			}
			return list, nil
		}, h.logger)
	if err != nil {
		if errors.Is(err, aggregate.ErrUnknownGuardian) {
			response.NotFound(c, "guardian not found")
			return
		}
		h.logger.Error("notification history", zap.Int64("guardian_id", guardianID), zap.Error(err))
		response.Internal(c, "failed to load history")
		return
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RecordedAt.After(merged[j].RecordedAt)
	})
	if merged == nil {
		merged = []models.AccessEvent{}
	}
	response.OK(c, merged)
}

// StreamNotifications holds the connection open and pushes access events as
// they are recorded, until the client disconnects.
func (h *Handler) StreamNotifications(c *gin.Context) {
	guardianID := middleware.GuardianID(c)
	h.setStreamHeaders(c)

	if err := writeSSE(c.Writer, c.Writer, connectedMessage{Type: "connected"}); err != nil {
		return
	}

	h.registry.Add(streamKindNotifications, guardianID)
	defer h.registry.Remove(streamKindNotifications, guardianID)
	h.logger.Info("notification stream opened", zap.Int64("guardian_id", guardianID))

	err := h.engine.StreamNotifications(c.Request.Context(), guardianID, func(ev models.AccessEvent) error {
		return writeSSE(c.Writer, c.Writer, notificationMessage{Type: "notification", Event: ev})
	})
	h.logger.Info("notification stream closed", zap.Int64("guardian_id", guardianID), zap.Error(err))
}

// StreamEvents holds the connection open and pushes the guardian's event
// feed whenever it changes.
func (h *Handler) StreamEvents(c *gin.Context) {
	guardianID := middleware.GuardianID(c)
	h.setStreamHeaders(c)

	if err := writeSSE(c.Writer, c.Writer, connectedMessage{Type: "connected"}); err != nil {
		return
	}

	h.registry.Add(streamKindEvents, guardianID)
	defer h.registry.Remove(streamKindEvents, guardianID)
	h.logger.Info("event stream opened", zap.Int64("guardian_id", guardianID))

	err := h.engine.StreamEvents(c.Request.Context(), guardianID, func(feed []models.SchoolEvent) error {
		return writeSSE(c.Writer, c.Writer, eventsMessage{Type: "events", Events: feed})
	})
	h.logger.Info("event stream closed", zap.Int64("guardian_id", guardianID), zap.Error(err))
}

func (h *Handler) setStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}
