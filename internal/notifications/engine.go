package notifications

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/aggregate"
	"github.com/schoolgate/backend/internal/models"
)

// AccessLog is the per-tenant access event surface the engine runs on.
type AccessLog interface {
	NextUnnotified(ctx context.Context, tenantID, guardianID int64) (*models.AccessEvent, error)
	Unnotified(ctx context.Context, tenantID, guardianID int64) ([]models.AccessEvent, error)
	MarkNotified(ctx context.Context, tenantID int64, ids []int64) error
}

// EventFeed produces a guardian's aggregated event feed.
type EventFeed interface {
	ForGuardian(ctx context.Context, guardianID int64) ([]models.SchoolEvent, error)
}

// Engine drives guardian-facing delivery. Each access event is delivered at
// most once per mode: the poll path and the stream path each flip the
// notified flag before handing the event to the caller, so a delivery lost
// between mark and write is gone. Cross-mode duplicates are possible when a
// poll and a stream race for the same row; both sides tolerate that.
type Engine struct {
	access    AccessLog
	feed      EventFeed
	guardians aggregate.GuardianFinder
	schools   aggregate.SchoolLister
	logger    *zap.Logger

	notifyInterval time.Duration
	eventsInterval time.Duration
}

// NewEngine creates a delivery engine. Intervals at or below zero fall back
// to the defaults of 3s for notifications and 5s for event feeds.
func NewEngine(access AccessLog, feed EventFeed, guardians aggregate.GuardianFinder, schools aggregate.SchoolLister, notifyInterval, eventsInterval time.Duration, logger *zap.Logger) *Engine {
	if notifyInterval <= 0 {
		notifyInterval = 3 * time.Second
	}
	if eventsInterval <= 0 {
		eventsInterval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		access:         access,
		feed:           feed,
		guardians:      guardians,
		schools:        schools,
		logger:         logger,
		notifyInterval: notifyInterval,
		eventsInterval: eventsInterval,
	}
}

// CheckOne is the poll path: it walks the tenants in listing order and
// returns the first school's most recent undelivered event, marked as
// delivered, tagged with its school. (nil, nil) means nothing is pending
// anywhere. Unreachable tenants are skipped.
func (e *Engine) CheckOne(ctx context.Context, guardianID int64) (*models.AccessEvent, error) {
	g, err := e.guardians.GuardianByID(ctx, guardianID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, aggregate.ErrUnknownGuardian
	}

	schools, err := e.schools.Schools(ctx)
	if err != nil {
		return nil, err
	}
	for _, school := range schools {
		ev, err := e.access.NextUnnotified(ctx, school.ID, guardianID)
		if err != nil {
			e.logger.Debug("poll skipped tenant", zap.Int64("school_id", school.ID), zap.Error(err))
			continue
		}
		if ev == nil {
			continue
		}
		if err := e.access.MarkNotified(ctx, school.ID, []int64{ev.ID}); err != nil {
			return nil, err
		}
		ev.Notified = true
		ev.SchoolID = school.ID
		ev.SchoolName = school.Name
		return ev, nil
	}
	return nil, nil
}

// StreamNotifications is the push path: every tick it drains all undelivered
// events across every tenant, marks them delivered, and emits them oldest
// first per school. It returns nil when emit fails (the client is gone) and
// ctx.Err() when the context ends.
func (e *Engine) StreamNotifications(ctx context.Context, guardianID int64, emit func(models.AccessEvent) error) error {
	ticker := time.NewTicker(e.notifyInterval)
	defer ticker.Stop()

	for {
		if err := e.deliverPending(ctx, guardianID, emit); err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// deliverPending returns an error only when emit fails.
func (e *Engine) deliverPending(ctx context.Context, guardianID int64, emit func(models.AccessEvent) error) error {
	schools, err := e.schools.Schools(ctx)
	if err != nil {
		e.logger.Warn("stream tick skipped", zap.Int64("guardian_id", guardianID), zap.Error(err))
		return nil
	}
	for _, school := range schools {
		pending, err := e.access.Unnotified(ctx, school.ID, guardianID)
		if err != nil {
			e.logger.Debug("stream skipped tenant", zap.Int64("school_id", school.ID), zap.Error(err))
			continue
		}
		if len(pending) == 0 {
			continue
		}
		ids := make([]int64, len(pending))
		for i := range pending {
			ids[i] = pending[i].ID
		}
		if err := e.access.MarkNotified(ctx, school.ID, ids); err != nil {
			e.logger.Warn("mark notified", zap.Int64("school_id", school.ID), zap.Error(err))
			continue
		}
		for i := range pending {
			pending[i].Notified = true
			pending[i].SchoolID = school.ID
			pending[i].SchoolName = school.Name
			if err := emit(pending[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// StreamEvents pushes the guardian's aggregated event feed whenever its size
// changes, starting with an immediate snapshot. Size is the change signal: a
// swap that keeps the count equal goes unseen until the next change. It
// returns nil when emit fails and ctx.Err() when the context ends.
func (e *Engine) StreamEvents(ctx context.Context, guardianID int64, emit func([]models.SchoolEvent) error) error {
	ticker := time.NewTicker(e.eventsInterval)
	defer ticker.Stop()

	lastCount := -1
	for {
		feed, err := e.feed.ForGuardian(ctx, guardianID)
		if err != nil {
			e.logger.Warn("event feed tick skipped", zap.Int64("guardian_id", guardianID), zap.Error(err))
		} else if len(feed) != lastCount {
			if feed == nil {
				feed = []models.SchoolEvent{}
			}
			if err := emit(feed); err != nil {
				return nil
			}
			lastCount = len(feed)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
