package events

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/aggregate"
	"github.com/schoolgate/backend/internal/models"
)

// farFuture orders undated events after every dated one.
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// EventSource reads one tenant's events.
type EventSource interface {
	EventsForSchool(ctx context.Context, tenantID int64) ([]models.SchoolEvent, error)
}

// StudentSource reads a guardian's linked students in one tenant.
type StudentSource interface {
	LinkedStudents(ctx context.Context, tenantID, guardianID int64) ([]models.Student, error)
}

// Service assembles the guardian-side event feed: every relevant event from
// every school the guardian has a student in, merged and date-ordered.
type Service struct {
	events    EventSource
	students  StudentSource
	guardians aggregate.GuardianFinder
	schools   aggregate.SchoolLister
	logger    *zap.Logger
}

func NewService(events EventSource, students StudentSource, guardians aggregate.GuardianFinder, schools aggregate.SchoolLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{events: events, students: students, guardians: guardians, schools: schools, logger: logger}
}

// ForGuardian probes every school for the guardian's linked students, keeps
// the events relevant to them, tags each with its school, and orders the
// merged feed by event date with undated events last.
func (s *Service) ForGuardian(ctx context.Context, guardianID int64) ([]models.SchoolEvent, error) {
	merged, err := aggregate.AcrossTenants(ctx, s.guardians, s.schools, guardianID,
		func(ctx context.Context, school models.School) ([]models.SchoolEvent, error) {
			linked, err := s.students.LinkedStudents(ctx, school.ID, guardianID)
			if err != nil {
				return nil, err
			}
			if len(linked) == 0 {
				return nil, nil
			}
			all, err := s.events.EventsForSchool(ctx, school.ID)
			if err != nil {
				return nil, err
			}
			var relevant []models.SchoolEvent
			for _, e := range all {
				if !RelevantTo(e, linked) {
					continue
				}
				e.SchoolID = school.ID
				e.SchoolName = school.Name
				relevant = append(relevant, e)
			}
			return relevant, nil
		}, s.logger)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return eventOrderDate(merged[i]).Before(eventOrderDate(merged[j]))
	})
	return merged, nil
}

func eventOrderDate(e models.SchoolEvent) time.Time {
	if e.EventDate == nil {
		return farFuture
	}
	return *e.EventDate
}
