package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/models"
)

type fakeGuardians map[int64]*models.Guardian

func (f fakeGuardians) GuardianByID(_ context.Context, id int64) (*models.Guardian, error) {
	return f[id], nil
}

type fakeSchools []models.School

func (f fakeSchools) Schools(context.Context) ([]models.School, error) { return f, nil }

type fakeEventSource map[int64][]models.SchoolEvent

func (f fakeEventSource) EventsForSchool(_ context.Context, tenantID int64) ([]models.SchoolEvent, error) {
	events, ok := f[tenantID]
	if !ok {
		return nil, errors.New("tenant unreachable")
	}
	return events, nil
}

type fakeStudentSource map[int64][]models.Student

func (f fakeStudentSource) LinkedStudents(_ context.Context, tenantID, _ int64) ([]models.Student, error) {
	students, ok := f[tenantID]
	if !ok {
		return nil, errors.New("tenant unreachable")
	}
	return students, nil
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

// A guardian with students in two of three schools sees exactly the events
// relevant to those students, tagged by school and ordered by date.
func TestForGuardianAggregatesAcrossSchools(t *testing.T) {
	guardians := fakeGuardians{1: {ID: 1, Name: "Dana"}}
	schools := fakeSchools{
		{ID: 14, Name: "Hilltop"},
		{ID: 19, Name: "Riverside"},
		{ID: 23, Name: "Lakeview"},
	}
	students := fakeStudentSource{
		14: {{ID: 3, Name: "Mia", ClassName: "3A"}},
		19: {{ID: 8, Name: "Leo", ClassName: "5B"}},
		23: {}, // no linked students here
	}
	eventsByTenant := fakeEventSource{
		14: {
			{ID: 1, Title: "Zoo Trip", ClassName: "3A", EventDate: date("2026-09-10")},
			{ID: 2, Title: "6C Recital", ClassName: "6C", EventDate: date("2026-09-01")},
			{ID: 3, Title: "Staff Meeting", EventDate: date("2026-09-20")},
		},
		19: {
			{ID: 1, Title: "Science Fair", EventDate: date("2026-09-05")},
		},
		23: {
			{ID: 1, Title: "Invisible", EventDate: date("2026-09-02")},
		},
	}

	svc := NewService(eventsByTenant, students, guardians, schools, zap.NewNop())
	got, err := svc.ForGuardian(context.Background(), 1)
	if err != nil {
		t.Fatalf("ForGuardian: %v", err)
	}

	wantTitles := []string{"Science Fair", "Zoo Trip", "Staff Meeting"}
	if len(got) != len(wantTitles) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(wantTitles), got)
	}
	for i, title := range wantTitles {
		if got[i].Title != title {
			t.Fatalf("event[%d].Title = %q, want %q", i, got[i].Title, title)
		}
	}
	if got[1].SchoolID != 14 || got[1].SchoolName != "Hilltop" {
		t.Fatalf("Zoo Trip not tagged with its school: %+v", got[1])
	}
}

func TestForGuardianUndatedEventsSortLast(t *testing.T) {
	guardians := fakeGuardians{1: {ID: 1}}
	schools := fakeSchools{{ID: 14, Name: "Hilltop"}}
	students := fakeStudentSource{14: {{ID: 3, ClassName: "3A"}}}
	eventsByTenant := fakeEventSource{
		14: {
			{ID: 1, Title: "Undated"},
			{ID: 2, Title: "Dated", EventDate: date("2026-10-01")},
		},
	}

	svc := NewService(eventsByTenant, students, guardians, schools, zap.NewNop())
	got, err := svc.ForGuardian(context.Background(), 1)
	if err != nil {
		t.Fatalf("ForGuardian: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Dated" || got[1].Title != "Undated" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestForGuardianSkipsUnreachableTenant(t *testing.T) {
	guardians := fakeGuardians{1: {ID: 1}}
	schools := fakeSchools{{ID: 14, Name: "Hilltop"}, {ID: 99, Name: "Ghost"}}
	students := fakeStudentSource{14: {{ID: 3, ClassName: "3A"}}} // 99 errors
	eventsByTenant := fakeEventSource{
		14: {{ID: 1, Title: "Open Day", EventDate: date("2026-09-03")}},
	}

	svc := NewService(eventsByTenant, students, guardians, schools, zap.NewNop())
	got, err := svc.ForGuardian(context.Background(), 1)
	if err != nil {
		t.Fatalf("ForGuardian: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Open Day" {
		t.Fatalf("unexpected feed: %+v", got)
	}
}

func TestForGuardianUnknownGuardian(t *testing.T) {
	svc := NewService(fakeEventSource{}, fakeStudentSource{}, fakeGuardians{}, fakeSchools{}, zap.NewNop())
	_, err := svc.ForGuardian(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for unknown guardian")
	}
}
