package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/aggregate"
	"github.com/schoolgate/backend/internal/models"
)

type fakeGuardians map[int64]*models.Guardian

func (f fakeGuardians) GuardianByID(_ context.Context, id int64) (*models.Guardian, error) {
	return f[id], nil
}

type fakeSchools []models.School

func (f fakeSchools) Schools(context.Context) ([]models.School, error) { return f, nil }

// fakeAccessLog keeps access events in memory per tenant and honors the
// notified flag the way the real repository does.
type fakeAccessLog struct {
	mu     sync.Mutex
	events map[int64][]*models.AccessEvent
	broken map[int64]bool
}

func newFakeAccessLog() *fakeAccessLog {
	return &fakeAccessLog{events: make(map[int64][]*models.AccessEvent), broken: make(map[int64]bool)}
}

func (f *fakeAccessLog) add(tenantID int64, ev models.AccessEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := ev
	f.events[tenantID] = append(f.events[tenantID], &e)
}

func (f *fakeAccessLog) NextUnnotified(_ context.Context, tenantID, _ int64) (*models.AccessEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[tenantID] {
		return nil, errors.New("tenant unreachable")
	}
	var latest *models.AccessEvent
	for _, e := range f.events[tenantID] {
		if e.Notified {
			continue
		}
		if latest == nil || e.RecordedAt.After(latest.RecordedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeAccessLog) Unnotified(_ context.Context, tenantID, _ int64) ([]models.AccessEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[tenantID] {
		return nil, errors.New("tenant unreachable")
	}
	var list []models.AccessEvent
	for _, e := range f.events[tenantID] {
		if !e.Notified {
			list = append(list, *e)
		}
	}
	return list, nil
}

func (f *fakeAccessLog) MarkNotified(_ context.Context, tenantID int64, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		for _, e := range f.events[tenantID] {
			if e.ID == id {
				e.Notified = true
			}
		}
	}
	return nil
}

func (f *fakeAccessLog) notified(tenantID, id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events[tenantID] {
		if e.ID == id {
			return e.Notified
		}
	}
	return false
}

type fakeFeed struct {
	mu    sync.Mutex
	calls int
	feeds [][]models.SchoolEvent
}

func (f *fakeFeed) ForGuardian(context.Context, int64) ([]models.SchoolEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.feeds) {
		i = len(f.feeds) - 1
	}
	f.calls++
	return f.feeds[i], nil
}

func testEngine(access AccessLog, feed EventFeed, guardians aggregate.GuardianFinder, schools aggregate.SchoolLister) *Engine {
	return NewEngine(access, feed, guardians, schools, time.Millisecond, time.Millisecond, zap.NewNop())
}

func at(sec int) time.Time {
	return time.Date(2026, 8, 29, 12, 0, sec, 0, time.UTC)
}

func TestCheckOneDrainsMostRecentFirstThenEmpty(t *testing.T) {
	access := newFakeAccessLog()
	access.add(1, models.AccessEvent{ID: 1, StudentID: 3, Kind: models.AccessArrival, RecordedAt: at(0)})
	access.add(1, models.AccessEvent{ID: 2, StudentID: 3, Kind: models.AccessDeparture, RecordedAt: at(10)})
	access.add(2, models.AccessEvent{ID: 7, StudentID: 9, Kind: models.AccessArrival, RecordedAt: at(5)})

	e := testEngine(access, nil, fakeGuardians{1: {ID: 1}}, fakeSchools{{ID: 1, Name: "Hilltop"}, {ID: 2, Name: "Riverside"}})
	ctx := context.Background()

	first, err := e.CheckOne(ctx, 1)
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if first == nil || first.ID != 2 {
		t.Fatalf("first = %+v, want id 2", first)
	}
	if first.SchoolID != 1 || first.SchoolName != "Hilltop" {
		t.Fatalf("first not tagged with its school: %+v", first)
	}
	if !access.notified(1, 2) {
		t.Fatal("returned event was not marked notified")
	}

	second, err := e.CheckOne(ctx, 1)
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if second == nil || second.ID != 1 {
		t.Fatalf("second = %+v, want id 1", second)
	}

	third, err := e.CheckOne(ctx, 1)
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if third == nil || third.ID != 7 || third.SchoolID != 2 {
		t.Fatalf("third = %+v, want id 7 from school 2", third)
	}

	fourth, err := e.CheckOne(ctx, 1)
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if fourth != nil {
		t.Fatalf("fourth = %+v, want nil once drained", fourth)
	}
}

func TestCheckOneSkipsUnreachableTenant(t *testing.T) {
	access := newFakeAccessLog()
	access.broken[1] = true
	access.add(2, models.AccessEvent{ID: 7, StudentID: 9, Kind: models.AccessArrival, RecordedAt: at(5)})

	e := testEngine(access, nil, fakeGuardians{1: {ID: 1}}, fakeSchools{{ID: 1}, {ID: 2, Name: "Riverside"}})
	ev, err := e.CheckOne(context.Background(), 1)
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if ev == nil || ev.ID != 7 {
		t.Fatalf("ev = %+v, want id 7", ev)
	}
}

func TestCheckOneUnknownGuardian(t *testing.T) {
	e := testEngine(newFakeAccessLog(), nil, fakeGuardians{}, fakeSchools{})
	_, err := e.CheckOne(context.Background(), 42)
	if !errors.Is(err, aggregate.ErrUnknownGuardian) {
		t.Fatalf("err = %v, want ErrUnknownGuardian", err)
	}
}

func TestMarkNotifiedTwiceIsNoOp(t *testing.T) {
	access := newFakeAccessLog()
	access.add(1, models.AccessEvent{ID: 1, StudentID: 3, Kind: models.AccessArrival, RecordedAt: at(0)})
	access.add(1, models.AccessEvent{ID: 2, StudentID: 3, Kind: models.AccessDeparture, RecordedAt: at(10)})

	ctx := context.Background()
	if err := access.MarkNotified(ctx, 1, []int64{1, 2}); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := access.MarkNotified(ctx, 1, []int64{1, 2}); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if !access.notified(1, 1) || !access.notified(1, 2) {
		t.Fatal("rows should stay notified after the repeat mark")
	}

	// Already-notified rows never come back through either delivery path.
	e := testEngine(access, nil, fakeGuardians{1: {ID: 1}}, fakeSchools{{ID: 1, Name: "Hilltop"}})
	ev, err := e.CheckOne(ctx, 1)
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if ev != nil {
		t.Fatalf("CheckOne = %+v, want nil after rows were already marked", ev)
	}

	streamCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err = e.StreamNotifications(streamCtx, 1, func(ev models.AccessEvent) error {
		t.Errorf("stream re-delivered marked event %d", ev.ID)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestStreamNotificationsDeliversEachEventOnce(t *testing.T) {
	access := newFakeAccessLog()
	access.add(1, models.AccessEvent{ID: 1, StudentID: 3, Kind: models.AccessArrival, RecordedAt: at(0)})
	access.add(1, models.AccessEvent{ID: 2, StudentID: 3, Kind: models.AccessDeparture, RecordedAt: at(10)})

	e := testEngine(access, nil, fakeGuardians{1: {ID: 1}}, fakeSchools{{ID: 1, Name: "Hilltop"}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	seen := make(map[int64]int)
	err := e.StreamNotifications(ctx, 1, func(ev models.AccessEvent) error {
		seen[ev.ID]++
		if len(seen) == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if seen[1] != 1 || seen[2] != 1 {
		t.Fatalf("seen = %v, want each event exactly once", seen)
	}
	if !access.notified(1, 1) || !access.notified(1, 2) {
		t.Fatal("streamed events were not marked notified")
	}
}

func TestStreamNotificationsExitsOnWriteFailure(t *testing.T) {
	access := newFakeAccessLog()
	access.add(1, models.AccessEvent{ID: 1, StudentID: 3, Kind: models.AccessArrival, RecordedAt: at(0)})

	e := testEngine(access, nil, fakeGuardians{1: {ID: 1}}, fakeSchools{{ID: 1}})

	err := e.StreamNotifications(context.Background(), 1, func(models.AccessEvent) error {
		return errors.New("client gone")
	})
	if err != nil {
		t.Fatalf("err = %v, want nil on client disconnect", err)
	}
	// Marked before the failed write; that delivery is lost.
	if !access.notified(1, 1) {
		t.Fatal("event should remain marked after a failed write")
	}
}

func TestStreamEventsEmitsOnCountChangeOnly(t *testing.T) {
	feed := &fakeFeed{feeds: [][]models.SchoolEvent{
		{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}},
		{{ID: 3, Title: "C"}, {ID: 4, Title: "D"}}, // same count, swapped content
		{{ID: 5, Title: "E"}},
	}}

	e := testEngine(newFakeAccessLog(), feed, fakeGuardians{1: {ID: 1}}, fakeSchools{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var emitted [][]models.SchoolEvent
	err := e.StreamEvents(ctx, 1, func(evs []models.SchoolEvent) error {
		emitted = append(emitted, evs)
		if len(emitted) == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(emitted) != 2 {
		t.Fatalf("emitted %d snapshots, want 2", len(emitted))
	}
	if len(emitted[0]) != 2 || emitted[0][0].Title != "A" {
		t.Fatalf("first snapshot = %+v", emitted[0])
	}
	// The equal-count swap at call two was invisible; the next emission is
	// the shrunken feed.
	if len(emitted[1]) != 1 || emitted[1][0].Title != "E" {
		t.Fatalf("second snapshot = %+v", emitted[1])
	}
}
