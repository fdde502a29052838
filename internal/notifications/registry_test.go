package notifications

import "testing"

func TestStreamRegistryCounts(t *testing.T) {
	r := NewStreamRegistry()

	if n := r.Add(streamKindNotifications, 7); n != 1 {
		t.Fatalf("Add = %d, want 1", n)
	}
	if n := r.Add(streamKindNotifications, 7); n != 2 {
		t.Fatalf("Add = %d, want 2", n)
	}
	r.Add(streamKindEvents, 7)
	r.Add(streamKindNotifications, 9)

	if total := r.Total(); total != 4 {
		t.Fatalf("Total = %d, want 4", total)
	}

	r.Remove(streamKindNotifications, 7)
	r.Remove(streamKindNotifications, 7)
	r.Remove(streamKindEvents, 7)
	r.Remove(streamKindNotifications, 9)

	if total := r.Total(); total != 0 {
		t.Fatalf("Total after removals = %d, want 0", total)
	}

	// Removing a stream that was never added must not underflow.
	r.Remove(streamKindEvents, 1)
	if total := r.Total(); total != 0 {
		t.Fatalf("Total = %d, want 0", total)
	}
}
