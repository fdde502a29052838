package models

import "time"

// AccessKind is the kind of a physical access event.
type AccessKind string

const (
	AccessArrival   AccessKind = "arrival"
	AccessDeparture AccessKind = "departure"
)

// Valid reports whether k is a known access kind.
func (k AccessKind) Valid() bool {
	return k == AccessArrival || k == AccessDeparture
}

// AttendanceRecord is one row of the append-only attendance ledger.
type AttendanceRecord struct {
	ID         int64      `json:"id"`
	StudentID  int64      `json:"student_id"`
	Kind       AccessKind `json:"kind"`
	RecordedAt time.Time  `json:"recorded_at"`

	StudentName string `json:"student_name,omitempty"`
	ClassName   string `json:"class_name,omitempty"`
}

// AccessEvent is one append-only access row feeding guardian notifications.
// Notified transitions false -> true exactly once per row, flipped by the
// delivery engine; a row is never un-notified again.
type AccessEvent struct {
	ID         int64      `json:"id"`
	StudentID  int64      `json:"student_id"`
	Kind       AccessKind `json:"kind"`
	RecordedAt time.Time  `json:"recorded_at"`
	Notified   bool       `json:"-"`

	StudentName string `json:"student_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`

	// Tenant tags, filled by cross-tenant aggregation.
	SchoolID   int64  `json:"school_id,omitempty"`
	SchoolName string `json:"school_name,omitempty"`
}
