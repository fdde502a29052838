package models

import "time"

// EventKind categorizes a school event.
type EventKind string

const (
	EventTrip    EventKind = "trip"
	EventMeeting EventKind = "meeting"
	EventWarning EventKind = "warning"
	EventGeneric EventKind = "generic"
)

// SchoolEvent is a tenant-scope announcement. An empty ClassName means the
// event applies to every cohort in the school; otherwise it targets exactly
// one cohort and relevance to a guardian is derived, never stored.
type SchoolEvent struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	EventDate       *time.Time `json:"event_date,omitempty"`
	Cost            *float64   `json:"cost,omitempty"`
	ClassName       string     `json:"class_name,omitempty"`
	PaymentKey      string     `json:"payment_key,omitempty"`
	PaymentDeadline *time.Time `json:"payment_deadline,omitempty"`
	Kind            EventKind  `json:"kind"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`

	// Tenant tags, filled by cross-tenant aggregation.
	SchoolID   int64  `json:"school_id,omitempty"`
	SchoolName string `json:"school_name,omitempty"`
}

// ParticipationStatus is the confirmation state of one (event, student) pair.
type ParticipationStatus string

const (
	ParticipationPending   ParticipationStatus = "pending"
	ParticipationConfirmed ParticipationStatus = "confirmed"
)

// EventParticipation is the at-most-one row per (event, student) pair,
// maintained by upsert.
type EventParticipation struct {
	ID         int64               `json:"id"`
	EventID    int64               `json:"event_id"`
	StudentID  int64               `json:"student_id"`
	Status     ParticipationStatus `json:"status"`
	ReceiptURL string              `json:"receipt_url,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`

	StudentName string `json:"student_name,omitempty"`
	ClassName   string `json:"class_name,omitempty"`
}
