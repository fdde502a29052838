package models

import "time"

// Teacher status values. A teacher unlinked from their school goes
// inactive, not deleted; linking to a school reactivates them.
const (
	TeacherActive   = "active"
	TeacherInactive = "inactive"
	TeacherPending  = "pending"
)

// Teacher is a staff identity stored in the system database. Unlike
// students, a teacher belongs to at most one school at a time; SchoolID is
// nil while unlinked.
type Teacher struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Subject      string    `json:"subject"`
	SchoolID     *int64    `json:"school_id,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
