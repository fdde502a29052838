package models

import "time"

// Guardian is a parent or responsible-party identity stored in the system
// database. A guardian may be linked to students across multiple schools.
type Guardian struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
}
