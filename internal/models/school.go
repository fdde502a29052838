package models

import "time"

// School is one tenant's identity record in the system database. Each
// school owns exactly one isolated database keyed by its id.
type School struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	AdminName    string    `json:"admin_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Address      string    `json:"address,omitempty"`
	Number       string    `json:"number,omitempty"`
	ZipCode      string    `json:"zip_code,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// SchoolSettings is the guardian-visible subset of a school record.
type SchoolSettings struct {
	Address   string   `json:"address"`
	Number    string   `json:"number"`
	ZipCode   string   `json:"zip_code"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
