package models

import "time"

// Student is a tenant-scope record. ClassName is the cohort label used by
// the event relevance filter. FaceDescriptor is an opaque blob owned by the
// external recognition process; this service only stores it.
type Student struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	ParentEmail    string     `json:"parent_email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	PhotoURL       string     `json:"photo_url,omitempty"`
	ClassName      string     `json:"class_name"`
	Age            *int       `json:"age,omitempty"`
	FaceDescriptor []byte     `json:"-"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
	LinkedAt       *time.Time `json:"linked_at,omitempty"`

	// Tenant tags, filled by cross-tenant aggregation.
	SchoolID   int64    `json:"school_id,omitempty"`
	SchoolName string   `json:"school_name,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// Class is a cohort within one school.
type Class struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
