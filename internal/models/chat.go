package models

import "time"

// SenderType identifies which side of a student's chat sent a message.
type SenderType string

const (
	SenderGuardian SenderType = "guardian"
	SenderSchool   SenderType = "school"
)

// ChatMessage is one message in a student's chat thread between the school
// and the student's guardians.
type ChatMessage struct {
	ID          int64      `json:"id"`
	StudentID   int64      `json:"student_id"`
	SenderType  SenderType `json:"sender_type"`
	SenderID    int64      `json:"sender_id"`
	MessageType string     `json:"message_type"` // text | file
	Content     string     `json:"content,omitempty"`
	FileURL     string     `json:"file_url,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	Read        bool       `json:"read"`
	SentAt      time.Time  `json:"sent_at"`
}

// PickupStatus is the lifecycle state of a pickup request.
type PickupStatus string

const (
	PickupWaiting   PickupStatus = "waiting"
	PickupCalled    PickupStatus = "called"
	PickupCompleted PickupStatus = "completed"
)

// PickupRequest is a guardian's request for a student to be brought to the
// gate, tenant-scope.
type PickupRequest struct {
	ID          int64        `json:"id"`
	StudentID   int64        `json:"student_id"`
	GuardianID  int64        `json:"guardian_id"`
	Status      PickupStatus `json:"status"`
	RequestedAt time.Time    `json:"requested_at"`

	StudentName string `json:"student_name,omitempty"`
	ClassName   string `json:"class_name,omitempty"`
}
