package models

import "time"

// Support ticket status and priority values.
const (
	TicketOpen     = "open"
	TicketPending  = "pending"
	TicketResolved = "resolved"
	TicketClosed   = "closed"

	TicketPriorityLow    = "low"
	TicketPriorityNormal = "normal"
	TicketPriorityHigh   = "high"
)

// SupportTicket is one help request, owned by either a guardian or a school
// (UserType carries the role). Stored in the system database so admins see
// every tenant's tickets in one place.
type SupportTicket struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	UserType  string    `json:"user_type"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Derived for list views.
	LastMessage  string `json:"last_message"`
	MessageCount int64  `json:"message_count"`
}

// SupportMessage is one entry in a ticket's thread. Internal messages are
// admin-side notes hidden from the ticket owner.
type SupportMessage struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	UserType   string    `json:"user_type"`
	UserID     int64     `json:"user_id"`
	Message    string    `json:"message"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}
