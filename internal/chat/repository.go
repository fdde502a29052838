package chat

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/database"
)

// Repository persists chat messages inside one school's database. Every
// method opens a fresh tenant connection scoped to the call.
type Repository struct {
	tenants *database.Tenants
}

// NewRepository creates a chat repository over the tenant accessor.
func NewRepository(tenants *database.Tenants) *Repository {
	return &Repository{tenants: tenants}
}

// Insert stores one message and returns it with its id assigned.
func (r *Repository) Insert(ctx context.Context, tenantID int64, m *models.ChatMessage) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	return conn.QueryRow(ctx,
		`INSERT INTO chat_messages (student_id, sender_type, sender_id, message_type, content, file_url, file_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, sent_at`,
		m.StudentID, m.SenderType, m.SenderID, m.MessageType, m.Content, m.FileURL, m.FileName,
	).Scan(&m.ID, &m.SentAt)
}

// Messages returns a student's thread, oldest first, capped at limit.
func (r *Repository) Messages(ctx context.Context, tenantID, studentID int64, limit int) ([]models.ChatMessage, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT id, student_id, sender_type, sender_id, message_type, content, file_url, file_name, read, sent_at
		 FROM (SELECT * FROM chat_messages WHERE student_id = $1 ORDER BY id DESC LIMIT $2) latest
		 ORDER BY id`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]models.ChatMessage, error) {
	var list []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.StudentID, &m.SenderType, &m.SenderID, &m.MessageType, &m.Content, &m.FileURL, &m.FileName, &m.Read, &m.SentAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// MarkRead flags every message in the thread sent by the other side as
// read.
func (r *Repository) MarkRead(ctx context.Context, tenantID, studentID int64, reader models.SenderType) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx,
		`UPDATE chat_messages SET read = TRUE WHERE student_id = $1 AND sender_type <> $2 AND NOT read`,
		studentID, reader)
	return err
}

// StudentIDs returns the ids of every student in the tenant, or of one
// cohort when className is set. Used by school broadcasts.
func (r *Repository) StudentIDs(ctx context.Context, tenantID int64, className string) ([]int64, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	q := `SELECT id FROM students ORDER BY id`
	args := []any{}
	if className != "" {
		q = `SELECT id FROM students WHERE class_name = $1 ORDER BY id`
		args = append(args, className)
	}
	rows, err := conn.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LinkedToGuardian reports whether the student belongs to the guardian in
// this tenant.
func (r *Repository) LinkedToGuardian(ctx context.Context, tenantID, studentID, guardianID int64) (bool, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return false, err
	}
	defer conn.Close(ctx)

	var ok bool
	err = conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM student_guardians WHERE student_id = $1 AND guardian_id = $2)`,
		studentID, guardianID).Scan(&ok)
	return ok, err
}
