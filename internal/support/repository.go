// Package support runs the help-ticket queue in the system database.
// Guardians and schools open tickets; admins answer across all tenants from
// one place.
package support

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolgate/backend/internal/models"
)

// Repository reads and updates tickets in the system database.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a support repository over the system pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ticketListColumns carries the derived last_message / message_count used
// by list views, resolved in one query instead of per-ticket lookups.
const ticketListColumns = `
	t.id, t.title, t.user_type, t.user_id, t.status, t.priority, t.category, t.created_at, t.updated_at,
	COALESCE((SELECT m.message FROM support_messages m
	          WHERE m.ticket_id = t.id AND NOT m.is_internal
	          ORDER BY m.created_at DESC LIMIT 1), ''),
	(SELECT COUNT(*) FROM support_messages m WHERE m.ticket_id = t.id)`

func scanTicketRow(rows pgx.Rows) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := rows.Scan(&t.ID, &t.Title, &t.UserType, &t.UserID, &t.Status, &t.Priority, &t.Category,
		&t.CreatedAt, &t.UpdatedAt, &t.LastMessage, &t.MessageCount)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) listTickets(ctx context.Context, where string, args ...any) ([]models.SupportTicket, error) {
	q := `SELECT ` + ticketListColumns + ` FROM support_tickets t ` + where + ` ORDER BY t.created_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.SupportTicket
	for rows.Next() {
		t, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// TicketsFor lists one owner's tickets, newest first. An empty or "all"
// status means no status filter.
func (r *Repository) TicketsFor(ctx context.Context, userType string, userID int64, status string) ([]models.SupportTicket, error) {
	if status == "" || status == "all" {
		return r.listTickets(ctx, `WHERE t.user_type = $1 AND t.user_id = $2`, userType, userID)
	}
	return r.listTickets(ctx, `WHERE t.user_type = $1 AND t.user_id = $2 AND t.status = $3`, userType, userID, status)
}

// AllTickets lists every owner's tickets for the admin queue.
func (r *Repository) AllTickets(ctx context.Context, status string) ([]models.SupportTicket, error) {
	if status == "" || status == "all" {
		return r.listTickets(ctx, ``)
	}
	return r.listTickets(ctx, `WHERE t.status = $1`, status)
}

// Ticket returns one ticket by id, or (nil, nil) when absent.
func (r *Repository) Ticket(ctx context.Context, id int64) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, user_type, user_id, status, priority, category, created_at, updated_at
		 FROM support_tickets WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.UserType, &t.UserID, &t.Status, &t.Priority, &t.Category, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTicket opens a ticket, seeding the thread with the opening message
// in the same transaction when one is given.
func (r *Repository) CreateTicket(ctx context.Context, t *models.SupportTicket, openingMessage string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO support_tickets (title, user_type, user_id, status, priority, category)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.UserType, t.UserID, models.TicketOpen, t.Priority, t.Category,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return err
	}
	t.Status = models.TicketOpen

	if openingMessage != "" {
		_, err = tx.Exec(ctx,
			`INSERT INTO support_messages (ticket_id, user_type, user_id, message)
			 VALUES ($1, $2, $3, $4)`,
			t.ID, t.UserType, t.UserID, openingMessage)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Messages returns a ticket's thread oldest first. Internal admin notes are
// included only when includeInternal is set.
func (r *Repository) Messages(ctx context.Context, ticketID int64, includeInternal bool) ([]models.SupportMessage, error) {
	q := `SELECT id, ticket_id, user_type, user_id, message, is_internal, created_at
	      FROM support_messages WHERE ticket_id = $1`
	if !includeInternal {
		q += ` AND NOT is_internal`
	}
	q += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, q, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.SupportMessage
	for rows.Next() {
		var m models.SupportMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.UserType, &m.UserID, &m.Message, &m.IsInternal, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// AddMessage appends to the thread and bumps the ticket's updated_at in the
// same transaction so list views sort by activity.
func (r *Repository) AddMessage(ctx context.Context, m *models.SupportMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO support_messages (ticket_id, user_type, user_id, message, is_internal)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		m.TicketID, m.UserType, m.UserID, m.Message, m.IsInternal,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE support_tickets SET updated_at = now() WHERE id = $1`, m.TicketID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateStatus sets a ticket's status. Returns pgx.ErrNoRows for an unknown
// ticket.
func (r *Repository) UpdateStatus(ctx context.Context, ticketID int64, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE support_tickets SET status = $2, updated_at = now() WHERE id = $1`, ticketID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteTicket removes a ticket and its thread.
func (r *Repository) DeleteTicket(ctx context.Context, ticketID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM support_messages WHERE ticket_id = $1`, ticketID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM support_tickets WHERE id = $1`, ticketID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}
