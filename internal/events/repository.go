package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/database"
)

// Repository persists events and participations inside one school's
// database. Every method opens a fresh tenant connection scoped to the call.
type Repository struct {
	tenants *database.Tenants
}

// NewRepository creates an event repository over the tenant accessor.
func NewRepository(tenants *database.Tenants) *Repository {
	return &Repository{tenants: tenants}
}

const eventColumns = `id, title, description, event_date, cost, class_name, payment_key, payment_deadline, kind, created_at`

func scanEvent(row pgx.Row) (*models.SchoolEvent, error) {
	var e models.SchoolEvent
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.EventDate, &e.Cost, &e.ClassName,
		&e.PaymentKey, &e.PaymentDeadline, &e.Kind, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an event and returns it with its id assigned.
func (r *Repository) Create(ctx context.Context, tenantID int64, e *models.SchoolEvent) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	return conn.QueryRow(ctx,
		`INSERT INTO events (title, description, event_date, cost, class_name, payment_key, payment_deadline, kind)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		e.Title, e.Description, e.EventDate, e.Cost, e.ClassName, e.PaymentKey, e.PaymentDeadline, e.Kind,
	).Scan(&e.ID, &e.CreatedAt)
}

// EventsForSchool lists every event of one school, newest first.
func (r *Repository) EventsForSchool(ctx context.Context, tenantID int64) ([]models.SchoolEvent, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.SchoolEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Event returns one event by id, or (nil, nil) when absent.
func (r *Repository) Event(ctx context.Context, tenantID, eventID int64) (*models.SchoolEvent, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	e, err := scanEvent(conn.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// Update overwrites an event's mutable fields.
func (r *Repository) Update(ctx context.Context, tenantID int64, e *models.SchoolEvent) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx,
		`UPDATE events SET title = $2, description = $3, event_date = $4, cost = $5, class_name = $6,
		 payment_key = $7, payment_deadline = $8, kind = $9 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.EventDate, e.Cost, e.ClassName, e.PaymentKey, e.PaymentDeadline, e.Kind)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes an event; its participations cascade.
func (r *Repository) Delete(ctx context.Context, tenantID, eventID int64) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Participants lists every participation of an event with student identity
// joined in.
func (r *Repository) Participants(ctx context.Context, tenantID, eventID int64) ([]models.EventParticipation, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT p.id, p.event_id, p.student_id, p.status, p.receipt_url, p.created_at, s.name, s.class_name
		 FROM event_participations p
		 JOIN students s ON s.id = p.student_id
		 WHERE p.event_id = $1
		 ORDER BY s.name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.EventParticipation
	for rows.Next() {
		var p models.EventParticipation
		if err := rows.Scan(&p.ID, &p.EventID, &p.StudentID, &p.Status, &p.ReceiptURL, &p.CreatedAt, &p.StudentName, &p.ClassName); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Participation returns the single row for an (event, student) pair, or
// (nil, nil) when the student has not answered.
func (r *Repository) Participation(ctx context.Context, tenantID, eventID, studentID int64) (*models.EventParticipation, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	var p models.EventParticipation
	err = conn.QueryRow(ctx,
		`SELECT id, event_id, student_id, status, receipt_url, created_at
		 FROM event_participations
		 WHERE event_id = $1 AND student_id = $2`, eventID, studentID,
	).Scan(&p.ID, &p.EventID, &p.StudentID, &p.Status, &p.ReceiptURL, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertParticipation records or updates the single participation row for an
// (event, student) pair. A repeated answer overwrites the status; an empty
// incoming receipt keeps the stored one.
func (r *Repository) UpsertParticipation(ctx context.Context, tenantID int64, p *models.EventParticipation) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	return conn.QueryRow(ctx,
		`INSERT INTO event_participations (event_id, student_id, status, receipt_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (event_id, student_id)
		 DO UPDATE SET status = EXCLUDED.status,
		               receipt_url = CASE WHEN EXCLUDED.receipt_url <> '' THEN EXCLUDED.receipt_url
		                                  ELSE event_participations.receipt_url END
		 RETURNING id, created_at`,
		p.EventID, p.StudentID, p.Status, p.ReceiptURL,
	).Scan(&p.ID, &p.CreatedAt)
}

// LinkedToGuardian reports whether the student belongs to the guardian in
// this tenant. Confirmations are rejected for students outside the
// guardian's own set.
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
