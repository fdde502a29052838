// Package notifications delivers access events to guardians, by polling or
// by server-sent event streams. Delivery flips each row's notified flag
// exactly once; history stays readable afterwards.
package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/database"
)

// Repository reads and marks access events inside one school's database.
// Every method opens a fresh tenant connection scoped to the call.
type Repository struct {
	tenants *database.Tenants
}

// NewRepository creates a notification repository over the tenant accessor.
func NewRepository(tenants *database.Tenants) *Repository {
	return &Repository{tenants: tenants}
}

const accessEventSelect = `
	SELECT a.id, a.student_id, a.kind, a.recorded_at, a.notified, s.name, s.photo_url
	FROM access_events a
	JOIN students s ON s.id = a.student_id
	JOIN student_guardians sg ON sg.student_id = a.student_id
	WHERE sg.guardian_id = $1`

func collectAccessEvents(rows pgx.Rows) ([]models.AccessEvent, error) {
	var list []models.AccessEvent
	for rows.Next() {
		var e models.AccessEvent
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Kind, &e.RecordedAt, &e.Notified, &e.StudentName, &e.PhotoURL); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// NextUnnotified returns the most recent undelivered access event for the
// guardian's students in this tenant, or (nil, nil) when there is none.
func (r *Repository) NextUnnotified(ctx context.Context, tenantID, guardianID int64) (*models.AccessEvent, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	var e models.AccessEvent
	err = conn.QueryRow(ctx, accessEventSelect+` AND NOT a.notified ORDER BY a.recorded_at DESC, a.id DESC LIMIT 1`,
		guardianID).Scan(&e.ID, &e.StudentID, &e.Kind, &e.RecordedAt, &e.Notified, &e.StudentName, &e.PhotoURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Unnotified returns every undelivered access event for the guardian's
// students in this tenant, oldest first.
func (r *Repository) Unnotified(ctx context.Context, tenantID, guardianID int64) ([]models.AccessEvent, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, accessEventSelect+` AND NOT a.notified ORDER BY a.recorded_at, a.id`, guardianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccessEvents(rows)
}

// MarkNotified flips the notified flag on the given rows. Already-notified
// rows are untouched; the operation is idempotent.
func (r *Repository) MarkNotified(ctx context.Context, tenantID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `UPDATE access_events SET notified = TRUE WHERE id = ANY($1) AND NOT notified`, ids)
	return err
}

// History returns the guardian's access events in this tenant regardless of
// delivery state, newest first.
func (r *Repository) History(ctx context.Context, tenantID, guardianID int64, limit int) ([]models.AccessEvent, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, accessEventSelect+` ORDER BY a.recorded_at DESC, a.id DESC LIMIT $2`, guardianID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccessEvents(rows)
}
