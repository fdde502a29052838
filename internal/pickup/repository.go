// Package pickup handles guardian gate pickup requests and the school-side
// queue that works through them.
package pickup

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/database"
)

// Repository persists pickup requests inside one school's database. Every
// method opens a fresh tenant connection scoped to the call.
type Repository struct {
	tenants *database.Tenants
}

// NewRepository creates a pickup repository over the tenant accessor.
func NewRepository(tenants *database.Tenants) *Repository {
	return &Repository{tenants: tenants}
}

// Create opens a pickup request in waiting state.
func (r *Repository) Create(ctx context.Context, tenantID int64, p *models.PickupRequest) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	p.Status = models.PickupWaiting
	return conn.QueryRow(ctx,
		`INSERT INTO pickup_requests (student_id, guardian_id, status) VALUES ($1, $2, $3)
		 RETURNING id, requested_at`,
		p.StudentID, p.GuardianID, p.Status).Scan(&p.ID, &p.RequestedAt)
}

// Queue returns the school's open requests, oldest first, with student
// identity joined in. Completed requests are excluded.
func (r *Repository) Queue(ctx context.Context, tenantID int64) ([]models.PickupRequest, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT p.id, p.student_id, p.guardian_id, p.status, p.requested_at, s.name, s.class_name
		 FROM pickup_requests p
		 JOIN students s ON s.id = p.student_id
		 WHERE p.status <> $1
		 ORDER BY p.requested_at`, models.PickupCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ForGuardian returns the guardian's requests in this tenant, newest first.
func (r *Repository) ForGuardian(ctx context.Context, tenantID, guardianID int64, limit int) ([]models.PickupRequest, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT p.id, p.student_id, p.guardian_id, p.status, p.requested_at, s.name, s.class_name
		 FROM pickup_requests p
		 JOIN students s ON s.id = p.student_id
		 WHERE p.guardian_id = $1
		 ORDER BY p.requested_at DESC
		 LIMIT $2`, guardianID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]models.PickupRequest, error) {
	var list []models.PickupRequest
	for rows.Next() {
		var p models.PickupRequest
		if err := rows.Scan(&p.ID, &p.StudentID, &p.GuardianID, &p.Status, &p.RequestedAt, &p.StudentName, &p.ClassName); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// UpdateStatus moves a request through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, requestID int64, status models.PickupStatus) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx, `UPDATE pickup_requests SET status = $2 WHERE id = $1`, requestID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
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

// IsNotFound reports whether err marks a missing pickup request.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
