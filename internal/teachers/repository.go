// Package teachers manages the staff roster kept in the system database.
// A teacher account is global; schools attach and detach it by email
// instead of creating duplicates per tenant.
package teachers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolgate/backend/internal/models"
)

// Repository reads and updates teacher records in the system database.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a teacher repository over the system pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const teacherColumns = `id, name, email, subject, school_id, status, created_at`

func scanTeacher(row pgx.Row) (*models.Teacher, error) {
	var t models.Teacher
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Subject, &t.SchoolID, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ForSchool lists the teachers currently attached to one school.
func (r *Repository) ForSchool(ctx context.Context, schoolID int64) ([]models.Teacher, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+teacherColumns+` FROM teachers WHERE school_id = $1 ORDER BY name`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// ByEmail returns the teacher with the given email across all schools, or
// (nil, nil) when absent. Used by the link flow to find accounts created
// elsewhere.
func (r *Repository) ByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	t, err := scanTeacher(r.pool.QueryRow(ctx,
		`SELECT `+teacherColumns+` FROM teachers WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// Create registers a teacher attached to the given school, already active.
func (r *Repository) Create(ctx context.Context, name, email, passwordHash, subject string, schoolID int64) (*models.Teacher, error) {
	t := &models.Teacher{
		Name:     name,
		Email:    email,
		Subject:  subject,
		SchoolID: &schoolID,
		Status:   models.TeacherActive,
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO teachers (name, email, password_hash, subject, school_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		name, email, passwordHash, subject, schoolID, models.TeacherActive,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Link attaches a teacher to a school and reactivates them. Returns
// pgx.ErrNoRows for an unknown teacher id.
func (r *Repository) Link(ctx context.Context, teacherID, schoolID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE teachers SET school_id = $2, status = $3 WHERE id = $1`,
		teacherID, schoolID, models.TeacherActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Unlink detaches a teacher from their school and marks them inactive. Only
// the school the teacher is attached to may detach them.
func (r *Repository) Unlink(ctx context.Context, teacherID, schoolID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE teachers SET school_id = NULL, status = $3 WHERE id = $1 AND school_id = $2`,
		teacherID, schoolID, models.TeacherInactive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
