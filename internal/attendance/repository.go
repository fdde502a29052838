// Package attendance records gate passages. Each passage lands in two
// places: the attendance ledger for reporting, and the access event log the
// notification engine drains.
package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/database"
)

// Repository persists attendance inside one school's database. Every method
// opens a fresh tenant connection scoped to the call.
type Repository struct {
	tenants *database.Tenants
}

// NewRepository creates an attendance repository over the tenant accessor.
func NewRepository(tenants *database.Tenants) *Repository {
	return &Repository{tenants: tenants}
}

// Record appends one passage to the ledger and the access event log in a
// single transaction, and returns the access event with the student's
// identity joined in. Unknown students yield pgx.ErrNoRows.
func (r *Repository) Record(ctx context.Context, tenantID, studentID int64, kind models.AccessKind) (*models.AccessEvent, string, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}
	defer conn.Close(ctx)

	var name, phone string
	err = conn.QueryRow(ctx, `SELECT name, phone FROM students WHERE id = $1`, studentID).Scan(&name, &phone)
	if err != nil {
		return nil, "", err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO attendance (student_id, kind) VALUES ($1, $2)`, studentID, kind); err != nil {
		return nil, "", err
	}
	ev := &models.AccessEvent{StudentID: studentID, Kind: kind, StudentName: name}
	if err := tx.QueryRow(ctx,
		`INSERT INTO access_events (student_id, kind) VALUES ($1, $2) RETURNING id, recorded_at`,
		studentID, kind).Scan(&ev.ID, &ev.RecordedAt); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return ev, phone, nil
}

// Month returns a student's ledger rows for one calendar month, oldest
// first.
func (r *Repository) Month(ctx context.Context, tenantID, studentID int64, year int, month time.Month) ([]models.AttendanceRecord, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows, err := conn.Query(ctx,
		`SELECT a.id, a.student_id, a.kind, a.recorded_at, s.name, s.class_name
		 FROM attendance a
		 JOIN students s ON s.id = a.student_id
		 WHERE a.student_id = $1 AND a.recorded_at >= $2 AND a.recorded_at < $3
		 ORDER BY a.recorded_at`, studentID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Recent returns the school's latest ledger rows, newest first.
func (r *Repository) Recent(ctx context.Context, tenantID int64, limit int) ([]models.AttendanceRecord, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT a.id, a.student_id, a.kind, a.recorded_at, s.name, s.class_name
		 FROM attendance a
		 JOIN students s ON s.id = a.student_id
		 ORDER BY a.recorded_at DESC, a.id DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]models.AttendanceRecord, error) {
	var list []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Kind, &rec.RecordedAt, &rec.StudentName, &rec.ClassName); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
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

// IsUnknownStudent reports whether err came from looking up a missing
// student.
func IsUnknownStudent(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
