// Package students manages tenant-scope student records, cohorts, and the
// student-to-guardian links that drive every guardian-side view.
package students

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/database"
)

// Repository persists students inside one school's database. Every method
// opens a fresh tenant connection scoped to the call.
type Repository struct {
	tenants *database.Tenants
}

// NewRepository creates a student repository over the tenant accessor.
func NewRepository(tenants *database.Tenants) *Repository {
	return &Repository{tenants: tenants}
}

const studentColumns = `id, name, parent_email, phone, photo_url, class_name, age, created_at`

func scanStudent(row pgx.Row) (*models.Student, error) {
	var s models.Student
	err := row.Scan(&s.ID, &s.Name, &s.ParentEmail, &s.Phone, &s.PhotoURL, &s.ClassName, &s.Age, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a student and returns it with its id assigned.
func (r *Repository) Create(ctx context.Context, tenantID int64, s *models.Student) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	return conn.QueryRow(ctx,
		`INSERT INTO students (name, parent_email, phone, photo_url, class_name, age, face_descriptor)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		s.Name, s.ParentEmail, s.Phone, s.PhotoURL, s.ClassName, s.Age, s.FaceDescriptor,
	).Scan(&s.ID, &s.CreatedAt)
}

// Student returns one student by id, or (nil, nil) when absent.
func (r *Repository) Student(ctx context.Context, tenantID, studentID int64) (*models.Student, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	s, err := scanStudent(conn.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, studentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Students lists every student in the school, newest first.
func (r *Repository) Students(ctx context.Context, tenantID int64) ([]models.Student, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStudents(rows)
}

// Search matches student names case-insensitively by substring.
func (r *Repository) Search(ctx context.Context, tenantID int64, query string) ([]models.Student, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT `+studentColumns+` FROM students WHERE name ILIKE '%' || $1 || '%' ORDER BY name`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStudents(rows)
}

func collectStudents(rows pgx.Rows) ([]models.Student, error) {
	var list []models.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Update overwrites a student's mutable fields.
func (r *Repository) Update(ctx context.Context, tenantID int64, s *models.Student) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx,
		`UPDATE students SET name = $2, parent_email = $3, phone = $4, photo_url = $5, class_name = $6, age = $7 WHERE id = $1`,
		s.ID, s.Name, s.ParentEmail, s.Phone, s.PhotoURL, s.ClassName, s.Age)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateFaceDescriptor replaces the stored recognition blob.
func (r *Repository) UpdateFaceDescriptor(ctx context.Context, tenantID, studentID int64, descriptor []byte) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx, `UPDATE students SET face_descriptor = $2 WHERE id = $1`, studentID, descriptor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a student; attendance, links, and participations cascade.
func (r *Repository) Delete(ctx context.Context, tenantID, studentID int64) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx, `DELETE FROM students WHERE id = $1`, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// LinkGuardian attaches a guardian to a student and reports whether a new
// link was made; re-linking an existing pair changes nothing.
func (r *Repository) LinkGuardian(ctx context.Context, tenantID, studentID, guardianID int64) (bool, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return false, err
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx,
		`INSERT INTO student_guardians (student_id, guardian_id) VALUES ($1, $2)
		 ON CONFLICT (student_id, guardian_id) DO NOTHING`,
		studentID, guardianID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UnlinkGuardian detaches a guardian from a student.
func (r *Repository) UnlinkGuardian(ctx context.Context, tenantID, studentID, guardianID int64) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx,
		`DELETE FROM student_guardians WHERE student_id = $1 AND guardian_id = $2`, studentID, guardianID)
	return err
}

// LinkedStudents returns the students of this school linked to the guardian.
// An empty result with no error simply means the guardian has no presence in
// this tenant.
func (r *Repository) LinkedStudents(ctx context.Context, tenantID, guardianID int64) ([]models.Student, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT s.id, s.name, s.parent_email, s.phone, s.photo_url, s.class_name, s.age, s.created_at, sg.linked_at
		 FROM students s
		 JOIN student_guardians sg ON sg.student_id = s.id
		 WHERE sg.guardian_id = $1
		 ORDER BY s.id`, guardianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Student
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.ParentEmail, &s.Phone, &s.PhotoURL, &s.ClassName, &s.Age, &s.CreatedAt, &s.LinkedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Guardians returns the guardian ids linked to a student.
func (r *Repository) Guardians(ctx context.Context, tenantID, studentID int64) ([]int64, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT guardian_id FROM student_guardians WHERE student_id = $1 ORDER BY guardian_id`, studentID)
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

// StudentsByClass returns the roster of one cohort.
func (r *Repository) StudentsByClass(ctx context.Context, tenantID, classID int64) ([]models.Student, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx,
		`SELECT `+studentColumns+` FROM students
		 WHERE class_name = (SELECT name FROM classes WHERE id = $1)
		 ORDER BY name`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStudents(rows)
}

// Classes lists the school's cohorts.
func (r *Repository) Classes(ctx context.Context, tenantID int64) ([]models.Class, error) {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, `SELECT id, name, description FROM classes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Class
	for rows.Next() {
		var cl models.Class
		if err := rows.Scan(&cl.ID, &cl.Name, &cl.Description); err != nil {
			return nil, err
		}
		list = append(list, cl)
	}
	return list, rows.Err()
}

// CreateClass adds a cohort; duplicate names are rejected by the schema.
func (r *Repository) CreateClass(ctx context.Context, tenantID int64, cl *models.Class) error {
	conn, err := r.tenants.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	return conn.QueryRow(ctx,
		`INSERT INTO classes (name, description) VALUES ($1, $2) RETURNING id`,
		cl.Name, cl.Description).Scan(&cl.ID)
}
