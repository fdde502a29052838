// Package schools exposes the school directory kept in the system database.
package schools

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolgate/backend/internal/models"
)

// Repository reads and updates school records in the system database.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a school repository over the system pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const schoolColumns = `id, name, admin_name, email, address, number, zip_code, latitude, longitude, created_at`

func scanSchool(row pgx.Row) (*models.School, error) {
	var s models.School
	err := row.Scan(&s.ID, &s.Name, &s.AdminName, &s.Email, &s.Address, &s.Number, &s.ZipCode, &s.Latitude, &s.Longitude, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Schools lists every tenant, ordered by id. This is the enumeration the
// cross-tenant fan-out walks.
func (r *Repository) Schools(ctx context.Context) ([]models.School, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+schoolColumns+` FROM schools ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.School
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// School returns one school by id, or (nil, nil) when absent.
func (r *Repository) School(ctx context.Context, id int64) (*models.School, error) {
	s, err := scanSchool(r.pool.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Search matches school names case-insensitively by substring.
func (r *Repository) Search(ctx context.Context, query string) ([]models.School, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+schoolColumns+` FROM schools WHERE name ILIKE '%' || $1 || '%' ORDER BY name`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.School
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// UpdateSettings overwrites the guardian-visible profile fields of a school.
func (r *Repository) UpdateSettings(ctx context.Context, schoolID int64, in models.SchoolSettings) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE schools SET address = $2, number = $3, zip_code = $4, latitude = $5, longitude = $6 WHERE id = $1`,
		schoolID, in.Address, in.Number, in.ZipCode, in.Latitude, in.Longitude)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
