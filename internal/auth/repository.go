package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolgate/backend/internal/models"
)

// Repository handles system-database identity persistence: guardian,
// school, and seeded admin accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository over the system pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GuardianByID returns a guardian by id, or (nil, nil) when absent.
func (r *Repository) GuardianByID(ctx context.Context, id int64) (*models.Guardian, error) {
	const q = `SELECT id, name, email, password_hash, phone, created_at FROM guardians WHERE id = $1`
	var g models.Guardian
	err := r.pool.QueryRow(ctx, q, id).Scan(&g.ID, &g.Name, &g.Email, &g.PasswordHash, &g.Phone, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GuardianByEmail returns a guardian by email, or (nil, nil) when absent.
func (r *Repository) GuardianByEmail(ctx context.Context, email string) (*models.Guardian, error) {
	const q = `SELECT id, name, email, password_hash, phone, created_at FROM guardians WHERE email = $1`
	var g models.Guardian
	err := r.pool.QueryRow(ctx, q, email).Scan(&g.ID, &g.Name, &g.Email, &g.PasswordHash, &g.Phone, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGuardian inserts a new guardian identity.
func (r *Repository) CreateGuardian(ctx context.Context, name, email, passwordHash, phone string) (*models.Guardian, error) {
	const q = `INSERT INTO guardians (name, email, password_hash, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, password_hash, phone, created_at`
	var g models.Guardian
	err := r.pool.QueryRow(ctx, q, name, email, passwordHash, phone).
		Scan(&g.ID, &g.Name, &g.Email, &g.PasswordHash, &g.Phone, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// AdminByEmail returns a super admin account by email, or (nil, nil) when
// absent. Admin accounts are seeded directly in the database; there is no
// registration endpoint.
func (r *Repository) AdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const q = `SELECT id, email, password_hash FROM super_admins WHERE email = $1`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, email).Scan(&a.ID, &a.Email, &a.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SchoolByEmail returns a school account by login email, or (nil, nil) when absent.
func (r *Repository) SchoolByEmail(ctx context.Context, email string) (*models.School, error) {
	const q = `SELECT id, name, admin_name, email, password_hash, created_at FROM schools WHERE email = $1`
	var s models.School
	err := r.pool.QueryRow(ctx, q, email).Scan(&s.ID, &s.Name, &s.AdminName, &s.Email, &s.PasswordHash, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSchool inserts a new school, allocating its tenant id. The tenant
// database itself is created lazily on first open.
func (r *Repository) CreateSchool(ctx context.Context, name, adminName, email, passwordHash string) (*models.School, error) {
	const q = `INSERT INTO schools (name, admin_name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, admin_name, email, password_hash, created_at`
	var s models.School
	err := r.pool.QueryRow(ctx, q, name, adminName, email, passwordHash).
		Scan(&s.ID, &s.Name, &s.AdminName, &s.Email, &s.PasswordHash, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
