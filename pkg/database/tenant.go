package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/config"
)

//go:embed tenant_schema.sql
var tenantSchema string

// pgUnknownDatabase is the SQLSTATE Postgres reports when connecting to a
// database that does not exist.
const pgUnknownDatabase = "3D000"

// TenantConn is an open handle to one school's isolated database.
// It embeds *pgx.Conn and therefore satisfies Querier.
type TenantConn struct {
	ID int64
	*pgx.Conn
}

// Close releases the tenant connection.
func (c *TenantConn) Close(ctx context.Context) error {
	return c.Conn.Close(ctx)
}

// Tenants opens per-school databases, one fresh connection per operation.
// A long-lived shared handle per tenant is deliberately avoided: the
// connection overhead buys simplicity and keeps handles off shared threads.
// The tenant schema is ensured idempotently, once per tenant per process.
type Tenants struct {
	cfg    config.DatabaseConfig
	logger *zap.Logger

	mu      sync.Mutex
	ensured map[int64]struct{}
}

// NewTenants creates the tenant store accessor.
func NewTenants(cfg config.DatabaseConfig, logger *zap.Logger) *Tenants {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tenants{cfg: cfg, logger: logger, ensured: make(map[int64]struct{})}
}

// Open connects to the tenant database for tenantID, creating the database
// (when configured) and ensuring its schema is current. The caller must
// Close the returned handle regardless of what it does with it.
func (t *Tenants) Open(ctx context.Context, tenantID int64) (*TenantConn, error) {
	conn, err := pgx.Connect(ctx, t.cfg.TenantDSN(tenantID))
	if err != nil {
		if !t.cfg.TenantAutoCreate || !isUnknownDatabase(err) {
			return nil, fmt.Errorf("open tenant %d: %w", tenantID, err)
		}
		if cerr := t.createDatabase(ctx, tenantID); cerr != nil {
			return nil, fmt.Errorf("create tenant %d: %w", tenantID, cerr)
		}
		conn, err = pgx.Connect(ctx, t.cfg.TenantDSN(tenantID))
		if err != nil {
			return nil, fmt.Errorf("open tenant %d: %w", tenantID, err)
		}
	}
	if err := t.ensureSchema(ctx, tenantID, conn); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("ensure tenant %d schema: %w", tenantID, err)
	}
	return &TenantConn{ID: tenantID, Conn: conn}, nil
}

func (t *Tenants) ensureSchema(ctx context.Context, tenantID int64, conn *pgx.Conn) error {
	t.mu.Lock()
	_, done := t.ensured[tenantID]
	t.mu.Unlock()
	if done {
		return nil
	}
	if _, err := conn.Exec(ctx, tenantSchema); err != nil {
		return err
	}
	t.mu.Lock()
	t.ensured[tenantID] = struct{}{}
	t.mu.Unlock()
	t.logger.Debug("tenant schema ensured", zap.Int64("tenant_id", tenantID))
	return nil
}

// createDatabase creates the tenant database via the system DSN. CREATE
// DATABASE cannot run inside a transaction, so this uses a throwaway
// connection.
func (t *Tenants) createDatabase(ctx context.Context, tenantID int64) error {
	admin, err := pgx.Connect(ctx, t.cfg.SystemDSN())
	if err != nil {
		return fmt.Errorf("admin connect: %w", err)
	}
	defer admin.Close(ctx)

	name := fmt.Sprintf("%s%d", t.cfg.TenantNamePrefix, tenantID)
	if _, err := admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		// Lost a race with another instance; the database existing is fine.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P04" {
			return nil
		}
		return err
	}
	t.logger.Info("tenant database created", zap.Int64("tenant_id", tenantID), zap.String("name", name))
	return nil
}

func isUnknownDatabase(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUnknownDatabase
}
