package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/partition"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

// PostgresTenantRepository implements TenantRepository using PostgreSQL.
// The organizations table carries a unique index on normalized_name, which
// is the backstop that makes the service-level check-then-act safe under
// concurrent creates.
type PostgresTenantRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTenantRepository creates a new PostgresTenantRepository
func NewPostgresTenantRepository(pool *pgxpool.Pool) *PostgresTenantRepository {
	return &PostgresTenantRepository{pool: pool}
}

// Exists reports whether a tenant with this name is registered
func (r *PostgresTenantRepository) Exists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM organizations WHERE normalized_name = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, partition.NormalizeName(name)).Scan(&exists)
	return exists, err
}

// GetByName retrieves a tenant by name
func (r *PostgresTenantRepository) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	query := `
		SELECT id, name, partition_id, admin_id, created_at, updated_at
		FROM organizations
		WHERE normalized_name = $1
	`
	tenant := &domain.Tenant{}
	err := r.pool.QueryRow(ctx, query, partition.NormalizeName(name)).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.PartitionID,
		&tenant.AdminID,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}

// Insert registers a new tenant
func (r *PostgresTenantRepository) Insert(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO organizations (id, name, normalized_name, partition_id, admin_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		partition.NormalizeName(tenant.Name),
		tenant.PartitionID,
		tenant.AdminID,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("organization %q: %w", tenant.Name, domain.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// Rename atomically updates a tenant's name and partition ID in one
// statement, so the directory never exposes a half-renamed entry.
func (r *PostgresTenantRepository) Rename(ctx context.Context, name, newName, newPartitionID string) (*domain.Tenant, error) {
	query := `
		UPDATE organizations
		SET name = $2, normalized_name = $3, partition_id = $4, updated_at = $5
		WHERE normalized_name = $1
		RETURNING id, name, partition_id, admin_id, created_at, updated_at
	`
	tenant := &domain.Tenant{}
	err := r.pool.QueryRow(ctx, query,
		partition.NormalizeName(name),
		newName,
		partition.NormalizeName(newName),
		newPartitionID,
		time.Now().UTC(),
	).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.PartitionID,
		&tenant.AdminID,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("organization %q: %w", name, domain.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("organization %q: %w", newName, domain.ErrAlreadyExists)
		}
		return nil, err
	}
	return tenant, nil
}

// Remove deletes the directory entry
func (r *PostgresTenantRepository) Remove(ctx context.Context, name string) error {
	query := `DELETE FROM organizations WHERE normalized_name = $1`
	result, err := r.pool.Exec(ctx, query, partition.NormalizeName(name))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("organization %q: %w", name, domain.ErrNotFound)
	}
	return nil
}
