package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/partition"
)

// PostgresCredentialRepository implements CredentialRepository using
// PostgreSQL. The admins table carries a unique index on email and a
// normalized_tenant_name column mirroring organizations.normalized_name,
// so tenant lookups match the same normalization the directory uses.
type PostgresCredentialRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialRepository creates a new PostgresCredentialRepository
func NewPostgresCredentialRepository(pool *pgxpool.Pool) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{pool: pool}
}

// Create stores a new admin credential
func (r *PostgresCredentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	query := `
		INSERT INTO admins (id, email, password_hash, tenant_name, normalized_tenant_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		cred.ID,
		cred.Email,
		cred.PasswordHash,
		cred.TenantName,
		partition.NormalizeName(cred.TenantName),
		cred.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("admin %q: %w", cred.Email, domain.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// FindByEmail retrieves a credential by email
func (r *PostgresCredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	query := `
		SELECT id, email, password_hash, tenant_name, created_at
		FROM admins
		WHERE email = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

// FindByTenant retrieves the credential owning the named tenant
func (r *PostgresCredentialRepository) FindByTenant(ctx context.Context, tenantName string) (*domain.Credential, error) {
	query := `
		SELECT id, email, password_hash, tenant_name, created_at
		FROM admins
		WHERE normalized_tenant_name = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, partition.NormalizeName(tenantName)))
}

// UpdateByTenant applies optional email/password changes to the tenant's
// credential
func (r *PostgresCredentialRepository) UpdateByTenant(ctx context.Context, tenantName string, update domain.CredentialUpdate) error {
	if update.Email == nil && update.PasswordHash == nil {
		return nil
	}
	query := `
		UPDATE admins
		SET email = COALESCE($2, email), password_hash = COALESCE($3, password_hash)
		WHERE normalized_tenant_name = $1
	`
	result, err := r.pool.Exec(ctx, query, partition.NormalizeName(tenantName), update.Email, update.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("admin email: %w", domain.ErrAlreadyExists)
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("admin for %q: %w", tenantName, domain.ErrNotFound)
	}
	return nil
}

// RenameTenantRefs bulk-updates every credential referencing oldName
func (r *PostgresCredentialRepository) RenameTenantRefs(ctx context.Context, oldName, newName string) error {
	query := `UPDATE admins SET tenant_name = $2, normalized_tenant_name = $3 WHERE normalized_tenant_name = $1`
	_, err := r.pool.Exec(ctx, query, partition.NormalizeName(oldName), newName, partition.NormalizeName(newName))
	return err
}

// DeleteByTenant removes every credential of the named tenant
func (r *PostgresCredentialRepository) DeleteByTenant(ctx context.Context, tenantName string) error {
	query := `DELETE FROM admins WHERE normalized_tenant_name = $1`
	_, err := r.pool.Exec(ctx, query, partition.NormalizeName(tenantName))
	return err
}

// DeleteByID removes the credential with the given id
func (r *PostgresCredentialRepository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM admins WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *PostgresCredentialRepository) scanOne(row pgx.Row) (*domain.Credential, error) {
	cred := &domain.Credential{}
	err := row.Scan(
		&cred.ID,
		&cred.Email,
		&cred.PasswordHash,
		&cred.TenantName,
		&cred.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cred, nil
}
