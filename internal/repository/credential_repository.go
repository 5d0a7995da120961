package repository

import (
	"context"

	"github.com/orgstack/org-management-service/internal/domain"
)

// CredentialRepository holds admin identity records. Email is unique
// across all tenants; exactly one credential is canonical per tenant.
type CredentialRepository interface {
	// Create stores a new admin credential. Returns
	// domain.ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, cred *domain.Credential) error
	// FindByEmail retrieves a credential by email. Returns (nil, nil)
	// when absent.
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	// FindByTenant retrieves the credential owning the named tenant.
	// Returns (nil, nil) when absent.
	FindByTenant(ctx context.Context, tenantName string) (*domain.Credential, error)
	// UpdateByTenant applies the provided field changes to the tenant's
	// credential. Nil fields are left untouched.
	UpdateByTenant(ctx context.Context, tenantName string, update domain.CredentialUpdate) error
	// RenameTenantRefs bulk-updates every credential referencing oldName
	// to reference newName. Safe because directory uniqueness is enforced
	// before rename runs.
	RenameTenantRefs(ctx context.Context, oldName, newName string) error
	// DeleteByTenant removes every credential of the named tenant.
	DeleteByTenant(ctx context.Context, tenantName string) error
	// DeleteByID removes the credential with the given id. Deleting an
	// absent id is not an error, so rollbacks can retry safely.
	DeleteByID(ctx context.Context, id string) error
}
