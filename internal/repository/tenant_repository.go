package repository

import (
	"context"

	"github.com/orgstack/org-management-service/internal/domain"
)

// TenantRepository is the authoritative directory mapping organization
// names to their partition and admin. Lookups match names
// case-insensitively (normalized form); the backing store enforces
// uniqueness on the normalized name as the correctness backstop for
// check-then-act races.
type TenantRepository interface {
	// Exists reports whether a tenant with this name is registered.
	Exists(ctx context.Context, name string) (bool, error)
	// GetByName retrieves a tenant by name. Returns (nil, nil) when absent.
	GetByName(ctx context.Context, name string) (*domain.Tenant, error)
	// Insert registers a new tenant. Returns domain.ErrAlreadyExists when
	// the normalized name is taken.
	Insert(ctx context.Context, tenant *domain.Tenant) error
	// Rename atomically updates a tenant's name and partition ID.
	// Returns domain.ErrNotFound when name is absent and
	// domain.ErrAlreadyExists when newName is taken.
	Rename(ctx context.Context, name, newName, newPartitionID string) (*domain.Tenant, error)
	// Remove deletes the directory entry. Returns domain.ErrNotFound when
	// absent.
	Remove(ctx context.Context, name string) error
}
