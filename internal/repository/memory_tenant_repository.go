package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/partition"
)

// MemoryTenantRepository is an in-memory implementation of
// TenantRepository for testing. Keys are normalized names, mirroring the
// unique index the Postgres implementation relies on.
type MemoryTenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant
}

// NewMemoryTenantRepository creates a new in-memory tenant directory
func NewMemoryTenantRepository() *MemoryTenantRepository {
	return &MemoryTenantRepository{
		tenants: make(map[string]*domain.Tenant),
	}
}

// Exists reports whether a tenant with this name is registered
func (r *MemoryTenantRepository) Exists(ctx context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tenants[partition.NormalizeName(name)]
	return exists, nil
}

// GetByName retrieves a tenant by name
func (r *MemoryTenantRepository) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenant, exists := r.tenants[partition.NormalizeName(name)]
	if !exists {
		return nil, nil
	}
	return copyTenant(tenant), nil
}

// Insert registers a new tenant
func (r *MemoryTenantRepository) Insert(ctx context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := partition.NormalizeName(tenant.Name)
	if _, exists := r.tenants[key]; exists {
		return fmt.Errorf("organization %q: %w", tenant.Name, domain.ErrAlreadyExists)
	}
	r.tenants[key] = copyTenant(tenant)
	return nil
}

// Rename atomically updates a tenant's name and partition ID
func (r *MemoryTenantRepository) Rename(ctx context.Context, name, newName, newPartitionID string) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	oldKey := partition.NormalizeName(name)
	newKey := partition.NormalizeName(newName)

	tenant, exists := r.tenants[oldKey]
	if !exists {
		return nil, fmt.Errorf("organization %q: %w", name, domain.ErrNotFound)
	}
	if _, taken := r.tenants[newKey]; taken && newKey != oldKey {
		return nil, fmt.Errorf("organization %q: %w", newName, domain.ErrAlreadyExists)
	}

	delete(r.tenants, oldKey)
	tenant.Name = newName
	tenant.PartitionID = newPartitionID
	tenant.UpdatedAt = time.Now().UTC()
	r.tenants[newKey] = tenant
	return copyTenant(tenant), nil
}

// Remove deletes the directory entry
func (r *MemoryTenantRepository) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := partition.NormalizeName(name)
	if _, exists := r.tenants[key]; !exists {
		return fmt.Errorf("organization %q: %w", name, domain.ErrNotFound)
	}
	delete(r.tenants, key)
	return nil
}

func copyTenant(t *domain.Tenant) *domain.Tenant {
	copied := *t
	return &copied
}
