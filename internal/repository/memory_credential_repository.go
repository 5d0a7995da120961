package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/partition"
)

// MemoryCredentialRepository is an in-memory implementation of
// CredentialRepository for testing.
type MemoryCredentialRepository struct {
	mu    sync.RWMutex
	creds map[string]*domain.Credential // keyed by credential ID
}

// NewMemoryCredentialRepository creates a new in-memory credential store
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		creds: make(map[string]*domain.Credential),
	}
}

// Create stores a new admin credential
func (r *MemoryCredentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.creds {
		if existing.Email == cred.Email {
			return fmt.Errorf("admin %q: %w", cred.Email, domain.ErrAlreadyExists)
		}
	}
	r.creds[cred.ID] = copyCredential(cred)
	return nil
}

// FindByEmail retrieves a credential by email
func (r *MemoryCredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cred := range r.creds {
		if cred.Email == email {
			return copyCredential(cred), nil
		}
	}
	return nil, nil
}

// FindByTenant retrieves the credential owning the named tenant
func (r *MemoryCredentialRepository) FindByTenant(ctx context.Context, tenantName string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := partition.NormalizeName(tenantName)
	for _, cred := range r.creds {
		if partition.NormalizeName(cred.TenantName) == key {
			return copyCredential(cred), nil
		}
	}
	return nil, nil
}

// UpdateByTenant applies optional email/password changes
func (r *MemoryCredentialRepository) UpdateByTenant(ctx context.Context, tenantName string, update domain.CredentialUpdate) error {
	if update.Email == nil && update.PasswordHash == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := partition.NormalizeName(tenantName)
	for _, cred := range r.creds {
		if partition.NormalizeName(cred.TenantName) != key {
			continue
		}
		if update.Email != nil {
			cred.Email = *update.Email
		}
		if update.PasswordHash != nil {
			cred.PasswordHash = *update.PasswordHash
		}
		return nil
	}
	return fmt.Errorf("admin for %q: %w", tenantName, domain.ErrNotFound)
}

// RenameTenantRefs bulk-updates every credential referencing oldName
func (r *MemoryCredentialRepository) RenameTenantRefs(ctx context.Context, oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := partition.NormalizeName(oldName)
	for _, cred := range r.creds {
		if partition.NormalizeName(cred.TenantName) == key {
			cred.TenantName = newName
		}
	}
	return nil
}

// DeleteByTenant removes every credential of the named tenant
func (r *MemoryCredentialRepository) DeleteByTenant(ctx context.Context, tenantName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := partition.NormalizeName(tenantName)
	for id, cred := range r.creds {
		if partition.NormalizeName(cred.TenantName) == key {
			delete(r.creds, id)
		}
	}
	return nil
}

// DeleteByID removes the credential with the given id
func (r *MemoryCredentialRepository) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creds, id)
	return nil
}

func copyCredential(c *domain.Credential) *domain.Credential {
	copied := *c
	return &copied
}
