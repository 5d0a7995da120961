package domain

import (
	"time"
)

// Tenant represents one organization in the multi-tenant system. Name is
// unique across the directory (case-insensitively); PartitionID is derived
// from Name and updated together with it on rename.
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"organization_name"`
	PartitionID string    `json:"partition_id"`
	AdminID     string    `json:"admin_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Credential represents the single admin account owning a tenant. Email is
// unique across all tenants; TenantName is a back-reference kept in sync by
// the rename flow.
type Credential struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TenantName   string    `json:"organization_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// CredentialUpdate carries optional admin account changes. Nil fields are
// left untouched.
type CredentialUpdate struct {
	Email        *string
	PasswordHash *string
}

// PartitionRecord is one schemaless document inside a tenant's partition.
type PartitionRecord struct {
	ID        string                 `json:"id"`
	Doc       map[string]interface{} `json:"doc"`
	CreatedAt time.Time              `json:"created_at"`
}

// TokenClaims is the decoded, verified content of a bearer token. Never
// persisted; valid only before Expiry and only for the tenant it names.
type TokenClaims struct {
	AdminID    string
	TenantName string
	ExpiresAt  time.Time
}
