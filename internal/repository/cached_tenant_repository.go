package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/partition"
)

// RedisClient is the subset of go-redis used by the directory cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedTenantRepository decorates a TenantRepository with a read-through
// Redis cache on name lookups. Mutations invalidate before delegating, so
// a failed write never leaves a stale positive entry behind. Cache errors
// are swallowed: the directory remains the source of truth.
type CachedTenantRepository struct {
	inner TenantRepository
	redis RedisClient
	ttl   time.Duration
}

// NewCachedTenantRepository creates a new CachedTenantRepository
func NewCachedTenantRepository(inner TenantRepository, client RedisClient, ttl time.Duration) *CachedTenantRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedTenantRepository{inner: inner, redis: client, ttl: ttl}
}

// Exists reports whether a tenant with this name is registered
func (r *CachedTenantRepository) Exists(ctx context.Context, name string) (bool, error) {
	if cached, err := r.redis.Get(ctx, cacheKey(name)).Result(); err == nil && cached != "" {
		return true, nil
	}
	return r.inner.Exists(ctx, name)
}

// GetByName retrieves a tenant by name, consulting the cache first
func (r *CachedTenantRepository) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	key := cacheKey(name)
	if cached, err := r.redis.Get(ctx, key).Result(); err == nil {
		tenant := &domain.Tenant{}
		if err := json.Unmarshal([]byte(cached), tenant); err == nil {
			return tenant, nil
		}
	}

	tenant, err := r.inner.GetByName(ctx, name)
	if err != nil || tenant == nil {
		return tenant, err
	}

	if data, err := json.Marshal(tenant); err == nil {
		r.redis.SetEx(ctx, key, data, r.ttl)
	}
	return tenant, nil
}

// Insert registers a new tenant
func (r *CachedTenantRepository) Insert(ctx context.Context, tenant *domain.Tenant) error {
	r.redis.Del(ctx, cacheKey(tenant.Name))
	return r.inner.Insert(ctx, tenant)
}

// Rename atomically updates a tenant's name and partition ID, dropping
// both the old and new cache entries
func (r *CachedTenantRepository) Rename(ctx context.Context, name, newName, newPartitionID string) (*domain.Tenant, error) {
	r.redis.Del(ctx, cacheKey(name), cacheKey(newName))
	return r.inner.Rename(ctx, name, newName, newPartitionID)
}

// Remove deletes the directory entry
func (r *CachedTenantRepository) Remove(ctx context.Context, name string) error {
	r.redis.Del(ctx, cacheKey(name))
	return r.inner.Remove(ctx, name)
}

func cacheKey(name string) string {
	return fmt.Sprintf("org:%s", partition.NormalizeName(name))
}
