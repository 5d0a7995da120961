package di

import (
	"go.uber.org/zap"

	"github.com/orgstack/org-management-service/internal/config"
	"github.com/orgstack/org-management-service/internal/handler"
	"github.com/orgstack/org-management-service/internal/repository"
	"github.com/orgstack/org-management-service/internal/service"
	"github.com/orgstack/org-management-service/pkg/database"
)

// Container holds all dependencies for the organization management service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis repository.RedisClient

	// Repositories
	TenantRepo     repository.TenantRepository
	CredentialRepo repository.CredentialRepository
	PartitionMgr   repository.PartitionManager

	// Services
	OrgService  service.OrgService
	AuthService service.AuthService

	// Handlers
	HealthHandler *handler.HealthHandler
	OrgHandler    *handler.OrgHandler
	AuthHandler   *handler.AuthHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Cfg   *config.Config
	DB    *database.PostgresDB
	Redis repository.RedisClient
	Log   *zap.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:    cfg.DB,
		Redis: cfg.Redis,
	}

	// Initialize repositories
	pool := cfg.DB.Pool()
	c.TenantRepo = repository.NewPostgresTenantRepository(pool)
	c.CredentialRepo = repository.NewPostgresCredentialRepository(pool)
	c.PartitionMgr = repository.NewPostgresPartitionManager(pool)

	// Wrap the directory with a read-through cache when Redis is configured
	if cfg.Redis != nil {
		c.TenantRepo = repository.NewCachedTenantRepository(c.TenantRepo, cfg.Redis, cfg.Cfg.Redis.CacheTTL)
	}

	// Initialize services
	c.OrgService = service.NewOrgService(c.TenantRepo, c.CredentialRepo, c.PartitionMgr, cfg.Log)
	c.AuthService = service.NewAuthService(c.CredentialRepo, &service.AuthServiceConfig{
		Secret:   cfg.Cfg.JWT.Secret,
		TokenTTL: cfg.Cfg.JWT.AccessTokenTTL,
	})

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(cfg.Cfg.App.Name, cfg.Cfg.App.Version, cfg.DB)
	c.OrgHandler = handler.NewOrgHandler(c.OrgService, c.AuthService, cfg.Log)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService, cfg.Log)

	return c
}
