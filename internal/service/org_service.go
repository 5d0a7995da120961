package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/dto"
	"github.com/orgstack/org-management-service/internal/monitoring"
	"github.com/orgstack/org-management-service/internal/partition"
	"github.com/orgstack/org-management-service/internal/repository"
	"github.com/orgstack/org-management-service/internal/saga"
)

// OrgService orchestrates the tenant lifecycle across the credential
// store, the tenant directory and the partition manager. Create and
// rename run as sagas with compensating actions; delete is forward-only
// with partial-failure reporting. Each operation holds the per-tenant
// lock for its full duration.
type OrgService interface {
	// Create provisions a new organization: admin credential, empty data
	// partition and directory entry.
	Create(ctx context.Context, req *dto.CreateOrgRequest) (*dto.OrgResponse, error)
	// Get retrieves an organization by name.
	Get(ctx context.Context, name string) (*dto.OrgResponse, error)
	// Update renames the organization and/or updates its admin account.
	// Credential changes apply after the rename's directory update
	// commits.
	Update(ctx context.Context, req *dto.UpdateOrgRequest) (*dto.OrgResponse, error)
	// Delete destroys the organization's partition, credentials and
	// directory entry, in that order.
	Delete(ctx context.Context, name string) error
}

type orgService struct {
	tenants    repository.TenantRepository
	creds      repository.CredentialRepository
	partitions repository.PartitionManager
	locks      *keyedMutex
	log        *zap.Logger
}

// NewOrgService creates a new OrgService
func NewOrgService(
	tenants repository.TenantRepository,
	creds repository.CredentialRepository,
	partitions repository.PartitionManager,
	log *zap.Logger,
) OrgService {
	return &orgService{
		tenants:    tenants,
		creds:      creds,
		partitions: partitions,
		locks:      newKeyedMutex(),
		log:        log,
	}
}

// Create provisions a new organization
func (s *orgService) Create(ctx context.Context, req *dto.CreateOrgRequest) (*dto.OrgResponse, error) {
	name := strings.TrimSpace(req.OrganizationName)
	if name == "" {
		return nil, fmt.Errorf("organization name must not be empty")
	}

	unlock := s.locks.Lock(partition.NormalizeName(name))
	defer unlock()

	// Early check; the directory's unique index backstops the race.
	exists, err := s.tenants.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		monitoring.LifecycleOps.WithLabelValues("create", "conflict").Inc()
		return nil, fmt.Errorf("organization %q: %w", name, domain.ErrAlreadyExists)
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cred := &domain.Credential{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		TenantName:   name,
		CreatedAt:    now,
	}
	tenant := &domain.Tenant{
		ID:          uuid.New().String(),
		Name:        name,
		PartitionID: partition.DeriveID(name),
		AdminID:     cred.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	def := saga.NewDefinition("org-create")
	def.AddStep(&saga.Step{
		Name:        "create-credential",
		Description: "store the admin credential",
		Execute: func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
			return nil, s.creds.Create(ctx, cred)
		},
		Compensate: func(ctx context.Context, data map[string]interface{}) error {
			// By id, not tenant name: a rollback must never touch a
			// credential another racer just committed under the same name.
			return s.creds.DeleteByID(ctx, cred.ID)
		},
	})
	def.AddStep(&saga.Step{
		Name:        "create-partition",
		Description: "materialize the empty data partition",
		Execute: func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
			return nil, s.partitions.CreatePartition(ctx, tenant.PartitionID)
		},
		Compensate: func(ctx context.Context, data map[string]interface{}) error {
			return s.partitions.DestroyPartition(ctx, tenant.PartitionID)
		},
	})
	def.AddStep(&saga.Step{
		Name:        "insert-directory",
		Description: "commit the directory entry",
		Execute: func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
			return nil, s.tenants.Insert(ctx, tenant)
		},
	})

	if _, err := def.Execute(ctx, nil); err != nil {
		return nil, s.sagaFailure(ctx, "create", name, err)
	}

	monitoring.LifecycleOps.WithLabelValues("create", "success").Inc()
	s.log.Info("organization created",
		zap.String("organization", name),
		zap.String("partition_id", tenant.PartitionID),
	)
	return toOrgResponse(tenant), nil
}

// Get retrieves an organization by name
func (s *orgService) Get(ctx context.Context, name string) (*dto.OrgResponse, error) {
	tenant, err := s.tenants.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, fmt.Errorf("organization %q: %w", name, domain.ErrNotFound)
	}
	return toOrgResponse(tenant), nil
}

// Update renames the organization and/or updates its admin account
func (s *orgService) Update(ctx context.Context, req *dto.UpdateOrgRequest) (*dto.OrgResponse, error) {
	currentName := strings.TrimSpace(req.CurrentOrganizationName)

	unlock := s.locks.Lock(partition.NormalizeName(currentName))
	defer unlock()

	tenant, err := s.tenants.GetByName(ctx, currentName)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, fmt.Errorf("organization %q: %w", currentName, domain.ErrNotFound)
	}

	if req.NewOrganizationName != nil {
		tenant, err = s.rename(ctx, tenant, strings.TrimSpace(*req.NewOrganizationName))
		if err != nil {
			return nil, err
		}
	}

	// Credential changes apply only after the rename committed, against
	// the final name.
	if req.NewEmail != nil || req.NewPassword != nil {
		update := domain.CredentialUpdate{Email: req.NewEmail}
		if req.NewPassword != nil {
			hash, err := HashPassword(*req.NewPassword)
			if err != nil {
				return nil, err
			}
			update.PasswordHash = &hash
		}
		if err := s.creds.UpdateByTenant(ctx, tenant.Name, update); err != nil {
			return nil, err
		}
	}

	monitoring.LifecycleOps.WithLabelValues("update", "success").Inc()
	return toOrgResponse(tenant), nil
}

// rename migrates the partition, updates the directory and bulk-renames
// credential references. The old partition is destroyed only after the
// directory points at the new one, so the directory never references a
// missing partition; a failed final destroy leaves duplicate data and is
// reported, not rolled back.
func (s *orgService) rename(ctx context.Context, tenant *domain.Tenant, newName string) (*domain.Tenant, error) {
	oldName := tenant.Name
	oldPartitionID := tenant.PartitionID
	newPartitionID := partition.DeriveID(newName)

	sameTenant := partition.NormalizeName(oldName) == partition.NormalizeName(newName)
	if !sameTenant {
		exists, err := s.tenants.Exists(ctx, newName)
		if err != nil {
			return nil, err
		}
		if exists {
			monitoring.LifecycleOps.WithLabelValues("rename", "conflict").Inc()
			return nil, fmt.Errorf("organization %q: %w", newName, domain.ErrAlreadyExists)
		}
	}

	var renamed *domain.Tenant
	def := saga.NewDefinition("org-rename")

	// A pure casing change keeps the same partition: migrating onto
	// itself would duplicate every record.
	if newPartitionID != oldPartitionID {
		def.AddStep(&saga.Step{
			Name:        "migrate-partition",
			Description: "copy all records into the new partition",
			Execute: func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
				start := time.Now()
				copied, err := s.partitions.MigratePartition(ctx, oldPartitionID, newPartitionID)
				if err != nil {
					return nil, err
				}
				monitoring.MigrationDuration.Observe(time.Since(start).Seconds())
				monitoring.MigratedRecords.Observe(float64(copied))
				return map[string]interface{}{"records_copied": copied}, nil
			},
			Compensate: func(ctx context.Context, data map[string]interface{}) error {
				return s.partitions.DestroyPartition(ctx, newPartitionID)
			},
		})
	}
	def.AddStep(&saga.Step{
		Name:        "update-directory",
		Description: "commit the new name and partition id",
		Execute: func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
			updated, err := s.tenants.Rename(ctx, oldName, newName, newPartitionID)
			if err != nil {
				return nil, err
			}
			renamed = updated
			return nil, nil
		},
		Compensate: func(ctx context.Context, data map[string]interface{}) error {
			_, err := s.tenants.Rename(ctx, newName, oldName, oldPartitionID)
			return err
		},
	})
	def.AddStep(&saga.Step{
		Name:        "rename-credentials",
		Description: "repoint admin credentials at the new name",
		Execute: func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
			return nil, s.creds.RenameTenantRefs(ctx, oldName, newName)
		},
		Compensate: func(ctx context.Context, data map[string]interface{}) error {
			return s.creds.RenameTenantRefs(ctx, newName, oldName)
		},
	})

	if _, err := def.Execute(ctx, nil); err != nil {
		return nil, s.sagaFailure(ctx, "rename", oldName, err)
	}

	// Post-commit cleanup. Failure here leaves a duplicate partition,
	// which is a documented risk: reported and counted, never rolled
	// back.
	if newPartitionID != oldPartitionID {
		if err := s.partitions.DestroyPartition(context.WithoutCancel(ctx), oldPartitionID); err != nil {
			monitoring.PartialFailures.WithLabelValues("rename").Inc()
			s.log.Error("rename committed but old partition survived; duplicate data needs reconciliation",
				zap.String("organization", newName),
				zap.String("old_partition_id", oldPartitionID),
				zap.String("new_partition_id", newPartitionID),
				zap.Error(err),
			)
		}
	}

	monitoring.LifecycleOps.WithLabelValues("rename", "success").Inc()
	s.log.Info("organization renamed",
		zap.String("from", oldName),
		zap.String("to", newName),
		zap.String("partition_id", newPartitionID),
	)
	return renamed, nil
}

// Delete destroys the organization's partition, credentials and directory
// entry. The directory entry goes last: if the process dies mid-way, the
// surviving entry makes the incomplete cleanup discoverable, whereas the
// reverse order would leave an undiscoverable orphan partition.
func (s *orgService) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	unlock := s.locks.Lock(partition.NormalizeName(name))
	defer unlock()

	tenant, err := s.tenants.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if tenant == nil {
		return fmt.Errorf("organization %q: %w", name, domain.ErrNotFound)
	}

	completed := make([]string, 0, 3)
	fail := func(cause error) error {
		monitoring.PartialFailures.WithLabelValues("delete").Inc()
		pf := &domain.PartialFailureError{Op: "delete", CompletedSteps: completed, Cause: cause}
		s.log.Error("organization delete aborted mid-sequence",
			zap.String("organization", name),
			zap.Strings("completed_steps", completed),
			zap.Error(cause),
		)
		return pf
	}

	if err := s.partitions.DestroyPartition(ctx, tenant.PartitionID); err != nil {
		return fail(err)
	}
	completed = append(completed, "destroy-partition")

	if err := s.creds.DeleteByTenant(ctx, name); err != nil {
		return fail(err)
	}
	completed = append(completed, "delete-credentials")

	if err := s.tenants.Remove(ctx, name); err != nil {
		return fail(err)
	}

	monitoring.LifecycleOps.WithLabelValues("delete", "success").Inc()
	s.log.Info("organization deleted",
		zap.String("organization", name),
		zap.String("partition_id", tenant.PartitionID),
	)
	return nil
}

// sagaFailure translates saga errors: a fully compensated failure
// surfaces its cause (e.g. AlreadyExists from a late directory insert),
// while a failed compensation becomes a PartialFailure carrying the
// completed steps for reconciliation.
func (s *orgService) sagaFailure(ctx context.Context, op, name string, err error) error {
	var compErr *saga.CompensationError
	if errors.As(err, &compErr) {
		monitoring.PartialFailures.WithLabelValues(op).Inc()
		monitoring.LifecycleOps.WithLabelValues(op, "partial_failure").Inc()
		s.log.Error("lifecycle operation left orphaned resources",
			zap.String("operation", op),
			zap.String("organization", name),
			zap.Strings("completed_steps", compErr.Completed),
			zap.Strings("unreconciled_steps", compErr.Unreconciled),
			zap.Error(compErr.Err),
		)
		return &domain.PartialFailureError{Op: op, CompletedSteps: compErr.Completed, Cause: compErr.Err}
	}

	monitoring.LifecycleOps.WithLabelValues(op, "error").Inc()
	var stepErr *saga.StepError
	if errors.As(err, &stepErr) {
		s.log.Warn("lifecycle operation rolled back",
			zap.String("operation", op),
			zap.String("organization", name),
			zap.String("failed_step", stepErr.Step),
			zap.Error(stepErr.Err),
		)
		return stepErr.Err
	}
	return err
}

func toOrgResponse(tenant *domain.Tenant) *dto.OrgResponse {
	return &dto.OrgResponse{
		ID:               tenant.ID,
		OrganizationName: tenant.Name,
		PartitionID:      tenant.PartitionID,
		AdminID:          tenant.AdminID,
		CreatedAt:        tenant.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        tenant.UpdatedAt.Format(time.RFC3339),
	}
}
