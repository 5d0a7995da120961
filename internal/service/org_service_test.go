package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/dto"
	"github.com/orgstack/org-management-service/internal/partition"
	"github.com/orgstack/org-management-service/internal/repository"
)

type orgFixture struct {
	tenants    *repository.MemoryTenantRepository
	creds      *repository.MemoryCredentialRepository
	partitions *repository.MemoryPartitionManager
	svc        OrgService
}

func newOrgFixture(t *testing.T) *orgFixture {
	t.Helper()
	f := &orgFixture{
		tenants:    repository.NewMemoryTenantRepository(),
		creds:      repository.NewMemoryCredentialRepository(),
		partitions: repository.NewMemoryPartitionManager(),
	}
	f.svc = NewOrgService(f.tenants, f.creds, f.partitions, zap.NewNop())
	return f
}

func (f *orgFixture) create(t *testing.T, name, email string) *dto.OrgResponse {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), &dto.CreateOrgRequest{
		OrganizationName: name,
		Email:            email,
		Password:         "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	return resp
}

func TestCreateRoundTrip(t *testing.T) {
	f := newOrgFixture(t)
	created := f.create(t, "Acme", "admin@acme.io")

	if want := partition.DeriveID("Acme"); created.PartitionID != want {
		t.Errorf("PartitionID = %q, want %q", created.PartitionID, want)
	}

	got, err := f.svc.Get(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OrganizationName != "Acme" || got.PartitionID != created.PartitionID {
		t.Errorf("Get() = %+v, want name Acme with partition %s", got, created.PartitionID)
	}

	if !f.partitions.PartitionExists(created.PartitionID) {
		t.Error("partition was not materialized")
	}
	count, err := f.partitions.CountRecords(context.Background(), created.PartitionID)
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if count != 0 {
		t.Errorf("new partition holds %d records, want 0 (sentinel must be deleted)", count)
	}

	cred, err := f.creds.FindByTenant(context.Background(), "Acme")
	if err != nil || cred == nil {
		t.Fatalf("FindByTenant() = %v, %v, want credential", cred, err)
	}
	if cred.Email != "admin@acme.io" {
		t.Errorf("credential email = %q", cred.Email)
	}
	if cred.PasswordHash == "s3cret-pass" || cred.PasswordHash == "" {
		t.Error("password stored without hashing")
	}
	if cred.ID != created.AdminID {
		t.Error("directory entry does not reference the credential")
	}
}

func TestCreateRejectsCaseVariantNames(t *testing.T) {
	f := newOrgFixture(t)
	f.create(t, "Acme", "admin@acme.io")

	// "ACME" collapses to the same partition id, so the directory must
	// reject it rather than silently sharing the partition.
	_, err := f.svc.Create(context.Background(), &dto.CreateOrgRequest{
		OrganizationName: "ACME",
		Email:            "other@acme.io",
		Password:         "s3cret-pass",
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Create(case variant) error = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	f := newOrgFixture(t)
	f.create(t, "Acme", "admin@shared.io")

	_, err := f.svc.Create(context.Background(), &dto.CreateOrgRequest{
		OrganizationName: "Globex",
		Email:            "admin@shared.io",
		Password:         "s3cret-pass",
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Create(duplicate email) error = %v, want ErrAlreadyExists", err)
	}

	// The failed create must not leave a directory entry behind.
	exists, _ := f.tenants.Exists(context.Background(), "Globex")
	if exists {
		t.Error("failed create left a directory entry")
	}
}

// insertFailingTenantRepo simulates the directory insert losing the race
// after the early existence check passed.
type insertFailingTenantRepo struct {
	*repository.MemoryTenantRepository
}

func (r *insertFailingTenantRepo) Insert(ctx context.Context, tenant *domain.Tenant) error {
	return fmt.Errorf("organization %q: %w", tenant.Name, domain.ErrAlreadyExists)
}

func TestCreateCompensatesOnLateDirectoryConflict(t *testing.T) {
	f := newOrgFixture(t)
	f.svc = NewOrgService(
		&insertFailingTenantRepo{f.tenants},
		f.creds,
		f.partitions,
		zap.NewNop(),
	)

	_, err := f.svc.Create(context.Background(), &dto.CreateOrgRequest{
		OrganizationName: "Acme",
		Email:            "admin@acme.io",
		Password:         "s3cret-pass",
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("Create() error = %v, want ErrAlreadyExists", err)
	}

	// Compensations must have removed the credential and the partition.
	cred, _ := f.creds.FindByEmail(context.Background(), "admin@acme.io")
	if cred != nil {
		t.Error("compensation left the credential behind")
	}
	if f.partitions.PartitionExists(partition.DeriveID("Acme")) {
		t.Error("compensation left the partition behind")
	}
}

func TestCreateRollbackLeavesOtherCredentialsAlone(t *testing.T) {
	// A losing racer's rollback deletes only the credential it created,
	// never one already committed under the same tenant name.
	f := newOrgFixture(t)
	winner := &domain.Credential{
		ID:           "winner-id",
		Email:        "winner@acme.io",
		PasswordHash: "hash",
		TenantName:   "Acme",
	}
	if err := f.creds.Create(context.Background(), winner); err != nil {
		t.Fatalf("seed credential: %v", err)
	}

	loser := NewOrgService(
		&insertFailingTenantRepo{f.tenants},
		f.creds,
		f.partitions,
		zap.NewNop(),
	)
	_, err := loser.Create(context.Background(), &dto.CreateOrgRequest{
		OrganizationName: "Acme",
		Email:            "loser@acme.io",
		Password:         "s3cret-pass",
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("Create() error = %v, want ErrAlreadyExists", err)
	}

	if cred, _ := f.creds.FindByEmail(context.Background(), "loser@acme.io"); cred != nil {
		t.Error("rollback left the loser's credential behind")
	}
	if cred, _ := f.creds.FindByEmail(context.Background(), "winner@acme.io"); cred == nil {
		t.Error("rollback deleted the winner's credential")
	}
}

func TestRenamePreservesPartitionData(t *testing.T) {
	f := newOrgFixture(t)
	created := f.create(t, "Acme", "admin@acme.io")

	ctx := context.Background()
	const n = 5
	for i := 0; i < n; i++ {
		if _, err := f.partitions.InsertRecord(ctx, created.PartitionID, map[string]interface{}{"seq": i}); err != nil {
			t.Fatalf("InsertRecord() error = %v", err)
		}
	}

	newName := "Acme Global"
	updated, err := f.svc.Update(ctx, &dto.UpdateOrgRequest{
		CurrentOrganizationName: "Acme",
		NewOrganizationName:     &newName,
	})
	if err != nil {
		t.Fatalf("Update(rename) error = %v", err)
	}
	if want := partition.DeriveID(newName); updated.PartitionID != want {
		t.Errorf("PartitionID after rename = %q, want %q", updated.PartitionID, want)
	}

	records, err := f.partitions.ListRecords(ctx, updated.PartitionID)
	if err != nil {
		t.Fatalf("ListRecords(new) error = %v", err)
	}
	if len(records) != n {
		t.Errorf("new partition holds %d records, want %d", len(records), n)
	}
	if f.partitions.PartitionExists(created.PartitionID) {
		t.Error("old partition still exists after rename")
	}

	// Directory and credentials follow the new name.
	if _, err := f.svc.Get(ctx, "Acme"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(old name) error = %v, want ErrNotFound", err)
	}
	cred, _ := f.creds.FindByTenant(ctx, newName)
	if cred == nil || cred.TenantName != newName {
		t.Errorf("credential not repointed at new name: %+v", cred)
	}
}

func TestRenameToTakenNameFails(t *testing.T) {
	f := newOrgFixture(t)
	f.create(t, "Acme", "admin@acme.io")
	f.create(t, "Globex", "admin@globex.io")

	newName := "globex" // case variant of an existing tenant
	_, err := f.svc.Update(context.Background(), &dto.UpdateOrgRequest{
		CurrentOrganizationName: "Acme",
		NewOrganizationName:     &newName,
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Update(rename to taken) error = %v, want ErrAlreadyExists", err)
	}

	// Nothing moved.
	got, err := f.svc.Get(context.Background(), "Acme")
	if err != nil || got.PartitionID != partition.DeriveID("Acme") {
		t.Errorf("source tenant changed after failed rename: %+v, %v", got, err)
	}
}

func TestRenameCasingOnlyKeepsPartition(t *testing.T) {
	f := newOrgFixture(t)
	created := f.create(t, "Acme", "admin@acme.io")

	ctx := context.Background()
	if _, err := f.partitions.InsertRecord(ctx, created.PartitionID, map[string]interface{}{"k": "v"}); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	newName := "ACME"
	updated, err := f.svc.Update(ctx, &dto.UpdateOrgRequest{
		CurrentOrganizationName: "Acme",
		NewOrganizationName:     &newName,
	})
	if err != nil {
		t.Fatalf("Update(case change) error = %v", err)
	}
	if updated.OrganizationName != "ACME" {
		t.Errorf("display name = %q, want ACME", updated.OrganizationName)
	}
	if updated.PartitionID != created.PartitionID {
		t.Errorf("partition changed on casing-only rename: %q -> %q", created.PartitionID, updated.PartitionID)
	}

	count, _ := f.partitions.CountRecords(ctx, updated.PartitionID)
	if count != 1 {
		t.Errorf("partition holds %d records after casing rename, want 1 (no duplication)", count)
	}
}

func TestUpdateCredentialAppliesAfterRename(t *testing.T) {
	f := newOrgFixture(t)
	f.create(t, "Acme", "admin@acme.io")

	newName := "Acme Global"
	newEmail := "root@acmeglobal.io"
	newPassword := "another-secret"
	_, err := f.svc.Update(context.Background(), &dto.UpdateOrgRequest{
		CurrentOrganizationName: "Acme",
		NewOrganizationName:     &newName,
		NewEmail:                &newEmail,
		NewPassword:             &newPassword,
	})
	if err != nil {
		t.Fatalf("Update(combined) error = %v", err)
	}

	cred, _ := f.creds.FindByTenant(context.Background(), newName)
	if cred == nil {
		t.Fatal("credential not found under new name")
	}
	if cred.Email != newEmail {
		t.Errorf("email = %q, want %q", cred.Email, newEmail)
	}
	if !VerifyPassword(newPassword, cred.PasswordHash) {
		t.Error("new password does not verify")
	}
}

func TestUpdateUnknownTenant(t *testing.T) {
	f := newOrgFixture(t)
	newEmail := "root@nowhere.io"
	_, err := f.svc.Update(context.Background(), &dto.UpdateOrgRequest{
		CurrentOrganizationName: "Ghost",
		NewEmail:                &newEmail,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newOrgFixture(t)
	created := f.create(t, "Acme", "admin@acme.io")

	ctx := context.Background()
	if err := f.svc.Delete(ctx, "Acme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if f.partitions.PartitionExists(created.PartitionID) {
		t.Error("partition survived delete")
	}
	cred, _ := f.creds.FindByEmail(ctx, "admin@acme.io")
	if cred != nil {
		t.Error("credential survived delete")
	}
	if _, err := f.svc.Get(ctx, "Acme"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascadesWithWhitespaceRunName(t *testing.T) {
	// Interior whitespace runs survive create verbatim, so every
	// credential lookup has to go through the normalized form or the
	// delete orphans the admin row.
	f := newOrgFixture(t)
	created := f.create(t, "Acme  Corp", "admin@acmecorp.io")

	ctx := context.Background()
	cred, err := f.creds.FindByTenant(ctx, "Acme  Corp")
	if err != nil || cred == nil {
		t.Fatalf("FindByTenant(whitespace run) = %v, %v, want credential", cred, err)
	}

	if err := f.svc.Delete(ctx, "Acme  Corp"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if f.partitions.PartitionExists(created.PartitionID) {
		t.Error("partition survived delete")
	}
	if cred, _ := f.creds.FindByEmail(ctx, "admin@acmecorp.io"); cred != nil {
		t.Error("credential survived delete")
	}
}

func TestDeleteUnknownTenant(t *testing.T) {
	f := newOrgFixture(t)
	if err := f.svc.Delete(context.Background(), "Ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestDestroyPartitionIdempotent(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	// Destroying a partition that was never created is a no-op.
	if err := f.partitions.DestroyPartition(ctx, "org_never_created"); err != nil {
		t.Errorf("DestroyPartition(missing) error = %v, want nil", err)
	}

	// Destroying an empty partition succeeds, twice.
	if err := f.partitions.CreatePartition(ctx, "org_empty"); err != nil {
		t.Fatalf("CreatePartition() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.partitions.DestroyPartition(ctx, "org_empty"); err != nil {
			t.Errorf("DestroyPartition() attempt %d error = %v", i+1, err)
		}
	}
}

// destroyFailingPartitions makes DestroyPartition fail, driving delete
// into its partial-failure path.
type destroyFailingPartitions struct {
	*repository.MemoryPartitionManager
}

func (m *destroyFailingPartitions) DestroyPartition(ctx context.Context, id string) error {
	return errors.New("storage unavailable")
}

func TestDeleteReportsPartialFailure(t *testing.T) {
	f := newOrgFixture(t)
	f.create(t, "Acme", "admin@acme.io")

	broken := NewOrgService(f.tenants, f.creds, &destroyFailingPartitions{f.partitions}, zap.NewNop())
	err := broken.Delete(context.Background(), "Acme")

	var pf *domain.PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("Delete() error = %v, want *PartialFailureError", err)
	}
	if len(pf.CompletedSteps) != 0 {
		t.Errorf("CompletedSteps = %v, want none (first step failed)", pf.CompletedSteps)
	}

	// The directory entry must survive so the incomplete cleanup stays
	// discoverable.
	exists, _ := f.tenants.Exists(context.Background(), "Acme")
	if !exists {
		t.Error("directory entry removed despite partial failure")
	}
}
