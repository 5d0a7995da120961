package repository

import (
	"context"
	"errors"

	"github.com/orgstack/org-management-service/internal/domain"
)

// ErrInvalidPartitionID is returned when an identifier does not come from
// partition.DeriveID and is refused before touching storage.
var ErrInvalidPartitionID = errors.New("invalid partition identifier")

// PartitionManager creates, migrates and destroys the isolated data
// container backing a tenant. It is the only component that touches
// tenant-owned records; it never reads or writes the master schema.
type PartitionManager interface {
	// CreatePartition materializes an empty partition. Idempotent-safe
	// against a partition left behind by a prior partial failure: the
	// sentinel write-then-delete probe forces the store to allocate the
	// container without leaving residual data.
	CreatePartition(ctx context.Context, id string) error
	// MigratePartition copies every record from oldID into a newly
	// created newID partition, preserving record identity and content.
	// An empty source is success with zero records copied. The old
	// partition is left intact; destroying it is the caller's final,
	// non-compensatable step.
	MigratePartition(ctx context.Context, oldID, newID string) (int, error)
	// DestroyPartition irreversibly drops the partition and all records.
	// No-op on a missing id.
	DestroyPartition(ctx context.Context, id string) error

	// InsertRecord writes one document into the partition.
	InsertRecord(ctx context.Context, id string, doc map[string]interface{}) (*domain.PartitionRecord, error)
	// DeleteRecord removes one document from the partition.
	DeleteRecord(ctx context.Context, id, recordID string) error
	// ListRecords returns every document in the partition.
	ListRecords(ctx context.Context, id string) ([]domain.PartitionRecord, error)
	// CountRecords returns the number of documents in the partition.
	CountRecords(ctx context.Context, id string) (int, error)
}
