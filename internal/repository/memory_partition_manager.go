package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/partition"
)

// MemoryPartitionManager is an in-memory implementation of
// PartitionManager for testing. It mimics the Postgres implementation's
// semantics: idempotent create and destroy, copy-on-migrate, sentinel
// probe on create.
type MemoryPartitionManager struct {
	mu         sync.RWMutex
	partitions map[string][]domain.PartitionRecord
}

// NewMemoryPartitionManager creates a new in-memory partition manager
func NewMemoryPartitionManager() *MemoryPartitionManager {
	return &MemoryPartitionManager{
		partitions: make(map[string][]domain.PartitionRecord),
	}
}

// PartitionExists reports whether the partition has been materialized.
// Test helper; the interface deliberately has no existence probe.
func (m *MemoryPartitionManager) PartitionExists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.partitions[id]
	return exists
}

// CreatePartition materializes an empty partition
func (m *MemoryPartitionManager) CreatePartition(ctx context.Context, id string) error {
	if !partition.ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidPartitionID, id)
	}
	m.mu.Lock()
	if _, exists := m.partitions[id]; !exists {
		m.partitions[id] = make([]domain.PartitionRecord, 0)
	}
	m.mu.Unlock()

	// Same sentinel probe as the Postgres implementation.
	sentinel, err := m.InsertRecord(ctx, id, map[string]interface{}{"type": "init_doc"})
	if err != nil {
		return err
	}
	return m.DeleteRecord(ctx, id, sentinel.ID)
}

// MigratePartition copies every record from oldID into a new newID
// partition, leaving oldID intact
func (m *MemoryPartitionManager) MigratePartition(ctx context.Context, oldID, newID string) (int, error) {
	if err := m.CreatePartition(ctx, newID); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	source, exists := m.partitions[oldID]
	if !exists {
		return 0, fmt.Errorf("migrate partition %s -> %s: source missing", oldID, newID)
	}
	copied := make([]domain.PartitionRecord, len(source))
	copy(copied, source)
	m.partitions[newID] = append(m.partitions[newID], copied...)
	return len(copied), nil
}

// DestroyPartition removes the partition and all records. No-op on a
// missing id.
func (m *MemoryPartitionManager) DestroyPartition(ctx context.Context, id string) error {
	if !partition.ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidPartitionID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.partitions, id)
	return nil
}

// InsertRecord writes one document into the partition
func (m *MemoryPartitionManager) InsertRecord(ctx context.Context, id string, doc map[string]interface{}) (*domain.PartitionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.partitions[id]; !exists {
		return nil, fmt.Errorf("partition %s does not exist", id)
	}
	record := domain.PartitionRecord{
		ID:        uuid.New().String(),
		Doc:       doc,
		CreatedAt: time.Now().UTC(),
	}
	m.partitions[id] = append(m.partitions[id], record)
	return &record, nil
}

// DeleteRecord removes one document from the partition
func (m *MemoryPartitionManager) DeleteRecord(ctx context.Context, id, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, exists := m.partitions[id]
	if !exists {
		return fmt.Errorf("partition %s does not exist", id)
	}
	for i, record := range records {
		if record.ID == recordID {
			m.partitions[id] = append(records[:i], records[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListRecords returns every document in the partition
func (m *MemoryPartitionManager) ListRecords(ctx context.Context, id string) ([]domain.PartitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, exists := m.partitions[id]
	if !exists {
		return nil, fmt.Errorf("partition %s does not exist", id)
	}
	out := make([]domain.PartitionRecord, len(records))
	copy(out, records)
	return out, nil
}

// CountRecords returns the number of documents in the partition
func (m *MemoryPartitionManager) CountRecords(ctx context.Context, id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, exists := m.partitions[id]
	if !exists {
		return 0, fmt.Errorf("partition %s does not exist", id)
	}
	return len(records), nil
}
