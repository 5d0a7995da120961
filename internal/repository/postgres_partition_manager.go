package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/partition"
)

// partitionSchema is the Postgres schema holding every tenant partition,
// kept apart from the master schema the way the original keeps tenant
// collections in a separate database.
const partitionSchema = "partitions"

// PostgresPartitionManager implements PartitionManager on PostgreSQL: each
// partition is a table of schemaless JSONB documents named by its
// partition ID. Identifiers are validated against the derivation alphabet
// and quoted before they reach DDL.
type PostgresPartitionManager struct {
	pool *pgxpool.Pool
}

// NewPostgresPartitionManager creates a new PostgresPartitionManager
func NewPostgresPartitionManager(pool *pgxpool.Pool) *PostgresPartitionManager {
	return &PostgresPartitionManager{pool: pool}
}

// CreatePartition materializes an empty partition table, then runs the
// sentinel write-then-delete probe so storage that allocates lazily is
// forced to materialize the container.
func (m *PostgresPartitionManager) CreatePartition(ctx context.Context, id string) error {
	table, err := tableName(id)
	if err != nil {
		return err
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, table)
	if _, err := m.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create partition %s: %w", id, err)
	}

	sentinel, err := m.InsertRecord(ctx, id, map[string]interface{}{"type": "init_doc"})
	if err != nil {
		return fmt.Errorf("probe partition %s: %w", id, err)
	}
	if err := m.DeleteRecord(ctx, id, sentinel.ID); err != nil {
		return fmt.Errorf("probe partition %s: %w", id, err)
	}
	return nil
}

// MigratePartition copies every record from oldID into a freshly created
// newID partition. Zero records copied is success. oldID is left intact
// for the caller to destroy once the directory points at newID.
func (m *PostgresPartitionManager) MigratePartition(ctx context.Context, oldID, newID string) (int, error) {
	oldTable, err := tableName(oldID)
	if err != nil {
		return 0, err
	}
	newTable, err := tableName(newID)
	if err != nil {
		return 0, err
	}

	if err := m.CreatePartition(ctx, newID); err != nil {
		return 0, err
	}

	copySQL := fmt.Sprintf(`
		INSERT INTO %s (id, doc, created_at)
		SELECT id, doc, created_at FROM %s
	`, newTable, oldTable)
	result, err := m.pool.Exec(ctx, copySQL)
	if err != nil {
		return 0, fmt.Errorf("migrate partition %s -> %s: %w", oldID, newID, err)
	}
	return int(result.RowsAffected()), nil
}

// DestroyPartition drops the partition table. Idempotent on a missing id.
func (m *PostgresPartitionManager) DestroyPartition(ctx context.Context, id string) error {
	table, err := tableName(id)
	if err != nil {
		return err
	}
	if _, err := m.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("destroy partition %s: %w", id, err)
	}
	return nil
}

// InsertRecord writes one document into the partition
func (m *PostgresPartitionManager) InsertRecord(ctx context.Context, id string, doc map[string]interface{}) (*domain.PartitionRecord, error) {
	table, err := tableName(id)
	if err != nil {
		return nil, err
	}
	record := &domain.PartitionRecord{
		ID:        uuid.New().String(),
		Doc:       doc,
		CreatedAt: time.Now().UTC(),
	}
	query := fmt.Sprintf("INSERT INTO %s (id, doc, created_at) VALUES ($1, $2, $3)", table)
	if _, err := m.pool.Exec(ctx, query, record.ID, record.Doc, record.CreatedAt); err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteRecord removes one document from the partition
func (m *PostgresPartitionManager) DeleteRecord(ctx context.Context, id, recordID string) error {
	table, err := tableName(id)
	if err != nil {
		return err
	}
	_, err = m.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), recordID)
	return err
}

// ListRecords returns every document in the partition
func (m *PostgresPartitionManager) ListRecords(ctx context.Context, id string) ([]domain.PartitionRecord, error) {
	table, err := tableName(id)
	if err != nil {
		return nil, err
	}
	rows, err := m.pool.Query(ctx, fmt.Sprintf("SELECT id, doc, created_at FROM %s ORDER BY created_at", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.PartitionRecord, 0)
	for rows.Next() {
		var record domain.PartitionRecord
		if err := rows.Scan(&record.ID, &record.Doc, &record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountRecords returns the number of documents in the partition
func (m *PostgresPartitionManager) CountRecords(ctx context.Context, id string) (int, error) {
	table, err := tableName(id)
	if err != nil {
		return 0, err
	}
	var count int
	err = m.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	return count, err
}

// tableName validates the identifier and returns its quoted, schema
// qualified form for interpolation into DDL and record statements.
func tableName(id string) (string, error) {
	if !partition.ValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPartitionID, id)
	}
	return pgx.Identifier{partitionSchema, id}.Sanitize(), nil
}
