package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// ErrDuplicateMapping is returned when a (local_id, remote_key) pair already
// exists.
var ErrDuplicateMapping = errors.New("mapping already exists for this local/remote pair")

const mappingColumns = `id, local_id, remote_key, remote_internal_id, base_snapshot,
	last_synced_at, last_modified_local, last_modified_remote,
	sync_enabled, auto_sync, conflict_count, created_at, updated_at`

type PostgresSyncMappingRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSyncMappingRepository(pool *pgxpool.Pool) *PostgresSyncMappingRepository {
	return &PostgresSyncMappingRepository{pool: pool}
}

func (r *PostgresSyncMappingRepository) Create(ctx context.Context, m *models.SyncMapping) error {
	snapshot, err := marshalSnapshot(m.BaseSnapshot)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_mappings
	          (local_id, remote_key, remote_internal_id, base_snapshot,
	           last_synced_at, last_modified_local, last_modified_remote,
	           sync_enabled, auto_sync)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (local_id, remote_key) DO NOTHING
	          RETURNING id, conflict_count, created_at`

	err = r.pool.QueryRow(ctx, query,
		m.LocalID,
		m.RemoteKey,
		m.RemoteInternalID,
		snapshot,
		m.LastSyncedAt,
		m.LastModifiedLocal,
		m.LastModifiedRemote,
		m.SyncEnabled,
		m.AutoSync,
	).Scan(&m.ID, &m.ConflictCount, &m.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateMapping
	}
	if err != nil {
		return fmt.Errorf("failed to create mapping: %w", err)
	}
	return nil
}

func (r *PostgresSyncMappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM sync_mappings WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresSyncMappingRepository) GetByLocalID(ctx context.Context, localID uuid.UUID) (*models.SyncMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM sync_mappings WHERE local_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, localID))
}

func (r *PostgresSyncMappingRepository) GetByRemoteKey(ctx context.Context, remoteKey string) (*models.SyncMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM sync_mappings WHERE remote_key = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, remoteKey))
}

func (r *PostgresSyncMappingRepository) Update(ctx context.Context, m *models.SyncMapping) error {
	snapshot, err := marshalSnapshot(m.BaseSnapshot)
	if err != nil {
		return err
	}

	query := `UPDATE sync_mappings
	          SET remote_internal_id = $1,
	              base_snapshot = $2,
	              last_synced_at = $3,
	              last_modified_local = $4,
	              last_modified_remote = $5,
	              sync_enabled = $6,
	              auto_sync = $7,
	              updated_at = NOW()
	          WHERE id = $8
	          RETURNING updated_at`

	err = r.pool.QueryRow(ctx, query,
		m.RemoteInternalID,
		snapshot,
		m.LastSyncedAt,
		m.LastModifiedLocal,
		m.LastModifiedRemote,
		m.SyncEnabled,
		m.AutoSync,
		m.ID,
	).Scan(&m.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	return nil
}

// IncrementConflictCount adds delta to the mapping's conflict counter. The
// counter is monotonic; callers never pass a negative delta.
func (r *PostgresSyncMappingRepository) IncrementConflictCount(ctx context.Context, id uuid.UUID, delta int) error {
	query := `UPDATE sync_mappings
	          SET conflict_count = conflict_count + $1, updated_at = NOW()
	          WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("failed to increment conflict count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSyncMappingRepository) ListAutoSync(ctx context.Context) ([]*models.SyncMapping, error) {
	query := `SELECT ` + mappingColumns + `
	          FROM sync_mappings
	          WHERE sync_enabled = TRUE AND auto_sync = TRUE
	          ORDER BY remote_key ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.SyncMapping
	for rows.Next() {
		m, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}
	return mappings, nil
}

func (r *PostgresSyncMappingRepository) scanOne(row pgx.Row) (*models.SyncMapping, error) {
	var m models.SyncMapping
	var snapshot []byte
	err := row.Scan(
		&m.ID,
		&m.LocalID,
		&m.RemoteKey,
		&m.RemoteInternalID,
		&snapshot,
		&m.LastSyncedAt,
		&m.LastModifiedLocal,
		&m.LastModifiedRemote,
		&m.SyncEnabled,
		&m.AutoSync,
		&m.ConflictCount,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mapping: %w", err)
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &m.BaseSnapshot); err != nil {
			return nil, fmt.Errorf("failed to decode base snapshot: %w", err)
		}
	}
	return &m, nil
}

func marshalSnapshot(s *models.SyncSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode base snapshot: %w", err)
	}
	return data, nil
}
