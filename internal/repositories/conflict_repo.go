package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const conflictColumns = `id, job_id, mapping_id, field,
	base_value, local_value, remote_value,
	conflict_type, resolution_strategy, resolved_value,
	resolved_by, resolved_at, status, created_at`

type PostgresSyncConflictRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSyncConflictRepository(pool *pgxpool.Pool) *PostgresSyncConflictRepository {
	return &PostgresSyncConflictRepository{pool: pool}
}

func (r *PostgresSyncConflictRepository) Create(ctx context.Context, c *models.SyncConflict) error {
	base, err := encodeValue(c.BaseValue)
	if err != nil {
		return err
	}
	local, err := encodeValue(c.LocalValue)
	if err != nil {
		return err
	}
	remote, err := encodeValue(c.RemoteValue)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_conflicts
	          (job_id, mapping_id, field, base_value, local_value, remote_value,
	           conflict_type, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at`

	err = r.pool.QueryRow(ctx, query,
		c.JobID,
		c.MappingID,
		c.Field,
		base,
		local,
		remote,
		c.Type,
		c.Status,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create conflict: %w", err)
	}
	return nil
}

func (r *PostgresSyncConflictRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM sync_conflicts WHERE id = $1`
	return scanConflict(r.pool.QueryRow(ctx, query, id))
}

// Update records resolution state. The base/local/remote snapshots are
// append-only and deliberately not updatable.
func (r *PostgresSyncConflictRepository) Update(ctx context.Context, c *models.SyncConflict) error {
	resolved, err := encodeValue(c.ResolvedValue)
	if err != nil {
		return err
	}

	query := `UPDATE sync_conflicts
	          SET resolution_strategy = $1,
	              resolved_value = $2,
	              resolved_by = $3,
	              resolved_at = $4,
	              status = $5
	          WHERE id = $6`

	result, err := r.pool.Exec(ctx, query,
		c.Strategy,
		resolved,
		c.ResolvedBy,
		c.ResolvedAt,
		c.Status,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conflict: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSyncConflictRepository) ListPendingByMapping(ctx context.Context, mappingID uuid.UUID) ([]*models.SyncConflict, error) {
	query := `SELECT ` + conflictColumns + `
	          FROM sync_conflicts
	          WHERE mapping_id = $1 AND status = 'pending'
	          ORDER BY created_at ASC`
	return r.list(ctx, query, mappingID)
}

func (r *PostgresSyncConflictRepository) ListPendingSimilar(ctx context.Context, field string, conflictType models.ConflictType, exclude uuid.UUID) ([]*models.SyncConflict, error) {
	query := `SELECT ` + conflictColumns + `
	          FROM sync_conflicts
	          WHERE field = $1 AND conflict_type = $2 AND status = 'pending' AND id <> $3
	          ORDER BY created_at ASC`
	return r.list(ctx, query, field, conflictType, exclude)
}

// DeleteTerminalOlderThan removes resolved and ignored conflicts created
// before the cutoff. Pending conflicts are never reaped.
func (r *PostgresSyncConflictRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sync_conflicts
	          WHERE status IN ('resolved', 'ignored') AND created_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old conflicts: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresSyncConflictRepository) list(ctx context.Context, query string, args ...any) ([]*models.SyncConflict, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*models.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conflicts: %w", err)
	}
	return conflicts, nil
}

func scanConflict(row pgx.Row) (*models.SyncConflict, error) {
	var c models.SyncConflict
	var base, local, remote, resolved []byte
	err := row.Scan(
		&c.ID,
		&c.JobID,
		&c.MappingID,
		&c.Field,
		&base,
		&local,
		&remote,
		&c.Type,
		&c.Strategy,
		&resolved,
		&c.ResolvedBy,
		&c.ResolvedAt,
		&c.Status,
		&c.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conflict: %w", err)
	}

	if c.BaseValue, err = decodeValue(base); err != nil {
		return nil, err
	}
	if c.LocalValue, err = decodeValue(local); err != nil {
		return nil, err
	}
	if c.RemoteValue, err = decodeValue(remote); err != nil {
		return nil, err
	}
	if c.ResolvedValue, err = decodeValue(resolved); err != nil {
		return nil, err
	}
	return &c, nil
}

// encodeValue serializes an opaque field value snapshot. A nil value is stored
// as SQL NULL, distinct from JSON null.
func encodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conflict value: %w", err)
	}
	return data, nil
}

func decodeValue(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode conflict value: %w", err)
	}
	return v, nil
}
