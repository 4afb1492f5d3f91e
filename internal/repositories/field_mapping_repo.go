package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const fieldMappingColumns = `id, source_field, target_field, direction, transform,
	is_custom_field, default_value, required, active, created_at, updated_at`

type PostgresFieldMappingRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresFieldMappingRepository(pool *pgxpool.Pool) *PostgresFieldMappingRepository {
	return &PostgresFieldMappingRepository{pool: pool}
}

func (r *PostgresFieldMappingRepository) Create(ctx context.Context, fm *models.FieldMapping) error {
	defaultValue, err := encodeValue(fm.DefaultValue)
	if err != nil {
		return err
	}

	query := `INSERT INTO field_mappings
	          (source_field, target_field, direction, transform,
	           is_custom_field, default_value, required, active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at`

	err = r.pool.QueryRow(ctx, query,
		fm.SourceField,
		fm.TargetField,
		fm.Direction,
		fm.Transform,
		fm.IsCustomField,
		defaultValue,
		fm.Required,
		fm.Active,
	).Scan(&fm.ID, &fm.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create field mapping: %w", err)
	}
	return nil
}

func (r *PostgresFieldMappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FieldMapping, error) {
	query := `SELECT ` + fieldMappingColumns + ` FROM field_mappings WHERE id = $1`
	return scanFieldMapping(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresFieldMappingRepository) Update(ctx context.Context, fm *models.FieldMapping) error {
	defaultValue, err := encodeValue(fm.DefaultValue)
	if err != nil {
		return err
	}

	query := `UPDATE field_mappings
	          SET source_field = $1,
	              target_field = $2,
	              direction = $3,
	              transform = $4,
	              is_custom_field = $5,
	              default_value = $6,
	              required = $7,
	              active = $8,
	              updated_at = NOW()
	          WHERE id = $9
	          RETURNING updated_at`

	err = r.pool.QueryRow(ctx, query,
		fm.SourceField,
		fm.TargetField,
		fm.Direction,
		fm.Transform,
		fm.IsCustomField,
		defaultValue,
		fm.Required,
		fm.Active,
		fm.ID,
	).Scan(&fm.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update field mapping: %w", err)
	}
	return nil
}

func (r *PostgresFieldMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM field_mappings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete field mapping: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns the active rules matching the direction, including rules
// marked bidirectional.
func (r *PostgresFieldMappingRepository) ListActive(ctx context.Context, direction models.SyncDirection) ([]*models.FieldMapping, error) {
	query := `SELECT ` + fieldMappingColumns + `
	          FROM field_mappings
	          WHERE active = TRUE AND direction IN ($1, 'bidirectional')
	          ORDER BY source_field ASC`

	rows, err := r.pool.Query(ctx, query, direction)
	if err != nil {
		return nil, fmt.Errorf("failed to query field mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.FieldMapping
	for rows.Next() {
		fm, err := scanFieldMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, fm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating field mappings: %w", err)
	}
	return mappings, nil
}

func scanFieldMapping(row pgx.Row) (*models.FieldMapping, error) {
	var fm models.FieldMapping
	var defaultValue []byte
	err := row.Scan(
		&fm.ID,
		&fm.SourceField,
		&fm.TargetField,
		&fm.Direction,
		&fm.Transform,
		&fm.IsCustomField,
		&defaultValue,
		&fm.Required,
		&fm.Active,
		&fm.CreatedAt,
		&fm.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan field mapping: %w", err)
	}

	if fm.DefaultValue, err = decodeValue(defaultValue); err != nil {
		return nil, err
	}
	return &fm, nil
}
