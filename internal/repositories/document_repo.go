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

// ErrVersionConflict is returned when optimistic locking fails: the document
// was modified since it was read. Surfaces to sync jobs as a per-item
// persistence failure, leaving the mapping retry-eligible.
var ErrVersionConflict = errors.New("version conflict: document was modified concurrently")

const documentColumns = `id, title, narrative, impact, success_criteria, timeline,
	budget, stakeholders, status, version, created_at, updated_at`

type PostgresDocumentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDocumentRepository(pool *pgxpool.Pool) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{pool: pool}
}

func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `INSERT INTO documents
	          (title, narrative, impact, success_criteria, timeline, budget, stakeholders, status, version)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
	          RETURNING id, version, created_at`

	err := r.pool.QueryRow(ctx, query,
		doc.Title,
		doc.Narrative,
		doc.Impact,
		doc.SuccessCriteria,
		doc.Timeline,
		doc.Budget,
		doc.Stakeholders,
		doc.Status,
	).Scan(&doc.ID, &doc.Version, &doc.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	var doc models.Document
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.Title,
		&doc.Narrative,
		&doc.Impact,
		&doc.SuccessCriteria,
		&doc.Timeline,
		&doc.Budget,
		&doc.Stakeholders,
		&doc.Status,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// Update writes the document with optimistic locking: the row is only touched
// if its stored version matches doc.Version. On success doc.Version carries
// the incremented value.
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := `UPDATE documents
	          SET title = $1,
	              narrative = $2,
	              impact = $3,
	              success_criteria = $4,
	              timeline = $5,
	              budget = $6,
	              stakeholders = $7,
	              status = $8,
	              version = version + 1,
	              updated_at = NOW()
	          WHERE id = $9 AND version = $10
	          RETURNING version, updated_at`

	err := r.pool.QueryRow(ctx, query,
		doc.Title,
		doc.Narrative,
		doc.Impact,
		doc.SuccessCriteria,
		doc.Timeline,
		doc.Budget,
		doc.Stakeholders,
		doc.Status,
		doc.ID,
		doc.Version,
	).Scan(&doc.Version, &doc.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}
