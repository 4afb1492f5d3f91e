package repositories

import (
	"context"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/google/uuid"
)

type SyncMappingRepository interface {
	Create(ctx context.Context, m *models.SyncMapping) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SyncMapping, error)
	GetByLocalID(ctx context.Context, localID uuid.UUID) (*models.SyncMapping, error)
	GetByRemoteKey(ctx context.Context, remoteKey string) (*models.SyncMapping, error)
	Update(ctx context.Context, m *models.SyncMapping) error
	IncrementConflictCount(ctx context.Context, id uuid.UUID, delta int) error
	ListAutoSync(ctx context.Context) ([]*models.SyncMapping, error)
}

type SyncJobRepository interface {
	Create(ctx context.Context, job *models.SyncJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SyncJob, error)
	Update(ctx context.Context, job *models.SyncJob) error
	ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.SyncJob, error)
}

type SyncConflictRepository interface {
	Create(ctx context.Context, c *models.SyncConflict) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SyncConflict, error)
	Update(ctx context.Context, c *models.SyncConflict) error
	ListPendingByMapping(ctx context.Context, mappingID uuid.UUID) ([]*models.SyncConflict, error)
	ListPendingSimilar(ctx context.Context, field string, conflictType models.ConflictType, exclude uuid.UUID) ([]*models.SyncConflict, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type FieldMappingRepository interface {
	Create(ctx context.Context, fm *models.FieldMapping) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FieldMapping, error)
	Update(ctx context.Context, fm *models.FieldMapping) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context, direction models.SyncDirection) ([]*models.FieldMapping, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
}
