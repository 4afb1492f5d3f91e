// Package services orchestrates end-to-end sync operations, composing the
// field mapper, conflict resolver and job queue with two injected
// capabilities: the remote tracker client and the local document store.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/HR-AR/Project-Conductor-sub007/internal/mapper"
	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/HR-AR/Project-Conductor-sub007/internal/repositories"
	"github.com/HR-AR/Project-Conductor-sub007/internal/syncerr"
	"github.com/google/uuid"
)

// RemoteClient is the injected capability for the external tracker. The
// tracker serves full item snapshots; timeouts are the client's
// responsibility and surface as per-item failures.
type RemoteClient interface {
	FetchItem(ctx context.Context, key string) (*models.RemoteItem, error)
	CreateItem(ctx context.Context, item *models.RemoteItem) (*models.RemoteItem, error)
	UpdateItem(ctx context.Context, key string, fields map[string]any) (*models.RemoteItem, error)
}

// DocumentStore is the injected capability for the locally-owned documents.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
}

// Dispatcher schedules persisted jobs for asynchronous execution.
type Dispatcher interface {
	Enqueue(ctx context.Context, job *models.SyncJob, lockKeys []string) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID) error
}

// SyncOptions tunes one sync request.
type SyncOptions struct {
	// AutoResolve applies Strategy to conflicts instead of aborting the item.
	AutoResolve bool
	// Strategy defaults to keep_remote on import and keep_local on export.
	Strategy   models.ResolutionStrategy
	MaxRetries int
}

type BulkImportRequest struct {
	Keys    []string
	Options SyncOptions
}

type BulkExportRequest struct {
	IDs     []uuid.UUID
	Options SyncOptions
}

const defaultMaxRetries = 3

type SyncService struct {
	mappings  repositories.SyncMappingRepository
	jobs      repositories.SyncJobRepository
	conflicts repositories.SyncConflictRepository
	docs      DocumentStore
	remote    RemoteClient
	mapper    *mapper.Mapper
	dispatch  Dispatcher
}

func NewSyncService(
	mappings repositories.SyncMappingRepository,
	jobs repositories.SyncJobRepository,
	conflicts repositories.SyncConflictRepository,
	docs DocumentStore,
	remote RemoteClient,
	fieldMapper *mapper.Mapper,
) *SyncService {
	return &SyncService{
		mappings:  mappings,
		jobs:      jobs,
		conflicts: conflicts,
		docs:      docs,
		remote:    remote,
		mapper:    fieldMapper,
	}
}

// SetDispatcher wires the job queue. Done after construction because the
// queue's executor is this service.
func (s *SyncService) SetDispatcher(d Dispatcher) {
	s.dispatch = d
}

// ImportFromRemote queues a single-item import. The returned job carries the
// identifier and coarse counts; the true outcome is observed by polling.
func (s *SyncService) ImportFromRemote(ctx context.Context, key string, opts SyncOptions, actor string) (*models.SyncJob, error) {
	if key == "" {
		return nil, syncerr.Validationf("remote key is required")
	}

	job := s.newJob(models.DirectionFromRemote, models.OperationUpdate, opts, actor)
	job.TargetKeys = []string{key}
	job.TotalItems = 1

	if err := s.dispatch.Enqueue(ctx, job, s.remoteLockKeys(ctx, key)); err != nil {
		return nil, err
	}
	return job, nil
}

// ExportToRemote queues a single-item export.
func (s *SyncService) ExportToRemote(ctx context.Context, id uuid.UUID, opts SyncOptions, actor string) (*models.SyncJob, error) {
	if id == uuid.Nil {
		return nil, syncerr.Validationf("document id is required")
	}

	job := s.newJob(models.DirectionToRemote, models.OperationUpdate, opts, actor)
	job.TargetIDs = []uuid.UUID{id}
	job.TotalItems = 1

	if err := s.dispatch.Enqueue(ctx, job, s.localLockKeys(ctx, id)); err != nil {
		return nil, err
	}
	return job, nil
}

// BulkImport queues one job covering many remote keys. Partial failure never
// aborts the batch; every key is attempted.
func (s *SyncService) BulkImport(ctx context.Context, req BulkImportRequest, actor string) (*models.SyncJob, error) {
	if len(req.Keys) == 0 {
		return nil, syncerr.Validationf("bulk import requires at least one key")
	}

	job := s.newJob(models.DirectionFromRemote, models.OperationBulkImport, req.Options, actor)
	job.TargetKeys = req.Keys
	job.TotalItems = len(req.Keys)

	var locks []string
	for _, key := range req.Keys {
		locks = append(locks, s.remoteLockKeys(ctx, key)...)
	}
	if err := s.dispatch.Enqueue(ctx, job, locks); err != nil {
		return nil, err
	}
	return job, nil
}

// BulkExport queues one job covering many documents.
func (s *SyncService) BulkExport(ctx context.Context, req BulkExportRequest, actor string) (*models.SyncJob, error) {
	if len(req.IDs) == 0 {
		return nil, syncerr.Validationf("bulk export requires at least one document id")
	}

	job := s.newJob(models.DirectionToRemote, models.OperationBulkExport, req.Options, actor)
	job.TargetIDs = req.IDs
	job.TotalItems = len(req.IDs)

	var locks []string
	for _, id := range req.IDs {
		locks = append(locks, s.localLockKeys(ctx, id)...)
	}
	if err := s.dispatch.Enqueue(ctx, job, locks); err != nil {
		return nil, err
	}
	return job, nil
}

// SyncMapping refreshes one mapping in the requested direction. The
// bidirectional direction is accepted here and fails the job at execution, as
// a job-wide configuration error.
func (s *SyncService) SyncMapping(ctx context.Context, mappingID uuid.UUID, direction models.SyncDirection, actor string) (*models.SyncJob, error) {
	m, err := s.mappings.GetByID(ctx, mappingID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, syncerr.Validationf("mapping %s not found", mappingID)
	}
	if err != nil {
		return nil, &syncerr.PersistenceError{Op: "load mapping", Err: err}
	}
	if !m.SyncEnabled {
		return nil, syncerr.Validationf("sync is disabled on mapping %s", mappingID)
	}

	job := s.newJob(direction, models.OperationUpdate, SyncOptions{}, actor)
	switch direction {
	case models.DirectionToRemote:
		job.TargetIDs = []uuid.UUID{m.LocalID}
	default:
		job.TargetKeys = []string{m.RemoteKey}
	}
	job.TotalItems = 1

	locks := []string{remoteLock(m.RemoteKey), localLock(m.LocalID)}
	if err := s.dispatch.Enqueue(ctx, job, locks); err != nil {
		return nil, err
	}
	return job, nil
}

// HandleWebhook reacts to an inbound tracker notification. A payload whose
// key has no enabled, auto-sync mapping is silently ignored: no job, no error.
func (s *SyncService) HandleWebhook(ctx context.Context, payload models.WebhookPayload, actor string) (*models.SyncJob, error) {
	if payload.IssueKey == "" {
		return nil, syncerr.Validationf("webhook payload is missing issueKey")
	}

	m, err := s.mappings.GetByRemoteKey(ctx, payload.IssueKey)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Printf("webhook for unmapped key %s ignored", payload.IssueKey)
		return nil, nil
	}
	if err != nil {
		return nil, &syncerr.PersistenceError{Op: "load mapping", Err: err}
	}
	if !m.SyncEnabled || !m.AutoSync {
		log.Printf("webhook for key %s ignored: sync disabled or not auto-sync on mapping %s", payload.IssueKey, m.ID)
		return nil, nil
	}

	job := s.newJob(models.DirectionFromRemote, models.OperationWebhook, SyncOptions{AutoResolve: true}, actor)
	job.TargetKeys = []string{payload.IssueKey}
	job.TotalItems = 1
	job.Metadata = map[string]any{
		"webhook_event": payload.WebhookEvent,
		"issue_id":      payload.IssueID,
	}

	locks := []string{remoteLock(m.RemoteKey), localLock(m.LocalID)}
	if err := s.dispatch.Enqueue(ctx, job, locks); err != nil {
		return nil, err
	}
	return job, nil
}

// SyncAutoMappings queues one scheduled import covering every enabled
// auto-sync mapping, with auto-resolution so the sweep never parks on
// conflicts. Returns nil without a job when nothing is marked auto-sync.
func (s *SyncService) SyncAutoMappings(ctx context.Context, actor string) (*models.SyncJob, error) {
	mappings, err := s.mappings.ListAutoSync(ctx)
	if err != nil {
		return nil, &syncerr.PersistenceError{Op: "list auto-sync mappings", Err: err}
	}
	if len(mappings) == 0 {
		return nil, nil
	}

	job := s.newJob(models.DirectionFromRemote, models.OperationScheduled, SyncOptions{AutoResolve: true}, actor)
	var locks []string
	for _, m := range mappings {
		job.TargetKeys = append(job.TargetKeys, m.RemoteKey)
		locks = append(locks, remoteLock(m.RemoteKey), localLock(m.LocalID))
	}
	job.TotalItems = len(job.TargetKeys)

	if err := s.dispatch.Enqueue(ctx, job, locks); err != nil {
		return nil, err
	}
	log.Printf("scheduled sync queued as job %s over %d mappings", job.ID, job.TotalItems)
	return job, nil
}

// GetJob exposes job state for polling.
func (s *SyncService) GetJob(ctx context.Context, id uuid.UUID) (*models.SyncJob, error) {
	return s.jobs.GetByID(ctx, id)
}

func (s *SyncService) CancelJob(ctx context.Context, id uuid.UUID) error {
	return s.dispatch.Cancel(ctx, id)
}

func (s *SyncService) RetryJob(ctx context.Context, id uuid.UUID) error {
	return s.dispatch.Retry(ctx, id)
}

func (s *SyncService) newJob(direction models.SyncDirection, op models.SyncOperation, opts SyncOptions, actor string) *models.SyncJob {
	strategy := opts.Strategy
	if strategy == "" {
		if direction == models.DirectionToRemote {
			strategy = models.StrategyKeepLocal
		} else {
			strategy = models.StrategyKeepRemote
		}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &models.SyncJob{
		Direction:   direction,
		Operation:   op,
		Status:      models.JobStatusPending,
		AutoResolve: opts.AutoResolve,
		Strategy:    strategy,
		MaxRetries:  maxRetries,
		CreatedBy:   actor,
	}
}

// remoteLockKeys returns the serialization keys for a remote-keyed target:
// the key itself plus, when a mapping exists, its document, so imports and
// exports of the same pair contend on a common key.
func (s *SyncService) remoteLockKeys(ctx context.Context, key string) []string {
	locks := []string{remoteLock(key)}
	if m, err := s.mappings.GetByRemoteKey(ctx, key); err == nil {
		locks = append(locks, localLock(m.LocalID))
	}
	return locks
}

func (s *SyncService) localLockKeys(ctx context.Context, id uuid.UUID) []string {
	locks := []string{localLock(id)}
	if m, err := s.mappings.GetByLocalID(ctx, id); err == nil {
		locks = append(locks, remoteLock(m.RemoteKey))
	}
	return locks
}

func remoteLock(key string) string  { return fmt.Sprintf("key:%s", key) }
func localLock(id uuid.UUID) string { return fmt.Sprintf("doc:%s", id) }
