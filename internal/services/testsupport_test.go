package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/HR-AR/Project-Conductor-sub007/internal/repositories"
	"github.com/google/uuid"
)

// In-memory doubles for the persistence and remote capabilities, so the
// engine is exercised without a database or network.

type memMappings struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.SyncMapping
}

func newMemMappings() *memMappings {
	return &memMappings{byID: make(map[uuid.UUID]*models.SyncMapping)}
}

func (r *memMappings) Create(_ context.Context, m *models.SyncMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.LocalID == m.LocalID && existing.RemoteKey == m.RemoteKey {
			return repositories.ErrDuplicateMapping
		}
	}
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	r.byID[m.ID] = m
	return nil
}

func (r *memMappings) GetByID(_ context.Context, id uuid.UUID) (*models.SyncMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byID[id]; ok {
		return m, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *memMappings) GetByLocalID(_ context.Context, localID uuid.UUID) (*models.SyncMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.LocalID == localID {
			return m, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memMappings) GetByRemoteKey(_ context.Context, remoteKey string) (*models.SyncMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.RemoteKey == remoteKey {
			return m, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memMappings) Update(_ context.Context, m *models.SyncMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; !ok {
		return repositories.ErrNotFound
	}
	now := time.Now()
	m.UpdatedAt = &now
	r.byID[m.ID] = m
	return nil
}

func (r *memMappings) IncrementConflictCount(_ context.Context, id uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	m.ConflictCount += delta
	return nil
}

func (r *memMappings) ListAutoSync(_ context.Context) ([]*models.SyncMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncMapping
	for _, m := range r.byID {
		if m.SyncEnabled && m.AutoSync {
			out = append(out, m)
		}
	}
	return out, nil
}

type memJobs struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.SyncJob
}

func newMemJobs() *memJobs {
	return &memJobs{byID: make(map[uuid.UUID]models.SyncJob)}
}

func (r *memJobs) Create(_ context.Context, job *models.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.ID = uuid.New()
	job.CreatedAt = time.Now()
	r.byID[job.ID] = *job
	return nil
}

func (r *memJobs) GetByID(_ context.Context, id uuid.UUID) (*models.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.byID[id]; ok {
		copied := job
		return &copied, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *memJobs) Update(_ context.Context, job *models.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[job.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.byID[job.ID] = *job
	return nil
}

func (r *memJobs) ListByStatus(_ context.Context, status models.JobStatus) ([]*models.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncJob
	for _, job := range r.byID {
		if job.Status == status {
			copied := job
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memConflicts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.SyncConflict
}

func newMemConflicts() *memConflicts {
	return &memConflicts{byID: make(map[uuid.UUID]*models.SyncConflict)}
}

func (r *memConflicts) Create(_ context.Context, c *models.SyncConflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	r.byID[c.ID] = c
	return nil
}

func (r *memConflicts) GetByID(_ context.Context, id uuid.UUID) (*models.SyncConflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		return c, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *memConflicts) Update(_ context.Context, c *models.SyncConflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *memConflicts) ListPendingByMapping(_ context.Context, mappingID uuid.UUID) ([]*models.SyncConflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncConflict
	for _, c := range r.byID {
		if c.MappingID == mappingID && c.Status == models.ConflictPending {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memConflicts) ListPendingSimilar(_ context.Context, field string, conflictType models.ConflictType, exclude uuid.UUID) ([]*models.SyncConflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncConflict
	for _, c := range r.byID {
		if c.ID != exclude && c.Field == field && c.Type == conflictType && c.Status == models.ConflictPending {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memConflicts) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, c := range r.byID {
		if c.Status != models.ConflictPending && c.CreatedAt.Before(cutoff) {
			delete(r.byID, id)
			deleted++
		}
	}
	return deleted, nil
}

type memDocs struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Document
}

func newMemDocs() *memDocs {
	return &memDocs{byID: make(map[uuid.UUID]*models.Document)}
}

func (r *memDocs) Create(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.ID = uuid.New()
	doc.Version = 1
	doc.CreatedAt = time.Now()
	r.byID[doc.ID] = doc
	return nil
}

func (r *memDocs) GetByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.byID[id]; ok {
		return doc, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *memDocs) Update(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[doc.ID]; !ok {
		return repositories.ErrNotFound
	}
	doc.Version++
	now := time.Now()
	doc.UpdatedAt = &now
	r.byID[doc.ID] = doc
	return nil
}

// fakeRemote serves items from memory and fails on demand per key.
type fakeRemote struct {
	mu      sync.Mutex
	items   map[string]*models.RemoteItem
	fail    map[string]error
	updates map[string]map[string]any
	nextKey int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		items:   make(map[string]*models.RemoteItem),
		fail:    make(map[string]error),
		updates: make(map[string]map[string]any),
	}
}

func (f *fakeRemote) FetchItem(_ context.Context, key string) (*models.RemoteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	if item, ok := f.items[key]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, fmt.Errorf("item %s not found", key)
}

func (f *fakeRemote) CreateItem(_ context.Context, item *models.RemoteItem) (*models.RemoteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextKey++
	created := *item
	created.Key = fmt.Sprintf("TRACK-%d", f.nextKey)
	created.ID = fmt.Sprintf("%d", 10000+f.nextKey)
	created.Created = time.Now()
	created.Updated = created.Created
	f.items[created.Key] = &created
	return &created, nil
}

func (f *fakeRemote) UpdateItem(_ context.Context, key string, fields map[string]any) (*models.RemoteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[key]
	if !ok {
		return nil, fmt.Errorf("item %s not found", key)
	}
	f.updates[key] = fields
	for field, v := range fields {
		switch field {
		case "title":
			item.Title, _ = v.(string)
		case "description":
			item.Description, _ = v.(string)
		case "status":
			item.Status, _ = v.(string)
		case "customFields":
			if m, ok := v.(map[string]any); ok {
				item.CustomFields = m
			}
		}
	}
	item.Updated = time.Now()
	copied := *item
	return &copied, nil
}

// recordingDispatcher captures enqueued jobs without running them.
type recordingDispatcher struct {
	mu       sync.Mutex
	enqueued []*models.SyncJob
	jobs     *memJobs
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, job *models.SyncJob, _ []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.jobs != nil {
		if err := d.jobs.Create(ctx, job); err != nil {
			return err
		}
	} else {
		job.ID = uuid.New()
	}
	d.enqueued = append(d.enqueued, job)
	return nil
}

func (d *recordingDispatcher) Cancel(context.Context, uuid.UUID) error { return nil }
func (d *recordingDispatcher) Retry(context.Context, uuid.UUID) error  { return nil }

// staticRules is an in-memory mapper.RuleSource.
type staticRules struct {
	rules []*models.FieldMapping
}

func (s *staticRules) ListActive(_ context.Context, direction models.SyncDirection) ([]*models.FieldMapping, error) {
	var out []*models.FieldMapping
	for _, r := range s.rules {
		if r.Active && (r.Direction == direction || r.Direction == models.DirectionBidirectional) {
			out = append(out, r)
		}
	}
	return out, nil
}
