package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/HR-AR/Project-Conductor-sub007/internal/repositories"
	"github.com/HR-AR/Project-Conductor-sub007/internal/resolver"
	"github.com/HR-AR/Project-Conductor-sub007/internal/syncerr"
	"github.com/google/uuid"
)

// localChecklist is the fixed set of document fields the 3-way diff covers on
// import, keyed the way the mapper emits them.
var localChecklist = []string{"title", "narrative", "impact", "status", "budget"}

// remoteChecklist is the export-side counterpart, keyed by remote field names.
var remoteChecklist = []string{"title", "description", "status"}

// ExecuteJob runs one dispatched job to the end of its item list. A per-item
// error is counted and the loop continues; only an unsupported configuration
// fails the job as a whole.
func (s *SyncService) ExecuteJob(ctx context.Context, job *models.SyncJob) error {
	var run func(ctx context.Context, job *models.SyncJob, i int) error
	var total int

	switch job.Direction {
	case models.DirectionFromRemote:
		total = len(job.TargetKeys)
		run = func(ctx context.Context, job *models.SyncJob, i int) error {
			return s.importOne(ctx, job, job.TargetKeys[i])
		}
	case models.DirectionToRemote:
		total = len(job.TargetIDs)
		run = func(ctx context.Context, job *models.SyncJob, i int) error {
			return s.exportOne(ctx, job, job.TargetIDs[i])
		}
	case models.DirectionBidirectional:
		return syncerr.ErrUnsupportedDirection
	default:
		return fmt.Errorf("unknown sync direction %q", job.Direction)
	}

	job.TotalItems = total
	for i := 0; i < total; i++ {
		if err := run(ctx, job, i); err != nil {
			job.FailedItems++
			log.Printf("job %s: item %d/%d failed: %v", job.ID, i+1, total, err)
		} else {
			job.ProcessedItems++
		}

		job.Progress = (i + 1) * 100 / total
		if err := s.jobs.Update(ctx, job); err != nil {
			log.Printf("job %s: failed to persist progress: %v", job.ID, err)
		}
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.CompletedAt = &now
	if err := s.jobs.Update(ctx, job); err != nil {
		// The work is done; a bookkeeping failure must not flip the job to
		// failed.
		log.Printf("job %s: failed to mark completed: %v", job.ID, err)
	}
	return nil
}

// importOne applies one remote item to its local document.
func (s *SyncService) importOne(ctx context.Context, job *models.SyncJob, key string) error {
	item, err := s.remote.FetchItem(ctx, key)
	if err != nil {
		return &syncerr.RemoteError{Op: "fetch " + key, Err: err}
	}

	m, err := s.mappings.GetByRemoteKey(ctx, key)
	if errors.Is(err, repositories.ErrNotFound) {
		return s.importNew(ctx, item)
	}
	if err != nil {
		return &syncerr.PersistenceError{Op: "load mapping", Err: err}
	}
	if !m.SyncEnabled {
		return syncerr.Validationf("sync is disabled on mapping %s", m.ID)
	}

	doc, err := s.docs.GetByID(ctx, m.LocalID)
	if err != nil {
		return &syncerr.PersistenceError{Op: "load document " + m.LocalID.String(), Err: err}
	}

	mapped, err := s.mapper.MapRemoteToLocal(ctx, item)
	if err != nil {
		return &syncerr.PersistenceError{Op: "map item " + key, Err: err}
	}

	base := snapshotSide(m.BaseSnapshot, false)
	current := documentChecklist(doc)

	updates := make(map[string]any)
	remoteUpdates := make(map[string]any)
	var pending []*models.SyncConflict

	for _, field := range localChecklist {
		remoteVal, ok := mapped.Fields[field]
		if !ok {
			continue
		}
		out := resolver.Detect(base[field], current[field], remoteVal)

		if !out.Conflict {
			if (out.LocalChanged || out.RemoteChanged) && !resolver.Equal(out.Result, current[field]) {
				updates[field] = out.Result
			}
			continue
		}

		if job.AutoResolve {
			resolved, rerr := resolver.Resolve(job.Strategy, base[field], current[field], remoteVal, nil)
			if rerr != nil {
				return rerr
			}
			updates[field] = resolved
			// A resolution that departs from the remote value must land on
			// the remote too, or the next import reverts it.
			if !resolver.Equal(resolved, remoteVal) {
				addRemoteField(remoteUpdates, field, resolved)
			}
			s.recordResolvedConflict(ctx, job, m, field, base[field], current[field], remoteVal, resolved)
		} else {
			pending = append(pending, &models.SyncConflict{
				JobID:       &job.ID,
				MappingID:   m.ID,
				Field:       field,
				BaseValue:   base[field],
				LocalValue:  current[field],
				RemoteValue: remoteVal,
				Type:        resolver.Classify(field, current[field], remoteVal),
				Status:      models.ConflictPending,
			})
		}
	}

	if len(pending) > 0 {
		fields := make([]string, 0, len(pending))
		for _, c := range pending {
			if err := s.conflicts.Create(ctx, c); err != nil {
				log.Printf("mapping %s: failed to record conflict on %s: %v", m.ID, c.Field, err)
				continue
			}
			fields = append(fields, c.Field)
		}
		if err := s.mappings.IncrementConflictCount(ctx, m.ID, len(fields)); err != nil {
			log.Printf("mapping %s: failed to bump conflict count: %v", m.ID, err)
		}
		// Timestamps stay untouched so the item remains retry-eligible.
		return &syncerr.ConflictError{MappingID: m.ID, Fields: fields}
	}

	if len(updates) > 0 {
		applyDocumentFields(doc, updates)
		if err := s.docs.Update(ctx, doc); err != nil {
			return &syncerr.PersistenceError{Op: "update document " + doc.ID.String(), Err: err}
		}
	}

	if len(remoteUpdates) > 0 {
		updated, err := s.remote.UpdateItem(ctx, m.RemoteKey, remoteUpdates)
		if err != nil {
			return &syncerr.RemoteError{Op: "update " + m.RemoteKey, Err: err}
		}
		item = updated
	}

	return s.refreshMapping(ctx, m, doc, item)
}

// importNew creates a local document and a mapping for a previously unmapped
// remote item. Idempotent at the pair level: a concurrent create of the same
// pair loses on the unique constraint and surfaces as an item failure.
func (s *SyncService) importNew(ctx context.Context, item *models.RemoteItem) error {
	mapped, err := s.mapper.MapRemoteToLocal(ctx, item)
	if err != nil {
		return &syncerr.PersistenceError{Op: "map item " + item.Key, Err: err}
	}

	doc := &models.Document{Status: models.DocStatusDraft}
	applyDocumentFields(doc, mapped.Fields)
	if doc.Title == "" {
		return syncerr.Validationf("remote item %s has no mappable title", item.Key)
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		return &syncerr.PersistenceError{Op: "create document", Err: err}
	}

	now := time.Now()
	m := &models.SyncMapping{
		LocalID:            doc.ID,
		RemoteKey:          item.Key,
		RemoteInternalID:   item.ID,
		SyncEnabled:        true,
		AutoSync:           true,
		LastSyncedAt:       &now,
		LastModifiedLocal:  &now,
		LastModifiedRemote: &item.Updated,
		BaseSnapshot: &models.SyncSnapshot{
			Local:  documentChecklist(doc),
			Remote: itemChecklist(item),
		},
	}
	if err := s.mappings.Create(ctx, m); err != nil {
		return &syncerr.PersistenceError{Op: "create mapping", Err: err}
	}
	log.Printf("imported %s as new document %s (mapping %s)", item.Key, doc.ID, m.ID)
	return nil
}

// exportOne pushes one local document to its remote item, mirroring importOne.
func (s *SyncService) exportOne(ctx context.Context, job *models.SyncJob, id uuid.UUID) error {
	doc, err := s.docs.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return syncerr.Validationf("document %s not found", id)
	}
	if err != nil {
		return &syncerr.PersistenceError{Op: "load document " + id.String(), Err: err}
	}

	m, err := s.mappings.GetByLocalID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return s.exportNew(ctx, doc)
	}
	if err != nil {
		return &syncerr.PersistenceError{Op: "load mapping", Err: err}
	}
	if !m.SyncEnabled {
		return syncerr.Validationf("sync is disabled on mapping %s", m.ID)
	}

	item, err := s.remote.FetchItem(ctx, m.RemoteKey)
	if err != nil {
		return &syncerr.RemoteError{Op: "fetch " + m.RemoteKey, Err: err}
	}

	mapped, err := s.mapper.MapLocalToRemote(ctx, doc)
	if err != nil {
		return &syncerr.PersistenceError{Op: "map document " + id.String(), Err: err}
	}

	base := snapshotSide(m.BaseSnapshot, true)
	current := itemChecklist(item)

	updates := make(map[string]any)
	localUpdates := make(map[string]any)
	var pending []*models.SyncConflict

	for _, field := range remoteChecklist {
		localVal, ok := mapped.Fields[field]
		if !ok {
			continue
		}
		out := resolver.Detect(base[field], localVal, current[field])

		if !out.Conflict {
			if (out.LocalChanged || out.RemoteChanged) && !resolver.Equal(out.Result, current[field]) {
				updates[field] = out.Result
			}
			continue
		}

		if job.AutoResolve {
			resolved, rerr := resolver.Resolve(job.Strategy, base[field], localVal, current[field], nil)
			if rerr != nil {
				return rerr
			}
			if !resolver.Equal(resolved, current[field]) {
				updates[field] = resolved
			}
			// A resolution that departs from the local value must land on
			// the document too, or the next export reverts it.
			if !resolver.Equal(resolved, localVal) {
				addLocalField(localUpdates, field, resolved)
			}
			s.recordResolvedConflict(ctx, job, m, field, base[field], localVal, current[field], resolved)
		} else {
			pending = append(pending, &models.SyncConflict{
				JobID:       &job.ID,
				MappingID:   m.ID,
				Field:       field,
				BaseValue:   base[field],
				LocalValue:  localVal,
				RemoteValue: current[field],
				Type:        resolver.Classify(field, localVal, current[field]),
				Status:      models.ConflictPending,
			})
		}
	}

	if len(pending) > 0 {
		fields := make([]string, 0, len(pending))
		for _, c := range pending {
			if err := s.conflicts.Create(ctx, c); err != nil {
				log.Printf("mapping %s: failed to record conflict on %s: %v", m.ID, c.Field, err)
				continue
			}
			fields = append(fields, c.Field)
		}
		if err := s.mappings.IncrementConflictCount(ctx, m.ID, len(fields)); err != nil {
			log.Printf("mapping %s: failed to bump conflict count: %v", m.ID, err)
		}
		return &syncerr.ConflictError{MappingID: m.ID, Fields: fields}
	}

	if len(localUpdates) > 0 {
		applyDocumentFields(doc, localUpdates)
		if err := s.docs.Update(ctx, doc); err != nil {
			return &syncerr.PersistenceError{Op: "update document " + doc.ID.String(), Err: err}
		}
	}

	// Custom fields are push-through: the engine tracks no base for them.
	if len(mapped.Custom) > 0 {
		updates["customFields"] = mapped.Custom
	}

	if len(updates) > 0 {
		updated, err := s.remote.UpdateItem(ctx, m.RemoteKey, updates)
		if err != nil {
			return &syncerr.RemoteError{Op: "update " + m.RemoteKey, Err: err}
		}
		item = updated
	}

	return s.refreshMapping(ctx, m, doc, item)
}

// exportNew creates a remote item and a mapping for a previously unmapped
// document.
func (s *SyncService) exportNew(ctx context.Context, doc *models.Document) error {
	mapped, err := s.mapper.MapLocalToRemote(ctx, doc)
	if err != nil {
		return &syncerr.PersistenceError{Op: "map document " + doc.ID.String(), Err: err}
	}

	item := &models.RemoteItem{
		Title:        toString(mapped.Fields["title"]),
		Description:  toString(mapped.Fields["description"]),
		Status:       toString(mapped.Fields["status"]),
		Labels:       toStrings(mapped.Fields["labels"]),
		CustomFields: mapped.Custom,
	}
	created, err := s.remote.CreateItem(ctx, item)
	if err != nil {
		return &syncerr.RemoteError{Op: "create item for " + doc.ID.String(), Err: err}
	}

	now := time.Now()
	m := &models.SyncMapping{
		LocalID:            doc.ID,
		RemoteKey:          created.Key,
		RemoteInternalID:   created.ID,
		SyncEnabled:        true,
		AutoSync:           true,
		LastSyncedAt:       &now,
		LastModifiedLocal:  &now,
		LastModifiedRemote: &created.Updated,
		BaseSnapshot: &models.SyncSnapshot{
			Local:  documentChecklist(doc),
			Remote: itemChecklist(created),
		},
	}
	if err := s.mappings.Create(ctx, m); err != nil {
		return &syncerr.PersistenceError{Op: "create mapping", Err: err}
	}
	log.Printf("exported document %s as %s (mapping %s)", doc.ID, created.Key, m.ID)
	return nil
}

// refreshMapping records a successful sync: timestamps plus a new base
// snapshot of both sides.
func (s *SyncService) refreshMapping(ctx context.Context, m *models.SyncMapping, doc *models.Document, item *models.RemoteItem) error {
	now := time.Now()
	m.LastSyncedAt = &now
	m.LastModifiedLocal = &now
	if !item.Updated.IsZero() {
		m.LastModifiedRemote = &item.Updated
	} else {
		m.LastModifiedRemote = &now
	}
	if item.ID != "" {
		m.RemoteInternalID = item.ID
	}
	m.BaseSnapshot = &models.SyncSnapshot{
		Local:  documentChecklist(doc),
		Remote: itemChecklist(item),
	}
	if err := s.mappings.Update(ctx, m); err != nil {
		return &syncerr.PersistenceError{Op: "refresh mapping " + m.ID.String(), Err: err}
	}
	return nil
}

// recordResolvedConflict keeps the audit trail for auto-resolved conflicts.
func (s *SyncService) recordResolvedConflict(ctx context.Context, job *models.SyncJob, m *models.SyncMapping, field string, base, local, remote, resolved any) {
	now := time.Now()
	actor := "auto-resolve"
	c := &models.SyncConflict{
		JobID:       &job.ID,
		MappingID:   m.ID,
		Field:       field,
		BaseValue:   base,
		LocalValue:  local,
		RemoteValue: remote,
		Type:        resolver.Classify(field, local, remote),
		Status:      models.ConflictPending,
	}
	if err := s.conflicts.Create(ctx, c); err != nil {
		log.Printf("mapping %s: failed to record auto-resolved conflict on %s: %v", m.ID, field, err)
		return
	}
	c.Strategy = job.Strategy
	c.ResolvedValue = resolved
	c.ResolvedBy = &actor
	c.ResolvedAt = &now
	c.Status = models.ConflictResolved
	if err := s.conflicts.Update(ctx, c); err != nil {
		log.Printf("mapping %s: failed to mark auto-resolved conflict on %s: %v", m.ID, field, err)
		return
	}
	if err := s.mappings.IncrementConflictCount(ctx, m.ID, 1); err != nil {
		log.Printf("mapping %s: failed to bump conflict count: %v", m.ID, err)
	}
}
