package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/mapper"
	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/HR-AR/Project-Conductor-sub007/internal/repositories"
	"github.com/HR-AR/Project-Conductor-sub007/internal/resolver"
	"github.com/HR-AR/Project-Conductor-sub007/internal/syncerr"
	"github.com/google/uuid"
)

// DefaultConflictRetention is how long resolved and ignored conflicts are
// kept for audit before cleanup reaps them.
const DefaultConflictRetention = 30 * 24 * time.Hour

// ConflictService owns the conflict lifecycle: pending → resolved or ignored.
// Detection and merge semantics live in the resolver package; this service
// adds persistence and the write-back of resolved values.
type ConflictService struct {
	conflicts repositories.SyncConflictRepository
	mappings  repositories.SyncMappingRepository
	docs      DocumentStore
	remote    RemoteClient
	retention time.Duration
}

func NewConflictService(
	conflicts repositories.SyncConflictRepository,
	mappings repositories.SyncMappingRepository,
	docs DocumentStore,
	remote RemoteClient,
	retention time.Duration,
) *ConflictService {
	if retention <= 0 {
		retention = DefaultConflictRetention
	}
	return &ConflictService{
		conflicts: conflicts,
		mappings:  mappings,
		docs:      docs,
		remote:    remote,
		retention: retention,
	}
}

// Resolve settles one pending conflict. The manual strategy requires an
// explicit value; a conflict may be resolved exactly once.
func (s *ConflictService) Resolve(ctx context.Context, id uuid.UUID, strategy models.ResolutionStrategy, value any, actor string) (*models.SyncConflict, error) {
	c, err := s.conflicts.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, syncerr.Validationf("conflict %s not found", id)
	}
	if err != nil {
		return nil, &syncerr.PersistenceError{Op: "load conflict", Err: err}
	}
	if c.Status != models.ConflictPending {
		return nil, syncerr.Validationf("conflict %s is already %s", id, c.Status)
	}

	resolved, err := resolver.Resolve(strategy, c.BaseValue, c.LocalValue, c.RemoteValue, value)
	if err != nil {
		return nil, err
	}

	if err := s.applyResolution(ctx, c, resolved); err != nil {
		return nil, err
	}

	now := time.Now()
	c.Strategy = strategy
	c.ResolvedValue = resolved
	c.ResolvedBy = &actor
	c.ResolvedAt = &now
	c.Status = models.ConflictResolved
	if err := s.conflicts.Update(ctx, c); err != nil {
		return nil, &syncerr.PersistenceError{Op: "record resolution", Err: err}
	}

	log.Printf("conflict %s on mapping %s resolved with %s by %s", c.ID, c.MappingID, strategy, actor)
	return c, nil
}

// ResolveSimilar resolves the anchor conflict and then every other pending
// conflict sharing its field and type with the same strategy, continuing past
// individual failures. Returns the number resolved, the anchor included.
func (s *ConflictService) ResolveSimilar(ctx context.Context, id uuid.UUID, strategy models.ResolutionStrategy, actor string) (int, error) {
	anchor, err := s.Resolve(ctx, id, strategy, nil, actor)
	if err != nil {
		return 0, err
	}

	similar, err := s.conflicts.ListPendingSimilar(ctx, anchor.Field, anchor.Type, anchor.ID)
	if err != nil {
		return 1, &syncerr.PersistenceError{Op: "list similar conflicts", Err: err}
	}

	resolved := 1
	for _, c := range similar {
		if _, err := s.Resolve(ctx, c.ID, strategy, nil, actor); err != nil {
			log.Printf("conflict %s: apply-to-similar skipped: %v", c.ID, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

// Ignore marks a pending conflict as an explicit no-op. Terminal, like
// resolution.
func (s *ConflictService) Ignore(ctx context.Context, id uuid.UUID, actor string) error {
	c, err := s.conflicts.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return syncerr.Validationf("conflict %s not found", id)
	}
	if err != nil {
		return &syncerr.PersistenceError{Op: "load conflict", Err: err}
	}
	if c.Status != models.ConflictPending {
		return syncerr.Validationf("conflict %s is already %s", id, c.Status)
	}

	now := time.Now()
	c.ResolvedBy = &actor
	c.ResolvedAt = &now
	c.Status = models.ConflictIgnored
	if err := s.conflicts.Update(ctx, c); err != nil {
		return &syncerr.PersistenceError{Op: "record ignore", Err: err}
	}
	return nil
}

// ListPending exposes a mapping's open conflicts.
func (s *ConflictService) ListPending(ctx context.Context, mappingID uuid.UUID) ([]*models.SyncConflict, error) {
	return s.conflicts.ListPendingByMapping(ctx, mappingID)
}

// Cleanup reaps terminal-state conflicts older than the retention horizon.
func (s *ConflictService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.conflicts.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Printf("conflict cleanup removed %d terminal conflicts older than %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}

// applyResolution writes the resolved value to BOTH sides of the pair and
// settles the base snapshot to match, so the next diff in either direction
// sees agreement instead of re-flagging the divergence or reverting the
// resolution. Conflicts may carry either local or remote field names; the
// value is translated into each side's space before it lands.
func (s *ConflictService) applyResolution(ctx context.Context, c *models.SyncConflict, resolved any) error {
	m, err := s.mappings.GetByID(ctx, c.MappingID)
	if errors.Is(err, repositories.ErrNotFound) {
		return syncerr.Validationf("mapping %s not found for conflict %s", c.MappingID, c.ID)
	}
	if err != nil {
		return &syncerr.PersistenceError{Op: "load mapping", Err: err}
	}

	doc, err := s.docs.GetByID(ctx, m.LocalID)
	if err != nil {
		return &syncerr.PersistenceError{Op: "load document " + m.LocalID.String(), Err: err}
	}

	// Remote first: if the push fails the conflict stays pending and the
	// resolution can be retried without a half-applied state.
	remoteUpdates := make(map[string]any)
	addRemoteField(remoteUpdates, c.Field, resolved)
	if !resolver.Equal(resolved, c.RemoteValue) {
		if _, err := s.remote.UpdateItem(ctx, m.RemoteKey, remoteUpdates); err != nil {
			return &syncerr.RemoteError{Op: "update " + m.RemoteKey, Err: err}
		}
	}

	localField := c.Field
	if localField == "description" {
		localField = "narrative"
	}
	localVal := resolved
	if localField == "status" {
		localVal = mapper.TranslateStatus(toString(resolved), false)
	}
	applyDocumentFields(doc, map[string]any{localField: localVal})
	if err := s.docs.Update(ctx, doc); err != nil {
		return &syncerr.PersistenceError{Op: "update document " + doc.ID.String(), Err: err}
	}

	if m.BaseSnapshot == nil {
		m.BaseSnapshot = &models.SyncSnapshot{}
	}
	if m.BaseSnapshot.Local == nil {
		m.BaseSnapshot.Local = map[string]any{}
	}
	if v, ok := documentChecklist(doc)[localField]; ok {
		m.BaseSnapshot.Local[localField] = v
	} else {
		m.BaseSnapshot.Local[localField] = localVal
	}
	for field, v := range remoteUpdates {
		if field == "customFields" {
			continue
		}
		if m.BaseSnapshot.Remote == nil {
			m.BaseSnapshot.Remote = map[string]any{}
		}
		m.BaseSnapshot.Remote[field] = v
	}
	now := time.Now()
	m.LastModifiedLocal = &now
	if err := s.mappings.Update(ctx, m); err != nil {
		return &syncerr.PersistenceError{Op: "refresh mapping " + m.ID.String(), Err: err}
	}
	return nil
}
