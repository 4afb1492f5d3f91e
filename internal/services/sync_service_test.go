package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/mapper"
	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/HR-AR/Project-Conductor-sub007/internal/syncerr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncEnv struct {
	mappings  *memMappings
	jobs      *memJobs
	conflicts *memConflicts
	docs      *memDocs
	remote    *fakeRemote
	dispatch  *recordingDispatcher
	svc       *SyncService
}

func newSyncEnv(rules ...*models.FieldMapping) *syncEnv {
	env := &syncEnv{
		mappings:  newMemMappings(),
		jobs:      newMemJobs(),
		conflicts: newMemConflicts(),
		docs:      newMemDocs(),
		remote:    newFakeRemote(),
	}
	env.svc = NewSyncService(
		env.mappings, env.jobs, env.conflicts, env.docs, env.remote,
		mapper.New(&staticRules{rules: rules}),
	)
	env.dispatch = &recordingDispatcher{jobs: env.jobs}
	env.svc.SetDispatcher(env.dispatch)
	return env
}

// seedPair creates a document, its remote item and a mapping whose base
// snapshot matches both sides, i.e. a fully synced pair.
func (env *syncEnv) seedPair(t *testing.T, doc *models.Document, item *models.RemoteItem) *models.SyncMapping {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.docs.Create(ctx, doc))

	item.Updated = time.Now()
	env.remote.items[item.Key] = item

	syncedAt := time.Now().Add(-time.Hour)
	m := &models.SyncMapping{
		LocalID:      doc.ID,
		RemoteKey:    item.Key,
		SyncEnabled:  true,
		AutoSync:     true,
		LastSyncedAt: &syncedAt,
		BaseSnapshot: &models.SyncSnapshot{
			Local:  documentChecklist(doc),
			Remote: itemChecklist(item),
		},
	}
	require.NoError(t, env.mappings.Create(ctx, m))
	return m
}

func (env *syncEnv) importJob(t *testing.T, keys ...string) *models.SyncJob {
	t.Helper()
	job := &models.SyncJob{
		Direction:  models.DirectionFromRemote,
		Operation:  models.OperationBulkImport,
		Status:     models.JobStatusPending,
		Strategy:   models.StrategyKeepRemote,
		TargetKeys: keys,
		TotalItems: len(keys),
		MaxRetries: 3,
	}
	require.NoError(t, env.jobs.Create(context.Background(), job))
	return job
}

func (env *syncEnv) exportJob(t *testing.T, ids ...uuid.UUID) *models.SyncJob {
	t.Helper()
	job := &models.SyncJob{
		Direction:  models.DirectionToRemote,
		Operation:  models.OperationBulkExport,
		Status:     models.JobStatusPending,
		Strategy:   models.StrategyKeepLocal,
		TargetIDs:  ids,
		TotalItems: len(ids),
		MaxRetries: 3,
	}
	require.NoError(t, env.jobs.Create(context.Background(), job))
	return job
}

func TestExecuteJob_PartialBatchFailureStillCompletes(t *testing.T) {
	// Arrange
	env := newSyncEnv()
	keys := []string{"TRACK-1", "TRACK-2", "TRACK-3", "TRACK-4", "TRACK-5"}
	for _, key := range keys {
		env.remote.items[key] = &models.RemoteItem{
			Key: key, Title: "Item " + key, Status: "To Do", Updated: time.Now(),
		}
	}
	env.remote.fail["TRACK-3"] = errors.New("tracker returned 502")
	job := env.importJob(t, keys...)

	// Act
	err := env.svc.ExecuteJob(context.Background(), job)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 4, job.ProcessedItems)
	assert.Equal(t, 1, job.FailedItems)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.CompletedAt)
	assert.Len(t, env.docs.byID, 4)
}

func TestExecuteJob_BidirectionalIsJobFatal(t *testing.T) {
	env := newSyncEnv()
	job := &models.SyncJob{
		Direction: models.DirectionBidirectional,
		Operation: models.OperationUpdate,
		Status:    models.JobStatusPending,
	}
	require.NoError(t, env.jobs.Create(context.Background(), job))

	err := env.svc.ExecuteJob(context.Background(), job)

	assert.ErrorIs(t, err, syncerr.ErrUnsupportedDirection)
	assert.NotEqual(t, models.JobStatusCompleted, job.Status)
}

func TestImport_RemoteWinsWhenLocalUnchanged(t *testing.T) {
	env := newSyncEnv()
	doc := &models.Document{Title: "Launch plan", Narrative: "Q3 launch", Status: models.DocStatusDraft}
	item := &models.RemoteItem{Key: "TRACK-10", Title: "Launch plan", Description: "Q3 launch", Status: "To Do"}
	m := env.seedPair(t, doc, item)

	// Remote moved the item forward; local is untouched since the base.
	env.remote.items["TRACK-10"].Status = "In Review"
	job := env.importJob(t, "TRACK-10")

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedItems)
	assert.Zero(t, job.FailedItems)
	assert.Equal(t, models.DocStatusUnderReview, doc.Status)

	refreshed, err := env.mappings.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.LastSyncedAt.After(time.Now().Add(-time.Minute)))
	assert.Equal(t, models.DocStatusUnderReview, refreshed.BaseSnapshot.Local["status"])

	pending, err := env.conflicts.ListPendingByMapping(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func budgetRules() []*models.FieldMapping {
	return []*models.FieldMapping{
		{
			ID:          uuid.New(),
			SourceField: "customFields.budget",
			TargetField: "budget",
			Direction:   models.DirectionFromRemote,
			Active:      true,
		},
		{
			ID:            uuid.New(),
			SourceField:   "budget",
			TargetField:   "budget",
			Direction:     models.DirectionToRemote,
			IsCustomField: true,
			Active:        true,
		},
	}
}

func TestImport_DivergedFieldRecordsPendingConflict(t *testing.T) {
	env := newSyncEnv(budgetRules()...)
	doc := &models.Document{Title: "Budget doc", Narrative: "spend", Status: models.DocStatusDraft, Budget: 1000}
	item := &models.RemoteItem{
		Key: "TRACK-20", Title: "Budget doc", Description: "spend", Status: "To Do",
		CustomFields: map[string]any{"budget": 1000.0},
	}
	m := env.seedPair(t, doc, item)
	before := *m.LastSyncedAt

	// Both sides moved off the base to different values.
	doc.Budget = 1200
	env.remote.items["TRACK-20"].CustomFields["budget"] = 900.0
	job := env.importJob(t, "TRACK-20")

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.FailedItems, "a conflicted item counts as failed")

	pending, err := env.conflicts.ListPendingByMapping(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	c := pending[0]
	assert.Equal(t, "budget", c.Field)
	assert.Equal(t, models.ConflictConcurrentModification, c.Type)
	assert.Equal(t, 1000.0, c.BaseValue)
	assert.Equal(t, 1200.0, c.LocalValue)
	assert.Equal(t, 900.0, c.RemoteValue)

	// Nothing was written and the item stays retry-eligible.
	assert.Equal(t, float64(1200), doc.Budget)
	refreshed, err := env.mappings.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.LastSyncedAt.Equal(before), "conflicted sync must not advance last_synced_at")
	assert.Equal(t, 1, refreshed.ConflictCount)
}

func TestImport_AutoResolveKeepRemoteApplies(t *testing.T) {
	env := newSyncEnv(budgetRules()...)
	doc := &models.Document{Title: "Budget doc", Narrative: "spend", Status: models.DocStatusDraft, Budget: 1000}
	item := &models.RemoteItem{
		Key: "TRACK-21", Title: "Budget doc", Description: "spend", Status: "To Do",
		CustomFields: map[string]any{"budget": 1000.0},
	}
	m := env.seedPair(t, doc, item)

	doc.Budget = 1200
	env.remote.items["TRACK-21"].CustomFields["budget"] = 900.0
	job := env.importJob(t, "TRACK-21")
	job.AutoResolve = true

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedItems)
	assert.Zero(t, job.FailedItems)
	assert.Equal(t, float64(900), doc.Budget)

	refreshed, err := env.mappings.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 900.0, refreshed.BaseSnapshot.Local["budget"])

	// The auto-resolution leaves an audit row, not a pending one.
	pending, err := env.conflicts.ListPendingByMapping(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
	var resolved *models.SyncConflict
	for _, c := range env.conflicts.byID {
		if c.MappingID == m.ID {
			resolved = c
		}
	}
	require.NotNil(t, resolved)
	assert.Equal(t, models.ConflictResolved, resolved.Status)
	assert.Equal(t, models.StrategyKeepRemote, resolved.Strategy)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "auto-resolve", *resolved.ResolvedBy)
}

func TestImport_AutoResolveKeepLocalPushesToRemote(t *testing.T) {
	env := newSyncEnv(budgetRules()...)
	doc := &models.Document{Title: "Budget doc", Narrative: "spend", Status: models.DocStatusDraft, Budget: 1000}
	item := &models.RemoteItem{
		Key: "TRACK-22", Title: "Budget doc", Description: "spend", Status: "To Do",
		CustomFields: map[string]any{"budget": 1000.0},
	}
	m := env.seedPair(t, doc, item)

	doc.Budget = 1200
	env.remote.items["TRACK-22"].CustomFields["budget"] = 900.0
	job := env.importJob(t, "TRACK-22")
	job.AutoResolve = true
	job.Strategy = models.StrategyKeepLocal

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedItems)
	assert.Equal(t, float64(1200), doc.Budget)

	pushed, ok := env.remote.updates["TRACK-22"]
	require.True(t, ok, "the kept local value must land on the remote item")
	custom, ok := pushed["customFields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1200.0, custom["budget"])

	refreshed, err := env.mappings.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, refreshed.BaseSnapshot.Local["budget"])

	// A second import finds both sides agreeing and changes nothing.
	again := env.importJob(t, "TRACK-22")
	require.NoError(t, env.svc.ExecuteJob(context.Background(), again))
	assert.Zero(t, again.FailedItems)
	assert.Equal(t, float64(1200), doc.Budget)
}

func TestImport_UnmappedKeyCreatesDocumentAndMapping(t *testing.T) {
	env := newSyncEnv()
	env.remote.items["TRACK-30"] = &models.RemoteItem{
		Key: "TRACK-30", ID: "10030", Title: "Fresh item",
		Description: "needs a local document", Status: "In Review", Updated: time.Now(),
	}
	job := env.importJob(t, "TRACK-30")

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedItems)

	m, err := env.mappings.GetByRemoteKey(context.Background(), "TRACK-30")
	require.NoError(t, err)
	assert.True(t, m.SyncEnabled)
	assert.True(t, m.AutoSync)
	assert.Equal(t, "10030", m.RemoteInternalID)
	require.NotNil(t, m.BaseSnapshot)

	doc, err := env.docs.GetByID(context.Background(), m.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh item", doc.Title)
	assert.Equal(t, "needs a local document", doc.Narrative)
	assert.Equal(t, models.DocStatusUnderReview, doc.Status)
}

func TestImport_UntitledUnmappedItemFailsItem(t *testing.T) {
	env := newSyncEnv()
	env.remote.items["TRACK-31"] = &models.RemoteItem{Key: "TRACK-31", Status: "To Do"}
	job := env.importJob(t, "TRACK-31")

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 1, job.FailedItems)
	assert.Empty(t, env.docs.byID)
}

func TestExport_PushesLocalChanges(t *testing.T) {
	env := newSyncEnv()
	doc := &models.Document{Title: "Old title", Narrative: "body", Status: models.DocStatusDraft}
	item := &models.RemoteItem{Key: "TRACK-40", Title: "Old title", Description: "body", Status: "To Do"}
	m := env.seedPair(t, doc, item)

	doc.Title = "New title"
	job := env.exportJob(t, doc.ID)

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedItems)
	assert.Zero(t, job.FailedItems)

	pushed, ok := env.remote.updates["TRACK-40"]
	require.True(t, ok, "remote item should have been updated")
	assert.Equal(t, "New title", pushed["title"])
	assert.NotContains(t, pushed, "status")

	refreshed, err := env.mappings.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "New title", refreshed.BaseSnapshot.Remote["title"])
}

func TestExport_AutoResolveKeepRemoteWritesBackToDocument(t *testing.T) {
	env := newSyncEnv()
	doc := &models.Document{Title: "Old title", Narrative: "body", Status: models.DocStatusDraft}
	item := &models.RemoteItem{Key: "TRACK-41", Title: "Old title", Description: "body", Status: "To Do"}
	m := env.seedPair(t, doc, item)

	doc.Title = "Local title"
	env.remote.items["TRACK-41"].Title = "Remote title"
	job := env.exportJob(t, doc.ID)
	job.AutoResolve = true
	job.Strategy = models.StrategyKeepRemote

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedItems)
	assert.Equal(t, "Remote title", doc.Title, "the kept remote value must land on the document")
	_, pushed := env.remote.updates["TRACK-41"]
	assert.False(t, pushed, "nothing to push when the remote side wins")

	refreshed, err := env.mappings.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Remote title", refreshed.BaseSnapshot.Local["title"])
	assert.Equal(t, "Remote title", refreshed.BaseSnapshot.Remote["title"])
}

func TestExport_UnmappedDocumentCreatesRemoteItem(t *testing.T) {
	env := newSyncEnv()
	doc := &models.Document{Title: "Brand new", Narrative: "details", Status: models.DocStatusUnderReview}
	require.NoError(t, env.docs.Create(context.Background(), doc))
	job := env.exportJob(t, doc.ID)

	err := env.svc.ExecuteJob(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, 1, job.ProcessedItems)

	m, err := env.mappings.GetByLocalID(context.Background(), doc.ID)
	require.NoError(t, err)
	created := env.remote.items[m.RemoteKey]
	require.NotNil(t, created)
	assert.Equal(t, "Brand new", created.Title)
	assert.Equal(t, "In Review", created.Status)
}

func TestHandleWebhook_UnmappedKeyIsSilentNoOp(t *testing.T) {
	env := newSyncEnv()
	payload := models.WebhookPayload{WebhookEvent: "item_updated", IssueKey: "TRACK-404"}

	job, err := env.svc.HandleWebhook(context.Background(), payload, "webhook")

	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Empty(t, env.dispatch.enqueued)
}

func TestHandleWebhook_DisabledMappingIgnored(t *testing.T) {
	env := newSyncEnv()
	doc := &models.Document{Title: "Quiet doc", Status: models.DocStatusDraft}
	item := &models.RemoteItem{Key: "TRACK-50", Title: "Quiet doc", Status: "To Do"}
	m := env.seedPair(t, doc, item)
	m.AutoSync = false
	require.NoError(t, env.mappings.Update(context.Background(), m))

	job, err := env.svc.HandleWebhook(context.Background(), models.WebhookPayload{
		WebhookEvent: "item_updated", IssueKey: "TRACK-50",
	}, "webhook")

	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Empty(t, env.dispatch.enqueued)
}

func TestHandleWebhook_EnqueuesAutoResolveImport(t *testing.T) {
	env := newSyncEnv()
	doc := &models.Document{Title: "Watched doc", Status: models.DocStatusDraft}
	item := &models.RemoteItem{Key: "TRACK-51", Title: "Watched doc", Status: "To Do"}
	env.seedPair(t, doc, item)

	job, err := env.svc.HandleWebhook(context.Background(), models.WebhookPayload{
		WebhookEvent: "item_updated", IssueKey: "TRACK-51", IssueID: "10051",
	}, "webhook")

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.DirectionFromRemote, job.Direction)
	assert.Equal(t, models.OperationWebhook, job.Operation)
	assert.True(t, job.AutoResolve)
	assert.Equal(t, []string{"TRACK-51"}, job.TargetKeys)
	require.Len(t, env.dispatch.enqueued, 1)
}

func TestImportFromRemote_RequiresKey(t *testing.T) {
	env := newSyncEnv()

	_, err := env.svc.ImportFromRemote(context.Background(), "", SyncOptions{}, "tester")

	assert.True(t, syncerr.IsValidation(err))
}

func TestImportFromRemote_DefaultsStrategyAndRetries(t *testing.T) {
	env := newSyncEnv()

	job, err := env.svc.ImportFromRemote(context.Background(), "TRACK-60", SyncOptions{}, "tester")

	require.NoError(t, err)
	assert.Equal(t, models.StrategyKeepRemote, job.Strategy)
	assert.Equal(t, defaultMaxRetries, job.MaxRetries)
	assert.Equal(t, "tester", job.CreatedBy)
}

func TestSyncAutoMappings_QueuesScheduledSweep(t *testing.T) {
	env := newSyncEnv()
	docA := &models.Document{Title: "Doc A", Status: models.DocStatusDraft}
	docB := &models.Document{Title: "Doc B", Status: models.DocStatusDraft}
	docC := &models.Document{Title: "Doc C", Status: models.DocStatusDraft}
	env.seedPair(t, docA, &models.RemoteItem{Key: "TRACK-70", Title: "Doc A", Status: "To Do"})
	env.seedPair(t, docB, &models.RemoteItem{Key: "TRACK-71", Title: "Doc B", Status: "To Do"})
	manual := env.seedPair(t, docC, &models.RemoteItem{Key: "TRACK-72", Title: "Doc C", Status: "To Do"})
	manual.AutoSync = false
	require.NoError(t, env.mappings.Update(context.Background(), manual))

	job, err := env.svc.SyncAutoMappings(context.Background(), "scheduler")

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.DirectionFromRemote, job.Direction)
	assert.Equal(t, models.OperationScheduled, job.Operation)
	assert.True(t, job.AutoResolve)
	assert.ElementsMatch(t, []string{"TRACK-70", "TRACK-71"}, job.TargetKeys)
	assert.Equal(t, 2, job.TotalItems)
	require.Len(t, env.dispatch.enqueued, 1)
}

func TestSyncAutoMappings_NothingToSweepQueuesNoJob(t *testing.T) {
	env := newSyncEnv()

	job, err := env.svc.SyncAutoMappings(context.Background(), "scheduler")

	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Empty(t, env.dispatch.enqueued)
}

func TestSyncMapping_UnknownMappingIsValidationError(t *testing.T) {
	env := newSyncEnv()

	_, err := env.svc.SyncMapping(context.Background(), uuid.New(), models.DirectionFromRemote, "tester")

	assert.True(t, syncerr.IsValidation(err))
}
