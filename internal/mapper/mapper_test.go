package mapper

import (
	"context"
	"testing"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticRules is an in-memory RuleSource for tests.
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

func rule(src, dst string, dir models.SyncDirection, transform string) *models.FieldMapping {
	return &models.FieldMapping{
		ID:          uuid.New(),
		SourceField: src,
		TargetField: dst,
		Direction:   dir,
		Transform:   transform,
		Active:      true,
	}
}

func testItem() *models.RemoteItem {
	return &models.RemoteItem{
		Key:         "CONDUCT-101",
		ID:          "10042",
		Title:       "Payment reconciliation",
		Description: "Reconcile settlement files nightly",
		Status:      "In Review",
		Labels:      []string{"payments", "q3"},
		CustomFields: map[string]any{
			"priority": 4.0,
		},
		Updated: time.Now(),
	}
}

func TestMapRemoteToLocal_AppliesDirectionScopedRules(t *testing.T) {
	rules := &staticRules{rules: []*models.FieldMapping{
		rule("title", "title", models.DirectionBidirectional, ""),
		rule("description", "narrative", models.DirectionFromRemote, ""),
		rule("status", "status", models.DirectionFromRemote, "status_to_local"),
		// to_remote only: must not fire on import.
		rule("budget", "customFields.budget", models.DirectionToRemote, ""),
	}}
	m := New(rules)

	out, err := m.MapRemoteToLocal(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, "Payment reconciliation", out.Fields["title"])
	assert.Equal(t, "Reconcile settlement files nightly", out.Fields["narrative"])
	assert.Equal(t, "under_review", out.Fields["status"])
	assert.NotContains(t, out.Fields, "customFields")
}

func TestMapRemoteToLocal_DotPathAndCustomFields(t *testing.T) {
	rules := &staticRules{rules: []*models.FieldMapping{
		{
			ID:            uuid.New(),
			SourceField:   "customFields.priority",
			TargetField:   "priority",
			Direction:     models.DirectionFromRemote,
			Transform:     "priority_to_local",
			IsCustomField: true,
			Active:        true,
		},
	}}
	m := New(rules)

	out, err := m.MapRemoteToLocal(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, 8.0, out.Custom["priority"])
}

func TestMapRemoteToLocal_MissingSourceWithoutDefaultIsSkipped(t *testing.T) {
	rules := &staticRules{rules: []*models.FieldMapping{
		rule("customFields.sprint", "timeline", models.DirectionFromRemote, ""),
	}}
	m := New(rules)

	item := testItem()
	item.CustomFields = nil
	out, err := m.MapRemoteToLocal(context.Background(), item)

	require.NoError(t, err)
	assert.NotContains(t, out.Fields, "timeline")
}

func TestMapRemoteToLocal_DefaultValueFillsMissingSource(t *testing.T) {
	r := rule("customFields.sprint", "timeline", models.DirectionFromRemote, "")
	r.DefaultValue = "unscheduled"
	m := New(&staticRules{rules: []*models.FieldMapping{r}})

	item := testItem()
	item.CustomFields = nil
	out, err := m.MapRemoteToLocal(context.Background(), item)

	require.NoError(t, err)
	assert.Equal(t, "unscheduled", out.Fields["timeline"])
}

func TestMapRemoteToLocal_RequiredFallbacks(t *testing.T) {
	// No rules at all: title and narrative still come from the well-known
	// source fields.
	m := New(&staticRules{})

	out, err := m.MapRemoteToLocal(context.Background(), testItem())

	require.NoError(t, err)
	assert.Equal(t, "Payment reconciliation", out.Fields["title"])
	assert.Equal(t, "Reconcile settlement files nightly", out.Fields["narrative"])
}

func TestMapRemoteToLocal_UnknownTransformPassesThrough(t *testing.T) {
	rules := &staticRules{rules: []*models.FieldMapping{
		rule("status", "status", models.DirectionFromRemote, "definitely_not_registered"),
	}}
	m := New(rules)

	out, err := m.MapRemoteToLocal(context.Background(), testItem())

	require.NoError(t, err)
	// Value passed through the unknown transform, then hit the fixed status
	// table.
	assert.Equal(t, "under_review", out.Fields["status"])
}

func TestMapLocalToRemote(t *testing.T) {
	rules := &staticRules{rules: []*models.FieldMapping{
		rule("title", "title", models.DirectionBidirectional, ""),
		rule("narrative", "description", models.DirectionToRemote, ""),
		rule("stakeholders", "labels", models.DirectionToRemote, ""),
		{
			ID:            uuid.New(),
			SourceField:   "budget",
			TargetField:   "budget",
			Direction:     models.DirectionToRemote,
			IsCustomField: true,
			Active:        true,
		},
	}}
	m := New(rules)

	doc := &models.Document{
		ID:           uuid.New(),
		Title:        "Payment reconciliation",
		Narrative:    "Reconcile settlement files nightly",
		Budget:       25000,
		Stakeholders: []string{"ops", "finance"},
		Status:       "under_review",
	}
	out, err := m.MapLocalToRemote(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, "Payment reconciliation", out.Fields["title"])
	assert.Equal(t, "Reconcile settlement files nightly", out.Fields["description"])
	assert.Equal(t, []string{"ops", "finance"}, out.Fields["labels"])
	assert.Equal(t, 25000.0, out.Custom["budget"])
	// Status fell back and went through the lookup table.
	assert.Equal(t, "In Review", out.Fields["status"])
}

func TestMapLocalToRemote_InactiveRulesIgnored(t *testing.T) {
	r := rule("impact", "customFields.impact", models.DirectionToRemote, "")
	r.Active = false
	m := New(&staticRules{rules: []*models.FieldMapping{r}})

	doc := &models.Document{ID: uuid.New(), Title: "t", Narrative: "n", Impact: "high"}
	out, err := m.MapLocalToRemote(context.Background(), doc)

	require.NoError(t, err)
	assert.NotContains(t, out.Fields, "customFields")
}
