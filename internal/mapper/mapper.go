// Package mapper projects local documents into the remote item shape and back
// through declarative, direction-scoped field mapping rules.
package mapper

import (
	"context"
	"fmt"
	"log"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
)

// RuleSource supplies the active rules for one direction. ListActive must
// include rules marked bidirectional.
type RuleSource interface {
	ListActive(ctx context.Context, direction models.SyncDirection) ([]*models.FieldMapping, error)
}

// Mapped is the outcome of one projection: Fields keyed by destination path,
// plus the side map for rules flagged is_custom_field.
type Mapped struct {
	Fields map[string]any
	Custom map[string]any
}

type Mapper struct {
	rules RuleSource
}

func New(rules RuleSource) *Mapper {
	return &Mapper{rules: rules}
}

// MapLocalToRemote projects a document into remote-item shape.
func (m *Mapper) MapLocalToRemote(ctx context.Context, doc *models.Document) (*Mapped, error) {
	rules, err := m.rules.ListActive(ctx, models.DirectionToRemote)
	if err != nil {
		return nil, fmt.Errorf("failed to load to-remote rules: %w", err)
	}

	out := m.apply(rules, documentToMap(doc))

	// Required fallbacks: the tracker rejects items without these.
	if isEmpty(out.Fields["title"]) {
		out.Fields["title"] = doc.Title
	}
	if isEmpty(out.Fields["description"]) {
		out.Fields["description"] = doc.Narrative
	}
	if isEmpty(out.Fields["status"]) {
		out.Fields["status"] = doc.Status
	}
	if s, ok := out.Fields["status"].(string); ok {
		out.Fields["status"] = TranslateStatus(s, true)
	}
	return out, nil
}

// MapRemoteToLocal projects a remote item into document shape.
func (m *Mapper) MapRemoteToLocal(ctx context.Context, item *models.RemoteItem) (*Mapped, error) {
	rules, err := m.rules.ListActive(ctx, models.DirectionFromRemote)
	if err != nil {
		return nil, fmt.Errorf("failed to load from-remote rules: %w", err)
	}

	out := m.apply(rules, itemToMap(item))

	if isEmpty(out.Fields["title"]) {
		out.Fields["title"] = item.Title
	}
	if isEmpty(out.Fields["narrative"]) {
		out.Fields["narrative"] = item.Description
	}
	if isEmpty(out.Fields["status"]) {
		out.Fields["status"] = item.Status
	}
	if s, ok := out.Fields["status"].(string); ok {
		out.Fields["status"] = TranslateStatus(s, false)
	}
	return out, nil
}

// apply runs each rule best-effort. A rule whose source value is absent and
// which carries no default is skipped; an unknown transform name is logged and
// degrades to passthrough. apply never fails.
func (m *Mapper) apply(rules []*models.FieldMapping, src map[string]any) *Mapped {
	out := &Mapped{
		Fields: make(map[string]any),
		Custom: make(map[string]any),
	}

	for _, rule := range rules {
		v, found := lookupPath(src, rule.SourceField)
		if !found || v == nil {
			if rule.DefaultValue == nil {
				continue
			}
			v = rule.DefaultValue
		}

		kind, known := ParseTransformKind(rule.Transform)
		if !known {
			log.Printf("field mapping %s: unknown transform %q, passing value through", rule.ID, rule.Transform)
		}
		v = kind.Apply(v)

		if rule.IsCustomField {
			out.Custom[rule.TargetField] = v
		} else {
			setPath(out.Fields, rule.TargetField, v)
		}
	}
	return out
}

func documentToMap(doc *models.Document) map[string]any {
	return map[string]any{
		"id":               doc.ID.String(),
		"title":            doc.Title,
		"narrative":        doc.Narrative,
		"impact":           doc.Impact,
		"success_criteria": doc.SuccessCriteria,
		"timeline":         doc.Timeline,
		"budget":           doc.Budget,
		"stakeholders":     doc.Stakeholders,
		"status":           doc.Status,
		"version":          doc.Version,
	}
}

func itemToMap(item *models.RemoteItem) map[string]any {
	m := map[string]any{
		"key":         item.Key,
		"id":          item.ID,
		"title":       item.Title,
		"description": item.Description,
		"status":      item.Status,
		"labels":      item.Labels,
	}
	if len(item.CustomFields) > 0 {
		m["customFields"] = item.CustomFields
	}
	return m
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
