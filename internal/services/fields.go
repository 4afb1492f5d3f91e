package services

import (
	"fmt"

	"github.com/HR-AR/Project-Conductor-sub007/internal/mapper"
	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
)

// documentChecklist projects the diffable document fields into the shape the
// mapper and resolver work over.
func documentChecklist(doc *models.Document) map[string]any {
	return map[string]any{
		"title":     doc.Title,
		"narrative": doc.Narrative,
		"impact":    doc.Impact,
		"status":    doc.Status,
		"budget":    doc.Budget,
	}
}

// itemChecklist is the remote-side counterpart, keyed by remote field names.
func itemChecklist(item *models.RemoteItem) map[string]any {
	return map[string]any{
		"title":       item.Title,
		"description": item.Description,
		"status":      item.Status,
	}
}

// snapshotSide returns one side of a mapping's base snapshot; nil-safe, so a
// first sync diffs against an empty base.
func snapshotSide(s *models.SyncSnapshot, remote bool) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	side := s.Local
	if remote {
		side = s.Remote
	}
	if side == nil {
		return map[string]any{}
	}
	return side
}

// applyDocumentFields writes mapped field values onto a document, coercing
// value shapes that arrive from JSON. Unknown fields are ignored; field
// mapping is best-effort by contract.
func applyDocumentFields(doc *models.Document, fields map[string]any) {
	for field, v := range fields {
		if v == nil {
			continue
		}
		switch field {
		case "title":
			doc.Title = toString(v)
		case "narrative", "description":
			doc.Narrative = toString(v)
		case "impact":
			doc.Impact = toString(v)
		case "status":
			doc.Status = toString(v)
		case "timeline":
			doc.Timeline = toString(v)
		case "budget":
			if f, ok := toFloat(v); ok {
				doc.Budget = f
			}
		case "success_criteria":
			doc.SuccessCriteria = toStrings(v)
		case "stakeholders":
			doc.Stakeholders = toStrings(v)
		}
	}
}

// addRemoteField places one resolved field into a remote update payload,
// converting local field names and status values into the tracker's shape.
// Fields outside the remote checklist travel as custom fields.
func addRemoteField(updates map[string]any, field string, v any) {
	switch field {
	case "title":
		updates["title"] = toString(v)
	case "narrative", "description":
		updates["description"] = toString(v)
	case "status":
		updates["status"] = mapper.TranslateStatus(toString(v), true)
	default:
		custom, _ := updates["customFields"].(map[string]any)
		if custom == nil {
			custom = map[string]any{}
		}
		custom[field] = v
		updates["customFields"] = custom
	}
}

// addLocalField is the mirror of addRemoteField: one remote-named field into
// a document update payload, with status pulled back into the local space.
func addLocalField(updates map[string]any, field string, v any) {
	if field == "status" {
		updates["status"] = mapper.TranslateStatus(toString(v), false)
		return
	}
	updates[field] = v
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, toString(e))
		}
		return out
	case string:
		return []string{t}
	}
	return nil
}
