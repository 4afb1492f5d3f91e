package mapper

import (
	"fmt"
	"math"
	"strings"
)

// TransformKind is the closed set of value conversions a field mapping rule
// may name. Rules store the name as text; ParseTransformKind maps it into the
// enum once at load time, and Apply is an exhaustive switch over the set, so
// an unrecognized name can only ever degrade to an explicit, logged
// passthrough.
type TransformKind int

const (
	TransformPassthrough TransformKind = iota
	TransformStatusToRemote
	TransformStatusToLocal
	TransformPriorityToRemote
	TransformPriorityToLocal
	TransformUserToRemote
	TransformUserToLocal
	TransformJoinList
	TransformSplitList
)

var transformNames = map[string]TransformKind{
	"":                   TransformPassthrough,
	"status_to_remote":   TransformStatusToRemote,
	"status_to_local":    TransformStatusToLocal,
	"priority_to_remote": TransformPriorityToRemote,
	"priority_to_local":  TransformPriorityToLocal,
	"user_to_remote":     TransformUserToRemote,
	"user_to_local":      TransformUserToLocal,
	"join_list":          TransformJoinList,
	"split_list":         TransformSplitList,
}

// ParseTransformKind resolves a rule's transform name. The second return is
// false for unknown names, which callers treat as passthrough after logging.
func ParseTransformKind(name string) (TransformKind, bool) {
	kind, ok := transformNames[name]
	if !ok {
		return TransformPassthrough, false
	}
	return kind, true
}

// statusToRemote is the fixed bidirectional status lookup table. A status
// absent from the table passes through unchanged in both directions.
var statusToRemote = map[string]string{
	"draft":        "To Do",
	"under_review": "In Review",
	"approved":     "Approved",
	"in_progress":  "In Progress",
	"implemented":  "Done",
	"rejected":     "Rejected",
	"cancelled":    "Cancelled",
}

var statusToLocal = func() map[string]string {
	inverse := make(map[string]string, len(statusToRemote))
	for local, remote := range statusToRemote {
		inverse[remote] = local
	}
	return inverse
}()

// TranslateStatus maps a status through the lookup table for the requested
// remote-bound flag, passing unknown values through unchanged.
func TranslateStatus(status string, toRemote bool) string {
	table := statusToLocal
	if toRemote {
		table = statusToRemote
	}
	if mapped, ok := table[status]; ok {
		return mapped
	}
	return status
}

const listDelimiter = ", "

// Apply runs the transform. Transforms are pure and deterministic; a value a
// transform cannot interpret is returned unchanged rather than erroring, so
// mapping stays best-effort.
func (k TransformKind) Apply(v any) any {
	switch k {
	case TransformPassthrough:
		return v
	case TransformStatusToRemote:
		if s, ok := v.(string); ok {
			return TranslateStatus(s, true)
		}
		return v
	case TransformStatusToLocal:
		if s, ok := v.(string); ok {
			return TranslateStatus(s, false)
		}
		return v
	case TransformPriorityToRemote:
		// Local priority 1-10 onto the tracker's 1-5 scale.
		if f, ok := asFloat(v); ok {
			return clamp(math.Round(f/2), 1, 5)
		}
		return v
	case TransformPriorityToLocal:
		if f, ok := asFloat(v); ok {
			return clamp(f*2, 1, 10)
		}
		return v
	case TransformUserToRemote:
		if s, ok := v.(string); ok {
			return "acct:" + strings.TrimPrefix(s, "user-")
		}
		return v
	case TransformUserToLocal:
		if s, ok := v.(string); ok {
			return "user-" + strings.TrimPrefix(s, "acct:")
		}
		return v
	case TransformJoinList:
		if items, ok := asStrings(v); ok {
			return strings.Join(items, listDelimiter)
		}
		return v
	case TransformSplitList:
		if s, ok := v.(string); ok {
			return splitList(s)
		}
		return v
	default:
		return v
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clamp(f, lo, hi float64) float64 {
	return math.Min(math.Max(f, lo), hi)
}

func asFloat(v any) (float64, bool) {
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

func asStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out, true
	}
	return nil, false
}
