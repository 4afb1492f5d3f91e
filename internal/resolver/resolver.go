// Package resolver implements 3-way diff, conflict classification and
// resolution strategies over raw field values. It is pure: no stores, no
// clients, no shared state.
package resolver

import (
	"strings"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/HR-AR/Project-Conductor-sub007/internal/syncerr"
)

// Outcome is the result of diffing one field across base, local and remote.
// When Conflict is false, Result carries the accepted value.
type Outcome struct {
	Conflict      bool
	Result        any
	LocalChanged  bool
	RemoteChanged bool
}

// Detect runs the 3-way diff. A conflict exists iff both sides changed from
// base and disagree with each other. If only one side changed, that side's
// value is accepted. Deterministic: identical triples always yield the same
// outcome.
func Detect(base, local, remote any) Outcome {
	out := Outcome{
		LocalChanged:  !Equal(base, local),
		RemoteChanged: !Equal(base, remote),
	}

	switch {
	case !out.LocalChanged && !out.RemoteChanged:
		out.Result = local
	case out.LocalChanged && !out.RemoteChanged:
		out.Result = local
	case !out.LocalChanged && out.RemoteChanged:
		out.Result = remote
	case Equal(local, remote):
		// Both moved to the same value: convergent, not a conflict.
		out.Result = local
	default:
		out.Conflict = true
	}
	return out
}

// Classify decorates a detected conflict with a type. It never alters
// detection: status-like fields are status mismatches, a nil on either side is
// a deletion, everything else is concurrent modification.
func Classify(field string, local, remote any) models.ConflictType {
	if isStatusField(field) {
		return models.ConflictStatusMismatch
	}
	if local == nil || remote == nil {
		return models.ConflictDeletion
	}
	return models.ConflictConcurrentModification
}

func isStatusField(field string) bool {
	f := strings.ToLower(field)
	return f == "status" || strings.HasSuffix(f, ".status") || strings.HasSuffix(f, "_status")
}

// Resolve applies a resolution strategy to a conflicted triple. The manual
// strategy requires an explicit value; passing nil is a validation error.
func Resolve(strategy models.ResolutionStrategy, base, local, remote, manual any) (any, error) {
	switch strategy {
	case models.StrategyKeepLocal:
		return local, nil
	case models.StrategyKeepRemote:
		return remote, nil
	case models.StrategyMerge:
		return Merge(base, local, remote), nil
	case models.StrategyManual:
		if manual == nil {
			return nil, syncerr.Validationf("manual resolution requires a value")
		}
		return manual, nil
	default:
		return nil, syncerr.Validationf("unknown resolution strategy %q", strategy)
	}
}
