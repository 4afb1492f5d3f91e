package models

import (
	"time"

	"github.com/google/uuid"
)

type ConflictType string

const (
	ConflictStatusMismatch         ConflictType = "status_mismatch"
	ConflictDeletion               ConflictType = "deletion"
	ConflictConcurrentModification ConflictType = "concurrent_modification"
)

type ResolutionStrategy string

const (
	StrategyKeepLocal  ResolutionStrategy = "keep_local"
	StrategyKeepRemote ResolutionStrategy = "keep_remote"
	StrategyMerge      ResolutionStrategy = "merge"
	StrategyManual     ResolutionStrategy = "manual"
)

type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
	ConflictIgnored  ConflictStatus = "ignored"
)

// SyncConflict records one field where local and remote diverged from base to
// different values. The base/local/remote snapshots are retained after
// resolution for audit; a resolved conflict is never re-resolved.
type SyncConflict struct {
	ID            uuid.UUID          `json:"id"`
	JobID         *uuid.UUID         `json:"job_id,omitempty"`
	MappingID     uuid.UUID          `json:"mapping_id"`
	Field         string             `json:"field"`
	BaseValue     any                `json:"base_value,omitempty"`
	LocalValue    any                `json:"local_value,omitempty"`
	RemoteValue   any                `json:"remote_value,omitempty"`
	Type          ConflictType       `json:"conflict_type"`
	Strategy      ResolutionStrategy `json:"resolution_strategy,omitempty"`
	ResolvedValue any                `json:"resolved_value,omitempty"`
	ResolvedBy    *string            `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
	Status        ConflictStatus     `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
}
