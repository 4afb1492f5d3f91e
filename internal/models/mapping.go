package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncSnapshot holds the field values that were last known to be identical on
// both sides of a mapping. It is the common ancestor ("base") for 3-way diffs.
type SyncSnapshot struct {
	Local  map[string]any `json:"local"`
	Remote map[string]any `json:"remote"`
}

// SyncMapping binds one local document to one remote tracker item.
// (LocalID, RemoteKey) is unique.
type SyncMapping struct {
	ID                 uuid.UUID     `json:"id"`
	LocalID            uuid.UUID     `json:"local_id"`
	RemoteKey          string        `json:"remote_key"`
	RemoteInternalID   string        `json:"remote_internal_id"`
	BaseSnapshot       *SyncSnapshot `json:"base_snapshot,omitempty"`
	LastSyncedAt       *time.Time    `json:"last_synced_at,omitempty"`
	LastModifiedLocal  *time.Time    `json:"last_modified_local,omitempty"`
	LastModifiedRemote *time.Time    `json:"last_modified_remote,omitempty"`
	SyncEnabled        bool          `json:"sync_enabled"`
	AutoSync           bool          `json:"auto_sync"`
	ConflictCount      int           `json:"conflict_count"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          *time.Time    `json:"updated_at,omitempty"`
}
