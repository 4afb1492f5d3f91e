package models

import (
	"time"

	"github.com/google/uuid"
)

type SyncDirection string

const (
	DirectionToRemote      SyncDirection = "to_remote"
	DirectionFromRemote    SyncDirection = "from_remote"
	DirectionBidirectional SyncDirection = "bidirectional"
)

type SyncOperation string

const (
	OperationCreate     SyncOperation = "create"
	OperationUpdate     SyncOperation = "update"
	OperationDelete     SyncOperation = "delete"
	OperationBulkImport SyncOperation = "bulk_import"
	OperationBulkExport SyncOperation = "bulk_export"
	OperationScheduled  SyncOperation = "scheduled"
	OperationWebhook    SyncOperation = "webhook"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusRetrying   JobStatus = "retrying"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// SyncJob is one unit of sync work. Created synchronously when a sync is
// requested; mutated only by the worker executing it.
type SyncJob struct {
	ID             uuid.UUID          `json:"id"`
	Direction      SyncDirection      `json:"direction"`
	Operation      SyncOperation      `json:"operation"`
	Status         JobStatus          `json:"status"`
	Progress       int                `json:"progress"`
	TotalItems     int                `json:"total_items"`
	ProcessedItems int                `json:"processed_items"`
	FailedItems    int                `json:"failed_items"`
	TargetIDs      []uuid.UUID        `json:"target_ids,omitempty"`
	TargetKeys     []string           `json:"target_keys,omitempty"`
	AutoResolve    bool               `json:"auto_resolve"`
	Strategy       ResolutionStrategy `json:"strategy,omitempty"`
	RetryCount     int                `json:"retry_count"`
	MaxRetries     int                `json:"max_retries"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
	ErrorMessage   *string            `json:"error_message,omitempty"`
	CreatedBy      string             `json:"created_by"`
	CreatedAt      time.Time          `json:"created_at"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
}
