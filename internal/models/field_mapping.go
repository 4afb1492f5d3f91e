package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldMapping is one declarative translation rule between the local document
// shape and the remote item shape. Rules are loaded and cached per direction.
type FieldMapping struct {
	ID            uuid.UUID     `json:"id"`
	SourceField   string        `json:"source_field"`
	TargetField   string        `json:"target_field"`
	Direction     SyncDirection `json:"direction"`
	Transform     string        `json:"transform,omitempty"`
	IsCustomField bool          `json:"is_custom_field"`
	DefaultValue  any           `json:"default_value,omitempty"`
	Required      bool          `json:"required"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
}
