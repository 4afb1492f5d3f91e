package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocStatusDraft       = "draft"
	DocStatusUnderReview = "under_review"
	DocStatusApproved    = "approved"
	DocStatusInProgress  = "in_progress"
	DocStatusImplemented = "implemented"
	DocStatusRejected    = "rejected"
	DocStatusCancelled   = "cancelled"
)

// Document is the canonical local business-document shape the engine syncs.
type Document struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Narrative       string     `json:"narrative"`
	Impact          string     `json:"impact"`
	SuccessCriteria []string   `json:"success_criteria,omitempty"`
	Timeline        string     `json:"timeline,omitempty"`
	Budget          float64    `json:"budget"`
	Stakeholders    []string   `json:"stakeholders,omitempty"`
	Status          string     `json:"status"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}
