package models

import "time"

// RemoteItem is the canonical shape of an item in the external tracker, as
// exposed by the injected remote client. The tracker serves full snapshots,
// never deltas.
type RemoteItem struct {
	Key          string         `json:"key"`
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Status       string         `json:"status"`
	Labels       []string       `json:"labels,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
	Created      time.Time      `json:"created"`
	Updated      time.Time      `json:"updated"`
}
