package models

// WebhookPayload is the inbound notification shape pushed by the tracker when
// an item changes. Only the issue key is required to trigger a sync; the
// changelog is informational.
type WebhookPayload struct {
	WebhookEvent string           `json:"webhookEvent"`
	IssueKey     string           `json:"issueKey"`
	IssueID      string           `json:"issueId"`
	Changelog    []ChangelogEntry `json:"changelog,omitempty"`
	Timestamp    int64            `json:"timestamp"`
}

type ChangelogEntry struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}
