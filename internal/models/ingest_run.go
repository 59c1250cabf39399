package models

import "time"

type IngestRun struct {
	RunID       string     `json:"run_id"`
	SourceID    string     `json:"source_id"`
	Status      string     `json:"status"`
	ItemsFound  int        `json:"items_found"`
	ItemsSaved  int        `json:"items_saved"`
	Errors      int        `json:"errors"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
