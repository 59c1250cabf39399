package models

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventInfoSession EventKind = "infoSession"
	EventDueDate     EventKind = "dueDate"
)

// RoadmapEvent is a dated occurrence derived from an approved announcement.
type RoadmapEvent struct {
	Kind           EventKind `json:"kind"`
	AnnouncementID string    `json:"announcement_id"`
	Title          string    `json:"title"`
	Date           Date      `json:"date"`
	MonthKey       string    `json:"month_key"`
	QuarterKey     string    `json:"quarter_key"`
}

// SourceLLM marks recommendations produced by the language-model recommender.
const SourceLLM = "llm"

// Recommendation is one entry of the language-model recommender output.
// Its score comes from the model and is never recomputed by the rule engine.
type Recommendation struct {
	ClientID    uuid.UUID `json:"client_id"`
	Rank        int       `json:"rank"`
	Title       string    `json:"title"`
	Score       float64   `json:"score"`
	Reason      string    `json:"reason"`
	OpenDate    string    `json:"open_date"`
	DueDate     string    `json:"due_date"`
	Remaining   string    `json:"remaining"`
	AmountText  string    `json:"amount_text"`
	Uses        string    `json:"uses"`
	Status      string    `json:"status"`
	Active      bool      `json:"active"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}
