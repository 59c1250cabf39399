package models

import "time"

// Nationwide is the region value that satisfies every client region.
const Nationwide = "nationwide"

type Stage string

const (
	StagePreLaunch Stage = "pre-launch"
	StageEarly     Stage = "early"
	StageGrowth    Stage = "growth"
)

func (s Stage) Valid() bool {
	switch s {
	case StagePreLaunch, StageEarly, StageGrowth:
		return true
	}
	return false
}

type BudgetBand string

const (
	BudgetSmall  BudgetBand = "small"
	BudgetMedium BudgetBand = "medium"
	BudgetLarge  BudgetBand = "large"
)

func (b BudgetBand) Valid() bool {
	switch b {
	case BudgetSmall, BudgetMedium, BudgetLarge:
		return true
	}
	return false
}

// Status is the application window state derived at ingestion time.
type Status string

const (
	StatusOpen     Status = "open"
	StatusUpcoming Status = "upcoming"
	StatusClosed   Status = "closed"
	StatusUnknown  Status = "unknown"
)

// Announcement is one funding opportunity from the catalog.
// Optional fields are nil when the source did not supply a usable value.
type Announcement struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Agency            string      `json:"agency"`
	SourceChannel     string      `json:"source_channel"`
	Region            string      `json:"region"`
	Stage             Stage       `json:"stage"`
	MaxYearsOperating *int        `json:"max_years_operating,omitempty"`
	OpenDate          *Date       `json:"open_date,omitempty"`
	DueDate           *Date       `json:"due_date,omitempty"`
	InfoSessionDate   *Date       `json:"info_session_date,omitempty"`
	Amount            *int64      `json:"amount,omitempty"`
	AllowedUses       []string    `json:"allowed_uses"`
	Keywords          []string    `json:"keywords"`
	BudgetBand        *BudgetBand `json:"budget_band,omitempty"`
	URL               string      `json:"url,omitempty"`
	Summary           string      `json:"summary,omitempty"`
	Status            Status      `json:"status,omitempty"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// IsNationwide reports whether the announcement accepts applicants from any region.
func (a Announcement) IsNationwide() bool {
	return a.Region == Nationwide
}
