package models

import (
	"time"

	"github.com/google/uuid"
)

type Label string

const (
	LabelFeasible   Label = "feasible"
	LabelCaution    Label = "caution"
	LabelInfeasible Label = "infeasible"
)

// MatchResult is the rule-based evaluation of one announcement for one client.
type MatchResult struct {
	Announcement Announcement `json:"announcement"`
	Score        int          `json:"score"`
	Label        Label        `json:"label"`
	Rationale    []string     `json:"rationale"`
	HardFail     bool         `json:"hard_fail"`
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

// Review is the operator's decision on one (client, announcement) pair.
type Review struct {
	ClientID       uuid.UUID    `json:"client_id"`
	AnnouncementID string       `json:"announcement_id"`
	Status         ReviewStatus `json:"status"`
	Comment        string       `json:"comment"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
