package models

import (
	"time"

	"github.com/google/uuid"
)

type BusinessType string

const (
	BusinessIndividual  BusinessType = "individual"
	BusinessCorporation BusinessType = "corporation"
)

func (b BusinessType) Valid() bool {
	return b == BusinessIndividual || b == BusinessCorporation
}

// ClientProfile describes a client organization. Stage and YearsOperating
// are set independently and are never reconciled against each other.
type ClientProfile struct {
	ID                  uuid.UUID    `json:"id"`
	Name                string       `json:"name"`
	Region              string       `json:"region"`
	BusinessType        BusinessType `json:"business_type"`
	YearsOperating      int          `json:"years_operating"`
	Stage               Stage        `json:"stage"`
	Industry            string       `json:"industry,omitempty"`
	IndustryKeywords    []string     `json:"industry_keywords"`
	PreferredUses       []string     `json:"preferred_uses"`
	PreferredBudgetBand BudgetBand   `json:"preferred_budget_band"`
	Pinned              bool         `json:"pinned"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}
