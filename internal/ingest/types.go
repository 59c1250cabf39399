package ingest

import (
	"context"
	"io"
	"time"
)

// RawAnnouncement is the untrusted, unnormalized record a collector or file
// loader produces. Every field is text exactly as the source published it.
type RawAnnouncement struct {
	ID                string `mapstructure:"id"`
	Title             string `mapstructure:"title"`
	Agency            string `mapstructure:"agency"`
	Source            string `mapstructure:"source"`
	Region            string `mapstructure:"region"`
	Stage             string `mapstructure:"stage"`
	MaxYearsOperating string `mapstructure:"max_years"`
	OpenDate          string `mapstructure:"open_date"`
	DueDate           string `mapstructure:"due_date"`
	InfoSessionDate   string `mapstructure:"info_session"`
	Amount            string `mapstructure:"amount"`
	AllowedUses       string `mapstructure:"uses"`
	Keywords          string `mapstructure:"keywords"`
	BudgetBand        string `mapstructure:"budget_band"`
	URL               string `mapstructure:"url"`
	Description       string `mapstructure:"description"`
	Eligibility       string `mapstructure:"eligibility"`
	Status            string `mapstructure:"status"`

	// Attachments are document links found on the detail page, scanned for
	// info-session dates when the listing carries none.
	Attachments []string `mapstructure:"-"`
}

// RawClient is one row of a client portfolio export.
type RawClient struct {
	Name            string `mapstructure:"name"`
	Region          string `mapstructure:"region"`
	BusinessType    string `mapstructure:"business_type"`
	YearsOperating  string `mapstructure:"years"`
	Founded         string `mapstructure:"founded"`
	Stage           string `mapstructure:"stage"`
	Industry        string `mapstructure:"industry"`
	Keywords        string `mapstructure:"keywords"`
	PreferredUses   string `mapstructure:"preferred_uses"`
	PreferredBudget string `mapstructure:"preferred_budget"`
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
