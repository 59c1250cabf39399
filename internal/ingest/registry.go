package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all data sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`  // Default: 1.0
	ProxyURL       string  `yaml:"proxy_url,omitempty"`
	AcceptLanguage string  `yaml:"accept_language,omitempty"`
}

// SourceConfig defines a single data source for ingestion.
type SourceConfig struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Strategy     string            `yaml:"strategy"` // "api_kstartup", "api_bizinfo", "html_generic", "file_csv"
	Disabled     bool              `yaml:"disabled,omitempty"`
	BaseURL      string            `yaml:"base_url,omitempty"`
	APIKey       string            `yaml:"api_key,omitempty"`
	Path         string            `yaml:"path,omitempty"` // file_csv only
	Params       map[string]string `yaml:"params,omitempty"`
	PageSize     int               `yaml:"page_size,omitempty"`
	MaxPages     int               `yaml:"max_pages,omitempty"`
	LookbackDays int               `yaml:"lookback_days,omitempty"`
	Description  string            `yaml:"description,omitempty"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`

	// For the generic HTML strategy
	Selectors  SelectorConfig   `yaml:"selectors,omitempty"`
	Pagination PaginationConfig `yaml:"pagination,omitempty"`
	Detail     DetailConfig     `yaml:"detail,omitempty"`
}

type PaginationConfig struct {
	Next string `yaml:"next,omitempty"` // CSS selector for the next page link
}

type SelectorConfig struct {
	Container string `yaml:"container,omitempty"` // CSS selector for the list item wrapper
	Link      string `yaml:"link,omitempty"`
	LinkAttr  string `yaml:"link_attr,omitempty"` // default: href
	Title     string `yaml:"title,omitempty"`
	Agency    string `yaml:"agency,omitempty"`
	Period    string `yaml:"period,omitempty"` // "start ~ end" application period
	Status    string `yaml:"status,omitempty"`
}

type DetailConfig struct {
	Enabled   bool                 `yaml:"enabled"`
	ScanPDF   bool                 `yaml:"scan_pdf,omitempty"`
	Selectors DetailSelectorConfig `yaml:"selectors,omitempty"`
}

type DetailSelectorConfig struct {
	Description string `yaml:"description,omitempty"`
	Amount      string `yaml:"amount,omitempty"`
	Region      string `yaml:"region,omitempty"`
	Eligibility string `yaml:"eligibility,omitempty"`
	Keywords    string `yaml:"keywords,omitempty"`
	Uses        string `yaml:"uses,omitempty"`
	Attachments string `yaml:"attachments,omitempty"`
}

// LoadRegistry reads the source registry. An empty path selects the embedded
// sources.yaml; otherwise the file at path is used. ${VAR} references are
// expanded from the environment before parsing.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	seen := make(map[string]bool, len(reg.Sources))
	for _, src := range reg.Sources {
		if src.ID == "" || src.Strategy == "" {
			return nil, fmt.Errorf("source %q: id and strategy are required", src.Name)
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
	}
	return &reg, nil
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (SourceConfig, bool) {
	for _, src := range r.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// Enabled lists the sources that are not disabled, in file order.
func (r *Registry) Enabled() []SourceConfig {
	var out []SourceConfig
	for _, src := range r.Sources {
		if !src.Disabled {
			out = append(out, src)
		}
	}
	return out
}
