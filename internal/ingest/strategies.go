package ingest

import (
	"context"
	"fmt"
	"sort"
)

// IngestionStats holds metrics about a run
type IngestionStats struct {
	TotalSaved int `json:"total_saved"`
	TotalFound int `json:"total_found"`
	Errors     int `json:"errors"`
}

// FetcherStrategy defines the contract for any ingestion source. It fetches
// and parses the source and hands every record to the pipeline.
type FetcherStrategy interface {
	Run(ctx context.Context, config SourceConfig, pipeline *Pipeline) (IngestionStats, error)
}

// StrategyFactory maps strategy IDs (from sources.yaml) to implementations.
type StrategyFactory struct {
	strategies map[string]FetcherStrategy
}

func NewStrategyFactory() *StrategyFactory {
	return &StrategyFactory{
		strategies: make(map[string]FetcherStrategy),
	}
}

func (f *StrategyFactory) Register(id string, strategy FetcherStrategy) {
	f.strategies[id] = strategy
}

func (f *StrategyFactory) Get(id string) (FetcherStrategy, error) {
	strategy, ok := f.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy not found: %s", id)
	}
	return strategy, nil
}

// IDs lists registered strategy ids in sorted order.
func (f *StrategyFactory) IDs() []string {
	ids := make([]string, 0, len(f.strategies))
	for id := range f.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultStrategies returns a factory with every built-in collector.
func DefaultStrategies() *StrategyFactory {
	f := NewStrategyFactory()
	f.Register("api_kstartup", &KStartupStrategy{})
	f.Register("api_bizinfo", &BizinfoStrategy{})
	f.Register("html_generic", &HTMLStrategy{})
	f.Register("file_csv", &CSVStrategy{})
	return f
}
