package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// CSVStrategy loads an operator-maintained catalog export from disk.
type CSVStrategy struct{}

func (s *CSVStrategy) Run(ctx context.Context, config SourceConfig, p *Pipeline) (IngestionStats, error) {
	if config.Path == "" {
		return IngestionStats{}, errors.New("file_csv source has no path")
	}
	f, err := os.Open(config.Path)
	if err != nil {
		return IngestionStats{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	raws, err := LoadCSV(f, config.ID)
	if err != nil {
		return IngestionStats{}, fmt.Errorf("load catalog %s: %w", config.Path, err)
	}
	return p.saveAll(ctx, config.ID, raws), nil
}
