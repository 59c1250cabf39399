package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/david/grant-advisor/internal/models"
	"go.uber.org/zap"
)

// Sink persists normalized announcements and run bookkeeping. *db.Store
// satisfies it.
type Sink interface {
	UpsertAnnouncement(ctx context.Context, ann models.Announcement, embedding []float32) error
	StartRun(ctx context.Context, sourceID string) (string, error)
	FinishRun(ctx context.Context, runID, status string, found, saved, errs int) error
}

// Embedder turns announcement text into a vector for similarity prefiltering.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Tagger assigns allowed-use tags to announcements the source left untagged.
type Tagger interface {
	TagUses(ctx context.Context, ann models.Announcement) ([]string, error)
}

// ErrUnknownSource is returned for a source ID missing from the registry.
var ErrUnknownSource = errors.New("source not found in registry")

// Run statuses recorded in ingest_runs.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

type Pipeline struct {
	Sink     Sink
	Fetcher  Fetcher
	Embedder Embedder // optional
	Tagger   Tagger   // optional
	Registry *Registry
	Factory  *StrategyFactory
	Log      *zap.Logger
	Clock    func() time.Time
}

// NewPipeline wires a pipeline with the built-in strategies. A nil fetcher
// gets the default rate-limited fetcher; a nil embedder disables embeddings.
func NewPipeline(sink Sink, fetcher Fetcher, embedder Embedder, registry *Registry, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if fetcher == nil {
		rl := NewRateLimitedFetcher(FetchConfig{RateLimitRPS: 2.0}, log)
		if registry != nil {
			for _, src := range registry.Sources {
				if src.BaseURL != "" {
					rl.Configure(src.BaseURL, src.Fetch)
				}
			}
		}
		fetcher = rl
	}
	if registry == nil {
		registry = &Registry{}
	}
	return &Pipeline{
		Sink:     sink,
		Fetcher:  fetcher,
		Embedder: embedder,
		Registry: registry,
		Factory:  DefaultStrategies(),
		Log:      log,
		Clock:    time.Now,
	}
}

func (p *Pipeline) today() models.Date {
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return models.DateOf(clock())
}

// IngestSource runs one registry source and records the run.
func (p *Pipeline) IngestSource(ctx context.Context, sourceID string) (IngestionStats, error) {
	config, ok := p.Registry.Get(sourceID)
	if !ok {
		return IngestionStats{}, fmt.Errorf("%w: %q", ErrUnknownSource, sourceID)
	}
	strategy, err := p.Factory.Get(config.Strategy)
	if err != nil {
		return IngestionStats{}, fmt.Errorf("source %q: %w", sourceID, err)
	}

	log := p.Log.With(zap.String("source", config.ID))
	log.Info("ingestion started", zap.String("name", config.Name), zap.String("strategy", config.Strategy))

	runID, err := p.Sink.StartRun(ctx, config.ID)
	if err != nil {
		log.Warn("failed to create ingest run", zap.Error(err))
	}

	start := time.Now()
	stats, runErr := strategy.Run(ctx, config, p)

	status := RunCompleted
	if runErr != nil || (stats.TotalSaved == 0 && stats.TotalFound > 0) {
		status = RunFailed
	}
	if runErr != nil {
		stats.Errors++
	}
	if runID != "" {
		// The run record is written even when ctx was cancelled mid-run.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := p.Sink.FinishRun(finishCtx, runID, status, stats.TotalFound, stats.TotalSaved, stats.Errors); err != nil {
			log.Warn("failed to update ingest run", zap.String("run_id", runID), zap.Error(err))
		}
		cancel()
	}

	log.Info("ingestion finished",
		zap.String("status", status),
		zap.Int("found", stats.TotalFound),
		zap.Int("saved", stats.TotalSaved),
		zap.Int("errors", stats.Errors),
		zap.Duration("took", time.Since(start)),
	)
	return stats, runErr
}

// IngestAll runs every enabled source in registry order. A failing source is
// logged and does not stop the others.
func (p *Pipeline) IngestAll(ctx context.Context) (map[string]IngestionStats, error) {
	results := make(map[string]IngestionStats)
	var errs []error
	for _, src := range p.Registry.Enabled() {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		stats, err := p.IngestSource(ctx, src.ID)
		if err != nil {
			p.Log.Error("source failed", zap.String("source", src.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.ID, err))
		}
		results[src.ID] = stats
	}
	return results, errors.Join(errs...)
}

// ImportCSV loads a catalog file outside the registry, as an operator upload.
func (p *Pipeline) ImportCSV(ctx context.Context, r io.Reader, source string) (IngestionStats, error) {
	raws, err := LoadCSV(r, source)
	if err != nil {
		return IngestionStats{}, err
	}
	runID, err := p.Sink.StartRun(ctx, "import:"+source)
	if err != nil {
		p.Log.Warn("failed to create ingest run", zap.Error(err))
	}
	stats := p.saveAll(ctx, source, raws)
	if runID != "" {
		status := RunCompleted
		if stats.TotalSaved == 0 && stats.TotalFound > 0 {
			status = RunFailed
		}
		if err := p.Sink.FinishRun(ctx, runID, status, stats.TotalFound, stats.TotalSaved, stats.Errors); err != nil {
			p.Log.Warn("failed to update ingest run", zap.String("run_id", runID), zap.Error(err))
		}
	}
	return stats, nil
}

func (p *Pipeline) saveAll(ctx context.Context, source string, raws []RawAnnouncement) IngestionStats {
	stats := IngestionStats{TotalFound: len(raws)}
	for _, raw := range raws {
		if err := p.SaveRaw(ctx, raw); err != nil {
			p.Log.Warn("save failed", zap.String("source", source), zap.String("title", raw.Title), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.TotalSaved++
	}
	return stats
}

// SaveRaw normalizes a raw record, derives its status and stores it.
func (p *Pipeline) SaveRaw(ctx context.Context, raw RawAnnouncement) error {
	ann := FromRaw(raw)
	if ann.Title == "" {
		return errors.New("announcement has no title")
	}
	ann.Status = ComputeStatus(ann, raw.Status, p.today()).Status
	ann.UpdatedAt = time.Now().UTC()

	if p.Tagger != nil && len(ann.AllowedUses) == 0 {
		uses, err := p.Tagger.TagUses(ctx, ann)
		if err != nil {
			p.Log.Warn("tagging failed", zap.String("id", ann.ID), zap.Error(err))
		} else {
			ann.AllowedUses = uses
		}
	}

	var embedding []float32
	if p.Embedder != nil {
		vec, err := p.Embedder.GenerateEmbedding(ctx, embeddingText(ann))
		if err != nil {
			p.Log.Warn("embedding failed", zap.String("id", ann.ID), zap.Error(err))
		} else {
			embedding = vec
		}
	}
	return p.Sink.UpsertAnnouncement(ctx, ann, embedding)
}

func embeddingText(ann models.Announcement) string {
	parts := []string{ann.Title, ann.Agency, strings.Join(ann.Keywords, ", "), strings.Join(ann.AllowedUses, ", "), ann.Summary}
	return TruncateText(strings.Join(parts, "\n"), 4000)
}
