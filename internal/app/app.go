// Package app wires the configured components together for the server and
// the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/david/grant-advisor/internal/advisor"
	"github.com/david/grant-advisor/internal/ai"
	"github.com/david/grant-advisor/internal/config"
	"github.com/david/grant-advisor/internal/db"
	"github.com/david/grant-advisor/internal/ingest"
	"github.com/david/grant-advisor/internal/matching"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Pool     *pgxpool.Pool
	Store    *db.Store
	Pipeline *ingest.Pipeline
	Advisor  *advisor.Service
	// Generator is nil when no provider is configured.
	Generator ai.Generator
}

// Build connects to the database, applies migrations and assembles the
// ingest pipeline and the advisor. A missing language model is not an error;
// recommendations and use tagging are then unavailable.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("database url is not configured (set DATABASE_URL or database.url)")
	}
	pool, err := db.Connect(ctx, db.Options{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns, Log: log})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	store := db.NewStore(pool)

	gen, err := ai.NewGenerator(ctx, cfg.AI, log)
	switch {
	case errors.Is(err, ai.ErrNoProvider):
		log.Info("no language model configured; recommendations disabled")
	case err != nil:
		pool.Close()
		return nil, fmt.Errorf("language model: %w", err)
	}

	registry, err := ingest.LoadRegistry(cfg.Ingest.Registry)
	if err != nil {
		pool.Close()
		return nil, err
	}
	pipeline := ingest.NewPipeline(store, nil, ai.NewEmbedder(cfg.AI, log), registry, log)

	var rec advisor.Recommender
	if gen != nil {
		pipeline.Tagger = ai.NewUseTagger(gen, log)
		rec = ai.NewRecommender(gen, log)
	}
	engine := matching.NewEngine(cfg.Matching.Engine())

	return &App{
		Config:    cfg,
		Log:       log,
		Pool:      pool,
		Store:     store,
		Pipeline:  pipeline,
		Advisor:   advisor.New(store, engine, rec, log),
		Generator: gen,
	}, nil
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
