package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/david/grant-advisor/internal/config"
	"github.com/david/grant-advisor/internal/ingest"
	"go.uber.org/zap"
)

// ErrNoProvider is returned when no language model is configured.
var ErrNoProvider = errors.New("no language model provider configured")

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerator picks the provider named in cfg.
func NewGenerator(ctx context.Context, cfg config.AIConfig, log *zap.Logger) (Generator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, ErrNoProvider
	case "ollama":
		return NewOllamaClient(cfg.Ollama.Host, cfg.Ollama.EmbedModel, cfg.Ollama.Model, log), nil
	case "gemini":
		gen, err := NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, log)
		if err != nil {
			return nil, err
		}
		if cfg.Gemini.MaxRetries > 0 {
			gen.MaxRetries = cfg.Gemini.MaxRetries
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// NewEmbedder returns the Ollama embedder when embeddings are enabled, or nil.
func NewEmbedder(cfg config.AIConfig, log *zap.Logger) ingest.Embedder {
	if !cfg.Embeddings {
		return nil
	}
	return NewOllamaClient(cfg.Ollama.Host, cfg.Ollama.EmbedModel, cfg.Ollama.Model, log)
}
