package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/david/grant-advisor/internal/logger"
	"go.uber.org/zap"
)

// OllamaClient talks to a local Ollama server for embeddings and completions.
type OllamaClient struct {
	BaseURL    string
	EmbedModel string
	GenModel   string

	http *http.Client
	log  *zap.Logger
}

func NewOllamaClient(baseURL, embedModel, genModel string, log *zap.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	if genModel == "" {
		genModel = "llama3.2:latest"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OllamaClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		EmbedModel: embedModel,
		GenModel:   genModel,
		http:       &http.Client{Timeout: 5 * time.Minute},
		log:        log,
	}
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *OllamaClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var parsed embeddingResponse
	if err := c.post(ctx, "/api/embeddings", embeddingRequest{Model: c.EmbedModel, Prompt: text}, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", c.EmbedModel)
	}
	return parsed.Embedding, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"` // "json" constrains the output
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *OllamaClient) GenerateCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	req := generateRequest{Model: c.GenModel, Prompt: prompt}
	if jsonMode {
		req.Format = "json"
	}
	c.log.Debug("ollama generate request",
		zap.String("model", c.GenModel),
		zap.Bool("json_mode", jsonMode),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, 200)),
	)

	var parsed generateResponse
	if err := c.post(ctx, "/api/generate", req, &parsed); err != nil {
		return "", err
	}
	c.log.Debug("ollama generate response", zap.String("response_preview", logger.TruncateForLog(parsed.Response, 200)))
	return parsed.Response, nil
}

// Generate uses free-text mode; recommendation output is a JSON array, which
// Ollama's json format does not produce reliably.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateCompletion(ctx, prompt, false)
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
