package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeModels struct {
	responses []fakeModelResponse
	calls     int
}

type fakeModelResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if f.calls >= len(f.responses) {
		return nil, errors.New("unexpected call")
	}
	r := f.responses[f.calls]
	f.calls++
	return r.resp, r.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func noSleep(t *testing.T) {
	original := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = original })
}

func TestGeminiRetriesTemporaryErrors(t *testing.T) {
	noSleep(t)
	models := &fakeModels{responses: []fakeModelResponse{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}},
		{resp: textResponse("[", "]")},
	}}
	g := &GeminiGenerator{models: models, modelName: "gemini-test", MaxRetries: 2, log: zap.NewNop()}

	out, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "[\n]" {
		t.Fatalf("unexpected output %q", out)
	}
	if models.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", models.calls)
	}
}

func TestGeminiStopsOnPermanentError(t *testing.T) {
	noSleep(t)
	models := &fakeModels{responses: []fakeModelResponse{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
	}}
	g := &GeminiGenerator{models: models, modelName: "gemini-test", MaxRetries: 3, log: zap.NewNop()}

	if _, err := g.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if models.calls != 1 {
		t.Fatalf("expected a single call, got %d", models.calls)
	}
}

func TestGeminiRetriesExhausted(t *testing.T) {
	noSleep(t)
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models := &fakeModels{responses: []fakeModelResponse{{err: tempErr}, {err: tempErr}}}
	g := &GeminiGenerator{models: models, modelName: "gemini-test", MaxRetries: 1, log: zap.NewNop()}

	if _, err := g.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error after retries")
	}
	if models.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", models.calls)
	}
}

func TestGeminiEmptyResponse(t *testing.T) {
	models := &fakeModels{responses: []fakeModelResponse{{resp: textResponse("  ")}}}
	g := &GeminiGenerator{models: models, modelName: "gemini-test", log: zap.NewNop()}
	if _, err := g.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected empty response error")
	}
	if _, err := g.Generate(context.Background(), "   "); err == nil {
		t.Fatal("expected empty prompt error")
	}
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGeminiGenerator(context.Background(), " ", "", nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
