package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/domain"
	"google.golang.org/genai"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = "gemini-2.0-flash"

// ContentModel is the slice of the genai client the generator needs.
type ContentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator sends a prompt to Gemini with a single API key and returns the text.
type Generator struct {
	models  ContentModel
	model   string
	timeout time.Duration
	name    string
}

// NewGenerator builds a client for apiKey. name only shows up in logs.
func NewGenerator(ctx context.Context, name, apiKey, model string, timeout time.Duration) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini %s api key not configured", name)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewGeneratorWithModels(name, client.Models, model, timeout), nil
}

// NewGeneratorWithModels wraps an existing model handle; tests pass a fake.
func NewGeneratorWithModels(name string, models ContentModel, model string, timeout time.Duration) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{models: models, model: model, timeout: timeout, name: name}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	log := config.WithContext(ctx).WithField("generator", g.name)
	result, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if result == nil {
		return "", domain.ErrEmptyResponse
	}

	raw := result.Text()
	log.Debugf("gemini returned %d bytes", len(raw))
	if raw == "" {
		return "", domain.ErrEmptyResponse
	}
	return raw, nil
}

// IsTimeout reports whether err came from the per-call deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
