package gemini

import (
	"context"
	"fmt"
	"time"

	"crisis-quiz-service/internal/config"
	"google.golang.org/genai"
)

// DefaultEmbeddingModel is used when the config leaves the embedding model empty.
const DefaultEmbeddingModel = "text-embedding-004"

// EmbeddingModel is the slice of the genai client the embedder needs.
type EmbeddingModel interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder turns texts into Gemini embedding vectors.
type Embedder struct {
	models  EmbeddingModel
	model   string
	timeout time.Duration
}

func NewEmbedder(ctx context.Context, apiKey, model string, timeout time.Duration) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedding api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewEmbedderWithModels(client.Models, model, timeout), nil
}

// NewEmbedderWithModels wraps an existing model handle; tests pass a fake.
func NewEmbedderWithModels(models EmbeddingModel, model string, timeout time.Duration) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{models: models, model: model, timeout: timeout}
}

// Embed embeds all texts in one request and returns their vectors in order.
func (e *Embedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}
	resp, err := e.models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini embed content: expected %d embeddings, got %d", len(texts), got)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini embed content: embedding %d is empty", i)
		}
		vectors[i] = emb.Values
	}
	config.WithContext(ctx).Debugf("gemini embedded %d texts", len(texts))
	return vectors, nil
}
