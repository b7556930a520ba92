package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/smartstudy-abroad/smartstudy/internal/ai"
	"github.com/smartstudy-abroad/smartstudy/internal/logger"
)

const defaultEmbeddingModel = "text-embedding-004"

type embedContenter interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces text embeddings with a Gemini embedding model.
type Embedder struct {
	models embedContenter
	model  string
	logger *zap.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates an Embedder backed by client.
func NewEmbedder(client *genai.Client, model string, log *zap.Logger) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	return newEmbedder(client.Models, model, log), nil
}

func newEmbedder(models embedContenter, model string, log *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	return &Embedder{
		models: models,
		model:  model,
		logger: logger.WithCommonFields(log, providerName, model),
	}
}

// Embed returns the embedding vector of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	resp, err := e.models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini api returned empty embedding")
	}

	values := resp.Embeddings[0].Values
	e.logger.Debug("gemini embedding computed", zap.Int("dimensions", len(values)))
	return values, nil
}

// Model returns the configured embedding model name.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}
