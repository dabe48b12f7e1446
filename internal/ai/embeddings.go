package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// Embedder turns a batch of texts into embedding vectors, one per input,
// in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedTexts embeds a batch of texts with the configured embeddings
// model (text-embedding-004 by default). Callers batch their own input;
// one call maps to one API request.
func (gc *GeminiClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	model := gc.client.EmbeddingModel(gc.embedModel)
	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("batch embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (gc *GeminiClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := gc.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
