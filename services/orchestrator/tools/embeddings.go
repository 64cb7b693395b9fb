// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

// EmbeddingProvider converts text into vectors for semantic catalog search.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type EmbeddingProvider interface {
	// Embed computes a vector embedding for the given text.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout.
	//   - text: The text to embed. Truncated to MaxSemanticQueryChars runes.
	//
	// # Outputs
	//
	//   - []float32: The embedding vector.
	//   - error: Non-nil if the embedding call fails.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder computes embeddings with OpenAI's small embedding model.
//
// The catalog loader embeds experience narratives with the same model, so
// query vectors and stored vectors share one space.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder sharing the orchestrator's API key.
func NewOpenAIEmbedder(apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.SmallEmbedding3,
	}
}

// Embed implements EmbeddingProvider.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding text cannot be empty")
	}
	text = datatypes.TruncateRunes(text, datatypes.MaxSemanticQueryChars)

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	})
	if err != nil {
		slog.Error("tools.embeddings: embedding request failed", "error", err)
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no vectors")
	}
	return resp.Data[0].Embedding, nil
}
