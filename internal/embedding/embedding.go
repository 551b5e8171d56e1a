// Package embedding turns text into vectors through an external model.
package embedding

import (
	"context"
	"errors"
)

var (
	ErrEmbedding     = errors.New("embedding request failed")
	ErrNotConfigured = errors.New("embedding provider is not configured")
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to Embedder.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
