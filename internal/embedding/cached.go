package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"assignmenthelper/api/internal/logger"
)

// Cache stores vectors by key. Implementations live in internal/cache.
type Cache interface {
	GetVector(ctx context.Context, key string) ([]float32, bool, error)
	SetVector(ctx context.Context, key string, vector []float32) error
}

// Cached serves repeated texts from a cache. Cache errors are logged and the
// call falls through to the wrapped embedder.
type Cached struct {
	next  Embedder
	cache Cache
	model string
	log   *logger.Logger
}

func NewCached(next Embedder, cache Cache, model string, log *logger.Logger) *Cached {
	if log == nil {
		log = logger.Nop()
	}
	return &Cached{next: next, cache: cache, model: model, log: log}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(c.model, text)
	vector, ok, err := c.cache.GetVector(ctx, key)
	if err != nil {
		c.log.Warn("embedding cache read failed", "error", err)
	} else if ok {
		return vector, nil
	}

	vector, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetVector(ctx, key, vector); err != nil {
		c.log.Warn("embedding cache write failed", "error", err)
	}
	return vector, nil
}

// Key derives a cache key from the model name and text.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return model + ":" + hex.EncodeToString(sum[:])
}
