package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/ai"
)

// Embedding scores texts by the cosine similarity of their embeddings.
// Negative cosines score 0. Vectors are cached by model and text digest.
// When embedding fails the score falls back to Fallback, if set.
type Embedding struct {
	embedder ai.Embedder
	cache    Cache
	fallback Func
	timeout  time.Duration
	logger   *zap.Logger
}

// NewEmbedding wires an embedding similarity. cache and fallback are optional.
// A positive timeout bounds each embedding call.
func NewEmbedding(embedder ai.Embedder, cache Cache, fallback Func, timeout time.Duration, logger *zap.Logger) *Embedding {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedding{embedder: embedder, cache: cache, fallback: fallback, timeout: timeout, logger: logger}
}

// Similarity implements Func.
func (e *Embedding) Similarity(ctx context.Context, profileText, recordText string) (float64, error) {
	score, err := e.cosine(ctx, profileText, recordText)
	if err == nil {
		return score, nil
	}
	if e.fallback == nil || ctx.Err() != nil {
		return 0, err
	}
	e.logger.Warn("embedding similarity failed, using fallback", zap.Error(err))
	return e.fallback.Similarity(ctx, profileText, recordText)
}

func (e *Embedding) cosine(ctx context.Context, profileText, recordText string) (float64, error) {
	if e.embedder == nil {
		return 0, errors.New("embedder is not configured")
	}
	if strings.TrimSpace(profileText) == "" || strings.TrimSpace(recordText) == "" {
		return 0, nil
	}
	a, err := e.vector(ctx, profileText)
	if err != nil {
		return 0, err
	}
	b, err := e.vector(ctx, recordText)
	if err != nil {
		return 0, err
	}
	return Cosine(a, b)
}

func (e *Embedding) vector(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(e.embedder.Model(), text)
	if e.cache != nil {
		vec, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Debug("embedding cache read failed", zap.Error(err))
		} else if ok {
			return vec, nil
		}
	}

	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, vec); err != nil {
			e.logger.Debug("embedding cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

func (e *Embedding) embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return vec, nil
}

// Cosine returns the cosine similarity of a and b scaled to [0, 100].
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions differ: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return clamp(100 * dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return model + ":" + hex.EncodeToString(sum[:])
}
