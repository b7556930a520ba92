package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/ai"
	"github.com/smartstudy-abroad/smartstudy/internal/ai/gemini"
	"github.com/smartstudy-abroad/smartstudy/internal/secrets"
	"github.com/smartstudy-abroad/smartstudy/internal/similarity"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
	"github.com/smartstudy-abroad/smartstudy/internal/store/postgres"
	"github.com/smartstudy-abroad/smartstudy/internal/store/sqlite"
)

const memoryCacheLimit = 4096

// backends holds the long-lived clients shared by the commands.
type backends struct {
	store     store.Store
	generator ai.Generator
	embedder  ai.Embedder
	redis     *redis.Client
}

func (b *backends) Close(logger *zap.Logger) {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Warn("closing redis client", zap.Error(err))
		}
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}
}

func openStore(ctx context.Context, cfg *StoreConfig, logger *zap.Logger) (store.Store, error) {
	if cfg == nil {
		return nil, errors.New("store configuration is required")
	}

	var (
		st  store.Store
		err error
	)
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite":
		st, err = sqlite.Open(cfg.Path)
	case "postgres", "postgresql":
		st, err = postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	logger.Info("store opened", zap.String("driver", cfg.Driver), zap.Duration("timeout", cfg.Timeout))
	return store.Timed(st, cfg.Timeout), nil
}

func newAI(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, ai.Embedder, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, nil, errors.New("ai.gemini configuration is required")
	}
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Env:   []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set GEMINI_API_KEY, ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, nil, err
	}

	generator, err := gemini.NewGenerator(client, gemini.Options{
		Model:        cfg.Gemini.Model,
		MaxRetries:   cfg.Gemini.MaxRetries,
		MaxLogLength: cfg.Gemini.MaxLogLength,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := gemini.NewEmbedder(client, cfg.Gemini.EmbeddingModel, logger)
	if err != nil {
		return nil, nil, err
	}
	return generator, embedder, nil
}

func newSimilarity(ctx context.Context, cfg *Config, b *backends, logger *zap.Logger) (similarity.Func, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Matching.Similarity))
	if mode == "lexical" || b.embedder == nil {
		logger.Info("using lexical similarity")
		return similarity.Lexical{}, nil
	}
	if mode != "" && mode != "embedding" {
		return nil, fmt.Errorf("unsupported similarity: %s", cfg.Matching.Similarity)
	}

	var cache similarity.Cache = similarity.NewMemoryCache(memoryCacheLimit)
	if cfg.Redis != nil && strings.TrimSpace(cfg.Redis.URL) != "" {
		rdb, err := similarity.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.redis = rdb
		cache = similarity.NewRedisCache(rdb, cfg.Redis.TTL)
		logger.Info("embedding cache in redis", zap.Duration("ttl", cfg.Redis.TTL))
	}

	return similarity.NewEmbedding(b.embedder, cache, similarity.Lexical{}, cfg.AI.Timeout, logger), nil
}
