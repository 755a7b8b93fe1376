package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/embedding"
	"github.com/spigell/skillmatch/internal/embedding/gemini"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/secrets"
)

const (
	providerLocal       = "local"
	defaultGeminiModel  = "gemini-embedding-001"
	geminiAPIKeyHintMsg = "set embedding.gemini.api-key-file or GEMINI_API_KEY_FILE"
)

// newEmbedder returns a lazily initialised embedder for the configured
// provider. Nothing is loaded or dialled until the first phrase is encoded.
func newEmbedder(cfg *EmbeddingConfig, log *zap.Logger) (embedding.Embedder, error) {
	if cfg == nil {
		cfg = &EmbeddingConfig{}
	}

	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", providerLocal:
		dim := 0
		if cfg.Local != nil {
			dim = cfg.Local.Dimension
		}
		local := embedding.NewLocal(dim)
		return embedding.NewLazy(local.Model(), func(context.Context) (embedding.Embedder, error) {
			return local, nil
		}, logger.WithCommonFields(log, providerLocal, local.Model())), nil

	case gemini.Provider:
		g := cfg.Gemini
		if g == nil {
			g = &GeminiConfig{}
		}

		model := strings.TrimSpace(g.Model)
		if model == "" {
			model = defaultGeminiModel
		}

		// Named the way the loaded embedder reports itself, so the re-run gate
		// sees the same model before and after loading.
		id := embedding.ModelID(model, g.Dimension)

		return embedding.NewLazy(id, func(ctx context.Context) (embedding.Embedder, error) {
			apiKey, err := secrets.Load(secrets.Source{
				Name:  "gemini api key",
				Value: g.APIKey,
				File:  g.APIKeyFile,
				Hint:  geminiAPIKeyHintMsg,
			})
			if err != nil {
				return nil, err
			}

			e, err := gemini.New(ctx, gemini.Config{
				APIKey:       apiKey,
				Model:        model,
				Dimension:    g.Dimension,
				MaxRetries:   g.MaxRetries,
				BatchSize:    g.BatchSize,
				Concurrency:  g.Concurrency,
				MaxLogLength: g.MaxLogLength,
			}, log)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, logger.WithCommonFields(log, gemini.Provider, id)), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
