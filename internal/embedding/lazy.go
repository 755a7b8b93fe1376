package embedding

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// InitFunc loads a model. It is called at most once per Lazy.
type InitFunc func(ctx context.Context) (Embedder, error)

// Lazy defers model loading to the first encode call and shares the loaded
// model between all callers. A failed load is remembered and returned to every
// later caller; building a new Lazy is the only way to retry. The load does not
// inherit cancellation from the caller that triggered it, so one abandoned
// request cannot fail the model for the rest of the process.
type Lazy struct {
	name   string
	init   InitFunc
	logger *zap.Logger

	once     sync.Once
	mu       sync.RWMutex
	embedder Embedder
	err      error
}

// NewLazy wraps init. name is reported by Model until the model is loaded.
func NewLazy(name string, init InitFunc, logger *zap.Logger) *Lazy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lazy{name: name, init: init, logger: logger}
}

func (l *Lazy) load(ctx context.Context) (Embedder, error) {
	l.once.Do(func() {
		l.logger.Info("loading embedding model", zap.String("model", l.name))

		if l.init == nil {
			l.err = ErrNotInitialized
			return
		}

		embedder, err := l.init(context.WithoutCancel(ctx))
		if err != nil {
			l.err = fmt.Errorf("load embedding model %s: %w", l.name, err)
			l.logger.Error("embedding model failed to load", zap.Error(err))
			return
		}
		if embedder == nil {
			l.err = ErrNotInitialized
			return
		}

		l.mu.Lock()
		l.embedder = embedder
		l.mu.Unlock()

		l.logger.Info("embedding model loaded",
			zap.String("model", embedder.Model()),
			zap.Int("dimension", embedder.Dimension()),
		)
	})

	return l.embedder, l.err
}

func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	if _, err := CheckInput(text); err != nil {
		return nil, err
	}

	embedder, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return embedder.Embed(ctx, text)
}

func (l *Lazy) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if _, err := CheckBatch(texts); err != nil {
		return nil, err
	}

	embedder, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return embedder.EmbedBatch(ctx, texts)
}

// Dimension is 0 until the model has been loaded.
func (l *Lazy) Dimension() int {
	if embedder := l.loaded(); embedder != nil {
		return embedder.Dimension()
	}
	return 0
}

func (l *Lazy) Model() string {
	if embedder := l.loaded(); embedder != nil {
		return embedder.Model()
	}
	return l.name
}

// loaded returns the model without triggering a load.
func (l *Lazy) loaded() Embedder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.embedder
}
