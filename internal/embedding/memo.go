package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNotEncoded is returned by Memo.Get for text that was never passed to Encode.
var ErrNotEncoded = errors.New("text was not encoded")

// Memo holds the vectors of one unit of work so equal texts are encoded
// once. It is not safe for concurrent use.
type Memo struct {
	embedder Embedder
	logger   *zap.Logger
	vectors  map[string][]float32
	errs     map[string]error
}

func NewMemo(e Embedder, logger *zap.Logger) *Memo {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Memo{
		embedder: e,
		logger:   logger,
		vectors:  make(map[string][]float32),
		errs:     make(map[string]error),
	}
}

// Encode fills the memo for texts not seen yet. A failed batch is retried
// item by item so one bad text only costs itself; its error is kept for Get.
// Only a cancelled context is returned.
func (m *Memo) Encode(ctx context.Context, texts []string) error {
	pending := make([]string, 0, len(texts))
	queued := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		if _, ok := m.vectors[t]; ok {
			continue
		}
		if _, ok := m.errs[t]; ok {
			continue
		}
		if _, ok := queued[t]; ok {
			continue
		}
		queued[t] = struct{}{}
		pending = append(pending, t)
	}

	if len(pending) == 0 {
		return nil
	}

	vectors, err := m.embedder.EmbedBatch(ctx, pending)
	if err == nil && len(vectors) == len(pending) {
		for i, t := range pending {
			m.vectors[t] = vectors[i]
		}
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil {
		err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(pending))
	}

	m.logger.Warn("batch encoding failed, encoding texts one by one",
		zap.Int("texts", len(pending)),
		zap.Error(err),
	)

	for _, t := range pending {
		v, err := m.embedder.Embed(ctx, t)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			m.errs[t] = err
			continue
		}
		m.vectors[t] = v
	}

	return nil
}

// Get returns the vector of text or the error that kept it from being encoded.
func (m *Memo) Get(text string) ([]float32, error) {
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	if err, ok := m.errs[text]; ok {
		return nil, err
	}
	return nil, ErrNotEncoded
}
