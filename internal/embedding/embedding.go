// Package embedding turns skill phrases into vectors and compares them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidInput is returned when asked to encode empty or whitespace-only text.
	ErrInvalidInput = errors.New("invalid input: text must not be empty")
	// ErrNotInitialized is returned by providers used before their model is ready.
	ErrNotInitialized = errors.New("embedding model is not initialized")
)

// Embedder encodes text into fixed-length vectors. Implementations must be
// deterministic for the same text and model, and EmbedBatch must return the
// same vectors as calling Embed for every item in order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// ModelID names a model together with its output dimension. Vectors of the
// same model at different dimensions are not comparable, so callers keying
// cached results by model must use this form. A non-positive dimension means
// the model default and leaves the name as is.
func ModelID(name string, dimension int) string {
	if dimension <= 0 {
		return name
	}
	return name + "/" + strconv.Itoa(dimension)
}

// CheckInput validates a phrase before it is handed to a model.
func CheckInput(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrInvalidInput
	}
	return trimmed, nil
}

// CheckBatch validates every phrase of a batch, reporting the first bad index.
func CheckBatch(texts []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		trimmed, err := CheckInput(text)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = trimmed
	}
	return out, nil
}
