package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLocalDeterministic(t *testing.T) {
	ctx := context.Background()
	a := NewLocal(0)
	b := NewLocal(0)

	va, err := a.Embed(ctx, "Structured Query Language")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vb, err := b.Embed(ctx, "Structured Query Language")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(va) != defaultLocalDimension {
		t.Fatalf("expected dimension %d, got %d", defaultLocalDimension, len(va))
	}

	for i := range va {
		if va[i] != vb[i] {
			t.Fatalf("vectors differ at %d: %v != %v", i, va[i], vb[i])
		}
	}
}

func TestLocalRejectsEmptyInput(t *testing.T) {
	l := NewLocal(64)

	for _, in := range []string{"", "   ", "\n\t"} {
		if _, err := l.Embed(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", in, err)
		}
	}

	if _, err := l.EmbedBatch(context.Background(), []string{"Go", " "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for batch, got %v", err)
	}
}

func TestLocalBatchMatchesSingle(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(128)
	texts := []string{"Python", "SQL", "Pottery", "C++", "machine learning"}

	batch, err := l.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, text := range texts {
		single, err := l.Embed(ctx, text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if Cosine(single, batch[i]) != 1 {
			t.Fatalf("batch vector %d differs from single encode", i)
		}
	}
}

func TestSelfSimilarity(t *testing.T) {
	l := NewLocal(0)

	for _, text := range []string{"Python", "SQL", "x", "data science with R", "日本語"} {
		v, err := l.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := Cosine(v, v); got != 1.0 {
			t.Fatalf("expected self similarity 1 for %q, got %v", text, got)
		}
	}
}

func TestLocalSimilarityOrdering(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(0)

	embed := func(s string) []float32 {
		v, err := l.Embed(ctx, s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return v
	}

	python := embed("Python")
	pythonProgramming := embed("python programming")
	pottery := embed("Pottery")

	if Cosine(python, pythonProgramming) <= Cosine(python, pottery) {
		t.Fatalf("expected shared words to score higher than unrelated phrases")
	}

	if Cosine(embed("SQL"), embed("sql")) != 1 {
		t.Fatalf("expected case-insensitive encoding")
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 1}, b: []float32{-1, -1}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "both zero", a: []float32{0, 0}, b: []float32{0, 0}, want: 0},
		{name: "mismatched", a: []float32{1, 2}, b: []float32{1, 2, 3}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCosineSymmetricAndBounded(t *testing.T) {
	l := NewLocal(0)
	texts := []string{"Go", "Golang", "Rust", "cooking", "Italian cooking", "SQL"}

	vectors, err := l.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range vectors {
		for j := range vectors {
			ab := Cosine(vectors[i], vectors[j])
			ba := Cosine(vectors[j], vectors[i])
			if ab != ba {
				t.Fatalf("asymmetric similarity for %q/%q: %v != %v", texts[i], texts[j], ab, ba)
			}
			if ab < -1 || ab > 1 {
				t.Fatalf("similarity out of bounds: %v", ab)
			}
		}
	}
}

type countingEmbedder struct {
	*Local
}

func TestLazyLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazy("counting", func(context.Context) (Embedder, error) {
		calls.Add(1)
		return countingEmbedder{NewLocal(32)}, nil
	}, nil)

	if lazy.Dimension() != 0 || lazy.Model() != "counting" {
		t.Fatalf("expected lazy metadata before load, got %d %q", lazy.Dimension(), lazy.Model())
	}

	if calls.Load() != 0 {
		t.Fatalf("model must not load before first use")
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lazy.Embed(context.Background(), "Go"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single model load, got %d", calls.Load())
	}

	if lazy.Dimension() != 32 || lazy.Model() != LocalModel+"/32" {
		t.Fatalf("expected loaded metadata, got %d %q", lazy.Dimension(), lazy.Model())
	}
}

func TestLazyLoadSurvivesCancelledCaller(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazy("local", func(ctx context.Context) (Embedder, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewLocal(16), nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := lazy.Embed(ctx, "Go"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to see its own error, got %v", err)
	}

	if _, err := lazy.Embed(context.Background(), "Go"); err != nil {
		t.Fatalf("expected later callers to get the loaded model, got %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("expected a single model load, got %d", calls.Load())
	}
}

func TestLazyRemembersFailure(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	lazy := NewLazy("broken", func(context.Context) (Embedder, error) {
		calls.Add(1)
		return nil, boom
	}, nil)

	for i := 0; i < 3; i++ {
		if _, err := lazy.EmbedBatch(context.Background(), []string{"Go"}); !errors.Is(err, boom) {
			t.Fatalf("expected load failure, got %v", err)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("expected a single load attempt, got %d", calls.Load())
	}
}

func TestLazyValidatesBeforeLoading(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazy("local", func(context.Context) (Embedder, error) {
		calls.Add(1)
		return NewLocal(0), nil
	}, nil)

	if _, err := lazy.Embed(context.Background(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	if calls.Load() != 0 {
		t.Fatalf("invalid input must not trigger a model load")
	}
}
