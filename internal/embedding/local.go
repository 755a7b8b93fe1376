package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	// LocalModel names the built-in hashed n-gram model. Bump the suffix when
	// the feature set changes, since vectors are not comparable across versions.
	LocalModel = "local-ngram-v1"

	defaultLocalDimension = 384

	wordWeight  = 0.6
	charWeight  = 0.4
	charNgramN  = 3
	projections = 2
)

// Local is an offline embedder projecting word and character n-grams into a
// fixed-size vector with FNV-1a feature hashing. It has no state beyond its
// dimension and is safe for concurrent use.
type Local struct {
	dimension int
}

// NewLocal returns a local embedder. Non-positive dimensions fall back to 384.
func NewLocal(dimension int) *Local {
	if dimension <= 0 {
		dimension = defaultLocalDimension
	}
	return &Local{dimension: dimension}
}

func (l *Local) Dimension() int { return l.dimension }

// Model is LocalModel qualified with the dimension, e.g. local-ngram-v1/384.
func (l *Local) Model() string { return ModelID(LocalModel, l.dimension) }

func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed, err := CheckInput(text)
	if err != nil {
		return nil, err
	}

	return l.embed(trimmed), nil
}

func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	clean, err := CheckBatch(texts)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for i, text := range clean {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embed(text)
	}
	return out, nil
}

func (l *Local) embed(text string) []float32 {
	vec := make([]float32, l.dimension)

	words := tokenize(text)
	if len(words) == 0 {
		words = []string{strings.ToLower(text)}
	}

	w := wordWeight / math.Sqrt(float64(len(words)))
	for _, word := range words {
		l.project(vec, fnv64("w:"+word), w)
	}

	var grams []string
	for _, word := range words {
		grams = append(grams, charNgrams("#"+word+"#", charNgramN)...)
	}
	if len(grams) > 0 {
		w = charWeight / math.Sqrt(float64(len(grams)))
		for _, g := range grams {
			l.project(vec, fnv64("c:"+g), w)
		}
	}

	normalize(vec)
	return vec
}

// project adds a signed contribution at several hashed positions.
func (l *Local) project(vec []float32, h uint64, weight float64) {
	for i := 0; i < projections; i++ {
		idx := int(h % uint64(l.dimension))
		sign := float32(1)
		if (h>>63)&1 == 1 {
			sign = -1
		}
		vec[idx] += sign * float32(weight)
		h = h*0x9E3779B97F4A7C15 + 0x632BE59BD9B4E019
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}

func charNgrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return []string{s}
	}

	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

func fnv64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func normalize(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
