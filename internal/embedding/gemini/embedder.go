// Package gemini provides an embedding.Embedder backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/spigell/skillmatch/internal/embedding"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/utils"
)

const (
	Provider = "gemini"

	defaultModel        = "gemini-embedding-001"
	defaultMaxRetries   = 3
	defaultBatchSize    = 100
	defaultConcurrency  = 2
	defaultMaxLogLength = 80

	taskType      = "SEMANTIC_SIMILARITY"
	baseBackoff   = time.Second
	maxRetryDelay = 30 * time.Second
)

var wait = utils.WaitFor

var retryAfterRe = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9.]+)\s*(s|sec|secs|second|seconds)?\b`)

// embedClient is the subset of *genai.Models used here.
type embedClient interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config tunes the embedder. Zero values fall back to defaults.
type Config struct {
	APIKey       string
	Model        string
	Dimension    int
	MaxRetries   int
	BatchSize    int
	Concurrency  int
	MaxLogLength int
}

// Embedder encodes phrases with a Gemini embedding model.
type Embedder struct {
	client      embedClient
	model       string
	outputDim   int
	maxRetries  int
	batchSize   int
	concurrency int
	maxLogLen   int
	logger      *zap.Logger

	mu        sync.Mutex
	dimension int
}

// New creates a Gemini client for the Gemini API backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newEmbedder(client.Models, cfg, log), nil
}

func newEmbedder(client embedClient, cfg Config, log *zap.Logger) *Embedder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	e := &Embedder{
		client:      client,
		model:       model,
		outputDim:   cfg.Dimension,
		maxRetries:  cfg.MaxRetries,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		maxLogLen:   cfg.MaxLogLength,
		dimension:   cfg.Dimension,
	}

	if e.maxRetries <= 0 {
		e.maxRetries = defaultMaxRetries
	}
	if e.batchSize <= 0 || e.batchSize > defaultBatchSize {
		e.batchSize = defaultBatchSize
	}
	if e.concurrency <= 0 {
		e.concurrency = defaultConcurrency
	}
	if e.maxLogLen <= 0 {
		e.maxLogLen = defaultMaxLogLength
	}

	e.logger = logger.WithCommonFields(log, Provider, model)

	return e
}

// Model carries the requested output dimension when one is configured.
func (e *Embedder) Model() string { return embedding.ModelID(e.model, e.outputDim) }

// Dimension is known once configured or after the first response.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch splits texts into API-sized chunks and sends up to Concurrency
// of them at a time. Vectors are returned in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	clean, err := embedding.CheckBatch(texts)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	if len(clean) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(clean); start += e.batchSize {
		end := min(start+e.batchSize, len(clean))
		g.Go(func() error {
			vectors, err := e.embedChunk(gctx, clean[start:end])
			if err != nil {
				return fmt.Errorf("embed items %d-%d: %w", start, end-1, err)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func (e *Embedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		})
	}

	cfg := &genai.EmbedContentConfig{TaskType: taskType}
	if e.outputDim > 0 {
		dim := int32(e.outputDim)
		cfg.OutputDimensionality = &dim
	}

	e.logger.Debug("gemini embed content request",
		zap.Int("items", len(texts)),
		zap.String("first_item_preview", utils.TruncateForLog(texts[0], e.maxLogLen)),
	)

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		resp, err := e.client.EmbedContent(ctx, e.model, contents, cfg)
		if err == nil {
			return e.vectors(resp, len(texts))
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == e.maxRetries-1 {
			break
		}

		e.logger.Warn("gemini embed content failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

func (e *Embedder) vectors(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) != want {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d inputs", got, want)
	}

	out := make([][]float32, want)
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini api returned empty embedding for item %d", i)
		}
		out[i] = append([]float32(nil), emb.Values...)
	}

	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = len(out[0])
	}
	e.mu.Unlock()

	return out, nil
}

// retryDelay decides whether err is worth another attempt. Quota errors asking
// for a longer pause than maxRetryDelay are returned to the caller instead.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	code, message, ok := apiError(err)
	if !ok {
		return 0, false
	}

	backoff := baseBackoff << attempt

	switch {
	case code == http.StatusTooManyRequests:
		if d, found := parseRetryAfter(message); found {
			if d > maxRetryDelay {
				return 0, false
			}
			return d, true
		}
		return backoff, true
	case code >= http.StatusInternalServerError:
		return backoff, true
	default:
		return 0, false
	}
}

func apiError(err error) (int, string, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value.Code, value.Message, true
	}

	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message, true
	}

	return 0, "", false
}

func parseRetryAfter(message string) (time.Duration, bool) {
	m := retryAfterRe.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	return time.Duration(seconds * float64(time.Second)), true
}
