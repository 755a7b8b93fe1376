// Package targets suggests a weekly study time for every participant.
//
// A target depends only on the participant's own fields: a base, a boost for
// beginners and the similarity between what they want to learn and what they
// can teach.
package targets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/embedding"
	"github.com/spigell/skillmatch/internal/roster"
	"github.com/spigell/skillmatch/internal/utils"
)

const (
	DefaultBaseMinutes   = 30.0
	DefaultBeginnerBoost = 10.0
	DefaultOtherBoost    = 5.0
	DefaultOverlapScale  = 10.0
)

// Target is the suggested weekly study time of one participant.
type Target struct {
	ParticipantID string  `json:"participant_id" yaml:"participant_id"`
	Name          string  `json:"name" yaml:"name"`
	Level         string  `json:"level,omitempty" yaml:"level,omitempty"`
	Similarity    float64 `json:"similarity" yaml:"similarity"`
	Minutes       float64 `json:"target_minutes" yaml:"target_minutes"`
}

// Config overrides the formula constants. Zero values keep the defaults.
type Config struct {
	BaseMinutes   float64 `mapstructure:"base-minutes"`
	BeginnerBoost float64 `mapstructure:"beginner-boost"`
	OtherBoost    float64 `mapstructure:"other-boost"`
	OverlapScale  float64 `mapstructure:"overlap-scale"`
}

// Estimator computes study targets with the given embedder.
type Estimator struct {
	embedder embedding.Embedder
	logger   *zap.Logger

	base          float64
	beginnerBoost float64
	otherBoost    float64
	scale         float64
}

func New(e embedding.Embedder, cfg Config, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}

	est := &Estimator{
		embedder:      e,
		logger:        logger,
		base:          cfg.BaseMinutes,
		beginnerBoost: cfg.BeginnerBoost,
		otherBoost:    cfg.OtherBoost,
		scale:         cfg.OverlapScale,
	}

	if est.base <= 0 {
		est.base = DefaultBaseMinutes
	}
	if est.beginnerBoost <= 0 {
		est.beginnerBoost = DefaultBeginnerBoost
	}
	if est.otherBoost <= 0 {
		est.otherBoost = DefaultOtherBoost
	}
	if est.scale <= 0 {
		est.scale = DefaultOverlapScale
	}

	return est
}

// Estimate returns the target of one participant. A phrase that is empty or
// cannot be encoded counts as zero overlap.
func (e *Estimator) Estimate(ctx context.Context, p roster.Participant) (Target, error) {
	memo := embedding.NewMemo(e.embedder, e.logger)
	if err := memo.Encode(ctx, phrasesOf(p)); err != nil {
		return Target{}, fmt.Errorf("estimate target for %s: %w", p.ID, err)
	}
	return e.target(memo, p), nil
}

// EstimateAll returns targets for every participant in roster order. Equal
// phrases across participants are encoded once.
func (e *Estimator) EstimateAll(ctx context.Context, r *roster.Roster) ([]Target, error) {
	out := make([]Target, 0, r.Len())
	if r.Len() == 0 {
		return out, nil
	}

	var texts []string
	for _, p := range r.Participants {
		texts = append(texts, phrasesOf(p)...)
	}

	memo := embedding.NewMemo(e.embedder, e.logger)
	if err := memo.Encode(ctx, texts); err != nil {
		return nil, fmt.Errorf("estimate targets: %w", err)
	}

	for _, p := range r.Participants {
		out = append(out, e.target(memo, p))
	}

	e.logger.Info("study targets estimated", zap.Int("participants", len(out)))

	return out, nil
}

func (e *Estimator) target(memo *embedding.Memo, p roster.Participant) Target {
	boost := e.otherBoost
	if p.Level == roster.LevelBeginner {
		boost = e.beginnerBoost
	}

	sim := e.overlap(memo, p)

	return Target{
		ParticipantID: p.ID,
		Name:          p.Name,
		Level:         p.Level.String(),
		Similarity:    utils.Round(sim, 4),
		Minutes:       utils.Round(e.base+boost+sim*e.scale, 2),
	}
}

func (e *Estimator) overlap(memo *embedding.Memo, p roster.Participant) float64 {
	texts := phrasesOf(p)
	if len(texts) != 2 {
		return 0
	}

	wants, err := memo.Get(texts[0])
	if err != nil {
		e.logger.Debug("no overlap for participant", zap.String("participant_id", p.ID), zap.Error(err))
		return 0
	}
	offers, err := memo.Get(texts[1])
	if err != nil {
		e.logger.Debug("no overlap for participant", zap.String("participant_id", p.ID), zap.Error(err))
		return 0
	}

	return embedding.Cosine(wants, offers)
}

// phrasesOf returns wants and offers when both are present.
func phrasesOf(p roster.Participant) []string {
	wants, err := embedding.CheckInput(p.Wants)
	if err != nil {
		return nil
	}
	offers, err := embedding.CheckInput(p.Offers)
	if err != nil {
		return nil
	}
	return []string{wants, offers}
}
