package matching

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultThreshold is the minimum similarity for a pairing.
const DefaultThreshold = 0.6

var (
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")
	ErrUnknownStrategy  = errors.New("unknown matching strategy")
	ErrUnknownTieBreak  = errors.New("unknown tie-break rule")
	ErrNoEmbedder       = errors.New("embedder is required")
)

// Strategy selects the assignment algorithm.
type Strategy string

const (
	// StrategyLearnerOrder walks learners in roster order and gives each the
	// closest teacher still free.
	StrategyLearnerOrder Strategy = "learner-order"
	// StrategyGlobal picks pairs by descending similarity across the whole
	// roster. Raising the threshold only ever removes its matches.
	StrategyGlobal Strategy = "global"
)

// ParseStrategy maps a config value to a Strategy. Empty means learner order.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyLearnerOrder:
		return StrategyLearnerOrder, nil
	case StrategyGlobal:
		return StrategyGlobal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// TieBreak decides between teachers with exactly equal similarity.
type TieBreak string

const (
	// TieBreakRosterOrder keeps the teacher met first in the roster.
	TieBreakRosterOrder TieBreak = "roster-order"
	// TieBreakTeacherID keeps the teacher with the lexicographically smaller id.
	TieBreakTeacherID TieBreak = "teacher-id"
)

// ParseTieBreak maps a config value to a TieBreak. Empty means roster order.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(strings.ToLower(strings.TrimSpace(s))) {
	case "", TieBreakRosterOrder:
		return TieBreakRosterOrder, nil
	case TieBreakTeacherID:
		return TieBreakTeacherID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTieBreak, s)
	}
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum similarity in [0, 1].
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// WithStrategy selects the assignment algorithm.
func WithStrategy(s Strategy) Option {
	return func(m *Matcher) { m.strategy = s }
}

// WithTieBreak selects the rule for equal similarities.
func WithTieBreak(tb TieBreak) Option {
	return func(m *Matcher) { m.tieBreak = tb }
}

// WithClock replaces time.Now for match timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPassIDs replaces the uuid generator for pass ids.
func WithPassIDs(next func() string) Option {
	return func(m *Matcher) {
		if next != nil {
			m.newPassID = next
		}
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Matcher) {
		if logger == nil {
			logger = zap.NewNop()
		}
		m.logger = logger
	}
}

// WithMaxLogLength bounds phrase previews in logs and explanations.
func WithMaxLogLength(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.maxLogLen = n
		}
	}
}

func (m *Matcher) validate() error {
	if m.embedder == nil {
		return ErrNoEmbedder
	}
	if math.IsNaN(m.threshold) || m.threshold < 0 || m.threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, m.threshold)
	}
	if _, err := ParseStrategy(string(m.strategy)); err != nil {
		return err
	}
	if _, err := ParseTieBreak(string(m.tieBreak)); err != nil {
		return err
	}
	return nil
}

func defaultPassID() string {
	return uuid.NewString()
}
