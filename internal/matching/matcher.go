// Package matching pairs learners with teachers by skill phrase similarity.
//
// A pass reads a roster snapshot, keeps eligible participants, encodes their
// skill phrases and assigns every learner at most one teacher. Nothing is
// written back; the caller decides what to do with the Result.
package matching

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/embedding"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/roster"
	"github.com/spigell/skillmatch/internal/utils"
)

const defaultMaxLogLength = 80

// Reasons recorded for unmatched learners.
const (
	ReasonEmptyPhrase   = "no skill phrase provided"
	ReasonNoTeachers    = "no eligible teachers in this pass"
	ReasonTeachersTaken = "every teacher was already paired in this pass"
	ReasonOutbid        = "teachers above the threshold were paired with closer learners"
)

// Matcher runs matching passes. It keeps no state between passes and is safe
// for concurrent use when its embedder is.
type Matcher struct {
	embedder  embedding.Embedder
	threshold float64
	strategy  Strategy
	tieBreak  TieBreak
	now       func() time.Time
	newPassID func() string
	logger    *zap.Logger
	maxLogLen int
}

// New builds a Matcher and validates its options.
func New(e embedding.Embedder, opts ...Option) (*Matcher, error) {
	m := &Matcher{
		embedder:  e,
		threshold: DefaultThreshold,
		strategy:  StrategyLearnerOrder,
		tieBreak:  TieBreakRosterOrder,
		now:       time.Now,
		newPassID: defaultPassID,
		logger:    zap.NewNop(),
		maxLogLen: defaultMaxLogLength,
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	m.strategy, _ = ParseStrategy(string(m.strategy))
	m.tieBreak, _ = ParseTieBreak(string(m.tieBreak))

	return m, nil
}

func (m *Matcher) Threshold() float64 { return m.threshold }

func (m *Matcher) Strategy() Strategy { return m.strategy }

func (m *Matcher) TieBreak() TieBreak { return m.tieBreak }

type candidate struct {
	p      roster.Participant
	phrase string
	vec    []float32
	// index is the position in the eligible list, which keeps roster order.
	index int
}

type pair struct {
	learner candidate
	teacher candidate
	sim     float64
}

// Run executes one matching pass over r. It fails only when the roster
// schema is unusable or ctx is cancelled; every per-participant problem ends
// up in Result.Unmatched or the log.
func (m *Matcher) Run(ctx context.Context, r *roster.Roster) (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("matching could not run: %w", err)
	}

	passID := m.newPassID()
	log := logger.WithPass(m.logger, passID)
	createdAt := m.now().UTC()

	res := &Result{
		PassID:    passID,
		CreatedAt: createdAt,
		Threshold: m.threshold,
		Strategy:  string(m.strategy),
		TieBreak:  string(m.tieBreak),
		Matches:   []Match{},
		Unmatched: []Unmatched{},
	}

	sel := selectEligible(log, r)
	res.Steps = sel.steps

	for _, p := range sel.noPhrase {
		res.Unmatched = append(res.Unmatched, Unmatched{LearnerID: p.ID, Reason: ReasonEmptyPhrase})
	}

	learners, teachers, skipped, err := m.encode(ctx, log, sel)
	if err != nil {
		return nil, err
	}
	res.Unmatched = append(res.Unmatched, skipped...)

	var pairs []pair
	var unmatched []Unmatched
	switch {
	case len(learners) == 0:
	case len(teachers) == 0:
		for _, l := range learners {
			unmatched = append(unmatched, Unmatched{LearnerID: l.p.ID, SkillPhrase: l.phrase, Reason: ReasonNoTeachers})
		}
	case m.strategy == StrategyGlobal:
		pairs, unmatched = m.assignGlobal(learners, teachers)
	default:
		pairs, unmatched = m.assignLearnerOrder(learners, teachers)
	}

	for _, pr := range pairs {
		res.Matches = append(res.Matches, m.newMatch(pr, createdAt))
	}
	res.Unmatched = append(res.Unmatched, unmatched...)
	sortUnmatched(r, res.Unmatched)

	res.Model = m.embedder.Model()

	log.Info("matching pass completed",
		zap.String("strategy", res.Strategy),
		zap.Float64("threshold", res.Threshold),
		zap.Int("learners", len(learners)),
		zap.Int("teachers", len(teachers)),
		zap.Int("matches", len(res.Matches)),
		zap.Int("unmatched", len(res.Unmatched)),
	)

	return res, nil
}

// encode turns eligible participants into candidates. Teachers whose phrase
// cannot be encoded leave the pass; such learners are reported unmatched.
func (m *Matcher) encode(ctx context.Context, log *zap.Logger, sel eligible) ([]candidate, []candidate, []Unmatched, error) {
	if len(sel.learners) == 0 {
		return nil, nil, nil, nil
	}

	cache := embedding.NewMemo(m.embedder, log)

	var teachers []candidate
	if len(sel.teachers) > 0 {
		if err := cache.Encode(ctx, phrases(sel.teachers)); err != nil {
			return nil, nil, nil, fmt.Errorf("encode teacher phrases: %w", err)
		}

		for _, t := range sel.teachers {
			phrase := t.SkillPhrase()
			vec, err := cache.Get(phrase)
			if err != nil {
				log.Warn("teacher skipped, skill phrase could not be encoded",
					zap.String("participant_id", t.ID),
					zap.String("skill", utils.TruncateForLog(phrase, m.maxLogLen)),
					zap.Error(err),
				)
				continue
			}
			teachers = append(teachers, candidate{p: t, phrase: phrase, vec: vec, index: len(teachers)})
		}
	}

	// Learners are not encoded when nobody can teach them.
	if len(teachers) == 0 {
		learners := make([]candidate, 0, len(sel.learners))
		for _, l := range sel.learners {
			learners = append(learners, candidate{p: l, phrase: l.SkillPhrase(), index: len(learners)})
		}
		return learners, nil, nil, nil
	}

	if err := cache.Encode(ctx, phrases(sel.learners)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode learner phrases: %w", err)
	}

	var (
		learners []candidate
		skipped  []Unmatched
	)
	for _, l := range sel.learners {
		phrase := l.SkillPhrase()
		vec, err := cache.Get(phrase)
		if err != nil {
			log.Warn("learner skipped, skill phrase could not be encoded",
				zap.String("participant_id", l.ID),
				zap.String("skill", utils.TruncateForLog(phrase, m.maxLogLen)),
				zap.Error(err),
			)
			skipped = append(skipped, Unmatched{
				LearnerID:   l.ID,
				SkillPhrase: phrase,
				Reason:      fmt.Sprintf("skill phrase could not be encoded: %v", err),
			})
			continue
		}
		learners = append(learners, candidate{p: l, phrase: phrase, vec: vec, index: len(learners)})
	}

	return learners, teachers, skipped, nil
}

// assignLearnerOrder walks learners in roster order. Each takes the free
// teacher with the highest similarity if it reaches the threshold.
func (m *Matcher) assignLearnerOrder(learners, teachers []candidate) ([]pair, []Unmatched) {
	taken := make([]bool, len(teachers))
	var (
		pairs     []pair
		unmatched []Unmatched
	)

	for _, l := range learners {
		best := -1
		var bestSim float64
		for j, t := range teachers {
			if taken[j] {
				continue
			}
			sim := embedding.Cosine(l.vec, t.vec)
			if best == -1 || m.prefer(sim, t, bestSim, teachers[best]) {
				best, bestSim = j, sim
			}
		}

		switch {
		case best == -1:
			unmatched = append(unmatched, Unmatched{LearnerID: l.p.ID, SkillPhrase: l.phrase, Reason: ReasonTeachersTaken})
		case bestSim >= m.threshold:
			taken[best] = true
			pairs = append(pairs, pair{learner: l, teacher: teachers[best], sim: bestSim})
		default:
			unmatched = append(unmatched, Unmatched{
				LearnerID:   l.p.ID,
				SkillPhrase: l.phrase,
				Reason:      m.belowThreshold(bestSim, teachers[best]),
			})
		}
	}

	return pairs, unmatched
}

// assignGlobal takes pairs in descending similarity across the whole roster.
// Equal similarities go to the earlier learner, then by the tie-break rule.
func (m *Matcher) assignGlobal(learners, teachers []candidate) ([]pair, []Unmatched) {
	all := make([]pair, 0, len(learners)*len(teachers))
	for _, l := range learners {
		for _, t := range teachers {
			all = append(all, pair{learner: l, teacher: t, sim: embedding.Cosine(l.vec, t.vec)})
		}
	}

	slices.SortStableFunc(all, func(a, b pair) int {
		if a.sim != b.sim {
			if a.sim > b.sim {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.learner.index, b.learner.index); c != 0 {
			return c
		}
		if m.tieBreak == TieBreakTeacherID {
			if c := strings.Compare(a.teacher.p.ID, b.teacher.p.ID); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.teacher.index, b.teacher.index)
	})

	learnerTaken := make([]bool, len(learners))
	teacherTaken := make([]bool, len(teachers))
	var pairs []pair
	for _, pr := range all {
		if pr.sim < m.threshold {
			break
		}
		if learnerTaken[pr.learner.index] || teacherTaken[pr.teacher.index] {
			continue
		}
		learnerTaken[pr.learner.index] = true
		teacherTaken[pr.teacher.index] = true
		pairs = append(pairs, pr)
	}

	slices.SortFunc(pairs, func(a, b pair) int { return cmp.Compare(a.learner.index, b.learner.index) })

	// The first pair seen for a learner in sorted order is its best one.
	bestFor := make([]*pair, len(learners))
	for i := range all {
		if bestFor[all[i].learner.index] == nil {
			bestFor[all[i].learner.index] = &all[i]
		}
	}

	var unmatched []Unmatched
	for _, l := range learners {
		if learnerTaken[l.index] {
			continue
		}
		best := bestFor[l.index]
		reason := ReasonOutbid
		if best.sim < m.threshold {
			reason = m.belowThreshold(best.sim, best.teacher)
		}
		unmatched = append(unmatched, Unmatched{LearnerID: l.p.ID, SkillPhrase: l.phrase, Reason: reason})
	}

	return pairs, unmatched
}

// prefer reports whether teacher t with similarity sim beats the current best.
func (m *Matcher) prefer(sim float64, t candidate, bestSim float64, best candidate) bool {
	if sim != bestSim {
		return sim > bestSim
	}
	if m.tieBreak == TieBreakTeacherID {
		return t.p.ID < best.p.ID
	}
	return false
}

func (m *Matcher) belowThreshold(sim float64, t candidate) string {
	return fmt.Sprintf("best similarity %.2f with %s (%s) is below threshold %.2f",
		sim, t.p.ID, utils.Quote(t.phrase, m.maxLogLen), m.threshold)
}

func (m *Matcher) newMatch(pr pair, at time.Time) Match {
	confidence := Confidence(pr.sim)
	return Match{
		LearnerID:     pr.learner.p.ID,
		TeacherID:     pr.teacher.p.ID,
		SkillPhrase:   pr.learner.phrase,
		TeacherPhrase: pr.teacher.phrase,
		Similarity:    pr.sim,
		Confidence:    confidence,
		Explanation: fmt.Sprintf("Paired based on similarity between %s and %s (%.2f%%)",
			utils.Quote(pr.learner.phrase, m.maxLogLen), utils.Quote(pr.teacher.phrase, m.maxLogLen), confidence),
		CreatedAt: at,
	}
}

// Confidence maps a similarity to a percentage with two decimals.
func Confidence(sim float64) float64 {
	return utils.Round(min(max(sim, 0), 1)*100, 2)
}

func phrases(ps []roster.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.SkillPhrase())
	}
	return out
}

// sortUnmatched orders unmatched learners as they appear in the roster.
func sortUnmatched(r *roster.Roster, list []Unmatched) {
	if r == nil {
		return
	}

	pos := make(map[string]int, r.Len())
	for i, p := range r.Participants {
		id := strings.ToLower(p.ID)
		if _, ok := pos[id]; !ok {
			pos[id] = i
		}
	}

	slices.SortStableFunc(list, func(a, b Unmatched) int {
		return cmp.Compare(pos[strings.ToLower(a.LearnerID)], pos[strings.ToLower(b.LearnerID)])
	})
}
