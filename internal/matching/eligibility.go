package matching

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/roster"
)

// Filter is one eligibility step applied to a list of participants.
type Filter interface {
	Name() string
	Apply(in []roster.Participant) (kept, dropped []roster.Participant)
}

type filterFunc struct {
	name string
	keep func(roster.Participant) bool
}

func (f filterFunc) Name() string { return f.name }

func (f filterFunc) Apply(in []roster.Participant) ([]roster.Participant, []roster.Participant) {
	kept := make([]roster.Participant, 0, len(in))
	var dropped []roster.Participant
	for _, p := range in {
		if f.keep(p) {
			kept = append(kept, p)
			continue
		}
		dropped = append(dropped, p)
	}
	return kept, dropped
}

// uniqueIDFilter keeps the first participant for every id. It holds state,
// so a new one is built per pass.
type uniqueIDFilter struct{}

func (uniqueIDFilter) Name() string { return "unique_id" }

func (uniqueIDFilter) Apply(in []roster.Participant) ([]roster.Participant, []roster.Participant) {
	seen := make(map[string]struct{}, len(in))
	kept := make([]roster.Participant, 0, len(in))
	var dropped []roster.Participant
	for _, p := range in {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if id == "" {
			dropped = append(dropped, p)
			continue
		}
		if _, ok := seen[id]; ok {
			dropped = append(dropped, p)
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, p)
	}
	return kept, dropped
}

var (
	knownRoleFilter = filterFunc{
		name: "known_role",
		keep: func(p roster.Participant) bool { return p.Role != roster.RoleUnknown },
	}
	notMatchedFilter = filterFunc{
		name: "not_matched",
		keep: func(p roster.Participant) bool { return !p.Matched },
	}
	skillPhraseFilter = filterFunc{
		name: "skill_phrase",
		keep: func(p roster.Participant) bool { return p.SkillPhrase() != "" },
	}
)

// runFilters applies steps in order and logs each like a pipeline stage. The
// dropped participants of every step are returned by step name.
func runFilters(logger *zap.Logger, side string, steps []Filter, in []roster.Participant) ([]roster.Participant, map[string][]roster.Participant, []Step) {
	dropped := make(map[string][]roster.Participant, len(steps))
	info := make([]Step, 0, len(steps))

	for _, step := range steps {
		initial := len(in)
		kept, out := step.Apply(in)

		s := Step{Name: side + "/" + step.Name(), Initial: initial, Dropped: len(out), Left: len(kept)}
		logger.Info("eligibility step",
			zap.String("name", s.Name),
			zap.Int("initial", s.Initial),
			zap.Int("dropped", s.Dropped),
			zap.Int("left", s.Left),
		)
		for _, p := range out {
			logger.Debug("participant not eligible",
				zap.String("step", s.Name),
				zap.String("participant_id", p.ID),
				zap.Stringer("role", p.Role),
			)
		}

		dropped[step.Name()] = out
		info = append(info, s)
		in = kept
	}

	return in, dropped, info
}

// eligible partitions a roster into learners and teachers for one pass.
// Learners without a skill phrase are returned separately so the pass can
// report them as unmatched.
type eligible struct {
	learners []roster.Participant
	teachers []roster.Participant
	noPhrase []roster.Participant
	steps    []Step
}

func selectEligible(logger *zap.Logger, r *roster.Roster) eligible {
	var out eligible
	if r.Len() == 0 {
		return out
	}

	people, _, steps := runFilters(logger, "roster", []Filter{uniqueIDFilter{}, knownRoleFilter}, r.Participants)
	out.steps = append(out.steps, steps...)

	var learners, teachers []roster.Participant
	for _, p := range people {
		switch p.Role {
		case roster.RoleLearner:
			learners = append(learners, p)
		case roster.RoleTeacher:
			teachers = append(teachers, p)
		}
	}

	learners, dropped, steps := runFilters(logger, "learners", []Filter{notMatchedFilter, skillPhraseFilter}, learners)
	out.learners = learners
	out.noPhrase = dropped[skillPhraseFilter.Name()]
	out.steps = append(out.steps, steps...)

	teachers, _, steps = runFilters(logger, "teachers", []Filter{skillPhraseFilter}, teachers)
	out.teachers = teachers
	out.steps = append(out.steps, steps...)

	return out
}
