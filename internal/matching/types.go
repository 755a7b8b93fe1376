package matching

import (
	"strings"
	"time"
)

// Match pairs one learner with one teacher.
type Match struct {
	LearnerID     string    `json:"learner_id" yaml:"learner_id"`
	TeacherID     string    `json:"teacher_id" yaml:"teacher_id"`
	SkillPhrase   string    `json:"skill" yaml:"skill"`
	TeacherPhrase string    `json:"teacher_skill" yaml:"teacher_skill"`
	Similarity    float64   `json:"similarity" yaml:"similarity"`
	Confidence    float64   `json:"confidence" yaml:"confidence"`
	Explanation   string    `json:"explanation" yaml:"explanation"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// Unmatched is a learner left without a teacher in a pass.
type Unmatched struct {
	LearnerID   string `json:"learner_id" yaml:"learner_id"`
	SkillPhrase string `json:"skill" yaml:"skill"`
	Reason      string `json:"reason" yaml:"reason"`
}

// Step reports how many participants one eligibility step let through.
type Step struct {
	Name    string `json:"name" yaml:"name"`
	Initial int    `json:"initial" yaml:"initial"`
	Dropped int    `json:"dropped" yaml:"dropped"`
	Left    int    `json:"left" yaml:"left"`
}

// Result is everything one pass produced. The caller owns it.
type Result struct {
	PassID    string      `json:"pass_id" yaml:"pass_id"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	Threshold float64     `json:"threshold" yaml:"threshold"`
	Strategy  string      `json:"strategy" yaml:"strategy"`
	TieBreak  string      `json:"tie_break" yaml:"tie_break"`
	Model     string      `json:"model" yaml:"model"`
	Matches   []Match     `json:"matches" yaml:"matches"`
	Unmatched []Unmatched `json:"unmatched" yaml:"unmatched"`
	Steps     []Step      `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// MatchedIDs lists every participant paired in this pass, learner before
// teacher, in match order. Callers apply it with roster.ApplyMatched.
func (r *Result) MatchedIDs() []string {
	if r == nil {
		return nil
	}

	ids := make([]string, 0, len(r.Matches)*2)
	for _, m := range r.Matches {
		ids = append(ids, m.LearnerID, m.TeacherID)
	}
	return ids
}

// ForLearner returns the match of a learner, ignoring case.
func (r *Result) ForLearner(id string) *Match {
	if r == nil {
		return nil
	}

	id = strings.TrimSpace(id)
	for i := range r.Matches {
		if strings.EqualFold(r.Matches[i].LearnerID, id) {
			return &r.Matches[i]
		}
	}
	return nil
}

// ForParticipant returns the match a participant takes part in on either side.
func (r *Result) ForParticipant(id string) *Match {
	if r == nil {
		return nil
	}

	id = strings.TrimSpace(id)
	for i := range r.Matches {
		if strings.EqualFold(r.Matches[i].LearnerID, id) || strings.EqualFold(r.Matches[i].TeacherID, id) {
			return &r.Matches[i]
		}
	}
	return nil
}

// UnmatchedFor returns the unmatched record of a learner, ignoring case.
func (r *Result) UnmatchedFor(id string) *Unmatched {
	if r == nil {
		return nil
	}

	id = strings.TrimSpace(id)
	for i := range r.Unmatched {
		if strings.EqualFold(r.Unmatched[i].LearnerID, id) {
			return &r.Unmatched[i]
		}
	}
	return nil
}
