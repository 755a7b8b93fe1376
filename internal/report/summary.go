package report

import (
	"fmt"

	"github.com/spigell/skillmatch/internal/matching"
	"github.com/spigell/skillmatch/internal/roster"
)

const (
	StatusPaired   = "Paired"
	StatusUnpaired = "Unpaired"
)

// Status is the match state of one participant after a pass.
type Status struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Role       string  `json:"role" yaml:"role"`
	Skill      string  `json:"skill" yaml:"skill"`
	Status     string  `json:"status" yaml:"status"`
	PairedWith string  `json:"paired_with,omitempty" yaml:"paired_with,omitempty"`
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Summarize lists every participant of r with its status in res. People
// paired in an earlier pass count as paired without a partner.
func Summarize(r *roster.Roster, res *matching.Result) []Status {
	out := make([]Status, 0, r.Len())
	if r == nil {
		return out
	}

	for _, p := range r.Participants {
		s := Status{
			ID:     p.ID,
			Name:   p.Name,
			Role:   p.Role.String(),
			Skill:  p.SkillPhrase(),
			Status: StatusUnpaired,
		}

		switch m := res.ForParticipant(p.ID); {
		case m != nil:
			s.Status = StatusPaired
			s.Confidence = m.Confidence
			s.PairedWith = m.TeacherID
			if m.TeacherID == p.ID {
				s.PairedWith = m.LearnerID
			}
		case p.Matched:
			s.Status = StatusPaired
		default:
			if u := res.UnmatchedFor(p.ID); u != nil {
				s.Reason = u.Reason
			}
		}

		out = append(out, s)
	}

	return out
}

// ByTeacher groups the matches of res by teacher for display.
func ByTeacher(res *matching.Result) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	if res == nil {
		return report
	}

	for _, m := range res.Matches {
		key := fmt.Sprintf("%s (%s)", m.TeacherID, m.TeacherPhrase)
		report[key] = append(report[key], map[string]string{
			"learner":     m.LearnerID,
			"skill":       m.SkillPhrase,
			"confidence":  fmt.Sprintf("%.2f", m.Confidence),
			"explanation": m.Explanation,
		})
	}
	return report
}
