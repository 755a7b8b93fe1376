package targets

import (
	"time"

	"github.com/spigell/skillmatch/internal/studylog"
	"github.com/spigell/skillmatch/internal/utils"
)

// Progress compares a participant's target with the minutes logged during
// the last week.
type Progress struct {
	Target    `yaml:",inline"`
	Logged    float64 `json:"logged_minutes" yaml:"logged_minutes"`
	Shortfall float64 `json:"shortfall_minutes" yaml:"shortfall_minutes"`
}

// Met reports whether the logged time reaches the target.
func (p Progress) Met() bool { return p.Logged >= p.Minutes }

// Weekly returns the progress of every target in the given order. Sessions
// older than a week before now, or after now, are ignored.
func Weekly(list []Target, sessions []studylog.Session, now time.Time) []Progress {
	recent := studylog.Recent(sessions, now)

	out := make([]Progress, 0, len(list))
	for _, t := range list {
		logged := studylog.Total(recent, t.ParticipantID, t.Name, now)

		p := Progress{Target: t, Logged: logged}
		if !p.Met() {
			p.Shortfall = utils.Round(t.Minutes-logged, 2)
		}
		out = append(out, p)
	}
	return out
}

// Defaulters returns the participants whose logged time over the last week
// falls short of their target, in target order. Participants who logged
// nothing count as zero minutes.
func Defaulters(list []Target, sessions []studylog.Session, now time.Time) []Progress {
	out := make([]Progress, 0)
	for _, p := range Weekly(list, sessions, now) {
		if !p.Met() {
			out = append(out, p)
		}
	}
	return out
}
