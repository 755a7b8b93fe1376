package targets

import (
	"reflect"
	"testing"
	"time"

	"github.com/spigell/skillmatch/internal/studylog"
)

func TestDefaulters(t *testing.T) {
	now := time.Date(2026, time.March, 11, 18, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	list := []Target{
		{ParticipantID: "ada@example.com", Name: "Ada", Minutes: 50},
		{ParticipantID: "grace@example.com", Name: "Grace", Minutes: 45},
		{ParticipantID: "lin", Name: "Lin", Minutes: 40},
	}
	sessions := []studylog.Session{
		{Name: "Ada", Minutes: 30, At: now.Add(-day)},
		{Name: "ada", Minutes: 20, At: now.Add(-2 * day)},
		{Name: "Grace", Email: "GRACE@example.com", Minutes: 30, At: now.Add(-3 * day)},
		{Name: "Grace", Minutes: 60, At: now.Add(-10 * day)},
		{Name: "Lin", Minutes: 10, At: now.Add(day)},
	}

	got := Defaulters(list, sessions, now)

	var ids []string
	for _, p := range got {
		ids = append(ids, p.ParticipantID)
	}
	if !reflect.DeepEqual(ids, []string{"grace@example.com", "lin"}) {
		t.Fatalf("unexpected defaulters: %+v", got)
	}

	if got[0].Logged != 30 || got[0].Shortfall != 15 {
		t.Fatalf("unexpected grace progress: %+v", got[0])
	}
	if got[1].Logged != 0 || got[1].Shortfall != 40 {
		t.Fatalf("expected lin to count as zero minutes, got %+v", got[1])
	}

	weekly := Weekly(list, sessions, now)
	if len(weekly) != 3 || !weekly[0].Met() || weekly[0].Logged != 50 || weekly[0].Shortfall != 0 {
		t.Fatalf("unexpected weekly progress: %+v", weekly)
	}
}

func TestDefaultersEmpty(t *testing.T) {
	now := time.Now()

	if got := Defaulters(nil, nil, now); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}

	list := []Target{{ParticipantID: "ada@example.com", Name: "Ada", Minutes: 35}}
	if got := Defaulters(list, nil, now); len(got) != 1 || got[0].Logged != 0 {
		t.Fatalf("expected a participant without sessions to default, got %+v", got)
	}
}
