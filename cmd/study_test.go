package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/report"
	"github.com/spigell/skillmatch/internal/studylog"
)

func TestRecordSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study_log.csv")
	at := time.Date(2026, time.March, 10, 9, 30, 15, 500, time.Local)

	s, err := recordSession(path, studylog.Session{Name: "  Ada ", Minutes: 45, At: at})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "Ada" || s.At.Nanosecond() != 0 {
		t.Fatalf("expected a cleaned session, got %+v", s)
	}

	sessions, err := studylog.Load(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 || !sessions[0].At.Equal(s.At) {
		t.Fatalf("unexpected log: %+v", sessions)
	}

	if _, err := recordSession(" ", studylog.Session{Name: "Ada", Minutes: 45, At: at}); err == nil {
		t.Fatal("expected an error without a study log file")
	}
	if _, err := recordSession(path, studylog.Session{Name: "Ada", At: at}); err == nil {
		t.Fatal("expected an error without minutes")
	}
}

func TestEstimateAndListDefaulters(t *testing.T) {
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "users.csv")
	writeFile(t, rosterPath, "Name,Email,Role,SkillLevel,CanTeach,WantsToLearn\n"+
		"Ada,ada@example.com,Learner,Beginner,,SQL\n"+
		"Grace,grace@example.com,Teacher,Advanced,SQL,\n")

	list, err := estimate(context.Background(), &Config{Roster: rosterPath}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].Minutes != 40 || list[1].Minutes != 35 {
		t.Fatalf("unexpected targets: %+v", list)
	}

	at := time.Date(2026, time.March, 11, 18, 0, 0, 0, time.UTC)
	sessions := []studylog.Session{{Name: "Ada", Minutes: 45, At: at.Add(-time.Hour)}}

	defaulters := progressOf(list, sessions, at, false)
	if len(defaulters) != 1 || defaulters[0].ParticipantID != "grace@example.com" {
		t.Fatalf("unexpected defaulters: %+v", defaulters)
	}

	all := progressOf(list, sessions, at, true)
	if len(all) != 2 || !all[0].Met() {
		t.Fatalf("unexpected progress: %+v", all)
	}

	out := filepath.Join(dir, "defaulters.json")
	if err := emit(out, report.FormatCSV, func(w io.Writer, f report.Format) error {
		return report.WriteProgress(w, f, defaulters)
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data := readFile(t, out); len(data) == 0 || data[0] != '[' {
		t.Fatalf("expected json by extension, got %q", data)
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   report.Format
	}{
		{name: "nil config", config: nil, want: report.FormatCSV},
		{name: "no output section", config: &Config{}, want: report.FormatCSV},
		{name: "yaml", config: &Config{Output: &OutputConfig{Format: "yml"}}, want: report.FormatYAML},
		{name: "unknown falls back", config: &Config{Output: &OutputConfig{Format: "xml"}}, want: report.FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputFormat(tt.config); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return data
}
