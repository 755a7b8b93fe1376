// Package report writes matching results and study targets as csv, json or yaml.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spigell/skillmatch/internal/matching"
	"github.com/spigell/skillmatch/internal/studylog"
	"github.com/spigell/skillmatch/internal/targets"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a config value to a Format. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// FormatFor picks the format from the file extension, or fallback when the
// extension is not known.
func FormatFor(path string, fallback Format) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil || filepath.Ext(path) == "" {
		return fallback
	}
	return f
}

type table struct {
	header []string
	rows   [][]string
}

func write(w io.Writer, f Format, v any, t table) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(t.header); err != nil {
			return err
		}
		if err := cw.WriteAll(t.rows); err != nil {
			return err
		}
		return cw.Error()
	default:
		return fmt.Errorf("unsupported report format %q", f)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteMatches writes one row per match.
func WriteMatches(w io.Writer, f Format, matches []matching.Match) error {
	t := table{header: []string{"Learner", "Teacher", "Skill", "TeacherSkill", "Similarity", "Confidence", "Explanation", "CreatedAt"}}
	for _, m := range matches {
		t.rows = append(t.rows, []string{
			m.LearnerID,
			m.TeacherID,
			m.SkillPhrase,
			m.TeacherPhrase,
			formatFloat(m.Similarity),
			formatFloat(m.Confidence),
			m.Explanation,
			m.CreatedAt.Format(time.RFC3339),
		})
	}
	return write(w, f, nonNil(matches), t)
}

// WriteUnmatched writes one row per learner left without a teacher.
func WriteUnmatched(w io.Writer, f Format, unmatched []matching.Unmatched) error {
	t := table{header: []string{"Learner", "Skill", "Reason"}}
	for _, u := range unmatched {
		t.rows = append(t.rows, []string{u.LearnerID, u.SkillPhrase, u.Reason})
	}
	return write(w, f, nonNil(unmatched), t)
}

// WriteTargets writes one row per participant.
func WriteTargets(w io.Writer, f Format, list []targets.Target) error {
	t := table{header: []string{"Participant", "Name", "SkillLevel", "Similarity", "TargetMinutes"}}
	for _, tg := range list {
		t.rows = append(t.rows, []string{tg.ParticipantID, tg.Name, tg.Level, formatFloat(tg.Similarity), formatFloat(tg.Minutes)})
	}
	return write(w, f, nonNil(list), t)
}

// WriteProgress writes targets against the time logged during the last week.
func WriteProgress(w io.Writer, f Format, list []targets.Progress) error {
	t := table{header: []string{"Participant", "Name", "TargetMinutes", "LoggedMinutes", "ShortfallMinutes", "MetTarget"}}
	for _, p := range list {
		t.rows = append(t.rows, []string{
			p.ParticipantID,
			p.Name,
			formatFloat(p.Minutes),
			formatFloat(p.Logged),
			formatFloat(p.Shortfall),
			strconv.FormatBool(p.Met()),
		})
	}
	return write(w, f, nonNil(list), t)
}

// WriteWeek writes the study time of one participant per weekday.
func WriteWeek(w io.Writer, f Format, days []studylog.DayTotal) error {
	t := table{header: []string{"Day", "Minutes"}}
	for _, d := range days {
		t.rows = append(t.rows, []string{d.Day, formatFloat(d.Minutes)})
	}
	return write(w, f, nonNil(days), t)
}

// WriteSummary writes the paired or unpaired status of every participant.
func WriteSummary(w io.Writer, f Format, list []Status) error {
	t := table{header: []string{"Participant", "Name", "Role", "Skill", "MatchStatus", "PairedWith", "Confidence", "Reason"}}
	for _, s := range list {
		confidence := ""
		if s.PairedWith != "" {
			confidence = formatFloat(s.Confidence)
		}
		t.rows = append(t.rows, []string{s.ID, s.Name, s.Role, s.Skill, s.Status, s.PairedWith, confidence, s.Reason})
	}
	return write(w, f, nonNil(list), t)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ToFile replaces the file at path with whatever fn produces.
func ToFile(path string, fn func(io.Writer) error) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := fn(file); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// DumpToTmpFile writes the full result as json to a new temporary file.
func DumpToTmpFile(res *matching.Result) (string, error) {
	file, err := os.CreateTemp("", "skillmatch_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}
