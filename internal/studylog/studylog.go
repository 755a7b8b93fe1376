// Package studylog keeps the study sessions participants report and sums
// them over the last week.
package studylog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/roster"
	"github.com/spigell/skillmatch/internal/utils"
)

// TimeLayout is how timestamps are written to the log.
const TimeLayout = "2006-01-02 15:04:05"

// Week is the window summaries and defaulters look at.
const Week = 7 * 24 * time.Hour

var header = []string{"Name", "Email", "Minutes", "Timestamp"}

// ErrInvalidSession is returned when a session cannot be recorded.
var ErrInvalidSession = errors.New("invalid study session")

// Session is one reported stretch of study.
type Session struct {
	Name    string    `json:"name" yaml:"name"`
	Email   string    `json:"email,omitempty" yaml:"email,omitempty"`
	Minutes float64   `json:"minutes" yaml:"minutes"`
	At      time.Time `json:"at" yaml:"at"`
}

// ParticipantID is the roster id the session belongs to.
func (s Session) ParticipantID() string {
	return roster.NormalizeID(s.Name, s.Email)
}

// Belongs reports whether the session was logged by the participant with the
// given roster id and name. Sessions without an email are matched by name.
func (s Session) Belongs(id, name string) bool {
	key := s.ParticipantID()
	if key == "" {
		return false
	}
	return key == strings.ToLower(strings.TrimSpace(id)) || key == roster.NormalizeID(name, "")
}

type row struct {
	Name      string  `mapstructure:"name"`
	Email     string  `mapstructure:"email"`
	Minutes   float64 `mapstructure:"minutes"`
	Timestamp string  `mapstructure:"timestamp"`
}

// Load reads the log at path. A missing file is an empty log.
func Load(path string, logger *zap.Logger) ([]Session, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	sessions, err := Read(file, logger)
	if err != nil {
		return nil, fmt.Errorf("read study log %s: %w", path, err)
	}
	return sessions, nil
}

// Read parses a csv log with a Name, Minutes and Timestamp header. Email is
// optional. Rows that cannot be parsed are logged and skipped.
func Read(r io.Reader, logger *zap.Logger) ([]Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	keys := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		keys[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	sessions := make([]Session, 0, len(rows)-1)
	for idx, cells := range rows[1:] {
		item := make(map[string]any, len(keys))
		for i, key := range keys {
			if key != "" && i < len(cells) {
				item[key] = strings.TrimSpace(cells[i])
			}
		}

		s, err := decode(item)
		if err != nil {
			logger.Warn("skipping study log row", zap.Int("row", idx+1), zap.Error(err))
			continue
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

func decode(item map[string]any) (Session, error) {
	var rec row
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rec,
	})
	if err != nil {
		return Session{}, err
	}
	if err := decoder.Decode(item); err != nil {
		return Session{}, err
	}

	at, err := parseTime(rec.Timestamp)
	if err != nil {
		return Session{}, err
	}

	s := Session{Name: rec.Name, Email: rec.Email, Minutes: rec.Minutes, At: at}
	return s, s.validate()
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(TimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (s Session) validate() error {
	if s.ParticipantID() == "" {
		return fmt.Errorf("%w: name or email is required", ErrInvalidSession)
	}
	if s.Minutes <= 0 {
		return fmt.Errorf("%w: minutes must be positive, got %v", ErrInvalidSession, s.Minutes)
	}
	if s.At.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidSession)
	}
	return nil
}

// Append adds s to the log at path, writing the header to a new or empty file.
func Append(path string, s Session) error {
	if err := s.validate(); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(file)
	if stat.Size() == 0 {
		if err := w.Write(header); err != nil {
			return err
		}
	}

	if err := w.Write([]string{
		strings.TrimSpace(s.Name),
		strings.TrimSpace(s.Email),
		strconv.FormatFloat(s.Minutes, 'f', -1, 64),
		s.At.Format(TimeLayout),
	}); err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

// Recent returns the sessions logged within the week before now.
func Recent(sessions []Session, now time.Time) []Session {
	since := now.Add(-Week)

	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.At.Before(since) && !s.At.After(now) {
			out = append(out, s)
		}
	}
	return out
}

// DayTotal is the study time of one weekday.
type DayTotal struct {
	Day     string  `json:"day" yaml:"day"`
	Minutes float64 `json:"minutes" yaml:"minutes"`
}

// WeeklySummary sums the last week of a participant's sessions per weekday,
// Sunday first. Days without study are left out.
func WeeklySummary(sessions []Session, id, name string, now time.Time) []DayTotal {
	var totals [7]float64
	var seen [7]bool

	for _, s := range Recent(sessions, now) {
		if !s.Belongs(id, name) {
			continue
		}
		day := s.At.In(now.Location()).Weekday()
		totals[day] += s.Minutes
		seen[day] = true
	}

	out := make([]DayTotal, 0, len(totals))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if seen[day] {
			out = append(out, DayTotal{Day: day.String(), Minutes: utils.Round(totals[day], 2)})
		}
	}
	return out
}

// Total sums the last week of a participant's sessions.
func Total(sessions []Session, id, name string, now time.Time) float64 {
	var sum float64
	for _, s := range Recent(sessions, now) {
		if s.Belongs(id, name) {
			sum += s.Minutes
		}
	}
	return utils.Round(sum, 2)
}
