// Package snapshot keeps the outcome of the previous matching pass so an
// unchanged roster does not trigger a new one.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spigell/skillmatch/internal/matching"
)

// Snapshot is what a pass leaves behind in the state file.
type Snapshot struct {
	Digest    string           `json:"digest"`
	Threshold float64          `json:"threshold"`
	Strategy  string           `json:"strategy"`
	TieBreak  string           `json:"tie_break"`
	Model     string           `json:"model"`
	SavedAt   time.Time        `json:"saved_at"`
	Result    *matching.Result `json:"result"`
}

// New records res as the outcome for a roster with the given digest.
func New(digest string, res *matching.Result) *Snapshot {
	s := &Snapshot{Digest: digest, Result: res, SavedAt: time.Now().UTC()}
	if res != nil {
		s.Threshold = res.Threshold
		s.Strategy = res.Strategy
		s.TieBreak = res.TieBreak
		s.Model = res.Model
	}
	return s
}

// FromFile reads a snapshot. A missing or empty file yields nil without error.
func FromFile(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return nil, nil
	}

	var s Snapshot
	if err := json.NewDecoder(file).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &s, nil
}

// ToFile writes the snapshot next to path and renames it into place, so a
// crash never leaves a half-written state file.
func (s *Snapshot) ToFile(path string) error {
	file, err := os.CreateTemp(filepath.Dir(path), ".snapshot_*.json")
	if err != nil {
		return err
	}
	tmp := file.Name()
	defer os.Remove(tmp)

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// Reusable reports whether the stored result answers a pass over a roster
// with digest run with the given parameters. model must include the output
// dimension, see embedding.ModelID.
func (s *Snapshot) Reusable(digest string, threshold float64, strategy, tieBreak, model string) bool {
	if s == nil || s.Result == nil || digest == "" {
		return false
	}
	return s.Digest == digest &&
		s.Threshold == threshold &&
		s.Strategy == strategy &&
		s.TieBreak == tieBreak &&
		s.Model == model
}
