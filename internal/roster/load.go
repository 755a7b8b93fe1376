package roster

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for roster files that are neither csv nor json.
var ErrUnsupportedFormat = errors.New("unsupported roster format")

// record mirrors one row of the registration sheet. Everything is decoded as a
// string so that a single odd cell never fails the whole file.
type record struct {
	Name    string `mapstructure:"name"`
	Email   string `mapstructure:"email"`
	Role    string `mapstructure:"role"`
	Wants   string `mapstructure:"wantstolearn"`
	Offers  string `mapstructure:"canteach"`
	Level   string `mapstructure:"skilllevel"`
	Matched string `mapstructure:"matched"`
}

// Load reads a roster from a csv or json file, chosen by extension.
func Load(path string, logger *zap.Logger) (*Roster, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(file, logger)
	case ".json":
		return ReadJSON(file, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadCSV parses a registration sheet with a header row. Header names are
// matched ignoring case, spaces, underscores and dashes.
func ReadCSV(r io.Reader, logger *zap.Logger) (*Roster, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv roster: %w", err)
	}

	if len(rows) == 0 {
		return &Roster{}, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeKey(h)
	}

	items := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		item := make(map[string]any, len(header))
		for i, key := range header {
			if key == "" || i >= len(row) {
				continue
			}
			item[key] = row[i]
		}
		items = append(items, item)
	}

	return build(uniqueKeys(header), items, logger), nil
}

// ReadJSON parses an array of objects.
func ReadJSON(r io.Reader, logger *zap.Logger) (*Roster, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json roster: %w", err)
	}

	var fields []string
	items := make([]map[string]any, 0, len(raw))
	for _, obj := range raw {
		item := make(map[string]any, len(obj))
		for k, v := range obj {
			key := normalizeKey(k)
			if key == "" {
				continue
			}
			item[key] = v
			fields = append(fields, key)
		}
		items = append(items, item)
	}

	fields = uniqueKeys(fields)
	slices.Sort(fields)

	return build(fields, items, logger), nil
}

func build(fields []string, items []map[string]any, logger *zap.Logger) *Roster {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Roster{Fields: fields}
	seen := make(map[string]int, len(items))

	for idx, item := range items {
		var rec record
		if err := decodeRecord(item, &rec); err != nil {
			logger.Warn("skipping roster row", zap.Int("row", idx+1), zap.Error(err))
			continue
		}

		p := rec.participant()
		if p.ID == "" {
			logger.Warn("skipping roster row without name or email", zap.Int("row", idx+1))
			continue
		}

		if first, ok := seen[p.ID]; ok {
			logger.Warn("dropping duplicate participant",
				zap.String("id", p.ID),
				zap.Int("row", idx+1),
				zap.Int("first_row", first),
			)
			continue
		}
		seen[p.ID] = idx + 1

		if p.Role == RoleUnknown && r.HasField(FieldRole) {
			logger.Debug("participant has unknown role", zap.String("id", p.ID), zap.String("role", rec.Role))
		}

		r.Participants = append(r.Participants, p)
	}

	logger.Debug("roster loaded",
		zap.Int("rows", len(items)),
		zap.Int("participants", len(r.Participants)),
		zap.Strings("fields", r.Fields),
	)

	return r
}

func decodeRecord(item map[string]any, rec *record) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           rec,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(item)
}

func (rec record) participant() Participant {
	role, _ := ParseRole(rec.Role)

	return Participant{
		ID:      NormalizeID(rec.Name, rec.Email),
		Name:    strings.TrimSpace(rec.Name),
		Email:   strings.TrimSpace(rec.Email),
		Role:    role,
		Wants:   strings.TrimSpace(rec.Wants),
		Offers:  strings.TrimSpace(rec.Offers),
		Level:   ParseLevel(rec.Level),
		Matched: parseFlag(rec.Matched),
	}
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.TrimPrefix(k, "\ufeff")
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
}

func uniqueKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "paired", "matched":
		return true
	default:
		return false
	}
}
