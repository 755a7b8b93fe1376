package roster

import (
	"fmt"
	"slices"
	"strings"
)

// Field names a roster column. Sources are normalised to these keys.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldRole    = "role"
	FieldWants   = "wantstolearn"
	FieldOffers  = "canteach"
	FieldLevel   = "skilllevel"
	FieldMatched = "matched"
)

// AllFields is the schema declared by New.
var AllFields = []string{FieldName, FieldEmail, FieldRole, FieldWants, FieldOffers, FieldLevel, FieldMatched}

// Roster is an ordered snapshot of participants together with the fields its
// source provided.
type Roster struct {
	Fields       []string
	Participants []Participant
}

// SchemaError reports fields the roster must carry for matching to run.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("roster schema: missing required fields: %s", strings.Join(e.Missing, ", "))
}

// New returns a roster declaring the full schema.
func New(participants ...Participant) *Roster {
	return &Roster{
		Fields:       slices.Clone(AllFields),
		Participants: participants,
	}
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Participants)
}

// HasField reports whether the source provided the named field.
func (r *Roster) HasField(name string) bool {
	if r == nil {
		return false
	}
	return slices.Contains(r.Fields, name)
}

// Validate checks that the roster carries role, an identity field and at least
// one skill phrase field. A roster without participants has nothing to match
// and is always valid, as is a nil one.
func (r *Roster) Validate() error {
	if r.Len() == 0 {
		return nil
	}

	var missing []string
	if !r.HasField(FieldName) && !r.HasField(FieldEmail) {
		missing = append(missing, FieldName+"|"+FieldEmail)
	}
	if !r.HasField(FieldRole) {
		missing = append(missing, FieldRole)
	}
	if !r.HasField(FieldWants) && !r.HasField(FieldOffers) {
		missing = append(missing, FieldWants+"|"+FieldOffers)
	}

	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}

	return nil
}

// FindByID returns the participant with the given id, ignoring case.
func (r *Roster) FindByID(id string) *Participant {
	if r == nil {
		return nil
	}

	id = strings.ToLower(strings.TrimSpace(id))
	for i := range r.Participants {
		if strings.ToLower(r.Participants[i].ID) == id {
			return &r.Participants[i]
		}
	}

	return nil
}

// ByRole returns participants having the given role, in roster order.
func (r *Roster) ByRole(role Role) []Participant {
	if r == nil {
		return nil
	}

	out := make([]Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// ApplyMatched returns a copy of the roster with Matched set for every id
// in ids. The receiver is left untouched.
func (r *Roster) ApplyMatched(ids []string) *Roster {
	if r == nil {
		return nil
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	out := &Roster{
		Fields:       slices.Clone(r.Fields),
		Participants: slices.Clone(r.Participants),
	}
	if !out.HasField(FieldMatched) {
		out.Fields = append(out.Fields, FieldMatched)
	}

	for i := range out.Participants {
		if _, ok := set[out.Participants[i].ID]; ok {
			out.Participants[i].Matched = true
		}
	}

	return out
}
