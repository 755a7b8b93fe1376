package roster

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const sheet = `Name,Email,Gender,SkillLevel,Role,CanTeach,WantsToLearn,Timestamp
Ada Lovelace,ADA@example.com ,F,Beginner,Learner,,SQL,2024-01-01 10:00:00
Grace Hopper,grace@example.com,F,Advanced,Teacher,SQL,,2024-01-01 10:05:00
Lin,,M,intermediate,teacher,Pottery,,2024-01-01 10:06:00
Ada Again,ada@example.com,F,Beginner,Learner,,Python,2024-01-02 10:00:00
,,,,Learner,,Go,
Sam,sam@example.com,M,,Wizard,Magic,Spells,
`

func TestReadCSV(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)

	r, err := ReadCSV(strings.NewReader(sheet), zap.New(core))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid schema, got %v", err)
	}

	if r.Len() != 4 {
		t.Fatalf("expected 4 participants, got %d", r.Len())
	}

	ada := r.Participants[0]
	if ada.ID != "ada@example.com" || ada.Role != RoleLearner || ada.Wants != "SQL" || ada.Level != LevelBeginner {
		t.Fatalf("unexpected first participant: %+v", ada)
	}

	lin := r.Participants[2]
	if lin.ID != "lin" || lin.Role != RoleTeacher || lin.SkillPhrase() != "Pottery" || lin.Level != LevelIntermediate {
		t.Fatalf("unexpected lin: %+v", lin)
	}

	sam := r.Participants[3]
	if sam.Role != RoleUnknown || sam.SkillPhrase() != "" {
		t.Fatalf("expected unknown role without phrase, got %+v", sam)
	}

	if got := len(observed.FilterMessage("dropping duplicate participant").All()); got != 1 {
		t.Fatalf("expected 1 duplicate warning, got %d", got)
	}
	if got := len(observed.FilterMessage("skipping roster row without name or email").All()); got != 1 {
		t.Fatalf("expected 1 missing identity warning, got %d", got)
	}
}

func TestReadCSVHeaderVariants(t *testing.T) {
	input := "name,role,wants_to_learn,can teach,MATCHED\nbo,learner,Go,,yes\n"

	r, err := ReadCSV(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid schema, got %v", err)
	}

	if !r.Participants[0].Matched {
		t.Fatalf("expected matched flag to be parsed")
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		missing []string
	}{
		{
			name:    "no role",
			input:   "Name,CanTeach,WantsToLearn\nbo,,Go\n",
			missing: []string{FieldRole},
		},
		{
			name:    "no phrases",
			input:   "Name,Role\nbo,Learner\n",
			missing: []string{FieldWants + "|" + FieldOffers},
		},
		{
			name:    "no identity",
			input:   "Role,CanTeach,WantsToLearn\nLearner,,Go\n",
			missing: []string{FieldName + "|" + FieldEmail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ReadCSV(strings.NewReader(tt.input), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			err = r.Validate()
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected schema error, got %v", err)
			}

			if strings.Join(schemaErr.Missing, ",") != strings.Join(tt.missing, ",") {
				t.Fatalf("expected missing %v, got %v", tt.missing, schemaErr.Missing)
			}
		})
	}
}

func TestValidateAcceptsPartialSources(t *testing.T) {
	tests := []struct {
		name  string
		read  func(io.Reader, *zap.Logger) (*Roster, error)
		input string
		want  int
	}{
		{name: "empty json", read: ReadJSON, input: "[]"},
		{name: "empty csv", read: ReadCSV, input: ""},
		{name: "header only csv", read: ReadCSV, input: "Name,Role\n"},
		{name: "learners only csv", read: ReadCSV, input: "Name,Role,WantsToLearn\nAda,Learner,SQL\n", want: 1},
		{name: "learners only json", read: ReadJSON, input: `[{"Name":"Ada","Role":"Learner","WantsToLearn":"SQL"}]`, want: 1},
		{name: "teachers only json", read: ReadJSON, input: `[{"Name":"Grace","Role":"Teacher","CanTeach":"SQL"}]`, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.read(strings.NewReader(tt.input), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if err := r.Validate(); err != nil {
				t.Fatalf("expected valid schema, got %v", err)
			}

			if r.Len() != tt.want {
				t.Fatalf("expected %d participants, got %d", tt.want, r.Len())
			}
		})
	}
}

func TestReadJSON(t *testing.T) {
	input := `[
		{"Name": "Ada", "Role": "Learner", "WantsToLearn": "SQL", "CanTeach": null, "Matched": true},
		{"Name": "Grace", "Role": "Teacher", "CanTeach": "SQL", "Age": 85}
	]`

	r, err := ReadJSON(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid schema, got %v", err)
	}

	if r.Len() != 2 {
		t.Fatalf("expected 2 participants, got %d", r.Len())
	}

	if !r.Participants[0].Matched {
		t.Fatalf("expected ada to be matched")
	}

	if r.Participants[1].Offers != "SQL" {
		t.Fatalf("unexpected teacher: %+v", r.Participants[1])
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "users.csv")
	if err := os.WriteFile(csvPath, []byte(sheet), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	r, err := Load(csvPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 4 {
		t.Fatalf("expected 4 participants, got %d", r.Len())
	}

	txtPath := filepath.Join(dir, "users.txt")
	if err := os.WriteFile(txtPath, []byte(sheet), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}

	if _, err := Load(txtPath, nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestApplyMatchedDoesNotMutate(t *testing.T) {
	r := New(
		Participant{ID: "ada", Role: RoleLearner, Wants: "SQL"},
		Participant{ID: "grace", Role: RoleTeacher, Offers: "SQL"},
	)

	updated := r.ApplyMatched([]string{"ada", "grace", "nobody"})

	if r.Participants[0].Matched || r.Participants[1].Matched {
		t.Fatalf("source roster must stay untouched")
	}

	if !updated.Participants[0].Matched || !updated.Participants[1].Matched {
		t.Fatalf("expected both participants matched: %+v", updated.Participants)
	}
}

func TestFindByIDAndByRole(t *testing.T) {
	r := New(
		Participant{ID: "ada@example.com", Role: RoleLearner},
		Participant{ID: "grace", Role: RoleTeacher},
		Participant{ID: "lin", Role: RoleTeacher},
	)

	if p := r.FindByID(" ADA@example.com "); p == nil || p.ID != "ada@example.com" {
		t.Fatalf("expected case-insensitive lookup, got %+v", p)
	}

	teachers := r.ByRole(RoleTeacher)
	if len(teachers) != 2 || teachers[0].ID != "grace" || teachers[1].ID != "lin" {
		t.Fatalf("unexpected teachers: %+v", teachers)
	}
}

func TestParseRole(t *testing.T) {
	for _, in := range []string{"Learner", " learner ", "STUDENT"} {
		if role, err := ParseRole(in); err != nil || role != RoleLearner {
			t.Fatalf("expected learner for %q, got %v %v", in, role, err)
		}
	}

	if _, err := ParseRole("both"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}
