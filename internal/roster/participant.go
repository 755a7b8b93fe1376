package roster

import (
	"fmt"
	"strings"
)

// Role is the side a participant takes in a matching pass.
type Role int

const (
	RoleUnknown Role = iota
	RoleLearner
	RoleTeacher
)

func (r Role) String() string {
	switch r {
	case RoleLearner:
		return "Learner"
	case RoleTeacher:
		return "Teacher"
	default:
		return "Unknown"
	}
}

// ParseRole accepts the spellings used by the registration form.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "learner", "learn", "student":
		return RoleLearner, nil
	case "teacher", "teach", "mentor":
		return RoleTeacher, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role %q", s)
	}
}

// Level is the self-declared skill level. The zero value means not provided.
type Level int

const (
	LevelUnset Level = iota
	LevelBeginner
	LevelIntermediate
	LevelAdvanced
)

func (l Level) String() string {
	switch l {
	case LevelBeginner:
		return "Beginner"
	case LevelIntermediate:
		return "Intermediate"
	case LevelAdvanced:
		return "Advanced"
	default:
		return ""
	}
}

// ParseLevel is lenient: unknown values map to LevelUnset.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beginner":
		return LevelBeginner
	case "intermediate":
		return LevelIntermediate
	case "advanced", "expert":
		return LevelAdvanced
	default:
		return LevelUnset
	}
}

// Participant is one registered person.
type Participant struct {
	ID    string
	Name  string
	Email string
	Role  Role
	// Wants is what the person wants to learn.
	Wants string
	// Offers is what the person can teach.
	Offers  string
	Level   Level
	Matched bool
}

// SkillPhrase returns the phrase relevant to the participant's role.
func (p Participant) SkillPhrase() string {
	switch p.Role {
	case RoleLearner:
		return strings.TrimSpace(p.Wants)
	case RoleTeacher:
		return strings.TrimSpace(p.Offers)
	default:
		return ""
	}
}

// NormalizeID builds a participant id from the email, falling back to the name.
func NormalizeID(name, email string) string {
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		return email
	}

	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
