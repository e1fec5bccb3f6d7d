package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the closed set of roles a session can carry. The backend emits
// roles either as a numeric code (0 student, 1 instructor) or as free-text
// in arbitrary casing; NormalizeRole folds all of them onto this set.
type Role string

const (
	RoleStudent    Role = "Student"
	RoleInstructor Role = "Instructor"
)

// NormalizeRole maps a raw role claim onto the Role set. Claim arrays keep
// their first element. Returns false when the value maps to neither role.
func NormalizeRole(v any) (Role, bool) {
	switch r := v.(type) {
	case Role:
		return NormalizeRole(string(r))
	case string:
		switch strings.ToLower(strings.TrimSpace(r)) {
		case "student", "0":
			return RoleStudent, true
		case "instructor", "teacher", "1":
			return RoleInstructor, true
		}
	case float64:
		return roleFromCode(int(r))
	case int:
		return roleFromCode(r)
	case []any:
		if len(r) > 0 {
			return NormalizeRole(r[0])
		}
	}

	return "", false
}

func roleFromCode(c int) (Role, bool) {
	switch c {
	case 0:
		return RoleStudent, true
	case 1:
		return RoleInstructor, true
	}

	return "", false
}

// Session is the client's record of an authenticated identity and its
// bearer credential. It lives for the lifetime of the process and is
// replaced only by a re-login.
type Session struct {
	SubjectID   string
	DisplayName string
	Email       string
	Role        Role
	Token       string
}

type Course struct {
	ID             string
	Title          string
	Description    string
	InstructorName string
	MediaURL       string

	// Enrolled is a per-session fact, meaningful for student sessions only.
	Enrolled bool
}

// Assessment is a named, ordered set of multiple-choice questions with a
// maximum score. The sum of question points equals MaxScore; the invariant
// is enforced at upload time, not re-checked at attempt time.
type Assessment struct {
	ID          string
	CourseID    string
	Title       string
	Description string
	MaxScore    int
	Questions   []Question
}

type Question struct {
	Text    string
	Options []string
	// CorrectAnswer is the correct option's text. Empty when the server
	// withholds it from the attempt payload.
	CorrectAnswer string
	Points        int
}

// Result is the scored outcome of a submitted attempt.
type Result struct {
	AttemptID      string
	AssessmentID   string
	Score          decimal.Decimal
	TotalQuestions int
	CorrectAnswers int
	WrongAnswers   int
	Percentage     decimal.Decimal
	TimeTaken      string
	Date           time.Time
	Answers        []ResultAnswer

	// BreakdownApproximate marks a per-question breakdown synthesized from
	// aggregate counts rather than confirmed by the server.
	BreakdownApproximate bool
	// Placeholder marks demo data shown when no real result is available.
	// It must never be presented as a real score.
	Placeholder bool
}

type ResultAnswer struct {
	Question      string
	CorrectAnswer string
	UserAnswer    string
	IsCorrect     bool
}
