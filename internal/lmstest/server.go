// Package lmstest runs an in-memory LMS backend over HTTP for tests and
// demos. It mirrors the real backend's surface, including its rough edges:
// mixed-case payload fields, the {success, data, message} envelope, 409 on
// duplicate enrollment and aggregate-only submit responses.
package lmstest

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	// NumericRoles makes the token's role claim a number (0/1) instead of
	// text, as some backend builds do.
	NumericRoles bool
	// MSRoleClaim parks the role under the ASP.NET schema claim key.
	MSRoleClaim bool
	// PerQuestionDetail includes the per-question breakdown in submit
	// responses. The default mirrors the real backend: aggregates only.
	PerQuestionDetail bool
}

type Server struct {
	// URL is the API base including the /api prefix.
	URL string

	c      Config
	srv    *httptest.Server
	secret []byte

	mu          sync.Mutex
	users       map[string]*user
	courses     []*storedCourse
	enrollments map[string]map[string]bool
	assessments map[string]*storedAssessment
	results     []storedResult
	submissions []Submission
}

type user struct {
	ID       string
	Name     string
	Email    string
	Password string
	Role     string
	RoleCode int
}

type storedCourse struct {
	ID             string
	Title          string
	Description    string
	InstructorID   string
	InstructorName string
	MediaURL       string
	// PascalCase controls which casing this course's payload uses, so a
	// single listing exercises both variants.
	PascalCase bool
}

type storedQuestion struct {
	Text          string
	Options       []string
	CorrectAnswer int
	Points        int
}

type storedAssessment struct {
	ID        string
	CourseID  string
	Title     string
	MaxScore  int
	Questions []storedQuestion
}

type storedResult struct {
	ResultID     string
	UserID       string
	AssessmentID string
	Score        int
	AttemptDate  time.Time
}

// Submission is one recorded POST /Assessment/Submit payload.
type Submission struct {
	UserID          string
	AssessmentID    string
	SelectedAnswers map[string]string
}

type Option func(*Config)

func WithNumericRoles() Option {
	return func(c *Config) { c.NumericRoles = true }
}

func WithMSRoleClaim() Option {
	return func(c *Config) { c.MSRoleClaim = true }
}

func WithPerQuestionDetail() Option {
	return func(c *Config) { c.PerQuestionDetail = true }
}

// Run starts a fake LMS and shuts it down with the test.
func Run(t *testing.T, opts ...Option) *Server {
	t.Helper()

	var c Config
	for _, opt := range opts {
		opt(&c)
	}

	s := &Server{
		c:           c,
		secret:      []byte("lmstest-" + uuid.NewString()),
		users:       make(map[string]*user),
		enrollments: make(map[string]map[string]bool),
		assessments: make(map[string]*storedAssessment),
	}

	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.register(e)

	s.srv = httptest.NewServer(e)
	s.URL = s.srv.URL + "/api"
	t.Cleanup(s.srv.Close)

	return s
}

// SeedUser registers an account directly and returns its id.
func (s *Server) SeedUser(name, email, password, role string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := 0
	if role == "Instructor" {
		code = 1
	}

	u := &user{
		ID:       uuid.NewString(),
		Name:     name,
		Email:    email,
		Password: password,
		Role:     role,
		RoleCode: code,
	}
	s.users[email] = u

	return u.ID
}

// SeedCourse adds a course to the catalog and returns its id. Every other
// seeded course serializes PascalCased.
func (s *Server) SeedCourse(title, description, instructorName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &storedCourse{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    description,
		InstructorName: instructorName,
		PascalCase:     len(s.courses)%2 == 1,
	}
	s.courses = append(s.courses, c)

	return c.ID
}

// SeedAssessment adds an assessment for a course and returns its id.
// Questions are (text, four options, correct option index, points).
func (s *Server) SeedAssessment(courseID, title string, maxScore int, questions []SeedQuestion) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &storedAssessment{
		ID:       uuid.NewString(),
		CourseID: courseID,
		Title:    title,
		MaxScore: maxScore,
	}
	for _, q := range questions {
		a.Questions = append(a.Questions, storedQuestion(q))
	}
	s.assessments[a.ID] = a

	return a.ID
}

type SeedQuestion struct {
	Text          string
	Options       []string
	CorrectAnswer int
	Points        int
}

// SeedEnrollment marks a user as already enrolled.
func (s *Server) SeedEnrollment(userID, courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enrollments[userID] == nil {
		s.enrollments[userID] = make(map[string]bool)
	}
	s.enrollments[userID][courseID] = true
}

// Submissions returns every recorded submit payload, in order.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Enrolled reports the backend's view of an enrollment.
func (s *Server) Enrolled(userID, courseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollments[userID][courseID]
}

// Assessment returns a stored assessment by id, when present.
func (s *Server) Assessment(id string) (SeedAssessment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[id]
	if !ok {
		return SeedAssessment{}, false
	}

	out := SeedAssessment{
		ID:       a.ID,
		CourseID: a.CourseID,
		Title:    a.Title,
		MaxScore: a.MaxScore,
	}
	for _, q := range a.Questions {
		out.Questions = append(out.Questions, SeedQuestion(q))
	}

	return out, true
}

type SeedAssessment struct {
	ID        string
	CourseID  string
	Title     string
	MaxScore  int
	Questions []SeedQuestion
}

func (s *Server) issueToken(u *user) (string, error) {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"name":  u.Name,
		"email": u.Email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}

	var role any = u.Role
	if s.c.NumericRoles {
		role = u.RoleCode
	}

	if s.c.MSRoleClaim {
		claims["http://schemas.microsoft.com/ws/2008/06/identity/claims/role"] = role
	} else {
		claims["role"] = role
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(token string) (*user, bool) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, false
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	sub, _ := claims["sub"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == sub {
			return u, true
		}
	}

	return nil, false
}

func formatPercentage(score, maxScore int) float64 {
	if maxScore == 0 {
		return 0
	}

	p := float64(score) / float64(maxScore) * 100
	// Keep two decimals, as the backend does.
	return float64(int(p*100+0.5)) / 100
}
