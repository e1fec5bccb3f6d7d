// Package quiz drives a single quiz attempt: fetching the assessment,
// collecting answers, submitting and shaping the scored result.
//
// The engine is a small state machine:
//
//	Loading -> Ready -> Submitting -> Completed
//	   |        ^  |        |
//	   v        |  +--------+ (400 / 401, answers kept)
//	 Failed <---+-----------+ (5xx / timeout, answers kept)
package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/elearn/internal/assessment"
	"github.com/victornm/elearn/internal/domain"
	"github.com/victornm/elearn/internal/errors"
	"github.com/victornm/elearn/internal/gateway"
	"github.com/victornm/elearn/internal/session"
)

type State int

const (
	StateLoading State = iota
	StateReady
	StateSubmitting
	StateCompleted
	StateFailed
)

var state2text = map[State]string{
	StateLoading:    "Loading",
	StateReady:      "Ready",
	StateSubmitting: "Submitting",
	StateCompleted:  "Completed",
	StateFailed:     "Failed",
}

func (s State) String() string {
	if t, ok := state2text[s]; ok {
		return t
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// ErrEmptySubmission is returned by Submit when no question has a recorded
// answer. The attempt stays in Ready.
var ErrEmptySubmission = errors.New(errors.CodeInvalidArgument,
	errors.WithMessagef("answer at least one question before submitting"))

const defaultSubmitTimeout = 30 * time.Second

type Config struct {
	Gateway     *gateway.Gateway
	Assessments *assessment.Service
	Sessions    *session.Store
	// SubmitTimeout bounds the submit round-trip. Defaults to 30s.
	SubmitTimeout time.Duration
}

type Engine struct {
	gw            *gateway.Gateway
	as            *assessment.Service
	sessions      *session.Store
	submitTimeout time.Duration

	mu         sync.Mutex
	state      State
	assessment *domain.Assessment
	current    int
	answers    map[int]string
	result     *domain.Result
}

// NewEngine creates an engine in Loading; call Load to begin an attempt.
func NewEngine(c Config) *Engine {
	t := c.SubmitTimeout
	if t <= 0 {
		t = defaultSubmitTimeout
	}

	return &Engine{
		gw:            c.Gateway,
		as:            c.Assessments,
		sessions:      c.Sessions,
		submitTimeout: t,
		state:         StateLoading,
	}
}

// Load fetches the assessment and moves the engine to Ready with an empty
// answer set, or to Failed on a fetch error.
func (e *Engine) Load(ctx context.Context, assessmentID string) error {
	a, err := e.as.GetAssessment(ctx, assessmentID)
	if err != nil {
		e.mu.Lock()
		e.state = StateFailed
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.assessment = a
	e.answers = make(map[int]string)
	e.current = 0
	e.state = StateReady
	e.mu.Unlock()

	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Assessment() *domain.Assessment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assessment
}

// CurrentIndex returns the index of the question in focus.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Next advances the question focus, clamped to the last question.
func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.assessment != nil && e.current < len(e.assessment.Questions)-1 {
		e.current++
	}
}

// Previous moves the question focus back, clamped to the first question.
func (e *Engine) Previous() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current > 0 {
		e.current--
	}
}

// SelectAnswer records (or overwrites) the selected option text for the
// given question. It never advances the focus; navigation is a separate
// action.
func (e *Engine) SelectAnswer(questionIndex int, option string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot answer in state %s", e.state))
	}
	if questionIndex < 0 || questionIndex >= len(e.assessment.Questions) {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question index %d out of range", questionIndex))
	}

	e.answers[questionIndex] = option
	return nil
}

// Answer returns the recorded answer for a question, when one exists.
func (e *Engine) Answer(questionIndex int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.answers[questionIndex]
	return a, ok
}

func (e *Engine) Answered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.answers)
}

// Retry moves a Failed attempt back to Ready. Answers are preserved, so a
// retry never re-fetches the quiz.
func (e *Engine) Retry() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateFailed || e.assessment == nil {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot retry in state %s", e.state))
	}

	e.state = StateReady
	return nil
}

// Result returns a copy of the completed attempt's result.
func (e *Engine) Result() (domain.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.result == nil {
		return domain.Result{}, false
	}

	return cloneResult(*e.result), true
}

type submitResponse struct {
	AttemptID      string  `json:"attemptId"`
	Score          float64 `json:"score"`
	CorrectAnswers int     `json:"correctAnswers"`
	Percentage     float64 `json:"percentage"`
	TimeTaken      string  `json:"timeTaken"`

	// Answers carries per-question detail when the backend provides it.
	Answers []struct {
		Question      string `json:"question"`
		CorrectAnswer string `json:"correctAnswer"`
		UserAnswer    string `json:"userAnswer"`
		IsCorrect     bool   `json:"isCorrect"`
	} `json:"answers"`
}

// Submit sends the recorded answers. While a submit is in flight, further
// calls are a no-op returning (nil, nil), so a double-click never produces
// a second request. On 400 and 401 the attempt drops back to Ready with
// answers intact; 5xx and unexpected statuses move it to Failed, also with
// answers intact, so Retry can resubmit without a re-fetch.
func (e *Engine) Submit(ctx context.Context) (*domain.Result, error) {
	e.mu.Lock()
	switch e.state {
	case StateSubmitting:
		e.mu.Unlock()
		return nil, nil
	case StateReady:
	default:
		st := e.state
		e.mu.Unlock()
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot submit in state %s", st))
	}

	if len(e.answers) == 0 {
		e.mu.Unlock()
		return nil, ErrEmptySubmission
	}

	a := e.assessment
	payload := map[string]any{
		"userId":          e.userID(),
		"assessmentId":    a.ID,
		"selectedAnswers": e.wireAnswers(),
	}
	e.state = StateSubmitting
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	defer cancel()

	var resp submitResponse
	err := e.gw.JSON(ctx, "POST", "/Assessment/Submit", payload, &resp,
		gateway.WithHeader("X-Request-ID", "quiz-"+uuid.NewString()))

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		switch {
		case errors.Is(err, errors.CodeInvalidArgument):
			// Recoverable: the learner corrects and resubmits.
			e.state = StateReady
			return nil, err
		case errors.Is(err, errors.CodeUnauthenticated):
			e.state = StateReady
			return nil, err
		default:
			e.state = StateFailed
			return nil, err
		}
	}

	r := e.buildResult(resp)
	e.result = &r
	e.state = StateCompleted

	out := cloneResult(r)
	return &out, nil
}

// wireAnswers translates the answer mapping into the backend's format:
// each recorded answer keyed by a 1-based question id string, unanswered
// questions omitted entirely.
func (e *Engine) wireAnswers() map[string]string {
	out := make(map[string]string, len(e.answers))
	for i, a := range e.answers {
		out[fmt.Sprintf("%d", i+1)] = a
	}

	return out
}

func (e *Engine) userID() string {
	if ss, ok := e.sessions.Current(); ok && ss.SubjectID != "" {
		return ss.SubjectID
	}

	return uuid.Nil.String()
}

func (e *Engine) buildResult(resp submitResponse) domain.Result {
	a := e.assessment
	total := len(a.Questions)
	correct := resp.CorrectAnswers

	r := domain.Result{
		AttemptID:      resp.AttemptID,
		AssessmentID:   a.ID,
		Score:          decimal.NewFromFloat(resp.Score),
		TotalQuestions: total,
		CorrectAnswers: correct,
		WrongAnswers:   total - correct,
		Percentage:     decimal.NewFromFloat(resp.Percentage),
		TimeTaken:      resp.TimeTaken,
		Date:           time.Now(),
	}
	if r.AttemptID == "" {
		r.AttemptID = "attempt-" + uuid.NewString()
	}
	if r.Percentage.IsZero() && a.MaxScore > 0 {
		r.Percentage = r.Score.Div(decimal.NewFromInt(int64(a.MaxScore))).Mul(decimal.NewFromInt(100))
	}

	if len(resp.Answers) > 0 {
		for _, ra := range resp.Answers {
			r.Answers = append(r.Answers, domain.ResultAnswer(ra))
		}
		return r
	}

	// Aggregate-only response: synthesize a breakdown by marking the first
	// `correct` questions as correct. This is a display approximation, not
	// a scoring computation, and it is tagged so no caller mistakes it for
	// a server-confirmed breakdown.
	r.BreakdownApproximate = true
	for i, q := range a.Questions {
		ua, ok := e.answers[i]
		if !ok {
			ua = "Not answered"
		}

		ca := q.CorrectAnswer
		if ca == "" {
			ca = "N/A"
		}

		r.Answers = append(r.Answers, domain.ResultAnswer{
			Question:      q.Text,
			CorrectAnswer: ca,
			UserAnswer:    ua,
			IsCorrect:     i < correct,
		})
	}

	return r
}

func cloneResult(r domain.Result) domain.Result {
	answers := make([]domain.ResultAnswer, len(r.Answers))
	copy(answers, r.Answers)
	r.Answers = answers
	return r
}
