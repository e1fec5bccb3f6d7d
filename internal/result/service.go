// Package result presents previously computed quiz results. It never
// computes a score: a result arrives from the quiz engine by value, or is
// fetched from the backend's result history, or falls back to a clearly
// tagged placeholder.
package result

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/elearn/internal/domain"
	"github.com/victornm/elearn/internal/errors"
	"github.com/victornm/elearn/internal/gateway"
)

type Config struct {
	Gateway *gateway.Gateway
}

type Service struct {
	gw *gateway.Gateway
}

func NewService(c Config) *Service {
	return &Service{gw: c.Gateway}
}

// Meta is the assessment context a result is reviewed against.
type Meta struct {
	ID          string
	Title       string
	Description string
	MaxScore    int
	CourseID    string
}

// View is the fully shaped review screen for one result.
type View struct {
	Title     string
	ScoreLine string
	Correct   int
	Wrong     int
	// Banner is non-empty when the view must be visibly qualified: demo
	// data or an approximate breakdown.
	Banner    string
	Breakdown []BreakdownLine

	Placeholder bool
	Approximate bool
}

type BreakdownLine struct {
	Mark          string
	Question      string
	UserAnswer    string
	CorrectAnswer string
	IsCorrect     bool
}

// Review shapes a result for display. A nil result falls back to the
// tagged placeholder instead of failing, so direct navigation without a
// prior attempt still renders.
func (s *Service) Review(r *domain.Result, meta Meta) View {
	if r == nil {
		demo := Placeholder()
		r = &demo
		if meta.Title == "" {
			meta = placeholderMeta()
		}
	}

	v := View{
		Title:       meta.Title,
		ScoreLine:   fmt.Sprintf("%s/%d (%s%%)", r.Score.String(), meta.MaxScore, r.Percentage.Round(0).String()),
		Correct:     r.CorrectAnswers,
		Wrong:       r.WrongAnswers,
		Placeholder: r.Placeholder,
		Approximate: r.BreakdownApproximate,
	}

	switch {
	case r.Placeholder:
		v.Banner = "demo result — not a real score"
	case r.BreakdownApproximate:
		v.Banner = "per-question breakdown is approximate"
	}

	for _, a := range r.Answers {
		mark := "✗"
		if a.IsCorrect {
			mark = "✓"
		}

		v.Breakdown = append(v.Breakdown, BreakdownLine{
			Mark:          mark,
			Question:      a.Question,
			UserAnswer:    a.UserAnswer,
			CorrectAnswer: a.CorrectAnswer,
			IsCorrect:     a.IsCorrect,
		})
	}

	return v
}

// rawResult matches the backend's result-history payload, which arrives
// PascalCased unlike the rest of the API.
type rawResult struct {
	ResultID     string  `json:"ResultId"`
	AssessmentID string  `json:"AssessmentId"`
	Score        float64 `json:"Score"`
	AttemptDate  string  `json:"AttemptDate"`
}

// ListUserResults fetches the session's result history. When the backend
// has nothing to show (empty list or a 404), it returns tagged placeholder
// entries rather than an empty screen.
func (s *Service) ListUserResults(ctx context.Context) ([]domain.Result, error) {
	var raws []rawResult
	err := s.gw.JSON(ctx, "GET", "/Result/user", nil, &raws)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return placeholderHistory(), nil
		}
		return nil, fmt.Errorf("list results: %w", err)
	}

	if len(raws) == 0 {
		return placeholderHistory(), nil
	}

	out := make([]domain.Result, 0, len(raws))
	for _, raw := range raws {
		r := domain.Result{
			AttemptID:    raw.ResultID,
			AssessmentID: raw.AssessmentID,
			Score:        decimal.NewFromFloat(raw.Score),
		}
		if t, err := time.Parse(time.RFC3339, raw.AttemptDate); err == nil {
			r.Date = t
		}
		out = append(out, r)
	}

	return out, nil
}

// Placeholder is the demo result rendered when nothing real is available.
// It is tagged and must never be presented as a real score.
func Placeholder() domain.Result {
	return domain.Result{
		Score:          decimal.NewFromInt(8),
		TotalQuestions: 10,
		CorrectAnswers: 8,
		WrongAnswers:   2,
		Percentage:     decimal.NewFromInt(80),
		TimeTaken:      "15:30",
		Date:           time.Now(),
		Answers: []domain.ResultAnswer{
			{Question: "What is 2+2?", CorrectAnswer: "4", UserAnswer: "4", IsCorrect: true},
			{Question: "Capital of France?", CorrectAnswer: "Paris", UserAnswer: "Paris", IsCorrect: true},
			{Question: "Largest planet?", CorrectAnswer: "Jupiter", UserAnswer: "Mars", IsCorrect: false},
		},
		Placeholder: true,
	}
}

func placeholderMeta() Meta {
	return Meta{
		Title:       "Sample Quiz",
		Description: "This is a sample quiz for demonstration",
		MaxScore:    10,
	}
}

func placeholderHistory() []domain.Result {
	now := time.Now()

	return []domain.Result{
		{
			AttemptID:   "demo-1",
			Score:       decimal.NewFromInt(8),
			Percentage:  decimal.NewFromInt(80),
			TimeTaken:   "15:30",
			Date:        now,
			Placeholder: true,
		},
		{
			AttemptID:   "demo-2",
			Score:       decimal.NewFromInt(6),
			Percentage:  decimal.NewFromInt(60),
			TimeTaken:   "12:15",
			Date:        now.Add(-24 * time.Hour),
			Placeholder: true,
		},
	}
}
