// Package assessment fetches quiz definitions and uploads question files.
package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

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

// rawAssessment matches the backend's assessment payload. Questions is an
// embedded JSON document, stored by the backend as an opaque string.
type rawAssessment struct {
	ID          any             `json:"id"`
	CourseID    any             `json:"courseId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	MaxScore    int             `json:"maxScore"`
	Questions   json.RawMessage `json:"questions"`
}

func (r rawAssessment) normalize() (*domain.Assessment, error) {
	a := &domain.Assessment{
		ID:          stringifyID(r.ID),
		CourseID:    stringifyID(r.CourseID),
		Title:       r.Title,
		Description: r.Description,
		MaxScore:    r.MaxScore,
	}

	if len(r.Questions) == 0 {
		return a, nil
	}

	doc := r.Questions
	// The question document arrives JSON-encoded inside a JSON string.
	var embedded string
	if err := json.Unmarshal(r.Questions, &embedded); err == nil {
		doc = []byte(embedded)
	}

	var qf QuestionFile
	if err := json.Unmarshal(doc, &qf); err != nil {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("malformed question document"),
			errors.WithCause(err))
	}

	for _, q := range qf.Questions {
		dq := domain.Question{
			Text:    q.QuestionText,
			Options: q.Options,
			Points:  q.Points,
		}
		if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options) {
			dq.CorrectAnswer = q.Options[q.CorrectAnswer]
		}
		a.Questions = append(a.Questions, dq)
	}

	return a, nil
}

func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	}

	return ""
}

func (s *Service) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	var raw rawAssessment
	if err := s.gw.JSON(ctx, "GET", "/Assessment/"+id, nil, &raw); err != nil {
		return nil, fmt.Errorf("get assessment %s: %w", id, err)
	}

	a, err := raw.normalize()
	if err != nil {
		return nil, fmt.Errorf("get assessment %s: %w", id, err)
	}
	if a.ID == "" {
		a.ID = id
	}

	return a, nil
}

func (s *Service) ListCourseAssessments(ctx context.Context, courseID string) ([]domain.Assessment, error) {
	var raws []rawAssessment
	if err := s.gw.JSON(ctx, "GET", "/Assessment/course/"+courseID, nil, &raws); err != nil {
		return nil, fmt.Errorf("list assessments for course %s: %w", courseID, err)
	}

	return s.normalizeAll(raws)
}

// ListStudentAssessments returns the assessments available to the current
// student session across all enrolled courses.
func (s *Service) ListStudentAssessments(ctx context.Context) ([]domain.Assessment, error) {
	var raws []rawAssessment
	if err := s.gw.JSON(ctx, "GET", "/Assessment/GetStudentAssessments", nil, &raws); err != nil {
		return nil, fmt.Errorf("list student assessments: %w", err)
	}

	return s.normalizeAll(raws)
}

func (s *Service) normalizeAll(raws []rawAssessment) ([]domain.Assessment, error) {
	out := make([]domain.Assessment, 0, len(raws))
	for _, raw := range raws {
		a, err := raw.normalize()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, nil
}

type UploadQuestionsRequest struct {
	CourseID string
	Title    string
	MaxScore int
	// File is the raw question document, either a bare question array or
	// wrapped in a {"Questions": [...]} object.
	File     []byte
	Filename string
}

// UploadQuestions validates the question file client-side and uploads it.
// Nothing leaves the process until the file passes validation, including
// the sum-of-points == maxScore invariant.
func (s *Service) UploadQuestions(ctx context.Context, req UploadQuestionsRequest) error {
	qf, err := ParseQuestionFile(req.File)
	if err != nil {
		return err
	}

	if err := qf.Validate(req.MaxScore); err != nil {
		return err
	}

	wrapped, err := json.Marshal(qf)
	if err != nil {
		return fmt.Errorf("upload questions: marshal: %w", err)
	}

	filename := req.Filename
	if filename == "" {
		filename = "questions.json"
	}

	form := gateway.NewForm().
		Set("courseId", req.CourseID).
		Set("title", req.Title).
		Set("maxScore", strconv.Itoa(req.MaxScore)).
		File("file", filename, wrapped)

	if err := s.gw.Multipart(ctx, "POST", "/Assessment/upload-questions", form, nil); err != nil {
		return fmt.Errorf("upload questions: %w", err)
	}

	return nil
}
