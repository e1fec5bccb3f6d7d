// Package course lists courses and tracks per-session enrollment. All
// normalization of the backend's inconsistently cased payloads happens
// here, at the boundary; raw field names never leak downstream.
package course

import (
	"context"
	"fmt"
	"strconv"

	"github.com/victornm/elearn/internal/domain"
	"github.com/victornm/elearn/internal/errors"
	"github.com/victornm/elearn/internal/event"
	"github.com/victornm/elearn/internal/gateway"
	"github.com/victornm/elearn/internal/session"
)

type Config struct {
	Gateway  *gateway.Gateway
	Sessions *session.Store
	EventBus *event.Bus
}

type Service struct {
	gw       *gateway.Gateway
	sessions *session.Store
	eb       *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		gw:       c.Gateway,
		sessions: c.Sessions,
		eb:       c.EventBus,
	}
}

// envelope is the backend's {success, data, message} wrapper on listing
// endpoints.
type envelope struct {
	Success bool        `json:"success"`
	Data    []rawCourse `json:"data"`
	Message string      `json:"message"`
}

// rawCourse tolerates the backend's heterogeneous field naming. JSON
// decoding matches field names case-insensitively, which absorbs the
// Title/title and CourseId/courseId variants in one shape.
type rawCourse struct {
	ID             any    `json:"id"`
	CourseID       any    `json:"courseId"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	InstructorName string `json:"instructorName"`
	MediaURL       string `json:"mediaUrl"`
	IsEnrolled     bool   `json:"isEnrolled"`
}

func (r rawCourse) normalize() domain.Course {
	id := stringifyID(r.CourseID)
	if id == "" {
		id = stringifyID(r.ID)
	}

	return domain.Course{
		ID:             id,
		Title:          r.Title,
		Description:    r.Description,
		InstructorName: r.InstructorName,
		MediaURL:       r.MediaURL,
		Enrolled:       r.IsEnrolled,
	}
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

// ListCourses returns the catalog for the current session. Instructors get
// their own courses; students get the full catalog with enrollment state.
func (s *Service) ListCourses(ctx context.Context) ([]domain.Course, error) {
	path := "/course"
	if ss, ok := s.sessions.Current(); ok && ss.Role == domain.RoleInstructor {
		path = "/course/GetInstructorCourses"
	}

	var resp envelope
	if err := s.gw.JSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	if !resp.Success {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("list courses rejected: %s", resp.Message))
	}

	courses := make([]domain.Course, 0, len(resp.Data))
	for _, raw := range resp.Data {
		courses = append(courses, raw.normalize())
	}

	return courses, nil
}

func (s *Service) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	var raw rawCourse
	if err := s.gw.JSON(ctx, "GET", "/course/"+id, nil, &raw); err != nil {
		return nil, fmt.Errorf("get course %s: %w", id, err)
	}

	c := raw.normalize()
	if c.ID == "" {
		c.ID = id
	}

	return &c, nil
}

type CreateCourseRequest struct {
	Title       string
	Description string
	// Media is the attached course media, optional.
	Media         []byte
	MediaFilename string
}

// CreateCourse creates a course with attached media. Instructor-only; the
// check here is a UX convenience, the backend enforces it independently.
func (s *Service) CreateCourse(ctx context.Context, req CreateCourseRequest) (*domain.Course, error) {
	if ss, ok := s.sessions.Current(); !ok || ss.Role != domain.RoleInstructor {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("only instructors can create courses"))
	}

	form := gateway.NewForm().
		Set("title", req.Title).
		Set("description", req.Description)
	if len(req.Media) > 0 {
		form.File("mediaFile", req.MediaFilename, req.Media)
	}

	var raw rawCourse
	if err := s.gw.Multipart(ctx, "POST", "/course", form, &raw); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}

	c := raw.normalize()
	return &c, nil
}

type UpdateCourseRequest struct {
	ID          string
	Title       string
	Description string
}

func (s *Service) UpdateCourse(ctx context.Context, req UpdateCourseRequest) error {
	err := s.gw.JSON(ctx, "PUT", "/course/"+req.ID, map[string]string{
		"title":       req.Title,
		"description": req.Description,
	}, nil)
	if err != nil {
		return fmt.Errorf("update course %s: %w", req.ID, err)
	}

	return nil
}

func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	if err := s.gw.JSON(ctx, "DELETE", "/course/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete course %s: %w", id, err)
	}

	return nil
}

// Enroll enrolls the current session in a course. A 409 means the learner
// is already enrolled and counts as success: local state becomes enrolled
// either way.
func (s *Service) Enroll(ctx context.Context, courseID string) error {
	err := s.gw.JSON(ctx, "POST", "/enrollment/enroll/"+courseID, nil, nil)
	if err != nil && !errors.Is(err, errors.CodeAlreadyExists) {
		return fmt.Errorf("enroll in course %s: %w", courseID, err)
	}

	s.eb.Publish(ctx, domain.EventEnrollmentChanged{CourseID: courseID, Enrolled: true})
	return nil
}

func (s *Service) Unenroll(ctx context.Context, courseID string) error {
	// The unenroll route is case-sensitive on the backend.
	if err := s.gw.JSON(ctx, "DELETE", "/Enrollment/Unenroll/"+courseID, nil, nil); err != nil {
		return fmt.Errorf("unenroll from course %s: %w", courseID, err)
	}

	s.eb.Publish(ctx, domain.EventEnrollmentChanged{CourseID: courseID, Enrolled: false})
	return nil
}
