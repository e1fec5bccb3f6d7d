package course_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/elearn/internal/app"
	"github.com/victornm/elearn/internal/course"
	"github.com/victornm/elearn/internal/domain"
	"github.com/victornm/elearn/internal/errors"
	"github.com/victornm/elearn/internal/event"
	"github.com/victornm/elearn/internal/lmstest"
	"github.com/victornm/elearn/internal/session"
)

func TestListCourses(t *testing.T) {
	a, srv := makeApp(t)

	// Seeding alternates payload casing, so one listing covers both the
	// camelCase and PascalCase variants the backend serves.
	goID := srv.SeedCourse("Go Basics", "Start here", "Carol")
	sqlID := srv.SeedCourse("SQL Deep Dive", "Joins and friends", "Carol")
	srv.SeedCourse("HTTP APIs", "Verbs and status codes", "Dave")

	userID := loginStudent(t, a, srv)
	srv.SeedEnrollment(userID, sqlID)

	courses, err := a.Courses().ListCourses(context.Background())

	require.NoError(t, err)
	require.Len(t, courses, 3)

	byID := make(map[string]domain.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	assert.Equal(t, "Go Basics", byID[goID].Title)
	assert.Equal(t, "Carol", byID[goID].InstructorName)
	assert.False(t, byID[goID].Enrolled)

	assert.Equal(t, "SQL Deep Dive", byID[sqlID].Title)
	assert.True(t, byID[sqlID].Enrolled)
}

func TestListCoursesAsInstructor(t *testing.T) {
	a, srv := makeApp(t)

	mine := srv.SeedCourse("Go Basics", "Start here", "Carol")
	srv.SeedCourse("HTTP APIs", "Verbs and status codes", "Dave")

	srv.SeedUser("Carol", "carol@example.com", "secret", "Instructor")
	_, err := a.Sessions().Login(context.Background(), session.LoginRequest{
		Email:    "carol@example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	courses, err := a.Courses().ListCourses(context.Background())

	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, mine, courses[0].ID)
}

func TestGetCourse(t *testing.T) {
	a, srv := makeApp(t)
	id := srv.SeedCourse("Go Basics", "Start here", "Carol")
	loginStudent(t, a, srv)

	c, err := a.Courses().GetCourse(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "Go Basics", c.Title)

	t.Run("not found", func(t *testing.T) {
		_, err := a.Courses().GetCourse(context.Background(), "missing")

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})
}

func TestCreateCourse(t *testing.T) {
	a, srv := makeApp(t)
	loginInstructor(t, a, srv)

	c, err := a.Courses().CreateCourse(context.Background(), course.CreateCourseRequest{
		Title:         "Go Basics",
		Description:   "Start here",
		Media:         []byte("not really a video"),
		MediaFilename: "intro.mp4",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Go Basics", c.Title)
	assert.Equal(t, "/media/intro.mp4", c.MediaURL)

	t.Run("missing title", func(t *testing.T) {
		_, err := a.Courses().CreateCourse(context.Background(), course.CreateCourseRequest{})

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
		assert.Equal(t, "Title: The Title field is required.", errors.Convert(err).Message)
	})
}

func TestCreateCourseRequiresInstructor(t *testing.T) {
	a, srv := makeApp(t)
	loginStudent(t, a, srv)

	_, err := a.Courses().CreateCourse(context.Background(), course.CreateCourseRequest{
		Title: "Go Basics",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))
}

func TestUpdateCourse(t *testing.T) {
	a, srv := makeApp(t)
	id := srv.SeedCourse("Go Basics", "Start here", "Carol")
	loginInstructor(t, a, srv)

	err := a.Courses().UpdateCourse(context.Background(), course.UpdateCourseRequest{
		ID:          id,
		Title:       "Go Basics, 2nd Edition",
		Description: "Start here, again",
	})
	require.NoError(t, err)

	c, err := a.Courses().GetCourse(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Go Basics, 2nd Edition", c.Title)
	assert.Equal(t, "Start here, again", c.Description)
}

func TestDeleteCourse(t *testing.T) {
	a, srv := makeApp(t)
	id := srv.SeedCourse("Go Basics", "Start here", "Carol")
	loginInstructor(t, a, srv)

	require.NoError(t, a.Courses().DeleteCourse(context.Background(), id))

	_, err := a.Courses().GetCourse(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestEnroll(t *testing.T) {
	a, srv := makeApp(t)
	id := srv.SeedCourse("Go Basics", "Start here", "Carol")
	userID := loginStudent(t, a, srv)

	var (
		mu     sync.Mutex
		events []domain.EventEnrollmentChanged
	)
	a.EventBus().Subscribe(domain.EventNameEnrollmentChanged, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		events = append(events, e.(domain.EventEnrollmentChanged))
		mu.Unlock()
		return nil
	})

	require.NoError(t, a.Courses().Enroll(context.Background(), id))
	assert.True(t, srv.Enrolled(userID, id))

	// Enrolling twice is fine: the backend's 409 still means "enrolled".
	require.NoError(t, a.Courses().Enroll(context.Background(), id))

	a.EventBus().Stop()
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventEnrollmentChanged{CourseID: id, Enrolled: true}, events[0])
}

func TestUnenroll(t *testing.T) {
	a, srv := makeApp(t)
	id := srv.SeedCourse("Go Basics", "Start here", "Carol")
	userID := loginStudent(t, a, srv)
	srv.SeedEnrollment(userID, id)

	require.NoError(t, a.Courses().Unenroll(context.Background(), id))
	assert.False(t, srv.Enrolled(userID, id))

	t.Run("not enrolled", func(t *testing.T) {
		err := a.Courses().Unenroll(context.Background(), id)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})
}

func makeApp(t *testing.T, opts ...lmstest.Option) (*app.App, *lmstest.Server) {
	t.Helper()

	srv := lmstest.Run(t, opts...)

	var c app.Config
	c.API.BaseURL = srv.URL

	a, err := app.Init(c)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	return a, srv
}

func loginStudent(t *testing.T, a *app.App, srv *lmstest.Server) string {
	t.Helper()
	return loginAs(t, a, srv, "Student")
}

func loginInstructor(t *testing.T, a *app.App, srv *lmstest.Server) string {
	t.Helper()
	return loginAs(t, a, srv, "Instructor")
}

func loginAs(t *testing.T, a *app.App, srv *lmstest.Server, role string) string {
	t.Helper()

	email := role + "@example.com"
	id := srv.SeedUser(role+" User", email, "secret", role)

	_, err := a.Sessions().Login(context.Background(), session.LoginRequest{
		Email:    email,
		Password: "secret",
	})
	require.NoError(t, err)

	return id
}
