package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/elearn/internal/app"
	"github.com/victornm/elearn/internal/assessment"
	"github.com/victornm/elearn/internal/course"
	"github.com/victornm/elearn/internal/domain"
	"github.com/victornm/elearn/internal/event"
	"github.com/victornm/elearn/internal/nav"
	"github.com/victornm/elearn/internal/result"
	"github.com/victornm/elearn/internal/session"
)

type cli struct {
	app *app.App
	in  *bufio.Scanner
	out io.Writer

	eof     bool
	expired atomic.Bool
}

func newCLI(a *app.App, in io.Reader, out io.Writer) *cli {
	c := &cli{
		app: a,
		in:  bufio.NewScanner(in),
		out: out,
	}

	a.EventBus().Subscribe(domain.EventNameSessionExpired, func(ctx context.Context, e event.Event) error {
		c.expired.Store(true)
		return nil
	})

	return c
}

// Run drives the route loop: login, then the role's home view, until the
// user quits or input ends.
func (c *cli) Run(ctx context.Context) error {
	for {
		if c.expired.Swap(false) {
			c.printf("Session expired, please log in again.\n")
		}

		route := c.route()
		var (
			done bool
			err  error
		)

		switch route {
		case nav.RouteLogin:
			done, err = c.loginView(ctx)
		case nav.RouteStudentHome:
			done, err = c.studentView(ctx)
		case nav.RouteInstructorHome:
			done, err = c.instructorView(ctx)
		}

		if err != nil {
			c.printf("Error: %v\n", err)
		}
		if done || c.eof {
			return nil
		}
	}
}

func (c *cli) route() nav.Route {
	ss, ok := c.app.Sessions().Current()
	if !ok {
		return nav.RouteLogin
	}

	return nav.Resolve(&ss, ss.Role, nav.Home(ss.Role))
}

func (c *cli) loginView(ctx context.Context) (bool, error) {
	c.printf("\n[1] Log in  [2] Register  [q] Quit\n")

	switch c.prompt("> ") {
	case "1":
		email := c.prompt("Email: ")
		password := c.prompt("Password: ")

		ss, err := c.app.Sessions().Login(ctx, session.LoginRequest{Email: email, Password: password})
		if err != nil {
			return false, err
		}
		c.printf("Welcome, %s (%s)\n", ss.DisplayName, ss.Role)

	case "2":
		req := session.RegisterRequest{
			Name:     c.prompt("Name: "),
			Email:    c.prompt("Email: "),
			Password: c.prompt("Password: "),
			Role:     domain.RoleStudent,
		}
		if strings.EqualFold(c.prompt("Role (student/instructor): "), "instructor") {
			req.Role = domain.RoleInstructor
		}

		if err := c.app.Sessions().Register(ctx, req); err != nil {
			return false, err
		}
		c.printf("Registered. Please log in.\n")

	case "q", "":
		return true, nil
	}

	return false, nil
}

func (c *cli) studentView(ctx context.Context) (bool, error) {
	// The dashboard needs both the catalog and the result history; fetch
	// them together.
	var (
		courses []domain.Course
		results []domain.Result
	)

	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		courses, err = c.app.Courses().ListCourses(ctx)
		return err
	})
	eg.Go(func() error {
		var err error
		results, err = c.app.Results().ListUserResults(ctx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return false, err
	}

	c.printf("\n-- Courses --\n")
	for i, course := range courses {
		state := " "
		if course.Enrolled {
			state = "*"
		}
		c.printf("%2d %s %s — %s\n", i+1, state, course.Title, course.InstructorName)
	}

	c.printf("-- Past results: %d --\n", len(results))
	c.printf("[e <n>] Enroll  [u <n>] Unenroll  [t] Take quiz  [r] Results  [o] Log out  [q] Quit\n")

	cmd, arg, _ := strings.Cut(c.prompt("> "), " ")
	switch cmd {
	case "e", "u":
		i, err := strconv.Atoi(arg)
		if err != nil || i < 1 || i > len(courses) {
			c.printf("Unknown course number %q\n", arg)
			return false, nil
		}

		if cmd == "e" {
			return false, c.app.Courses().Enroll(ctx, courses[i-1].ID)
		}
		return false, c.app.Courses().Unenroll(ctx, courses[i-1].ID)

	case "t":
		return false, c.takeQuiz(ctx)

	case "r":
		c.showResults(results)

	case "o":
		c.app.Sessions().Logout()

	case "q":
		return true, nil
	}

	return false, nil
}

func (c *cli) takeQuiz(ctx context.Context) error {
	available, err := c.app.Assessments().ListStudentAssessments(ctx)
	if err != nil {
		return err
	}
	if len(available) == 0 {
		c.printf("No assessments available. Enroll in a course first.\n")
		return nil
	}

	for i, a := range available {
		c.printf("%2d  %s (max %d)\n", i+1, a.Title, a.MaxScore)
	}
	i, err := strconv.Atoi(c.prompt("Quiz number: "))
	if err != nil || i < 1 || i > len(available) {
		return nil
	}

	engine := c.app.NewQuizEngine()
	if err := engine.Load(ctx, available[i-1].ID); err != nil {
		return err
	}

	for !c.eof {
		a := engine.Assessment()
		q := a.Questions[engine.CurrentIndex()]

		c.printf("\n%s — question %d/%d\n%s\n", a.Title, engine.CurrentIndex()+1, len(a.Questions), q.Text)
		for j, opt := range q.Options {
			mark := " "
			if chosen, ok := engine.Answer(engine.CurrentIndex()); ok && chosen == opt {
				mark = ">"
			}
			c.printf(" %s%d. %s\n", mark, j+1, opt)
		}

		switch in := c.prompt("[1-4] answer  [n]ext  [p]rev  [s]ubmit  [a]bandon > "); in {
		case "1", "2", "3", "4":
			j, _ := strconv.Atoi(in)
			if j <= len(q.Options) {
				if err := engine.SelectAnswer(engine.CurrentIndex(), q.Options[j-1]); err != nil {
					c.printf("Error: %v\n", err)
				}
			}

		case "n":
			engine.Next()

		case "p":
			engine.Previous()

		case "s":
			r, err := engine.Submit(ctx)
			if err != nil {
				c.printf("Submit failed: %v\n", err)
				continue
			}
			if r == nil {
				continue
			}

			meta := result.Meta{
				ID:       a.ID,
				Title:    a.Title,
				MaxScore: a.MaxScore,
				CourseID: a.CourseID,
			}
			c.showReview(c.app.Results().Review(r, meta))
			return nil

		case "a":
			// Abandoning mid-submit is fire-and-forget; nothing to clean up.
			return nil
		}
	}

	return nil
}

func (c *cli) showReview(v result.View) {
	c.printf("\n== %s ==\n", v.Title)
	if v.Banner != "" {
		c.printf("!! %s\n", v.Banner)
	}
	c.printf("Score: %s   correct: %d   wrong: %d\n", v.ScoreLine, v.Correct, v.Wrong)

	for i, line := range v.Breakdown {
		c.printf("%s Q%d. %s\n", line.Mark, i+1, line.Question)
		c.printf("    your answer: %s\n", line.UserAnswer)
		if !line.IsCorrect {
			c.printf("    correct answer: %s\n", line.CorrectAnswer)
		}
	}
}

func (c *cli) showResults(results []domain.Result) {
	c.printf("\n-- Result history --\n")
	for _, r := range results {
		tag := ""
		if r.Placeholder {
			tag = "  [demo — not a real score]"
		}
		c.printf("%s  score %s  %s%s\n", r.Date.Format("2006-01-02"), r.Score.String(), r.AttemptID, tag)
	}
}

func (c *cli) instructorView(ctx context.Context) (bool, error) {
	courses, err := c.app.Courses().ListCourses(ctx)
	if err != nil {
		return false, err
	}

	c.printf("\n-- Your courses --\n")
	for i, course := range courses {
		c.printf("%2d  %s\n", i+1, course.Title)
	}
	c.printf("[c] Create course  [d <n>] Delete  [u <n>] Upload questions  [o] Log out  [q] Quit\n")

	cmd, arg, _ := strings.Cut(c.prompt("> "), " ")
	switch cmd {
	case "c":
		req := course.CreateCourseRequest{
			Title:       c.prompt("Title: "),
			Description: c.prompt("Description: "),
		}
		if path := c.prompt("Media file (blank to skip): "); path != "" {
			raw, err := os.ReadFile(path)
			if err != nil {
				return false, fmt.Errorf("read media file: %w", err)
			}
			req.Media = raw
			req.MediaFilename = filepath.Base(path)
		}

		_, err := c.app.Courses().CreateCourse(ctx, req)
		return false, err

	case "d":
		i, err := strconv.Atoi(arg)
		if err != nil || i < 1 || i > len(courses) {
			return false, nil
		}
		return false, c.app.Courses().DeleteCourse(ctx, courses[i-1].ID)

	case "u":
		i, err := strconv.Atoi(arg)
		if err != nil || i < 1 || i > len(courses) {
			return false, nil
		}
		return false, c.uploadQuestions(ctx, courses[i-1].ID)

	case "o":
		c.app.Sessions().Logout()

	case "q":
		return true, nil
	}

	return false, nil
}

func (c *cli) uploadQuestions(ctx context.Context, courseID string) error {
	title := c.prompt("Assessment title: ")
	maxScore, err := strconv.Atoi(c.prompt("Max score: "))
	if err != nil {
		return fmt.Errorf("max score must be a number: %w", err)
	}

	path := c.prompt("Questions file path: ")
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read questions file: %w", err)
	}

	return c.app.Assessments().UploadQuestions(ctx, assessment.UploadQuestionsRequest{
		CourseID: courseID,
		Title:    title,
		MaxScore: maxScore,
		File:     raw,
		Filename: filepath.Base(path),
	})
}

func (c *cli) prompt(label string) string {
	c.printf("%s", label)
	if !c.in.Scan() {
		c.eof = true
		return ""
	}

	return strings.TrimSpace(c.in.Text())
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
