// Package app wires the client together: event bus, gateway and the
// workflow services, all from one Config.
package app

import (
	"fmt"
	"time"

	"github.com/victornm/elearn/internal/assessment"
	"github.com/victornm/elearn/internal/course"
	"github.com/victornm/elearn/internal/event"
	"github.com/victornm/elearn/internal/gateway"
	"github.com/victornm/elearn/internal/quiz"
	"github.com/victornm/elearn/internal/result"
	"github.com/victornm/elearn/internal/session"
)

type Config struct {
	API struct {
		// BaseURL including the /api prefix.
		BaseURL string
		// Timeout bounds every request; zero leaves requests unbounded.
		Timeout time.Duration
		// SubmitTimeout bounds the quiz submit path, 30s when zero.
		SubmitTimeout time.Duration
	}
}

type App struct {
	c Config

	eb *event.Bus
	gw *gateway.Gateway

	service struct {
		session    *session.Store
		course     *course.Service
		assessment *assessment.Service
		result     *result.Service
	}
}

func Init(c Config) (*App, error) {
	if c.API.BaseURL == "" {
		return nil, fmt.Errorf("app: API base URL not set")
	}

	a := &App{c: c}
	a.eb = event.NewBus()

	a.gw = gateway.New(gateway.Config{
		BaseURL:  c.API.BaseURL,
		Timeout:  c.API.Timeout,
		EventBus: a.eb,
	})

	a.initService()
	return a, nil
}

func (a *App) initService() {
	a.service.session = session.NewStore(session.Config{
		Gateway:  a.gw,
		EventBus: a.eb,
	})

	a.service.course = course.NewService(course.Config{
		Gateway:  a.gw,
		Sessions: a.service.session,
		EventBus: a.eb,
	})

	a.service.assessment = assessment.NewService(assessment.Config{
		Gateway: a.gw,
	})

	a.service.result = result.NewService(result.Config{
		Gateway: a.gw,
	})
}

func (a *App) EventBus() *event.Bus { return a.eb }

func (a *App) Sessions() *session.Store { return a.service.session }

func (a *App) Courses() *course.Service { return a.service.course }

func (a *App) Assessments() *assessment.Service { return a.service.assessment }

func (a *App) Results() *result.Service { return a.service.result }

// NewQuizEngine starts a fresh attempt workflow. Each attempt owns its own
// engine; abandoned engines are simply dropped.
func (a *App) NewQuizEngine() *quiz.Engine {
	return quiz.NewEngine(quiz.Config{
		Gateway:       a.gw,
		Assessments:   a.service.assessment,
		Sessions:      a.service.session,
		SubmitTimeout: a.c.API.SubmitTimeout,
	})
}

// Shutdown drains the event bus.
func (a *App) Shutdown() {
	a.eb.Stop()
}
