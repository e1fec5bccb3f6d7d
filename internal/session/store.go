// Package session holds the authenticated identity for the lifetime of the
// process. The token is decoded client-side only to display identity
// claims; the server stays authoritative for every authorization decision.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/elearn/internal/domain"
	"github.com/victornm/elearn/internal/errors"
	"github.com/victornm/elearn/internal/event"
	"github.com/victornm/elearn/internal/gateway"
)

// msRoleClaim is where ASP.NET backends park the role claim.
const msRoleClaim = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"

type Config struct {
	Gateway  *gateway.Gateway
	EventBus *event.Bus
}

type Store struct {
	gw *gateway.Gateway

	mu      sync.RWMutex
	session *domain.Session
}

func NewStore(c Config) *Store {
	s := &Store{gw: c.Gateway}

	// A 401 from any workflow invalidates the session globally.
	c.EventBus.Subscribe(domain.EventNameSessionExpired, func(ctx context.Context, e event.Event) error {
		s.clear()
		return nil
	})

	return s
}

type LoginRequest struct {
	Email    string
	Password string
}

// Login authenticates against the backend and installs the returned bearer
// token. The session's identity fields come from the token's claims.
func (s *Store) Login(ctx context.Context, req LoginRequest) (*domain.Session, error) {
	var resp struct {
		Token string `json:"token"`
		User  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Role  any    `json:"role"`
		} `json:"user"`
	}

	err := s.gw.JSON(ctx, "POST", "/auth/login", map[string]string{
		"Email":    req.Email,
		"Password": req.Password,
	}, &resp)
	if err != nil {
		if errors.Is(err, errors.CodeUnauthenticated) {
			return nil, errors.New(errors.CodeUnauthenticated,
				errors.WithMessagef("invalid email or password"),
				errors.WithCause(err))
		}
		return nil, err
	}

	if resp.Token == "" {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("no token received from server"))
	}

	ss, err := decodeSession(resp.Token)
	if err != nil {
		return nil, err
	}

	// Claims win; the user payload fills gaps.
	if ss.DisplayName == "" {
		ss.DisplayName = resp.User.Name
	}
	if ss.Email == "" {
		ss.Email = resp.User.Email
	}
	if ss.Role == "" {
		if r, ok := domain.NormalizeRole(resp.User.Role); ok {
			ss.Role = r
		}
	}
	if ss.Role == "" {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("server response carries no recognizable role"))
	}

	s.install(ss)
	return s.copySession(), nil
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// Register creates an account. The backend takes the role as a numeric
// code: 0 student, 1 instructor.
func (s *Store) Register(ctx context.Context, req RegisterRequest) error {
	code := 0
	if req.Role == domain.RoleInstructor {
		code = 1
	}

	return s.gw.JSON(ctx, "POST", "/auth/register", map[string]any{
		"Name":     req.Name,
		"Email":    req.Email,
		"Password": req.Password,
		"Role":     code,
	}, nil)
}

// Resume re-hydrates a session from a previously issued token, e.g. one
// kept by the caller across a restart.
func (s *Store) Resume(token string) (*domain.Session, error) {
	ss, err := decodeSession(token)
	if err != nil {
		return nil, err
	}
	if ss.Role == "" {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("token carries no recognizable role"))
	}

	s.install(ss)
	return s.copySession(), nil
}

func (s *Store) Logout() {
	s.clear()
}

// Current returns a copy of the active session, when one exists. A session
// is only as alive as its credential: once the gateway drops the token on
// a 401, Current reports no session even before the expiry event lands.
func (s *Store) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil || s.gw.Token() == "" {
		return domain.Session{}, false
	}

	return *s.session, true
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

func (s *Store) install(ss *domain.Session) {
	s.mu.Lock()
	s.session = ss
	s.mu.Unlock()

	s.gw.SetToken(ss.Token)
}

func (s *Store) clear() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	s.gw.ClearToken()
}

func (s *Store) copySession() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := *s.session
	return &cp
}

// decodeSession extracts identity claims from the token without verifying
// the signature. Decode failure is a recoverable error, not a crash.
func decodeSession(token string) (*domain.Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("undecodable token"),
			errors.WithCause(fmt.Errorf("parse token: %w", err)))
	}

	ss := &domain.Session{Token: token}

	if v, ok := claims["sub"].(string); ok {
		ss.SubjectID = v
	}
	if v, ok := claims["name"].(string); ok {
		ss.DisplayName = v
	} else if v, ok := claims["unique_name"].(string); ok {
		ss.DisplayName = v
	}
	if v, ok := claims["email"].(string); ok {
		ss.Email = v
	}

	roleClaim, ok := claims["role"]
	if !ok {
		roleClaim = claims[msRoleClaim]
	}
	if r, ok := domain.NormalizeRole(roleClaim); ok {
		ss.Role = r
	}

	return ss, nil
}
