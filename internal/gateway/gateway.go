// Package gateway is the single point of outbound calls to the LMS
// backend. It attaches the bearer token, normalizes backend error shapes
// and turns a 401 into a global session-expired signal.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/victornm/elearn/internal/domain"
	"github.com/victornm/elearn/internal/errors"
	"github.com/victornm/elearn/internal/event"
	"github.com/victornm/elearn/internal/telemetry"
)

type Config struct {
	// BaseURL including the /api prefix, e.g. http://localhost:7154/api.
	BaseURL string
	// Timeout applies to every request. Zero means no client-wide bound;
	// callers bound long-running paths with their own context.
	Timeout  time.Duration
	EventBus *event.Bus
	// Client overrides the underlying HTTP client, used by tests.
	Client *http.Client
}

type Gateway struct {
	base   string
	client *http.Client
	eb     *event.Bus

	mu    sync.RWMutex
	token string
}

func New(c Config) *Gateway {
	client := c.Client
	if client == nil {
		client = &http.Client{Transport: telemetry.MonitorHTTP(nil)}
	}
	if c.Timeout > 0 {
		client.Timeout = c.Timeout
	}

	return &Gateway{
		base:   strings.TrimRight(c.BaseURL, "/"),
		client: client,
		eb:     c.EventBus,
	}
}

// SetToken installs the bearer credential attached to subsequent requests.
func (g *Gateway) SetToken(token string) {
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

func (g *Gateway) ClearToken() {
	g.SetToken("")
}

func (g *Gateway) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

type RequestOption interface {
	apply(*http.Request)
}

type requestOptionFunc func(*http.Request)

func (f requestOptionFunc) apply(r *http.Request) {
	f(r)
}

func WithHeader(key, value string) RequestOption {
	return requestOptionFunc(func(r *http.Request) {
		r.Header.Set(key, value)
	})
}

// JSON sends a JSON request and decodes a JSON response into out, when out
// is non-nil. A nil body sends no payload.
func (g *Gateway) JSON(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var (
		r           io.Reader
		contentType string
	)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: marshal request: %w", err)
		}
		r = bytes.NewReader(b)
		contentType = "application/json"
	}

	return g.do(ctx, method, path, r, contentType, out, opts...)
}

// Multipart sends a multipart/form-data request. The form supplies its own
// content type with the boundary; the gateway must not force JSON here.
func (g *Gateway) Multipart(ctx context.Context, method, path string, form *Form, out any, opts ...RequestOption) error {
	body, contentType, err := form.encode()
	if err != nil {
		return fmt.Errorf("gateway: encode form: %w", err)
	}

	return g.do(ctx, method, path, body, contentType, out, opts...)
}

func (g *Gateway) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any, opts ...RequestOption) error {
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
	if err != nil {
		return fmt.Errorf("gateway: new request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := g.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, opt := range opts {
		opt.apply(req)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.New(errors.CodeDeadlineExceeded,
				errors.WithMessagef("request timed out: %s %s", method, path),
				errors.WithCause(err))
		}

		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("network unreachable: %v", err),
			errors.WithCause(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Internal(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return g.expireSession(ctx, path, resp.StatusCode, raw)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(errors.FromStatusCode(resp.StatusCode),
			errors.WithMessagef("%s", errorMessage(raw, resp.StatusCode)),
			errors.WithStatusCode(resp.StatusCode))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.New(errors.CodeInternal,
			errors.WithMessagef("malformed server response"),
			errors.WithCause(err))
	}

	return nil
}

// expireSession force-clears the credential and fans the expiry out to
// every subscriber, regardless of which workflow hit the 401.
func (g *Gateway) expireSession(ctx context.Context, path string, status int, raw []byte) error {
	g.ClearToken()

	if g.eb != nil {
		g.eb.Publish(ctx, domain.EventSessionExpired{Path: path})
	}

	msg := errorMessage(raw, status)
	if len(raw) == 0 {
		msg = "session expired, please log in again"
	}

	return errors.New(errors.CodeUnauthenticated,
		errors.WithMessagef("%s", msg),
		errors.WithStatusCode(status))
}

// errorMessage extracts a human-readable message from a non-2xx body, in
// priority order: validation-error map, detail, title, message, raw string
// body, then a generic fallback from the status text.
func errorMessage(raw []byte, status int) string {
	if len(raw) > 0 {
		var payload struct {
			Errors  map[string]any `json:"errors"`
			Detail  string         `json:"detail"`
			Title   string         `json:"title"`
			Message string         `json:"message"`
		}

		if err := json.Unmarshal(raw, &payload); err == nil {
			switch {
			case len(payload.Errors) > 0:
				return formatValidationErrors(payload.Errors)
			case payload.Detail != "":
				return payload.Detail
			case payload.Title != "":
				return payload.Title
			case payload.Message != "":
				return payload.Message
			}
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}

		if t := strings.TrimSpace(string(raw)); t != "" && !strings.HasPrefix(t, "{") {
			return t
		}
	}

	if t := http.StatusText(status); t != "" {
		return t
	}

	return "an unexpected error occurred"
}

func formatValidationErrors(errs map[string]any) string {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch v := errs[f].(type) {
		case []any:
			msgs := make([]string, 0, len(v))
			for _, m := range v {
				msgs = append(msgs, fmt.Sprint(m))
			}
			parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(msgs, ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", f, v))
		}
	}

	return strings.Join(parts, "; ")
}
