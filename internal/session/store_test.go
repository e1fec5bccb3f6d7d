package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/elearn/internal/domain"
	"github.com/victornm/elearn/internal/errors"
	"github.com/victornm/elearn/internal/event"
	"github.com/victornm/elearn/internal/gateway"
	"github.com/victornm/elearn/internal/lmstest"
	"github.com/victornm/elearn/internal/session"
)

func TestLogin(t *testing.T) {
	tests := map[string]struct {
		opts []lmstest.Option
		role string

		wantRole domain.Role
	}{
		"student with text role claim": {
			role:     "Student",
			wantRole: domain.RoleStudent,
		},
		"instructor with text role claim": {
			role:     "Instructor",
			wantRole: domain.RoleInstructor,
		},
		"student with numeric role claim": {
			opts:     []lmstest.Option{lmstest.WithNumericRoles()},
			role:     "Student",
			wantRole: domain.RoleStudent,
		},
		"instructor with numeric role claim": {
			opts:     []lmstest.Option{lmstest.WithNumericRoles()},
			role:     "Instructor",
			wantRole: domain.RoleInstructor,
		},
		"role under the ms schema claim key": {
			opts:     []lmstest.Option{lmstest.WithMSRoleClaim()},
			role:     "Instructor",
			wantRole: domain.RoleInstructor,
		},
		"numeric role under the ms schema claim key": {
			opts:     []lmstest.Option{lmstest.WithMSRoleClaim(), lmstest.WithNumericRoles()},
			role:     "Student",
			wantRole: domain.RoleStudent,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			store, srv := makeStore(t, tt.opts...)
			id := srv.SeedUser("Alice", "alice@example.com", "secret", tt.role)

			ss, err := store.Login(context.Background(), session.LoginRequest{
				Email:    "alice@example.com",
				Password: "secret",
			})

			require.NoError(t, err)
			assert.Equal(t, id, ss.SubjectID)
			assert.Equal(t, "Alice", ss.DisplayName)
			assert.Equal(t, "alice@example.com", ss.Email)
			assert.Equal(t, tt.wantRole, ss.Role)
			assert.NotEmpty(t, ss.Token)
			assert.True(t, store.IsAuthenticated())
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	store, srv := makeStore(t)
	srv.SeedUser("Alice", "alice@example.com", "secret", "Student")

	tests := map[string]session.LoginRequest{
		"wrong password": {Email: "alice@example.com", Password: "nope"},
		"unknown email":  {Email: "bob@example.com", Password: "secret"},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := store.Login(context.Background(), req)

			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeUnauthenticated))
			assert.Equal(t, "invalid email or password", errors.Convert(err).Message)
			assert.False(t, store.IsAuthenticated())
		})
	}
}

func TestRegister(t *testing.T) {
	store, _ := makeStore(t)

	err := store.Register(context.Background(), session.RegisterRequest{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "secret",
		Role:     domain.RoleInstructor,
	})
	require.NoError(t, err)

	ss, err := store.Login(context.Background(), session.LoginRequest{
		Email:    "bob@example.com",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleInstructor, ss.Role)

	t.Run("duplicate email", func(t *testing.T) {
		err := store.Register(context.Background(), session.RegisterRequest{
			Name:     "Bob Again",
			Email:    "bob@example.com",
			Password: "other",
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeAlreadyExists))
	})
}

func TestResume(t *testing.T) {
	store, srv := makeStore(t)
	srv.SeedUser("Alice", "alice@example.com", "secret", "Student")

	ss, err := store.Login(context.Background(), session.LoginRequest{
		Email:    "alice@example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	store.Logout()
	require.False(t, store.IsAuthenticated())

	resumed, err := store.Resume(ss.Token)

	require.NoError(t, err)
	assert.Equal(t, ss.SubjectID, resumed.SubjectID)
	assert.Equal(t, domain.RoleStudent, resumed.Role)
	assert.True(t, store.IsAuthenticated())

	t.Run("garbage token", func(t *testing.T) {
		_, err := store.Resume("not-a-token")

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeInternal))
	})
}

// A 401 from any workflow must end the session: the client drops the
// credential and reports unauthenticated without waiting for anything.
func TestSessionExpiredOnUnauthorized(t *testing.T) {
	token := mintToken(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"` + token + `","user":{"name":"Alice","email":"alice@example.com","role":"Student"}}`))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	eb := event.NewBus()
	gw := gateway.New(gateway.Config{BaseURL: srv.URL + "/api", EventBus: eb})
	store := session.NewStore(session.Config{Gateway: gw, EventBus: eb})

	_, err := store.Login(context.Background(), session.LoginRequest{
		Email:    "alice@example.com",
		Password: "secret",
	})
	require.NoError(t, err)
	require.True(t, store.IsAuthenticated())

	err = gw.JSON(context.Background(), "GET", "/Result/user", nil, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeUnauthenticated))
	assert.False(t, store.IsAuthenticated())

	eb.Stop()
	_, ok := store.Current()
	assert.False(t, ok)
}

func makeStore(t *testing.T, opts ...lmstest.Option) (*session.Store, *lmstest.Server) {
	t.Helper()

	srv := lmstest.Run(t, opts...)

	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	gw := gateway.New(gateway.Config{BaseURL: srv.URL, EventBus: eb})

	return session.NewStore(session.Config{Gateway: gw, EventBus: eb}), srv
}

func mintToken(t *testing.T) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"name":  "Alice",
		"email": "alice@example.com",
		"role":  "Student",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}
