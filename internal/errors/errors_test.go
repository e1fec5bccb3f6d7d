package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/elearn/internal/errors"
)

func TestFromStatusCode(t *testing.T) {
	tests := map[int]errors.Code{
		http.StatusBadRequest:          errors.CodeInvalidArgument,
		http.StatusUnauthorized:        errors.CodeUnauthenticated,
		http.StatusForbidden:           errors.CodePermissionDenied,
		http.StatusNotFound:            errors.CodeNotFound,
		http.StatusConflict:            errors.CodeAlreadyExists,
		http.StatusInternalServerError: errors.CodeInternal,
		http.StatusServiceUnavailable:  errors.CodeUnavailable,
		http.StatusGatewayTimeout:      errors.CodeDeadlineExceeded,
		http.StatusTeapot:              errors.CodeInvalidArgument,
		http.StatusBadGateway:          errors.CodeInternal,
	}

	for status, want := range tests {
		assert.Equal(t, want, errors.FromStatusCode(status), "status %d", status)
	}
}

func TestConvert(t *testing.T) {
	t.Run("plain error becomes internal", func(t *testing.T) {
		e := errors.Convert(stderrors.New("boom"))

		require.NotNil(t, e)
		assert.Equal(t, errors.CodeInternal, e.Code)
	})

	t.Run("wrapped error keeps its code", func(t *testing.T) {
		orig := errors.New(errors.CodeNotFound, errors.WithMessagef("course gone"))

		e := errors.Convert(fmt.Errorf("list: %w", orig))

		assert.Equal(t, errors.CodeNotFound, e.Code)
		assert.Equal(t, "course gone", e.Message)
	})
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("submit: %w", errors.New(errors.CodeUnauthenticated, errors.WithStatusCode(401)))

	assert.True(t, errors.Is(err, errors.CodeUnauthenticated))
	assert.False(t, errors.Is(err, errors.CodeNotFound))
	assert.False(t, errors.Is(stderrors.New("other"), errors.CodeUnauthenticated))
}

func TestErrorStatusCode(t *testing.T) {
	e := errors.New(errors.CodeAlreadyExists,
		errors.WithMessagef("already enrolled"),
		errors.WithStatusCode(http.StatusConflict))

	assert.Equal(t, http.StatusConflict, e.StatusCode)
	assert.Contains(t, e.Error(), "already enrolled")
}
