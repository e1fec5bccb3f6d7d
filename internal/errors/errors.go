package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code int

const (
	CodeInvalidArgument Code = iota + 1
	CodeNotFound
	CodeAlreadyExists
	CodePermissionDenied
	CodeInternal
	CodeUnauthenticated
	CodeUnavailable
	CodeDeadlineExceeded
	CodeFailedPrecondition
)

var code2text = map[Code]string{
	CodeInvalidArgument:    "InvalidArgument",
	CodeNotFound:           "NotFound",
	CodeAlreadyExists:      "AlreadyExists",
	CodePermissionDenied:   "PermissionDenied",
	CodeInternal:           "Internal",
	CodeUnauthenticated:    "Unauthenticated",
	CodeUnavailable:        "Unavailable",
	CodeDeadlineExceeded:   "DeadlineExceeded",
	CodeFailedPrecondition: "FailedPrecondition",
}

func (c Code) String() string {
	if s, ok := code2text[c]; ok {
		return s
	}

	return fmt.Sprintf("Code(%d)", int(c))
}

var status2code = map[int]Code{
	http.StatusBadRequest:          CodeInvalidArgument,
	http.StatusUnauthorized:        CodeUnauthenticated,
	http.StatusForbidden:           CodePermissionDenied,
	http.StatusNotFound:            CodeNotFound,
	http.StatusConflict:            CodeAlreadyExists,
	http.StatusRequestTimeout:      CodeDeadlineExceeded,
	http.StatusPreconditionFailed:  CodeFailedPrecondition,
	http.StatusServiceUnavailable:  CodeUnavailable,
	http.StatusGatewayTimeout:      CodeDeadlineExceeded,
	http.StatusInternalServerError: CodeInternal,
}

// FromStatusCode maps an HTTP response status onto a Code. Unmapped 4xx
// statuses become CodeInvalidArgument, everything else CodeInternal.
func FromStatusCode(status int) Code {
	if c, ok := status2code[status]; ok {
		return c
	}

	if status >= 400 && status < 500 {
		return CodeInvalidArgument
	}

	return CodeInternal
}

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	// StatusCode is the HTTP status the backend answered with, zero when
	// the error never reached the wire.
	StatusCode int `json:"-"`

	err error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: code.String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %s, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Convert returns err as *Error, wrapping it as CodeInternal when it is not
// one already.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithStatusCode(status int) Option {
	return optionFunc(func(e *Error) {
		e.StatusCode = status
	})
}
