package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeAborted            = Code(codes.Aborted)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

// Reasons are stable, machine-readable strings returned to clients alongside the code.
const (
	ReasonValidationFailed     = "VALIDATION_FAILED"
	ReasonQuizNotFound         = "QUIZ_NOT_FOUND"
	ReasonQuestionBankNotFound = "QUESTION_BANK_NOT_FOUND"
	ReasonSessionNotFound      = "SESSION_NOT_FOUND"
	ReasonHandleTampered       = "HANDLE_TAMPERED"
	ReasonSessionCompleted     = "SESSION_COMPLETED"
	ReasonConcurrentUpdate     = "CONCURRENT_UPDATE"
	ReasonLeaderboardNotFound  = "LEADERBOARD_NOT_FOUND"
	ReasonUnauthenticated      = "UNAUTHENTICATED"
	ReasonInternal             = "INTERNAL"
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusUnprocessableEntity,
	CodeAborted:            http.StatusConflict,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

var code2reason = map[Code]string{
	CodeInvalidArgument: ReasonValidationFailed,
	CodeNotFound:        ReasonSessionNotFound,
	CodeAborted:         ReasonConcurrentUpdate,
	CodeInternal:        ReasonInternal,
	CodeUnauthenticated: ReasonUnauthenticated,
}

type Error struct {
	Code    Code   `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Reason:  code2reason[code],
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, reason: %s, message: %s", e.Code, e.Reason, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

// Convert returns err as *Error, wrapping anything unknown as Internal.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// Is reports whether err carries the given code and reason. An empty reason matches any.
func Is(err error, code Code, reason string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Code == code && (reason == "" || e.Reason == reason)
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

func Validation(format string, args ...any) *Error {
	return New(CodeInvalidArgument, WithMessagef(format, args...))
}

func NotFound(reason, format string, args ...any) *Error {
	return New(CodeNotFound, WithReason(reason), WithMessagef(format, args...))
}

// Tampered is returned for handles that fail to decode or authenticate.
func Tampered(err error) *Error {
	return New(CodeInvalidArgument,
		WithReason(ReasonHandleTampered),
		WithMessagef("invalid session handle"),
		WithCause(err),
	)
}

func Unauthenticated(format string, args ...any) *Error {
	return New(CodeUnauthenticated, WithMessagef(format, args...))
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

func WithReason(reason string) Option {
	return optionFunc(func(e *Error) {
		e.Reason = reason
	})
}
