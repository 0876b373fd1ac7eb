package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// AppError is the error type returned across service boundaries. The code
// drives HTTP mapping and classification; the cause stays private.
type AppError struct {
	Code       Code      `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Context    string    `json:"context,omitempty"`
	TraceID    string    `json:"traceId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	cause error
	stack []uintptr
}

func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Context != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Context)
		sb.WriteString("]")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches any *AppError carrying the same code, so
// errors.Is(err, apperror.New(CodeDealNotFound)) works through wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// ErrorBody is the JSON shape of an error returned to API clients.
type ErrorBody struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Context   string `json:"context,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
}

// Response wraps ErrorBody under the "error" key.
type Response struct {
	Error ErrorBody `json:"error"`
}

// ToResponse returns the client-facing form of the error. The cause and
// stack are never included.
func (e *AppError) ToResponse() Response {
	return Response{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Context:   e.Context,
		TraceID:   e.TraceID,
	}}
}

// ToLog returns the error as a log group including cause and stack.
func (e *AppError) ToLog() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("message", e.Message),
		slog.Int("statusCode", e.StatusCode),
	}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("traceId", e.TraceID))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	if len(e.stack) > 0 {
		attrs = append(attrs, slog.Any("stack", e.frames()))
	}
	return slog.GroupValue(attrs...)
}

func (e *AppError) frames() []string {
	out := make([]string, 0, len(e.stack))
	it := runtime.CallersFrames(e.stack)
	for {
		f, more := it.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line))
		}
		if !more {
			return out
		}
	}
}

func callers() []uintptr {
	pcs := make([]uintptr, 32)
	// skip runtime.Callers, callers and New
	return pcs[:runtime.Callers(3, pcs)]
}

// Option configures an AppError built by New.
type Option func(*AppError)

func WithMessage(message string) Option {
	return func(e *AppError) { e.Message = message }
}

func WithContext(context string) Option {
	return func(e *AppError) { e.Context = context }
}

func WithStatusCode(status int) Option {
	return func(e *AppError) { e.StatusCode = status }
}

func WithCause(cause error) Option {
	return func(e *AppError) { e.cause = cause }
}

// New builds an error for code. The message defaults to the catalogue
// entry, falling back to the code itself.
func New(code Code, opts ...Option) *AppError {
	e := &AppError{
		Code:       code,
		Message:    messages[code],
		StatusCode: defaultStatus(code),
		Timestamp:  time.Now(),
		stack:      callers(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Message == "" {
		e.Message = string(code)
	}
	return e
}

func NotFound(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusNotFound))
}

func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusBadRequest))
}

func Conflict(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusConflict))
}

// Internal marks a failure of this service.
func Internal(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithStatusCode(http.StatusInternalServerError))
}

// External marks a failure of a collaborator (store, feed, venue).
func External(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithStatusCode(http.StatusServiceUnavailable))
}

// Wrap returns err unchanged when it already is an AppError, filling in
// context if it had none. Any other error becomes an Internal one.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Context == "" {
			appErr.Context = context
		}
		return appErr
	}
	return Internal(code, context, err)
}

// GetCode returns the code of the first AppError in err's chain, or
// CodeUnknownError.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// StatusCode returns the HTTP status for any error. Non-app errors map to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether the error comes from an unavailable
// collaborator and may succeed on retry.
func IsRetryable(err error) bool {
	switch StatusCode(err) {
	case http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusGatewayTimeout:
		return true
	}
	return false
}

var explicitStatus = map[Code]int{
	CodeInvalidDealState:   http.StatusConflict,
	CodeInvalidState:       http.StatusConflict,
	CodeInvalidPartner:     http.StatusUnprocessableEntity,
	CodeRateExceedsMaximum: http.StatusBadRequest,
	CodeRateBelowMinimum:   http.StatusBadRequest,
	CodeAmountOutOfLimits:  http.StatusBadRequest,
	CodeDivisionByZero:     http.StatusBadRequest,
	CodeNegativeSquareRoot: http.StatusBadRequest,
	CodeEmptySeries:        http.StatusBadRequest,
	CodeCircuitOpen:        http.StatusServiceUnavailable,
	CodeRateLimitExceeded:  http.StatusTooManyRequests,
}

func defaultStatus(code Code) int {
	if status, ok := explicitStatus[code]; ok {
		return status
	}
	c := string(code)
	switch {
	case strings.HasSuffix(c, "NOT_FOUND"):
		return http.StatusNotFound
	case strings.Contains(c, "INVALID"), strings.Contains(c, "REQUIRED"):
		return http.StatusBadRequest
	case strings.Contains(c, "UNAVAILABLE"), strings.Contains(c, "CONNECTION"), strings.Contains(c, "TIMEOUT"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
