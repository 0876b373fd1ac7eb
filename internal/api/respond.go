package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fxdesk/internal/apperror"
)

const maxBodyBytes = 1 << 20

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), "encode response failed", "path", r.URL.Path, "error", err)
	}
}

// writeError renders err as an AppError response. Errors outside the
// apperror taxonomy become INTERNAL_ERROR without leaking their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(apperror.CodeInternalError, "", err)
		appErr.Message = "internal server error"
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		appErr.TraceID = sc.TraceID().String()
	}

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", appErr.ToLog())
	} else {
		s.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "code", appErr.Code, "context", appErr.Context)
	}
	s.writeJSON(w, r, status, appErr.ToResponse())
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, apperror.NotFound(apperror.CodeNotFound, r.URL.Path))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, apperror.New(apperror.CodeInvalidInput,
		apperror.WithMessage("method not allowed"),
		apperror.WithContext(r.Method+" "+r.URL.Path),
		apperror.WithStatusCode(http.StatusMethodNotAllowed)))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation(apperror.CodeInvalidInput, "request body is empty")
		}
		return apperror.New(apperror.CodeInvalidFormat,
			apperror.WithMessage("malformed request body"),
			apperror.WithContext(err.Error()),
			apperror.WithStatusCode(http.StatusBadRequest))
	}
	return nil
}

func requireQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", apperror.New(apperror.CodeRequiredField,
			apperror.WithMessage("missing query parameter"),
			apperror.WithContext(name))
	}
	return v, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}

func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("%s must be an RFC3339 timestamp", name))
	}
	return &t, nil
}
