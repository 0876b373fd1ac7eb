package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/fxdesk/internal/logger"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_AllHealthy(t *testing.T) {
	s := NewServer(0, "1.2.3", logger.Discard())
	s.RegisterCheck("db", DBCheck(nil))

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, Check{Healthy: true, Message: "memory driver"}, body.Checks["db"])

	assert.Equal(t, "ready", get(t, s.Handler(), "/ready").Body.String())
	assert.Equal(t, "alive", get(t, s.Handler(), "/live").Body.String())
}

func TestServer_Degraded(t *testing.T) {
	s := NewServer(0, "", logger.Discard())
	s.RegisterCheck("venue", func(context.Context) (bool, string) { return false, "circuit open" })

	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "circuit open", body.Checks["venue"].Message)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/ready").Code)
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/live").Code)
}

func TestDBCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	ok, _ := DBCheck(db)(context.Background())
	assert.True(t, ok)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	ok, msg := DBCheck(db)(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "connection refused", msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}
