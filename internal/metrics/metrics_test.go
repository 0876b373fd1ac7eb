package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricProvider_Prometheus(t *testing.T) {
	mp, err := NewMetricProvider(WithServiceName("fxdesk"), WithPrometheus())
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	counter, err := mp.Meter("test").Int64Counter("deals_created_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	mp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "deals_created_total"), rec.Body.String())
}

func TestNewMetricProvider_NoPrometheus(t *testing.T) {
	mp, err := NewMetricProvider(WithServiceName("fxdesk"))
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	mp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
