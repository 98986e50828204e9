package restapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/internal/metrics"
)

func TestMetricsHandler_NilMetrics(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	wrapped := MetricsHandler(nil)(inner)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsHandler_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/heatmap/{stop}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	server := httptest.NewServer(MetricsHandler(m)(mux))
	defer server.Close()

	for _, stop := range []string{"a.json", "b.json"} {
		resp, err := http.Get(server.URL + "/api/heatmap/" + stop)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "GET /api/heatmap/{stop}", "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestMetricsHandler_UnmatchedPath(t *testing.T) {
	m := metrics.New()
	wrapped := MetricsHandler(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown/path", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestMetricsHandler_VariousStatusCodes(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		implicit   bool
	}{
		{"OK", http.StatusOK, false},
		{"implicit OK", http.StatusOK, true},
		{"BadRequest", http.StatusBadRequest, false},
		{"NotFound", http.StatusNotFound, false},
		{"InternalServerError", http.StatusInternalServerError, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.New()
			wrapped := MetricsHandler(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !tc.implicit {
					w.WriteHeader(tc.statusCode)
				}
				_, _ = w.Write([]byte("body"))
			}))

			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tc.statusCode, rec.Code)
			assert.Equal(t, float64(1), testutil.ToFloat64(
				m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", strconv.Itoa(tc.statusCode))))
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	w := newStatusRecorder(rec)
	assert.Equal(t, http.StatusOK, w.statusCode)

	w.WriteHeader(http.StatusTeapot)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusTeapot, w.statusCode)
	assert.Equal(t, 5, w.bytes)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api := createTestApi(t)
	resp := serveApi(t, api, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := new(strings.Builder)
	_, err := io.Copy(body, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "heatmap_graph_stops 5")
}
