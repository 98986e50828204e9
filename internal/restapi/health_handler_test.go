package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/gtfsdb"
	"heatmap.tricitytransit.org/internal/app"
	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/gtfs"
)

func getHealth(t *testing.T, api *RestAPI) (int, HealthResponse) {
	t.Helper()
	resp := serveApi(t, api, "/healthz")
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	return resp.StatusCode, health
}

func TestHealthHandlerWithNilApplication(t *testing.T) {
	api := &RestAPI{Application: nil}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	api.healthHandler(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "graph manager not initialized", resp.Detail)
}

func TestHealthHandlerReturnsOK(t *testing.T) {
	api := createTestApi(t)

	code, health := getHealth(t, api)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, gtfs.OriginBuild, health.Origin)
	assert.Equal(t, 5, health.Stops)
}

func TestHealthHandlerNeedsNoAPIKey(t *testing.T) {
	resp := serveApi(t, createTestApi(t), "/healthz?key=wrong")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
}

func TestHealthHandlerBeforeFirstGraph(t *testing.T) {
	api := NewRestAPI(&app.Application{
		Config:       appconf.Config{RateLimit: 100},
		GraphManager: &gtfs.Manager{},
	})
	t.Cleanup(api.Shutdown)

	code, health := getHealth(t, api)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "starting", health.Status)
}

func TestHealthHandlerDegraded(t *testing.T) {
	api := createTestApi(t)
	api.GraphManager.MarkUnhealthy()

	code, health := getHealth(t, api)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, 5, health.Stops)

	api.GraphManager.MarkHealthy()
	code, _ = getHealth(t, api)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthHandlerChecksGraphStore(t *testing.T) {
	api := createTestApi(t)
	client, err := gtfsdb.NewClient(gtfsdb.NewConfig(":memory:", appconf.Test, false))
	require.NoError(t, err)
	api.GraphManager.GraphDB = client

	code, health := getHealth(t, api)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", health.Status)

	require.NoError(t, client.Close())
	code, health = getHealth(t, api)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", health.Status)
	assert.Equal(t, "graph store connection failed", health.Detail)
}
