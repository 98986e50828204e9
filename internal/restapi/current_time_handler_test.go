package restapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/internal/clock"
)

func TestCurrentTimeHandlerRequiresValidApiKey(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/current-time.json?key=invalid")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, model.Code)
	assert.Equal(t, "permission denied", model.Text)
}

func TestCurrentTimeHandler(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/current-time.json?key=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	assert.Equal(t, http.StatusOK, model.Code)
	assert.Equal(t, "OK", model.Text)
	assert.Equal(t, 2, model.Version)
	assert.Equal(t, testNow.UnixMilli(), model.CurrentTime)

	entry := entryOf(t, model)
	assert.Equal(t, float64(testNow.UnixMilli()), entry["time"])
	assert.Equal(t, "2025-01-15T07:50:00+01:00", entry["readableTime"])
	assert.Equal(t, "07:50:00", entry["serviceTime"])
	assert.Equal(t, "Europe/Warsaw", entry["timeZone"])
}

func TestCurrentTimeHandlerFollowsClock(t *testing.T) {
	mock := clock.NewMockClock(testNow)
	api := createTestApiWithClock(t, mock)

	// Crossing into summer time moves the service time two hours off UTC.
	mock.Set(time.Date(2025, 7, 1, 21, 59, 30, 0, time.UTC))
	_, model := serveApiAndRetrieveEndpoint(t, api, "/api/current-time.json?key=TEST")

	entry := entryOf(t, model)
	assert.Equal(t, "2025-07-01T23:59:30+02:00", entry["readableTime"])
	assert.Equal(t, "23:59:30", entry["serviceTime"])
}
