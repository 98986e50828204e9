package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/internal/buildinfo"
)

func TestConfigHandler(t *testing.T) {
	originalCommit := buildinfo.CommitHash
	originalVersion := buildinfo.Version
	originalDirty := buildinfo.Dirty

	defer func() {
		buildinfo.CommitHash = originalCommit
		buildinfo.Version = originalVersion
		buildinfo.Dirty = originalDirty
	}()

	buildinfo.CommitHash = "test-hash-1234567"
	buildinfo.Version = "1.0.0-test"
	buildinfo.Dirty = "false"

	_, resp, model := serveAndRetrieveEndpoint(t, "/api/config.json?key=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", model.Text)

	entry := entryOf(t, model)
	assert.Equal(t, "tricity-heatmap", entry["id"])
	assert.Equal(t, "Europe/Warsaw", entry["timeZone"])

	gitProps, ok := entry["gitProperties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test-hash-1234567", gitProps["git.commit.id"])
	assert.Equal(t, "test-ha", gitProps["git.commit.id.abbrev"])
	assert.Equal(t, "1.0.0-test", gitProps["git.build.version"])
	assert.Equal(t, "false", gitProps["git.dirty"])

	info, ok := entry["graph"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), info["stops"])
	assert.Equal(t, float64(4), info["connections"])
	assert.Equal(t, float64(6), info["departures"])
	assert.Equal(t, float64(4), info["edges"])
	assert.Equal(t, true, info["healthy"])
	assert.Equal(t, "build", info["origin"])
	assert.Equal(t, []any{"ztm", "skm", "mzkw"}, info["agencies"])

	area, ok := info["area"].(map[string]any)
	require.True(t, ok, "positioned stops give a service area")
	assert.Less(t, area["minLat"].(float64), area["maxLat"].(float64))
	assert.Greater(t, area["centerLat"].(float64), area["minLat"].(float64))
	assert.Less(t, area["centerLon"].(float64), area["maxLon"].(float64))
}
