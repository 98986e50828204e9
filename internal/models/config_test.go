package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/internal/clock"
	"heatmap.tricitytransit.org/internal/gtfstime"
)

func TestGitPropertiesJSONTags(t *testing.T) {
	props := GitProperties{
		GitCommitId:     "abc12345",
		GitBuildVersion: "1.0.0",
		GitDirty:        "false",
	}

	data, err := json.Marshal(props)
	assert.Nil(t, err)
	jsonString := string(data)

	assert.Contains(t, jsonString, `"git.commit.id":"abc12345"`)
	assert.Contains(t, jsonString, `"git.build.version":"1.0.0"`)

	assert.NotContains(t, jsonString, "GitCommitId")
}

func TestHeatmapPointTravelTimeTag(t *testing.T) {
	data, err := json.Marshal(HeatmapPoint{Key: "ztm:100", TravelTime: 12})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"travel_time":12`)
}

func TestResponseConstructors(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	c := clock.NewMockClock(fixed)

	entry := NewEntryResponse("x", c)
	assert.Equal(t, 200, entry.Code)
	assert.Equal(t, "OK", entry.Text)
	assert.Equal(t, 2, entry.Version)
	assert.Equal(t, fixed.UnixMilli(), entry.CurrentTime)
	assert.Equal(t, EntryData{Entry: "x"}, entry.Data)

	list := NewListResponse([]int{1}, true, c)
	assert.Equal(t, ListData{List: []int{1}, LimitExceeded: true}, list.Data)

	notFound := NewErrorResponse(404, "no such stop", c)
	assert.Nil(t, notFound.Data)
	data, err := json.Marshal(notFound)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"data"`)
}

func TestNewCurrentTimeData(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	now := time.Date(2025, 1, 15, 6, 50, 0, 0, time.UTC)

	d := NewCurrentTimeData(now, warsaw, gtfstime.TimeOfDay(7*3600+50*60))
	assert.Equal(t, "2025-01-15T07:50:00+01:00", d.ReadableTime)
	assert.Equal(t, now.UnixMilli(), d.Time)
	assert.Equal(t, "07:50:00", d.ServiceTime)
	assert.Equal(t, "Europe/Warsaw", d.TimeZone)
}
