package restapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/internal/app"
	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/clock"
	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfs"
	"heatmap.tricitytransit.org/internal/gtfstime"
	"heatmap.tricitytransit.org/internal/metrics"
	"heatmap.tricitytransit.org/internal/models"
)

// 06:50 UTC is 07:50 in Warsaw in January.
var testNow = time.Date(2025, 1, 15, 6, 50, 0, 0, time.UTC)

// testGraph:
//
//	ztm:100 --130 (08:00, 08:30)--> ztm:101 (10 min), ztm:102 (15 min)
//	ztm:101 --130 (08:10, 08:40)--> ztm:102 (5 min)
//	ztm:102 --S1 (08:20)--> skm:8 (6 min)
//	mzkw:900 only has a run that goes nowhere.
func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	stops := []graph.StopInfo{
		{Key: "ztm:100", ID: "100", Name: "Dworzec Główny 01", Coordinate: graph.Coordinate{Lat: 54.3556, Lon: 18.6453}, HasPosition: true},
		{Key: "ztm:101", ID: "101", Name: "Brama Wyżynna", Coordinate: graph.Coordinate{Lat: 54.35, Lon: 18.644}, HasPosition: true},
		{Key: "ztm:102", ID: "102", Name: "Hucisko", Coordinate: graph.Coordinate{Lat: 54.352, Lon: 18.646}, HasPosition: true},
		{Key: "skm:8", ID: "8", Name: "Gdańsk Wrzeszcz", Coordinate: graph.Coordinate{Lat: 54.381, Lon: 18.606}, HasPosition: true},
		{Key: "mzkw:900", ID: "900", Name: "Wejherowo", Coordinate: graph.Coordinate{Lat: 54.6, Lon: 18.23}, HasPosition: true},
	}
	for _, s := range stops {
		b.AddStop(s)
	}

	add := func(stop, run, trip, dep string, dests map[string]int) {
		v := graph.Visit{Stop: stop, Run: run, TripID: trip, Departure: gtfstime.MustParse(dep)}
		b.AddVisit(v)
		for dest, minutes := range dests {
			b.AddEdge(graph.Edge{Visit: v, Destination: dest, TravelMinutes: minutes})
		}
	}
	add("ztm:100", "130", "1_130_a", "08:00:00", map[string]int{"ztm:101": 10, "ztm:102": 15})
	add("ztm:100", "130", "1_130_b", "08:30:00", map[string]int{"ztm:101": 10, "ztm:102": 15})
	add("ztm:101", "130", "1_130_a", "08:10:00", map[string]int{"ztm:102": 5})
	add("ztm:101", "130", "1_130_b", "08:40:00", map[string]int{"ztm:102": 5})
	add("ztm:102", "S1", "S1_0820", "08:20:00", map[string]int{"skm:8": 6})
	add("mzkw:900", "W1", "W1_0900", "09:00:00", nil)
	return b.Build()
}

func createTestApiWithClock(t *testing.T, c clock.Clock) *RestAPI {
	t.Helper()
	warsaw, err := time.LoadLocation(appconf.DefaultTimeZone)
	require.NoError(t, err)

	application := &app.Application{
		Config: appconf.Config{
			Env:       appconf.Test,
			ApiKeys:   []string{"TEST"},
			RateLimit: 100,
		},
		GraphConfig: gtfs.Config{Agencies: []gtfs.AgencyConfig{{ID: "ztm"}, {ID: "skm"}, {ID: "mzkw"}}},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:       c,
		Metrics:     metrics.New(),
		Location:    warsaw,
	}
	application.GraphManager = gtfs.NewStaticManager(testGraph(t), gtfs.WithMetrics(application.Metrics))

	api := NewRestAPI(application)
	t.Cleanup(api.Shutdown)
	return api
}

func createTestApi(t *testing.T) *RestAPI {
	return createTestApiWithClock(t, clock.NewMockClock(testNow))
}

func serveApi(t *testing.T, api *RestAPI, endpoint string) *http.Response {
	t.Helper()
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func serveApiAndRetrieveEndpoint(t *testing.T, api *RestAPI, endpoint string) (*http.Response, models.ResponseModel) {
	t.Helper()
	resp := serveApi(t, api, endpoint)
	var model models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&model))
	return resp, model
}

func serveAndRetrieveEndpoint(t *testing.T, endpoint string) (*RestAPI, *http.Response, models.ResponseModel) {
	t.Helper()
	api := createTestApi(t)
	resp, model := serveApiAndRetrieveEndpoint(t, api, endpoint)
	return api, resp, model
}

func entryOf(t *testing.T, model models.ResponseModel) map[string]any {
	t.Helper()
	data, ok := model.Data.(map[string]any)
	require.True(t, ok, "data is %T", model.Data)
	entry, ok := data["entry"].(map[string]any)
	require.True(t, ok, "entry is %T", data["entry"])
	return entry
}

func listOf(t *testing.T, model models.ResponseModel) ([]any, bool) {
	t.Helper()
	data, ok := model.Data.(map[string]any)
	require.True(t, ok, "data is %T", model.Data)
	list, ok := data["list"].([]any)
	require.True(t, ok, "list is %T", data["list"])
	exceeded, _ := data["limitExceeded"].(bool)
	return list, exceeded
}
