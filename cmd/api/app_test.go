package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/gtfs"
)

func testAppConfig(port int) appconf.Config {
	return appconf.Config{
		Port:      port,
		Env:       appconf.Test,
		ApiKeys:   []string{"test"},
		RateLimit: 100,
		TimeZone:  appconf.DefaultTimeZone,
	}
}

func testGraphConfig() gtfs.Config {
	return gtfs.Config{
		Agencies: []gtfs.AgencyConfig{
			{ID: "ztm", Source: "../../internal/gtfs/testdata/ztm", StopIDPrefix: "ztm:", TripRun: "field", TripRunSep: "_", TripRunIndex: 1},
			{ID: "skm", Source: "../../internal/gtfs/testdata/skm", StopIDPrefix: "skm:"},
		},
		Env: appconf.Test,
	}
}

func TestParseAPIKeys(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "Single key", input: "test-key", expected: []string{"test-key"}},
		{name: "Multiple keys", input: "key1,key2,key3", expected: []string{"key1", "key2", "key3"}},
		{name: "Keys with spaces", input: " key1 , key2 , key3 ", expected: []string{"key1", "key2", "key3"}},
		{name: "Empty string", input: "", expected: []string{}},
		{name: "Single key with whitespace", input: "  test-key  ", expected: []string{"test-key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAPIKeys(tt.input))
		})
	}
}

func TestParseAPIKeysEdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "Only commas", input: ",,,", expected: []string{"", "", "", ""}},
		{name: "Commas with spaces", input: " , , , ", expected: []string{"", "", "", ""}},
		{name: "Trailing comma", input: "key1,", expected: []string{"key1", ""}},
		{name: "Leading comma", input: ",key1", expected: []string{"", "key1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAPIKeys(tt.input))
		})
	}
}

func TestBuildApplication(t *testing.T) {
	cfg := testAppConfig(4000)
	graphCfg := testGraphConfig()

	coreApp, err := BuildApplication(cfg, graphCfg)
	require.NoError(t, err, "BuildApplication should not return an error")
	t.Cleanup(coreApp.GraphManager.Shutdown)

	assert.NotNil(t, coreApp.Logger, "Logger should be initialized")
	assert.NotNil(t, coreApp.Metrics)
	assert.Equal(t, cfg, coreApp.Config, "Config should match input")
	assert.Equal(t, graphCfg, coreApp.GraphConfig)
	assert.Equal(t, "Europe/Warsaw", coreApp.ServiceLocation().String())

	require.NotNil(t, coreApp.GraphManager, "graph manager should be initialized")
	assert.True(t, coreApp.GraphManager.IsHealthy())
	assert.Equal(t, 5, coreApp.GraphManager.Graph().Len())
}

func TestBuildApplicationFakeClock(t *testing.T) {
	t.Setenv(fakeTimeEnv, "2025-01-15 07:50:00")

	coreApp, err := BuildApplication(testAppConfig(4000), testGraphConfig())
	require.NoError(t, err)
	t.Cleanup(coreApp.GraphManager.Shutdown)

	assert.Equal(t, time.Date(2025, 1, 15, 6, 50, 0, 0, time.UTC), coreApp.Clock.Now().UTC())
}

func TestBuildApplicationErrorHandling(t *testing.T) {
	t.Run("handles missing agency source", func(t *testing.T) {
		graphCfg := testGraphConfig()
		graphCfg.Agencies[0].Source = "/nonexistent/path/to/ztm.zip"

		_, err := BuildApplication(testAppConfig(4000), graphCfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize graph manager")
	})

	t.Run("handles unknown time zone", func(t *testing.T) {
		cfg := testAppConfig(4000)
		cfg.TimeZone = "Mars/Olympus_Mons"

		_, err := BuildApplication(cfg, testGraphConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid time zone")
	})
}

func TestCreateServer(t *testing.T) {
	cfg := testAppConfig(8080)
	coreApp, err := BuildApplication(cfg, testGraphConfig())
	require.NoError(t, err, "BuildApplication should not fail")
	t.Cleanup(coreApp.GraphManager.Shutdown)

	srv, api := CreateServer(coreApp, cfg)
	defer api.Shutdown()

	assert.Equal(t, ":8080", srv.Addr, "Server address should match port")
	assert.NotNil(t, srv.Handler, "Server handler should be set")
	assert.Equal(t, time.Minute, srv.IdleTimeout, "IdleTimeout should be 1 minute")
	assert.Equal(t, 5*time.Second, srv.ReadTimeout, "ReadTimeout should be 5 seconds")
	assert.Equal(t, 10*time.Second, srv.WriteTimeout, "WriteTimeout should be 10 seconds")
}

func TestCreateServerHandlerResponds(t *testing.T) {
	cfg := testAppConfig(8080)
	coreApp, err := BuildApplication(cfg, testGraphConfig())
	require.NoError(t, err)
	t.Cleanup(coreApp.GraphManager.Shutdown)

	srv, api := CreateServer(coreApp, cfg)
	defer api.Shutdown()

	tests := []struct {
		path string
		code int
	}{
		{path: "/api/heatmap/ztm:100.json?key=test&departure=07:00", code: http.StatusOK},
		{path: "/api/current-time.json?key=test", code: http.StatusOK},
		{path: "/api/current-time.json", code: http.StatusUnauthorized},
		{path: "/healthz", code: http.StatusOK},
		{path: "/metrics", code: http.StatusOK},
		{path: "/", code: http.StatusOK},
		{path: "/debug?dataType=stats", code: http.StatusOK},
		{path: "/api/where/current-time.json", code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "every response carries a request id")
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testAppConfig(0)
	coreApp, err := BuildApplication(cfg, testGraphConfig())
	require.NoError(t, err)

	srv, api := CreateServer(coreApp, cfg)
	srv.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, api, coreApp) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "Server should shutdown cleanly")
	case <-time.After(10 * time.Second):
		t.Fatal("Test timeout - server did not shutdown")
	}
}

func TestAgencyFlags(t *testing.T) {
	var agencies agencyFlags
	require.NoError(t, agencies.Set("ztm=https://example.com/ztm.zip"))
	require.NoError(t, agencies.Set(" skm = ./feeds/skm "))
	assert.Error(t, agencies.Set("ztm"))
	assert.Error(t, agencies.Set("=feed.zip"))

	require.Len(t, agencies, 2)
	assert.Equal(t, gtfs.AgencyConfig{ID: "skm", Source: "./feeds/skm", StopIDPrefix: "skm:"}, agencies[1])
	assert.Equal(t, "ztm=https://example.com/ztm.zip,skm=./feeds/skm", agencies.String())
}

func TestConfigFileWithoutFlagOverrides(t *testing.T) {
	fileCfg, err := appconf.LoadFromFile("../../internal/appconf/testdata/config_valid.yaml")
	require.NoError(t, err)

	cfg, graphCfg := applyFlagOverrides(fileCfg, appconf.Config{Port: 1}, gtfs.Config{}, nil)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, []string{"test"}, cfg.ApiKeys)
	require.Len(t, graphCfg.Agencies, 2)
	assert.Equal(t, "ztm", graphCfg.Agencies[0].ID)
	assert.Equal(t, "field", graphCfg.Agencies[0].TripRun)
	assert.True(t, graphCfg.Normalize)
}
