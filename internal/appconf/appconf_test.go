package appconf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		input    string
		expected Environment
		wantErr  bool
	}{
		{input: "", expected: Development},
		{input: "development", expected: Development},
		{input: "Test", expected: Test},
		{input: "prod", expected: Production},
		{input: " production ", expected: Production},
		{input: "staging", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			env, err := ParseEnvironment(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, env)
		})
	}
}

func TestEnvironmentString(t *testing.T) {
	assert.Equal(t, "production", Production.String())
	assert.Equal(t, "test", Test.String())
	assert.Equal(t, "development", Development.String())
}

func TestLoadFromFile(t *testing.T) {
	t.Run("loads valid config file", func(t *testing.T) {
		cfg, err := LoadFromFile("testdata/config_valid.yaml")
		require.NoError(t, err)

		app := cfg.ToAppConfig()
		assert.Equal(t, 3000, app.Port)
		assert.Equal(t, Development, app.Env)
		assert.Equal(t, []string{"test"}, app.ApiKeys)
		assert.Equal(t, 100, app.RateLimit)
		assert.True(t, app.Verbose)
		assert.Equal(t, DefaultTimeZone, app.TimeZone)

		graph := cfg.ToGraphConfigData()
		require.Len(t, graph.Agencies, 2)
		assert.Equal(t, "ztm", graph.Agencies[0].ID)
		assert.Equal(t, "ztm:", graph.Agencies[0].StopIDPrefix)
		assert.Equal(t, TripRunSection{Strategy: "field", Separator: "_", Index: 1}, graph.Agencies[0].TripRun)
		assert.Equal(t, "whole", graph.Agencies[1].TripRun.Strategy)
		assert.True(t, graph.Normalize)
		assert.Equal(t, 2, graph.Workers)
		assert.Equal(t, 12*time.Hour, graph.RefreshInterval)
		assert.True(t, graph.Verbose)
	})

	t.Run("fails on invalid config file", func(t *testing.T) {
		cfg, err := LoadFromFile("testdata/config_invalid.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("fails on duplicate agency", func(t *testing.T) {
		_, err := LoadFromFile("testdata/config_duplicate.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate agency id")
	})

	t.Run("fails on malformed YAML", func(t *testing.T) {
		cfg, err := LoadFromFile("testdata/config_malformed.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "failed to parse YAML config")
	})

	t.Run("fails on nonexistent file", func(t *testing.T) {
		cfg, err := LoadFromFile("testdata/nonexistent.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "failed to stat config file")
	})
}

func TestValidateFieldRunNeedsSeparator(t *testing.T) {
	cfg := FileConfig{Graph: GraphSection{Agencies: []AgencySection{{
		ID: "ztm", Source: "ztm.zip", TripRun: TripRunSection{Strategy: "field", Index: 1},
	}}}}
	assert.Error(t, cfg.Validate())

	cfg.Graph.Agencies[0].TripRun.Separator = "_"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRefreshInterval(t *testing.T) {
	cfg := FileConfig{Graph: GraphSection{
		Agencies:        []AgencySection{{ID: "a", Source: "a.zip"}},
		RefreshInterval: "10s",
	}}
	assert.Error(t, cfg.Validate())

	cfg.Graph.RefreshInterval = "soon"
	assert.Error(t, cfg.Validate())

	cfg.Graph.RefreshInterval = "6h"
	assert.NoError(t, cfg.Validate())
}

func TestToGraphConfigDataDefaults(t *testing.T) {
	cfg := FileConfig{Graph: GraphSection{Agencies: []AgencySection{{ID: "a", Source: "a.zip"}}}}
	data := cfg.ToGraphConfigData()
	assert.Equal(t, 24*time.Hour, data.RefreshInterval)
	assert.Equal(t, Development, data.Env)

	app := cfg.ToAppConfig()
	assert.Equal(t, 4000, app.Port)
	assert.Equal(t, 100, app.RateLimit)
}
