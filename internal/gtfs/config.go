package gtfs

import (
	"strings"
	"time"

	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/extract"
)

// AgencyConfig describes one schedule source.
type AgencyConfig struct {
	ID string
	// Source is an http(s) URL of a GTFS zip, a local zip file, or a directory
	// holding stops.txt and stop_times.txt.
	Source          string
	StopIDPrefix    string
	TripRun         string
	TripRunSep      string
	TripRunIndex    int
	AuthHeaderKey   string
	AuthHeaderValue string
}

// Config holds graph build configuration for the manager.
type Config struct {
	Agencies         []AgencyConfig
	Normalize        bool
	MaxMergeDistance float64
	StrictTimes      bool
	Workers          int
	GraphDBPath      string
	SnapshotPath     string
	RefreshInterval  time.Duration
	Env              appconf.Environment
	Verbose          bool
}

// ConfigFromData converts the validated graph section of the config file.
func ConfigFromData(d appconf.GraphConfigData) Config {
	cfg := Config{
		Normalize:        d.Normalize,
		MaxMergeDistance: d.MaxMergeDistance,
		StrictTimes:      d.StrictTimes,
		Workers:          d.Workers,
		GraphDBPath:      d.GraphDBPath,
		SnapshotPath:     d.SnapshotPath,
		RefreshInterval:  d.RefreshInterval,
		Env:              d.Env,
		Verbose:          d.Verbose,
	}
	for _, a := range d.Agencies {
		cfg.Agencies = append(cfg.Agencies, AgencyConfig{
			ID:              a.ID,
			Source:          a.Source,
			StopIDPrefix:    a.StopIDPrefix,
			TripRun:         a.TripRun.Strategy,
			TripRunSep:      a.TripRun.Separator,
			TripRunIndex:    a.TripRun.Index,
			AuthHeaderKey:   a.AuthHeaderKey,
			AuthHeaderValue: a.AuthHeaderValue,
		})
	}
	return cfg
}

func (a AgencyConfig) strategy() (extract.TripRunStrategy, error) {
	return extract.NewTripRunStrategy(a.TripRun, a.TripRunSep, a.TripRunIndex)
}

func (a AgencyConfig) isRemote() bool {
	s := strings.ToLower(a.Source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// hasRemoteSource reports whether any agency is fetched over HTTP. Graphs built
// only from local files are not refreshed periodically.
func (config Config) hasRemoteSource() bool {
	for _, a := range config.Agencies {
		if a.isRemote() {
			return true
		}
	}
	return false
}

// sourceLabel names the set of sources for import metadata.
func (config Config) sourceLabel() string {
	parts := make([]string, 0, len(config.Agencies))
	for _, a := range config.Agencies {
		parts = append(parts, a.ID+"="+a.Source)
	}
	return strings.Join(parts, ";")
}
