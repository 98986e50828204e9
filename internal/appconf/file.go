package appconf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileConfig is the layout of the YAML configuration file.
type FileConfig struct {
	Server ServerSection `yaml:"server"`
	Graph  GraphSection  `yaml:"graph"`
}

type ServerSection struct {
	Port          int      `yaml:"port" validate:"omitempty,gt=0,lte=65535"`
	Env           string   `yaml:"env" validate:"omitempty,oneof=development dev test production prod"`
	ApiKeys       []string `yaml:"api_keys"`
	ExemptApiKeys []string `yaml:"exempt_api_keys"`
	RateLimit     int      `yaml:"rate_limit" validate:"gte=0"`
	Verbose       bool     `yaml:"verbose"`
	TimeZone      string   `yaml:"time_zone"`
}

type GraphSection struct {
	Agencies         []AgencySection `yaml:"agencies" validate:"required,min=1,dive"`
	Normalize        bool            `yaml:"normalize"`
	MaxMergeDistance float64         `yaml:"max_merge_distance" validate:"gte=0"`
	StrictTimes      bool            `yaml:"strict_times"`
	Workers          int             `yaml:"workers" validate:"gte=0"`
	GraphDBPath      string          `yaml:"graph_db_path"`
	SnapshotPath     string          `yaml:"snapshot_path"`
	RefreshInterval  string          `yaml:"refresh_interval"`
}

type AgencySection struct {
	ID              string         `yaml:"id" validate:"required"`
	Source          string         `yaml:"source" validate:"required"`
	StopIDPrefix    string         `yaml:"stop_id_prefix"`
	TripRun         TripRunSection `yaml:"trip_run"`
	AuthHeaderKey   string         `yaml:"auth_header_key"`
	AuthHeaderValue string         `yaml:"auth_header_value"`
}

type TripRunSection struct {
	Strategy  string `yaml:"strategy" validate:"omitempty,oneof=field whole"`
	Separator string `yaml:"separator" validate:"required_if=Strategy field"`
	Index     int    `yaml:"index" validate:"gte=0"`
}

// GraphConfigData carries the graph section to the GTFS manager without this
// package depending on it.
type GraphConfigData struct {
	Agencies         []AgencySection
	Normalize        bool
	MaxMergeDistance float64
	StrictTimes      bool
	Workers          int
	GraphDBPath      string
	SnapshotPath     string
	RefreshInterval  time.Duration
	Env              Environment
	Verbose          bool
}

// LoadFromFile reads and validates a YAML configuration file.
func LoadFromFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *FileConfig) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Graph.RefreshInterval != "" {
		d, err := time.ParseDuration(c.Graph.RefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid configuration: refresh_interval: %w", err)
		}
		if d < time.Minute {
			return fmt.Errorf("invalid configuration: refresh_interval %s is shorter than a minute", d)
		}
	}

	seen := make(map[string]bool, len(c.Graph.Agencies))
	for _, a := range c.Graph.Agencies {
		if seen[a.ID] {
			return fmt.Errorf("invalid configuration: duplicate agency id %q", a.ID)
		}
		seen[a.ID] = true
	}

	if c.Server.TimeZone != "" {
		if _, err := time.LoadLocation(c.Server.TimeZone); err != nil {
			return fmt.Errorf("invalid configuration: time_zone: %w", err)
		}
	}
	return nil
}

// ToAppConfig converts the server section, filling defaults.
func (c *FileConfig) ToAppConfig() Config {
	env, _ := ParseEnvironment(c.Server.Env)
	cfg := Config{
		Port:          c.Server.Port,
		Env:           env,
		ApiKeys:       trimAll(c.Server.ApiKeys),
		ExemptApiKeys: trimAll(c.Server.ExemptApiKeys),
		Verbose:       c.Server.Verbose,
		RateLimit:     c.Server.RateLimit,
		TimeZone:      c.Server.TimeZone,
	}
	if cfg.Port == 0 {
		cfg.Port = 4000
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 100
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = DefaultTimeZone
	}
	return cfg
}

// ToGraphConfigData converts the graph section. Validate must have passed.
func (c *FileConfig) ToGraphConfigData() GraphConfigData {
	env, _ := ParseEnvironment(c.Server.Env)
	refresh := 24 * time.Hour
	if c.Graph.RefreshInterval != "" {
		if d, err := time.ParseDuration(c.Graph.RefreshInterval); err == nil {
			refresh = d
		}
	}
	return GraphConfigData{
		Agencies:         append([]AgencySection(nil), c.Graph.Agencies...),
		Normalize:        c.Graph.Normalize,
		MaxMergeDistance: c.Graph.MaxMergeDistance,
		StrictTimes:      c.Graph.StrictTimes,
		Workers:          c.Graph.Workers,
		GraphDBPath:      c.Graph.GraphDBPath,
		SnapshotPath:     c.Graph.SnapshotPath,
		RefreshInterval:  refresh,
		Env:              env,
		Verbose:          c.Server.Verbose,
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
