package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/gtfs"
)

// agencyFlags collects repeated -agency id=source values.
type agencyFlags []gtfs.AgencyConfig

func (a *agencyFlags) String() string {
	parts := make([]string, 0, len(*a))
	for _, ag := range *a {
		parts = append(parts, ag.ID+"="+ag.Source)
	}
	return strings.Join(parts, ",")
}

func (a *agencyFlags) Set(value string) error {
	id, source, ok := strings.Cut(value, "=")
	id, source = strings.TrimSpace(id), strings.TrimSpace(source)
	if !ok || id == "" || source == "" {
		return fmt.Errorf("agency must look like id=source, got %q", value)
	}
	*a = append(*a, gtfs.AgencyConfig{ID: id, Source: source, StopIDPrefix: id + ":"})
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	var (
		cfg        appconf.Config
		graphCfg   gtfs.Config
		agencies   agencyFlags
		env        string
		apiKeys    string
		exemptKeys string
		configPath string
	)

	flag.StringVar(&configPath, "config", envOr("HEATMAP_CONFIG", ""), "YAML configuration file")
	flag.IntVar(&cfg.Port, "port", 4000, "API server port")
	flag.StringVar(&env, "env", envOr("HEATMAP_ENV", "development"), "Environment (development|test|production)")
	flag.StringVar(&apiKeys, "api-keys", envOr("HEATMAP_API_KEYS", "test"), "Comma separated API keys")
	flag.StringVar(&exemptKeys, "exempt-api-keys", envOr("HEATMAP_EXEMPT_API_KEYS", ""), "Comma separated API keys without rate limit")
	flag.IntVar(&cfg.RateLimit, "rate-limit", 100, "Requests per second per API key (0 blocks, negative disables)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Debug logging")
	flag.StringVar(&cfg.TimeZone, "time-zone", envOr("HEATMAP_TIME_ZONE", appconf.DefaultTimeZone), "Zone of schedule clock times")
	flag.Var(&agencies, "agency", "Agency source as id=source (zip URL, zip file or directory); repeatable")
	flag.BoolVar(&graphCfg.Normalize, "normalize", false, "Merge stops sharing a canonical name")
	flag.StringVar(&graphCfg.GraphDBPath, "graph-db", envOr("HEATMAP_GRAPH_DB", ""), "SQLite file holding the last good graph")
	flag.StringVar(&graphCfg.SnapshotPath, "snapshot", envOr("HEATMAP_SNAPSHOT", ""), "zstd snapshot file of the last good graph")
	flag.DurationVar(&graphCfg.RefreshInterval, "refresh", 24*time.Hour, "Rebuild interval for remote sources")
	flag.Parse()

	if configPath != "" {
		fileCfg, err := appconf.LoadFromFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg, graphCfg = applyFlagOverrides(fileCfg, cfg, graphCfg, agencies)
	} else {
		parsed, err := appconf.ParseEnvironment(env)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg.Env = parsed
		cfg.ApiKeys = ParseAPIKeys(apiKeys)
		cfg.ExemptApiKeys = ParseAPIKeys(exemptKeys)
		graphCfg.Agencies = agencies
		graphCfg.Env = cfg.Env
		graphCfg.Verbose = cfg.Verbose
	}

	if len(graphCfg.Agencies) == 0 {
		fmt.Fprintln(os.Stderr, "no agencies configured: pass -agency id=source or -config file")
		flag.Usage()
		os.Exit(2)
	}

	coreApp, err := BuildApplication(cfg, graphCfg)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, srv, api, coreApp); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// applyFlagOverrides starts from the config file and lets explicitly set flags
// win.
func applyFlagOverrides(fileCfg *appconf.FileConfig, flagCfg appconf.Config, flagGraph gtfs.Config, agencies agencyFlags) (appconf.Config, gtfs.Config) {
	cfg := fileCfg.ToAppConfig()
	graphCfg := gtfs.ConfigFromData(fileCfg.ToGraphConfigData())

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = flagCfg.Port
		case "rate-limit":
			cfg.RateLimit = flagCfg.RateLimit
		case "verbose":
			cfg.Verbose = flagCfg.Verbose
			graphCfg.Verbose = flagCfg.Verbose
		case "time-zone":
			cfg.TimeZone = flagCfg.TimeZone
		case "api-keys":
			cfg.ApiKeys = ParseAPIKeys(f.Value.String())
		case "exempt-api-keys":
			cfg.ExemptApiKeys = ParseAPIKeys(f.Value.String())
		case "env":
			if env, err := appconf.ParseEnvironment(f.Value.String()); err == nil {
				cfg.Env = env
				graphCfg.Env = env
			}
		case "agency":
			graphCfg.Agencies = agencies
		case "normalize":
			graphCfg.Normalize = flagGraph.Normalize
		case "graph-db":
			graphCfg.GraphDBPath = flagGraph.GraphDBPath
		case "snapshot":
			graphCfg.SnapshotPath = flagGraph.SnapshotPath
		case "refresh":
			graphCfg.RefreshInterval = flagGraph.RefreshInterval
		}
	})
	return cfg, graphCfg
}
