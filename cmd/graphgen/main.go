// Command graphgen builds the schedule graph offline from the agencies of a
// config file and writes it as JSON, as a zstd snapshot and into SQLite.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"heatmap.tricitytransit.org/gtfsdb"
	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfs"
	"heatmap.tricitytransit.org/internal/logging"
)

type options struct {
	configPath   string
	jsonPath     string
	snapshotPath string
	dbPath       string
	printSchema  bool
	verbose      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML configuration file with a graph section (required)")
	flag.StringVar(&opts.jsonPath, "json", "", "Write the graph as JSON to this file")
	flag.StringVar(&opts.snapshotPath, "snapshot", "", "Write a zstd snapshot to this file")
	flag.StringVar(&opts.dbPath, "db", "", "Save the graph into this SQLite file")
	flag.BoolVar(&opts.printSchema, "schema", false, "Print the SQLite schema after saving")
	flag.BoolVar(&opts.verbose, "verbose", false, "Debug logging")
	flag.Parse()

	base := logging.NewLogger(os.Stderr, false, opts.verbose)
	slog.SetDefault(base)
	logger := base.With(slog.String("component", "graphgen"))

	if opts.configPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, base); err != nil {
		logging.LogError(logger, "graph generation failed", err)
		os.Exit(1)
	}
}

// run builds the graph and writes the requested outputs. Outputs hold the
// graph as built; pruning happens only when a server loads it.
func run(ctx context.Context, opts options, base *slog.Logger) error {
	logger := base.With(slog.String("component", "graphgen"))

	fileCfg, err := appconf.LoadFromFile(opts.configPath)
	if err != nil {
		return err
	}
	cfg := gtfs.ConfigFromData(fileCfg.ToGraphConfigData())

	build, err := gtfs.BuildGraph(ctx, cfg, base)
	if err != nil {
		return err
	}
	g, report := build.Raw, build.Report
	logging.LogOperation(logger, "graph_built",
		slog.Int("stops", report.Stats.Stops),
		slog.Int("connections", report.Stats.Connections),
		slog.Int("raw_connections", report.RawStats.Connections),
		slog.Int("departures", report.Stats.Departures),
		slog.Int("edges", report.Stats.Edges),
		slog.Duration("duration", report.Duration))
	for _, a := range report.Agencies {
		logging.LogOperation(logger, "agency_extracted",
			slog.String("agency", a.ID),
			slog.Int("trips", a.Trips),
			slog.Int("warnings", a.Warnings),
			slog.Int("integrity_errors", a.Integrity))
	}

	if opts.jsonPath != "" {
		if err := writeFile(opts.jsonPath, logger, func(w *bufio.Writer) error {
			return json.NewEncoder(w).Encode(g)
		}); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	}
	if opts.snapshotPath != "" {
		if err := writeFile(opts.snapshotPath, logger, func(w *bufio.Writer) error {
			return graph.WriteSnapshot(w, g)
		}); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if opts.dbPath != "" {
		if err := saveToStore(ctx, opts, g, cfg, logger); err != nil {
			return err
		}
	}
	return nil
}

func saveToStore(ctx context.Context, opts options, g *graph.Graph, cfg gtfs.Config, logger *slog.Logger) error {
	client, err := gtfsdb.NewClient(gtfsdb.NewConfig(opts.dbPath, appconf.Development, opts.verbose))
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(client, logger, "graph_store")

	written, err := client.SaveGraph(ctx, g, opts.configPath)
	if err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	counts, err := client.TableCounts(ctx)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	logging.LogOperation(logger, "graph_store_updated",
		slog.String("path", opts.dbPath),
		slog.Bool("written", written),
		slog.Int("agencies", len(cfg.Agencies)),
		slog.Int("connections", counts["connections"]),
		slog.Int("departures", counts["departures"]),
		slog.Duration("import_duration", client.LastImportDuration()))

	if opts.printSchema {
		return gtfsdb.PrintSimpleSchema(ctx, client.DB, os.Stdout)
	}
	return nil
}

func writeFile(path string, logger *slog.Logger, write func(*bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(f, logger, path)

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	logging.LogOperation(logger, "file_written", slog.String("path", path))
	return nil
}
