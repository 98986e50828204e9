package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"heatmap.tricitytransit.org/internal/extract"
	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/logging"
	"heatmap.tricitytransit.org/internal/normalize"
)

// AgencyReport summarises the extraction of one agency.
type AgencyReport struct {
	ID        string `json:"id"`
	Trips     int    `json:"trips"`
	Visits    int    `json:"visits"`
	Edges     int    `json:"edges"`
	Warnings  int    `json:"warnings"`
	Integrity int    `json:"integrity_errors"`
	Stops     int    `json:"stops"`
}

// BuildReport summarises one graph build. Stats describe the served graph.
type BuildReport struct {
	Agencies  []AgencyReport    `json:"agencies"`
	Normalize *normalize.Report `json:"normalize,omitempty"`
	Stats     graph.Stats       `json:"stats"`
	RawStats  graph.Stats       `json:"raw_stats"`
	Duration  time.Duration     `json:"duration"`
}

// Build is the outcome of one graph build.
type Build struct {
	// Raw keeps every connection, including runs that end at a stop. It is the
	// graph that is exported and persisted.
	Raw *graph.Graph
	// Served is Raw pruned for searching.
	Served *graph.Graph
	Report BuildReport
}

// BuildGraph extracts every agency in parallel, merges the per-agency graphs in
// configuration order and optionally normalizes stop identities. The result is
// kept as built and also pruned to its served view.
func BuildGraph(ctx context.Context, config Config, logger *slog.Logger) (*Build, error) {
	if logger == nil {
		logger = slog.Default()
	}
	builderLogger := logger.With(slog.String("component", "graph_builder"))
	start := time.Now()

	if len(config.Agencies) == 0 {
		return nil, fmt.Errorf("no agencies configured")
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	graphs := make([]*graph.Graph, len(config.Agencies))
	reports := make([]AgencyReport, len(config.Agencies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, agency := range config.Agencies {
		g.Go(func() error {
			built, rep, err := buildAgency(gctx, agency, config.StrictTimes, logger)
			if err != nil {
				return fmt.Errorf("agency %s: %w", agency.ID, err)
			}
			graphs[i], reports[i] = built, rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := graph.Merge(graphs...)
	report := BuildReport{Agencies: reports}

	if config.Normalize {
		normalized, rep, err := normalize.Normalizer{
			MaxMergeDistance: config.MaxMergeDistance,
			Logger:           logger,
		}.Apply(merged)
		if err != nil {
			return nil, err
		}
		merged = normalized
		report.Normalize = &rep
	}

	served := merged.Prune()
	report.Stats = served.Stats()
	report.RawStats = merged.Stats()
	report.Duration = time.Since(start)

	logging.LogOperation(builderLogger, "graph_built",
		slog.Int("agencies", len(config.Agencies)),
		slog.Int("stops", report.Stats.Stops),
		slog.Int("connections", report.Stats.Connections),
		slog.Int("edges", report.Stats.Edges),
		slog.Duration("duration", report.Duration))
	return &Build{Raw: merged, Served: served, Report: report}, nil
}

// buildAgency extracts one agency. logger must not carry a component yet; the
// extractor adds its own.
func buildAgency(ctx context.Context, agency AgencyConfig, strict bool, logger *slog.Logger) (*graph.Graph, AgencyReport, error) {
	rep := AgencyReport{ID: agency.ID}

	strategy, err := agency.strategy()
	if err != nil {
		return nil, rep, err
	}
	tables, err := loadTables(ctx, agency)
	if err != nil {
		return nil, rep, err
	}
	if err := ctx.Err(); err != nil {
		return nil, rep, err
	}

	ex := extract.New(strategy, extract.Options{
		Strict:        strict,
		StopKeyPrefix: agency.StopIDPrefix,
	}, logger.With(slog.String("agency", agency.ID)))
	res, err := ex.Extract(tables)
	if err != nil {
		return nil, rep, err
	}

	b := graph.NewBuilder()
	res.Apply(b)
	built := b.Build()

	rep.Trips = res.Trips
	rep.Visits = len(res.Visits)
	rep.Edges = len(res.Edges)
	rep.Warnings = len(res.Warnings)
	rep.Integrity = len(res.Integrity)
	rep.Stops = built.Len()
	return built, rep, nil
}
