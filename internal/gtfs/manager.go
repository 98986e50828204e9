package gtfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"heatmap.tricitytransit.org/gtfsdb"
	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/logging"
	"heatmap.tricitytransit.org/internal/metrics"
)

// Origins of a published snapshot.
const (
	OriginBuild    = "build"
	OriginSnapshot = "snapshot"
	OriginStore    = "store"
)

// Snapshot is one published graph together with its lookup structures. It is
// never modified after publication.
type Snapshot struct {
	// Graph is the served, pruned graph that queries run on.
	Graph *graph.Graph
	// Raw is the graph as built, terminal connections included. Exports use it.
	Raw     *graph.Graph
	Index   *StopIndex
	Report  BuildReport
	BuiltAt time.Time
	Origin  string
}

func newSnapshot(raw, served *graph.Graph, report BuildReport, origin string) *Snapshot {
	return &Snapshot{
		Graph:   served,
		Raw:     raw,
		Index:   NewStopIndex(served),
		Report:  report,
		BuiltAt: time.Now(),
		Origin:  origin,
	}
}

// Manager owns the served schedule graph. Readers take the current snapshot
// without locking; ForceUpdate builds a new one off to the side and swaps it in.
type Manager struct {
	config Config
	// base has no component attribute; builds derive their own loggers from it.
	base    *slog.Logger
	logger  *slog.Logger
	metrics *metrics.Metrics

	current           atomic.Pointer[Snapshot]
	staticUpdateMutex sync.Mutex

	healthMutex sync.RWMutex
	isHealthy   bool

	GraphDB *gtfsdb.Client

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

func WithMetrics(m *metrics.Metrics) Option {
	return func(manager *Manager) { manager.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(manager *Manager) { manager.logger = l }
}

// InitGraphManager builds the first graph and starts periodic refresh. When the
// build fails it falls back to the snapshot file, then to the graph store, and
// reports unhealthy until a later refresh succeeds.
func InitGraphManager(ctx context.Context, config Config, opts ...Option) (*Manager, error) {
	manager := &Manager{
		config:       config,
		logger:       slog.Default(),
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(manager)
	}
	manager.base = manager.logger
	manager.logger = manager.base.With(slog.String("component", "graph_manager"))

	if config.GraphDBPath != "" {
		client, err := gtfsdb.NewClient(gtfsdb.NewConfig(config.GraphDBPath, config.Env, config.Verbose))
		if err != nil {
			return nil, fmt.Errorf("failed to open graph store: %w", err)
		}
		manager.GraphDB = client
	}

	if err := manager.ForceUpdate(ctx); err != nil {
		logging.LogError(manager.logger, "Initial graph build failed, trying fallbacks", err)
		if fbErr := manager.loadFallback(ctx); fbErr != nil {
			manager.closeStore()
			return nil, errors.Join(err, fbErr)
		}
	}

	if config.RefreshInterval > 0 && config.hasRemoteSource() {
		manager.wg.Add(1)
		go manager.updateGraphPeriodically()
	} else {
		logging.LogOperation(manager.logger, "graph_sources_are_local_skipping_periodic_updates")
	}
	return manager, nil
}

// NewStaticManager serves g as given, without pruning. It never refreshes.
func NewStaticManager(g *graph.Graph, opts ...Option) *Manager {
	manager := &Manager{
		logger:       slog.Default(),
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(manager)
	}
	manager.base = manager.logger
	st := g.Stats()
	manager.publish(newSnapshot(g, g, BuildReport{Stats: st, RawStats: st}, OriginBuild))
	manager.MarkHealthy()
	return manager
}

// Current returns the served snapshot, or nil before the first publication.
func (manager *Manager) Current() *Snapshot {
	return manager.current.Load()
}

// Graph returns the served graph, or nil.
func (manager *Manager) Graph() *graph.Graph {
	if s := manager.Current(); s != nil {
		return s.Graph
	}
	return nil
}

func (manager *Manager) publish(s *Snapshot) {
	manager.current.Store(s)
	manager.metrics.ObserveGraph(s.Graph.Stats())
}

func (manager *Manager) IsHealthy() bool {
	manager.healthMutex.RLock()
	defer manager.healthMutex.RUnlock()
	return manager.isHealthy
}

func (manager *Manager) MarkHealthy() {
	manager.healthMutex.Lock()
	defer manager.healthMutex.Unlock()
	manager.isHealthy = true
}

func (manager *Manager) MarkUnhealthy() {
	manager.healthMutex.Lock()
	defer manager.healthMutex.Unlock()
	manager.isHealthy = false
}

// ForceUpdate rebuilds the graph from all sources and swaps it in. Concurrent
// calls are serialised. On failure the served graph is left as it was.
func (manager *Manager) ForceUpdate(ctx context.Context) error {
	manager.staticUpdateMutex.Lock()
	defer manager.staticUpdateMutex.Unlock()

	start := time.Now()
	build, err := BuildGraph(ctx, manager.config, manager.base)
	if err != nil {
		manager.metrics.ObserveBuild(metrics.BuildFailure, time.Since(start))
		logging.LogError(manager.logger, "Error building graph", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		manager.metrics.ObserveBuild(metrics.BuildFailure, time.Since(start))
		return err
	}

	manager.publish(newSnapshot(build.Raw, build.Served, build.Report, OriginBuild))
	manager.MarkHealthy()
	manager.metrics.ObserveBuild(metrics.BuildSuccess, time.Since(start))
	for _, a := range build.Report.Agencies {
		manager.observeAgency(a)
	}

	manager.persist(ctx, build.Raw)

	logging.LogOperation(manager.logger, "graph_updated_hot_swap",
		slog.Int("stops", build.Report.Stats.Stops),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (manager *Manager) observeAgency(a AgencyReport) {
	if manager.metrics == nil {
		return
	}
	manager.metrics.ExtractWarnings.WithLabelValues(a.ID, "warning").Add(float64(a.Warnings))
	manager.metrics.ExtractWarnings.WithLabelValues(a.ID, "integrity").Add(float64(a.Integrity))
}

// persist writes the raw graph to the snapshot file and the graph store.
// Failures are logged; the graph is already being served.
func (manager *Manager) persist(ctx context.Context, g *graph.Graph) {
	if path := manager.config.SnapshotPath; path != "" {
		if err := writeSnapshotFile(path, g); err != nil {
			logging.LogError(manager.logger, "Failed to write graph snapshot", err,
				slog.String("path", path))
		}
	}
	if manager.GraphDB != nil {
		if _, err := manager.GraphDB.SaveGraph(ctx, g, manager.config.sourceLabel()); err != nil {
			logging.LogError(manager.logger, "Failed to save graph to store", err,
				slog.String("db_path", manager.GraphDB.GetDBPath()))
		}
	}
}

// writeSnapshotFile writes through a temp file and renames it into place.
func writeSnapshotFile(path string, g *graph.Graph) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := graph.WriteSnapshot(tmp, g); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func readSnapshotFile(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(f,
		slog.Default().With(slog.String("component", "graph_manager")),
		"snapshot_file")
	return graph.ReadSnapshot(f)
}

// loadFallback publishes the last persisted graph, pruned again for serving.
// The manager stays unhealthy: the graph may be stale.
func (manager *Manager) loadFallback(ctx context.Context) error {
	var errs []error

	if path := manager.config.SnapshotPath; path != "" {
		g, err := readSnapshotFile(path)
		if err == nil {
			manager.publishFallback(g, OriginSnapshot)
			return nil
		}
		errs = append(errs, fmt.Errorf("snapshot %s: %w", path, err))
	}

	if manager.GraphDB != nil {
		g, err := manager.GraphDB.LoadGraph(ctx)
		if err == nil {
			manager.publishFallback(g, OriginStore)
			return nil
		}
		errs = append(errs, fmt.Errorf("graph store: %w", err))
	}

	if len(errs) == 0 {
		return errors.New("no snapshot path or graph store configured")
	}
	return errors.Join(errs...)
}

func (manager *Manager) publishFallback(raw *graph.Graph, origin string) {
	served := raw.Prune()
	report := BuildReport{Stats: served.Stats(), RawStats: raw.Stats()}
	manager.publish(newSnapshot(raw, served, report, origin))
	manager.MarkUnhealthy()
	manager.metrics.ObserveBuild(metrics.BuildFallback, 0)
	logging.LogWarning(manager.logger, "serving persisted graph",
		slog.String("origin", origin),
		slog.Int("stops", served.Len()))
}

func (manager *Manager) updateGraphPeriodically() {
	defer manager.wg.Done()

	ticker := time.NewTicker(manager.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			err := manager.ForceUpdate(ctx)
			cancel()
			if err != nil {
				logging.LogError(manager.logger, "Periodic graph refresh failed, keeping previous graph", err)
			}
		case <-manager.shutdownChan:
			logging.LogOperation(manager.logger, "shutting_down_graph_updates")
			return
		}
	}
}

func (manager *Manager) closeStore() {
	if manager.GraphDB != nil {
		if err := manager.GraphDB.Close(); err != nil {
			logging.LogError(manager.logger, "Error closing graph store", err)
		}
		manager.GraphDB = nil
	}
}

// Shutdown stops periodic refresh and closes the graph store. Safe to call more
// than once.
func (manager *Manager) Shutdown() {
	manager.shutdownOnce.Do(func() {
		close(manager.shutdownChan)
		manager.wg.Wait()
		manager.staticUpdateMutex.Lock()
		defer manager.staticUpdateMutex.Unlock()
		manager.closeStore()
	})
}
