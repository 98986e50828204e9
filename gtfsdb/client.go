// Package gtfsdb persists schedule graphs in SQLite so a server can start from
// the last good build when its feeds are unreachable.
package gtfsdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/logging"
)

// ErrNoGraph is returned by LoadGraph when nothing was saved yet.
var ErrNoGraph = errors.New("no graph stored")

// Client is the main entry point for the library
type Client struct {
	config     Config
	DB         *sql.DB
	logger     *slog.Logger
	lastImport time.Duration
}

// ImportMetadata describes the stored graph.
type ImportMetadata struct {
	FileHash   string
	ImportTime time.Time
	FileSource string
	StopCount  int
}

// NewClient creates a new Client with the provided configuration
func NewClient(config Config) (*Client, error) {
	logger := slog.Default().With(slog.String("component", "graph_store"))

	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create DB: %w", err)
	} else if config.verbose {
		logging.LogOperation(logger, "graph_store_tables_created",
			slog.String("path", config.DBPath))
	}

	return &Client{
		config: config,
		DB:     db,
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) GetDBPath() string {
	return c.config.DBPath
}

// LastImportDuration reports how long the most recent SaveGraph took.
func (c *Client) LastImportDuration() time.Duration {
	return c.lastImport
}

// graphHash fingerprints a graph by its wire encoding, which is deterministic.
func graphHash(g *graph.Graph) (string, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// SaveGraph replaces the stored graph with g. It reports false when the stored
// graph already has the same content and source, in which case nothing is written.
func (c *Client) SaveGraph(ctx context.Context, g *graph.Graph, source string) (bool, error) {
	startTime := time.Now()

	hashStr, err := graphHash(g)
	if err != nil {
		return false, fmt.Errorf("error hashing graph: %w", err)
	}

	existing, err := c.ImportMetadata(ctx)
	switch {
	case err == nil:
		if existing.FileHash == hashStr && existing.FileSource == source {
			logging.LogOperation(c.logger, "graph_unchanged_skipping_import",
				slog.String("hash", hashStr[:8]))
			return false, nil
		}
		logging.LogOperation(c.logger, "graph_changed_reimporting",
			slog.String("old_hash", shortHash(existing.FileHash)),
			slog.String("new_hash", hashStr[:8]))
	case errors.Is(err, ErrNoGraph):
	default:
		return false, fmt.Errorf("error checking import metadata: %w", err)
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer logging.SafeRollbackWithLogging(tx, c.logger, "save_graph")

	if err := clearGraph(ctx, tx); err != nil {
		return false, fmt.Errorf("error clearing stored graph: %w", err)
	}
	if err := insertGraph(ctx, tx, g); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO import_metadata (id, file_hash, import_time, file_source, stop_count)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			file_hash = excluded.file_hash,
			import_time = excluded.import_time,
			file_source = excluded.file_source,
			stop_count = excluded.stop_count`,
		hashStr, time.Now().Unix(), source, g.Len()); err != nil {
		return false, fmt.Errorf("error updating import metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	c.lastImport = time.Since(startTime)
	logging.LogOperation(c.logger, "graph_saved",
		slog.Int("stops", g.Len()),
		slog.String("source", source),
		slog.Duration("duration", c.lastImport))
	return true, nil
}

// ImportMetadata returns the metadata of the stored graph, or ErrNoGraph.
func (c *Client) ImportMetadata(ctx context.Context) (ImportMetadata, error) {
	var (
		m        ImportMetadata
		imported int64
	)
	err := c.DB.QueryRowContext(ctx,
		`SELECT file_hash, import_time, file_source, stop_count FROM import_metadata WHERE id = 1`).
		Scan(&m.FileHash, &imported, &m.FileSource, &m.StopCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportMetadata{}, ErrNoGraph
	}
	if err != nil {
		return ImportMetadata{}, err
	}
	m.ImportTime = time.Unix(imported, 0)
	return m, nil
}

// LoadGraph reads the stored graph back, stops in their saved order.
func (c *Client) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	if _, err := c.ImportMetadata(ctx); err != nil {
		return nil, err
	}

	records, index, err := c.loadStops(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.loadStopIDs(ctx, records, index); err != nil {
		return nil, err
	}
	if err := c.loadCoordinates(ctx, records, index); err != nil {
		return nil, err
	}
	if err := c.loadConnections(ctx, records, index); err != nil {
		return nil, err
	}

	g, err := graph.FromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("stored graph is invalid: %w", err)
	}
	logging.LogOperation(c.logger, "graph_loaded_from_store",
		slog.Int("stops", g.Len()))
	return g, nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
