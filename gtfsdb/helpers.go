package gtfsdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfstime"
	"heatmap.tricitytransit.org/internal/logging"
)

//go:embed schema.sql
var ddl string

// createDB opens the database and brings its schema up to date.
func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.DBPath)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := configureSQLitePerformance(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring SQLite performance: %w", err)
	}

	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	configureConnectionPool(db, config)
	return db, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	statements := strings.Split(ddl, "-- migrate")
	for _, stmt := range statements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmedStmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmedStmt, err)
		}
	}
	return nil
}

// configureSQLitePerformance applies PRAGMA settings for bulk graph writes.
func configureSQLitePerformance(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		name        string
		description string
	}{
		{"PRAGMA cache_size=-64000", "Set cache size to 64MB"},
		{"PRAGMA temp_store=MEMORY", "Store temporary data in memory"},
	}

	logger := slog.Default().With(slog.String("component", "sqlite_performance"))

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma.name); err != nil {
			logging.LogError(logger, fmt.Sprintf("Failed to set %s", pragma.description), err)
			return fmt.Errorf("failed to execute %s: %w", pragma.name, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	logging.LogOperation(logger, "sqlite_performance_settings_applied",
		slog.Int("pragma_count", len(pragmas)))
	return nil
}

// configureConnectionPool sets pool limits. Every connection to a :memory:
// database opens a separate database, so those get exactly one.
func configureConnectionPool(db *sql.DB, config Config) {
	if config.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// clearGraph deletes in reverse dependency order.
func clearGraph(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"to_stations", "departures", "connections", "stop_coordinates", "stop_ids", "stops"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

type graphStatements struct {
	stop, stopID, coordinate, connection, departure, toStation *sql.Stmt
}

func prepareGraphStatements(ctx context.Context, tx *sql.Tx) (*graphStatements, error) {
	var (
		st  graphStatements
		err error
	)
	prepare := func(dst **sql.Stmt, query string) {
		if err != nil {
			return
		}
		*dst, err = tx.PrepareContext(ctx, query)
	}
	prepare(&st.stop, `INSERT INTO stops (key, position, name) VALUES (?, ?, ?)`)
	prepare(&st.stopID, `INSERT INTO stop_ids (stop_key, raw_id, position) VALUES (?, ?, ?)`)
	prepare(&st.coordinate, `INSERT INTO stop_coordinates (stop_key, position, lat, lon) VALUES (?, ?, ?, ?)`)
	prepare(&st.connection, `INSERT INTO connections (stop_key, run) VALUES (?, ?)`)
	prepare(&st.departure, `INSERT INTO departures (connection_id, seconds) VALUES (?, ?)`)
	prepare(&st.toStation, `INSERT INTO to_stations (connection_id, dest_key, minutes) VALUES (?, ?, ?)`)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	return &st, nil
}

func (st *graphStatements) close() {
	for _, s := range []*sql.Stmt{st.stop, st.stopID, st.coordinate, st.connection, st.departure, st.toStation} {
		if s != nil {
			_ = s.Close()
		}
	}
}

// insertGraph writes every stop of g. Stops go in first so destination keys
// always refer to stored stops.
func insertGraph(ctx context.Context, tx *sql.Tx, g *graph.Graph) error {
	st, err := prepareGraphStatements(ctx, tx)
	if err != nil {
		return err
	}
	defer st.close()

	stops := g.Stops()
	for pos, s := range stops {
		if _, err := st.stop.ExecContext(ctx, s.Key, pos, s.Name); err != nil {
			return fmt.Errorf("insert stop %q: %w", s.Key, err)
		}
		for i, id := range s.IDs {
			if _, err := st.stopID.ExecContext(ctx, s.Key, id, i); err != nil {
				return fmt.Errorf("insert stop id %q: %w", id, err)
			}
		}
		for i, c := range s.Coordinates {
			if _, err := st.coordinate.ExecContext(ctx, s.Key, i, c.Lat, c.Lon); err != nil {
				return fmt.Errorf("insert coordinate of %q: %w", s.Key, err)
			}
		}
	}

	for _, s := range stops {
		for _, run := range s.Runs() {
			conn := s.Connections[run]
			res, err := st.connection.ExecContext(ctx, s.Key, run)
			if err != nil {
				return fmt.Errorf("insert connection %q at %q: %w", run, s.Key, err)
			}
			connID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for _, d := range conn.Departures {
				if _, err := st.departure.ExecContext(ctx, connID, d.Seconds()); err != nil {
					return fmt.Errorf("insert departure %s of %q: %w", d, run, err)
				}
			}
			for _, dest := range conn.Destinations() {
				if _, err := st.toStation.ExecContext(ctx, connID, dest, conn.ToStations[dest]); err != nil {
					return fmt.Errorf("insert destination %q of %q: %w", dest, run, err)
				}
			}
		}
	}
	return nil
}

func (c *Client) loadStops(ctx context.Context) ([]graph.StopRecord, map[string]int, error) {
	rows, err := c.DB.QueryContext(ctx, `SELECT key, name FROM stops ORDER BY position`)
	if err != nil {
		return nil, nil, fmt.Errorf("query stops: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "stop_rows")

	var records []graph.StopRecord
	index := make(map[string]int)
	for rows.Next() {
		var r graph.StopRecord
		if err := rows.Scan(&r.Key, &r.Name); err != nil {
			return nil, nil, err
		}
		r.Connections = make(map[string]graph.ConnectionRecord)
		index[r.Key] = len(records)
		records = append(records, r)
	}
	return records, index, rows.Err()
}

func (c *Client) loadStopIDs(ctx context.Context, records []graph.StopRecord, index map[string]int) error {
	rows, err := c.DB.QueryContext(ctx, `SELECT stop_key, raw_id FROM stop_ids ORDER BY stop_key, position`)
	if err != nil {
		return fmt.Errorf("query stop ids: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "stop_id_rows")

	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return err
		}
		if i, ok := index[key]; ok {
			records[i].IDs = append(records[i].IDs, id)
		}
	}
	return rows.Err()
}

func (c *Client) loadCoordinates(ctx context.Context, records []graph.StopRecord, index map[string]int) error {
	rows, err := c.DB.QueryContext(ctx, `SELECT stop_key, lat, lon FROM stop_coordinates ORDER BY stop_key, position`)
	if err != nil {
		return fmt.Errorf("query coordinates: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "coordinate_rows")

	for rows.Next() {
		var (
			key string
			co  graph.Coordinate
		)
		if err := rows.Scan(&key, &co.Lat, &co.Lon); err != nil {
			return err
		}
		if i, ok := index[key]; ok {
			records[i].Coordinates = append(records[i].Coordinates, co)
		}
	}
	return rows.Err()
}

type connectionRef struct {
	stop int
	run  string
}

func (c *Client) loadConnections(ctx context.Context, records []graph.StopRecord, index map[string]int) error {
	rows, err := c.DB.QueryContext(ctx, `SELECT id, stop_key, run FROM connections`)
	if err != nil {
		return fmt.Errorf("query connections: %w", err)
	}
	refs := make(map[int64]connectionRef)
	for rows.Next() {
		var (
			id       int64
			key, run string
		)
		if err := rows.Scan(&id, &key, &run); err != nil {
			logging.SafeCloseWithLogging(rows, c.logger, "connection_rows")
			return err
		}
		if i, ok := index[key]; ok {
			refs[id] = connectionRef{stop: i, run: run}
			records[i].Connections[run] = graph.ConnectionRecord{ToStations: map[string]int{}}
		}
	}
	err = rows.Err()
	logging.SafeCloseWithLogging(rows, c.logger, "connection_rows")
	if err != nil {
		return err
	}

	if err := c.loadDepartures(ctx, records, refs); err != nil {
		return err
	}
	return c.loadToStations(ctx, records, refs)
}

func (c *Client) loadDepartures(ctx context.Context, records []graph.StopRecord, refs map[int64]connectionRef) error {
	rows, err := c.DB.QueryContext(ctx, `SELECT connection_id, seconds FROM departures ORDER BY connection_id, seconds`)
	if err != nil {
		return fmt.Errorf("query departures: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "departure_rows")

	for rows.Next() {
		var id, seconds int64
		if err := rows.Scan(&id, &seconds); err != nil {
			return err
		}
		ref, ok := refs[id]
		if !ok {
			continue
		}
		cr := records[ref.stop].Connections[ref.run]
		cr.Departures = append(cr.Departures, gtfstime.TimeOfDay(seconds))
		records[ref.stop].Connections[ref.run] = cr
	}
	return rows.Err()
}

func (c *Client) loadToStations(ctx context.Context, records []graph.StopRecord, refs map[int64]connectionRef) error {
	rows, err := c.DB.QueryContext(ctx, `SELECT connection_id, dest_key, minutes FROM to_stations`)
	if err != nil {
		return fmt.Errorf("query destinations: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "destination_rows")

	for rows.Next() {
		var (
			id      int64
			dest    string
			minutes int
		)
		if err := rows.Scan(&id, &dest, &minutes); err != nil {
			return err
		}
		if ref, ok := refs[id]; ok {
			records[ref.stop].Connections[ref.run].ToStations[dest] = minutes
		}
	}
	return rows.Err()
}
