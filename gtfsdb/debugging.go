package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"heatmap.tricitytransit.org/internal/logging"
)

// PrintSimpleSchema writes every table, index, view and trigger definition to w.
func PrintSimpleSchema(ctx context.Context, db *sql.DB, w io.Writer) error {
	rows, err := db.QueryContext(ctx, `
		SELECT type, name, sql
		FROM sqlite_master
		WHERE type IN ('table', 'index', 'view', 'trigger')
		  AND name NOT LIKE 'sqlite_%'
		  AND sql IS NOT NULL
		ORDER BY type, name
	`)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(rows,
		slog.Default().With(slog.String("component", "debugging")),
		"database_rows")

	if _, err := fmt.Fprintln(w, "DATABASE SCHEMA:\n----------------"); err != nil {
		return err
	}
	for rows.Next() {
		var objType, objName, objSQL string
		if err := rows.Scan(&objType, &objName, &objSQL); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n%s\n\n", strings.ToUpper(objType), objName, objSQL); err != nil {
			return err
		}
	}
	return rows.Err()
}

// tableCountQueries whitelists the tables TableCounts may report.
var tableCountQueries = map[string]string{
	"stops":            "SELECT COUNT(*) FROM stops",
	"stop_ids":         "SELECT COUNT(*) FROM stop_ids",
	"stop_coordinates": "SELECT COUNT(*) FROM stop_coordinates",
	"connections":      "SELECT COUNT(*) FROM connections",
	"departures":       "SELECT COUNT(*) FROM departures",
	"to_stations":      "SELECT COUNT(*) FROM to_stations",
	"import_metadata":  "SELECT COUNT(*) FROM import_metadata",
}

// TableCounts returns row counts for the known tables present in the database.
func (c *Client) TableCounts(ctx context.Context) (map[string]int, error) {
	rows, err := c.DB.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to query table names: %w", err)
	}

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			logging.SafeCloseWithLogging(rows,
				slog.Default().With(slog.String("component", "debugging")),
				"database_rows")
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	// Closed before counting: a :memory: store has a single connection.
	logging.SafeCloseWithLogging(rows,
		slog.Default().With(slog.String("component", "debugging")),
		"database_rows")

	counts := make(map[string]int)
	for _, table := range tables {
		query, ok := tableCountQueries[table]
		if !ok {
			continue
		}
		var count int
		if err := c.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, err
		}
		counts[table] = count
	}
	return counts, nil
}
