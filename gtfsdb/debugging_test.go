package gtfsdb

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableCounts(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	client := &Client{DB: db}

	_, err = db.Exec(`
		CREATE TABLE stops (key TEXT);
		INSERT INTO stops VALUES ('a'), ('b');

		CREATE TABLE connections (id INTEGER);
		INSERT INTO connections VALUES (1);

		-- Create a table NOT in the whitelist to ensure it's ignored
		CREATE TABLE secret_table (id TEXT);
	`)
	require.NoError(t, err)

	counts, err := client.TableCounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, counts["stops"], "Should count stops correctly")
	assert.Equal(t, 1, counts["connections"], "Should count connections correctly")

	_, exists := counts["secret_table"]
	assert.False(t, exists, "Should not include tables outside the whitelist")
}

func TestPrintSimpleSchema(t *testing.T) {
	client := newTestClient(t)

	var buf bytes.Buffer
	require.NoError(t, PrintSimpleSchema(context.Background(), client.DB, &buf))
	assert.Contains(t, buf.String(), "TABLE: stops")
	assert.Contains(t, buf.String(), "INDEX: idx_connections_stop_key")
}
