package gtfsdb

import "heatmap.tricitytransit.org/internal/appconf"

// Config configures the graph store.
type Config struct {
	// DBPath is a file path or ":memory:".
	DBPath  string
	Env     appconf.Environment
	verbose bool
}

func NewConfig(dbPath string, env appconf.Environment, verbose bool) Config {
	return Config{
		DBPath:  dbPath,
		Env:     env,
		verbose: verbose,
	}
}
