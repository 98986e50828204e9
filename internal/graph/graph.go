// Package graph holds the schedule graph: stops keyed by identity, each carrying
// per-trip-run connections with a discrete departure schedule and the downstream
// stops reachable on that run.
//
// A Graph is immutable once built. It is only produced by a Builder, Merge, Prune,
// FromRecords or the normalizer, and is safe for any number of concurrent readers.
package graph

import (
	"sort"

	"heatmap.tricitytransit.org/internal/gtfstime"
)

// Coordinate is one WGS84 position sample of a stop.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Connection is the record, at one stop, of one trip run's departures and the
// stops that run reaches afterwards. Callers must treat it as read-only.
type Connection struct {
	// Departures is sorted ascending and holds no duplicates.
	Departures []gtfstime.TimeOfDay
	// ToStations maps destination stop key to travel time in minutes.
	ToStations map[string]int
}

// NextDeparture returns the earliest departure at or after basis.
func (c *Connection) NextDeparture(basis gtfstime.TimeOfDay) (gtfstime.TimeOfDay, bool) {
	i := sort.Search(len(c.Departures), func(i int) bool {
		return c.Departures[i] >= basis
	})
	if i == len(c.Departures) {
		return 0, false
	}
	return c.Departures[i], true
}

// Destinations returns the ToStations keys in sorted order.
func (c *Connection) Destinations() []string {
	keys := make([]string, 0, len(c.ToStations))
	for k := range c.ToStations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Connection) clone() *Connection {
	out := &Connection{
		Departures: append([]gtfstime.TimeOfDay(nil), c.Departures...),
		ToStations: make(map[string]int, len(c.ToStations)),
	}
	for k, v := range c.ToStations {
		out.ToStations[k] = v
	}
	return out
}

// Stop is one logical transit location. Callers must treat it as read-only.
type Stop struct {
	Key         string
	IDs         []string
	Name        string
	Coordinates []Coordinate
	Connections map[string]*Connection
}

// Runs returns the connection keys in sorted order.
func (s *Stop) Runs() []string {
	runs := make([]string, 0, len(s.Connections))
	for r := range s.Connections {
		runs = append(runs, r)
	}
	sort.Strings(runs)
	return runs
}

// Position returns the first coordinate sample, if any.
func (s *Stop) Position() (Coordinate, bool) {
	if len(s.Coordinates) == 0 {
		return Coordinate{}, false
	}
	return s.Coordinates[0], true
}

// Terminal reports whether no connection at the stop leads anywhere.
func (s *Stop) Terminal() bool {
	for _, c := range s.Connections {
		if len(c.ToStations) > 0 {
			return false
		}
	}
	return true
}

// Graph maps stop keys to stops. Stops keep the order in which they were first seen.
type Graph struct {
	stops map[string]*Stop
	order []string
	ids   map[string]string
}

func newGraph(capacity int) *Graph {
	return &Graph{
		stops: make(map[string]*Stop, capacity),
		ids:   make(map[string]string, capacity),
	}
}

// insert adds s, or returns the stop already stored under its key.
func (g *Graph) insert(s *Stop) *Stop {
	if existing, ok := g.stops[s.Key]; ok {
		return existing
	}
	g.stops[s.Key] = s
	g.order = append(g.order, s.Key)
	for _, id := range s.IDs {
		if _, taken := g.ids[id]; !taken {
			g.ids[id] = s.Key
		}
	}
	return s
}

// Len returns the number of stops.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// Stop looks a stop up by key.
func (g *Graph) Stop(key string) (*Stop, bool) {
	if g == nil {
		return nil, false
	}
	s, ok := g.stops[key]
	return s, ok
}

// Keys returns stop keys in first-seen order.
func (g *Graph) Keys() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.order...)
}

// Stops returns the stops in first-seen order.
func (g *Graph) Stops() []*Stop {
	if g == nil {
		return nil
	}
	out := make([]*Stop, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.stops[k])
	}
	return out
}

// ResolveID maps a raw source stop id to the key of the stop that holds it.
func (g *Graph) ResolveID(raw string) (string, bool) {
	if g == nil {
		return "", false
	}
	key, ok := g.ids[raw]
	return key, ok
}

// Resolve accepts either a stop key or a raw stop id.
func (g *Graph) Resolve(ref string) (string, bool) {
	if _, ok := g.Stop(ref); ok {
		return ref, true
	}
	return g.ResolveID(ref)
}

// Stats summarises graph size.
type Stats struct {
	Stops       int `json:"stops"`
	Connections int `json:"connections"`
	Departures  int `json:"departures"`
	Edges       int `json:"edges"`
}

// Stats counts stops, connections, departures and destination edges.
func (g *Graph) Stats() Stats {
	var st Stats
	if g == nil {
		return st
	}
	st.Stops = len(g.order)
	for _, s := range g.stops {
		st.Connections += len(s.Connections)
		for _, c := range s.Connections {
			st.Departures += len(c.Departures)
			st.Edges += len(c.ToStations)
		}
	}
	return st
}
