package graph

import (
	"sort"

	"heatmap.tricitytransit.org/internal/gtfstime"
)

// StopInfo is the stop-table metadata for one raw stop.
type StopInfo struct {
	Key         string
	ID          string
	Name        string
	Coordinate  Coordinate
	HasPosition bool
}

// Visit is one trip occurrence passing a stop.
type Visit struct {
	Stop      string
	Run       string
	TripID    string
	Sequence  int
	Departure gtfstime.Time
}

// Edge says that the trip of Visit, leaving Visit.Stop, reaches Destination after
// TravelMinutes.
type Edge struct {
	Visit
	Destination   string
	TravelMinutes int
}

type occurrence struct {
	tripID   string
	sequence int
}

type connectionState struct {
	conn       *Connection
	first      occurrence
	departures map[gtfstime.TimeOfDay]struct{}
}

// Builder owns all intermediate state of a graph build. Nothing it holds is
// visible outside until Build returns.
type Builder struct {
	info  map[string]StopInfo
	graph *Graph
	conns map[string]map[string]*connectionState
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	b := &Builder{}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.info = make(map[string]StopInfo)
	b.graph = newGraph(0)
	b.conns = make(map[string]map[string]*connectionState)
}

// AddStop registers stop-table metadata. Stops only enter the graph once a trip
// visits them.
func (b *Builder) AddStop(info StopInfo) {
	if info.Key == "" {
		info.Key = info.ID
	}
	if _, exists := b.info[info.Key]; exists {
		return
	}
	b.info[info.Key] = info
}

func (b *Builder) stop(key string) *Stop {
	if s, ok := b.graph.stops[key]; ok {
		return s
	}
	s := &Stop{Key: key, Name: key, Connections: make(map[string]*Connection)}
	if info, ok := b.info[key]; ok {
		s.Name = info.Name
		if info.ID != "" {
			s.IDs = []string{info.ID}
		}
		if info.HasPosition {
			s.Coordinates = []Coordinate{info.Coordinate}
		}
	} else {
		s.IDs = []string{key}
	}
	return b.graph.insert(s)
}

// visit folds one trip occurrence into the (stop, run) connection and reports
// whether this occurrence is the one that defines the destination set.
func (b *Builder) visit(v Visit) (*connectionState, bool) {
	s := b.stop(v.Stop)
	runs, ok := b.conns[v.Stop]
	if !ok {
		runs = make(map[string]*connectionState)
		b.conns[v.Stop] = runs
	}

	occ := occurrence{tripID: v.TripID, sequence: v.Sequence}
	dep := v.Departure.Normalize()

	st, ok := runs[v.Run]
	if !ok {
		st = &connectionState{
			conn:       &Connection{ToStations: make(map[string]int)},
			first:      occ,
			departures: map[gtfstime.TimeOfDay]struct{}{dep: {}},
		}
		runs[v.Run] = st
		s.Connections[v.Run] = st.conn
		return st, true
	}

	st.departures[dep] = struct{}{}
	return st, st.first == occ
}

// AddVisit records a departure without a destination, as for the last stop of a trip.
func (b *Builder) AddVisit(v Visit) {
	b.visit(v)
}

// AddEdge folds an edge into the graph. The first trip occurrence of a run at a
// stop fixes its destinations; later occurrences only add departure times.
func (b *Builder) AddEdge(e Edge) {
	st, defining := b.visit(e.Visit)
	b.stop(e.Destination)
	if !defining {
		return
	}
	if prev, ok := st.conn.ToStations[e.Destination]; ok && prev <= e.TravelMinutes {
		return
	}
	st.conn.ToStations[e.Destination] = e.TravelMinutes
}

// Build returns the finished graph and resets the builder.
func (b *Builder) Build() *Graph {
	for _, runs := range b.conns {
		for _, st := range runs {
			st.conn.Departures = sortedDepartures(st.departures)
		}
	}
	g := b.graph
	b.reset()
	return g
}

func sortedDepartures(set map[gtfstime.TimeOfDay]struct{}) []gtfstime.TimeOfDay {
	out := make([]gtfstime.TimeOfDay, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
