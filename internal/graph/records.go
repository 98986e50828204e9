package graph

import (
	"fmt"

	"heatmap.tricitytransit.org/internal/gtfstime"
)

// StopRecord is the decoded form of one stop, as read back from a serialized
// graph or the graph store.
type StopRecord struct {
	Key         string
	IDs         []string
	Name        string
	Coordinates []Coordinate
	Connections map[string]ConnectionRecord
}

// ConnectionRecord is the decoded form of one connection.
type ConnectionRecord struct {
	Departures []gtfstime.TimeOfDay
	ToStations map[string]int
}

// FromRecords assembles a graph from decoded stops, keeping their order.
func FromRecords(records []StopRecord) (*Graph, error) {
	g := newGraph(len(records))
	for _, r := range records {
		if r.Key == "" {
			return nil, fmt.Errorf("stop record without key (name %q)", r.Name)
		}
		if _, dup := g.stops[r.Key]; dup {
			return nil, fmt.Errorf("duplicate stop key %q", r.Key)
		}

		ids := r.IDs
		if len(ids) == 0 {
			ids = []string{r.Key}
		}
		s := &Stop{
			Key:         r.Key,
			IDs:         append([]string(nil), ids...),
			Name:        r.Name,
			Coordinates: append([]Coordinate(nil), r.Coordinates...),
			Connections: make(map[string]*Connection, len(r.Connections)),
		}

		for run, cr := range r.Connections {
			set := make(map[gtfstime.TimeOfDay]struct{}, len(cr.Departures))
			for _, d := range cr.Departures {
				if d < 0 || int(d) >= gtfstime.SecondsPerDay {
					return nil, fmt.Errorf("stop %q run %q: departure %d outside the day", r.Key, run, int(d))
				}
				set[d] = struct{}{}
			}
			to := make(map[string]int, len(cr.ToStations))
			for dest, minutes := range cr.ToStations {
				if minutes < 0 {
					return nil, fmt.Errorf("stop %q run %q: negative travel time %d to %q", r.Key, run, minutes, dest)
				}
				to[dest] = minutes
			}
			s.Connections[run] = &Connection{
				Departures: sortedDepartures(set),
				ToStations: to,
			}
		}
		g.insert(s)
	}
	return g, nil
}

// Records flattens g into decoded stop records, in graph order.
func (g *Graph) Records() []StopRecord {
	out := make([]StopRecord, 0, g.Len())
	for _, s := range g.Stops() {
		r := StopRecord{
			Key:         s.Key,
			IDs:         append([]string(nil), s.IDs...),
			Name:        s.Name,
			Coordinates: append([]Coordinate(nil), s.Coordinates...),
			Connections: make(map[string]ConnectionRecord, len(s.Connections)),
		}
		for run, c := range s.Connections {
			cc := c.clone()
			r.Connections[run] = ConnectionRecord{Departures: cc.Departures, ToStations: cc.ToStations}
		}
		out = append(out, r)
	}
	return out
}
