package search

import (
	"fmt"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfstime"
)

// Hop is one stop on a path. The origin hop has no Run.
type Hop struct {
	Stop string
	// Run is the trip run boarded at the previous hop.
	Run string
	// Departure is the scheduled departure from the previous hop.
	Departure gtfstime.TimeOfDay
	// Arrival is the clock time at Stop.
	Arrival       gtfstime.TimeOfDay
	TravelMinutes int
}

type pathNode struct {
	hop  Hop
	prev *pathNode
}

func (n *pathNode) hops() []Hop {
	var out []Hop
	for cur := n; cur != nil; cur = cur.prev {
		out = append(out, cur.hop)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Path finds one route from one stop to another by breadth-first exploration.
// A stop is re-queued whenever it is reached at an earlier clock time, and the
// route is returned as soon as the destination leaves the queue. Hops that
// would arrive after midnight are not taken.
func Path(g *graph.Graph, from, to string, departure gtfstime.TimeOfDay) ([]Hop, error) {
	origin, ok := g.Resolve(from)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchStop, from)
	}
	target, ok := g.Resolve(to)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchStop, to)
	}

	best := map[string]gtfstime.TimeOfDay{origin: departure}
	queue := []*pathNode{{hop: Hop{Stop: origin, Arrival: departure}}}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		cur := node.hop

		if cur.Arrival > best[cur.Stop] {
			continue
		}
		if cur.Stop == target {
			return node.hops(), nil
		}

		stop, ok := g.Stop(cur.Stop)
		if !ok {
			continue
		}
		for _, run := range stop.Runs() {
			conn := stop.Connections[run]
			dep, ok := conn.NextDeparture(cur.Arrival)
			if !ok {
				continue
			}
			for _, dest := range conn.Destinations() {
				travel := conn.ToStations[dest]
				arrival := dep + gtfstime.TimeOfDay(travel*60)
				if int(arrival) >= gtfstime.SecondsPerDay {
					continue
				}
				if prev, seen := best[dest]; seen && prev <= arrival {
					continue
				}
				best[dest] = arrival
				queue = append(queue, &pathNode{
					hop: Hop{
						Stop:          dest,
						Run:           run,
						Departure:     dep,
						Arrival:       arrival,
						TravelMinutes: travel,
					},
					prev: node,
				})
			}
		}
	}

	return nil, fmt.Errorf("%w from %q to %q after %s", ErrNoPath, origin, target, departure)
}
