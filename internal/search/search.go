// Package search answers earliest-arrival queries over a schedule graph.
//
// Edge cost is time dependent: leaving a stop means waiting for the next
// scheduled departure of a run, then riding its travel time. Both searches are
// read-only over the graph and keep all state per query, so any number may run
// against one graph at once.
package search

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfstime"
)

// Unreached marks stops with no arrival in exported arrival maps.
const Unreached = -1

var (
	ErrNoSuchStop = errors.New("no such stop")
	ErrNoPath     = errors.New("no path")
)

// Result holds earliest arrival times, in minutes after the query departure.
type Result struct {
	Origin    string
	Departure gtfstime.TimeOfDay
	// Settled counts the stops finalized by the search.
	Settled int

	best  map[string]int
	stops []string
}

// Arrival returns the earliest arrival at key.
func (r *Result) Arrival(key string) (int, bool) {
	m, ok := r.best[key]
	return m, ok
}

// Reached returns the keys of all reached stops, origin included, sorted.
func (r *Result) Reached() []string {
	out := make([]string, 0, len(r.best))
	for k := range r.best {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of reached stops.
func (r *Result) Len() int { return len(r.best) }

// Times returns an arrival for every stop of the graph, Unreached where none.
func (r *Result) Times() map[string]int {
	out := make(map[string]int, len(r.stops))
	for _, k := range r.stops {
		if m, ok := r.best[k]; ok {
			out[k] = m
		} else {
			out[k] = Unreached
		}
	}
	return out
}

type frontierItem struct {
	minutes int
	stop    string
	// basis is the departure chosen on the leg into stop. Waits for the next
	// leg are measured from it.
	basis gtfstime.TimeOfDay
}

type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].minutes != f[j].minutes {
		return f[i].minutes < f[j].minutes
	}
	return f[i].stop < f[j].stop
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// relax returns the arrival at the far end of a connection edge together with
// the departure taken, or false when the run has no departure left today.
func relax(conn *graph.Connection, at gtfstime.TimeOfDay, current, travel int) (int, gtfstime.TimeOfDay, bool) {
	dep, ok := conn.NextDeparture(at)
	if !ok {
		return 0, 0, false
	}
	candidate := current + gtfstime.WaitMinutes(at, dep) + travel
	if candidate < 0 {
		candidate += gtfstime.MinutesPerDay
	}
	return candidate, dep, true
}

// EarliestArrival runs a label-setting search from origin, which may be a stop
// key or a raw stop id. After a hop, the wait for the next run is counted from
// the departure taken on that hop.
func EarliestArrival(g *graph.Graph, origin string, departure gtfstime.TimeOfDay) (*Result, error) {
	key, ok := g.Resolve(origin)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchStop, origin)
	}

	res := &Result{
		Origin:    key,
		Departure: departure,
		best:      map[string]int{key: 0},
		stops:     g.Keys(),
	}
	settled := make(map[string]bool)

	pq := &frontier{{minutes: 0, stop: key, basis: departure}}
	for pq.Len() > 0 {
		item := heap.Pop(pq).(frontierItem)
		if settled[item.stop] {
			continue
		}
		settled[item.stop] = true

		stop, ok := g.Stop(item.stop)
		if !ok {
			continue
		}
		for _, conn := range stop.Connections {
			for dest, travel := range conn.ToStations {
				if settled[dest] {
					continue
				}
				candidate, dep, ok := relax(conn, item.basis, item.minutes, travel)
				if !ok {
					continue
				}
				if prev, seen := res.best[dest]; seen && prev <= candidate {
					continue
				}
				res.best[dest] = candidate
				heap.Push(pq, frontierItem{minutes: candidate, stop: dest, basis: dep})
			}
		}
	}

	res.Settled = len(settled)
	return res, nil
}
