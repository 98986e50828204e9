package gtfs

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/utils"
)

// CoordinateTolerance is how far apart, in degrees, a queried coordinate and a
// stop sample may be while still naming that stop.
const CoordinateTolerance = 1e-5

// StopMatch is a stop found by a spatial or name lookup.
type StopMatch struct {
	Key  string  `json:"key"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	// Distance from the query point in meters; zero for name lookups.
	Distance float64 `json:"distance"`
}

type indexEntry struct {
	key   string
	name  string
	coord graph.Coordinate
}

// StopIndex is a spatial index over every coordinate sample of a graph's stops.
// It is immutable after construction.
type StopIndex struct {
	tree   rtree.RTreeG[indexEntry]
	bounds utils.CoordinateBounds
	count  int
}

// NewStopIndex indexes all positioned stops of g.
func NewStopIndex(g *graph.Graph) *StopIndex {
	idx := &StopIndex{}
	for _, s := range g.Stops() {
		for _, c := range s.Coordinates {
			pt := [2]float64{c.Lon, c.Lat}
			idx.tree.Insert(pt, pt, indexEntry{key: s.Key, name: s.Name, coord: c})
			idx.bounds = idx.bounds.Extend(c.Lat, c.Lon, idx.count == 0)
			idx.count++
		}
	}
	return idx
}

// Len returns the number of indexed coordinate samples.
func (idx *StopIndex) Len() int { return idx.count }

// Bounds returns the box around all indexed samples.
func (idx *StopIndex) Bounds() (utils.CoordinateBounds, bool) {
	return idx.bounds, idx.count > 0
}

func (idx *StopIndex) search(b utils.CoordinateBounds, fn func(indexEntry) bool) {
	idx.tree.Search(
		[2]float64{b.MinLon, b.MinLat},
		[2]float64{b.MaxLon, b.MaxLat},
		func(_, _ [2]float64, e indexEntry) bool { return fn(e) },
	)
}

func (e indexEntry) match(lat, lon float64) StopMatch {
	return StopMatch{
		Key:      e.key,
		Name:     e.name,
		Lat:      e.coord.Lat,
		Lon:      e.coord.Lon,
		Distance: utils.Distance(lat, lon, e.coord.Lat, e.coord.Lon),
	}
}

// Within returns the stops with a sample within radius meters, nearest first.
// Each stop appears once, at its closest sample.
func (idx *StopIndex) Within(lat, lon, radius float64) []StopMatch {
	box := utils.CalculateBounds(lat, lon, radius)
	if idx.count == 0 || utils.IsOutOfBounds(box, idx.bounds) {
		return []StopMatch{}
	}
	best := make(map[string]StopMatch)
	idx.search(box, func(e indexEntry) bool {
		m := e.match(lat, lon)
		if m.Distance > radius {
			return true
		}
		if prev, ok := best[m.Key]; !ok || m.Distance < prev.Distance {
			best[m.Key] = m
		}
		return true
	})

	out := make([]StopMatch, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Nearest returns the stop closest to the point by geodesic distance.
func (idx *StopIndex) Nearest(lat, lon float64) (StopMatch, bool) {
	if idx.count == 0 {
		return StopMatch{}, false
	}

	closest := func(radius float64) (StopMatch, bool) {
		var (
			best  StopMatch
			found bool
		)
		idx.search(utils.CalculateBounds(lat, lon, radius), func(e indexEntry) bool {
			m := e.match(lat, lon)
			if !found || m.Distance < best.Distance || (m.Distance == best.Distance && m.Key < best.Key) {
				best, found = m, true
			}
			return true
		})
		return best, found
	}

	// Grow the box until it holds a sample. A sample found in a corner of the
	// box may be farther than one just outside it, so search once more with the
	// candidate's own distance as radius.
	for radius := 250.0; radius < math.Pi*utils.RadiusOfEarthInMeters; radius *= 4 {
		m, ok := closest(radius)
		if !ok {
			continue
		}
		if m.Distance <= radius {
			return m, true
		}
		return closest(m.Distance)
	}
	return closest(math.Pi * utils.RadiusOfEarthInMeters)
}

// AtCoordinate returns the stop with a sample within CoordinateTolerance of the
// point on both axes.
func (idx *StopIndex) AtCoordinate(lat, lon float64) (StopMatch, bool) {
	b := utils.CoordinateBounds{
		MinLat: lat - CoordinateTolerance,
		MaxLat: lat + CoordinateTolerance,
		MinLon: lon - CoordinateTolerance,
		MaxLon: lon + CoordinateTolerance,
	}
	var (
		best  StopMatch
		found bool
	)
	idx.search(b, func(e indexEntry) bool {
		if !utils.SamePosition(lat, lon, e.coord.Lat, e.coord.Lon, CoordinateTolerance) {
			return true
		}
		m := e.match(lat, lon)
		if !found || m.Distance < best.Distance || (m.Distance == best.Distance && m.Key < best.Key) {
			best, found = m, true
		}
		return true
	})
	return best, found
}
