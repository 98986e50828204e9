// Package normalize collapses stop records that name the same station under
// different ids into one logical stop and rewrites edges through the merged
// identity.
//
// Grouping is by canonical name only unless MaxMergeDistance is set. Two
// unrelated stops that share a stripped name (a street name reused across the
// region) are merged by the name-only rule.
package normalize

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/logging"
	"heatmap.tricitytransit.org/internal/utils"
)

var trailingIndex = regexp.MustCompile(`(\s+\d+)+$`)

// Canonicalize strips every trailing whitespace-separated run of digits, the
// direction and platform markers agencies append to station names.
func Canonicalize(name string) string {
	s := strings.TrimSpace(name)
	return strings.TrimSpace(trailingIndex.ReplaceAllString(s, ""))
}

// Report summarises one normalization pass.
type Report struct {
	InputStops          int `json:"input_stops"`
	Groups              int `json:"groups"`
	MergedStops         int `json:"merged_stops"`
	DroppedDestinations int `json:"dropped_destinations"`
	SelfLoops           int `json:"self_loops"`
	ProximitySplits     int `json:"proximity_splits"`
}

// Normalizer merges stops by canonical name.
type Normalizer struct {
	// MaxMergeDistance, in metres, gates merges on the distance to the group's
	// first coordinate. Zero disables the check.
	MaxMergeDistance float64
	Logger           *slog.Logger
}

type group struct {
	key     string
	anchor  *graph.Coordinate
	members []*graph.Stop
}

// Apply returns the normalized graph. g is not modified.
func (n Normalizer) Apply(g *graph.Graph) (*graph.Graph, Report, error) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "stop_normalizer"))

	rep := Report{InputStops: g.Len()}
	groups, owner := n.group(g, &rep)
	rep.Groups = len(groups)

	records := make([]graph.StopRecord, 0, len(groups))
	for _, grp := range groups {
		records = append(records, n.mergeGroup(grp, owner, &rep))
	}

	out, err := graph.FromRecords(records)
	if err != nil {
		return nil, rep, fmt.Errorf("assemble normalized graph: %w", err)
	}

	logging.LogOperation(logger, "stops_normalized",
		slog.Int("input_stops", rep.InputStops),
		slog.Int("groups", rep.Groups),
		slog.Int("merged_stops", rep.MergedStops),
		slog.Int("dropped_destinations", rep.DroppedDestinations),
		slog.Int("proximity_splits", rep.ProximitySplits))
	return out, rep, nil
}

// group assigns every stop to a group in graph order and returns the groups
// plus a stop key -> group key lookup.
func (n Normalizer) group(g *graph.Graph, rep *Report) ([]*group, map[string]string) {
	var groups []*group
	byName := make(map[string][]*group)
	taken := make(map[string]bool)
	owner := make(map[string]string, g.Len())

	for _, s := range g.Stops() {
		name := Canonicalize(s.Name)
		if name == "" {
			name = s.Key
		}
		pos, hasPos := s.Position()

		var target *group
		for _, candidate := range byName[name] {
			if n.MaxMergeDistance <= 0 || !hasPos || candidate.anchor == nil {
				target = candidate
				break
			}
			d := utils.Distance(candidate.anchor.Lat, candidate.anchor.Lon, pos.Lat, pos.Lon)
			if d <= n.MaxMergeDistance {
				target = candidate
				break
			}
		}

		if target == nil {
			key := name
			if len(byName[name]) > 0 {
				rep.ProximitySplits++
			}
			for i := 2; taken[key]; i++ {
				key = fmt.Sprintf("%s#%d", name, i)
			}
			taken[key] = true
			target = &group{key: key}
			groups = append(groups, target)
			byName[name] = append(byName[name], target)
		} else {
			rep.MergedStops++
		}

		if target.anchor == nil && hasPos {
			p := pos
			target.anchor = &p
		}
		target.members = append(target.members, s)
		owner[s.Key] = target.key
	}
	return groups, owner
}

func (n Normalizer) mergeGroup(grp *group, owner map[string]string, rep *Report) graph.StopRecord {
	rec := graph.StopRecord{
		Key:         grp.key,
		Name:        Canonicalize(grp.members[0].Name),
		Connections: make(map[string]graph.ConnectionRecord),
	}
	if rec.Name == "" {
		rec.Name = grp.members[0].Name
	}

	for _, s := range grp.members {
		for _, id := range s.IDs {
			if !slices.Contains(rec.IDs, id) {
				rec.IDs = append(rec.IDs, id)
			}
		}
		for _, c := range s.Coordinates {
			if !slices.Contains(rec.Coordinates, c) {
				rec.Coordinates = append(rec.Coordinates, c)
			}
		}

		for _, run := range s.Runs() {
			conn := s.Connections[run]
			cr, ok := rec.Connections[run]
			if !ok {
				cr = graph.ConnectionRecord{ToStations: make(map[string]int)}
			}
			cr.Departures = append(cr.Departures, conn.Departures...)

			for _, dest := range conn.Destinations() {
				target, known := owner[dest]
				switch {
				case !known:
					rep.DroppedDestinations++
					continue
				case target == grp.key:
					rep.SelfLoops++
					continue
				}
				if _, seen := cr.ToStations[target]; !seen {
					cr.ToStations[target] = conn.ToStations[dest]
				}
			}
			rec.Connections[run] = cr
		}
	}
	return rec
}
