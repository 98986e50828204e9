package gtfs

import (
	"sort"
	"strings"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/normalize"
)

// searchTerms lowercases and splits user input into search terms.
func searchTerms(input string) []string {
	terms := strings.Fields(strings.ToLower(input))
	out := terms[:0]
	for _, term := range terms {
		if t := strings.Trim(term, `"'.,;`); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// matchesTerms reports whether every term is a prefix of some word of name.
func matchesTerms(name string, terms []string) bool {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '/' || r == '(' || r == ')' || r == ','
	})
	for _, term := range terms {
		hit := false
		for _, w := range words {
			if strings.HasPrefix(w, term) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// SearchStops finds stops whose name matches every word of input as a prefix.
// Stops whose canonical name equals the input rank first.
func SearchStops(g *graph.Graph, input string, maxCount int) []StopMatch {
	limit := maxCount
	if limit <= 0 {
		limit = 20
	}
	terms := searchTerms(input)
	if len(terms) == 0 {
		return []StopMatch{}
	}
	wanted := strings.ToLower(normalize.Canonicalize(input))

	type ranked struct {
		StopMatch
		exact bool
	}
	var hits []ranked
	for _, s := range g.Stops() {
		if !matchesTerms(s.Name, terms) {
			continue
		}
		m := StopMatch{Key: s.Key, Name: s.Name}
		if pos, ok := s.Position(); ok {
			m.Lat, m.Lon = pos.Lat, pos.Lon
		}
		hits = append(hits, ranked{
			StopMatch: m,
			exact:     strings.ToLower(normalize.Canonicalize(s.Name)) == wanted,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].exact != hits[j].exact {
			return hits[i].exact
		}
		if hits[i].Name != hits[j].Name {
			return hits[i].Name < hits[j].Name
		}
		return hits[i].Key < hits[j].Key
	})

	out := make([]StopMatch, 0, min(limit, len(hits)))
	for i := 0; i < len(hits) && i < limit; i++ {
		out = append(out, hits[i].StopMatch)
	}
	return out
}

// LookupStop resolves a stop key, a raw stop id or a station name, in that order.
// Names compare by canonical form, case-insensitively, first match in graph order.
func LookupStop(g *graph.Graph, ref string) (string, bool) {
	if key, ok := g.Resolve(ref); ok {
		return key, true
	}
	wanted := strings.ToLower(normalize.Canonicalize(ref))
	if wanted == "" {
		return "", false
	}
	for _, s := range g.Stops() {
		if strings.ToLower(normalize.Canonicalize(s.Name)) == wanted {
			return s.Key, true
		}
	}
	return "", false
}
