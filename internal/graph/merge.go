package graph

import "slices"

// Merge unions graphs by stop key. Stops present in several graphs keep the union
// of their raw ids and coordinate samples. When two graphs hold the same run at
// the same stop, the connection of the later graph wins.
func Merge(graphs ...*Graph) *Graph {
	capacity := 0
	for _, g := range graphs {
		capacity += g.Len()
	}
	out := newGraph(capacity)

	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, key := range g.order {
			src := g.stops[key]
			dst, ok := out.stops[key]
			if !ok {
				dst = out.insert(&Stop{
					Key:         src.Key,
					Name:        src.Name,
					Connections: make(map[string]*Connection, len(src.Connections)),
				})
			} else if src.Name != "" {
				dst.Name = src.Name
			}

			for _, id := range src.IDs {
				if !slices.Contains(dst.IDs, id) {
					dst.IDs = append(dst.IDs, id)
				}
				if _, taken := out.ids[id]; !taken {
					out.ids[id] = key
				}
			}
			for _, c := range src.Coordinates {
				if !slices.Contains(dst.Coordinates, c) {
					dst.Coordinates = append(dst.Coordinates, c)
				}
			}
			for run, conn := range src.Connections {
				dst.Connections[run] = conn.clone()
			}
		}
	}
	return out
}

// Prune returns the served view of g. Connections that lead nowhere are dropped,
// then stops left without connections are dropped unless some connection still
// names them as a destination.
func (g *Graph) Prune() *Graph {
	if g == nil {
		return nil
	}

	referenced := make(map[string]bool)
	for _, s := range g.stops {
		for _, c := range s.Connections {
			for dest := range c.ToStations {
				referenced[dest] = true
			}
		}
	}

	out := newGraph(len(g.order))
	for _, key := range g.order {
		src := g.stops[key]
		kept := make(map[string]*Connection, len(src.Connections))
		for run, c := range src.Connections {
			if len(c.ToStations) > 0 {
				kept[run] = c
			}
		}
		if len(kept) == 0 && !referenced[key] {
			continue
		}
		out.insert(&Stop{
			Key:         src.Key,
			IDs:         src.IDs,
			Name:        src.Name,
			Coordinates: src.Coordinates,
			Connections: kept,
		})
	}
	return out
}
