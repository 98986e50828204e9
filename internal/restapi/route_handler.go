package restapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/twpayne/go-polyline"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfs"
	"heatmap.tricitytransit.org/internal/models"
	"heatmap.tricitytransit.org/internal/search"
)

// routeHandler answers GET /api/route.json?from=&to=&departure= with one path
// between two stations.
func (api *RestAPI) routeHandler(w http.ResponseWriter, r *http.Request) {
	snap := api.snapshot()
	if snap == nil {
		api.graphUnavailableResponse(w, r)
		return
	}

	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		api.sendError(w, r, http.StatusBadRequest, "from and to are required")
		return
	}
	departure, err := api.departureParam(r)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	fromKey, ok := gtfs.LookupStop(snap.Graph, from)
	if !ok {
		api.searchErrorResponse(w, r, fmt.Errorf("%w: %q", search.ErrNoSuchStop, from))
		return
	}
	toKey, ok := gtfs.LookupStop(snap.Graph, to)
	if !ok {
		api.searchErrorResponse(w, r, fmt.Errorf("%w: %q", search.ErrNoSuchStop, to))
		return
	}

	start := time.Now()
	hops, err := search.Path(snap.Graph, fromKey, toKey, departure)
	if err != nil {
		api.searchErrorResponse(w, r, err)
		return
	}
	api.Metrics.ObserveSearch("path", time.Since(start), len(hops))

	api.sendResponse(w, r, models.NewEntryResponse(routeEntry(snap.Graph, hops), api.Clock))
}

func routeEntry(g *graph.Graph, hops []search.Hop) models.RouteEntry {
	first, last := hops[0], hops[len(hops)-1]
	entry := models.RouteEntry{
		From:         first.Stop,
		To:           last.Stop,
		Departure:    first.Arrival.String(),
		Arrival:      last.Arrival.String(),
		TotalMinutes: (last.Arrival.Seconds() - first.Arrival.Seconds()) / 60,
		Hops:         make([]models.RouteHop, 0, len(hops)),
	}

	var (
		coords  [][]float64
		prevRun string
	)
	for i, h := range hops {
		hop := models.RouteHop{
			StopKey:       h.Stop,
			Run:           h.Run,
			Arrival:       h.Arrival.String(),
			TravelMinutes: h.TravelMinutes,
		}
		if i > 0 {
			hop.Departure = h.Departure.String()
			if i > 1 && h.Run != prevRun {
				entry.Transfers++
			}
			prevRun = h.Run
		}
		if s, ok := g.Stop(h.Stop); ok {
			hop.Name = s.Name
			if pos, ok := s.Position(); ok {
				lat, lon := pos.Lat, pos.Lon
				hop.Lat, hop.Lon = &lat, &lon
				coords = append(coords, []float64{lat, lon})
			}
		}
		entry.Hops = append(entry.Hops, hop)
	}
	entry.Polyline = string(polyline.EncodeCoords(coords))
	return entry
}
