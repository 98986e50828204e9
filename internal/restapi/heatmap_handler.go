package restapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfs"
	"heatmap.tricitytransit.org/internal/models"
	"heatmap.tricitytransit.org/internal/search"
)

// heatmapHandler answers GET /api/heatmap/{stop}.json with the earliest arrival
// at every reachable station. The stop may be a key, a raw stop id or a name.
func (api *RestAPI) heatmapHandler(w http.ResponseWriter, r *http.Request) {
	snap := api.snapshot()
	if snap == nil {
		api.graphUnavailableResponse(w, r)
		return
	}

	ref := strings.TrimSuffix(r.PathValue("stop"), ".json")
	departure, err := api.departureParam(r)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	key, ok := gtfs.LookupStop(snap.Graph, ref)
	if !ok {
		api.searchErrorResponse(w, r, fmt.Errorf("%w: %q", search.ErrNoSuchStop, ref))
		return
	}

	start := time.Now()
	res, err := search.EarliestArrival(snap.Graph, key, departure)
	if err != nil {
		api.searchErrorResponse(w, r, err)
		return
	}
	api.Metrics.ObserveSearch("earliest_arrival", time.Since(start), res.Settled)

	api.sendResponse(w, r, models.NewEntryResponse(heatmapEntry(snap.Graph, res), api.Clock))
}

// heatmapEntry lists every reached station once per coordinate sample. The
// start station is reported separately with travel time zero.
func heatmapEntry(g *graph.Graph, res *search.Result) models.HeatmapEntry {
	entry := models.HeatmapEntry{
		Departure: res.Departure.String(),
		Stations:  []models.HeatmapPoint{},
	}
	if origin, ok := g.Stop(res.Origin); ok {
		entry.StartStation = models.HeatmapPoint{Key: origin.Key, Name: origin.Name}
		if pos, ok := origin.Position(); ok {
			entry.StartStation.Lat, entry.StartStation.Lon = pos.Lat, pos.Lon
		}
	}

	for _, s := range g.Stops() {
		minutes, reached := res.Arrival(s.Key)
		if !reached {
			entry.Unreached++
			continue
		}
		entry.Reached++
		if s.Key == res.Origin {
			continue
		}
		for _, c := range s.Coordinates {
			entry.Stations = append(entry.Stations, models.HeatmapPoint{
				Key:        s.Key,
				Name:       s.Name,
				Lat:        c.Lat,
				Lon:        c.Lon,
				TravelTime: minutes,
			})
		}
	}
	return entry
}
