package restapi

import (
	"net/http"
	"strconv"
	"strings"

	"heatmap.tricitytransit.org/internal/gtfs"
	"heatmap.tricitytransit.org/internal/models"
)

// nearestStopHandler answers GET /api/stops/nearest.json?lat=&lon=.
//
// With radius (meters) it lists every stop within it, nearest first. With
// exact=true it returns the stop with a sample at the coordinate itself.
// Otherwise it returns the single nearest stop.
func (api *RestAPI) nearestStopHandler(w http.ResponseWriter, r *http.Request) {
	snap := api.snapshot()
	if snap == nil {
		api.graphUnavailableResponse(w, r)
		return
	}

	lat, lon, err := coordinateParams(r)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()

	if raw := q.Get("radius"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			api.sendError(w, r, http.StatusBadRequest, "invalid radius "+strconv.Quote(raw))
			return
		}
		maxCount, err := maxCountParam(r)
		if err != nil {
			api.sendError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		matches := snap.Index.Within(lat, lon, radius)
		limitExceeded := len(matches) > maxCount
		if limitExceeded {
			matches = matches[:maxCount]
		}
		api.sendResponse(w, r, models.NewListResponse(matches, limitExceeded, api.Clock))
		return
	}

	var (
		match gtfs.StopMatch
		found bool
	)
	if exact, _ := strconv.ParseBool(q.Get("exact")); exact {
		match, found = snap.Index.AtCoordinate(lat, lon)
	} else {
		match, found = snap.Index.Nearest(lat, lon)
	}
	if !found {
		api.sendError(w, r, http.StatusNotFound, "no stop found")
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(match, api.Clock))
}

// searchStopsHandler answers GET /api/stops/search.json?input=&maxCount=.
func (api *RestAPI) searchStopsHandler(w http.ResponseWriter, r *http.Request) {
	snap := api.snapshot()
	if snap == nil {
		api.graphUnavailableResponse(w, r)
		return
	}

	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if input == "" {
		api.sendError(w, r, http.StatusBadRequest, "input is required")
		return
	}
	maxCount, err := maxCountParam(r)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	matches := gtfs.SearchStops(snap.Graph, input, maxCount+1)
	limitExceeded := len(matches) > maxCount
	if limitExceeded {
		matches = matches[:maxCount]
	}
	api.sendResponse(w, r, models.NewListResponse(matches, limitExceeded, api.Clock))
}
