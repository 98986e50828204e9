package restapi

import (
	"net/http"

	"heatmap.tricitytransit.org/internal/clock"
	"heatmap.tricitytransit.org/internal/models"
)

// currentTimeHandler reports the server time and the schedule time of day a
// query without a departure would use.
func (api *RestAPI) currentTimeHandler(w http.ResponseWriter, r *http.Request) {
	loc := api.ServiceLocation()
	timeData := models.NewCurrentTimeData(api.Clock.Now(), loc, clock.ServiceTimeOfDay(api.Clock, loc))
	api.sendResponse(w, r, models.NewEntryResponse(timeData, api.Clock))
}
