package restapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"heatmap.tricitytransit.org/internal/clock"
	"heatmap.tricitytransit.org/internal/gtfstime"
)

const defaultMaxCount = 20

// departureParam reads the "departure" query parameter (HH:MM or HH:MM:SS).
// Without one, the current time of day in the service zone is used.
func (api *RestAPI) departureParam(r *http.Request) (gtfstime.TimeOfDay, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("departure"))
	if raw == "" {
		return clock.ServiceTimeOfDay(api.Clock, api.ServiceLocation()), nil
	}
	t, err := gtfstime.ParseClock(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid departure %q: expected HH:MM or HH:MM:SS", raw)
	}
	return t, nil
}

func coordinateParams(r *http.Request) (lat, lon float64, err error) {
	q := r.URL.Query()
	lat, err = strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid lat %q", q.Get("lat"))
	}
	lon, err = strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("invalid lon %q", q.Get("lon"))
	}
	return lat, lon, nil
}

// maxCountParam reads "maxCount", defaulting to defaultMaxCount.
func maxCountParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("maxCount")
	if raw == "" {
		return defaultMaxCount, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid maxCount %q", raw)
	}
	return n, nil
}
