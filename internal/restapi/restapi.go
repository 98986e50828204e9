// Package restapi serves heat-map, route and stop lookups over the schedule
// graph held by the graph manager.
package restapi

import (
	"time"

	"heatmap.tricitytransit.org/internal/app"
	"heatmap.tricitytransit.org/internal/clock"
	"heatmap.tricitytransit.org/internal/gtfs"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

func NewRestAPI(application *app.Application) *RestAPI {
	if application.Clock == nil {
		application.Clock = clock.RealClock{}
	}
	return &RestAPI{
		Application: application,
		rateLimiter: NewRateLimitMiddleware(
			application.Config.RateLimit,
			time.Second,
			application.Config.ExemptApiKeys,
			application.Clock,
		),
	}
}

// Shutdown stops background work started by NewRestAPI.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}

func (api *RestAPI) snapshot() *gtfs.Snapshot {
	if api.Application == nil || api.GraphManager == nil {
		return nil
	}
	return api.GraphManager.Current()
}
