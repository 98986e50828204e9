package app

import (
	"log/slog"
	"time"

	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/clock"
	"heatmap.tricitytransit.org/internal/gtfs"
	"heatmap.tricitytransit.org/internal/metrics"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config       appconf.Config
	GraphConfig  gtfs.Config
	Logger       *slog.Logger
	GraphManager *gtfs.Manager
	Clock        clock.Clock
	Metrics      *metrics.Metrics
	// Location is the zone schedule times are written in.
	Location *time.Location
}

// ServiceLocation returns Location, or UTC when unset.
func (app *Application) ServiceLocation() *time.Location {
	if app.Location == nil {
		return time.UTC
	}
	return app.Location
}
