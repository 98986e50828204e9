package restapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lifetimes in seconds.
const (
	noCache    = 0
	shortCache = 30
	longCache  = 300
)

func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	protected := func(cacheSeconds int, h http.HandlerFunc) http.Handler {
		return CacheControlMiddleware(cacheSeconds,
			api.rateLimiter.Handler()(api.requireAPIKey(h)))
	}

	mux.Handle("GET /api/heatmap/{stop}", protected(shortCache, api.heatmapHandler))
	mux.Handle("GET /api/route.json", protected(shortCache, api.routeHandler))
	mux.Handle("GET /api/stops/nearest.json", protected(longCache, api.nearestStopHandler))
	mux.Handle("GET /api/stops/search.json", protected(longCache, api.searchStopsHandler))
	mux.Handle("GET /api/graph.json", protected(longCache, api.graphHandler))
	mux.Handle("GET /api/current-time.json", protected(shortCache, api.currentTimeHandler))
	mux.Handle("GET /api/config.json", protected(longCache, api.configHandler))

	mux.Handle("GET /healthz", CacheControlMiddleware(noCache, http.HandlerFunc(api.healthHandler)))
	if api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

func (api *RestAPI) requireAPIKey(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.sendUnauthorized(w, r)
			return
		}
		next(w, r)
	})
}
