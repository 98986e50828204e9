package restapi

import (
	"encoding/json"
	"net/http"

	"heatmap.tricitytransit.org/internal/logging"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Origin string `json:"origin,omitempty"`
	Stops  int    `json:"stops,omitempty"`
}

func writeHealth(w http.ResponseWriter, code int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// healthHandler reports 200 while a freshly built graph is served, 503 while no
// graph is loaded, and 503 "degraded" while a persisted fallback graph is served.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	if api.Application == nil || api.GraphManager == nil {
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Detail: "graph manager not initialized",
		})
		return
	}

	snap := api.GraphManager.Current()
	if snap == nil {
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "starting",
			Detail: "schedule graph is being built",
		})
		return
	}

	if !api.GraphManager.IsHealthy() {
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "degraded",
			Detail: "serving a persisted graph; the last build failed",
			Origin: snap.Origin,
			Stops:  snap.Graph.Len(),
		})
		return
	}

	if store := api.GraphManager.GraphDB; store != nil && store.DB != nil {
		if err := store.DB.PingContext(r.Context()); err != nil {
			logging.LogError(api.Logger, "Graph store ping failed", err)
			writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unavailable",
				Detail: "graph store connection failed",
			})
			return
		}
	}

	writeHealth(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Origin: snap.Origin,
		Stops:  snap.Graph.Len(),
	})
}
