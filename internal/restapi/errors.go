package restapi

import (
	"errors"
	"log/slog"
	"net/http"

	"heatmap.tricitytransit.org/internal/logging"
	"heatmap.tricitytransit.org/internal/search"
)

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())))
	api.sendError(w, r, http.StatusInternalServerError, "internal server error")
}

// searchErrorResponse maps lookup and search failures to 404 and anything else
// to 500.
func (api *RestAPI) searchErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, search.ErrNoSuchStop), errors.Is(err, search.ErrNoPath):
		api.sendError(w, r, http.StatusNotFound, err.Error())
	default:
		api.serverErrorResponse(w, r, err)
	}
}

func (api *RestAPI) graphUnavailableResponse(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusServiceUnavailable, "schedule graph not loaded")
}
