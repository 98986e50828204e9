package restapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"heatmap.tricitytransit.org/internal/graph"
)

// graphHandler exports the graph as built, before pruning. format=json (the
// default) writes the wire form; format=snapshot writes the zstd snapshot read
// by graph.ReadSnapshot.
func (api *RestAPI) graphHandler(w http.ResponseWriter, r *http.Request) {
	snap := api.snapshot()
	if snap == nil {
		api.graphUnavailableResponse(w, r)
		return
	}

	var (
		body        bytes.Buffer
		contentType string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		if err := json.NewEncoder(&body).Encode(snap.Raw); err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		contentType = "application/json"
	case "snapshot":
		if err := graph.WriteSnapshot(&body, snap.Raw); err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		contentType = "application/zstd"
	default:
		api.sendError(w, r, http.StatusBadRequest, "unknown format "+strconv.Quote(format))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	_, _ = body.WriteTo(w)
}
