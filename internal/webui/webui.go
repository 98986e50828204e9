// Package webui serves the browser-facing pages: the heat-map viewer and the
// debug dump of the served graph.
package webui

import (
	"net/http"

	"heatmap.tricitytransit.org/internal/app"
)

type WebUI struct {
	*app.Application
}

func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", webUI.viewerIndexHandler)
	mux.HandleFunc("GET /viewer/{file}", webUI.staticHandler)
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
}
