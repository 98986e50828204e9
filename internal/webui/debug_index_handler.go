package webui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/gtfs"
	"heatmap.tricitytransit.org/internal/logging"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

type debugData struct {
	Title string
	Pre   string
}

var dumper = spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}

func writeDebugData(w http.ResponseWriter, logger *slog.Logger, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{Title: title, Pre: dumper.Sdump(data)})
	if err != nil {
		logging.LogError(logger, "failed to execute debug template", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// debugIndexHandler dumps parts of the served graph. It does not exist in
// production.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}
	logger := logging.FromContext(r.Context())

	var snap *gtfs.Snapshot
	if webUI.GraphManager != nil {
		snap = webUI.GraphManager.Current()
	}
	if snap == nil {
		writeDebugData(w, logger, "Schedule graph not loaded", map[string]string{
			"error": "the graph manager has not published a graph yet",
		})
		return
	}

	q := r.URL.Query()
	var (
		data  any
		title string
	)
	switch q.Get("dataType") {
	case "stats":
		data = map[string]any{
			"stats":   snap.Graph.Stats(),
			"origin":  snap.Origin,
			"builtAt": snap.BuiltAt,
			"healthy": webUI.GraphManager.IsHealthy(),
			"indexed": snap.Index.Len(),
		}
		title = "Schedule Graph - Stats"
	case "report":
		data = snap.Report
		title = "Schedule Graph - Last Build Report"
	case "store":
		title = "Graph Store"
		db := webUI.GraphManager.GraphDB
		if db == nil {
			data = "No graph store configured"
			break
		}
		counts, err := db.TableCounts(r.Context())
		if err != nil {
			http.Error(w, "graph store unavailable", http.StatusServiceUnavailable)
			return
		}
		meta, _ := db.ImportMetadata(r.Context())
		data = map[string]any{"path": db.GetDBPath(), "rows": counts, "import": meta}
	case "agencies":
		agencies := make([]gtfs.AgencyConfig, len(webUI.GraphConfig.Agencies))
		for i, a := range webUI.GraphConfig.Agencies {
			if a.AuthHeaderValue != "" {
				a.AuthHeaderValue = "[redacted]"
			}
			agencies[i] = a
		}
		data = agencies
		title = "Schedule Graph - Agency Sources"
	case "stop":
		key, ok := gtfs.LookupStop(snap.Graph, q.Get("ref"))
		if !ok {
			data = map[string]string{"error": "use ref=<stop key, raw id or name>"}
			title = "Schedule Graph - Stop not found"
			break
		}
		data, _ = snap.Graph.Stop(key)
		title = "Schedule Graph - Stop " + key
	case "search":
		data = gtfs.SearchStops(snap.Graph, q.Get("input"), 50)
		title = "Schedule Graph - Stop Search"
	default:
		data = map[string]string{
			"error": "Please use one of the following: stats, report, agencies, stop, search.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, logger, title, data)
}
