package webui

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFiles embed.FS

var viewerFS = mustSub(staticFiles, "static")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

var allowedExtensions = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

func (webUI *WebUI) viewerIndexHandler(w http.ResponseWriter, r *http.Request) {
	serveViewerFile(w, r, "index.html")
}

// staticHandler serves the viewer assets under /viewer/. Only flat file names
// with a whitelisted extension are served.
func (webUI *WebUI) staticHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || !fs.ValidPath(name) {
		slog.Warn("potential path traversal attempt blocked", "path", r.URL.Path)
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	serveViewerFile(w, r, name)
}

func serveViewerFile(w http.ResponseWriter, r *http.Request, name string) {
	contentType, ok := allowedExtensions[strings.ToLower(path.Ext(name))]
	if !ok {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	body, err := fs.ReadFile(viewerFS, name)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(body)
}
