package restapi

import (
	"net/http"
	"strconv"
)

const noStore = "no-cache, no-store, must-revalidate"

// CacheControlMiddleware marks successful responses cacheable for maxAge
// seconds. Error responses and a zero maxAge are never cached.
func CacheControlMiddleware(maxAge int, next http.Handler) http.Handler {
	value := noStore
	if maxAge > 0 {
		value = "public, max-age=" + strconv.Itoa(maxAge)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, value: value}, r)
	})
}

// cacheControlWriter sets Cache-Control once the status is known.
type cacheControlWriter struct {
	http.ResponseWriter
	value       string
	wroteHeader bool
}

func (w *cacheControlWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		value := w.value
		if code < 200 || code >= 300 {
			value = noStore
		}
		w.Header().Set("Cache-Control", value)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
