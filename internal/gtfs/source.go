package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/OneBusAway/go-gtfs"

	"heatmap.tricitytransit.org/internal/extract"
	"heatmap.tricitytransit.org/internal/logging"
)

const maxStaticSize = 200 * 1024 * 1024

// staticHTTPClient downloads feed archives. The transport is cloned from
// http.DefaultTransport to keep proxy and HTTP/2 defaults.
var staticHTTPClient = newStaticHTTPClient()

func newStaticHTTPClient() *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ResponseHeaderTimeout = 30 * time.Second
	transport.IdleConnTimeout = 90 * time.Second

	return &http.Client{
		Timeout:   5 * time.Minute,
		Transport: transport,
	}
}

// rawFeedData reads a GTFS zip from disk or downloads it.
func rawFeedData(ctx context.Context, agency AgencyConfig) ([]byte, error) {
	if !agency.isRemote() {
		b, err := os.ReadFile(agency.Source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, agency.Source, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GTFS request: %w", err)
	}
	if agency.AuthHeaderKey != "" && agency.AuthHeaderValue != "" {
		req.Header.Set(agency.AuthHeaderKey, agency.AuthHeaderValue)
	}

	resp, err := staticHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download GTFS data: received HTTP status %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	if int64(len(b)) > maxStaticSize {
		return nil, fmt.Errorf("static GTFS response exceeds size limit of %d bytes", maxStaticSize)
	}
	return b, nil
}

// loadTables reads the stop and stop-time tables of one agency. Directories
// are read as plain CSV; archives go through the GTFS parser.
func loadTables(ctx context.Context, agency AgencyConfig) (extract.Tables, error) {
	if !agency.isRemote() {
		if info, err := os.Stat(agency.Source); err == nil && info.IsDir() {
			return extract.LoadDir(agency.Source)
		}
	}

	b, err := rawFeedData(ctx, agency)
	if err != nil {
		return extract.Tables{}, err
	}
	staticData, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return extract.Tables{}, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return extract.FromStatic(staticData), nil
}
