package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"heatmap.tricitytransit.org/internal/app"
	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/clock"
	"heatmap.tricitytransit.org/internal/gtfs"
	"heatmap.tricitytransit.org/internal/logging"
	"heatmap.tricitytransit.org/internal/metrics"
	"heatmap.tricitytransit.org/internal/restapi"
	"heatmap.tricitytransit.org/internal/webui"
)

// fakeTimeEnv pins the server clock, e.g. HEATMAP_FAKE_TIME="2025-01-15 07:50:00".
const fakeTimeEnv = "HEATMAP_FAKE_TIME"

const dbStatsInterval = 15 * time.Second

// ParseAPIKeys splits a comma-separated key list and trims every key.
func ParseAPIKeys(apiKeysFlag string) []string {
	if apiKeysFlag == "" {
		return []string{}
	}
	keys := strings.Split(apiKeysFlag, ",")
	for i, key := range keys {
		keys[i] = strings.TrimSpace(key)
	}
	return keys
}

// BuildApplication wires logging, metrics and the graph manager. It blocks until
// the first graph is served.
func BuildApplication(cfg appconf.Config, graphCfg gtfs.Config) (*app.Application, error) {
	logger := logging.NewLogger(os.Stdout, cfg.Env == appconf.Production, cfg.Verbose)
	slog.SetDefault(logger)

	zone := cfg.TimeZone
	if zone == "" {
		zone = appconf.DefaultTimeZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", zone, err)
	}

	var appClock clock.Clock = clock.RealClock{}
	if os.Getenv(fakeTimeEnv) != "" {
		appClock = clock.NewEnvironmentClock(fakeTimeEnv, loc)
		logging.LogOperation(logger, "using_fake_clock", slog.String("env", fakeTimeEnv))
	}

	m := metrics.NewWithLogger(logger)
	manager, err := gtfs.InitGraphManager(context.Background(), graphCfg,
		gtfs.WithMetrics(m), gtfs.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize graph manager: %w", err)
	}
	if manager.GraphDB != nil {
		m.StartDBStatsCollector(manager.GraphDB.DB, dbStatsInterval)
	}

	return &app.Application{
		Config:       cfg,
		GraphConfig:  graphCfg,
		Logger:       logger,
		GraphManager: manager,
		Clock:        appClock,
		Metrics:      m,
		Location:     loc,
	}, nil
}

// CreateServer builds the HTTP server. The caller owns the returned API and
// must shut it down.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	mux := http.NewServeMux()

	api := restapi.NewRestAPI(coreApp)
	api.SetRoutes(mux)

	webUI := &webui.WebUI{Application: coreApp}
	webUI.SetWebUIRoutes(mux)

	handler := restapi.RequestIDMiddleware(
		restapi.NewRequestLoggingMiddleware(coreApp.Logger)(
			restapi.MetricsHandler(coreApp.Metrics)(mux)))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
	return srv, api
}

// Run serves until ctx is cancelled, then drains connections and stops the
// background workers.
func Run(ctx context.Context, srv *http.Server, api *restapi.RestAPI, coreApp *app.Application) error {
	logger := coreApp.Logger.With(slog.String("component", "server"))

	errCh := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "server_starting",
			slog.String("addr", srv.Addr),
			slog.String("env", coreApp.Config.Env.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	logging.LogOperation(logger, "server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "Server forced to shutdown", err)
		serveErr = errors.Join(serveErr, err)
	}

	api.Shutdown()
	coreApp.GraphManager.Shutdown()
	coreApp.Metrics.Shutdown()

	logging.LogOperation(logger, "server_exited")
	return serveErr
}
