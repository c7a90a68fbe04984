package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"vidshare/internal/fallback"
	"vidshare/internal/filesystem"
	"vidshare/internal/handlers"
	"vidshare/internal/hub"
	"vidshare/internal/jobs"
	"vidshare/internal/logging"
	"vidshare/internal/mediastore"
	"vidshare/internal/memory"
	"vidshare/internal/metrics"
	"vidshare/internal/middleware"
	"vidshare/internal/poster"
	"vidshare/internal/registry"
	"vidshare/internal/startup"
	"vidshare/internal/transcoder"
	"vidshare/internal/uploads"
	"vidshare/internal/webhook"
)

const shutdownTimeout = 30 * time.Second

func main() {
	startTime := time.Now()

	startup.LoadDotEnv()
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	memory.ConfigureFromEnv(config.TranscodeWorkers)

	build := startup.GetBuildInfo()
	metrics.SetAppInfo(build.Version, build.Commit, build.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	// Metadata registry
	regStart := time.Now()
	records, err := openRegistry(config)
	if err != nil {
		startup.LogFatal("Failed to open metadata registry: %v", err)
	}
	stats, err := records.Stats(context.Background())
	if err != nil {
		startup.LogFatal("Failed to read metadata registry: %v", err)
	}
	startup.LogRegistryInit(records.Backend(), stats.TotalRecords, time.Since(regStart))
	metrics.InitializeMetrics(records.Backend())

	// Media store
	store, err := mediastore.New(config.MediaDir)
	if err != nil {
		startup.LogFatal("Failed to open media store: %v", err)
	}
	if n, err := store.CleanTemp(); err != nil {
		logging.Warn("Failed to clean temporary uploads: %v", err)
	} else if n > 0 {
		logging.Info("Removed %d leftover temporary files", n)
	}

	if created, err := fallback.EnsurePlaceholder(config.PlaceholderImage, "vidshare"); err != nil {
		logging.Warn("Placeholder image unavailable: %v", err)
	} else if created {
		logging.Info("Generated placeholder image at %s", config.PlaceholderImage)
	}

	// Transcoding
	startup.LogTranscoderInit(config.FFmpegPath, config.FFprobePath, config.TranscodeWorkers)
	engine := transcoder.New(transcoder.Config{
		FFmpegPath:       config.FFmpegPath,
		FFprobePath:      config.FFprobePath,
		ProgressInterval: config.ProgressInterval,
		Timeout:          config.TranscodeTimeout,
	})
	jobReg := jobs.NewRegistry()
	statusHub := hub.New(jobReg, hub.DefaultConfig())
	jobReg.SetPublisher(statusHub)
	svc := uploads.NewService(store, records, jobReg, engine, config.TranscodeWorkers)

	posters, err := poster.New(config.FFmpegPath, filepath.Join(config.DataDir, "posters"))
	if err != nil {
		logging.Warn("Poster generation disabled: %v", err)
		posters = nil
	}

	h := handlers.New(handlers.Options{
		Records:         records,
		Store:           store,
		Uploads:         svc,
		Jobs:            jobReg,
		Hub:             statusHub,
		Webhooks:        webhook.NewClient(config.WebhookTimeout),
		Fallback:        fallback.NewPage(config.PublicBaseURL + "/placeholder.png"),
		Posters:         posters,
		PublicBaseURL:   config.PublicBaseURL,
		PlaceholderPath: config.PlaceholderImage,
		MaxUploadBytes:  config.MaxUploadBytes,
	})

	router := mux.NewRouter()
	h.Register(router)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	logged := middleware.Logger(loggingConfig)(router)
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(logged)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and range streams are long-lived; body deadlines stay off.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	collector := metrics.NewCollector(records, time.Minute)
	collector.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(srv) })
	if metricsSrv != nil {
		g.Go(func() error { return serve(metricsSrv) })
	}

	if config.ResumePending {
		n, err := svc.ResumePending(ctx)
		if err != nil {
			logging.Warn("Resuming pending conversions failed: %v", err)
		} else if n > 0 {
			logging.Info("Resumed %d pending conversions", n)
		}
	}
	h.SetReady(true)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		PublicBaseURL:   config.PublicBaseURL,
		StartupDuration: time.Since(startTime),
	})

	g.Go(func() error {
		<-gctx.Done()
		// A second signal kills the process.
		stop()
		reason := "server error"
		if ctx.Err() != nil {
			reason = "signal"
		}
		shutdown(reason, h, svc, engine, statusHub, collector, records, srv, metricsSrv)
		return nil
	})

	if err := g.Wait(); err != nil {
		startup.LogFatal("Server error: %v", err)
	}
}

func openRegistry(config *startup.Config) (*registry.Registry, error) {
	switch config.MetadataBackend {
	case startup.BackendSQLite:
		backend, err := registry.NewSQLiteBackend(context.Background(), config.MetadataPath)
		if err != nil {
			return nil, err
		}
		return registry.New(backend), nil
	default:
		backend, err := registry.NewJSONBackend(config.MetadataPath)
		if err != nil {
			return nil, err
		}
		return registry.New(backend), nil
	}
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdown(reason string, h *handlers.Handlers, svc *uploads.Service, engine *transcoder.Engine,
	statusHub *hub.Hub, collector *metrics.Collector, records *registry.Registry, servers ...*http.Server) {
	startup.LogShutdownInitiated(reason)
	h.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Stopping conversions")
	if err := svc.Shutdown(ctx); err != nil {
		logging.Warn("Conversions did not stop cleanly: %v", err)
	}
	engine.Cleanup()
	startup.LogShutdownStepComplete("Conversions stopped")

	startup.LogShutdownStep("Closing status connections")
	statusHub.Shutdown()
	startup.LogShutdownStepComplete("Status connections closed")

	startup.LogShutdownStep("Shutting down HTTP servers")
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Server shutdown error on %s: %v", srv.Addr, err)
		}
	}
	startup.LogShutdownStepComplete("HTTP servers stopped")

	collector.Stop()
	if err := records.Close(); err != nil {
		logging.Warn("Closing metadata registry: %v", err)
	}
	startup.LogShutdownComplete()
}
