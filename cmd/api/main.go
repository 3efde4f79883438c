package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"promoreel/internal/catalog"
	"promoreel/internal/config"
	"promoreel/internal/httpapi"
	"promoreel/internal/pkg/logger"
	"promoreel/internal/pkg/shutdown"
	"promoreel/internal/render"
	"promoreel/internal/staging"
	"promoreel/internal/storage"
	"promoreel/internal/video"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "promoreel-api",
		AddSource:   cfg.Log.Source,
	})

	log.Info("starting promoreel API",
		"version", "0.1.0",
	)

	if err := os.MkdirAll(cfg.Jobs.DataRoot, 0o755); err != nil {
		log.LogFatal("failed to create data root", err)
	}

	// Initialize shutdown manager
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Initialize the artifact mirror
	mirror, err := storage.NewMirror(cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize artifact mirror", err)
	}
	if mirror != nil {
		log.Info("artifact mirror initialized", "provider", mirror.Provider())
	}

	// Wire the render pipeline
	cat := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
	if cat.Configured() {
		log.Info("catalog fallback enabled", "base_url", cfg.Catalog.BaseURL)
	}

	stager := staging.New(cfg.Jobs.LibraryRoot, cat, log)
	supervisor := render.NewSupervisor(render.Deps{
		Command:       cfg.Renderer.Command,
		AssetsDir:     cfg.Renderer.AssetsDir,
		PublicBaseURL: cfg.HTTP.PublicBaseURL,
		Mirror:        mirror,
		Log:           log,
	})
	svc := video.NewService(video.Deps{
		DataRoot:      cfg.Jobs.DataRoot,
		PublicBaseURL: cfg.HTTP.PublicBaseURL,
		Stager:        stager,
		Supervisor:    supervisor,
		Log:           log,
	})

	// Create HTTP router
	router := httpapi.NewRouter(httpapi.Deps{
		Video:  svc,
		Mirror: mirror,
		Log:    log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Register server shutdown. In-flight renders are fire-and-forget
	// processes and are not interrupted by a server shutdown; a restart
	// re-derives their state from disk.
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", cfg.HTTP.Port,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	// Wait for shutdown signal
	shutdownMgr.Wait()
}
