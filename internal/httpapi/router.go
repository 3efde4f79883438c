// Package httpapi wires the chi router, middleware chain and handlers.
package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"promoreel/internal/httpapi/handlers"
	"promoreel/internal/httpkit"
	"promoreel/internal/pkg/logger"
	"promoreel/internal/pkg/middleware"
	"promoreel/internal/ports"
	"promoreel/internal/video"
)

type Deps struct {
	Video  *video.Service
	Mirror ports.ArtifactStore
	Log    *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	// ---- CORS (storefront upload widget) ----
	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:8081",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Video:  d.Video,
		Mirror: d.Mirror,
		Log:    log,
	})

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- VIDEO ----
	r.Get("/api/video/status/{productId}", h.GetVideoStatus)
	r.Post("/api/video/render", h.PostVideoRender)

	// ---- ARTIFACTS ----
	r.Get("/files/{productId}/video.mp4", h.ServeVideoFile)

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
