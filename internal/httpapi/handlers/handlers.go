// Package handlers implements the HTTP handlers for the render service.
package handlers

import (
	"promoreel/internal/pkg/logger"
	"promoreel/internal/ports"
	"promoreel/internal/video"
)

type Deps struct {
	Video *video.Service
	// Mirror is optional; nil disables the storage health check.
	Mirror ports.ArtifactStore
	Log    *logger.Logger
}

type Handler struct {
	video  *video.Service
	mirror ports.ArtifactStore
	log    *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		video:  d.Video,
		mirror: d.Mirror,
		log:    log.WithComponent("http"),
	}
}
