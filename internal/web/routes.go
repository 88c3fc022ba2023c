package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-registry/internal/assets"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/faceapi"
	"github.com/kozaktomas/face-registry/internal/match"
	"github.com/kozaktomas/face-registry/internal/web/handlers"
)

func (s *Server) setupRoutes(
	store database.FaceStore,
	assetStore *assets.Store,
	provider faceapi.Provider,
	matcher *match.Engine,
) {
	facesHandler := handlers.NewFacesHandler(store, provider, assetStore, matcher)

	// Health check
	s.router.Get("/api/health", handlers.HealthCheck)

	// Face API
	s.router.Route("/api/face", func(r chi.Router) {
		r.Get("/", facesHandler.List)
		r.Post("/register", facesHandler.Register)
		r.Post("/recognize", facesHandler.Recognize)
		r.Delete("/{id}", facesHandler.Delete)
	})

	// Stored face images
	fileServer := http.StripPrefix(assets.PublicPrefix+"/", http.FileServer(http.Dir(assetStore.Dir())))
	s.router.Get(assets.PublicPrefix+"/*", fileServer.ServeHTTP)
}
