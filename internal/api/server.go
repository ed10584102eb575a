// Package api exposes the identification and enrichment pipelines over
// HTTP: JSON request/response endpoints plus server-sent event streams.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/philhumber/wineApp-sub000/internal/cost"
	"github.com/philhumber/wineApp-sub000/internal/enrich"
	"github.com/philhumber/wineApp-sub000/internal/identify"
	"github.com/philhumber/wineApp-sub000/internal/resilience"
)

// Server holds the pipelines and observability surfaces behind the router.
type Server struct {
	identify *identify.Pipeline
	enrich   *enrich.Pipeline
	cache    *enrich.Cache
	tracker  *cost.Tracker
	breakers *resilience.Breakers
}

// NewServer creates the API server.
func NewServer(idp *identify.Pipeline, enp *enrich.Pipeline, cache *enrich.Cache, tracker *cost.Tracker, breakers *resilience.Breakers) *Server {
	return &Server{
		identify: idp,
		enrich:   enp,
		cache:    cache,
		tracker:  tracker,
		breakers: breakers,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/identify", s.handleIdentify)
		r.Post("/identify/stream", s.handleIdentifyStream)
		r.Post("/enrich", s.handleEnrich)
		r.Post("/enrich/stream", s.handleEnrichStream)
		r.Get("/costs", s.handleCosts)
		r.Get("/breakers", s.handleBreakers)
	})

	return r
}
