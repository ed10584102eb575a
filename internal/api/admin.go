package api

import (
	"net/http"
	"strconv"

	"github.com/philhumber/wineApp-sub000/internal/cost"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cache.Count(r.Context())
	status := "ok"
	if err != nil {
		status = "degraded"
	}
	writeData(w, map[string]any{
		"status":        status,
		"cache_entries": entries,
	}, "")
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("recent"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	writeData(w, struct {
		Totals map[string]cost.ProviderTotals `json:"totals"`
		Recent []cost.Record                  `json:"recent"`
	}{
		Totals: s.tracker.Summary(),
		Recent: s.tracker.Recent(limit),
	}, "")
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	writeData(w, s.breakers.States(), "")
}
