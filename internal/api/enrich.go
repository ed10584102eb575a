package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/philhumber/wineApp-sub000/internal/enrich"
	"github.com/philhumber/wineApp-sub000/internal/stream"
)

func decodeEnrichRequest(w http.ResponseWriter, r *http.Request) (enrich.Request, bool) {
	var req enrich.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return enrich.Request{}, false
	}
	if req.Producer == "" && req.WineName == "" {
		writeBadRequest(w, "producer or wine_name is required")
		return enrich.Request{}, false
	}
	req.RequestID = middleware.GetReqID(r.Context())
	return req, true
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEnrichRequest(w, r)
	if !ok {
		return
	}

	out, err := s.enrich.Enrich(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, out, out.Source)
}

func (s *Server) handleEnrichStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEnrichRequest(w, r)
	if !ok {
		return
	}

	sw := startEventStream(w)
	_, err := s.enrich.EnrichStream(r.Context(), req, func(ev stream.Event) {
		if serr := sw.Send(ev); serr != nil {
			zap.L().Debug("event write failed", zap.Error(serr))
		}
	})
	if err != nil {
		zap.L().Debug("enrich stream ended with error", zap.Error(err))
	}
}
