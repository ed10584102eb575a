package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/philhumber/wineApp-sub000/internal/identify"
	"github.com/philhumber/wineApp-sub000/internal/stream"
)

// identifyRequest is the JSON body for both identify endpoints.
type identifyRequest struct {
	Text           string `json:"text,omitempty"`
	ImageData      string `json:"image_data,omitempty"`
	ImageMediaType string `json:"image_media_type,omitempty"`
	Tier           int    `json:"tier,omitempty"`
	ForceTopTier   bool   `json:"force_top_tier,omitempty"`
}

func (req identifyRequest) input(r *http.Request) (identify.Input, bool) {
	if req.Text == "" && req.ImageData == "" {
		return identify.Input{}, false
	}
	return identify.Input{
		Text:           req.Text,
		ImageData:      req.ImageData,
		ImageMediaType: req.ImageMediaType,
		Tier:           req.Tier,
		ForceTopTier:   req.ForceTopTier,
		RequestID:      middleware.GetReqID(r.Context()),
	}, true
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	in, ok := req.input(r)
	if !ok {
		writeBadRequest(w, "text or image_data is required")
		return
	}

	res, err := s.identify.Identify(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, res, "")
}

func (s *Server) handleIdentifyStream(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	in, ok := req.input(r)
	if !ok {
		writeBadRequest(w, "text or image_data is required")
		return
	}

	sw := startEventStream(w)
	_, err := s.identify.IdentifyStream(r.Context(), in, func(ev stream.Event) {
		if serr := sw.Send(ev); serr != nil {
			zap.L().Debug("event write failed", zap.Error(serr))
		}
	})
	if err != nil {
		// The pipeline already emitted the error event; cancellations
		// emit nothing because the client is gone.
		zap.L().Debug("identify stream ended with error", zap.Error(err))
	}
}

func startEventStream(w http.ResponseWriter) *stream.Writer {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return stream.NewWriter(w)
}
