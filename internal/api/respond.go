package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/philhumber/wineApp-sub000/internal/llm"
	"github.com/philhumber/wineApp-sub000/internal/stream"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Source  string            `json:"source,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   *stream.ErrorInfo `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, data any, source string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Source: source})
}

func writeError(w http.ResponseWriter, err error) {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		info := pe.Info()
		writeJSON(w, kindStatus(pe.Kind), envelope{
			Success: false,
			Message: info.UserMessage,
			Error:   &info,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, envelope{
		Success: false,
		Message: "Something went wrong. Please try again.",
		Error:   &stream.ErrorInfo{Type: string(llm.KindServerError), Message: err.Error()},
	})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Success: false,
		Message: msg,
		Error:   &stream.ErrorInfo{Type: string(llm.KindValidation), Message: msg},
	})
}

func kindStatus(kind llm.Kind) int {
	switch kind {
	case llm.KindValidation:
		return http.StatusBadRequest
	case llm.KindRateLimit:
		return http.StatusTooManyRequests
	case llm.KindLimitExceeded:
		return http.StatusPaymentRequired
	case llm.KindTimeout:
		return http.StatusGatewayTimeout
	case llm.KindCircuitOpen, llm.KindOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
