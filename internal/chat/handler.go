package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blood-report-agent/internal/platform/logger"
)

type Handler struct {
	svc Service
	log *logger.Logger
}

func NewHandler(svc Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("handler", "chat")}
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	answer, err := h.svc.ProcessChat(r.Context(), req)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, ErrBackendUnavailable):
			h.log.Warn("generation backend unavailable", "session_id", req.SessionID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "generation backend unavailable, retry later")
		default:
			h.log.Error("chat failed", "session_id", req.SessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "chat failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"response": answer})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/chat", h.HandleChat)
}
