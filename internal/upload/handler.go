package upload

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/report"
)

// maxUploadBytes caps report files at 16MB, matching what labs actually emit.
const maxUploadBytes = 16 << 20

type Handler struct {
	svc Service
	log *logger.Logger
}

func NewHandler(svc Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("handler", "upload")}
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form (16MB limit)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field 'file'")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	res, err := h.svc.ProcessUpload(r.Context(), header.Filename, data)
	if err != nil {
		var perr *report.ParseError
		var berr *report.BloodReportError
		switch {
		case errors.As(err, &perr), errors.As(err, &berr):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			// Loader and unexpected failures: log detail, answer generically.
			h.log.Error("upload failed", "file", header.Filename, "error", err)
			writeError(w, http.StatusBadRequest, "could not read a report from the uploaded file")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/upload", h.HandleUpload)
}
