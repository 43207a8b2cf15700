package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"epubinspect/internal/drm"
	"epubinspect/internal/epub"
	"epubinspect/internal/inspect"
	"epubinspect/internal/license"
	"epubinspect/internal/llm"
	"epubinspect/internal/storage"
)

// StartPointService is the use-case boundary the handler depends on.
type StartPointService interface {
	FindStartPoint(ctx context.Context, req inspect.Request) (llm.Decision, error)
}

type StartPointHandler struct {
	svc StartPointService
}

func NewStartPointHandler(svc StartPointService) *StartPointHandler {
	return &StartPointHandler{svc: svc}
}

func (h *StartPointHandler) HandleStartPoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req inspect.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Bucket = strings.TrimSpace(req.Bucket)
	req.Key = strings.TrimSpace(req.Key)
	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.Bucket == "" || req.Key == "" || req.ItemID == "" {
		http.Error(w, "bucket, key and item_id are required", http.StatusBadRequest)
		return
	}

	decision, err := h.svc.FindStartPoint(r.Context(), req)
	if err != nil {
		status, msg := statusFor(err)
		// Full error chain stays server-side; clients get the terse form.
		log.Printf("start-point failed: item=%s status=%d err=%v", req.ItemID, status, err)
		http.Error(w, msg, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"start_point": decision,
	})
}

// statusFor maps the domain error taxonomy onto HTTP statuses and a terse
// client-facing message. Malformed input data is the client's problem,
// missing resources and business conditions are unprocessable, upstream
// storage trouble is a bad gateway. Internal detail (entry names, SQL text)
// never leaves the process.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "source object not found"
	case errors.Is(err, license.ErrKeyNotFound):
		return http.StatusUnprocessableEntity, "no license key for item"
	case errors.Is(err, drm.ErrKeyFormat):
		return http.StatusUnprocessableEntity, "invalid license key"
	case errors.Is(err, epub.ErrMissingToc):
		return http.StatusUnprocessableEntity, "book has no table of contents"
	case errors.Is(err, drm.ErrIntegrity):
		return http.StatusBadRequest, "container failed integrity check"
	case errors.Is(err, drm.ErrFormat), errors.Is(err, epub.ErrFormat):
		return http.StatusBadRequest, "malformed container"
	case errors.Is(err, storage.ErrRetrieval), errors.Is(err, storage.ErrDenied):
		return http.StatusBadGateway, "source retrieval failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}
