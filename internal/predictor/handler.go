package predictor

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/applicant"
	apperrors "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Answerer answers policy questions. *assistant.Assistant implements it.
type Answerer interface {
	Answer(query string) string
}

// Handler exposes the Service and the policy assistant over HTTP.
type Handler struct {
	service   *Service
	assistant Answerer
	cache     *Cache
	logger    *slog.Logger
}

// NewHandler creates a Handler. cache may be nil.
func NewHandler(service *Service, assistant Answerer, cache *Cache) *Handler {
	return &Handler{
		service:   service,
		assistant: assistant,
		cache:     cache,
		logger:    slog.Default().With("component", "predict-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/predict", h.Predict)
	mux.HandleFunc("GET /api/v1/assistant", h.Assistant)
	mux.HandleFunc("GET /api/v1/model", h.Model)
	mux.HandleFunc("GET /api/v1/options", h.Options)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Predict accepts one applicant object or an array of them.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	records, single, err := applicant.DecodeBatch(body)
	if err != nil {
		log.Info("rejected prediction request", "error", err)
		h.writeErr(w, err)
		return
	}

	results, err := h.service.Predict(ctx, records)
	if err != nil {
		if !errors.Is(err, apperrors.ErrModelNotLoaded) {
			log.Error("prediction failed", "records", len(records), "error", err)
		}
		h.writeErr(w, err)
		return
	}
	log.Info("prediction served", "records", len(results), "first_status", results[0].Status)

	if single {
		h.writeJSON(w, http.StatusOK, results[0])
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Assistant answers ?q= from the policy document. A blank query gets the
// assistant's fallback reply, not an error.
func (h *Handler) Assistant(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	h.writeJSON(w, http.StatusOK, map[string]string{"answer": h.assistant.Answer(q)})
}

// Model describes the loaded pipeline.
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	meta, err := h.service.Metadata()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, meta)
}

// Options returns the form choices and defaults.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"options":  applicant.FormOptions(),
		"defaults": applicant.FormDefaults(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// writeErr maps err to a status and a JSON body. Validation failures carry
// the offending row and fields.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		body := map[string]any{"error": err.Error(), "fields": ve.Fields}
		if ve.Row >= 0 {
			body["row"] = ve.Row
		}
		h.writeJSON(w, status, body)
		return
	}
	msg := userMessage(err)
	if status == http.StatusInternalServerError {
		msg = "prediction failed"
	}
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
