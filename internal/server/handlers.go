package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/blackjack-advisor/internal/advisor"
	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/metrics"
	"github.com/tjfontaine/blackjack-advisor/internal/notify"
)

// maxBodyBytes caps request bodies; a snapshot is a few hundred bytes.
const maxBodyBytes = 1 << 20

// Handler serves the advisor API.
type Handler struct {
	advisor  *advisor.Orchestrator
	metrics  *metrics.Aggregator
	journal  ports.Journal
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewHandler creates a handler. journal and notifier may be nil, which
// disables the endpoints backed by them.
func NewHandler(orch *advisor.Orchestrator, agg *metrics.Aggregator, journal ports.Journal, notifier *notify.Notifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		advisor:  orch,
		metrics:  agg,
		journal:  journal,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/recommendations", h.handleRecommend)
		r.Get("/recommendations", h.handleListRecommendations)
		r.Post("/recommendations/compare", h.handleCompare)
		r.Get("/recommendations/stream", h.handleStream)

		r.Get("/metrics", h.handleMetrics)
		r.Get("/metrics/providers", h.handleMetricsByProvider)
		r.Get("/metrics/models", h.handleMetricsByModel)
		r.Get("/metrics/summary", h.handleMetricsSummary)

		r.Post("/notifications", h.handleNotify)
	})
}

// RecommendRequest asks one provider for a recommendation.
type RecommendRequest struct {
	Provider string              `json:"provider"`
	Snapshot domain.GameSnapshot `json:"snapshot"`
}

// CompareRequest asks several providers at once. An empty provider list
// means every known provider.
type CompareRequest struct {
	Providers []string            `json:"providers"`
	Snapshot  domain.GameSnapshot `json:"snapshot"`
}

// NotificationRequest carries an out-of-band note for the agent.
type NotificationRequest struct {
	Note string `json:"note"`
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

func newList[T any](data []T) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Object: "list", Data: data}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !h.decode(w, r, &req) {
		return
	}
	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	AddLogField(r.Context(), "provider", string(provider))
	rec := h.advisor.Recommend(r.Context(), req.Snapshot, provider)
	AddLogField(r.Context(), "action", string(rec.Action))
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !h.decode(w, r, &req) {
		return
	}
	providers, err := parseProviders(req.Providers)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	recs := h.advisor.Compare(r.Context(), req.Snapshot, providers...)
	writeJSON(w, http.StatusOK, newList(recs))
}

func (h *Handler) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, errorTypeNotFound, "recommendation journal is disabled")
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	records, err := h.journal.List(r.Context(), opts)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, errorTypeAPI, "failed to list recommendations")
		return
	}
	writeJSON(w, http.StatusOK, newList(records))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newList(h.metrics.Samples()))
}

func (h *Handler) handleMetricsByProvider(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.ByProvider())
}

func (h *Handler) handleMetricsByModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.ByModel())
}

func (h *Handler) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Summary())
}

// handleNotify accepts a note and returns before delivery; failures are
// only logged.
func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if h.notifier != nil {
		h.notifier.Notify(req.Note)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.badRequest(w, r, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	writeError(w, http.StatusBadRequest, errorTypeInvalidRequest, err.Error())
}

func parseProviders(names []string) ([]domain.Provider, error) {
	out := make([]domain.Provider, 0, len(names))
	for _, name := range names {
		p, err := domain.ParseProvider(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseListOptions(r *http.Request) (ports.JournalListOptions, error) {
	q := r.URL.Query()
	var opts ports.JournalListOptions

	if v := q.Get("provider"); v != "" {
		p, err := domain.ParseProvider(v)
		if err != nil {
			return opts, err
		}
		opts.Provider = p
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return opts, fmt.Errorf("since: %w", err)
		}
		opts.Since = t
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	return opts, nil
}
