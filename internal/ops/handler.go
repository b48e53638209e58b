// Package ops exposes the operational HTTP surface: liveness, readiness,
// Prometheus metrics and a stuck-entity listing for operators chasing
// ERROR-parked or long-pending entities.
package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pixcore/internal/lifecycle"
	"pixcore/internal/platform/middleware"
	dErrors "pixcore/pkg/domain-errors"
)

// EntitySummary is one row of the stuck-entity listing.
type EntitySummary struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Lister lists entities of one family by state age.
type Lister func(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]EntitySummary, error)

// ListerFor adapts a repository to the ops listing.
func ListerFor[E lifecycle.Entity](repo lifecycle.Repository[E]) Lister {
	return func(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]EntitySummary, error) {
		entities, err := repo.ListByStateOlderThan(ctx, states, cutoff)
		if err != nil {
			return nil, err
		}
		out := make([]EntitySummary, 0, len(entities))
		for _, e := range entities {
			m := e.GetMeta()
			out = append(out, EntitySummary{
				ID:        m.ID,
				State:     string(m.State),
				UpdatedAt: m.UpdatedAt,
			})
		}
		return out, nil
	}
}

// HealthCheck verifies one dependency.
type HealthCheck func(ctx context.Context) error

// Handler serves the ops routes.
type Handler struct {
	logger  *slog.Logger
	listers map[string]Lister
	checks  map[string]HealthCheck
	clock   func() time.Time
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func WithClock(clock func() time.Time) Option {
	return func(h *Handler) { h.clock = clock }
}

func New(opts ...Option) *Handler {
	h := &Handler{
		logger:  slog.Default(),
		listers: make(map[string]Lister),
		checks:  make(map[string]HealthCheck),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterFamily adds a family to the stuck-entity listing.
func (h *Handler) RegisterFamily(family string, lister Lister) {
	h.listers[family] = lister
}

// RegisterCheck adds a dependency to the readiness probe.
func (h *Handler) RegisterCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Router builds the ops router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/families/{family}/stuck", h.handleStuck)
	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, results)
}

// handleStuck lists entities sitting in the given states longer than
// olderThan (default one hour). States default to ERROR.
func (h *Handler) handleStuck(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	lister, ok := h.listers[family]
	if !ok {
		writeError(w, dErrors.Newf(dErrors.CodeNotFound, "unknown entity family %q", family))
		return
	}

	olderThan := time.Hour
	if raw := r.URL.Query().Get("olderThan"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, dErrors.New(dErrors.CodeValidation, "olderThan must be a duration"))
			return
		}
		olderThan = d
	}

	states := []lifecycle.State{"ERROR"}
	if raw := r.URL.Query()["state"]; len(raw) > 0 {
		states = states[:0]
		for _, s := range raw {
			states = append(states, lifecycle.State(s))
		}
	}

	entities, err := lister(r.Context(), states, h.clock().Add(-olderThan))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stuck-entity listing failed",
			"family", family,
			"error", err,
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"family":   family,
		"entities": entities,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeValidation, dErrors.CodeInvalidState:
		status = http.StatusBadRequest
	case dErrors.CodeConflict:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{
		"code":  string(dErrors.CodeOf(err)),
		"error": err.Error(),
	})
}
