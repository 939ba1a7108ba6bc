// Package handler serves the reference collections over HTTP.
package handler

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/referentiel"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/metrics"
)

// Registry serves the current snapshot. *referentiel.Registry satisfies it.
type Registry interface {
	Current() *referentiel.Snapshot
	Definition(kind referentiel.Kind) (referentiel.Definition, bool)
}

type Handler struct {
	registry Registry
	cache    *cache.ResponseCache
	tracker  analytics.Tracker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds a Handler. responseCache, tracker and m may be nil.
func New(registry Registry, responseCache *cache.ResponseCache, tracker analytics.Tracker, m *metrics.Metrics) *Handler {
	return &Handler{
		registry: registry,
		cache:    responseCache,
		tracker:  tracker,
		metrics:  m,
		logger:   logger.WithComponent("geo-handler"),
	}
}

// lookup is one rendered answer.
type lookup struct {
	body     []byte
	returned int
}

// lookupFunc computes the answer of a request against snap.
type lookupFunc func(snap *referentiel.Snapshot) (lookup, error)

// List answers GET /{kind}: a search over kind with the request criteria.
func (h *Handler) List(kind referentiel.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, _ := h.registry.Definition(kind)
		values := r.URL.Query()
		h.serve(w, r, kind, criteria(def, values), func(snap *referentiel.Snapshot) (lookup, error) {
			out, err := parseOutput(def, values, true)
			if err != nil {
				return lookup{}, err
			}
			q := buildQuery(def, values)
			if _, ok := q["nom"]; ok {
				out.fields.add(collection.ScoreField)
			}
			if len(q) == 0 && (out.geoJSON() || out.fields.has("contour")) {
				return lookup{}, apperrors.BadRequest("at least one search criterion is required for this output")
			}
			records := out.applyLimit(snap.Get(kind).Search(withDefaults(def, q)))
			body, err := renderList(snap, out, records)
			return lookup{body: body, returned: len(records)}, err
		})
	}
}

// ByCode answers GET /{kind}/{code}.
func (h *Handler) ByCode(kind referentiel.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, _ := h.registry.Definition(kind)
		code := r.PathValue("code")
		h.serve(w, r, kind, map[string]string{"code": code}, func(snap *referentiel.Snapshot) (lookup, error) {
			out, err := parseOutput(def, r.URL.Query(), false)
			if err != nil {
				return lookup{}, err
			}
			record, ok := snap.Get(kind).Get(code)
			if !ok {
				return lookup{}, apperrors.NotFound("%s %s not found", kind, code)
			}
			body, err := renderOne(snap, out, record)
			return lookup{body: body, returned: 1}, err
		})
	}
}

// Children answers GET /{parent}/{code}/{child}: the child records whose
// field references the parent code. The parent must exist.
func (h *Handler) Children(parent, child referentiel.Kind, field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, _ := h.registry.Definition(child)
		code := r.PathValue("code")
		h.serve(w, r, child, map[string]string{field: code}, func(snap *referentiel.Snapshot) (lookup, error) {
			out, err := parseOutput(def, r.URL.Query(), true)
			if err != nil {
				return lookup{}, err
			}
			if _, ok := snap.Get(parent).Get(code); !ok {
				return lookup{}, apperrors.NotFound("%s %s not found", parent, code)
			}
			q := withDefaults(def, collection.Query{field: code})
			records := out.applyLimit(snap.Get(child).Search(q))
			body, err := renderList(snap, out, records)
			return lookup{body: body, returned: len(records)}, err
		})
	}
}

// serve runs fn through the response cache and writes the result.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, kind referentiel.Kind, crit map[string]string, fn lookupFunc) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	snap := h.registry.Current()
	if snap == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "dataset not loaded"))
		return
	}

	var (
		res      lookup
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		var data []byte
		key := cache.Key(snap.Generation, r.URL.Path, r.URL.Query())
		data, cacheHit, err = h.cache.GetOrCompute(ctx, key, func() ([]byte, error) {
			computed, err := fn(snap)
			if err != nil {
				return nil, err
			}
			return encodeEntry(computed), nil
		})
		if err == nil {
			res, err = decodeEntry(data)
		}
	} else {
		res, err = fn(snap)
	}

	latency := time.Since(start)
	if err != nil {
		h.observe(kind, "error", latency, 0)
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			log.Error("lookup failed", "kind", kind, "path", r.URL.Path, "error", err)
		}
		h.writeError(w, err)
		return
	}

	outcome := "hit"
	if res.returned == 0 {
		outcome = "zero_result"
	}
	h.observe(kind, outcome, latency, res.returned)
	log.Debug("lookup completed",
		"kind", kind,
		"returned", res.returned,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.LookupEvent{
			Kind:      string(kind),
			Route:     r.Pattern,
			Criteria:  crit,
			Returned:  res.returned,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			RequestID: logger.RequestID(ctx),
			Timestamp: time.Now().UTC(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.body); err != nil {
		log.Error("failed to write response", "error", err)
	}
}

func (h *Handler) observe(kind referentiel.Kind, outcome string, latency time.Duration, returned int) {
	if h.metrics == nil {
		return
	}
	h.metrics.LookupsTotal.WithLabelValues(string(kind), outcome).Inc()
	h.metrics.LookupLatency.WithLabelValues(string(kind)).Observe(latency.Seconds())
	if outcome != "error" {
		h.metrics.LookupResultsCount.WithLabelValues(string(kind)).Observe(float64(returned))
	}
}

// Cached entries carry the result count ahead of the body.
func encodeEntry(l lookup) []byte {
	buf := binary.AppendUvarint(make([]byte, 0, len(l.body)+4), uint64(l.returned))
	return append(buf, l.body...)
}

func decodeEntry(data []byte) (lookup, error) {
	n, size := binary.Uvarint(data)
	if size <= 0 {
		return lookup{}, errors.New("corrupt cache entry")
	}
	return lookup{body: data[size:], returned: int(n)}, nil
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := apperrors.Message(err)
	var appErr *apperrors.AppError
	if status >= http.StatusInternalServerError && !errors.As(err, &appErr) {
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
