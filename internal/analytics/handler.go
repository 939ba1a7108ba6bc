package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
)

const maxTopCriteria = 100

// Handler exposes the aggregator on GET /stats.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "stats-handler"),
	}
}

// Stats reports lookup counters since startup. top (1 to 100, default 10)
// bounds the criteria ranking and kind restricts it to one collection.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := defaultTopCriteria
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTopCriteria {
			bad := apperrors.BadRequest("top must be an integer between 1 and %d", maxTopCriteria)
			h.write(w, apperrors.HTTPStatusCode(bad), map[string]string{"error": apperrors.Message(bad)})
			return
		}
		top = n
	}
	h.write(w, http.StatusOK, h.aggregator.StatsFor(r.URL.Query().Get("kind"), top))
}

func (h *Handler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write stats response", "error", err)
	}
}
