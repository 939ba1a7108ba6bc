// Package refresh rebuilds the reference collections when a refresh request
// arrives on Kafka and announces each new generation.
package refresh

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/referentiel"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/logger"
)

// Request is the payload of a dataset-refresh message. An empty message is
// a valid request.
type Request struct {
	Reason      string    `json:"reason,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at,omitzero"`
}

// Reloaded is published to dataset-reloaded after a successful reload.
type Reloaded struct {
	Generation int64          `json:"generation"`
	Counts     map[string]int `json:"counts"`
	DurationMs int64          `json:"duration_ms"`
	Reason     string         `json:"reason,omitempty"`
	LoadedAt   time.Time      `json:"loaded_at"`
}

type Reloader interface {
	Reload(ctx context.Context) (*referentiel.Snapshot, error)
}

// Publisher announces reloads. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Invalidator drops cached responses of older generations.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Refresher struct {
	reloader    Reloader
	publisher   Publisher
	invalidator Invalidator
	logger      *slog.Logger
}

// New builds a Refresher. publisher and invalidator may be nil.
func New(reloader Reloader, publisher Publisher, invalidator Invalidator) *Refresher {
	return &Refresher{
		reloader:    reloader,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger.WithComponent("refresh"),
	}
}

// Handle is a kafka.MessageHandler. Malformed payloads are logged and
// acknowledged; a failed reload is returned so the message is not
// committed.
func (r *Refresher) Handle(ctx context.Context, key []byte, value []byte) error {
	var req Request
	if len(bytes.TrimSpace(value)) > 0 {
		decoded, err := kafka.DecodeJSON[Request](value)
		if err != nil {
			r.logger.Warn("skipping malformed refresh request", "key", string(key), "error", err)
			return nil
		}
		req = decoded
	}

	r.logger.Info("refresh requested", "reason", req.Reason, "requested_by", req.RequestedBy)
	start := time.Now()
	snap, err := r.reloader.Reload(ctx)
	if err != nil {
		return fmt.Errorf("reloading collections: %w", err)
	}

	if r.invalidator != nil {
		if err := r.invalidator.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}

	event := Reloaded{
		Generation: snap.Generation,
		Counts:     counts(snap),
		DurationMs: time.Since(start).Milliseconds(),
		Reason:     req.Reason,
		LoadedAt:   snap.LoadedAt,
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, kafka.Event{Key: fmt.Sprint(snap.Generation), Value: event}); err != nil {
			r.logger.Error("failed to announce reload", "generation", snap.Generation, "error", err)
		}
	}
	r.logger.Info("refresh completed", "generation", snap.Generation, "duration_ms", event.DurationMs)
	return nil
}

func counts(snap *referentiel.Snapshot) map[string]int {
	out := make(map[string]int)
	for kind, n := range snap.Counts() {
		out[string(kind)] = n
	}
	return out
}
