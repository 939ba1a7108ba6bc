package referentiel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/tracing"
)

// Loader reads the records of a named dataset.
type Loader interface {
	Load(ctx context.Context, name string) ([]collection.Record, error)
}

// Snapshot is an immutable, fully built set of collections.
type Snapshot struct {
	Generation  int64
	LoadedAt    time.Time
	collections map[Kind]*collection.Collection
}

// Get returns the collection of kind, or nil when the snapshot lacks it.
func (s *Snapshot) Get(kind Kind) *collection.Collection {
	return s.collections[kind]
}

// Counts returns the number of records of every collection.
func (s *Snapshot) Counts() map[Kind]int {
	counts := make(map[Kind]int, len(s.collections))
	for k, c := range s.collections {
		counts[k] = c.Len()
	}
	return counts
}

// NewSnapshot builds a snapshot from already loaded collections.
func NewSnapshot(generation int64, collections map[Kind]*collection.Collection) *Snapshot {
	return &Snapshot{Generation: generation, LoadedAt: time.Now(), collections: collections}
}

// Registry serves the current snapshot and rebuilds it on demand.
type Registry struct {
	loader      Loader
	files       map[Kind]string
	definitions map[Kind]Definition
	metrics     *metrics.Metrics
	logger      *slog.Logger

	current    atomic.Pointer[Snapshot]
	generation atomic.Int64
	reloadMu   sync.Mutex
}

// NewRegistry validates every definition and returns an empty registry.
// files maps a kind to the dataset name given to loader; kinds without a
// file are served empty. m may be nil.
func NewRegistry(loader Loader, files map[Kind]string, m *metrics.Metrics) (*Registry, error) {
	defs := Definitions()
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return &Registry{
		loader:      loader,
		files:       files,
		definitions: defs,
		metrics:     m,
		logger:      slog.Default().With("component", "referentiel"),
	}, nil
}

// Definition returns the definition of kind.
func (r *Registry) Definition(kind Kind) (Definition, bool) {
	d, ok := r.definitions[kind]
	return d, ok
}

// Current returns the snapshot being served, or nil before the first
// successful reload.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Ready reports whether a snapshot is being served.
func (r *Registry) Ready() bool {
	return r.current.Load() != nil
}

// Reload loads and indexes every kind in parallel and swaps the new snapshot
// in only when all of them succeeded. On failure the previous snapshot keeps
// being served.
func (r *Registry) Reload(ctx context.Context) (*Snapshot, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "referentiel.reload", "")
	defer func() {
		span.End()
		span.Log(r.logger)
	}()

	var mu sync.Mutex
	built := make(map[Kind]*collection.Collection, len(Kinds))
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range Kinds {
		g.Go(func() error {
			c, err := r.build(gctx, kind)
			if err != nil {
				return err
			}
			mu.Lock()
			built[kind] = c
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.Fail(err)
		if r.metrics != nil {
			r.metrics.DatasetReloadsTotal.WithLabelValues("error").Inc()
		}
		r.logger.Error("reload failed, keeping previous collections", "error", err)
		return nil, err
	}

	snap := NewSnapshot(r.generation.Add(1), built)
	r.current.Store(snap)
	span.SetAttr("generation", snap.Generation)

	if r.metrics != nil {
		r.metrics.DatasetReloadsTotal.WithLabelValues("success").Inc()
		r.metrics.DatasetGeneration.Set(float64(snap.Generation))
		for kind, n := range snap.Counts() {
			r.metrics.DatasetRecords.WithLabelValues(string(kind)).Set(float64(n))
		}
	}
	r.logger.Info("collections reloaded", "generation", snap.Generation, "counts", snap.Counts())
	return snap, nil
}

func (r *Registry) build(ctx context.Context, kind Kind) (*collection.Collection, error) {
	ctx, span := tracing.StartChildSpan(ctx, "referentiel.build")
	span.SetAttr("kind", string(kind))
	defer span.End()

	start := time.Now()
	def := r.definitions[kind]
	var records []collection.Record
	if name, ok := r.files[kind]; ok && name != "" {
		var err error
		records, err = r.loader.Load(ctx, name)
		if err != nil {
			span.Fail(err)
			return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrDatasetLoad, kind, err)
		}
	}
	c, err := def.Build(records)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	span.SetAttr("records", c.Len())
	if r.metrics != nil {
		r.metrics.DatasetLoadDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}
	return c, nil
}

// Enrich returns {code, nom} of the département or région referenced by
// code, or nil when unknown.
func (s *Snapshot) Enrich(kind Kind, code string) map[string]any {
	c := s.Get(kind)
	if c == nil || code == "" {
		return nil
	}
	r, ok := c.Get(code)
	if !ok {
		return nil
	}
	return map[string]any{"code": r["code"], "nom": r["nom"]}
}
