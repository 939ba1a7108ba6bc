package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/resilience"
)

// LoaderOptions tunes how snapshots are fetched.
type LoaderOptions struct {
	GeometryFields []string
	Timeout        time.Duration
	Retry          resilience.RetryConfig
}

// Loader fetches and decodes snapshots from a Source, retrying transient
// failures.
type Loader struct {
	source         Source
	geometryFields map[string]struct{}
	timeout        time.Duration
	retry          resilience.RetryConfig
	logger         *slog.Logger
}

func NewLoader(source Source, opts LoaderOptions) *Loader {
	fields := make(map[string]struct{}, len(opts.GeometryFields))
	for _, f := range opts.GeometryFields {
		fields[f] = struct{}{}
	}
	return &Loader{
		source:         source,
		geometryFields: fields,
		timeout:        opts.Timeout,
		retry:          opts.Retry,
		logger:         slog.Default().With("component", "dataset-loader", "source", source.String()),
	}
}

// Load returns the records of the snapshot called name. Missing or
// malformed snapshots are not retried.
func (l *Loader) Load(ctx context.Context, name string) ([]collection.Record, error) {
	start := time.Now()
	var (
		records []collection.Record
		size    int64
	)
	err := resilience.Retry(ctx, "dataset.load", l.retry, func() error {
		return resilience.WithTimeout(ctx, l.timeout, "dataset.load "+name, func(ctx context.Context) error {
			recs, n, err := l.loadOnce(ctx, name)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, errMalformed) {
					return resilience.Permanent(err)
				}
				return err
			}
			records, size = recs, n
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s from %s: %w", name, l.source, err)
	}
	l.logger.Info("snapshot loaded",
		"name", name,
		"records", len(records),
		"size", humanize.Bytes(uint64(size)),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

func (l *Loader) loadOnce(ctx context.Context, name string) ([]collection.Record, int64, error) {
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	rc, err = decompress(name, rc)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", errMalformed, err)
	}
	defer rc.Close()

	cr := &countingReader{r: rc}
	records, err := Decode(cr, l.geometryFields)
	if err != nil {
		return nil, cr.n, err
	}
	return records, cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
