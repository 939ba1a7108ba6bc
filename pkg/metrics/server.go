package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NewServer builds the scrape server. It listens apart from the API so
// scrapes bypass rate limiting and request timeouts.
func NewServer(port int, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, datasetSummary(gatherer))
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// StartServer serves metrics from the default registry in the background.
func StartServer(port int) (shutdown func(context.Context) error) {
	server := NewServer(port, prometheus.DefaultGatherer)
	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return server.Shutdown
}

// datasetSummary renders the served generation and per-kind record counts.
func datasetSummary(gatherer prometheus.Gatherer) string {
	var b strings.Builder
	b.WriteString("geo api metrics: /metrics\n")
	families, err := gatherer.Gather()
	if err != nil {
		fmt.Fprintf(&b, "gather failed: %v\n", err)
		return b.String()
	}
	var counts []string
	for _, f := range families {
		switch f.GetName() {
		case "dataset_generation":
			for _, m := range f.GetMetric() {
				fmt.Fprintf(&b, "generation: %d\n", int64(m.GetGauge().GetValue()))
			}
		case "dataset_records":
			for _, m := range f.GetMetric() {
				kind := ""
				for _, l := range m.GetLabel() {
					if l.GetName() == "kind" {
						kind = l.GetValue()
					}
				}
				counts = append(counts, fmt.Sprintf("  %s: %d", kind, int64(m.GetGauge().GetValue())))
			}
		}
	}
	if len(counts) > 0 {
		slices.Sort(counts)
		b.WriteString("records:\n")
		b.WriteString(strings.Join(counts, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
