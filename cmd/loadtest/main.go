// Command loadtest replays a mix of geo lookups against a running api and
// reports latency percentiles per route.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// lookups is the request mix, cycled by every worker.
var lookups = []string{
	"/communes?nom=nantes",
	"/communes?nom=st%20nazaire&fields=nom,code,population",
	"/communes?codePostal=44000",
	"/communes?lat=47.2184&lon=-1.5536",
	"/communes?lat=48.8566&lon=2.3522&fields=nom,code,departement,region",
	"/communes?nom=paris&type=arrondissement-municipal",
	"/communes/44109",
	"/communes/44109?format=geojson&geometry=centre",
	"/communes_associees_deleguees?nom=saint",
	"/epcis?nom=metropole",
	"/epcis/244400404/communes?fields=nom,code",
	"/departements?nom=loire",
	"/departements/44/communes?limit=20",
	"/regions/52/departements",
	"/pays?nom=france",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Rate        float64
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	bytesRead     atomic.Int64

	mu          sync.Mutex
	latencies   map[string][]time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(route string, duration time.Duration, statusCode int, n int64, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	s.bytesRead.Add(n)

	s.mu.Lock()
	s.latencies[route] = append(s.latencies[route], duration)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "base URL of the geo api")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "overall request rate, 0 for unlimited")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Rate:        *rps,
	}

	fmt.Println("=== Geo API Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Lookups:     %d routes\n", len(lookups))
	fmt.Println()

	stats := runLoadTest(cfg)
	os.Exit(printReport(stats, cfg.Duration))
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Concurrency)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Concurrency {
		g.Go(func() error {
			for i := w; ; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
				route := lookups[i%len(lookups)]
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+route, nil)
				if err != nil {
					return fmt.Errorf("creating request: %w", err)
				}

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					stats.RecordRequest(route, time.Since(start), 0, 0, err)
					continue
				}
				n, _ := io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(route, time.Since(start), resp.StatusCode, n, nil)
			}
		})
	}

	fmt.Print("Running")
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\nload test aborted: %v\n", err)
	}
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// printReport writes the summary and returns the process exit code.
func printReport(stats *Stats, duration time.Duration) int {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errs := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %s\n", humanize.Comma(total))
	fmt.Printf("Successful:      %s\n", humanize.Comma(success))
	fmt.Printf("Errors:          %s\n", humanize.Comma(errs))
	fmt.Printf("Transferred:     %s\n", humanize.Bytes(uint64(stats.bytesRead.Load())))
	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return 1
	}
	fmt.Printf("Error Rate:      %.2f%%\n", float64(errs)/float64(total)*100)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	stats.mu.Lock()
	defer stats.mu.Unlock()

	var all []time.Duration
	routes := make([]string, 0, len(stats.latencies))
	for route, l := range stats.latencies {
		routes = append(routes, route)
		all = append(all, l...)
	}
	slices.Sort(routes)
	slices.Sort(all)

	if len(all) > 0 {
		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", all[0])
		fmt.Printf("Avg:    %s\n", mean(all))
		fmt.Printf("P50:    %s\n", percentile(all, 50))
		fmt.Printf("P90:    %s\n", percentile(all, 90))
		fmt.Printf("P95:    %s\n", percentile(all, 95))
		fmt.Printf("P99:    %s\n", percentile(all, 99))
		fmt.Printf("Max:    %s\n", all[len(all)-1])
		fmt.Printf("StdDev: %s\n", stddev(all))

		fmt.Println()
		fmt.Println("=== P95 by route ===")
		for _, route := range routes {
			l := stats.latencies[route]
			slices.Sort(l)
			fmt.Printf("  %-70s %8s  (%s)\n", route, percentile(l, 95), humanize.Comma(int64(len(l))))
		}
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %s\n", code, humanize.Comma(stats.statusCodes[code]))
	}
	return 0
}

func mean(l []time.Duration) time.Duration {
	var sum time.Duration
	for _, d := range l {
		sum += d
	}
	return sum / time.Duration(len(l))
}

func stddev(l []time.Duration) time.Duration {
	avg := float64(mean(l))
	var sumSquared float64
	for _, d := range l {
		diff := float64(d) - avg
		sumSquared += diff * diff
	}
	return time.Duration(math.Sqrt(sumSquared / float64(len(l))))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
