package analytics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	maxLatencySamples  = 10000
	defaultTopCriteria = 10
)

type AggregatedStats struct {
	TotalLookups     int64            `json:"total_lookups"`
	CacheHits        int64            `json:"cache_hits"`
	CacheMisses      int64            `json:"cache_misses"`
	ZeroResultCount  int64            `json:"zero_result_count"`
	LookupsByKind    map[string]int64 `json:"lookups_by_kind"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	P50LatencyMs     int64            `json:"p50_latency_ms"`
	P95LatencyMs     int64            `json:"p95_latency_ms"`
	P99LatencyMs     int64            `json:"p99_latency_ms"`
	TopCriteria      []CriteriaCount  `json:"top_criteria"`
	LookupsPerMinute float64          `json:"lookups_per_minute"`
}

type CriteriaCount struct {
	Criteria string `json:"criteria"`
	Count    int64  `json:"count"`
}

// Aggregator keeps in-process lookup statistics. It is a Tracker.
type Aggregator struct {
	mu            sync.Mutex
	total         int64
	cacheHits     int64
	zeroResults   int64
	byKind        map[string]int64
	latencies     []int64
	next          int
	criteriaCount map[string]int64
	startTime     time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byKind:        make(map[string]int64),
		latencies:     make([]int64, 0, 1024),
		criteriaCount: make(map[string]int64),
		startTime:     time.Now(),
	}
}

func (a *Aggregator) Track(event LookupEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	if event.CacheHit {
		a.cacheHits++
	}
	if event.Returned == 0 {
		a.zeroResults++
	}
	a.byKind[event.Kind]++

	// ring buffer once full
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if key := criteriaKey(event.Criteria); key != "" {
		a.criteriaCount[event.Kind+"?"+key]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsFor("", defaultTopCriteria)
}

// StatsFor limits TopCriteria to top entries, only those of kind when it
// is set. The counters always cover every collection.
func (a *Aggregator) StatsFor(kind string, top int) AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalLookups:    a.total,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.total - a.cacheHits,
		ZeroResultCount: a.zeroResults,
		LookupsByKind:   make(map[string]int64, len(a.byKind)),
	}
	for k, v := range a.byKind {
		stats.LookupsByKind[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	counts := a.criteriaCount
	if kind != "" {
		counts = make(map[string]int64)
		for key, n := range a.criteriaCount {
			if strings.HasPrefix(key, kind+"?") {
				counts[key] = n
			}
		}
	}
	stats.TopCriteria = topN(counts, top)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.LookupsPerMinute = float64(stats.TotalLookups) / elapsed
	}
	return stats
}

// criteriaKey renders criteria names in a stable order, values omitted.
func criteriaKey(criteria map[string]string) string {
	if len(criteria) == 0 {
		return ""
	}
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "&")
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []CriteriaCount {
	result := make([]CriteriaCount, 0, len(counts))
	for criteria, count := range counts {
		result = append(result, CriteriaCount{Criteria: criteria, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Criteria < result[j].Criteria
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
