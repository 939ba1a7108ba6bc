package analytics

import "time"

// LookupEvent describes one answered collection lookup.
type LookupEvent struct {
	Kind      string            `json:"kind"`
	Route     string            `json:"route"`
	Criteria  map[string]string `json:"criteria,omitempty"`
	Returned  int               `json:"returned"`
	LatencyMs int64             `json:"latency_ms"`
	CacheHit  bool              `json:"cache_hit"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Tracker accepts lookup events without blocking.
type Tracker interface {
	Track(event LookupEvent)
}

// Trackers fans one event out to several trackers.
type Trackers []Tracker

func (ts Trackers) Track(event LookupEvent) {
	for _, t := range ts {
		t.Track(event)
	}
}
