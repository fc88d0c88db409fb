// Package analytics records search events, ships them over Kafka and
// aggregates them into the statistics served at /api/v1/analytics.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	// EventZeroResult marks a query that matched nothing, in its category
	// or globally, and was answered with suggestions only.
	EventZeroResult EventType = "zero_result"
)

type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Category    string    `json:"category,omitempty"`
	Outcome     string    `json:"outcome"`
	Primary     int       `json:"primary"`
	Global      int       `json:"global"`
	Suggestions int       `json:"suggestions"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// ZeroResult reports whether neither result tier matched the query.
func (e SearchEvent) ZeroResult() bool {
	return e.Type == EventZeroResult || (e.Outcome == "suggestions_only" && e.Primary == 0 && e.Global == 0)
}

// Tracker accepts search events. Both *Collector and *Aggregator implement
// it, so the handler can ship events over Kafka or aggregate them in process.
type Tracker interface {
	Track(event SearchEvent)
}
