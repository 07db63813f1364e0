// Package observability tracks how the query builder is used and exposes
// upload and query metrics.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats tracks filter-field and join-table frequency for the query
// builder. Frequently filtered columns are index candidates.
type QueryStats struct {
	mu         sync.RWMutex
	filterFreq map[string]*ColumnStats
	joinFreq   map[string]*ColumnStats
	window     time.Duration
}

// ColumnStats holds statistics for a column or table.
type ColumnStats struct {
	Column    string         `json:"column"`
	Frequency int64          `json:"frequency"`
	LastSeen  time.Time      `json:"last_seen"`
	Builders  map[string]int `json:"builders"` // builder → count (e.g., "customize" → 5)
}

// NewQueryStats creates a new query statistics tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		filterFreq: make(map[string]*ColumnStats),
		joinFreq:   make(map[string]*ColumnStats),
		window:     window,
	}
}

func record(m map[string]*ColumnStats, key, builder string) {
	stats, exists := m[key]
	if !exists {
		stats = &ColumnStats{
			Column:   key,
			Builders: make(map[string]int),
		}
		m[key] = stats
	}
	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Builders[builder]++
}

// RecordFilter records a filter on a column by the named builder.
// This method is O(1) and thread-safe.
func (q *QueryStats) RecordFilter(column, builder string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	record(q.filterFreq, column, builder)
}

// RecordJoin records a table joined by the named builder.
// This method is O(1) and thread-safe.
func (q *QueryStats) RecordJoin(table, builder string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	record(q.joinFreq, table, builder)
}

// GetTopFilters returns the top N filtered columns by frequency.
func (q *QueryStats) GetTopFilters(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return top(q.filterFreq, n)
}

// GetTopJoins returns the top N joined tables by frequency.
func (q *QueryStats) GetTopJoins(n int) []ColumnStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return top(q.joinFreq, n)
}

// top returns copies sorted by frequency (descending), ties by name.
func top(m map[string]*ColumnStats, n int) []ColumnStats {
	if n <= 0 || len(m) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(m))
	for _, s := range m {
		statsCopy := ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Builders:  make(map[string]int, len(s.Builders)),
		}
		for b, count := range s.Builders {
			statsCopy.Builders[b] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
// This should be called periodically (e.g., every 5 minutes).
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)
	for _, m := range []map[string]*ColumnStats{q.filterFreq, q.joinFreq} {
		for key, stats := range m {
			if stats.LastSeen.Before(threshold) {
				delete(m, key)
			}
		}
	}
}
