package metrics

import (
	"sync"
	"time"
)

// HealthStatus represents the health of a metric
type HealthStatus int

const (
	HealthGood     HealthStatus = iota // Green
	HealthWarning                      // Yellow
	HealthCritical                     // Red
)

// TimingMetric tracks timing statistics
type TimingMetric struct {
	mu    sync.RWMutex
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Last  time.Duration
}

// CounterMetric tracks incrementing values
type CounterMetric struct {
	mu    sync.RWMutex
	Value int64
	Last  time.Time
}

// SuccessFailMetric tracks success and failure counts
type SuccessFailMetric struct {
	mu             sync.RWMutex
	Success        int64
	Failures       int64
	LastSuccess    time.Time
	LastFailure    time.Time
	FailureReasons map[string]int64 // reason -> count
	// Sliding window for recent rate calculation (last 100 operations)
	recentWindow [100]bool
	windowIndex  int
	windowSize   int
}
