package metrics

import (
	"fmt"
	"sync"
	"time"
)

// MetricsManager is the global metrics manager
type MetricsManager struct {
	mu          sync.RWMutex
	timings     map[string]*TimingMetric
	counters    map[string]*CounterMetric
	successFail map[string]*SuccessFailMetric
}

var (
	instance *MetricsManager
	once     sync.Once
)

func newManager() *MetricsManager {
	return &MetricsManager{
		timings:     make(map[string]*TimingMetric),
		counters:    make(map[string]*CounterMetric),
		successFail: make(map[string]*SuccessFailMetric),
	}
}

// GetInstance returns the singleton metrics manager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = newManager()
	})
	return instance
}

// buildPath creates a normalized path from topic and function
func buildPath(topic, function string) string {
	if function == "" {
		return topic
	}
	return fmt.Sprintf("%s/%s", topic, function)
}

// Reset drops every recorded metric.
func (m *MetricsManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings = make(map[string]*TimingMetric)
	m.counters = make(map[string]*CounterMetric)
	m.successFail = make(map[string]*SuccessFailMetric)
}

// RecordDuration records a duration directly
func (m *MetricsManager) RecordDuration(topic, function string, duration time.Duration) {
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.timings[path]
	if !exists {
		metric = &TimingMetric{
			Min: duration,
			Max: duration,
		}
		m.timings[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Count++
	metric.Total += duration
	metric.Last = duration

	if duration < metric.Min {
		metric.Min = duration
	}
	if duration > metric.Max {
		metric.Max = duration
	}
}

// AddCounter adds delta to a counter
func (m *MetricsManager) AddCounter(topic, function string, delta int64) {
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.counters[path]
	if !exists {
		metric = &CounterMetric{}
		m.counters[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	metric.Value += delta
	metric.Last = time.Now()
	metric.mu.Unlock()
}

func (m *MetricsManager) successFailFor(path string) *SuccessFailMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, exists := m.successFail[path]
	if !exists {
		metric = &SuccessFailMetric{FailureReasons: make(map[string]int64)}
		m.successFail[path] = metric
	}
	return metric
}

// RecordSuccess records a successful operation
func (m *MetricsManager) RecordSuccess(topic, function string) {
	metric := m.successFailFor(buildPath(topic, function))

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Success++
	metric.LastSuccess = time.Now()
	metric.push(true)
}

// RecordFailure records a failed operation with an optional reason
func (m *MetricsManager) RecordFailure(topic, function, reason string) {
	metric := m.successFailFor(buildPath(topic, function))

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Failures++
	metric.LastFailure = time.Now()
	if reason != "" {
		metric.FailureReasons[reason]++
	}
	metric.push(false)
}

// caller holds s.mu
func (s *SuccessFailMetric) push(ok bool) {
	s.recentWindow[s.windowIndex] = ok
	s.windowIndex = (s.windowIndex + 1) % len(s.recentWindow)
	if s.windowSize < len(s.recentWindow) {
		s.windowSize++
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func getTimingHealth(avgMs float64) HealthStatus {
	switch {
	case avgMs > 10000:
		return HealthCritical
	case avgMs > 3000:
		return HealthWarning
	}
	return HealthGood
}

// getRateHealth grades the success rate over the recent windows.
func getRateHealth(ok, total int) HealthStatus {
	if total == 0 {
		return HealthGood
	}
	rate := float64(ok) / float64(total)
	switch {
	case rate < 0.5:
		return HealthCritical
	case rate < 0.9:
		return HealthWarning
	}
	return HealthGood
}

// caller holds s.mu
func (s *SuccessFailMetric) recent() (ok, total int) {
	for i := 0; i < s.windowSize; i++ {
		if s.recentWindow[i] {
			ok++
		}
	}
	return ok, s.windowSize
}
