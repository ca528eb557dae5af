package metrics

import (
	"strings"
	"time"
)

// Global functions for dot-import usage

// MetricDuration records a duration directly
func MetricDuration(topic, function string, duration time.Duration) {
	GetInstance().RecordDuration(topic, function, duration)
}

// MetricInc increments a counter by 1
func MetricInc(topic, function string) {
	GetInstance().AddCounter(topic, function, 1)
}

// MetricSuccess records a successful operation
func MetricSuccess(topic, operation string) {
	GetInstance().RecordSuccess(topic, operation)
}

// MetricFailWithReason records a failed operation with a specific reason
func MetricFailWithReason(topic, operation, reason string) {
	GetInstance().RecordFailure(topic, operation, reason)
}

// TopicSummary aggregates the metrics recorded under a topic.
type TopicSummary struct {
	Requests     int64
	Failures     int64
	AvgMs        float64
	LastFailure  time.Time
	StaleDropped int64        // counter topic/stale_dropped
	Health       HealthStatus // worst of latency and recent success rate
}

// Summarize rolls up metrics whose path starts with topic + "/".
// Timings and success/fail pairs recorded under the same path are both counted.
func Summarize(topic string) TopicSummary {
	m := GetInstance()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum TopicSummary
	var total time.Duration
	var timed int64
	var recentOK, recentN int

	prefix := topic + "/"
	for path, t := range m.timings {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		t.mu.RLock()
		total += t.Total
		timed += t.Count
		t.mu.RUnlock()
	}
	for path, s := range m.successFail {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		s.mu.RLock()
		sum.Requests += s.Success + s.Failures
		sum.Failures += s.Failures
		if s.LastFailure.After(sum.LastFailure) {
			sum.LastFailure = s.LastFailure
		}
		ok, n := s.recent()
		recentOK += ok
		recentN += n
		s.mu.RUnlock()
	}
	if c, ok := m.counters[buildPath(topic, "stale_dropped")]; ok {
		c.mu.RLock()
		sum.StaleDropped = c.Value
		c.mu.RUnlock()
	}
	if timed > 0 {
		sum.AvgMs = ms(total) / float64(timed)
	}
	sum.Health = max(getTimingHealth(sum.AvgMs), getRateHealth(recentOK, recentN))
	return sum
}
