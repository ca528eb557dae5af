package metrics

import (
	"testing"
	"time"
)

func TestRecordSuccessFailure(t *testing.T) {
	m := newManager()
	m.RecordSuccess("api", "list")
	m.RecordSuccess("api", "list")
	m.RecordFailure("api", "list", "network")
	m.RecordFailure("api", "list", "")

	s := m.successFail["api/list"]
	if s == nil {
		t.Fatal("missing api/list metric")
	}
	if s.Success != 2 || s.Failures != 2 {
		t.Errorf("got %d/%d, want 2/2", s.Success, s.Failures)
	}
	if s.FailureReasons["network"] != 1 || len(s.FailureReasons) != 1 {
		t.Errorf("failure reasons = %v, want network:1", s.FailureReasons)
	}
	if ok, n := s.recent(); ok != 2 || n != 4 {
		t.Errorf("recent = %d/%d, want 2/4", ok, n)
	}
}

func TestRecordDuration(t *testing.T) {
	m := newManager()
	m.RecordDuration("api", "list", 100*time.Millisecond)
	m.RecordDuration("api", "list", 300*time.Millisecond)

	tm := m.timings["api/list"]
	if tm.Count != 2 || tm.Total != 400*time.Millisecond || tm.Min != 100*time.Millisecond || tm.Max != 300*time.Millisecond || tm.Last != 300*time.Millisecond {
		t.Errorf("unexpected timing: %+v", tm)
	}
}

func TestRecentWindowWraps(t *testing.T) {
	m := newManager()
	for i := 0; i < 150; i++ {
		m.RecordFailure("api", "list", "status")
	}
	for i := 0; i < 100; i++ {
		m.RecordSuccess("api", "list")
	}
	if ok, n := m.successFail["api/list"].recent(); ok != 100 || n != 100 {
		t.Errorf("recent = %d/%d, want 100/100", ok, n)
	}
}

func TestSummarize(t *testing.T) {
	GetInstance().Reset()
	defer GetInstance().Reset()

	MetricDuration("api", "list", 100*time.Millisecond)
	MetricDuration("api", "collect", 300*time.Millisecond)
	MetricSuccess("api", "list")
	MetricFailWithReason("api", "collect", "status")
	MetricSuccess("apix", "other")
	MetricInc("api", "stale_dropped")
	MetricInc("api", "stale_dropped")
	MetricInc("apix", "stale_dropped")

	sum := Summarize("api")
	if sum.Requests != 2 || sum.Failures != 1 {
		t.Errorf("requests/failures = %d/%d, want 2/1", sum.Requests, sum.Failures)
	}
	if sum.AvgMs != 200 {
		t.Errorf("avg = %v, want 200", sum.AvgMs)
	}
	if sum.LastFailure.IsZero() {
		t.Error("expected last failure time")
	}
	if sum.StaleDropped != 2 {
		t.Errorf("stale dropped = %d, want 2", sum.StaleDropped)
	}
	if sum.Health != HealthWarning && sum.Health != HealthCritical {
		t.Errorf("health = %v, want degraded at 50%% success", sum.Health)
	}
}

func TestSummarizeHealth(t *testing.T) {
	tests := []struct {
		name    string
		ok, bad int
		latency time.Duration
		want    HealthStatus
	}{
		{"no traffic", 0, 0, 0, HealthGood},
		{"all good", 10, 0, 100 * time.Millisecond, HealthGood},
		{"some failures", 8, 2, 100 * time.Millisecond, HealthWarning},
		{"mostly failing", 1, 9, 100 * time.Millisecond, HealthCritical},
		{"slow", 10, 0, 5 * time.Second, HealthWarning},
		{"very slow", 10, 0, 15 * time.Second, HealthCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			GetInstance().Reset()
			defer GetInstance().Reset()
			for i := 0; i < tt.ok; i++ {
				MetricSuccess("api", "list")
			}
			for i := 0; i < tt.bad; i++ {
				MetricFailWithReason("api", "list", "status")
			}
			if tt.latency > 0 {
				MetricDuration("api", "list", tt.latency)
			}
			if got := Summarize("api").Health; got != tt.want {
				t.Errorf("health = %v, want %v", got, tt.want)
			}
		})
	}
}
