package caseAuth

import (
	"sort"
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter. The zero value is MetricLoginSuccess.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	// MetricUnknownUser counts lookups of logins with no active user.
	MetricUnknownUser
	MetricDirectoryRejected
	// MetricDirectoryUnavailable counts directory calls that gave no answer.
	MetricDirectoryUnavailable
	MetricDirectoryFallback
	MetricLocalRejected
	// MetricMFARequired counts sessions stopped at the MFA gate.
	MetricMFARequired
	MetricSessionEstablished
	// MetricDefaultCaseAssigned counts users given the first case on login.
	MetricDefaultCaseAssigned
	MetricRedirectRejected
	MetricExternalLoginSuccess
	MetricExternalLoginFailure
	// MetricLoginLatency names the login latency histogram. It has no counter.
	MetricLoginLatency
)

// loginLatencyBoundsMs are the upper bounds of the login latency buckets.
// One more bucket past the last bound catches slower logins.
var loginLatencyBoundsMs = [...]int64{5, 10, 25, 50, 100, 250, 500}

// Metrics holds lock-free engine counters and the login latency histogram.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled        bool
	latencyEnabled bool

	outcomes     [MetricLoginLatency]atomic.Uint64
	loginLatency [len(loginLatencyBoundsMs) + 1]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram buckets
// are non-cumulative with upper bounds 5, 10, 25, 50, 100, 250, 500 ms and +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:        cfg.Enabled,
		latencyEnabled: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latencyEnabled
}

// Inc bumps the counter for id. Histogram ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricLoginLatency {
		return
	}
	m.outcomes[id].Add(1)
}

// Observe records how long a login took. Only MetricLoginLatency is a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricLoginLatency {
		return
	}
	m.loginLatency[latencyBucket(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricLoginLatency {
		return 0
	}
	return m.outcomes[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}

	for id := range m.outcomes {
		snap.Counters[MetricID(id)] = m.outcomes[id].Load()
	}

	if m.latencyEnabled {
		buckets := make([]uint64, len(m.loginLatency))
		for i := range m.loginLatency {
			buckets[i] = m.loginLatency[i].Load()
		}
		snap.Histograms[MetricLoginLatency] = buckets
	}

	return snap
}

// latencyBucket returns the first bucket whose bound is at least d, rounded
// down to whole milliseconds.
func latencyBucket(d time.Duration) int {
	ms := d.Milliseconds()
	return sort.Search(len(loginLatencyBoundsMs), func(i int) bool {
		return ms <= loginLatencyBoundsMs[i]
	})
}
