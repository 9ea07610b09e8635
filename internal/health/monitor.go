package health

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/daybook-dev/daybook/internal/fetch"
	"github.com/daybook-dev/daybook/internal/source"
)

// Status levels for a source.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// worse returns the more severe of two statuses.
func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusCritical:
			return 2
		case StatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// SourceHealth is the reported state of one source.
type SourceHealth struct {
	Source       string    `json:"source"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	OpenBreakers []string  `json:"open_breakers,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Report aggregates every source's health; Status is the worst case
// across sources.
type Report struct {
	Status    Status         `json:"status"`
	Sources   []SourceHealth `json:"sources"`
	CheckedAt time.Time      `json:"checked_at"`
}

// BreakerStatus is the wire shape of one breaker snapshot.
type BreakerStatus struct {
	Operation           string     `json:"operation"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
}

// Monitor probes each source's who-am-i endpoint and inspects breaker
// state to report reachability.
type Monitor struct {
	sources  []source.Source
	breakers *fetch.BreakerRegistry
	timeout  time.Duration
}

// NewMonitor creates a monitor over the given sources.
func NewMonitor(sources []source.Source, breakers *fetch.BreakerRegistry) *Monitor {
	return &Monitor{sources: sources, breakers: breakers, timeout: 5 * time.Second}
}

// Check probes every source. A failing who-am-i makes a source
// critical; open breakers under the source's key prefix mark it
// degraded. The report carries the worst status seen.
func (m *Monitor) Check(ctx context.Context) Report {
	report := Report{
		Status:    StatusHealthy,
		Sources:   make([]SourceHealth, 0, len(m.sources)),
		CheckedAt: time.Now().UTC(),
	}
	for _, src := range m.sources {
		h := m.checkSource(ctx, src)
		report.Sources = append(report.Sources, h)
		report.Status = worse(report.Status, h.Status)
	}
	return report
}

func (m *Monitor) checkSource(ctx context.Context, src source.Source) SourceHealth {
	h := SourceHealth{
		Source:    string(src.Type()),
		Status:    StatusHealthy,
		CheckedAt: time.Now().UTC(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if _, err := src.Identity(probeCtx); err != nil {
		h.Status = StatusCritical
		h.Error = err.Error()
		return h
	}

	if h.OpenBreakers = m.openBreakers(string(src.Type()) + "."); len(h.OpenBreakers) > 0 {
		h.Status = StatusDegraded
	}
	return h
}

func (m *Monitor) openBreakers(prefix string) []string {
	if m.breakers == nil {
		return nil
	}
	var open []string
	for _, snap := range m.breakers.Snapshots() {
		if snap.State == fetch.StateOpen && strings.HasPrefix(snap.Key, prefix) {
			open = append(open, snap.Key)
		}
	}
	sort.Strings(open)
	return open
}

// Breakers returns every known breaker's state, sorted by operation
// key for stable output.
func (m *Monitor) Breakers() []BreakerStatus {
	if m.breakers == nil {
		return nil
	}
	snaps := m.breakers.Snapshots()
	statuses := make([]BreakerStatus, 0, len(snaps))
	for _, snap := range snaps {
		bs := BreakerStatus{
			Operation:           snap.Key,
			State:               snap.State.String(),
			ConsecutiveFailures: snap.ConsecutiveFailures,
		}
		if !snap.LastFailure.IsZero() {
			failure := snap.LastFailure
			bs.LastFailure = &failure
		}
		statuses = append(statuses, bs)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Operation < statuses[j].Operation })
	return statuses
}
