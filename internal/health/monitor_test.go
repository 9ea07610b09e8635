package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/daybook-dev/daybook/internal/core/domain"
	"github.com/daybook-dev/daybook/internal/fetch"
	"github.com/daybook-dev/daybook/internal/source"
)

// stubSource fails identity resolution when err is set.
type stubSource struct {
	typ domain.SourceType
	err error
}

func (s *stubSource) Type() domain.SourceType { return s.typ }

func (s *stubSource) Identity(ctx context.Context) (domain.Identity, error) {
	if s.err != nil {
		return domain.Identity{}, s.err
	}
	return domain.Identity{ID: "1", Username: "me"}, nil
}

func (s *stubSource) Projects(ctx context.Context) ([]domain.ProjectRef, error) { return nil, nil }
func (s *stubSource) Collectors() []fetch.Collector                             { return nil }

func trippedRegistry(t *testing.T, keys ...string) *fetch.BreakerRegistry {
	t.Helper()
	reg := fetch.NewBreakerRegistry(fetch.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
	})
	for _, key := range keys {
		_ = reg.Get(key).Execute(context.Background(), func(ctx context.Context) error {
			return errors.New("boom")
		})
	}
	return reg
}

func TestMonitorAggregatesWorstStatus(t *testing.T) {
	m := NewMonitor([]source.Source{
		&stubSource{typ: domain.SourceGitLab},
		&stubSource{typ: domain.SourceGitHub, err: errors.New("401 unauthorized")},
	}, nil)

	report := m.Check(context.Background())
	if report.Status != StatusCritical {
		t.Errorf("aggregate status = %v, want critical", report.Status)
	}
	if len(report.Sources) != 2 {
		t.Fatalf("got %d source entries, want 2", len(report.Sources))
	}
	if report.Sources[0].Status != StatusHealthy {
		t.Errorf("gitlab status = %v, want healthy", report.Sources[0].Status)
	}
	if report.Sources[1].Status != StatusCritical || report.Sources[1].Error == "" {
		t.Errorf("github entry = %+v, want critical with error message", report.Sources[1])
	}
}

func TestMonitorDegradedByOwnOpenBreakersOnly(t *testing.T) {
	reg := trippedRegistry(t, "gitlab.fetch_commits")
	m := NewMonitor([]source.Source{
		&stubSource{typ: domain.SourceGitLab},
		&stubSource{typ: domain.SourceGitHub},
	}, reg)

	report := m.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("aggregate status = %v, want degraded", report.Status)
	}
	gl, gh := report.Sources[0], report.Sources[1]
	if gl.Status != StatusDegraded || len(gl.OpenBreakers) != 1 || gl.OpenBreakers[0] != "gitlab.fetch_commits" {
		t.Errorf("gitlab entry = %+v, want degraded by gitlab.fetch_commits", gl)
	}
	if gh.Status != StatusHealthy || len(gh.OpenBreakers) != 0 {
		t.Errorf("github entry = %+v, want healthy (breaker belongs to gitlab)", gh)
	}
}

func TestMonitorBreakersSortedByOperation(t *testing.T) {
	reg := trippedRegistry(t, "gitlab.fetch_issues", "github.fetch_commits")
	m := NewMonitor(nil, reg)

	breakers := m.Breakers()
	if len(breakers) != 2 {
		t.Fatalf("got %d breakers, want 2", len(breakers))
	}
	if breakers[0].Operation != "github.fetch_commits" || breakers[1].Operation != "gitlab.fetch_issues" {
		t.Errorf("order = [%s, %s], want sorted by operation", breakers[0].Operation, breakers[1].Operation)
	}
	for _, b := range breakers {
		if b.State != "open" || b.ConsecutiveFailures != 1 || b.LastFailure == nil {
			t.Errorf("breaker %s = %+v, want open with one failure recorded", b.Operation, b)
		}
	}
}

func TestHealthEndpointCriticalReturns503(t *testing.T) {
	m := NewMonitor([]source.Source{
		&stubSource{typ: domain.SourceGitLab, err: errors.New("connection refused")},
	}, nil)
	srv := NewServer(m, 0)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 503 {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "critical" {
		t.Errorf("status = %q, want critical", body["status"])
	}
}

func TestBreakersEndpoint(t *testing.T) {
	reg := trippedRegistry(t, "gitlab.fetch_commits")
	srv := NewServer(NewMonitor(nil, reg), 0)

	rec := httptest.NewRecorder()
	srv.handleBreakers(rec, httptest.NewRequest("GET", "/health/breakers", nil))
	if rec.Code != 200 {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	var body []BreakerStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(body) != 1 || body[0].Operation != "gitlab.fetch_commits" || body[0].State != "open" {
		t.Errorf("body = %+v, want the tripped gitlab breaker", body)
	}
}
