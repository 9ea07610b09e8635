package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/daybook-dev/daybook/internal/core/domain"
)

type rawCommit struct {
	ID          string
	Message     string
	AuthorName  string
	AuthorEmail string
	CreatedAt   time.Time
}

// stubAdapter serves canned raw items per project name.
type stubAdapter struct {
	key          string
	authorScoped bool
	items        map[string][]rawCommit
	errs         map[string]error
	calls        map[string]int
}

func (a *stubAdapter) OperationKey() string { return a.key }
func (a *stubAdapter) AuthorScoped() bool   { return a.authorScoped }

func (a *stubAdapter) Fetch(ctx context.Context, project domain.ProjectRef, window domain.ReportWindow) ([]rawCommit, error) {
	if a.calls != nil {
		a.calls[project.Name]++
	}
	if err := a.errs[project.Name]; err != nil {
		return nil, err
	}
	return a.items[project.Name], nil
}

func (a *stubAdapter) Normalize(raw rawCommit, project domain.ProjectRef) (domain.Activity, error) {
	return domain.Activity{
		ID:          domain.ActivityID(domain.SourceGitLab, domain.KindCommit, raw.ID),
		Source:      domain.SourceGitLab,
		Kind:        domain.KindCommit,
		Timestamp:   raw.CreatedAt,
		Title:       raw.Message,
		Author:      raw.AuthorName,
		AuthorEmail: raw.AuthorEmail,
		Project:     project.Name,
	}, nil
}

func testProjects(names ...string) []domain.ProjectRef {
	projects := make([]domain.ProjectRef, len(names))
	for i, n := range names {
		projects[i] = domain.ProjectRef{ID: n, Name: n}
	}
	return projects
}

func TestFetchAcrossProjectsTerminalFailureIsolated(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	adapter := &stubAdapter{
		key:   "gitlab.fetch_commits",
		calls: map[string]int{},
		items: map[string][]rawCommit{
			"alpha": {{ID: "1", Message: "fix build", AuthorEmail: "me@example.com", CreatedAt: ts}},
			"gamma": {{ID: "2", Message: "add docs", AuthorEmail: "me@example.com", CreatedAt: ts}},
		},
		errs: map[string]error{
			"beta": &RemoteError{Op: "gitlab.fetch_commits", Status: 403, Message: "forbidden"},
		},
	}

	o := NewOrchestrator(NewRetryer(fastRetry, nil, nil), 2, nil)
	identity := domain.Identity{Email: "me@example.com"}

	got := FetchAcrossProjects(context.Background(), o,
		testProjects("alpha", "beta", "gamma"), domain.DayWindow(ts), adapter, identity)

	if len(got) != 2 {
		t.Fatalf("got %d activities, want 2 (beta skipped)", len(got))
	}
	if adapter.calls["beta"] != 1 {
		t.Errorf("beta fetched %d times, want 1 (terminal, no retry)", adapter.calls["beta"])
	}
	if n := o.TakeSkipped(); n != 1 {
		t.Errorf("TakeSkipped = %d, want 1", n)
	}
	if n := o.TakeSkipped(); n != 0 {
		t.Errorf("TakeSkipped after reset = %d, want 0", n)
	}
}

func TestFetchAcrossProjectsAuthorFilterByEmail(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	adapter := &stubAdapter{
		key: "gitlab.fetch_commits",
		items: map[string][]rawCommit{
			"alpha": {
				{ID: "1", Message: "mine", AuthorEmail: "a@example.com", CreatedAt: ts},
				{ID: "2", Message: "theirs", AuthorEmail: "b@example.com", CreatedAt: ts},
				{ID: "3", Message: "also mine", AuthorEmail: "A@Example.com", CreatedAt: ts},
			},
		},
	}

	o := NewOrchestrator(NewRetryer(fastRetry, nil, nil), 1, nil)
	got := FetchAcrossProjects(context.Background(), o,
		testProjects("alpha"), domain.DayWindow(ts), adapter, domain.Identity{Email: "a@example.com"})

	if len(got) != 2 {
		t.Fatalf("got %d activities, want 2 authored by a@example.com", len(got))
	}
	for _, a := range got {
		if a.Title == "theirs" {
			t.Error("kept an activity from another author")
		}
	}
}

func TestFetchAcrossProjectsAuthorScopedSkipsFilter(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	adapter := &stubAdapter{
		key:          "gitlab.fetch_merge_requests",
		authorScoped: true,
		items: map[string][]rawCommit{
			"alpha": {
				{ID: "1", Message: "already filtered upstream", AuthorEmail: "whoever@example.com", CreatedAt: ts},
			},
		},
	}

	o := NewOrchestrator(NewRetryer(fastRetry, nil, nil), 1, nil)
	got := FetchAcrossProjects(context.Background(), o,
		testProjects("alpha"), domain.DayWindow(ts), adapter, domain.Identity{Email: "someone@else.com"})

	if len(got) != 1 {
		t.Fatalf("got %d activities, want 1 (filter skipped for author-scoped kinds)", len(got))
	}
}

func TestFetchAcrossProjectsRetriesTransientFailures(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	adapter := &stubAdapter{
		key:   "gitlab.fetch_commits",
		calls: map[string]int{},
		errs: map[string]error{
			"alpha": &RemoteError{Op: "gitlab.fetch_commits", Status: 500, Message: "boom"},
		},
	}

	o := NewOrchestrator(NewRetryer(fastRetry, nil, nil), 1, nil)
	got := FetchAcrossProjects(context.Background(), o,
		testProjects("alpha"), domain.DayWindow(ts), adapter, domain.Identity{Email: "a@example.com"})

	if len(got) != 0 {
		t.Fatalf("got %d activities, want 0", len(got))
	}
	if adapter.calls["alpha"] != fastRetry.MaxAttempts {
		t.Errorf("alpha fetched %d times, want %d", adapter.calls["alpha"], fastRetry.MaxAttempts)
	}
}
