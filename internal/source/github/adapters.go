package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/daybook-dev/daybook/internal/core/domain"
	"github.com/daybook-dev/daybook/internal/fetch"
)

// Source is the GitHub integration. The resolved identity is cached so
// author-scoped endpoints (commits?author=, issues?creator=) can reuse
// the login without a second who-am-i call.
type Source struct {
	client *Client
	cfg    Config

	mu       sync.Mutex
	identity *domain.Identity
}

// New creates the GitHub source.
func New(cfg Config) *Source {
	return &Source{client: NewClient(cfg), cfg: cfg}
}

func (s *Source) Type() domain.SourceType { return domain.SourceGitHub }

func (s *Source) Identity(ctx context.Context) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != nil {
		return *s.identity, nil
	}
	id, err := s.client.CurrentUser(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	s.identity = &id
	return id, nil
}

// login returns the cached authenticated username, resolving it on
// first use.
func (s *Source) login(ctx context.Context) (string, error) {
	id, err := s.Identity(ctx)
	if err != nil {
		return "", err
	}
	return id.Username, nil
}

func (s *Source) Projects(ctx context.Context) ([]domain.ProjectRef, error) {
	if len(s.cfg.Repos) > 0 {
		refs := make([]domain.ProjectRef, len(s.cfg.Repos))
		for i, full := range s.cfg.Repos {
			name := full
			if idx := strings.LastIndex(full, "/"); idx >= 0 {
				name = full[idx+1:]
			}
			refs[i] = domain.ProjectRef{ID: full, Name: name, Path: full}
		}
		return refs, nil
	}
	return s.client.Repos(ctx)
}

func (s *Source) Collectors() []fetch.Collector {
	return []fetch.Collector{
		fetch.NewCollector(&commitsAdapter{source: s}),
		fetch.NewCollector(&pullRequestsAdapter{source: s}),
		fetch.NewCollector(&issuesAdapter{source: s}),
		fetch.NewCollector(&commentsAdapter{source: s}),
	}
}

type commitsAdapter struct {
	source *Source
}

func (a *commitsAdapter) OperationKey() string { return "github.fetch_commits" }
func (a *commitsAdapter) AuthorScoped() bool   { return true }

func (a *commitsAdapter) Fetch(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]commitItem, error) {
	login, err := a.source.login(ctx)
	if err != nil {
		return nil, err
	}
	return a.source.client.Commits(ctx, p, w, login)
}

func (a *commitsAdapter) Normalize(c commitItem, p domain.ProjectRef) (domain.Activity, error) {
	title, _, _ := strings.Cut(c.Commit.Message, "\n")
	activity := domain.Activity{
		ID:          domain.ActivityID(domain.SourceGitHub, domain.KindCommit, c.SHA),
		Source:      domain.SourceGitHub,
		Kind:        domain.KindCommit,
		Timestamp:   c.Commit.Author.Date,
		Title:       title,
		Description: strings.TrimSpace(c.Commit.Message),
		Author:      c.Commit.Author.Name,
		AuthorEmail: c.Commit.Author.Email,
		URL:         c.HTMLURL,
		Project:     p.Name,
	}
	if c.Author != nil {
		activity.Author = c.Author.Login
		activity.Metadata = map[string]any{"author_id": strconv.Itoa(c.Author.ID)}
	}
	return activity, nil
}

// pullRequestsAdapter and issuesAdapter share the creator-scoped issues
// endpoint; the pull_request field tells the two kinds apart.
type pullRequestsAdapter struct {
	source *Source
}

func (a *pullRequestsAdapter) OperationKey() string { return "github.fetch_pull_requests" }
func (a *pullRequestsAdapter) AuthorScoped() bool   { return true }

func (a *pullRequestsAdapter) Fetch(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]issueItem, error) {
	items, err := fetchCreated(ctx, a.source, a.OperationKey(), p, w)
	if err != nil {
		return nil, err
	}
	var prs []issueItem
	for _, it := range items {
		if it.PullRequest != nil {
			prs = append(prs, it)
		}
	}
	return prs, nil
}

func (a *pullRequestsAdapter) Normalize(it issueItem, p domain.ProjectRef) (domain.Activity, error) {
	return normalizeIssueItem(it, p, domain.KindMergeRequest), nil
}

type issuesAdapter struct {
	source *Source
}

func (a *issuesAdapter) OperationKey() string { return "github.fetch_issues" }
func (a *issuesAdapter) AuthorScoped() bool   { return true }

func (a *issuesAdapter) Fetch(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]issueItem, error) {
	items, err := fetchCreated(ctx, a.source, a.OperationKey(), p, w)
	if err != nil {
		return nil, err
	}
	var issues []issueItem
	for _, it := range items {
		if it.PullRequest == nil {
			issues = append(issues, it)
		}
	}
	return issues, nil
}

func (a *issuesAdapter) Normalize(it issueItem, p domain.ProjectRef) (domain.Activity, error) {
	return normalizeIssueItem(it, p, domain.KindIssue), nil
}

// fetchCreated pulls creator-scoped issues and applies the window upper
// bound locally (the API only takes a lower bound).
func fetchCreated(ctx context.Context, s *Source, op string, p domain.ProjectRef, w domain.ReportWindow) ([]issueItem, error) {
	login, err := s.login(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.client.CreatedIssues(ctx, op, p, w, login)
	if err != nil {
		return nil, err
	}
	var kept []issueItem
	for _, it := range items {
		if w.Contains(it.UpdatedAt) {
			kept = append(kept, it)
		}
	}
	return kept, nil
}

func normalizeIssueItem(it issueItem, p domain.ProjectRef, kind domain.ActivityKind) domain.Activity {
	return domain.Activity{
		ID:          domain.ActivityID(domain.SourceGitHub, kind, fmt.Sprintf("%s#%d", p.ID, it.Number)),
		Source:      domain.SourceGitHub,
		Kind:        kind,
		Timestamp:   it.UpdatedAt,
		Title:       it.Title,
		Description: it.Body,
		Author:      it.User.Login,
		URL:         it.HTMLURL,
		Project:     p.Name,
		Metadata: map[string]any{
			"author_id": strconv.Itoa(it.User.ID),
			"state":     it.State,
			"number":    it.Number,
		},
	}
}

type commentsAdapter struct {
	source *Source
}

func (a *commentsAdapter) OperationKey() string { return "github.fetch_comments" }

// The repo-wide comment listing returns every author; the orchestrator
// filters locally.
func (a *commentsAdapter) AuthorScoped() bool { return false }

func (a *commentsAdapter) Fetch(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]commentItem, error) {
	comments, err := a.source.client.IssueComments(ctx, p, w)
	if err != nil {
		return nil, err
	}
	var kept []commentItem
	for _, c := range comments {
		if w.Contains(c.CreatedAt) {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// truncateTitle cuts s to at most limit bytes on a rune boundary.
func truncateTitle(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (a *commentsAdapter) Normalize(c commentItem, p domain.ProjectRef) (domain.Activity, error) {
	title := truncateTitle(c.Body, 80)
	return domain.Activity{
		ID:          domain.ActivityID(domain.SourceGitHub, domain.KindComment, strconv.Itoa(c.ID)),
		Source:      domain.SourceGitHub,
		Kind:        domain.KindComment,
		Timestamp:   c.CreatedAt,
		Title:       title,
		Description: c.Body,
		Author:      c.User.Login,
		URL:         c.HTMLURL,
		Project:     p.Name,
		Metadata: map[string]any{
			"author_id": strconv.Itoa(c.User.ID),
			"issue_url": c.IssueURL,
		},
	}, nil
}
