package gitlab

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/daybook-dev/daybook/internal/core/domain"
	"github.com/daybook-dev/daybook/internal/fetch"
)

// Source is the GitLab integration: one client, one adapter per entity
// kind.
type Source struct {
	client  *Client
	retryer *fetch.Retryer
	cfg     Config
	log     *slog.Logger
}

// New creates the GitLab source. The retryer is shared with the
// orchestrator so nested fetches follow the same retry policy.
func New(cfg Config, retryer *fetch.Retryer, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{client: NewClient(cfg), retryer: retryer, cfg: cfg, log: log}
}

func (s *Source) Type() domain.SourceType { return domain.SourceGitLab }

func (s *Source) Identity(ctx context.Context) (domain.Identity, error) {
	return s.client.CurrentUser(ctx)
}

// Projects returns the configured project list, or discovers all
// member projects when none is configured.
func (s *Source) Projects(ctx context.Context) ([]domain.ProjectRef, error) {
	if len(s.cfg.Projects) > 0 {
		refs := make([]domain.ProjectRef, len(s.cfg.Projects))
		for i, path := range s.cfg.Projects {
			name := path
			if idx := strings.LastIndex(path, "/"); idx >= 0 {
				name = path[idx+1:]
			}
			refs[i] = domain.ProjectRef{ID: path, Name: name, Path: path}
		}
		return refs, nil
	}
	return s.client.MemberProjects(ctx)
}

func (s *Source) Collectors() []fetch.Collector {
	return []fetch.Collector{
		fetch.NewCollector(&commitsAdapter{client: s.client}),
		fetch.NewCollector(&mergeRequestsAdapter{client: s.client}),
		fetch.NewCollector(&issuesAdapter{client: s.client}),
		fetch.NewCollector(&issueNotesAdapter{client: s.client, retryer: s.retryer, log: s.log}),
	}
}

type commitsAdapter struct {
	client *Client
}

func (a *commitsAdapter) OperationKey() string { return "gitlab.fetch_commits" }

// The commits endpoint cannot filter by author, so the orchestrator
// filters locally.
func (a *commitsAdapter) AuthorScoped() bool { return false }

func (a *commitsAdapter) Fetch(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]commit, error) {
	return a.client.Commits(ctx, p, w)
}

func (a *commitsAdapter) Normalize(c commit, p domain.ProjectRef) (domain.Activity, error) {
	return domain.Activity{
		ID:          domain.ActivityID(domain.SourceGitLab, domain.KindCommit, c.ID),
		Source:      domain.SourceGitLab,
		Kind:        domain.KindCommit,
		Timestamp:   c.CreatedAt,
		Title:       c.Title,
		Description: strings.TrimSpace(c.Message),
		Author:      c.AuthorName,
		AuthorEmail: c.AuthorEmail,
		URL:         c.WebURL,
		Project:     p.Name,
		Metadata:    map[string]any{"short_id": c.ShortID},
	}, nil
}

type mergeRequestsAdapter struct {
	client *Client
}

func (a *mergeRequestsAdapter) OperationKey() string { return "gitlab.fetch_merge_requests" }

// scope=created_by_me already restricts results to the caller.
func (a *mergeRequestsAdapter) AuthorScoped() bool { return true }

func (a *mergeRequestsAdapter) Fetch(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]mergeRequest, error) {
	return a.client.MergeRequests(ctx, p, w)
}

func (a *mergeRequestsAdapter) Normalize(mr mergeRequest, p domain.ProjectRef) (domain.Activity, error) {
	return domain.Activity{
		ID:          domain.ActivityID(domain.SourceGitLab, domain.KindMergeRequest, p.ID+"/"+strconv.Itoa(mr.IID)),
		Source:      domain.SourceGitLab,
		Kind:        domain.KindMergeRequest,
		Timestamp:   mr.UpdatedAt,
		Title:       mr.Title,
		Description: mr.Description,
		Author:      mr.Author.Username,
		URL:         mr.WebURL,
		Project:     p.Name,
		Metadata: map[string]any{
			"author_id": strconv.Itoa(mr.Author.ID),
			"state":     mr.State,
			"iid":       mr.IID,
		},
	}, nil
}

type issuesAdapter struct {
	client *Client
}

func (a *issuesAdapter) OperationKey() string { return "gitlab.fetch_issues" }
func (a *issuesAdapter) AuthorScoped() bool   { return true }

func (a *issuesAdapter) Fetch(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]issue, error) {
	return a.client.Issues(ctx, p, w, "created_by_me")
}

func (a *issuesAdapter) Normalize(is issue, p domain.ProjectRef) (domain.Activity, error) {
	return domain.Activity{
		ID:          domain.ActivityID(domain.SourceGitLab, domain.KindIssue, p.ID+"/"+strconv.Itoa(is.IID)),
		Source:      domain.SourceGitLab,
		Kind:        domain.KindIssue,
		Timestamp:   is.UpdatedAt,
		Title:       is.Title,
		Description: is.Description,
		Author:      is.Author.Username,
		URL:         is.WebURL,
		Project:     p.Name,
		Metadata: map[string]any{
			"author_id": strconv.Itoa(is.Author.ID),
			"state":     is.State,
			"iid":       is.IID,
		},
	}, nil
}

// noteWithIssue pairs a note with its parent so Normalize can reference
// the issue it was written on.
type noteWithIssue struct {
	note     note
	issueIID int
}

// issueNotesAdapter is the nested entity kind: list issues, then list
// notes per issue. It runs its own per-call retries so a failure on one
// parent's notes is isolated from the other parents, the same way
// project failures are isolated from each other.
type issueNotesAdapter struct {
	client  *Client
	retryer *fetch.Retryer
	log     *slog.Logger
}

func (a *issueNotesAdapter) OperationKey() string { return "gitlab.fetch_issue_notes" }
func (a *issueNotesAdapter) AuthorScoped() bool   { return false }
func (a *issueNotesAdapter) SelfRetrying() bool   { return true }

func (a *issueNotesAdapter) Fetch(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]noteWithIssue, error) {
	parents, err := fetch.RetryValue(ctx, a.retryer, "gitlab.fetch_issues", func(ctx context.Context) ([]issue, error) {
		return a.client.Issues(ctx, p, w, "all")
	})
	if err != nil {
		return nil, err
	}

	var collected []noteWithIssue
	for _, parent := range parents {
		notes, err := fetch.RetryValue(ctx, a.retryer, a.OperationKey(), func(ctx context.Context) ([]note, error) {
			return a.client.IssueNotes(ctx, p, parent.IID)
		})
		if err != nil {
			a.log.Warn("skipping notes for one issue",
				"project", p.Name, "issue", parent.IID, "error", err)
			continue
		}
		for _, n := range notes {
			if n.System || !w.Contains(n.CreatedAt) {
				continue
			}
			collected = append(collected, noteWithIssue{note: n, issueIID: parent.IID})
		}
	}
	return collected, nil
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

func (a *issueNotesAdapter) Normalize(nw noteWithIssue, p domain.ProjectRef) (domain.Activity, error) {
	n := nw.note
	title := truncateTitle(n.Body, 80)
	return domain.Activity{
		ID:          domain.ActivityID(domain.SourceGitLab, domain.KindComment, strconv.Itoa(n.ID)),
		Source:      domain.SourceGitLab,
		Kind:        domain.KindComment,
		Timestamp:   n.CreatedAt,
		Title:       title,
		Description: n.Body,
		Author:      n.Author.Username,
		Project:     p.Name,
		Metadata: map[string]any{
			"author_id": strconv.Itoa(n.Author.ID),
			"issue_iid": nw.issueIID,
		},
	}, nil
}
