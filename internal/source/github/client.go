package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/daybook-dev/daybook/internal/core/domain"
	"github.com/daybook-dev/daybook/internal/fetch"
)

const defaultBaseURL = "https://api.github.com"

// Config holds GitHub connection settings.
type Config struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`

	// Repos pins collection to an explicit list of "owner/repo"
	// names. Empty means discover all accessible repositories.
	Repos []string `yaml:"repos"`
}

// Client is a minimal GitHub REST client covering only the endpoints
// the collector needs.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a GitHub client.
func NewClient(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.URL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &fetch.RemoteError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(snippet))
		// Secondary rate limits respond 403 with a Retry-After;
		// surface it as 429 so classification treats it as transient.
		status := resp.StatusCode
		if status == http.StatusForbidden && resp.Header.Get("Retry-After") != "" {
			status = http.StatusTooManyRequests
			msg = fmt.Sprintf("%s (retry after %ss)", msg, resp.Header.Get("Retry-After"))
		}
		return &fetch.RemoteError{Op: op, Status: status, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func getPaged[T any](ctx context.Context, c *Client, op, path string, query url.Values) ([]T, error) {
	const perPage = 100
	var all []T
	for page := 1; ; page++ {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("per_page", strconv.Itoa(perPage))
		q.Set("page", strconv.Itoa(page))

		var batch []T
		if err := c.get(ctx, op, path, q, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			return all, nil
		}
	}
}

type user struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

type repo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Archived bool   `json:"archived"`
	HTMLURL  string `json:"html_url"`
}

type commitItem struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *user `json:"author"`
}

type issueItem struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	State       string    `json:"state"`
	User        user      `json:"user"`
	HTMLURL     string    `json:"html_url"`
	UpdatedAt   time.Time `json:"updated_at"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}

type commentItem struct {
	ID        int       `json:"id"`
	Body      string    `json:"body"`
	User      user      `json:"user"`
	HTMLURL   string    `json:"html_url"`
	IssueURL  string    `json:"issue_url"`
	CreatedAt time.Time `json:"created_at"`
}

// CurrentUser resolves the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (domain.Identity, error) {
	var u user
	if err := c.get(ctx, "github.who_am_i", "/user", nil, &u); err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		ID:       strconv.Itoa(u.ID),
		Username: u.Login,
		Email:    u.Email,
	}, nil
}

// Repos lists repositories the user can access.
func (c *Client) Repos(ctx context.Context) ([]domain.ProjectRef, error) {
	q := url.Values{
		"affiliation": {"owner,collaborator,organization_member"},
		"sort":        {"pushed"},
	}
	repos, err := getPaged[repo](ctx, c, "github.fetch_repos", "/user/repos", q)
	if err != nil {
		return nil, err
	}
	var refs []domain.ProjectRef
	for _, r := range repos {
		if r.Archived {
			continue
		}
		refs = append(refs, domain.ProjectRef{
			ID:   r.FullName,
			Name: r.Name,
			Path: r.FullName,
			Meta: map[string]string{"html_url": r.HTMLURL},
		})
	}
	return refs, nil
}

// Commits lists the given author's commits inside the window
// (author-scoped by the API).
func (c *Client) Commits(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow, login string) ([]commitItem, error) {
	q := url.Values{
		"author": {login},
		"since":  {w.Start.Format(time.RFC3339)},
		"until":  {w.End.Format(time.RFC3339)},
	}
	path := fmt.Sprintf("/repos/%s/commits", p.ID)
	return getPaged[commitItem](ctx, c, "github.fetch_commits", path, q)
}

// CreatedIssues lists issues and pull requests created by login and
// updated since the window start. The window upper bound is applied by
// the caller, since the API only supports a lower bound.
func (c *Client) CreatedIssues(ctx context.Context, op string, p domain.ProjectRef, w domain.ReportWindow, login string) ([]issueItem, error) {
	q := url.Values{
		"creator": {login},
		"state":   {"all"},
		"since":   {w.Start.Format(time.RFC3339)},
	}
	path := fmt.Sprintf("/repos/%s/issues", p.ID)
	return getPaged[issueItem](ctx, c, op, path, q)
}

// IssueComments lists every issue comment in the repository created
// since the window start, newest parents included; not author-scoped.
func (c *Client) IssueComments(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]commentItem, error) {
	q := url.Values{
		"since": {w.Start.Format(time.RFC3339)},
		"sort":  {"created"},
	}
	path := fmt.Sprintf("/repos/%s/issues/comments", p.ID)
	return getPaged[commentItem](ctx, c, "github.fetch_comments", path, q)
}
