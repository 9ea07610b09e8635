package gitlab

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

const defaultBaseURL = "https://gitlab.com"

// Config holds GitLab connection settings.
type Config struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`

	// Projects pins collection to an explicit list of project paths
	// (e.g. "group/repo"). Empty means discover all member projects.
	Projects []string `yaml:"projects"`
}

// Client is a minimal GitLab REST v4 client covering only the
// endpoints the collector needs.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a GitLab client.
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

// get performs one GET against the v4 API. Non-200 responses become
// *fetch.RemoteError carrying the status for classification.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	u := c.baseURL + "/api/v4" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if c.token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &fetch.RemoteError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(snippet))
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			msg = fmt.Sprintf("%s (retry after %ss)", msg, ra)
		}
		return &fetch.RemoteError{Op: op, Status: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// getPaged follows the page parameter until a short page.
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
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type project struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

type commit struct {
	ID          string    `json:"id"`
	ShortID     string    `json:"short_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
	WebURL      string    `json:"web_url"`
}

type mergeRequest struct {
	IID         int       `json:"iid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	Author      user      `json:"author"`
	UpdatedAt   time.Time `json:"updated_at"`
	WebURL      string    `json:"web_url"`
}

type issue struct {
	IID         int       `json:"iid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	Author      user      `json:"author"`
	UpdatedAt   time.Time `json:"updated_at"`
	WebURL      string    `json:"web_url"`
}

type note struct {
	ID        int       `json:"id"`
	Body      string    `json:"body"`
	System    bool      `json:"system"`
	Author    user      `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// CurrentUser resolves the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (domain.Identity, error) {
	var u user
	if err := c.get(ctx, "gitlab.who_am_i", "/user", nil, &u); err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		ID:       strconv.Itoa(u.ID),
		Username: u.Username,
		Email:    u.Email,
	}, nil
}

// MemberProjects lists all projects the user is a member of.
func (c *Client) MemberProjects(ctx context.Context) ([]domain.ProjectRef, error) {
	q := url.Values{"membership": {"true"}, "simple": {"true"}, "archived": {"false"}}
	projects, err := getPaged[project](ctx, c, "gitlab.fetch_projects", "/projects", q)
	if err != nil {
		return nil, err
	}
	refs := make([]domain.ProjectRef, len(projects))
	for i, p := range projects {
		refs[i] = domain.ProjectRef{
			ID:   strconv.Itoa(p.ID),
			Name: p.Name,
			Path: p.PathWithNamespace,
			Meta: map[string]string{"web_url": p.WebURL},
		}
	}
	return refs, nil
}

func projectPath(p domain.ProjectRef) string {
	return url.PathEscape(p.ID)
}

// Commits lists repository commits inside the window.
func (c *Client) Commits(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]commit, error) {
	q := url.Values{
		"since": {w.Start.Format(time.RFC3339)},
		"until": {w.End.Format(time.RFC3339)},
	}
	path := fmt.Sprintf("/projects/%s/repository/commits", projectPath(p))
	return getPaged[commit](ctx, c, "gitlab.fetch_commits", path, q)
}

// MergeRequests lists the authenticated user's merge requests updated
// inside the window (scope=created_by_me makes this author-scoped).
func (c *Client) MergeRequests(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow) ([]mergeRequest, error) {
	q := url.Values{
		"scope":          {"created_by_me"},
		"state":          {"all"},
		"updated_after":  {w.Start.Format(time.RFC3339)},
		"updated_before": {w.End.Format(time.RFC3339)},
	}
	path := fmt.Sprintf("/projects/%s/merge_requests", projectPath(p))
	return getPaged[mergeRequest](ctx, c, "gitlab.fetch_merge_requests", path, q)
}

// Issues lists issues updated inside the window under the given scope
// ("created_by_me" or "all").
func (c *Client) Issues(ctx context.Context, p domain.ProjectRef, w domain.ReportWindow, scope string) ([]issue, error) {
	q := url.Values{
		"scope":          {scope},
		"state":          {"all"},
		"updated_after":  {w.Start.Format(time.RFC3339)},
		"updated_before": {w.End.Format(time.RFC3339)},
	}
	path := fmt.Sprintf("/projects/%s/issues", projectPath(p))
	return getPaged[issue](ctx, c, "gitlab.fetch_issues", path, q)
}

// IssueNotes lists the notes of one issue.
func (c *Client) IssueNotes(ctx context.Context, p domain.ProjectRef, issueIID int) ([]note, error) {
	path := fmt.Sprintf("/projects/%s/issues/%d/notes", projectPath(p), issueIID)
	return getPaged[note](ctx, c, "gitlab.fetch_issue_notes", path, nil)
}
