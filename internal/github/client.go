package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// PullRequest is the slice of the GitHub PR payload the bridge reads.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type Client struct {
	baseURL    string
	token      string
	owner      string
	repo       string
	httpClient *http.Client
}

func NewClient(token, owner, repo string) *Client {
	return &Client{
		baseURL: "https://api.github.com",
		token:   token,
		owner:   owner,
		repo:    repo,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL overrides the API base URL (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

func (c *Client) repoURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s%s", c.baseURL, c.owner, c.repo, path)
}

// ListPullRequests returns all pull requests in the given state
// ("open", "closed" or "all"), following Link-header pagination.
func (c *Client) ListPullRequests(ctx context.Context, state string) ([]PullRequest, error) {
	var all []PullRequest
	url := c.repoURL("/pulls?state=" + state + "&per_page=100")
	for url != "" {
		body, header, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}
		var page []PullRequest
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode pull requests: %w", err)
		}
		all = append(all, page...)
		url = nextPageURL(header.Get("Link"))
	}
	return all, nil
}

// FetchPullRequest retrieves a single pull request by number.
func (c *Client) FetchPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	body, _, err := c.get(ctx, c.repoURL(fmt.Sprintf("/pulls/%d", number)))
	if err != nil {
		return nil, err
	}
	var pr PullRequest
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decode pull request: %w", err)
	}
	return &pr, nil
}

// UpdateBody replaces a pull request's description.
func (c *Client) UpdateBody(ctx context.Context, number int, body string) error {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.repoURL(fmt.Sprintf("/pulls/%d", number))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API %s: %s", resp.Status, respBytes)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("GitHub API %s: %s", resp.Status, body)
	}
	return body, resp.Header, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

var linkNextRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

func nextPageURL(linkHeader string) string {
	m := linkNextRe.FindStringSubmatch(linkHeader)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// ParseRepo splits "owner/repo" into its parts.
func ParseRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo format %q, want owner/repo", repo)
	}
	return parts[0], parts[1], nil
}
