package asana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://app.asana.com/api/1.0"

const taskOptFields = "name,permalink_url,completed"

type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBaseURL overrides the API base URL (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type taskJSON struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	PermalinkURL string `json:"permalink_url"`
	Completed    bool   `json:"completed"`
}

// FetchTask retrieves a task by its GID.
// Returns nil, nil if the task does not exist.
func (c *Client) FetchTask(ctx context.Context, gid string) (*Task, error) {
	url := fmt.Sprintf("%s/tasks/%s?opt_fields=%s", c.baseURL, gid, taskOptFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asana API returned %d: %s", resp.StatusCode, string(respBytes))
	}

	var envelope struct {
		Data taskJSON `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &envelope); err != nil {
		return nil, fmt.Errorf("decode task data: %w", err)
	}

	return &Task{
		GID:          envelope.Data.GID,
		Name:         envelope.Data.Name,
		PermalinkURL: envelope.Data.PermalinkURL,
		Completed:    envelope.Data.Completed,
	}, nil
}
