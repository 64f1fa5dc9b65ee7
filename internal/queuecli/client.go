// Package queuecli implements the queuectl command-line client against
// a running scheduler's HTTP API, in the request/response idiom of the
// teacher's CLI client.
package queuecli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a scheduler's queueapi HTTP surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client against baseURL with a 30-second timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ItemView mirrors queueapi.ItemView without importing the api package,
// keeping the CLI's dependency surface to the wire contract only.
type ItemView struct {
	ID          uint64    `json:"id"`
	Task        string    `json:"task"`
	Stage       string    `json:"stage"`
	Label       string    `json:"label,omitempty"`
	QueuedSince time.Time `json:"queuedSince"`
}

// Schedule requests admission of taskName with the given quiet period.
func (c *Client) Schedule(taskName string, quietPeriod time.Duration) (*ItemView, error) {
	body := map[string]interface{}{
		"taskName":           taskName,
		"quietPeriodSeconds": int(quietPeriod.Seconds()),
	}
	var item ItemView
	if err := c.post("/api/v1/queue/schedule", body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Cancel requests cancellation of taskName.
func (c *Client) Cancel(taskName string) (bool, error) {
	var result struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := c.post("/api/v1/queue/cancel", map[string]string{"taskName": taskName}, &result); err != nil {
		return false, err
	}
	return result.Cancelled, nil
}

// Items returns every item currently tracked by the scheduler.
func (c *Client) Items() ([]ItemView, error) {
	var items []ItemView
	if err := c.get("/api/v1/queue/items", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ApproximateItems returns the scheduler's cached, lock-free item
// snapshot, which may lag the live view slightly.
func (c *Client) ApproximateItems() ([]ItemView, error) {
	var items []ItemView
	if err := c.get("/api/v1/queue/items/approximate", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Complete reports that the build for the item with the given id
// finished, releasing any resources it held.
func (c *Client) Complete(id uint64) (bool, error) {
	var result struct {
		Released bool `json:"released"`
	}
	path := fmt.Sprintf("/api/v1/queue/items/%d/complete", id)
	if err := c.post(path, map[string]string{}, &result); err != nil {
		return false, err
	}
	return result.Released, nil
}

func (c *Client) post(path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func decodeOrError(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
