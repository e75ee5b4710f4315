package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roasbeef/marquee/internal/web"
)

// requestTimeout bounds each API round trip.
const requestTimeout = 35 * time.Second

// Client is a thin HTTP client for the marqueed JSON API.
type Client struct {
	base string
	http *http.Client
}

// newClient creates a client for the configured daemon address.
func newClient() *Client {
	return &Client{
		base: strings.TrimRight(daemonAddr, "/"),
		http: &http.Client{Timeout: requestTimeout},
	}
}

// do performs one request and decodes the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string,
	body, out any) error {

	var reqBody io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reqBody = &buf
	}

	req, err := http.NewRequestWithContext(
		ctx, method, c.base+path, reqBody,
	)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w",
			c.base, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr web.APIError
		if json.Unmarshal(data, &apiErr) == nil &&
			apiErr.Error.Message != "" {

			return fmt.Errorf("%s: %s", apiErr.Error.Code,
				apiErr.Error.Message)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}

	return json.Unmarshal(envelope.Data, out)
}

// Snapshot fetches the current stream view.
func (c *Client) Snapshot(ctx context.Context) (web.APISnapshot, error) {
	var snap web.APISnapshot
	err := c.do(ctx, http.MethodGet, "/api/v1/stream", nil, &snap)
	return snap, err
}

// SetFilter replaces the browse filter.
func (c *Client) SetFilter(ctx context.Context,
	filter web.APIFilter) (web.APISnapshot, error) {

	var snap web.APISnapshot
	err := c.do(ctx, http.MethodPut, "/api/v1/stream/filter",
		filter, &snap)
	return snap, err
}

// LoadInitial triggers the first page load.
func (c *Client) LoadInitial(ctx context.Context) (web.APISnapshot, error) {
	var snap web.APISnapshot
	err := c.do(ctx, http.MethodPost, "/api/v1/stream/load", nil, &snap)
	return snap, err
}

// LoadMore requests more items given the reader's position.
func (c *Client) LoadMore(ctx context.Context,
	visibleIndex int) (web.APISnapshot, error) {

	var snap web.APISnapshot
	err := c.do(ctx, http.MethodPost, "/api/v1/stream/more",
		map[string]int{"visible_index": visibleIndex}, &snap)
	return snap, err
}

// Refresh reloads the stream from the first page. Bypass forces a
// revalidation past fresh cache entries.
func (c *Client) Refresh(ctx context.Context,
	bypass bool) (web.APISnapshot, error) {

	var snap web.APISnapshot
	err := c.do(ctx, http.MethodPost, "/api/v1/stream/refresh",
		map[string]bool{"bypass": bypass}, &snap)
	return snap, err
}

// Detail fetches the full record for one item.
func (c *Client) Detail(ctx context.Context, category string, id int64,
	bypass bool) (web.APIDetail, error) {

	var detail web.APIDetail
	path := fmt.Sprintf("/api/v1/items/%s/%d", category, id)
	if bypass {
		path += "?bypass=true"
	}
	err := c.do(ctx, http.MethodGet, path, nil, &detail)
	return detail, err
}

// Tags fetches the cross-category tag vocabulary.
func (c *Client) Tags(ctx context.Context) ([]web.APITag, error) {
	var tags []web.APITag
	err := c.do(ctx, http.MethodGet, "/api/v1/tags", nil, &tags)
	return tags, err
}

// Status holds the daemon status payload.
type Status struct {
	Offline       bool `json:"offline"`
	CachedEntries int  `json:"cached_entries"`
}

// GetStatus fetches the daemon status.
func (c *Client) GetStatus(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &status)
	return status, err
}

// SetOffline toggles offline mode.
func (c *Client) SetOffline(ctx context.Context,
	offline bool) (Status, error) {

	var status Status
	err := c.do(ctx, http.MethodPost, "/api/v1/offline",
		map[string]bool{"offline": offline}, &status)
	return status, err
}

// CacheMaintenance runs a prune or clear against the daemon cache.
func (c *Client) CacheMaintenance(ctx context.Context,
	op string) (int, error) {

	var result struct {
		Removed int `json:"removed"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/cache/"+op, nil, &result)
	return result.Removed, err
}

// settleTimeout bounds how long commands wait for an in-flight load.
const settleTimeout = 30 * time.Second

// waitSettled polls the stream until it leaves its loading states.
func (c *Client) waitSettled(ctx context.Context,
	snap web.APISnapshot) (web.APISnapshot, error) {

	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	for {
		switch snap.State {
		case "loading_initial", "loading_more", "idle":
		default:
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return snap, fmt.Errorf("stream did not settle: %w",
				ctx.Err())
		case <-time.After(150 * time.Millisecond):
		}

		var err error
		snap, err = c.Snapshot(ctx)
		if err != nil {
			return snap, err
		}
	}
}
