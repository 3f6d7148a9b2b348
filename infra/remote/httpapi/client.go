// Package httpapi implements the remote changefeed over a JSON HTTP API.
// Transport and 5xx failures map to the transient sentinel so the engine
// retries on its normal cadence; 4xx responses map to the rejection
// sentinel and abort the batch.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amirasaad/ledgersync/pkg/provider"
)

// Client talks to the sync server's changefeed endpoints:
//
//	POST /v1/sync/push
//	GET  /v1/sync/pull?userId=&tripId=&since=
//	GET  /v1/sync/memberships?userId=
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a changefeed client for the given base URL.
func New(baseURL, authToken string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var _ provider.Changefeed = (*Client)(nil)

// Push implements provider.Changefeed.
func (c *Client) Push(ctx context.Context, batch provider.Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("%w: encode push batch: %v", provider.ErrRemoteRejected, err)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/sync/push",
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("push transport failure", "error", err)
		return fmt.Errorf("%w: %v", provider.ErrTransientNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	return c.checkStatus(resp)
}

// Pull implements provider.Changefeed.
func (c *Client) Pull(ctx context.Context, pr provider.PullRequest) (*provider.Delta, error) {
	q := url.Values{}
	q.Set("userId", pr.UserID)
	q.Set("since", strconv.FormatInt(pr.Since, 10))
	if pr.TripID != "" {
		q.Set("tripId", pr.TripID)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+"/v1/sync/pull?"+q.Encode(),
		nil,
	)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("pull transport failure", "error", err)
		return nil, fmt.Errorf("%w: %v", provider.ErrTransientNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var delta provider.Delta
	if err := json.NewDecoder(resp.Body).Decode(&delta); err != nil {
		return nil, fmt.Errorf("%w: decode pull delta: %v", provider.ErrTransientNetwork, err)
	}
	return &delta, nil
}

// Memberships implements provider.Changefeed.
func (c *Client) Memberships(ctx context.Context, userID string) ([]string, error) {
	q := url.Values{}
	q.Set("userId", userID)
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+"/v1/sync/memberships?"+q.Encode(),
		nil,
	)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrTransientNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var out struct {
		TripIDs []string `json:"tripIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode memberships: %v", provider.ErrTransientNetwork, err)
	}
	return out.TripIDs, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf(
			"%w: status %d: %s",
			provider.ErrRemoteRejected, resp.StatusCode, string(body),
		)
	default:
		return fmt.Errorf("%w: status %d", provider.ErrTransientNetwork, resp.StatusCode)
	}
}
