// Package client talks to the registry over HTTP. It implements the
// station's identity resolver and attendance store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/logger"
)

// ErrUnauthorized indicates the registry refused the station token. It is
// reported together with checkin.ErrNetwork so queued scans are kept until
// the token is fixed.
var ErrUnauthorized = errors.New("registry rejected station token")

// Client is a registry API client. Safe for concurrent use.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client. timeout bounds every request on top of the caller's context.
func New(baseURL, token string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse registry url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("registry url must be http or https, got %q", baseURL)
	}
	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.OrDiscard(log),
	}, nil
}

// Resolve looks up the identity behind code.
func (c *Client) Resolve(ctx context.Context, code string) (*checkin.Identity, error) {
	var identity checkin.Identity
	if _, err := c.do(ctx, http.MethodGet, "/v1/identities/"+url.PathEscape(code), nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Activity fetches an activity.
func (c *Client) Activity(ctx context.Context, activityID string) (*checkin.Activity, error) {
	var activity checkin.Activity
	if _, err := c.do(ctx, http.MethodGet, "/v1/activities/"+url.PathEscape(activityID), nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// CountCheckIns returns the stored attendance count.
func (c *Client) CountCheckIns(ctx context.Context, identityID, activityID string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/v1/activities/%s/attendance/%s", url.PathEscape(activityID), url.PathEscape(identityID))
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// InsertCheckIn posts one attendance record. A 409 answer is a duplicate and
// comes back as Created=false, not as an error.
func (c *Client) InsertCheckIn(ctx context.Context, in checkin.CheckIn) (checkin.InsertResult, error) {
	var res checkin.InsertResult
	status, err := c.do(ctx, http.MethodPost, "/v1/attendance", in, &res)
	if err != nil {
		return checkin.InsertResult{}, err
	}
	res.Created = status == http.StatusCreated || (status == http.StatusOK && res.Created)
	return res, nil
}

// Ping checks that the registry answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%w: encode request: %w", checkin.ErrInvalidInput, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "registry unreachable", "method", method, "path", path, "error", err)
		return 0, fmt.Errorf("%w: %w", checkin.ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "registry call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusConflict,
		resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: decode response: %w", checkin.ErrNetwork, err)
		}
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w: %s %s", checkin.ErrNotFound, method, path)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return 0, fmt.Errorf("%w: %s", checkin.ErrInvalidInput, readError(resp.Body))
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return 0, fmt.Errorf("%w: %w", checkin.ErrNetwork, ErrUnauthorized)
	default:
		return 0, fmt.Errorf("%w: registry returned %d", checkin.ErrNetwork, resp.StatusCode)
	}
}

func readError(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
