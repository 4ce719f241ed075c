// Package client reads the content store through the HTTP gateway, so a
// display can run on a different machine from the data directory.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"waitroom/internal/api"
	"waitroom/internal/engine"
	"waitroom/internal/errors"
	"waitroom/internal/log"
)

// DefaultTimeout bounds each request when no context deadline is tighter.
const DefaultTimeout = 5 * time.Second

// DefaultStreamIdle is how long the event stream may stay silent before
// the connection is considered dead. The gateway pings well inside it.
const DefaultStreamIdle = 75 * time.Second

// Client implements engine.Source and engine.CursorStore against a
// gateway.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	idle    time.Duration
	log     *log.Logger
}

var (
	_ engine.Source      = (*Client)(nil)
	_ engine.CursorStore = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithStreamIdle sets how long Subscribe waits for any frame, pings
// included, before reconnecting.
func WithStreamIdle(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.idle = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.NewConfigError("invalid server URL", "display.server_url", errors.InvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.NewConfigError("server URL must be http or https", "display.server_url", errors.InvalidConfig, nil)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		idle:    DefaultStreamIdle,
		log:     log.LogWithFields(log.F("server", u.String())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// do sends one request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encode %s request", path)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rd)
	if err != nil {
		return errors.NewRemoteError("failed to build request", path, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewRemoteError("request failed", path, 0, err)
	}
	defer resp.Body.Close()

	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return errors.NewRemoteError(http.StatusText(resp.StatusCode), path, resp.StatusCode, err)
		}
		return errors.NewRemoteError("malformed response", path, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Status != api.StatusSuccess {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return errors.NewRemoteError(msg, path, resp.StatusCode, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.NewRemoteError("malformed response data", path, resp.StatusCode, err)
	}
	return nil
}

// Settings fetches the slideshow settings.
func (c *Client) Settings(ctx context.Context) (engine.Settings, error) {
	var s engine.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &s)
	return s, err
}

// Message fetches the banner message.
func (c *Client) Message(ctx context.Context) (engine.Message, error) {
	var m engine.Message
	err := c.do(ctx, http.MethodGet, "/api/message", nil, &m)
	return m, err
}

// Status fetches the queue/announcement overlay.
func (c *Client) Status(ctx context.Context) (engine.StatusDisplay, error) {
	var s engine.StatusDisplay
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &s)
	return s, err
}

// Playlist fetches the playlist descriptor.
func (c *Client) Playlist(ctx context.Context) (engine.PlaylistStatus, error) {
	var p engine.PlaylistStatus
	err := c.do(ctx, http.MethodGet, "/api/playlist", nil, &p)
	return p, err
}

// ContentFiles lists the content file names.
func (c *Client) ContentFiles(ctx context.Context) ([]string, error) {
	var names []string
	err := c.do(ctx, http.MethodGet, "/api/contents", nil, &names)
	return names, err
}

// ContentFile fetches one content file.
func (c *Client) ContentFile(ctx context.Context, filename string) (*engine.ContentFile, error) {
	var f engine.ContentFile
	if err := c.do(ctx, http.MethodGet, "/api/contents/"+url.PathEscape(filename), nil, &f); err != nil {
		return nil, err
	}
	f.Filename = filename
	return &f, nil
}

// LoadCursor fetches the stored playlist position.
func (c *Client) LoadCursor(ctx context.Context) (engine.Cursor, error) {
	var cur engine.Cursor
	err := c.do(ctx, http.MethodGet, "/api/playlist/cursor", nil, &cur)
	return cur, err
}

// SaveCursor stores the playlist position.
func (c *Client) SaveCursor(ctx context.Context, cur engine.Cursor) error {
	return c.do(ctx, http.MethodPut, "/api/playlist/cursor", cur, nil)
}

// LoadSequenceProgress fetches per-file sequence positions.
func (c *Client) LoadSequenceProgress(ctx context.Context) (map[string]int, error) {
	p := map[string]int{}
	err := c.do(ctx, http.MethodGet, "/api/sequence/progress", nil, &p)
	return p, err
}

// SaveSequenceProgress stores per-file sequence positions.
func (c *Client) SaveSequenceProgress(ctx context.Context, progress map[string]int) error {
	return c.do(ctx, http.MethodPut, "/api/sequence/progress", progress, nil)
}

// Reload asks every subscribed display to reload its playlist and
// returns how many displays were connected.
func (c *Client) Reload(ctx context.Context) (int, error) {
	var out struct {
		Subscribers int `json:"subscribers"`
	}
	err := c.do(ctx, http.MethodPost, "/api/reload", nil, &out)
	return out.Subscribers, err
}
