package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/session"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// Client talks to the helpdesk API on behalf of one session.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Session
	logger  *observability.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the API at baseURL.
func New(baseURL string, sess *session.Session, logger *observability.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		session: sess,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the client's session.
func (c *Client) Session() *session.Session {
	return c.session
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}) (*response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindNetwork, Message: apperr.GenericMessage, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindNetwork, Message: apperr.GenericMessage, Err: err}
	}
	out := &response{status: resp.StatusCode, header: resp.Header, body: raw}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.failure(ctx, method, path, out)
	}
	return out, nil
}

// failure turns an error response into *apperr.Error. A 401 also signs the
// session out.
func (c *Client) failure(ctx context.Context, method, path string, resp *response) error {
	var env envelope
	_ = json.Unmarshal(resp.body, &env)

	if resp.status == http.StatusUnauthorized {
		if err := c.session.Clear(ctx); err != nil {
			c.logger.WithError(err).Warn("failed to clear session after 401")
		}
		msg := env.Message
		if msg == "" {
			msg = "Session expired. Please log in again."
		}
		return apperr.Unauthorized(msg)
	}

	e := apperr.FromStatus(resp.status, env.Message)
	e.Fields = env.Errors
	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"path":   path,
		"status": resp.status,
	}).Debugf("request failed: %s", e.Message)
	return e
}

// do sends a JSON request and decodes the envelope's data into out. It
// returns the envelope message.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (string, error) {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return "", err
	}
	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return "", fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("failed to decode data from %s: %w", path, err)
		}
	}
	return env.Message, nil
}

// File is a downloaded artifact.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (c *Client) download(ctx context.Context, method, path string, query url.Values, body interface{}) (*File, error) {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	f := &File{ContentType: resp.header.Get("Content-Type"), Data: resp.body}
	if _, params, err := mime.ParseMediaType(resp.header.Get("Content-Disposition")); err == nil {
		f.Name = params["filename"]
	}
	return f, nil
}
