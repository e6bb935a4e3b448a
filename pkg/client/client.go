// Package client is a Go client for the NyanPass billing API.
//
// Calls are safe for concurrent use and may complete in any order; the client
// keeps no state across requests except the injected Session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client talks to one billing server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	notifier   Notifier
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSession injects the session used for authenticated calls.
func WithSession(s *Session) Option {
	return func(c *Client) {
		if s != nil {
			c.session = s
		}
	}
}

// WithNotifier injects the failure notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// New returns a Client for baseURL, e.g. "https://panel.example.com".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		session:    NewSession(),
		notifier:   nopNotifier{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the client's session.
func (c *Client) Session() *Session {
	return c.session
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// do sends one request and decodes the envelope data into out.
func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			return fmt.Errorf("client: marshal request: %w", errMarshal)
		}
		reader = bytes.NewReader(payload)
	}
	req, errReq := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if errReq != nil {
		return fmt.Errorf("client: build request: %w", errReq)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.session.Token()
		if token == "" {
			c.notifier.Publish(Event{Kind: EventUnauthorized, Method: method, Path: path, Err: ErrNotSignedIn})
			return ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		netErr := &NetworkError{Err: errDo}
		c.notifier.Publish(Event{Kind: EventNetwork, Method: method, Path: path, Err: netErr, Retryable: true})
		return netErr
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if errRead != nil {
		netErr := &NetworkError{Err: errRead}
		c.notifier.Publish(Event{Kind: EventNetwork, Method: method, Path: path, Err: netErr, Retryable: true})
		return netErr
	}
	if errDecode := json.Unmarshal(raw, &env); errDecode != nil {
		apiErr := &APIError{Status: resp.StatusCode, Code: CodeInternal, Msg: http.StatusText(resp.StatusCode), Retryable: resp.StatusCode >= 500}
		c.notifier.Publish(Event{Kind: EventBusiness, Method: method, Path: path, Err: apiErr, Retryable: apiErr.Retryable})
		return apiErr
	}

	if resp.StatusCode == http.StatusUnauthorized || env.Code == CodeUnauthorized {
		apiErr := &APIError{Status: resp.StatusCode, Code: CodeUnauthorized, Msg: env.Msg}
		if authed {
			c.session.Logout()
		}
		c.notifier.Publish(Event{Kind: EventUnauthorized, Method: method, Path: path, Err: apiErr})
		return apiErr
	}
	if env.Code != CodeOK || resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Msg: env.Msg}
		var detail struct {
			Reason    string `json:"reason"`
			Retryable bool   `json:"retryable"`
		}
		if len(env.Data) > 0 && json.Unmarshal(env.Data, &detail) == nil {
			apiErr.Reason = detail.Reason
			apiErr.Retryable = detail.Retryable
		}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			apiErr.Retryable = true
		}
		c.notifier.Publish(Event{Kind: EventBusiness, Method: method, Path: path, Err: apiErr, Retryable: apiErr.Retryable})
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if errDecode := json.Unmarshal(env.Data, out); errDecode != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, errDecode)
	}
	return nil
}
