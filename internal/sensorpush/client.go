// Package sensorpush talks to the SensorPush cloud API.
package sensorpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

const (
	// TokenExpiryBuffer is how long before its expiry a token is treated as expired.
	TokenExpiryBuffer = 5 * time.Minute
	// DefaultTokenLifetime applies when the token response has no expires_in.
	DefaultTokenLifetime = 23 * time.Hour
	DefaultTimeout       = 30 * time.Second
	userAgent            = "SensorDashboard/1.0"
)

// Token is the cached OAuth access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	Type        string
}

// TokenInfo is a redacted view of the cached token.
type TokenInfo struct {
	HasToken  bool       `json:"has_token"`
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Type      string     `json:"token_type,omitempty"`
}

// Client handles SensorPush API communication. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	now        func() time.Time

	authMu sync.Mutex // serializes logins
	mu     sync.RWMutex
	token  *Token
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout applied to every outbound call
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithClock replaces time.Now, for token expiry checks
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new SensorPush API client
func NewClient(cfg config.SensorPushConfig, opts ...ClientOption) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultSensorPushBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type authorizeRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authorizeResponse struct {
	Authorization string `json:"authorization"`
}

type accessTokenRequest struct {
	Authorization string `json:"authorization"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accesstoken"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate logs in with the configured credentials and caches a fresh
// access token. Calling it again simply replaces the token.
func (c *Client) Authenticate(ctx context.Context) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.authenticate(ctx)
}

func (c *Client) authenticate(ctx context.Context) error {
	if c.username == "" || c.password == "" {
		return errors.NewAuthError("SensorPush credentials are not configured", nil)
	}

	var authResp authorizeResponse
	if err := c.postAuth(ctx, "/oauth/authorize", authorizeRequest{Email: c.username, Password: c.password}, &authResp); err != nil {
		return err
	}
	if authResp.Authorization == "" {
		return errors.NewAuthError("no authorization code received", nil)
	}

	var tokenResp accessTokenResponse
	if err := c.postAuth(ctx, "/oauth/accesstoken", accessTokenRequest{Authorization: authResp.Authorization}, &tokenResp); err != nil {
		return err
	}
	if tokenResp.AccessToken == "" {
		return errors.NewAuthError("no access token received", nil)
	}

	lifetime := DefaultTokenLifetime
	if tokenResp.ExpiresIn > 0 {
		lifetime = time.Duration(tokenResp.ExpiresIn) * time.Second
	}
	token := &Token{
		AccessToken: tokenResp.AccessToken,
		ExpiresAt:   c.now().Add(lifetime),
		Type:        "Bearer",
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	nuts.L.Infof("[SensorPush] Authenticated, token expires at %s", token.ExpiresAt.Format(time.RFC3339))
	return nil
}

func (c *Client) postAuth(ctx context.Context, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.NewInternalError("failed to encode authentication request", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewConnectionError(fmt.Sprintf("failed to reach SensorPush %s", endpoint), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewConnectionError(fmt.Sprintf("failed to read SensorPush %s response", endpoint), err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewAuthError(fmt.Sprintf("SensorPush rejected credentials at %s (status %d)", endpoint, resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errors.NewAuthError(fmt.Sprintf("SensorPush %s failed with status %d: %s", endpoint, resp.StatusCode, truncate(data)), nil)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewAuthError(fmt.Sprintf("invalid JSON from SensorPush %s", endpoint), err)
	}
	return nil
}

// IsTokenValid reports whether a token is cached and expires more than
// TokenExpiryBuffer from now.
func (c *Client) IsTokenValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokenValidLocked()
}

func (c *Client) tokenValidLocked() bool {
	if c.token == nil || c.token.AccessToken == "" {
		return false
	}
	return c.now().Add(TokenExpiryBuffer).Before(c.token.ExpiresAt)
}

// EnsureValidToken authenticates when the cached token is missing or about to expire.
func (c *Client) EnsureValidToken(ctx context.Context) error {
	if c.IsTokenValid() {
		return nil
	}
	c.authMu.Lock()
	defer c.authMu.Unlock()
	// another caller may have logged in while we waited
	if c.IsTokenValid() {
		return nil
	}
	nuts.L.Infof("[SensorPush] Token missing or expiring, authenticating")
	return c.authenticate(ctx)
}

// ClearToken drops the cached token.
func (c *Client) ClearToken() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// TokenInfo describes the cached token without exposing it.
func (c *Client) TokenInfo() TokenInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return TokenInfo{}
	}
	expires := c.token.ExpiresAt
	return TokenInfo{
		HasToken:  true,
		Valid:     c.tokenValidLocked(),
		ExpiresAt: &expires,
		Type:      c.token.Type,
	}
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return ""
	}
	return c.token.AccessToken
}

// Do sends an authenticated request to endpoint (relative to the base URL)
// and returns the response for a 2xx status. A 401 clears the token, logs in
// again and retries once; a second 401 is a token-expired error. The caller
// must close the response body.
func (c *Client) Do(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, errors.NewInternalError("failed to encode request body", err)
		}
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if err := c.EnsureValidToken(ctx); err != nil {
			return nil, err
		}

		req, err := c.newRequest(ctx, method, endpoint, payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.NewConnectionError(fmt.Sprintf("request to %s failed", endpoint), err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			c.ClearToken()
			if attempt == 1 {
				nuts.L.Warnf("[SensorPush] %s returned 401, re-authenticating", endpoint)
				continue
			}
			return nil, errors.NewTokenExpiredError(fmt.Sprintf("token rejected by %s after re-authentication", endpoint), nil)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, errors.NewUpstreamError(resp.StatusCode, statusMessage(resp.StatusCode, endpoint),
				fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data)))
		}
		return resp, nil
	}
	// unreachable: the loop either returns or continues once
	return nil, errors.NewTokenExpiredError("authentication retry exhausted", nil)
}

// getJSON performs an authenticated call and decodes a JSON object into out.
func (c *Client) getJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	resp, err := c.Do(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewUpstreamError(resp.StatusCode, fmt.Sprintf("invalid JSON response from %s", endpoint), err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, payload []byte) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to build request for %s", endpoint), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func statusMessage(status int, endpoint string) string {
	switch {
	case status == http.StatusBadRequest:
		return "bad request - check your parameters"
	case status == http.StatusForbidden:
		return "forbidden - insufficient permissions"
	case status == http.StatusNotFound:
		return fmt.Sprintf("%s endpoint not found", endpoint)
	case status >= 500:
		return "server error - please try again later"
	}
	return fmt.Sprintf("unexpected status %d from %s", status, endpoint)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

func truncate(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
