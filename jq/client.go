// Copyright 2026 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jq

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stockparfait/errors"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the server. It may be overwritten in tests
// before creating a new client.
var URL = "https://api.jquants.com/v1"

const (
	requestTimeout = 30 * time.Second
	maxAttempts    = 3 // 1 initial + 2 retries
	backoffBase    = 500 * time.Millisecond

	// The server-side id token lifetime is 24h; keep an hour of margin.
	idTokenLifetime = 23 * time.Hour
)

// retryableStatus reports whether an HTTP status indicates a transient
// condition worth another attempt.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Credentials of a J-Quants account. Immutable, supplied at construction.
type Credentials struct {
	MailAddress string
	Password    string
}

// Client for querying the J-Quants data endpoints.
type Client struct {
	baseURL    string
	plan       Plan
	httpClient *http.Client
	tokens     *TokenManager
}

// newClient creates a new client.
func newClient(baseURL string, creds Credentials, plan Plan) *Client {
	c := &Client{
		baseURL:    baseURL,
		plan:       plan,
		httpClient: &http.Client{},
	}
	c.tokens = newTokenManager(creds, c)
	return c
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client for the given credentials and subscription
// plan and injects it into the context.
func UseClient(ctx context.Context, creds Credentials, plan Plan) context.Context {
	return context.WithValue(ctx, clientContextKey, newClient(URL, creds, plan))
}

// Plan returns the subscription plan the client was created with.
func (c *Client) Plan() Plan { return c.plan }

// TokenManager owns the credential exchange and the token refresh state. A
// single instance is shared by all the table pipelines of a process, so the
// exchanges are serialized by a mutex to avoid redundant calls.
type TokenManager struct {
	creds  Credentials
	client *Client
	now    func() time.Time

	// The fields below are guarded by the semaphore, which also serializes
	// the token exchanges themselves.
	sem           chan struct{}
	refreshToken  string
	idToken       string
	idTokenExpiry time.Time
}

func newTokenManager(creds Credentials, client *Client) *TokenManager {
	return &TokenManager{
		creds:  creds,
		client: client,
		now:    time.Now,
		sem:    make(chan struct{}, 1),
	}
}

// AuthHeader returns the value of the Authorization header for the next
// authenticated call, running the credential and refresh-token exchanges as
// needed. The refresh token is obtained lazily on the first call and reused
// for the lifetime of the manager; the id token is re-derived whenever its
// validity window has run out.
func (tm *TokenManager) AuthHeader(ctx context.Context) (string, error) {
	select {
	case tm.sem <- struct{}{}:
		defer func() { <-tm.sem }()
	case <-ctx.Done():
		return "", errors.Annotate(ctx.Err(), "canceled while acquiring token lock")
	}

	if tm.refreshToken == "" {
		if err := tm.fetchRefreshToken(ctx); err != nil {
			return "", err
		}
	}
	if !tm.now().Before(tm.idTokenExpiry) {
		if err := tm.fetchIDToken(ctx); err != nil {
			return "", err
		}
	}
	return "Bearer " + tm.idToken, nil
}

// fetchRefreshToken exchanges the account credentials for a long-lived
// refresh token.
func (tm *TokenManager) fetchRefreshToken(ctx context.Context) error {
	payload := map[string]string{
		"mailaddress": tm.creds.MailAddress,
		"password":    tm.creds.Password,
	}
	body, err := tm.client.postJSON(ctx, "/token/auth_user", nil, payload)
	if err != nil {
		return &AuthError{Message: "failed to exchange credentials", Err: err}
	}
	token, ok := body["refreshToken"].(string)
	if !ok || token == "" {
		return &AuthError{Message: "auth_user response has no refreshToken"}
	}
	tm.refreshToken = token
	return nil
}

// fetchIDToken exchanges the refresh token for a short-lived id token.
func (tm *TokenManager) fetchIDToken(ctx context.Context) error {
	query := url.Values{}
	query.Set("refreshtoken", tm.refreshToken)
	body, err := tm.client.postJSON(ctx, "/token/auth_refresh", query, nil)
	if err != nil {
		return &AuthError{Message: "failed to refresh id token", Err: err}
	}
	token, ok := body["idToken"].(string)
	if !ok || token == "" {
		return &AuthError{Message: "auth_refresh response has no idToken"}
	}
	tm.idToken = token
	tm.idTokenExpiry = tm.now().Add(idTokenLifetime)
	return nil
}

// do runs a single logical request with the retry policy: up to maxAttempts
// attempts, retrying on transient statuses and timeouts with exponential
// backoff. The request is rebuilt for every attempt, so the auth header stays
// current across a token refresh.
func (c *Client) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := backoffBase << uint(attempt-2)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, errors.Annotate(ctx.Err(), "request canceled during backoff")
			case <-timer.C:
			}
		}
		body, retry, err := c.attempt(ctx, build)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Annotate(err, "request canceled")
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Annotate(lastErr, "request failed after %d attempts", maxAttempts)
}

// attempt runs one request attempt under the fixed per-request timeout. The
// second return value indicates whether the failure is retryable.
func (c *Client) attempt(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, bool, error) {
	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := build(rctx)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport failures are transient.
		return nil, true, errors.Annotate(err, "request failed: %s %s",
			req.Method, req.URL.Path)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, errors.Annotate(err, "failed to read response body of %s",
			req.URL.Path)
	}
	if resp.StatusCode/100 != 2 {
		return nil, retryableStatus(resp.StatusCode), &HttpError{
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}
	return body, false, nil
}

// getJSON issues an authenticated GET for path with the query parameters and
// parses the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (map[string]interface{}, error) {
	build := func(rctx context.Context) (*http.Request, error) {
		auth, err := c.tokens.AuthHeader(rctx)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(rctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, errors.Annotate(err, "failed to create GET %s", path)
		}
		if query != nil {
			req.URL.RawQuery = query.Encode()
		}
		req.Header.Set("Authorization", auth)
		return req, nil
	}
	body, err := c.do(ctx, build)
	if err != nil {
		return nil, err
	}
	return parseJSONObject(path, body)
}

// postJSON issues an unauthenticated POST to path with an optional JSON
// payload and parses the JSON response. Only the two token-exchange endpoints
// use POST, and both are safe to retry.
func (c *Client) postJSON(ctx context.Context, path string, query url.Values, payload interface{}) (map[string]interface{}, error) {
	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, errors.Annotate(err, "failed to encode POST %s payload", path)
		}
	}
	build := func(rctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(rctx, http.MethodPost, c.baseURL+path, reader)
		if err != nil {
			return nil, errors.Annotate(err, "failed to create POST %s", path)
		}
		if query != nil {
			req.URL.RawQuery = query.Encode()
		}
		return req, nil
	}
	body, err := c.do(ctx, build)
	if err != nil {
		return nil, err
	}
	return parseJSONObject(path, body)
}

func parseJSONObject(path string, body []byte) (map[string]interface{}, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProtocolError{Message: errors.Annotate(
			err, "%s returned malformed JSON", path).Error()}
	}
	return parsed, nil
}
