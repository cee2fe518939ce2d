package client

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// statusTransport turns non-2xx GraphQL responses into *APIError so the
// retry policy can classify them. The GraphQL library only reports a
// formatted string for those.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.StatusCode != http.StatusAccepted {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, newAPIError(resp, strings.TrimSpace(string(body)))
}

// authTransport adds a bearer token to requests that carry no
// Authorization header. It authenticates GraphQL calls made through a
// caller-supplied HTTP client.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}
	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(authed)
}

func newAPIError(resp *http.Response, message string) *APIError {
	if message == "" {
		message = resp.Status
	}

	apiErr := &APIError{
		StatusCode:         resp.StatusCode,
		Message:            message,
		RateLimitRemaining: -1,
	}

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiErr.RateLimitRemaining = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			apiErr.RateLimitReset = time.Unix(n, 0)
		}
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiErr.RetryAfter = time.Duration(n) * time.Second
		}
	}

	return apiErr
}
