// Package httpjson holds the request plumbing shared by the adapters that
// talk JSON over HTTP: routing providers and the policy model server.
package httpjson

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const UserAgent = "waste-dispatch-service/1.0"

// StatusError is returned for any response with status >= 400.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	switch e.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Requester holds what every client needs to talk JSON over HTTP.
type Requester struct {
	session *http.Client
	apiKey  string
}

// NewRequester builds a Requester. A non-positive timeout means 10s.
func NewRequester(apiKey string, timeout time.Duration) Requester {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return Requester{
		session: &http.Client{Timeout: timeout},
		apiKey:  apiKey,
	}
}

func (r Requester) NewRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if r.apiKey != "" {
		req.Header.Set("Authorization", r.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// Do sends req and turns any status >= 400 into a *StatusError, closing
// the body. On success the caller owns the response body.
func (r Requester) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}
