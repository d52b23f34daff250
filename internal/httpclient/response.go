package httpclient

import (
	"fmt"
	"net/http"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) String() string {
	return string(r.Body)
}

// Retryable reports throttling and server errors.
func (r *Response) Retryable() bool {
	return r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500
}

// Err is nil for a 2xx response and a *StatusError otherwise.
func (r *Response) Err(upstream string) error {
	if r.IsSuccess() {
		return nil
	}
	body := r.String()
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return &StatusError{Upstream: upstream, StatusCode: r.StatusCode, Body: body, retryable: r.Retryable()}
}

func (r *Response) statusClass() string {
	return fmt.Sprintf("%dxx", r.StatusCode/100)
}

// StatusError is a non-2xx answer.
type StatusError struct {
	Upstream   string
	StatusCode int
	Body       string
	retryable  bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Upstream, e.StatusCode, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool { return e.retryable }
