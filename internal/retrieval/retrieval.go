// Package retrieval defines the contracts shared by the web retrieval tools:
// the outbound fetcher, clocks, ID generators, and the request/response types
// that flow between them.
package retrieval

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrTimeout is returned when an outbound request exceeds its deadline.
	ErrTimeout = errors.New("request timeout")
	// ErrClosed is returned when a fetcher is used after Close.
	ErrClosed = errors.New("fetcher closed")
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// FetchRequest captures everything needed to fetch a URL. A non-nil Form
// turns the request into a form-encoded POST.
type FetchRequest struct {
	URL     string
	Form    map[string]string
	Headers http.Header
}

// Method reports the HTTP method implied by the request.
func (r FetchRequest) Method() string {
	if r.Form != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// FetchResponse is the result returned by a Fetcher implementation. URL is
// the final URL after redirects.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the Content-Type response header, or "".
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// FinalURL parses the post-redirect URL.
func (r FetchResponse) FinalURL() (*url.URL, error) {
	return url.Parse(r.URL)
}
