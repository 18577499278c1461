// Package fetch defines the network capability consumed by the API client and
// the remote edit engine. Hosts supply their own Fetcher (for proxies,
// certificate handling, instrumentation, or test doubles); NewHTTP provides a
// net/http backed default.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Options describes a single request.
type Options struct {
	Method  string
	Headers map[string]string
	Body    io.Reader
	// Signal, when set, aborts the request once done. It is combined with the
	// context passed to Fetch.
	Signal context.Context
}

// Response is a fully buffered HTTP response.
type Response struct {
	Status     int
	StatusText string
	Headers    http.Header
	body       []byte
}

// NewResponse builds a Response from its parts. It is primarily useful for
// Fetcher implementations and test doubles.
func NewResponse(status int, headers http.Header, body []byte) *Response {
	if headers == nil {
		headers = http.Header{}
	}
	return &Response{
		Status:     status,
		StatusText: http.StatusText(status),
		Headers:    headers,
		body:       body,
	}
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Header returns the first value of the named header.
func (r *Response) Header(name string) string { return r.Headers.Get(name) }

// Bytes returns the raw body.
func (r *Response) Bytes() []byte { return r.body }

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.body) }

// JSON decodes the body into v. Numbers decoded into interface values are
// json.Number.
func (r *Response) JSON(v any) error {
	dec := json.NewDecoder(bytes.NewReader(r.body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("invalid data after top-level value")
	}
	return nil
}

// Empty reports whether the body carries no content.
func (r *Response) Empty() bool { return len(strings.TrimSpace(string(r.body))) == 0 }

// AbortController cancels in-flight requests that were issued with its
// Signal.
type AbortController interface {
	Signal() context.Context
	Abort()
}

// Fetcher is the network capability.
type Fetcher interface {
	// Fetch performs the request and buffers the response. Non-2xx statuses
	// are returned as a Response, not an error.
	Fetch(ctx context.Context, url string, opts Options) (*Response, error)

	// MakeAbortController returns a controller whose signal can be attached
	// to requests via Options.Signal.
	MakeAbortController() AbortController

	// IsAbortError reports whether err was caused by an aborted request.
	IsAbortError(err error) bool
	// IsInternetDisconnectedError reports whether err indicates there is no
	// network connectivity.
	IsInternetDisconnectedError(err error) bool
	// IsFetcherError reports whether err originated in the fetcher itself
	// (as opposed to, say, response decoding).
	IsFetcherError(err error) bool

	// UserAgentLibrary names the underlying HTTP stack for User-Agent
	// reporting.
	UserAgentLibrary() string
}
