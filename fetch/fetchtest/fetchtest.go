// Package fetchtest provides an in-memory fetch.Fetcher for tests. Responses
// are routed by URL path (and optionally method) and every request is
// recorded for later assertions.
package fetchtest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/ggoodman/nextedit-go/fetch"
)

// Request is a recorded outbound request.
type Request struct {
	Method  string
	URL     *url.URL
	Headers map[string]string
	Body    []byte
}

// Handler produces the response for a routed request.
type Handler func(ctx context.Context, req Request) (*fetch.Response, error)

// Fetcher routes requests to handlers keyed by "METHOD /path" or "/path".
// Unrouted requests receive a 404.
type Fetcher struct {
	mu       sync.Mutex
	routes   map[string]Handler
	requests []Request
}

// New returns an empty Fetcher.
func New() *Fetcher {
	return &Fetcher{routes: make(map[string]Handler)}
}

// Handle registers h for pattern, which is either "/path" or "METHOD /path".
func (f *Fetcher) Handle(pattern string, h Handler) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[pattern] = h
	return f
}

// JSON registers a static JSON response.
func (f *Fetcher) JSON(pattern string, status int, body string) *Fetcher {
	return f.Handle(pattern, func(context.Context, Request) (*fetch.Response, error) {
		return fetch.NewResponse(status, http.Header{"Content-Type": []string{"application/json; charset=utf-8"}}, []byte(body)), nil
	})
}

// Requests returns a copy of the recorded requests.
func (f *Fetcher) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts fetch.Options) (*fetch.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &url.Error{Op: "parse", URL: rawURL, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Signal != nil && opts.Signal.Err() != nil {
		return nil, opts.Signal.Err()
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	var body []byte
	if opts.Body != nil {
		body, _ = io.ReadAll(opts.Body)
	}
	req := Request{Method: method, URL: u, Headers: opts.Headers, Body: body}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	h, ok := f.routes[method+" "+u.Path]
	if !ok {
		h, ok = f.routes[u.Path]
	}
	f.mu.Unlock()

	if !ok {
		return fetch.NewResponse(http.StatusNotFound, nil, nil), nil
	}
	return h(ctx, req)
}

func (f *Fetcher) MakeAbortController() fetch.AbortController {
	ctx, cancel := context.WithCancel(context.Background())
	return &controller{ctx: ctx, cancel: cancel}
}

func (f *Fetcher) IsAbortError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ErrDisconnected can be returned by handlers to simulate lost connectivity.
var ErrDisconnected = errors.New("fetchtest: internet disconnected")

func (f *Fetcher) IsInternetDisconnectedError(err error) bool {
	return errors.Is(err, ErrDisconnected)
}

func (f *Fetcher) IsFetcherError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) || errors.Is(err, ErrDisconnected)
}

func (f *Fetcher) UserAgentLibrary() string { return "TestFetcher" }

type controller struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *controller) Signal() context.Context { return c.ctx }
func (c *controller) Abort()                  { c.cancel() }

var _ fetch.Fetcher = (*Fetcher)(nil)
