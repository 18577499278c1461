package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

const defaultMaxBodyBytes = 16 << 20

// HTTPFetcher is a Fetcher backed by net/http.
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
	userAgentLib string
}

// HTTPOption customizes an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithMaxBodyBytes caps the number of response bytes buffered per request.
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodyBytes = n
		}
	}
}

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// NewHTTP returns a Fetcher using client, or a client with a 30 second
// timeout when client is nil.
func NewHTTP(client *http.Client, opts ...HTTPOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	f := &HTTPFetcher{
		client:       client,
		maxBodyBytes: defaultMaxBodyBytes,
		userAgentLib: "net/http",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	if opts.Signal != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(opts.Signal, cancel)
		defer stop()
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, opts.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    resp.Header,
		body:       body,
	}, nil
}

func (f *HTTPFetcher) MakeAbortController() AbortController {
	ctx, cancel := context.WithCancel(context.Background())
	return &abortController{ctx: ctx, cancel: cancel}
}

func (f *HTTPFetcher) IsAbortError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (f *HTTPFetcher) IsInternetDisconnectedError(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ECONNRESET)
}

func (f *HTTPFetcher) IsFetcherError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (f *HTTPFetcher) UserAgentLibrary() string { return f.userAgentLib }

type abortController struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (a *abortController) Signal() context.Context { return a.ctx }
func (a *abortController) Abort()                  { a.cancel() }

var _ Fetcher = (*HTTPFetcher)(nil)
