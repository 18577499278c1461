package ghapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/nextedit-go/fetch"
	"github.com/ggoodman/nextedit-go/internal/logctx"
	"github.com/ggoodman/nextedit-go/validate"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultDotcomURL  = "https://api.github.com"
	DefaultAgentsURL  = "https://api.githubcopilot.com"
	DefaultAPIVersion = "2022-11-28"

	defaultPageSize = 20
	defaultMaxPages = 100
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// ResponseType selects how a successful body is decoded.
type ResponseType int

const (
	// ResponseJSON decodes JSON bodies and falls back to text when the
	// server declares a non-JSON content type.
	ResponseJSON ResponseType = iota
	ResponseText
)

// Metrics receives per-request observations. *metrics.Collector from this
// module satisfies it.
type Metrics interface {
	APIRequest(method string, status int, d time.Duration)
	InvalidResponse(operation string)
}

// Option configures New.
type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithDotcomURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.dotcomURL = strings.TrimSuffix(u, "/")
		}
	}
}

func WithAgentsURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.agentsURL = strings.TrimSuffix(u, "/")
		}
	}
}

func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// WithUserAgent sets the product part of the User-Agent header. The
// fetcher's library name is appended.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit paces outgoing requests client side. It does not retry.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.limiter = rate.NewLimiter(limit, max(burst, 1))
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client issues single-attempt requests through a fetch.Fetcher.
type Client struct {
	fetcher    fetch.Fetcher
	log        *slog.Logger
	dotcomURL  string
	agentsURL  string
	apiVersion string
	userAgent  string
	limiter    *rate.Limiter
	metrics    Metrics
}

func New(fetcher fetch.Fetcher, opts ...Option) *Client {
	c := &Client{
		fetcher:    fetcher,
		log:        slog.New(slog.DiscardHandler),
		dotcomURL:  DefaultDotcomURL,
		agentsURL:  DefaultAgentsURL,
		apiVersion: DefaultAPIVersion,
		userAgent:  "nextedit-go",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// DotcomURL returns the REST/GraphQL base URL.
func (c *Client) DotcomURL() string { return c.dotcomURL }

// AgentsURL returns the agents service base URL.
func (c *Client) AgentsURL() string { return c.agentsURL }

// Request describes one API call. Route is joined to BaseURL unless it is
// already absolute.
type Request struct {
	// BaseURL defaults to the dotcom URL.
	BaseURL string
	Route   string
	// Method defaults to GET.
	Method string
	Token  string
	// Body, when non-nil, is sent as JSON.
	Body         any
	APIVersion   string
	UserAgent    string
	ResponseType ResponseType
}

// Request performs req and decodes the body. It returns (nil, nil) when the
// server answered 204, 404 or an empty 2xx.
func (c *Client) Request(ctx context.Context, req Request) (any, error) {
	resp, err := c.do(ctx, req)
	if err != nil || resp == nil {
		return nil, err
	}
	if req.ResponseType == ResponseText || !isJSON(resp) {
		return resp.Text(), nil
	}
	var out any
	if err := resp.JSON(&out); err != nil {
		c.recordInvalid(ctx, req.Route)
		return nil, fmt.Errorf("%w: %s %s: decode body: %v", ErrInvalidResponse, methodOf(req), req.Route, err)
	}
	return out, nil
}

// do performs the round trip. A nil response with a nil error means there
// is no payload.
func (c *Client) do(ctx context.Context, req Request) (*fetch.Response, error) {
	method := methodOf(req)
	ctx = logctx.WithAPICallData(ctx, &logctx.APICallData{Method: method, Route: req.Route})

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cancelled(cerr)
			}
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	headers := map[string]string{
		"Accept":     "application/vnd.github+json",
		"User-Agent": c.userAgentFor(req),
	}
	if req.Token != "" {
		headers["Authorization"] = "Bearer " + req.Token
	}
	if v := orDefault(req.APIVersion, c.apiVersion); v != "" {
		headers["X-GitHub-Api-Version"] = v
	}
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
		headers["Content-Type"] = "application/json"
	}

	ctl := c.fetcher.MakeAbortController()
	stop := context.AfterFunc(ctx, ctl.Abort)
	defer stop()

	start := time.Now()
	resp, err := c.fetcher.Fetch(ctx, c.urlFor(req), fetch.Options{
		Method:  method,
		Headers: headers,
		Body:    body,
		Signal:  ctl.Signal(),
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.APIRequest(method, 0, time.Since(start))
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, cancelled(cerr)
		}
		terr := &TransportError{Kind: c.classify(err), Method: method, Route: req.Route, Err: err}
		c.log.WarnContext(ctx, "ghapi.request.fail", slog.String("kind", string(terr.Kind)), slog.String("err", err.Error()))
		return nil, terr
	}
	if c.metrics != nil {
		c.metrics.APIRequest(method, resp.Status, time.Since(start))
	}

	switch {
	case resp.Status == http.StatusNotFound, resp.Status == http.StatusNoContent:
		c.log.DebugContext(ctx, "ghapi.request.absent", slog.Int("status", resp.Status))
		return nil, nil
	case !resp.OK():
		serr := &StatusError{StatusCode: resp.Status, Method: method, Route: req.Route}
		if isJSON(resp) {
			serr.Message = gjson.GetBytes(resp.Bytes(), "message").String()
		}
		c.log.WarnContext(ctx, "ghapi.request.status", slog.Int("status", resp.Status))
		return nil, serr
	case resp.Empty():
		return nil, nil
	}
	return resp, nil
}

func (c *Client) classify(err error) TransportKind {
	switch {
	case c.fetcher.IsAbortError(err):
		return TransportAbort
	case c.fetcher.IsInternetDisconnectedError(err):
		return TransportDisconnected
	case c.fetcher.IsFetcherError(err):
		return TransportFetcher
	default:
		return TransportUnknown
	}
}

func (c *Client) urlFor(req Request) string {
	if strings.HasPrefix(req.Route, "https://") || strings.HasPrefix(req.Route, "http://") {
		return req.Route
	}
	base := strings.TrimSuffix(orDefault(req.BaseURL, c.dotcomURL), "/")
	return base + "/" + strings.TrimPrefix(req.Route, "/")
}

func (c *Client) userAgentFor(req Request) string {
	ua := orDefault(req.UserAgent, c.userAgent)
	if lib := c.fetcher.UserAgentLibrary(); lib != "" {
		ua += " (" + lib + ")"
	}
	return ua
}

func (c *Client) recordInvalid(ctx context.Context, op string) {
	if c.metrics != nil {
		c.metrics.InvalidResponse(op)
	}
	c.log.WarnContext(ctx, "ghapi.response.invalid", slog.String("op", op))
}

// PageRequest describes a paginated listing.
type PageRequest struct {
	Request
	// PageSize defaults to 20.
	PageSize int
	// ItemsPath is a gjson path to the items array. Empty means the body is
	// the array.
	ItemsPath string
	// MaxPages bounds the number of round trips. Defaults to 100.
	// Exceeding it is an error.
	MaxPages int
}

// RequestWithPagination collects items across pages. It follows a Link
// rel="next" header when the server sends one and otherwise increments the
// page parameter until a page is empty or shorter than PageSize. When more
// pages remain after MaxPages round trips it fails with ErrTooManyPages
// rather than return a partial listing.
func (c *Client) RequestWithPagination(ctx context.Context, req PageRequest) ([]any, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	items := []any{}
	page := 1
	next := ""
	for round := 0; ; round++ {
		if round == maxPages {
			c.log.WarnContext(ctx, "ghapi.paginate.limit", slog.String("route", req.Route), slog.Int("max_pages", maxPages))
			return nil, fmt.Errorf("%w: %s: more than %d pages", ErrTooManyPages, req.Route, maxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		r := req.Request
		r.ResponseType = ResponseJSON
		if next != "" {
			r.Route = next
		} else {
			r.Route = withQuery(req.Route, url.Values{
				"page":      {strconv.Itoa(page)},
				"page_size": {strconv.Itoa(pageSize)},
			})
		}

		resp, err := c.do(ctx, r)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			break
		}
		body := gjson.ParseBytes(resp.Bytes())
		if req.ItemsPath != "" {
			body = body.Get(req.ItemsPath)
		}
		if !body.Exists() {
			break
		}
		if !body.IsArray() {
			c.recordInvalid(ctx, req.Route)
			return nil, fmt.Errorf("%w: %s: %q is not an array", ErrInvalidResponse, req.Route, req.ItemsPath)
		}
		got := body.Array()
		if len(got) == 0 {
			break
		}
		for _, it := range got {
			v, err := validate.Decode([]byte(it.Raw))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResponse, req.Route, err)
			}
			items = append(items, v)
		}

		if link := resp.Header("Link"); link != "" {
			if next = nextLink(link); next == "" {
				break
			}
			continue
		}
		if len(got) < pageSize {
			break
		}
		page++
	}
	return items, nil
}

// GraphQL posts query to {dotcom}/graphql and returns the data member.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any, token string) (any, error) {
	resp, err := c.do(ctx, Request{
		Route:  "graphql",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]any{"query": query, "variables": variables},
	})
	if err != nil || resp == nil {
		return nil, err
	}
	body := resp.Bytes()
	if !gjson.ValidBytes(body) {
		c.recordInvalid(ctx, "graphql")
		return nil, fmt.Errorf("%w: graphql: malformed body", ErrInvalidResponse)
	}
	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		gerr := &GraphQLError{}
		for _, e := range errs.Array() {
			gerr.Messages = append(gerr.Messages, e.Get("message").String())
		}
		return nil, gerr
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, nil
	}
	out, err := validate.Decode([]byte(data.Raw))
	if err != nil {
		return nil, fmt.Errorf("%w: graphql: %v", ErrInvalidResponse, err)
	}
	return out, nil
}

func isJSON(resp *fetch.Response) bool {
	ct := resp.Header("Content-Type")
	if ct == "" {
		return true
	}
	mt := contenttype.NewMediaType(ct)
	return mt.Matches(jsonMediaType) || strings.HasSuffix(mt.Subtype, "+json")
}

// nextLink returns the target of the first link in an RFC 8288 Link header
// whose rel list contains "next". Targets may contain commas, so links are
// delimited by their angle brackets.
func nextLink(header string) string {
	rest := header
	for {
		start := strings.IndexByte(rest, '<')
		if start < 0 {
			return ""
		}
		end := strings.IndexByte(rest[start:], '>')
		if end < 0 {
			return ""
		}
		target := rest[start+1 : start+end]
		rest = rest[start+end+1:]

		params := rest
		if i := strings.IndexByte(rest, '<'); i >= 0 {
			params = rest[:i]
		}
		for _, p := range strings.Split(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), "rel") {
				continue
			}
			v = strings.TrimSuffix(strings.TrimSpace(v), ",")
			for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(v), `"`)) {
				if strings.EqualFold(rel, "next") {
					return target
				}
			}
		}
	}
}

func withQuery(route string, extra url.Values) string {
	path, rawQuery, _ := strings.Cut(route, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	for k, v := range extra {
		q[k] = v
	}
	return path + "?" + q.Encode()
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

func methodOf(req Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
