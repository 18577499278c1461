package ghapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/nextedit-go/fetch"
	"github.com/ggoodman/nextedit-go/fetch/fetchtest"
	"golang.org/x/time/rate"
)

func jsonResponse(status int, body string) *fetch.Response {
	return fetch.NewResponse(status, http.Header{"Content-Type": []string{"application/json"}}, []byte(body))
}

func TestRequestSetsHeadersAndDecodesJSON(t *testing.T) {
	f := fetchtest.New().JSON("GET /user", 200, `{"login":"octocat"}`)
	c := New(f, WithUserAgent("nextedit-test"))

	got, err := c.Request(context.Background(), Request{Route: "user", Token: "tok"})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["login"] != "octocat" {
		t.Fatalf("unexpected body: %#v", got)
	}

	reqs := f.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	h := reqs[0].Headers
	if h["Authorization"] != "Bearer tok" {
		t.Fatalf("Authorization = %q", h["Authorization"])
	}
	if h["X-GitHub-Api-Version"] != DefaultAPIVersion {
		t.Fatalf("X-GitHub-Api-Version = %q", h["X-GitHub-Api-Version"])
	}
	if !strings.HasPrefix(h["User-Agent"], "nextedit-test") || !strings.Contains(h["User-Agent"], "TestFetcher") {
		t.Fatalf("User-Agent = %q", h["User-Agent"])
	}
	if reqs[0].URL.Host != "api.github.com" {
		t.Fatalf("host = %q", reqs[0].URL.Host)
	}
}

func TestRequestAbsentBodies(t *testing.T) {
	f := fetchtest.New().
		JSON("/no-content", http.StatusNoContent, "").
		JSON("/empty", http.StatusOK, "  ")
	c := New(f)
	for _, route := range []string{"missing", "no-content", "empty"} {
		t.Run(route, func(t *testing.T) {
			got, err := c.Request(context.Background(), Request{Route: route})
			if err != nil || got != nil {
				t.Fatalf("Request() = %#v, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestRequestStatusError(t *testing.T) {
	f := fetchtest.New().JSON("/boom", 500, `{"message":"kaput"}`)
	_, err := New(f).Request(context.Background(), Request{Route: "boom"})
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if serr.StatusCode != 500 || serr.Message != "kaput" {
		t.Fatalf("unexpected error: %+v", serr)
	}
}

func TestRequestClassifiesTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TransportKind
	}{
		{"disconnected", fetchtest.ErrDisconnected, TransportDisconnected},
		{"fetcher", &url.Error{Op: "Get", URL: "x", Err: errors.New("refused")}, TransportFetcher},
		{"unknown", errors.New("weird"), TransportUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fetchtest.New().Handle("/x", func(context.Context, fetchtest.Request) (*fetch.Response, error) {
				return nil, tt.err
			})
			_, err := New(f).Request(context.Background(), Request{Route: "x"})
			var terr *TransportError
			if !errors.As(err, &terr) {
				t.Fatalf("expected *TransportError, got %v", err)
			}
			if terr.Kind != tt.want {
				t.Fatalf("Kind = %q, want %q", terr.Kind, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Fatal("transport error should unwrap to the fetcher error")
			}
		})
	}
}

func TestRequestCancelled(t *testing.T) {
	f := fetchtest.New().JSON("/user", 200, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(f).Request(ctx, Request{Route: "user"})
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(f.Requests()) != 0 {
		t.Fatal("no request should be sent after cancellation")
	}
}

func TestRequestCancelledInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := fetchtest.New().Handle("/slow", func(ctx context.Context, _ fetchtest.Request) (*fetch.Response, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := New(f).Request(ctx, Request{Route: "slow"})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestRequestTextResponses(t *testing.T) {
	f := fetchtest.New().Handle("/logs", func(context.Context, fetchtest.Request) (*fetch.Response, error) {
		return fetch.NewResponse(200, http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}}, []byte("line 1\n")), nil
	}).JSON("/json-as-text", 200, `{"a":1}`)
	c := New(f)

	got, err := c.Request(context.Background(), Request{Route: "logs"})
	if err != nil || got != "line 1\n" {
		t.Fatalf("Request() = %#v, %v", got, err)
	}
	got, err = c.Request(context.Background(), Request{Route: "json-as-text", ResponseType: ResponseText})
	if err != nil || got != `{"a":1}` {
		t.Fatalf("Request() = %#v, %v", got, err)
	}
}

func TestRequestMalformedJSON(t *testing.T) {
	f := fetchtest.New().JSON("/bad", 200, `{"a":`)
	_, err := New(f).Request(context.Background(), Request{Route: "bad"})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestRequestVendorJSONContentType(t *testing.T) {
	f := fetchtest.New().Handle("/v", func(context.Context, fetchtest.Request) (*fetch.Response, error) {
		return fetch.NewResponse(200, http.Header{"Content-Type": []string{"application/vnd.github+json"}}, []byte(`[1,2]`)), nil
	})
	got, err := New(f).Request(context.Background(), Request{Route: "v"})
	if arr, ok := got.([]any); err != nil || !ok || len(arr) != 2 {
		t.Fatalf("Request() = %#v, %v", got, err)
	}
}

func TestPaginationByPageNumber(t *testing.T) {
	sizes := map[string]int{"1": 2, "2": 2, "3": 1}
	f := fetchtest.New().Handle("/items", func(_ context.Context, req fetchtest.Request) (*fetch.Response, error) {
		page := req.URL.Query().Get("page")
		if req.URL.Query().Get("page_size") != "2" || req.URL.Query().Get("state") != "open" {
			return nil, fmt.Errorf("unexpected query %q", req.URL.RawQuery)
		}
		var items []string
		for i := range sizes[page] {
			items = append(items, strconv.Quote(page+"-"+strconv.Itoa(i)))
		}
		return jsonResponse(200, `{"sessions":[`+strings.Join(items, ",")+`]}`), nil
	})

	got, err := New(f).RequestWithPagination(context.Background(), PageRequest{
		Request:   Request{Route: "items?state=open"},
		PageSize:  2,
		ItemsPath: "sessions",
	})
	if err != nil {
		t.Fatalf("RequestWithPagination() failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d: %v", len(got), got)
	}
	if got[0] != "1-0" || got[4] != "3-0" {
		t.Fatalf("unexpected order: %v", got)
	}
	if n := len(f.Requests()); n != 3 {
		t.Fatalf("expected 3 round trips, got %d", n)
	}
}

func TestPaginationFollowsLinkHeader(t *testing.T) {
	f := fetchtest.New().
		Handle("/repos", func(context.Context, fetchtest.Request) (*fetch.Response, error) {
			resp := jsonResponse(200, `[{"n":1},{"n":2}]`)
			resp.Headers.Set("Link", `<https://api.github.com/repos-next?cursor=abc>; rel="next", <https://api.github.com/repos-last>; rel="last"`)
			return resp, nil
		}).
		Handle("/repos-next", func(_ context.Context, req fetchtest.Request) (*fetch.Response, error) {
			if req.URL.Query().Get("cursor") != "abc" {
				return nil, errors.New("cursor not forwarded")
			}
			resp := jsonResponse(200, `[{"n":3},{"n":4}]`)
			resp.Headers.Set("Link", `<https://api.github.com/repos>; rel="first"`)
			return resp, nil
		})

	got, err := New(f).RequestWithPagination(context.Background(), PageRequest{
		Request:  Request{Route: "repos"},
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("RequestWithPagination() failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 items, got %d", len(got))
	}
	if m, _ := got[3].(map[string]any); m["n"] != json.Number("4") {
		t.Fatalf("unexpected last item: %#v", got[3])
	}
}

func TestPaginationFailsPastPageLimit(t *testing.T) {
	tests := []struct {
		name    string
		handler fetchtest.Handler
	}{
		{"full pages", func(context.Context, fetchtest.Request) (*fetch.Response, error) {
			return jsonResponse(200, `[1]`), nil
		}},
		{"link next", func(context.Context, fetchtest.Request) (*fetch.Response, error) {
			resp := jsonResponse(200, `[1,2,3]`)
			resp.Headers.Set("Link", `<https://api.github.com/items?cursor=x>; rel="next"`)
			return resp, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fetchtest.New().Handle("/items", tt.handler)
			got, err := New(f).RequestWithPagination(context.Background(), PageRequest{
				Request:  Request{Route: "items"},
				PageSize: 1,
				MaxPages: 4,
			})
			if !errors.Is(err, ErrTooManyPages) || !errors.Is(err, ErrInvalidResponse) {
				t.Fatalf("expected ErrTooManyPages, got %v", err)
			}
			if got != nil {
				t.Fatalf("expected no partial items, got %d", len(got))
			}
			if n := len(f.Requests()); n != 4 {
				t.Fatalf("expected 4 round trips, got %d", n)
			}
		})
	}
}

func TestPaginationStopsExactlyAtPageLimit(t *testing.T) {
	f := fetchtest.New().Handle("/items", func(_ context.Context, req fetchtest.Request) (*fetch.Response, error) {
		if req.URL.Query().Get("page") == "3" {
			return jsonResponse(200, `[]`), nil
		}
		return jsonResponse(200, `[1]`), nil
	})
	got, err := New(f).RequestWithPagination(context.Background(), PageRequest{
		Request:  Request{Route: "items"},
		PageSize: 1,
		MaxPages: 3,
	})
	if err != nil || len(got) != 2 {
		t.Fatalf("RequestWithPagination() = %d items, %v", len(got), err)
	}
}

func TestPaginationFollowsLinkWithCommaInTarget(t *testing.T) {
	f := fetchtest.New().Handle("/agents/sessions", func(_ context.Context, req fetchtest.Request) (*fetch.Response, error) {
		if req.URL.Query().Get("cursor") == "2" {
			if req.URL.Query().Get("resource_state") != "draft,open" {
				return nil, fmt.Errorf("unexpected query %q", req.URL.RawQuery)
			}
			return jsonResponse(200, `{"sessions":[{"id":"b"}]}`), nil
		}
		resp := jsonResponse(200, `{"sessions":[{"id":"a"}]}`)
		resp.Headers.Set("Link", `<https://api.githubcopilot.com/agents/sessions?resource_state=draft,open&cursor=2>; rel="next"`)
		return resp, nil
	})
	got, err := New(f).RequestWithPagination(context.Background(), PageRequest{
		Request:   Request{Route: "agents/sessions?resource_state=draft,open"},
		ItemsPath: "sessions",
	})
	if err != nil {
		t.Fatalf("RequestWithPagination() failed: %v", err)
	}
	if len(got) != 2 || dig(got[1], "id") != "b" {
		t.Fatalf("unexpected items: %#v", got)
	}
}

func TestPaginationKeepsLargeIntegers(t *testing.T) {
	f := fetchtest.New().JSON("/items", 200, `[{"id":9007199254740993}]`)
	got, err := New(f).RequestWithPagination(context.Background(), PageRequest{Request: Request{Route: "items"}})
	if err != nil {
		t.Fatalf("RequestWithPagination() failed: %v", err)
	}
	if id := dig(got[0], "id"); id != json.Number("9007199254740993") {
		t.Fatalf("id = %#v", id)
	}
}

func TestPaginationEmptyFirstPage(t *testing.T) {
	f := fetchtest.New().JSON("/items", 200, `{"sessions":[]}`)
	got, err := New(f).RequestWithPagination(context.Background(), PageRequest{
		Request:   Request{Route: "items"},
		ItemsPath: "sessions",
	})
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("RequestWithPagination() = %#v, %v", got, err)
	}
}

func TestPaginationRejectsNonArray(t *testing.T) {
	f := fetchtest.New().JSON("/items", 200, `{"sessions":{}}`)
	_, err := New(f).RequestWithPagination(context.Background(), PageRequest{
		Request:   Request{Route: "items"},
		ItemsPath: "sessions",
	})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestGraphQL(t *testing.T) {
	t.Run("data", func(t *testing.T) {
		f := fetchtest.New().JSON("POST /graphql", 200, `{"data":{"viewer":{"login":"me"}}}`)
		got, err := New(f).GraphQL(context.Background(), "query { viewer { login } }", nil, "tok")
		if err != nil {
			t.Fatalf("GraphQL() failed: %v", err)
		}
		if dig(got, "viewer", "login") != "me" {
			t.Fatalf("unexpected data: %#v", got)
		}
		if !strings.Contains(string(f.Requests()[0].Body), `"query"`) {
			t.Fatal("expected query in body")
		}
	})
	t.Run("errors", func(t *testing.T) {
		f := fetchtest.New().JSON("POST /graphql", 200, `{"data":null,"errors":[{"message":"one"},{"message":"two"}]}`)
		_, err := New(f).GraphQL(context.Background(), "query { x }", nil, "tok")
		var gerr *GraphQLError
		if !errors.As(err, &gerr) {
			t.Fatalf("expected *GraphQLError, got %v", err)
		}
		if len(gerr.Messages) != 2 || gerr.Messages[1] != "two" {
			t.Fatalf("unexpected messages: %v", gerr.Messages)
		}
	})
	t.Run("null data", func(t *testing.T) {
		f := fetchtest.New().JSON("POST /graphql", 200, `{"data":null}`)
		got, err := New(f).GraphQL(context.Background(), "query { x }", nil, "tok")
		if err != nil || got != nil {
			t.Fatalf("GraphQL() = %#v, %v", got, err)
		}
	})
}

func TestRateLimitHonorsDeadline(t *testing.T) {
	f := fetchtest.New().JSON("/user", 200, `{}`)
	c := New(f, WithRateLimit(rate.Every(time.Hour), 1))
	if _, err := c.Request(context.Background(), Request{Route: "user"}); err != nil {
		t.Fatalf("first Request() failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Request(ctx, Request{Route: "user"}); err == nil {
		t.Fatal("expected the limiter to refuse the second request")
	}
	if n := len(f.Requests()); n != 1 {
		t.Fatalf("expected 1 request sent, got %d", n)
	}
}

type recordingMetrics struct {
	statuses []int
	invalid  []string
}

func (m *recordingMetrics) APIRequest(_ string, status int, _ time.Duration) {
	m.statuses = append(m.statuses, status)
}
func (m *recordingMetrics) InvalidResponse(op string) { m.invalid = append(m.invalid, op) }

func TestClientRecordsMetrics(t *testing.T) {
	f := fetchtest.New().JSON("/ok", 200, `{}`).JSON("/bad", 200, `[`)
	m := &recordingMetrics{}
	c := New(f, WithMetrics(m))
	_, _ = c.Request(context.Background(), Request{Route: "ok"})
	_, _ = c.Request(context.Background(), Request{Route: "bad"})
	if len(m.statuses) != 2 || m.statuses[0] != 200 {
		t.Fatalf("statuses = %v", m.statuses)
	}
	if len(m.invalid) != 1 {
		t.Fatalf("invalid = %v", m.invalid)
	}
}

func TestNextLink(t *testing.T) {
	tests := []struct{ in, want string }{
		{`<https://x/a?page=2>; rel="next"`, "https://x/a?page=2"},
		{`<https://x/p>; rel="prev", <https://x/n>; rel=next`, "https://x/n"},
		{`<https://x/l>; rel="last"`, ""},
		{`<https://x/s?state=draft,open&page=2>; rel="next"`, "https://x/s?state=draft,open&page=2"},
		{`<https://x/y?page=2>; rel="next last"`, "https://x/y?page=2"},
		{`<https://x/a?a=1,2>; rel="prev", <https://x/b?b=3,4>; title="n"; rel="next"`, "https://x/b?b=3,4"},
		{`<https://x/u>; REL=Next`, "https://x/u"},
		{`<https://x/u; rel="next"`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := nextLink(tt.in); got != tt.want {
			t.Fatalf("nextLink(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
