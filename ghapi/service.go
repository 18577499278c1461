package ghapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ggoodman/nextedit-go/auth"
	"github.com/ggoodman/nextedit-go/validate"
)

// ServiceOption configures NewService.
type ServiceOption func(*Service)

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAgentsUserAgent sets the User-Agent sent to the agents service.
func WithAgentsUserAgent(ua string) ServiceOption {
	return func(s *Service) { s.agentsUA = ua }
}

// Service exposes the domain operations. Every operation obtains a token
// from the supplier, performs one validated request and never returns
// unvalidated data.
type Service struct {
	client   *Client
	tokens   auth.TokenProvider
	log      *slog.Logger
	agentsUA string
}

func NewService(client *Client, tokens auth.TokenProvider, opts ...ServiceOption) *Service {
	s := &Service{
		client: client,
		tokens: tokens,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) token(ctx context.Context) (string, error) {
	if s.tokens == nil {
		return "", auth.ErrUnauthorized
	}
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("obtain token: %w", err)
	}
	return tok, nil
}

func (s *Service) rest(ctx context.Context, route string, rt ResponseType) (any, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Request(ctx, Request{Route: route, Token: tok, ResponseType: rt})
}

func (s *Service) agents(ctx context.Context, method, route string, body any, rt ResponseType) (any, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Request(ctx, Request{
		BaseURL:      s.client.AgentsURL(),
		Route:        route,
		Method:       method,
		Token:        tok,
		Body:         body,
		UserAgent:    s.agentsUA,
		ResponseType: rt,
	})
}

// check validates raw with v, logging the violating field on failure.
func check[T any](ctx context.Context, s *Service, op string, v validate.Validator[T], raw any) (T, bool) {
	res := v.Validate(raw)
	if res.OK() {
		return res.Content, true
	}
	if s.client.metrics != nil {
		s.client.metrics.InvalidResponse(op)
	}
	attrs := []any{slog.String("op", op), slog.String("err", res.Err.Error())}
	var verr *validate.Error
	if errors.As(res.Err, &verr) {
		attrs = append(attrs, slog.String("field", verr.Path))
	}
	s.log.ErrorContext(ctx, "ghapi.validate.fail", attrs...)
	return res.Content, false
}

func esc(parts ...string) string {
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// CurrentUser returns the authenticated user, or nil when the response is
// absent or invalid.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := s.rest(ctx, "user", ResponseJSON)
	if err != nil || raw == nil {
		return nil, err
	}
	u, ok := check(ctx, s, "CurrentUser", UserValidator(), raw)
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// PostJob starts a coding agent job. When the service rejects the job the
// error is an *ErrorResponse carrying the status.
func (s *Service) PostJob(ctx context.Context, owner, repo, apiVersion string, payload JobPayload) (*JobResponse, error) {
	route := fmt.Sprintf("agents/swe/%s/jobs/%s", url.PathEscape(apiVersion), esc(owner, repo))
	raw, err := s.agents(ctx, http.MethodPost, route, payload, ResponseJSON)
	var serr *StatusError
	if errors.As(err, &serr) {
		return nil, &ErrorResponse{Status: serr.StatusCode}
	}
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &NotFoundError{Resource: "repository " + owner + "/" + repo}
	}
	if res := JobResponseValidator().Validate(raw); res.OK() {
		return &res.Content, nil
	}
	if res := ErrorResponseValidator().Validate(raw); res.OK() {
		return nil, &res.Content
	}
	check(ctx, s, "PostJob", JobResponseValidator(), raw)
	return nil, fmt.Errorf("%w: post job", ErrInvalidResponse)
}

func (s *Service) mustJob(ctx context.Context, op, route, resource string) (*JobInfo, error) {
	raw, err := s.agents(ctx, http.MethodGet, route, nil, ResponseJSON)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &NotFoundError{Resource: resource}
	}
	job, ok := check(ctx, s, op, JobInfoValidator(), raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, resource)
	}
	return &job, nil
}

func (s *Service) GetJobByJobID(ctx context.Context, owner, repo, jobID string) (*JobInfo, error) {
	return s.mustJob(ctx, "GetJobByJobID", "agents/swe/v1/jobs/"+esc(owner, repo, jobID), "job "+jobID)
}

func (s *Service) GetJobBySessionID(ctx context.Context, owner, repo, sessionID string) (*JobInfo, error) {
	return s.mustJob(ctx, "GetJobBySessionID", "agents/swe/v1/jobs/"+esc(owner, repo)+"/session/"+url.PathEscape(sessionID), "job for session "+sessionID)
}

// GetCustomAgents lists the repository's custom agents. Absent or invalid
// responses yield an empty list.
func (s *Service) GetCustomAgents(ctx context.Context, owner, repo string) ([]CustomAgent, error) {
	raw, err := s.agents(ctx, http.MethodGet, "agents/swe/custom-agents/"+esc(owner, repo)+"?exclude_invalid_config=true", nil, ResponseJSON)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []CustomAgent{}, nil
	}
	resp, ok := check(ctx, s, "GetCustomAgents", customAgentsValidator(), raw)
	if !ok {
		return []CustomAgent{}, nil
	}
	return resp.Agents, nil
}

func (s *Service) GetPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]PullRequestFile, error) {
	raw, err := s.rest(ctx, "repos/"+esc(owner, repo)+"/pulls/"+strconv.Itoa(number)+"/files", ResponseJSON)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []PullRequestFile{}, nil
	}
	files, ok := check(ctx, s, "GetPullRequestFiles", validate.Array(PullRequestFileValidator()), raw)
	if !ok {
		return []PullRequestFile{}, nil
	}
	return files, nil
}

// ClosePullRequest reports whether the pull request ended up closed.
func (s *Service) ClosePullRequest(ctx context.Context, owner, repo string, number int) (bool, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return false, err
	}
	raw, err := s.client.Request(ctx, Request{
		Route:  "repos/" + esc(owner, repo) + "/pulls/" + strconv.Itoa(number),
		Method: http.MethodPatch,
		Token:  tok,
		Body:   map[string]string{"state": "closed"},
	})
	if err != nil || raw == nil {
		return false, err
	}
	resp, ok := check(ctx, s, "ClosePullRequest", closePullRequestValidator(), raw)
	return ok && resp.State == "closed", nil
}

// GetFileContent returns the decoded content of path at ref. Anything other
// than a valid base64 payload yields "".
func (s *Service) GetFileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	route := "repos/" + esc(owner, repo) + "/contents/" + escapePath(path) + "?ref=" + url.QueryEscape(ref)
	raw, err := s.rest(ctx, route, ResponseJSON)
	if err != nil || raw == nil {
		return "", err
	}
	fc, ok := check(ctx, s, "GetFileContent", fileContentValidator(), raw)
	if !ok {
		return "", nil
	}
	if fc.Encoding != "base64" {
		s.log.WarnContext(ctx, "ghapi.content.encoding", slog.String("encoding", fc.Encoding))
		return "", nil
	}
	b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(fc.Content, "\n", ""))
	if err != nil {
		s.log.WarnContext(ctx, "ghapi.content.decode.fail", slog.String("err", err.Error()))
		return "", nil
	}
	return string(b), nil
}

func (s *Service) GetSessionInfo(ctx context.Context, sessionID string) (*SessionInfo, error) {
	raw, err := s.agents(ctx, http.MethodGet, "agents/sessions/"+url.PathEscape(sessionID), nil, ResponseJSON)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &NotFoundError{Resource: "session " + sessionID}
	}
	info, ok := check(ctx, s, "GetSessionInfo", SessionInfoValidator(), raw)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrInvalidResponse, sessionID)
	}
	return &info, nil
}

// GetSessionLogs returns the raw log text, or "" when there is none.
func (s *Service) GetSessionLogs(ctx context.Context, sessionID string) (string, error) {
	raw, err := s.agents(ctx, http.MethodGet, "agents/sessions/"+url.PathEscape(sessionID)+"/logs", nil, ResponseText)
	if err != nil || raw == nil {
		return "", err
	}
	text, _ := check(ctx, s, "GetSessionLogs", validate.String(), raw)
	return text, nil
}

func (s *Service) GetSessionsForPullRequest(ctx context.Context, pullRequestID string) ([]SessionInfo, error) {
	raw, err := s.agents(ctx, http.MethodGet, "agents/sessions/resource/pull/"+url.PathEscape(pullRequestID), nil, ResponseJSON)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []SessionInfo{}, nil
	}
	resp, ok := check(ctx, s, "GetSessionsForPullRequest", sessionsValidator(), raw)
	if !ok {
		return []SessionInfo{}, nil
	}
	return resp.Sessions, nil
}

// GetAllOpenSessions pages through the open and draft sessions of nwo
// ("owner/repo"). Items that fail validation are dropped and logged.
func (s *Service) GetAllOpenSessions(ctx context.Context, nwo string) ([]SessionInfo, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.client.RequestWithPagination(ctx, PageRequest{
		Request: Request{
			BaseURL:   s.client.AgentsURL(),
			Route:     "agents/sessions?resource_state=draft,open&nwo=" + url.QueryEscape(nwo),
			Token:     tok,
			UserAgent: s.agentsUA,
		},
		ItemsPath: "sessions",
	})
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, 0, len(items))
	v := SessionInfoValidator()
	for _, it := range items {
		if info, ok := check(ctx, s, "GetAllOpenSessions", v, it); ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *Service) GetRepositoryItems(ctx context.Context, owner, repo, path string) ([]RepositoryItem, error) {
	raw, err := s.rest(ctx, "repos/"+esc(owner, repo)+"/contents/"+escapePath(path), ResponseJSON)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []RepositoryItem{}, nil
	}
	items, ok := check(ctx, s, "GetRepositoryItems", validate.Array(RepositoryItemValidator()), raw)
	if !ok {
		return []RepositoryItem{}, nil
	}
	return items, nil
}

// IsAvailable reports whether the repository can be read with the current
// token. Status errors count as unavailable.
func (s *Service) IsAvailable(ctx context.Context, owner, repo string) (bool, error) {
	raw, err := s.rest(ctx, "repos/"+esc(owner, repo), ResponseJSON)
	var serr *StatusError
	if errors.As(err, &serr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

const addCommentMutation = `mutation AddComment($subjectId: ID!, $body: String!) {
  addComment(input: {subjectId: $subjectId, body: $body}) {
    commentEdge { node { id body createdAt url author { login } } }
  }
}`

// AddPullRequestComment comments on the pull request with the given global
// node id. It returns nil when the response is absent or invalid.
func (s *Service) AddPullRequestComment(ctx context.Context, pullRequestID, body string) (*PullRequestComment, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.client.GraphQL(ctx, addCommentMutation, map[string]any{"subjectId": pullRequestID, "body": body}, tok)
	if err != nil || data == nil {
		return nil, err
	}
	node := dig(data, "addComment", "commentEdge", "node")
	if node == nil {
		return nil, nil
	}
	c, ok := check(ctx, s, "AddPullRequestComment", PullRequestCommentValidator(), node)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

const pullRequestFields = `id number title state url createdAt updatedAt author { login }`

const searchQuery = `query SearchPullRequests($query: String!) {
  search(query: $query, type: ISSUE, first: 100) {
    nodes { ... on PullRequest { ` + pullRequestFields + ` } }
  }
}`

// SearchPullRequests runs an issue search and returns the pull requests it
// matched. Invalid nodes are dropped.
func (s *Service) SearchPullRequests(ctx context.Context, query string) ([]PullRequest, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.client.GraphQL(ctx, searchQuery, map[string]any{"query": query}, tok)
	if err != nil {
		return nil, err
	}
	nodes, _ := dig(data, "search", "nodes").([]any)
	out := make([]PullRequest, 0, len(nodes))
	v := PullRequestValidator()
	for _, n := range nodes {
		if pr, ok := check(ctx, s, "SearchPullRequests", v, n); ok {
			out = append(out, pr)
		}
	}
	return out, nil
}

// CopilotPullRequestsForUser lists open pull requests authored by the coding
// agent in owner/repo that involve user.
func (s *Service) CopilotPullRequestsForUser(ctx context.Context, owner, repo, user string) ([]PullRequest, error) {
	return s.SearchPullRequests(ctx, fmt.Sprintf("repo:%s/%s is:open author:copilot-swe-agent[bot] involves:%s", owner, repo, user))
}

const nodeQuery = `query PullRequestByID($id: ID!) {
  node(id: $id) { ... on PullRequest { ` + pullRequestFields + ` } }
}`

// GetPullRequestByGlobalID resolves a pull request from its node id, or nil.
func (s *Service) GetPullRequestByGlobalID(ctx context.Context, globalID string) (*PullRequest, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.client.GraphQL(ctx, nodeQuery, map[string]any{"id": globalID}, tok)
	if err != nil {
		return nil, err
	}
	node := dig(data, "node")
	if node == nil {
		return nil, nil
	}
	pr, ok := check(ctx, s, "GetPullRequestByGlobalID", PullRequestValidator(), node)
	if !ok {
		return nil, nil
	}
	return &pr, nil
}

// dig walks nested records, returning nil at the first missing key.
func dig(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	return esc(segs...)
}
