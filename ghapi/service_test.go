package ghapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ggoodman/nextedit-go/auth"
	"github.com/ggoodman/nextedit-go/fetch/fetchtest"
)

func newService(f *fetchtest.Fetcher) *Service {
	return NewService(New(f), auth.Static("tok"))
}

const sessionJSON = `{
	"id": "s1", "name": "fix bug", "user_id": 1, "agent_id": 2, "logs": "", "logs_blob_id": "b",
	"state": "in_progress", "owner_id": 3, "repo_id": 4, "resource_type": "pull", "resource_id": 5,
	"last_updated_at": "t", "created_at": "t", "completed_at": "", "event_type": "e",
	"workflow_run_id": 6, "premium_requests": 1.5, "error": null, "resource_global_id": "PR_1"
}`

const jobJSON = `{
	"job_id": "j1", "session_id": "s1", "problem_statement": "do it", "status": "running",
	"actor": {"id": 7, "login": "octocat"}, "created_at": "t", "updated_at": "t",
	"pull_request": {"id": 10, "number": 42}
}`

func TestGetFileContent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"base64", `{"content":"aGVsbG8=","encoding":"base64"}`, "hello"},
		{"wrapped base64", `{"content":"aGVs\nbG8=\n","encoding":"base64"}`, "hello"},
		{"other encoding", `{"content":"hello","encoding":"utf-8"}`, ""},
		{"invalid", `{"content":1,"encoding":"base64"}`, ""},
		{"undecodable", `{"content":"!!!","encoding":"base64"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fetchtest.New().JSON("/repos/o/r/contents/dir/a.txt", 200, tt.body)
			got, err := newService(f).GetFileContent(context.Background(), "o", "r", "main", "dir/a.txt")
			if err != nil {
				t.Fatalf("GetFileContent() failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("GetFileContent() = %q, want %q", got, tt.want)
			}
			if ref := f.Requests()[0].URL.Query().Get("ref"); ref != "main" {
				t.Fatalf("ref = %q", ref)
			}
		})
	}
}

func TestGetFileContentAbsent(t *testing.T) {
	got, err := newService(fetchtest.New()).GetFileContent(context.Background(), "o", "r", "main", "missing.txt")
	if err != nil || got != "" {
		t.Fatalf("GetFileContent() = %q, %v", got, err)
	}
}

func TestCurrentUser(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f := fetchtest.New().JSON("/user", 200, `{"login":"octocat","name":null,"avatar_url":"https://a","extra":true}`)
		u, err := newService(f).CurrentUser(context.Background())
		if err != nil || u == nil {
			t.Fatalf("CurrentUser() = %v, %v", u, err)
		}
		if u.Login != "octocat" || u.Name != nil {
			t.Fatalf("unexpected user: %+v", u)
		}
	})
	t.Run("invalid", func(t *testing.T) {
		f := fetchtest.New().JSON("/user", 200, `{"login":"octocat","name":5,"avatar_url":"https://a"}`)
		u, err := newService(f).CurrentUser(context.Background())
		if err != nil || u != nil {
			t.Fatalf("CurrentUser() = %v, %v; want nil, nil", u, err)
		}
	})
	t.Run("absent", func(t *testing.T) {
		u, err := newService(fetchtest.New()).CurrentUser(context.Background())
		if err != nil || u != nil {
			t.Fatalf("CurrentUser() = %v, %v; want nil, nil", u, err)
		}
	})
}

func TestTokenErrorsPropagate(t *testing.T) {
	f := fetchtest.New().JSON("/user", 200, `{}`)
	_, err := NewService(New(f), auth.Static("")).CurrentUser(context.Background())
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(f.Requests()) != 0 {
		t.Fatal("no request should be sent without a token")
	}
}

func TestGetJobByJobID(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		f := fetchtest.New().JSON("/agents/swe/v1/jobs/o/r/j1", 200, jobJSON)
		job, err := newService(f).GetJobByJobID(context.Background(), "o", "r", "j1")
		if err != nil {
			t.Fatalf("GetJobByJobID() failed: %v", err)
		}
		if job.PullRequest == nil || job.PullRequest.Number != 42 || job.Actor.Login != "octocat" {
			t.Fatalf("unexpected job: %+v", job)
		}
		if f.Requests()[0].URL.Host != "api.githubcopilot.com" {
			t.Fatalf("expected agents host, got %q", f.Requests()[0].URL.Host)
		}
	})
	t.Run("absent", func(t *testing.T) {
		_, err := newService(fetchtest.New()).GetJobByJobID(context.Background(), "o", "r", "j1")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("expected *NotFoundError, got %v", err)
		}
	})
	t.Run("invalid", func(t *testing.T) {
		f := fetchtest.New().JSON("/agents/swe/v1/jobs/o/r/session/s1", 200, `{"job_id":"j1"}`)
		_, err := newService(f).GetJobBySessionID(context.Background(), "o", "r", "s1")
		if !errors.Is(err, ErrInvalidResponse) {
			t.Fatalf("expected ErrInvalidResponse, got %v", err)
		}
	})
}

func TestPostJob(t *testing.T) {
	payload := JobPayload{ProblemStatement: "fix", EventType: "cli"}
	t.Run("accepted", func(t *testing.T) {
		f := fetchtest.New().JSON("POST /agents/swe/v1/jobs/o/r", 201,
			`{"job_id":"j1","session_id":"s1","actor":{"id":1,"login":"a"},"created_at":"t","updated_at":"t"}`)
		resp, err := newService(f).PostJob(context.Background(), "o", "r", "v1", payload)
		if err != nil || resp.JobID != "j1" {
			t.Fatalf("PostJob() = %+v, %v", resp, err)
		}
		var sent map[string]any
		if err := json.Unmarshal(f.Requests()[0].Body, &sent); err != nil || sent["problem_statement"] != "fix" {
			t.Fatalf("unexpected body %s", f.Requests()[0].Body)
		}
	})
	t.Run("status", func(t *testing.T) {
		f := fetchtest.New().JSON("POST /agents/swe/v1/jobs/o/r", 403, `{"message":"nope"}`)
		_, err := newService(f).PostJob(context.Background(), "o", "r", "v1", payload)
		var er *ErrorResponse
		if !errors.As(err, &er) || er.Status != 403 {
			t.Fatalf("expected *ErrorResponse{403}, got %v", err)
		}
	})
	t.Run("status body", func(t *testing.T) {
		f := fetchtest.New().JSON("POST /agents/swe/v1/jobs/o/r", 200, `{"status":409}`)
		_, err := newService(f).PostJob(context.Background(), "o", "r", "v1", payload)
		var er *ErrorResponse
		if !errors.As(err, &er) || er.Status != 409 {
			t.Fatalf("expected *ErrorResponse{409}, got %v", err)
		}
	})
	t.Run("invalid", func(t *testing.T) {
		f := fetchtest.New().JSON("POST /agents/swe/v1/jobs/o/r", 200, `{"job_id":1}`)
		_, err := newService(f).PostJob(context.Background(), "o", "r", "v1", payload)
		if !errors.Is(err, ErrInvalidResponse) {
			t.Fatalf("expected ErrInvalidResponse, got %v", err)
		}
	})
}

func TestGetCustomAgents(t *testing.T) {
	f := fetchtest.New().JSON("/agents/swe/custom-agents/o/r", 200, `{"agents":[{
		"name":"reviewer","repo_owner_id":1,"repo_owner":"o","repo_id":2,"repo_name":"r",
		"display_name":"Reviewer","description":"d","tools":["read"],"version":"1"}]}`)
	agents, err := newService(f).GetCustomAgents(context.Background(), "o", "r")
	if err != nil || len(agents) != 1 || agents[0].Tools[0] != "read" {
		t.Fatalf("GetCustomAgents() = %+v, %v", agents, err)
	}
	if f.Requests()[0].URL.Query().Get("exclude_invalid_config") != "true" {
		t.Fatal("expected exclude_invalid_config=true")
	}

	f = fetchtest.New().JSON("/agents/swe/custom-agents/o/r", 200, `{"agents":[{"name":"x"}]}`)
	agents, err = newService(f).GetCustomAgents(context.Background(), "o", "r")
	if err != nil || agents == nil || len(agents) != 0 {
		t.Fatalf("GetCustomAgents() = %+v, %v; want empty", agents, err)
	}
}

func TestGetPullRequestFiles(t *testing.T) {
	f := fetchtest.New().JSON("/repos/o/r/pulls/3/files", 200,
		`[{"filename":"a.go","status":"modified","additions":1,"deletions":0,"changes":1}]`)
	files, err := newService(f).GetPullRequestFiles(context.Background(), "o", "r", 3)
	if err != nil || len(files) != 1 || files[0].Filename != "a.go" {
		t.Fatalf("GetPullRequestFiles() = %+v, %v", files, err)
	}

	f = fetchtest.New().JSON("/repos/o/r/pulls/3/files", 200,
		`[{"filename":"a.go","status":"exploded","additions":1,"deletions":0,"changes":1}]`)
	files, err = newService(f).GetPullRequestFiles(context.Background(), "o", "r", 3)
	if err != nil || files == nil || len(files) != 0 {
		t.Fatalf("GetPullRequestFiles() = %+v, %v; want empty", files, err)
	}
}

func TestClosePullRequest(t *testing.T) {
	f := fetchtest.New().JSON("PATCH /repos/o/r/pulls/3", 200, `{"state":"closed"}`)
	ok, err := newService(f).ClosePullRequest(context.Background(), "o", "r", 3)
	if err != nil || !ok {
		t.Fatalf("ClosePullRequest() = %v, %v", ok, err)
	}
	if string(f.Requests()[0].Body) != `{"state":"closed"}` {
		t.Fatalf("unexpected body %s", f.Requests()[0].Body)
	}

	f = fetchtest.New().JSON("PATCH /repos/o/r/pulls/3", 200, `{"state":"open"}`)
	if ok, _ := newService(f).ClosePullRequest(context.Background(), "o", "r", 3); ok {
		t.Fatal("expected false when the pull request stayed open")
	}
}

func TestSessions(t *testing.T) {
	f := fetchtest.New().
		JSON("/agents/sessions/s1", 200, sessionJSON).
		JSON("/agents/sessions/resource/pull/PR_1", 200, `{"sessions":[`+sessionJSON+`]}`).
		JSON("/agents/sessions", 200, `{"sessions":[`+sessionJSON+`,{"id":"broken"}]}`)
	svc := newService(f)
	ctx := context.Background()

	info, err := svc.GetSessionInfo(ctx, "s1")
	if err != nil || info.State != "in_progress" || info.Error != nil || info.PremiumRequests != 1.5 {
		t.Fatalf("GetSessionInfo() = %+v, %v", info, err)
	}
	if _, err := svc.GetSessionInfo(ctx, "nope"); err == nil {
		t.Fatal("expected an error for a missing session")
	}

	byPR, err := svc.GetSessionsForPullRequest(ctx, "PR_1")
	if err != nil || len(byPR) != 1 {
		t.Fatalf("GetSessionsForPullRequest() = %+v, %v", byPR, err)
	}

	open, err := svc.GetAllOpenSessions(ctx, "o/r")
	if err != nil {
		t.Fatalf("GetAllOpenSessions() failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != "s1" {
		t.Fatalf("expected the invalid session to be dropped, got %+v", open)
	}
	var listing fetchtest.Request
	for _, r := range f.Requests() {
		if r.URL.Path == "/agents/sessions" {
			listing = r
		}
	}
	if listing.URL.Query().Get("nwo") != "o/r" || listing.URL.Query().Get("resource_state") != "draft,open" {
		t.Fatalf("unexpected listing query %q", listing.URL.RawQuery)
	}
}

func TestSessionInfoKeepsLargeIDs(t *testing.T) {
	body := strings.Replace(sessionJSON, `"workflow_run_id": 6`, `"workflow_run_id": 9007199254740993`, 1)
	f := fetchtest.New().JSON("/agents/sessions/s1", 200, body)
	info, err := newService(f).GetSessionInfo(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSessionInfo() failed: %v", err)
	}
	if info.WorkflowRunID != 9007199254740993 {
		t.Fatalf("WorkflowRunID = %d", info.WorkflowRunID)
	}
}

func TestGetSessionLogs(t *testing.T) {
	f := fetchtest.New().JSON("/agents/sessions/s1/logs", 200, "step 1\nstep 2\n")
	logs, err := newService(f).GetSessionLogs(context.Background(), "s1")
	if err != nil || logs != "step 1\nstep 2\n" {
		t.Fatalf("GetSessionLogs() = %q, %v", logs, err)
	}
	logs, err = newService(fetchtest.New()).GetSessionLogs(context.Background(), "s2")
	if err != nil || logs != "" {
		t.Fatalf("GetSessionLogs() = %q, %v", logs, err)
	}
}

func TestGetRepositoryItems(t *testing.T) {
	f := fetchtest.New().JSON("/repos/o/r/contents/.github/agents", 200,
		`[{"name":"a.md","path":".github/agents/a.md","type":"file","html_url":"https://x"},
		  {"name":"sub","path":".github/agents/sub","type":"symlink","html_url":"https://y"}]`)
	items, err := newService(f).GetRepositoryItems(context.Background(), "o", "r", ".github/agents")
	if err != nil || len(items) != 0 {
		t.Fatalf("GetRepositoryItems() = %+v, %v; want empty on invalid type", items, err)
	}
}

func TestIsAvailable(t *testing.T) {
	f := fetchtest.New().JSON("/repos/o/ok", 200, `{"id":1}`).JSON("/repos/o/private", 403, `{}`)
	svc := newService(f)
	for repo, want := range map[string]bool{"ok": true, "private": false, "missing": false} {
		got, err := svc.IsAvailable(context.Background(), "o", repo)
		if err != nil || got != want {
			t.Fatalf("IsAvailable(%q) = %v, %v; want %v", repo, got, err, want)
		}
	}
}

func TestSearchPullRequests(t *testing.T) {
	f := fetchtest.New().JSON("POST /graphql", 200, `{"data":{"search":{"nodes":[
		{"id":"PR_1","number":1,"title":"t","state":"OPEN","url":"u","createdAt":"c","updatedAt":"u","author":{"login":"bot"}},
		{"id":"PR_2","number":"two"},
		{}
	]}}}`)
	prs, err := newService(f).CopilotPullRequestsForUser(context.Background(), "o", "r", "me")
	if err != nil {
		t.Fatalf("CopilotPullRequestsForUser() failed: %v", err)
	}
	if len(prs) != 1 || prs[0].Author == nil || prs[0].Author.Login != "bot" {
		t.Fatalf("unexpected results: %+v", prs)
	}
	var body struct {
		Variables map[string]string `json:"variables"`
	}
	if err := json.Unmarshal(f.Requests()[0].Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if want := "repo:o/r is:open author:copilot-swe-agent[bot] involves:me"; body.Variables["query"] != want {
		t.Fatalf("query = %q", body.Variables["query"])
	}
}

func TestAddPullRequestComment(t *testing.T) {
	f := fetchtest.New().JSON("POST /graphql", 200, `{"data":{"addComment":{"commentEdge":{"node":
		{"id":"C_1","body":"hi","createdAt":"c","url":"u","author":null}}}}}`)
	c, err := newService(f).AddPullRequestComment(context.Background(), "PR_1", "hi")
	if err != nil || c == nil || c.ID != "C_1" || c.Author != nil {
		t.Fatalf("AddPullRequestComment() = %+v, %v", c, err)
	}

	f = fetchtest.New().JSON("POST /graphql", 200, `{"errors":[{"message":"forbidden"}]}`)
	_, err = newService(f).AddPullRequestComment(context.Background(), "PR_1", "hi")
	var gerr *GraphQLError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GraphQLError, got %v", err)
	}
}

func TestGetPullRequestByGlobalID(t *testing.T) {
	f := fetchtest.New().JSON("POST /graphql", 200, `{"data":{"node":null}}`)
	pr, err := newService(f).GetPullRequestByGlobalID(context.Background(), "PR_x")
	if err != nil || pr != nil {
		t.Fatalf("GetPullRequestByGlobalID() = %+v, %v", pr, err)
	}
}
