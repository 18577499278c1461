package ghapi

// User is the authenticated user.
type User struct {
	Login     string  `json:"login"`
	Name      *string `json:"name"`
	AvatarURL string  `json:"avatar_url"`
}

type Actor struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// JobInfo describes a coding agent job.
type JobInfo struct {
	JobID             string `json:"job_id"`
	SessionID         string `json:"session_id"`
	ProblemStatement  string `json:"problem_statement"`
	ContentFilterMode string `json:"content_filter_mode,omitempty"`
	Status            string `json:"status"`
	Result            string `json:"result,omitempty"`
	Actor             Actor  `json:"actor"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
	PullRequest       *struct {
		ID     int64 `json:"id"`
		Number int   `json:"number"`
	} `json:"pull_request,omitempty"`
	WorkflowRun *struct {
		ID int64 `json:"id"`
	} `json:"workflow_run,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	EventType        string   `json:"event_type,omitempty"`
	EventURL         string   `json:"event_url,omitempty"`
	EventIdentifiers []string `json:"event_identifiers,omitempty"`
}

// JobResponse is returned when a job was accepted.
type JobResponse struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
	Actor     Actor  `json:"actor"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// JobPayload is the body of PostJob.
type JobPayload struct {
	ProblemStatement string              `json:"problem_statement"`
	EventType        string              `json:"event_type"`
	PullRequest      *JobPullRequestSpec `json:"pull_request,omitempty"`
	RunName          string              `json:"run_name,omitempty"`
	CustomAgent      string              `json:"custom_agent,omitempty"`
}

type JobPullRequestSpec struct {
	Title           string `json:"title,omitempty"`
	BodyPlaceholder string `json:"body_placeholder,omitempty"`
	BodySuffix      string `json:"body_suffix,omitempty"`
	BaseRef         string `json:"base_ref,omitempty"`
	HeadRef         string `json:"head_ref,omitempty"`
}

type CustomAgent struct {
	Name        string   `json:"name"`
	RepoOwnerID int64    `json:"repo_owner_id"`
	RepoOwner   string   `json:"repo_owner"`
	RepoID      int64    `json:"repo_id"`
	RepoName    string   `json:"repo_name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
	Version     string   `json:"version"`
}

type customAgentsResponse struct {
	Agents []CustomAgent `json:"agents"`
}

type PullRequestFile struct {
	Filename         string `json:"filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Changes          int    `json:"changes"`
	Patch            string `json:"patch,omitempty"`
	PreviousFilename string `json:"previous_filename,omitempty"`
}

// SessionInfo describes an agent session.
type SessionInfo struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	UserID           int64   `json:"user_id"`
	AgentID          int64   `json:"agent_id"`
	Logs             string  `json:"logs"`
	LogsBlobID       string  `json:"logs_blob_id"`
	State            string  `json:"state"`
	OwnerID          int64   `json:"owner_id"`
	RepoID           int64   `json:"repo_id"`
	ResourceType     string  `json:"resource_type"`
	ResourceID       int64   `json:"resource_id"`
	LastUpdatedAt    string  `json:"last_updated_at"`
	CreatedAt        string  `json:"created_at"`
	CompletedAt      string  `json:"completed_at"`
	EventType        string  `json:"event_type"`
	WorkflowRunID    int64   `json:"workflow_run_id"`
	PremiumRequests  float64 `json:"premium_requests"`
	Error            *string `json:"error"`
	ResourceGlobalID string  `json:"resource_global_id"`
}

type sessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type fileContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type closePullRequestResponse struct {
	State string `json:"state"`
}

// RepositoryItem is an entry of a directory listing.
type RepositoryItem struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Type    string `json:"type"`
	HTMLURL string `json:"html_url"`
}

// PullRequest is the subset of a pull request returned by GraphQL lookups.
type PullRequest struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	State     string `json:"state"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Author    *Login `json:"author"`
}

type Login struct {
	Login string `json:"login"`
}

// PullRequestComment is a comment created by AddPullRequestComment.
type PullRequestComment struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
	URL       string `json:"url"`
	Author    *Login `json:"author"`
}
