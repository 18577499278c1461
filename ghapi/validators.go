package ghapi

import "github.com/ggoodman/nextedit-go/validate"

var (
	str     = validate.String
	num     = validate.Number
	integer = validate.Integer
)

func stringOrNull() validate.Validator[any] { return validate.Union(str(), validate.Null()) }

func actorShape() validate.Validator[map[string]any] {
	return validate.Obj(validate.Shape{
		"id":    validate.Required(integer()),
		"login": validate.Required(str()),
	})
}

func UserValidator() validate.Validator[User] {
	return validate.Into[User](validate.Obj(validate.Shape{
		"login":      validate.Required(str()),
		"name":       validate.Required(stringOrNull()),
		"avatar_url": validate.Required(str()),
	}))
}

func jobInfoShape() validate.Validator[map[string]any] {
	return validate.Obj(validate.Shape{
		"job_id":              validate.Required(str()),
		"session_id":          validate.Required(str()),
		"problem_statement":   validate.Required(str()),
		"content_filter_mode": validate.Optional(str()),
		"status":              validate.Required(str()),
		"result":              validate.Optional(str()),
		"actor":               validate.Required(actorShape()),
		"created_at":          validate.Required(str()),
		"updated_at":          validate.Required(str()),
		"pull_request": validate.Optional(validate.Obj(validate.Shape{
			"id":     validate.Required(integer()),
			"number": validate.Required(integer()),
		})),
		"workflow_run": validate.Optional(validate.Obj(validate.Shape{
			"id": validate.Required(integer()),
		})),
		"error": validate.Optional(validate.Obj(validate.Shape{
			"message": validate.Required(str()),
		})),
		"event_type":        validate.Optional(str()),
		"event_url":         validate.Optional(str()),
		"event_identifiers": validate.Optional(validate.Array(str())),
	})
}

func JobInfoValidator() validate.Validator[JobInfo] { return validate.Into[JobInfo](jobInfoShape()) }

func JobResponseValidator() validate.Validator[JobResponse] {
	return validate.Into[JobResponse](validate.Obj(validate.Shape{
		"job_id":     validate.Required(str()),
		"session_id": validate.Required(str()),
		"actor":      validate.Required(actorShape()),
		"created_at": validate.Required(str()),
		"updated_at": validate.Required(str()),
	}))
}

func ErrorResponseValidator() validate.Validator[ErrorResponse] {
	return validate.Into[ErrorResponse](validate.Obj(validate.Shape{
		"status": validate.Required(integer()),
	}))
}

func customAgentShape() validate.Validator[map[string]any] {
	return validate.Obj(validate.Shape{
		"name":          validate.Required(str()),
		"repo_owner_id": validate.Required(integer()),
		"repo_owner":    validate.Required(str()),
		"repo_id":       validate.Required(integer()),
		"repo_name":     validate.Required(str()),
		"display_name":  validate.Required(str()),
		"description":   validate.Required(str()),
		"tools":         validate.Required(validate.Array(str())),
		"version":       validate.Required(str()),
	})
}

func CustomAgentValidator() validate.Validator[CustomAgent] {
	return validate.Into[CustomAgent](customAgentShape())
}

func customAgentsValidator() validate.Validator[customAgentsResponse] {
	return validate.Into[customAgentsResponse](validate.Obj(validate.Shape{
		"agents": validate.Required(validate.Array(customAgentShape())),
	}))
}

func PullRequestFileValidator() validate.Validator[PullRequestFile] {
	return validate.Into[PullRequestFile](validate.Obj(validate.Shape{
		"filename":          validate.Required(str()),
		"status":            validate.Required(validate.Enum("added", "removed", "modified", "renamed", "copied", "changed", "unchanged")),
		"additions":         validate.Required(integer()),
		"deletions":         validate.Required(integer()),
		"changes":           validate.Required(integer()),
		"patch":             validate.Optional(str()),
		"previous_filename": validate.Optional(str()),
	}))
}

func sessionInfoShape() validate.Validator[map[string]any] {
	return validate.Obj(validate.Shape{
		"id":                 validate.Required(str()),
		"name":               validate.Required(str()),
		"user_id":            validate.Required(integer()),
		"agent_id":           validate.Required(integer()),
		"logs":               validate.Required(str()),
		"logs_blob_id":       validate.Required(str()),
		"state":              validate.Required(validate.Enum("completed", "in_progress", "failed", "queued")),
		"owner_id":           validate.Required(integer()),
		"repo_id":            validate.Required(integer()),
		"resource_type":      validate.Required(str()),
		"resource_id":        validate.Required(integer()),
		"last_updated_at":    validate.Required(str()),
		"created_at":         validate.Required(str()),
		"completed_at":       validate.Required(str()),
		"event_type":         validate.Required(str()),
		"workflow_run_id":    validate.Required(integer()),
		"premium_requests":   validate.Required(num()),
		"error":              validate.Required(stringOrNull()),
		"resource_global_id": validate.Required(str()),
	})
}

func SessionInfoValidator() validate.Validator[SessionInfo] {
	return validate.Into[SessionInfo](sessionInfoShape())
}

func sessionsValidator() validate.Validator[sessionsResponse] {
	return validate.Into[sessionsResponse](validate.Obj(validate.Shape{
		"sessions": validate.Required(validate.Array(sessionInfoShape())),
	}))
}

func fileContentValidator() validate.Validator[fileContent] {
	return validate.Into[fileContent](validate.Obj(validate.Shape{
		"content":  validate.Required(str()),
		"encoding": validate.Required(str()),
	}))
}

func closePullRequestValidator() validate.Validator[closePullRequestResponse] {
	return validate.Into[closePullRequestResponse](validate.Obj(validate.Shape{
		"state": validate.Required(str()),
	}))
}

func repositoryItemShape() validate.Validator[map[string]any] {
	return validate.Obj(validate.Shape{
		"name":     validate.Required(str()),
		"path":     validate.Required(str()),
		"type":     validate.Required(validate.Enum("file", "dir")),
		"html_url": validate.Required(str()),
	})
}

func RepositoryItemValidator() validate.Validator[RepositoryItem] {
	return validate.Into[RepositoryItem](repositoryItemShape())
}

func loginShape() validate.Validator[map[string]any] {
	return validate.Obj(validate.Shape{"login": validate.Required(str())})
}

func pullRequestShape() validate.Validator[map[string]any] {
	return validate.Obj(validate.Shape{
		"id":        validate.Required(str()),
		"number":    validate.Required(integer()),
		"title":     validate.Required(str()),
		"state":     validate.Required(str()),
		"url":       validate.Required(str()),
		"createdAt": validate.Required(str()),
		"updatedAt": validate.Required(str()),
		"author":    validate.Optional(validate.Nullable(loginShape())),
	})
}

func PullRequestValidator() validate.Validator[PullRequest] {
	return validate.Into[PullRequest](pullRequestShape())
}

func PullRequestCommentValidator() validate.Validator[PullRequestComment] {
	return validate.Into[PullRequestComment](validate.Obj(validate.Shape{
		"id":        validate.Required(str()),
		"body":      validate.Required(str()),
		"createdAt": validate.Required(str()),
		"url":       validate.Required(str()),
		"author":    validate.Optional(validate.Nullable(loginShape())),
	}))
}
