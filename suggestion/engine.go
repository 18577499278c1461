package suggestion

import (
	"context"
	"time"

	"github.com/ggoodman/nextedit-go/telemetry"
	"github.com/ggoodman/nextedit-go/workspace"
)

// Edit replaces Range of the document text with NewText.
type Edit struct {
	Range   workspace.Range `json:"range"`
	NewText string          `json:"newText"`
}

// Request carries everything an engine needs to compute one suggestion.
type Request struct {
	Document      workspace.Document
	CorrelationID string
	IssuedAt      time.Time
}

// Result is what an engine produced for one request. Internal is owned by
// the engine and handed back unchanged on every lifecycle call.
type Result struct {
	Edit *Edit
	// Status explains a result without an edit, e.g. "contentExcluded". It
	// defaults to "noEdit".
	Status   string
	Internal any
}

// EditEngine computes edits and observes what happened to them.
//
// Lifecycle methods are notifications. The provider never calls more than
// one of HandleAcceptance, HandleRejection or HandleIgnored for a result.
type EditEngine interface {
	ID() string
	GetNextEdit(ctx context.Context, docID workspace.DocumentID, req Request, hook telemetry.Hook) (Result, error)
	HandleShown(res Result)
	HandleAcceptance(docID workspace.DocumentID, res Result)
	HandleRejection(docID workspace.DocumentID, res Result)
	// HandleIgnored reports that res was dropped. superseding is the result
	// that replaced it, if any.
	HandleIgnored(docID workspace.DocumentID, res Result, superseding *Result)
}
