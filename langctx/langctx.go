// Package langctx supplies extra language context, such as related
// definitions, to include alongside a completion prompt.
package langctx

import (
	"context"

	"github.com/ggoodman/nextedit-go/workspace"
)

// Snippet is a piece of context text attributed to a source URI.
type Snippet struct {
	URI        string  `json:"uri"`
	Text       string  `json:"text"`
	Importance float64 `json:"importance,omitempty"`
}

// Provider returns context snippets for a document.
type Provider interface {
	Snippets(ctx context.Context, doc workspace.Document) ([]Snippet, error)
}

// Null provides no context.
type Null struct{}

func (Null) Snippets(ctx context.Context, doc workspace.Document) ([]Snippet, error) {
	return nil, ctx.Err()
}

// Static returns the snippets registered for a language id, plus those
// registered under "*" for every language.
type Static map[string][]Snippet

func (s Static) Snippets(ctx context.Context, doc workspace.Document) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Snippet, 0, len(s[doc.LanguageID])+len(s["*"]))
	out = append(out, s[doc.LanguageID]...)
	out = append(out, s["*"]...)
	return out, nil
}

var (
	_ Provider = Null{}
	_ Provider = Static(nil)
)
