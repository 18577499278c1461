// Package exclusion decides whether a document's content may be sent to the
// remote edit service.
package exclusion

import (
	"context"
	"net/url"
	"strings"

	"github.com/tidwall/match"
)

// Policy reports whether the document at uri is excluded from suggestions.
type Policy interface {
	IsExcluded(ctx context.Context, uri string) (bool, error)
}

// Null excludes nothing.
type Null struct{}

func (Null) IsExcluded(ctx context.Context, uri string) (bool, error) { return false, ctx.Err() }

// Patterns excludes documents whose path matches any glob. '*' matches any
// run of characters including '/', and '?' matches one character. Patterns
// are matched against the URI path, so "*.env" and "*/secrets/*" both work
// for file and untitled URIs alike.
type Patterns []string

func (p Patterns) IsExcluded(ctx context.Context, uri string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		target = u.Path
	}
	for _, pat := range p {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if match.Match(target, pat) {
			return true, nil
		}
	}
	return false, nil
}

// Func adapts a function to Policy.
type Func func(ctx context.Context, uri string) (bool, error)

func (f Func) IsExcluded(ctx context.Context, uri string) (bool, error) { return f(ctx, uri) }

var (
	_ Policy = Null{}
	_ Policy = Patterns(nil)
	_ Policy = Func(nil)
)
