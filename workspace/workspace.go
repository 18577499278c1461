// Package workspace describes the host's view of open documents and workspace
// folders, and provides Memory, an in-process implementation hosts can drive
// directly.
package workspace

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnknownDocument is returned when an operation names a document that is
// not open.
var ErrUnknownDocument = errors.New("unknown document")

// DocumentID identifies an open document. It is the document's URI.
type DocumentID string

// Position is a zero-based line and character (rune) offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open character offset range [Start, EndExclusive).
type Range struct {
	Start        int `json:"start"`
	EndExclusive int `json:"endExclusive"`
}

func (r Range) Len() int { return r.EndExclusive - r.Start }

// Document is an immutable snapshot of an open document.
type Document struct {
	ID         DocumentID
	LanguageID string
	Version    int
	Text       string
	Cursor     Position
	// Dirty is set when the host changed the text since it was opened or
	// last reloaded from disk.
	Dirty bool
}

// URI returns the document's URI.
func (d Document) URI() string { return string(d.ID) }

// Path returns the local filesystem path for file URIs.
func (d Document) Path() (string, bool) {
	return pathFromURI(string(d.ID))
}

// OffsetAt converts p to a rune offset into d.Text, clamping to the text.
func (d Document) OffsetAt(p Position) int { return OffsetAt(d.Text, p) }

// CursorOffset is OffsetAt(d.Cursor).
func (d Document) CursorOffset() int { return OffsetAt(d.Text, d.Cursor) }

// OffsetAt converts p to a rune offset into text. Lines past the end clamp to
// the end of text; characters past the end of a line clamp to the line end.
func OffsetAt(text string, p Position) int {
	if p.Line < 0 {
		return 0
	}
	offset := 0
	line := 0
	rest := text
	for line < p.Line {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			return utf8.RuneCountInString(text)
		}
		offset += utf8.RuneCountInString(rest[:i+1])
		rest = rest[i+1:]
		line++
	}
	lineText := rest
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		lineText = rest[:i]
	}
	n := utf8.RuneCountInString(lineText)
	c := p.Character
	if c < 0 {
		c = 0
	}
	if c > n {
		c = n
	}
	return offset + c
}

// PositionAt is the inverse of OffsetAt.
func PositionAt(text string, offset int) Position {
	var p Position
	i := 0
	for _, r := range text {
		if i >= offset {
			break
		}
		if r == '\n' {
			p.Line++
			p.Character = 0
		} else {
			p.Character++
		}
		i++
	}
	return p
}

// EventKind enumerates workspace events.
type EventKind int

const (
	EventOpen EventKind = iota
	EventChange
	EventClose
	EventFocus
	EventFoldersChanged
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventChange:
		return "change"
	case EventClose:
		return "close"
	case EventFocus:
		return "focus"
	case EventFoldersChanged:
		return "foldersChanged"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers. Document is set for document events;
// Added and Removed are set for folder events.
type Event struct {
	Kind     EventKind
	Document Document
	Added    []string
	Removed  []string
}

// View is the read side of the workspace consumed by the suggestion engine.
type View interface {
	// Document returns a snapshot of the open document id.
	Document(id DocumentID) (Document, bool)
	// Subscribe registers fn for every subsequent event and returns a
	// function that removes it. fn must not block.
	Subscribe(fn func(Event)) (cancel func())
}

func pathFromURI(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// FileURI builds a file URI for an absolute path.
func FileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
