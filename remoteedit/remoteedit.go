// Package remoteedit is the default edit engine. It sends the text around
// the cursor to a remote completions endpoint and turns the first non-blank
// choice into an insertion at the cursor.
package remoteedit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/ggoodman/nextedit-go/auth"
	"github.com/ggoodman/nextedit-go/exclusion"
	"github.com/ggoodman/nextedit-go/ghapi"
	"github.com/ggoodman/nextedit-go/langctx"
	"github.com/ggoodman/nextedit-go/suggestion"
	"github.com/ggoodman/nextedit-go/telemetry"
	"github.com/ggoodman/nextedit-go/validate"
	"github.com/ggoodman/nextedit-go/workspace"
)

const (
	// ID is reported as the provider id.
	ID = "remoteedit"

	StatusContentExcluded    = "contentExcluded"
	StatusPreviouslyRejected = "previouslyRejected"
	StatusEmptyCompletion    = "emptyCompletion"

	DefaultCompletionsURL = "https://copilot-proxy.githubusercontent.com"
	DefaultModel          = "copilot-nes"
)

// Config controls the completions request.
type Config struct {
	CompletionsURL string
	Model          string
	MaxTokens      int
	// PrefixChars and SuffixChars bound how much text around the cursor is
	// sent, in runes.
	PrefixChars int
	SuffixChars int
}

func (c Config) withDefaults() Config {
	if c.CompletionsURL == "" {
		c.CompletionsURL = DefaultCompletionsURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if c.PrefixChars <= 0 {
		c.PrefixChars = 4000
	}
	if c.SuffixChars <= 0 {
		c.SuffixChars = 1000
	}
	return c
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithExclusion(p exclusion.Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.exclusion = p
		}
	}
}

func WithLanguageContext(p langctx.Provider) Option {
	return func(e *Engine) {
		if p != nil {
			e.langctx = p
		}
	}
}

// WithWorkspace releases per-document state when documents close.
func WithWorkspace(ws workspace.View) Option {
	return func(e *Engine) { e.ws = ws }
}

// Engine implements suggestion.EditEngine.
type Engine struct {
	client    *ghapi.Client
	tokens    auth.TokenProvider
	exclusion exclusion.Policy
	langctx   langctx.Provider
	ws        workspace.View
	cfg       Config
	log       *slog.Logger

	mu       sync.Mutex
	rejected map[workspace.DocumentID]map[string]struct{}
	cancel   func()
}

func New(client *ghapi.Client, tokens auth.TokenProvider, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		tokens:    tokens,
		exclusion: exclusion.Null{},
		langctx:   langctx.Null{},
		cfg:       cfg.withDefaults(),
		log:       slog.New(slog.DiscardHandler),
		rejected:  map[workspace.DocumentID]map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.ws != nil {
		e.cancel = e.ws.Subscribe(e.onWorkspaceEvent)
	}
	return e
}

// Close stops observing the workspace. Calling it again is a no-op.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

func (e *Engine) ID() string { return ID }

// completion is carried in suggestion.Result.Internal.
type completion struct {
	ID  string
	key string
}

type completionsResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func completionsValidator() validate.Validator[completionsResponse] {
	return validate.Into[completionsResponse](validate.Obj(validate.Shape{
		"id": validate.Optional(validate.String()),
		"choices": validate.Required(validate.Array(validate.Obj(validate.Shape{
			"text":          validate.Required(validate.String()),
			"finish_reason": validate.Optional(validate.Nullable(validate.String())),
		}))),
	}))
}

type promptSnippet struct {
	URI        string  `json:"uri"`
	Text       string  `json:"text"`
	Importance float64 `json:"importance"`
}

type completionsRequest struct {
	Prompt      string          `json:"prompt"`
	Suffix      string          `json:"suffix"`
	Language    string          `json:"language"`
	Snippets    []promptSnippet `json:"snippets,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	N           int             `json:"n"`
	Stream      bool            `json:"stream"`
}

func (e *Engine) GetNextEdit(ctx context.Context, docID workspace.DocumentID, req suggestion.Request, hook telemetry.Hook) (suggestion.Result, error) {
	doc := req.Document
	excluded, err := e.exclusion.IsExcluded(ctx, doc.URI())
	if err != nil {
		return suggestion.Result{}, fmt.Errorf("check content exclusion: %w", err)
	}
	if excluded {
		e.log.DebugContext(ctx, "remoteedit.excluded")
		return suggestion.Result{Status: StatusContentExcluded}, nil
	}
	if err := ctx.Err(); err != nil {
		return suggestion.Result{}, err
	}

	token, err := e.tokens.Token(ctx)
	if err != nil {
		return suggestion.Result{}, fmt.Errorf("obtain token: %w", err)
	}

	snippets, err := e.langctx.Snippets(ctx, doc)
	if err != nil {
		e.log.WarnContext(ctx, "remoteedit.langctx.fail", slog.String("err", err.Error()))
		snippets = nil
	}

	offset := doc.CursorOffset()
	prefix, suffix := splitAround(doc.Text, offset, e.cfg.PrefixChars, e.cfg.SuffixChars)
	body := completionsRequest{
		Prompt:    prefix,
		Suffix:    suffix,
		Language:  doc.LanguageID,
		MaxTokens: e.cfg.MaxTokens,
		N:         1,
	}
	for _, s := range snippets {
		body.Snippets = append(body.Snippets, promptSnippet{URI: s.URI, Text: s.Text, Importance: s.Importance})
	}
	hook.SetMeasurement("snippetCount", float64(len(body.Snippets)))
	hook.SetMeasurement("promptChars", float64(len([]rune(prefix))))

	raw, err := e.client.Request(ctx, ghapi.Request{
		BaseURL: e.cfg.CompletionsURL,
		Route:   "v1/engines/" + url.PathEscape(e.cfg.Model) + "/completions",
		Method:  http.MethodPost,
		Token:   token,
		Body:    body,
	})
	if err != nil {
		return suggestion.Result{}, err
	}
	if raw == nil {
		return suggestion.Result{Status: StatusEmptyCompletion}, nil
	}
	res := completionsValidator().Validate(raw)
	if !res.OK() {
		e.log.ErrorContext(ctx, "remoteedit.response.invalid", slog.String("err", res.Err.Error()))
		return suggestion.Result{}, fmt.Errorf("%w: completions: %v", ghapi.ErrInvalidResponse, res.Err)
	}
	if res.Content.ID != "" {
		hook.SetProperty("completionId", res.Content.ID)
	}
	if len(res.Content.Choices) == 0 || strings.TrimSpace(res.Content.Choices[0].Text) == "" {
		return suggestion.Result{Status: StatusEmptyCompletion}, nil
	}

	edit := &suggestion.Edit{
		Range:   workspace.Range{Start: offset, EndExclusive: offset},
		NewText: res.Content.Choices[0].Text,
	}
	key := editKey(edit)
	if e.wasRejected(docID, key) {
		e.log.DebugContext(ctx, "remoteedit.suppressed")
		return suggestion.Result{Status: StatusPreviouslyRejected}, nil
	}
	return suggestion.Result{Edit: edit, Internal: &completion{ID: res.Content.ID, key: key}}, nil
}

func (e *Engine) HandleShown(res suggestion.Result) {
	if c, ok := res.Internal.(*completion); ok {
		e.log.Debug("remoteedit.shown", slog.String("completion", c.ID))
	}
}

func (e *Engine) HandleAcceptance(docID workspace.DocumentID, res suggestion.Result) {
	c, ok := res.Internal.(*completion)
	if !ok {
		return
	}
	e.mu.Lock()
	delete(e.rejected[docID], c.key)
	e.mu.Unlock()
}

// HandleRejection remembers the edit so the same suggestion is not offered
// again for this document.
func (e *Engine) HandleRejection(docID workspace.DocumentID, res suggestion.Result) {
	c, ok := res.Internal.(*completion)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.rejected[docID]
	if !ok {
		set = map[string]struct{}{}
		e.rejected[docID] = set
	}
	set[c.key] = struct{}{}
}

func (e *Engine) HandleIgnored(docID workspace.DocumentID, res suggestion.Result, superseding *suggestion.Result) {
	if c, ok := res.Internal.(*completion); ok {
		e.log.Debug("remoteedit.ignored", slog.String("completion", c.ID), slog.Bool("superseded", superseding != nil))
	}
}

func (e *Engine) wasRejected(docID workspace.DocumentID, key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.rejected[docID][key]
	return ok
}

// TrackedDocuments returns how many documents hold rejection state.
func (e *Engine) TrackedDocuments() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rejected)
}

func (e *Engine) onWorkspaceEvent(ev workspace.Event) {
	if ev.Kind != workspace.EventClose {
		return
	}
	e.mu.Lock()
	delete(e.rejected, ev.Document.ID)
	e.mu.Unlock()
}

func editKey(edit *suggestion.Edit) string {
	return strconv.Itoa(edit.Range.Start) + ":" + strconv.Itoa(edit.Range.EndExclusive) + ":" + edit.NewText
}

// splitAround returns up to maxPrefix runes before offset and up to
// maxSuffix runes after it.
func splitAround(text string, offset, maxPrefix, maxSuffix int) (string, string) {
	runes := []rune(text)
	offset = min(max(offset, 0), len(runes))
	start := max(offset-maxPrefix, 0)
	end := min(offset+maxSuffix, len(runes))
	return string(runes[start:offset]), string(runes[offset:end])
}

var (
	_ suggestion.EditEngine = (*Engine)(nil)
	_ io.Closer             = (*Engine)(nil)
)
