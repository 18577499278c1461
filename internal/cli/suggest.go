package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	nextedit "github.com/ggoodman/nextedit-go"
	"github.com/ggoodman/nextedit-go/suggestion"
	"github.com/ggoodman/nextedit-go/telemetry"
	"github.com/ggoodman/nextedit-go/workspace"
	"github.com/spf13/cobra"
)

var validOutcomes = []string{"accepted", "rejected", "ignored"}

var languageByExt = map[string]string{
	".go":   "go",
	".js":   "javascript",
	".jsx":  "javascriptreact",
	".ts":   "typescript",
	".tsx":  "typescriptreact",
	".py":   "python",
	".rs":   "rust",
	".java": "java",
	".md":   "markdown",
}

type suggestOptions struct {
	line      int
	character int
	language  string
	outcome   string
	limit     int
}

type suggestOutput struct {
	CorrelationID string            `json:"correlationId"`
	Edit          *suggestion.Edit  `json:"edit,omitempty"`
	Preview       string            `json:"preview,omitempty"`
	Telemetry     []telemetry.Event `json:"telemetry,omitempty"`
}

func newSuggestCommand(opts *RootOptions) *cobra.Command {
	so := &suggestOptions{}
	cmd := &cobra.Command{
		Use:   "suggest <file>",
		Short: "Request one edit suggestion for a file and report its telemetry",
		Long: `Open the file in an in-memory workspace, place the cursor, request a
suggestion from the remote edit engine and finish it with the given outcome.
The telemetry event sent for the suggestion is printed with the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validOutcomes, so.outcome) {
				return fmt.Errorf("invalid outcome %q: must be one of %v", so.outcome, validOutcomes)
			}
			return runSuggest(cmd, opts, so, args[0])
		},
	}
	cmd.Flags().IntVar(&so.line, "line", 0, "zero-based cursor line")
	cmd.Flags().IntVar(&so.character, "character", 0, "zero-based cursor character")
	cmd.Flags().StringVar(&so.language, "language", "", "language id (derived from the extension when empty)")
	cmd.Flags().StringVar(&so.outcome, "outcome", "ignored", "how to finish the suggestion (accepted|rejected|ignored)")
	cmd.Flags().IntVar(&so.limit, "telemetry-limit", 1, "number of recent telemetry events to print")
	return cmd
}

func runSuggest(cmd *cobra.Command, opts *RootOptions, so *suggestOptions, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	text, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	lang := so.language
	if lang == "" {
		lang = languageByExt[strings.ToLower(filepath.Ext(abs))]
	}
	if lang == "" {
		lang = "plaintext"
	}

	ws := workspace.NewMemory()
	doc := ws.Open(workspace.FileURI(abs), lang, 1, string(text))
	if err := ws.SetCursor(doc.ID, workspace.Position{Line: so.line, Character: so.character}); err != nil {
		return err
	}

	sink, err := opts.sink()
	if err != nil {
		return fmt.Errorf("open telemetry sink: %w", err)
	}
	defer func() {
		_ = sink.Close()
	}()

	po, err := opts.options()
	if err != nil {
		return err
	}
	po.Workspace = ws
	po.TelemetrySender = sink
	p, err := nextedit.CreateProvider(po)
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Close()
	}()

	s, err := p.GetNextEdit(cmd.Context(), doc.ID)
	if err != nil {
		return err
	}
	out := suggestOutput{CorrelationID: s.CorrelationID, Edit: s.Edit}
	if s.Edit != nil {
		if err := p.HandleShown(s); err != nil {
			return err
		}
		out.Preview = applyEdit(string(text), s.Edit)
	}

	switch so.outcome {
	case "accepted":
		err = p.HandleAccepted(s)
	case "rejected":
		err = p.HandleRejected(s)
	default:
		err = p.HandleIgnored(s, nil)
	}
	if err != nil {
		return err
	}

	if out.Telemetry, err = sink.Events(cmd.Context(), so.limit); err != nil {
		return fmt.Errorf("read telemetry: %w", err)
	}
	return opts.write(cmd.OutOrStdout(), out)
}

// applyEdit returns text with edit applied. Offsets are in runes.
func applyEdit(text string, edit *suggestion.Edit) string {
	runes := []rune(text)
	start := min(max(edit.Range.Start, 0), len(runes))
	end := min(max(edit.Range.EndExclusive, start), len(runes))
	return string(runes[:start]) + edit.NewText + string(runes[end:])
}
