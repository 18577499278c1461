package langctx

import (
	"context"
	"testing"

	"github.com/ggoodman/nextedit-go/workspace"
)

func TestStatic(t *testing.T) {
	s := Static{
		"go": {{URI: "file:///a.go", Text: "type A struct{}"}},
		"*":  {{URI: "file:///README", Text: "readme"}},
	}
	got, err := s.Snippets(context.Background(), workspace.Document{LanguageID: "go"})
	if err != nil {
		t.Fatalf("Snippets() failed: %v", err)
	}
	if len(got) != 2 || got[0].Text != "type A struct{}" || got[1].Text != "readme" {
		t.Fatalf("unexpected snippets: %+v", got)
	}

	got, _ = s.Snippets(context.Background(), workspace.Document{LanguageID: "python"})
	if len(got) != 1 {
		t.Fatalf("expected only wildcard snippet, got %+v", got)
	}
}

func TestNull(t *testing.T) {
	got, err := Null{}.Snippets(context.Background(), workspace.Document{})
	if err != nil || len(got) != 0 {
		t.Fatalf("Snippets() = %v, %v", got, err)
	}
}
