package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dataloom/analystrt/pkg/convctx"
)

// CitationEntry is one source entry assembled into a citation block.
type CitationEntry struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

func formatCitations(_ context.Context, _ Deps, _ *convctx.ContextState, args map[string]any) Result {
	raw, _ := args["sources"].([]any)
	entries := make([]CitationEntry, 0, len(raw))
	var lines []string
	for i, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		title, _ := m["title"].(string)
		uri, _ := m["uri"].(string)
		entries = append(entries, CitationEntry{ID: id, Title: title, URI: uri})

		label := title
		if label == "" {
			label = id
		}
		line := fmt.Sprintf("[%d] %s", i+1, label)
		if uri != "" {
			line += " — " + uri
		}
		lines = append(lines, line)
	}

	return Result{
		Summary: strings.Join(lines, "\n"),
		Payload: map[string]any{"citations": entries},
	}
}
