package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/rag"
)

//go:embed template/response_system.txt
var responseSystemPrompt string

//go:embed template/response_prompt.txt
var responseUserPrompt string

const ungroundedSourcesText = "No specific sources retrieved - use general knowledge about sales process."

// BuildComposeMessages renders the response prompt: recent conversation, the
// query, and the top evidence chunks formatted as grounding sources.
func BuildComposeMessages(ctx context.Context, query string, history []model.Turn, evidence []*rag.Evidence, leadCtx map[string]any, maxTurns, maxEvidence int) ([]*schema.Message, error) {
	tail := history
	if maxTurns > 0 && len(tail) > maxTurns {
		tail = tail[len(tail)-maxTurns:]
	}
	lines := make([]string, 0, len(tail))
	for _, t := range tail {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}

	top := evidence
	if maxEvidence > 0 && len(top) > maxEvidence {
		top = top[:maxEvidence]
	}
	sourceBlocks := make([]string, 0, len(top))
	for _, e := range top {
		sourceBlocks = append(sourceBlocks, fmt.Sprintf("[Source: %s]\n%s", e.DocTitle, e.ChunkText))
	}
	sources := ungroundedSourcesText
	if len(sourceBlocks) > 0 {
		sources = strings.Join(sourceBlocks, "\n\n")
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(responseSystemPrompt),
		schema.UserMessage(responseUserPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"History": strings.Join(lines, "\n"),
		"Query":   query,
		"Sources": sources,
		"Status":  ctxValue(leadCtx, "status", "new"),
		"Company": ctxValue(leadCtx, "company", "unknown"),
	})
	if err != nil {
		return nil, fmt.Errorf("response prompt render: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("response prompt render: empty result")
	}
	return msgs, nil
}
