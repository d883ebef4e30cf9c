package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/leadpilot-ai/server/internal/agent/model"
)

//go:embed template/decision_system.txt
var decisionSystemPrompt string

//go:embed template/decision_prompt.txt
var decisionUserPrompt string

// BuildDecisionMessages renders the decision prompt via the Eino prompt
// component so prompt callbacks fire. History is trimmed to the last few
// turns; prior evidence is summarized by count only.
func BuildDecisionMessages(ctx context.Context, query string, history []model.Turn, leadCtx map[string]any, priorSources int, maxTurns int) ([]*schema.Message, error) {
	tail := history
	if maxTurns > 0 && len(tail) > maxTurns {
		tail = tail[len(tail)-maxTurns:]
	}
	lines := make([]string, 0, len(tail))
	for _, t := range tail {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}

	sources := "None"
	if priorSources > 0 {
		sources = fmt.Sprintf("%d sources available", priorSources)
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(decisionSystemPrompt),
		schema.UserMessage(decisionUserPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"Query":   query,
		"History": strings.Join(lines, "\n"),
		"Email":   ctxValue(leadCtx, "email", "unknown"),
		"Name":    ctxValue(leadCtx, "name", "unknown"),
		"Status":  ctxValue(leadCtx, "status", "new"),
		"Company": ctxValue(leadCtx, "company", "unknown"),
		"Sources": sources,
	})
	if err != nil {
		return nil, fmt.Errorf("decision prompt render: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("decision prompt render: empty result")
	}
	return msgs, nil
}

func ctxValue(leadCtx map[string]any, key, fallback string) string {
	if v, ok := leadCtx[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
