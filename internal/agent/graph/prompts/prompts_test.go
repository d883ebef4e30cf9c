package prompts

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/rag"
)

func TestBuildDecisionMessages(t *testing.T) {
	history := []model.Turn{
		{Role: "user", Content: "older message"},
		{Role: "user", Content: "How much does it cost?"},
		{Role: "agent", Content: "Which plan are you interested in?"},
	}
	leadCtx := map[string]any{
		"email":   "jane@acme.com",
		"name":    "Jane",
		"status":  "contacted",
		"company": "Acme Corp",
	}

	msgs, err := BuildDecisionMessages(context.Background(), "The starter plan", history, leadCtx, 2, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, schema.User, msgs[1].Role)

	user := msgs[1].Content
	assert.Contains(t, user, "The starter plan")
	assert.Contains(t, user, "jane@acme.com")
	assert.Contains(t, user, "Jane")
	assert.Contains(t, user, "Acme Corp")
	assert.Contains(t, user, "2 sources available")
	assert.Contains(t, user, "Respond in this EXACT format:")

	// trimmed to the last two turns
	assert.NotContains(t, user, "older message")
	assert.Contains(t, user, "user: How much does it cost?")
}

func TestBuildDecisionMessagesDefaults(t *testing.T) {
	msgs, err := BuildDecisionMessages(context.Background(), "hello", nil, nil, 0, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	user := msgs[1].Content
	assert.Contains(t, user, "unknown")
	assert.Contains(t, user, "None")
}

func TestBuildComposeMessagesWithEvidence(t *testing.T) {
	evidence := []*rag.Evidence{
		{DocTitle: "pricing_guide", ChunkText: "The starter plan is $49 per month."},
		{DocTitle: "billing_faq", ChunkText: "Annual billing gets two months free."},
		{DocTitle: "extra_one", ChunkText: "noise"},
		{DocTitle: "extra_two", ChunkText: "noise"},
	}

	msgs, err := BuildComposeMessages(context.Background(), "What does it cost?", nil, evidence, nil, 3, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	user := msgs[1].Content
	assert.Contains(t, user, "[Source: pricing_guide]")
	assert.Contains(t, user, "The starter plan is $49 per month.")
	assert.Contains(t, user, "[Source: extra_one]")
	// capped at three evidence blocks
	assert.NotContains(t, user, "extra_two")
}

func TestBuildComposeMessagesUngrounded(t *testing.T) {
	msgs, err := BuildComposeMessages(context.Background(), "What does it cost?", nil, nil, nil, 3, 3)
	require.NoError(t, err)

	assert.Contains(t, msgs[1].Content, ungroundedSourcesText)
}
