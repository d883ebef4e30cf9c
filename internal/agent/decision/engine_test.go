package decision

import (
	"bytes"
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot-ai/server/internal/agent/model"
)

type fakeChatModel struct {
	response string
	err      error
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.response, nil), nil
}

func newTestEngine(cm ChatModel) *Engine {
	return NewEngine(cm, model.ConfidenceConfig{High: 0.75, Low: 0.5}, 5)
}

func TestDecideParsesModelResponse(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		wantDecision  model.DecisionType
		wantConf      float64
		wantReasoning string
		wantTools     []string
		wantRetrieval bool
	}{
		{
			name: "retrieve decision",
			response: "DECISION: RETRIEVE\n" +
				"CONFIDENCE: 0.85\n" +
				"REASONING: Query asks about pricing\n" +
				"TOOLS_NEEDED: none\n" +
				"RETRIEVAL_NEEDED: yes",
			wantDecision:  model.DecisionRetrieve,
			wantConf:      0.85,
			wantReasoning: "Query asks about pricing",
			wantRetrieval: true,
		},
		{
			name: "tool decision with comma separated tools",
			response: "DECISION: USE_TOOL\n" +
				"CONFIDENCE: 0.9\n" +
				"REASONING: Lead wants a meeting\n" +
				"TOOLS_NEEDED: crm, calendar\n" +
				"RETRIEVAL_NEEDED: no",
			wantDecision:  model.DecisionUseTool,
			wantConf:      0.9,
			wantReasoning: "Lead wants a meeting",
			wantTools:     []string{"crm", "calendar"},
		},
		{
			name:          "unknown decision falls back to escalate",
			response:      "DECISION: PONDER\nCONFIDENCE: 0.8",
			wantDecision:  model.DecisionEscalate,
			wantConf:      0.8,
			wantReasoning: "No reasoning provided",
		},
		{
			name:          "unparsable confidence defaults to 0.5",
			response:      "DECISION: REASON_ONLY\nCONFIDENCE: high",
			wantDecision:  model.DecisionReasonOnly,
			wantConf:      0.5,
			wantReasoning: "No reasoning provided",
		},
		{
			name:          "confidence clamped into range",
			response:      "DECISION: CLARIFY\nCONFIDENCE: 1.7",
			wantDecision:  model.DecisionClarify,
			wantConf:      1.0,
			wantReasoning: "No reasoning provided",
		},
		{
			name:          "retrieval flag is case insensitive",
			response:      "DECISION: RETRIEVE\nCONFIDENCE: 0.6\nRETRIEVAL_NEEDED: YES",
			wantDecision:  model.DecisionRetrieve,
			wantConf:      0.6,
			wantReasoning: "No reasoning provided",
			wantRetrieval: true,
		},
		{
			name:          "missing fields fail closed",
			response:      "I think we should look this up.",
			wantDecision:  model.DecisionEscalate,
			wantConf:      0.5,
			wantReasoning: "No reasoning provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(&fakeChatModel{response: tt.response})
			out := engine.Decide(context.Background(), "query", nil, nil, 0)
			require.NotNil(t, out)
			assert.Equal(t, tt.wantDecision, out.Decision)
			assert.InDelta(t, tt.wantConf, out.Confidence, 1e-9)
			assert.Equal(t, tt.wantReasoning, out.Reasoning)
			assert.Equal(t, tt.wantTools, out.ToolsNeeded)
			assert.Equal(t, tt.wantRetrieval, out.RetrievalNeeded)
		})
	}
}

func TestDecideEscalatesOnModelFailure(t *testing.T) {
	engine := newTestEngine(&fakeChatModel{err: errors.New("provider unavailable")})
	out := engine.Decide(context.Background(), "query", nil, nil, 0)

	require.NotNil(t, out)
	assert.Equal(t, model.DecisionEscalate, out.Decision)
	assert.Zero(t, out.Confidence)
	assert.Equal(t, "internal_error", out.EscalationReason)
	assert.Contains(t, out.Reasoning, "provider unavailable")
	assert.False(t, out.RetrievalNeeded)
}

func TestCalculateConfidence(t *testing.T) {
	engine := newTestEngine(&fakeChatModel{})

	tests := []struct {
		name       string
		sq, qc, cc float64
		tsr        float64
		conflict   bool
		want       float64
	}{
		{name: "all factors perfect", sq: 1, qc: 0, cc: 1, tsr: 1, want: 1.0},
		{name: "weighted mix", sq: 0.8, qc: 0.5, cc: 0.6, tsr: 1.0, want: 0.3*0.8 + 0.2*0.5 + 0.3*0.6 + 0.2*1.0},
		{name: "conflict halves the score", sq: 1, qc: 0, cc: 1, tsr: 1, conflict: true, want: 0.5},
		{name: "zero everything", sq: 0, qc: 1, cc: 0, tsr: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.CalculateConfidence(tt.sq, tt.qc, tt.cc, tt.tsr, tt.conflict)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculateConfidenceLogsThresholdMet(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })

	engine := newTestEngine(&fakeChatModel{})

	// 0.3*1 + 0.2*1 + 0.3*1 + 0.2*0 = 0.8, above the 0.75 high-water mark
	engine.CalculateConfidence(1, 0, 1, 0, false)
	assert.Contains(t, buf.String(), `"threshold_met":true`)

	buf.Reset()
	// halved by the conflict penalty, well below the mark
	engine.CalculateConfidence(1, 0, 1, 0, true)
	assert.Contains(t, buf.String(), `"threshold_met":false`)
}

func TestShouldEscalatePriorityOrder(t *testing.T) {
	engine := newTestEngine(&fakeChatModel{})

	tests := []struct {
		name       string
		confidence float64
		errored    bool
		sensitive  bool
		want       bool
		wantReason string
	}{
		{name: "error wins over everything", confidence: 0.1, errored: true, sensitive: true, want: true, wantReason: "error_in_processing"},
		{name: "sensitive before low confidence", confidence: 0.1, sensitive: true, want: true, wantReason: "sensitive_topic_detected"},
		{name: "low confidence", confidence: 0.4, want: true, wantReason: "confidence_below_threshold"},
		{name: "at threshold stays", confidence: 0.5, want: false},
		{name: "high confidence stays", confidence: 0.9, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := engine.ShouldEscalate(tt.confidence, tt.errored, tt.sensitive)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}
