package decision

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/leadpilot-ai/server/internal/agent/graph/prompts"
	"github.com/leadpilot-ai/server/internal/agent/model"
	logx "github.com/leadpilot-ai/server/pkg/logger"
)

// ChatModel is the slice of the Eino chat-model surface the engine needs.
// Satisfied by *gemini.ChatModel and trivially fakeable in tests.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// Engine chooses the next action for a run and owns the confidence policy.
type Engine struct {
	chatModel     ChatModel
	highThreshold float64
	lowThreshold  float64
	decisionTurns int
}

func NewEngine(chatModel ChatModel, cfg model.ConfidenceConfig, decisionTurns int) *Engine {
	if decisionTurns <= 0 {
		decisionTurns = 5
	}
	return &Engine{
		chatModel:     chatModel,
		highThreshold: cfg.High,
		lowThreshold:  cfg.Low,
		decisionTurns: decisionTurns,
	}
}

// Decide asks the decision model what to do next. It never returns an error:
// any generation failure collapses into an escalate decision so the run can
// still reach a terminal state.
func (e *Engine) Decide(ctx context.Context, query string, history []model.Turn, leadCtx map[string]any, priorSources int) *model.DecisionOutput {
	msgs, err := prompts.BuildDecisionMessages(ctx, query, history, leadCtx, priorSources, e.decisionTurns)
	if err == nil {
		var resp *schema.Message
		resp, err = e.chatModel.Generate(ctx, msgs)
		if err == nil {
			out := parseDecision(resp.Content)
			logx.Debug().
				Str("decision", out.Decision.String()).
				Float64("confidence", out.Confidence).
				Str("reasoning", out.Reasoning).
				Strs("tools_needed", out.ToolsNeeded).
				Bool("retrieval_needed", out.RetrievalNeeded).
				Msg("decision made")
			return out
		}
	}

	logx.Error().Err(err).Msg("decision engine failed")
	return &model.DecisionOutput{
		Decision:         model.DecisionEscalate,
		Confidence:       0.0,
		Reasoning:        fmt.Sprintf("Decision engine error: %v", err),
		ToolsNeeded:      []string{},
		RetrievalNeeded:  false,
		EscalationReason: "internal_error",
	}
}

var decisionByKeyword = map[string]model.DecisionType{
	"RETRIEVE":    model.DecisionRetrieve,
	"REASON_ONLY": model.DecisionReasonOnly,
	"USE_TOOL":    model.DecisionUseTool,
	"CLARIFY":     model.DecisionClarify,
	"ESCALATE":    model.DecisionEscalate,
}

// parseDecision extracts the KEY: value lines of the model response. Every
// field fails closed: an unrecognised decision escalates and an unparsable
// confidence lands on 0.5.
func parseDecision(response string) *model.DecisionOutput {
	parsed := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		parsed[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	decision, ok := decisionByKeyword[parsed["DECISION"]]
	if !ok {
		decision = model.DecisionEscalate
	}

	confidence := 0.5
	if raw, ok := parsed["CONFIDENCE"]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			confidence = clamp(v)
		}
	}

	reasoning := parsed["REASONING"]
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	var tools []string
	if raw, ok := parsed["TOOLS_NEEDED"]; ok && !strings.EqualFold(raw, "none") {
		for _, t := range strings.Split(raw, ",") {
			tools = append(tools, strings.TrimSpace(t))
		}
	}

	return &model.DecisionOutput{
		Decision:        decision,
		Confidence:      confidence,
		Reasoning:       reasoning,
		ToolsNeeded:     tools,
		RetrievalNeeded: strings.EqualFold(parsed["RETRIEVAL_NEEDED"], "yes"),
	}
}

// CalculateConfidence combines the run's quality signals into one score.
// Conflicting evidence halves it before clamping.
func (e *Engine) CalculateConfidence(sourcesQuality, queryComplexity, contextCompleteness, toolSuccessRate float64, conflictDetected bool) float64 {
	confidence := 0.3*sourcesQuality +
		0.2*(1.0-queryComplexity) +
		0.3*contextCompleteness +
		0.2*toolSuccessRate

	if conflictDetected {
		confidence *= 0.5
	}
	confidence = clamp(confidence)

	logx.Debug().
		Float64("confidence", confidence).
		Float64("sources_quality", sourcesQuality).
		Float64("query_complexity", queryComplexity).
		Float64("context_completeness", contextCompleteness).
		Float64("tool_success_rate", toolSuccessRate).
		Bool("conflict_detected", conflictDetected).
		Bool("threshold_met", confidence >= e.highThreshold).
		Msg("confidence calculated")
	return confidence
}

// ShouldEscalate applies the escalation policy in priority order: processing
// errors first, then sensitive topics, then the low-confidence floor.
func (e *Engine) ShouldEscalate(confidence float64, errorOccurred, sensitiveTopic bool) (bool, string) {
	if errorOccurred {
		return true, "error_in_processing"
	}
	if sensitiveTopic {
		return true, "sensitive_topic_detected"
	}
	if confidence < e.lowThreshold {
		return true, "confidence_below_threshold"
	}
	return false, ""
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
