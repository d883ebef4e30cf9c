package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/tools"
	logx "github.com/leadpilot-ai/server/pkg/logger"
)

const handoffText = "Thank you for your inquiry. I want to ensure you get the best possible assistance, " +
	"so I'm connecting you with one of our team members who will follow up with you shortly."

// NewToolsNode executes every tool the decision requested. Failures are
// recorded, never fatal; a failed calendar booking escalates the run.
func NewToolsNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.RunState) (*model.RunState, error) {
		if len(state.ToolsToUse) == 0 {
			return state, nil
		}

		for _, name := range state.ToolsToUse {
			kind, ok := deps.Tools.ResolveTool(name)
			if !ok {
				state.ToolResults = append(state.ToolResults, model.ToolOutcome{
					Action: name,
					Error:  "Unknown tool: " + name,
				})
				state.ToolErrors = append(state.ToolErrors, fmt.Sprintf("%s: Unknown tool: %s", name, name))
				continue
			}

			var res tools.Result
			switch kind {
			case tools.KindCRM:
				res = runCRMFlow(ctx, deps, state)
			case tools.KindCalendar:
				res = runCalendarFlow(ctx, deps, state)
			case tools.KindEmail:
				res = runEmailFlow(ctx, deps, state)
			}

			state.ToolResults = append(state.ToolResults, model.ToolOutcome{
				Action:  name,
				Success: res.Success,
				Data:    res.Data,
				Error:   res.Error,
			})
			if !res.Success {
				state.ToolErrors = append(state.ToolErrors, fmt.Sprintf("%s: %s", name, res.Error))
				if kind == tools.KindCalendar {
					state.Escalated = true
					state.EscalationReason = "tool_failure"
				}
			}
		}
		return state, nil
	})
}

// runCRMFlow keeps the lead record fresh: upsert the latest details, then
// mark the lead contacted.
func runCRMFlow(ctx context.Context, deps *Deps, state *model.RunState) tools.Result {
	res := deps.Tools.Execute(ctx, "upsert", tools.Params{
		"email":  state.LeadEmail,
		"name":   leadContextString(state, "name"),
		"source": state.Source,
	})
	if res.Success {
		if adapter, ok := deps.Tools.Adapter(tools.KindCRM); ok {
			adapter.Execute(ctx, "update_status", tools.Params{
				"lead_id": state.LeadID,
				"status":  string(model.StatusContacted),
			})
		}
	}
	return res
}

// runCalendarFlow books a meeting only when the lead actually asked for one.
func runCalendarFlow(ctx context.Context, deps *Deps, state *model.RunState) tools.Result {
	q := strings.ToLower(state.Query)
	if !strings.Contains(q, "call") && !strings.Contains(q, "meeting") && !strings.Contains(q, "schedule") {
		return tools.Result{Success: true, Data: map[string]any{"message": "No meeting booking needed"}}
	}
	return deps.Tools.Execute(ctx, "book_meeting", tools.Params{
		"lead_email":   state.LeadEmail,
		"lead_name":    leadContextString(state, "name"),
		"meeting_type": "discovery_call",
	})
}

func runEmailFlow(ctx context.Context, deps *Deps, state *model.RunState) tools.Result {
	return deps.Tools.Execute(ctx, "send", tools.Params{
		"to_email": state.LeadEmail,
		"subject":  "Re: Your inquiry",
		"body":     state.ResponseText,
	})
}

func leadContextString(state *model.RunState, key string) string {
	if v, ok := state.LeadContext[key].(string); ok {
		return v
	}
	return ""
}

// NewEscalateNode hands the conversation to a human: record the event, park
// the lead in escalated status, and replace the reply with the hand-off text.
func NewEscalateNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.RunState) (*model.RunState, error) {
		if !state.Escalated {
			return state, nil
		}

		reason := state.EscalationReason
		if reason == "" {
			reason = "unknown"
			state.EscalationReason = reason
		}

		if err := deps.Leads.AddEscalation(ctx, &model.EscalationEvent{
			LeadID:          state.LeadID,
			Reason:          reason,
			ConfidenceScore: state.Confidence,
			Context: map[string]any{
				"query":    state.Query,
				"decision": state.Decision.String(),
				"errors":   state.Errors,
			},
		}); err != nil {
			logx.Run(state.TraceID, state.LeadID).Error().Err(err).Msg("failed to record escalation")
			state.AddError("escalation record failed: " + err.Error())
		}

		if adapter, ok := deps.Tools.Adapter(tools.KindCRM); ok {
			adapter.Execute(ctx, "update_status", tools.Params{
				"lead_id": state.LeadID,
				"status":  string(model.StatusEscalated),
			})
		}

		state.ResponseText = handoffText
		logx.Run(state.TraceID, state.LeadID).
			Info().
			Str("reason", reason).
			Msg("escalation handled")
		return state, nil
	})
}

// NewMemoryNode writes the exchange into both memories: the lead history
// with decision metadata and the rolling conversation.
func NewMemoryNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.RunState) (*model.RunState, error) {
		leadMsg := &model.Interaction{
			LeadID:           state.LeadID,
			MessageFrom:      "lead",
			MessageText:      state.Query,
			DecisionType:     state.Decision,
			ConfidenceScore:  state.Confidence,
			ToolsUsed:        state.ToolsToUse,
			SourcesRetrieved: state.SourcesUsed,
		}
		agentMsg := &model.Interaction{
			LeadID:          state.LeadID,
			MessageFrom:     "agent",
			MessageText:     state.ResponseText,
			DecisionType:    state.Decision,
			ConfidenceScore: state.Confidence,
		}
		for _, it := range []*model.Interaction{leadMsg, agentMsg} {
			if err := deps.Leads.AddInteraction(ctx, it); err != nil {
				return nil, err
			}
		}

		turns := []model.Turn{
			{Role: "user", Content: state.Query},
			{Role: "agent", Content: state.ResponseText},
		}
		for _, turn := range turns {
			if err := deps.Conversations.AppendTurn(ctx, state.LeadID, turn); err != nil {
				return nil, err
			}
		}
		return state, nil
	})
}

// NewFinalizeNode closes out the run.
func NewFinalizeNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.RunState) (*model.RunState, error) {
		logx.Run(state.TraceID, state.LeadID).
			Info().
			Bool("escalated", state.Escalated).
			Str("decision", state.Decision.String()).
			Float64("confidence", state.Confidence).
			Dur("duration", time.Since(state.StartedAt)).
			Msg("agent run completed")
		return state, nil
	})
}
