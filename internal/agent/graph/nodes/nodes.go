package nodes

import (
	"context"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"github.com/leadpilot-ai/server/internal/agent/decision"
	"github.com/leadpilot-ai/server/internal/agent/graph/prompts"
	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/rag"
	"github.com/leadpilot-ai/server/internal/tools"
	logx "github.com/leadpilot-ai/server/pkg/logger"
)

// Node names used when wiring the graph.
const (
	NodeIntake      = "intake"
	NodeLoadContext = "load_context"
	NodeDecide      = "decide"
	NodeRetrieve    = "retrieve"
	NodeCompose     = "compose"
	NodeTools       = "tools"
	NodeEscalate    = "escalate"
	NodeMemory      = "memory"
	NodeFinalize    = "finalize"
)

const composeFallbackText = "I apologize, but I'm having trouble formulating a response. A team member will reach out to you shortly."

// Deps carries everything the nodes need. The graph builder threads it
// through each lambda at construction time.
type Deps struct {
	Engine        *decision.Engine
	Retriever     *rag.Retriever
	Reranker      *rag.Reranker
	ResponseModel decision.ChatModel
	Leads         model.LeadRepository
	Conversations model.ConversationRepository
	Tools         *tools.Registry
	RAG           model.RAGConfig
	Conversation  model.ConversationConfig
}

// NewIntakeNode turns the webhook payload into a fresh run state.
func NewIntakeNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.LeadMessage) (*model.RunState, error) {
		source := in.Source
		if source == "" {
			source = string(model.SourceWebsiteForm)
		}
		state := &model.RunState{
			LeadEmail: in.Email,
			Query:     in.Message,
			Source:    source,
			TraceID:   uuid.NewString(),
			StartedAt: time.Now().UTC(),
		}
		logx.Run(state.TraceID, "").
			Info().
			Str("email", in.Email).
			Str("source", source).
			Msg("agent run started")
		return state, nil
	})
}

// NewLoadContextNode resolves the lead record and its recent history.
func NewLoadContextNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.RunState) (*model.RunState, error) {
		lead, err := deps.Leads.GetOrCreate(ctx, state.LeadEmail, "", model.LeadSource(state.Source))
		if err != nil {
			return nil, err
		}

		limit := deps.Conversation.HistoryLimit
		if limit <= 0 {
			limit = 10
		}
		interactions, err := deps.Leads.RecentInteractions(ctx, lead.ID, limit)
		if err != nil {
			return nil, err
		}

		// newest first in storage order, chronological for the prompt
		history := make([]model.Turn, 0, len(interactions))
		for i := len(interactions) - 1; i >= 0; i-- {
			it := interactions[i]
			history = append(history, model.Turn{
				Role:      it.MessageFrom,
				Content:   it.MessageText,
				Timestamp: it.CreatedAt,
			})
		}

		state.LeadID = lead.ID
		state.LeadContext = lead.Context()
		state.ConversationHistory = history
		return state, nil
	})
}

// NewDecideNode runs the decision engine and records its verdict.
func NewDecideNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.RunState) (*model.RunState, error) {
		out := deps.Engine.Decide(ctx, state.Query, state.ConversationHistory, state.LeadContext, len(state.RetrievedSources))

		state.Decision = out.Decision
		state.DecisionReasoning = out.Reasoning
		state.Confidence = out.Confidence
		state.RetrievalNeeded = out.RetrievalNeeded
		state.ToolsToUse = out.ToolsNeeded

		if out.Decision == model.DecisionEscalate {
			state.Escalated = true
			state.EscalationReason = out.EscalationReason
		}
		return state, nil
	})
}

// NewRetrieveNode grounds the run: retrieve, rerank, filter, and flag
// conflicting sources.
func NewRetrieveNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.RunState) (*model.RunState, error) {
		if !state.RetrievalNeeded {
			return state, nil
		}

		raw := deps.Retriever.Retrieve(ctx, state.Query, deps.RAG.TopK, "", nil)
		reranked := deps.Reranker.Rerank(raw)
		filtered := deps.Reranker.FilterLowQuality(reranked, deps.RAG.ScoreThreshold)
		conflict := deps.Reranker.DetectConflicts(filtered)

		state.RetrievedSources = raw
		state.RerankedSources = filtered
		state.ConflictsDetected = conflict

		if conflict {
			state.Confidence *= 0.7
			logx.Run(state.TraceID, state.LeadID).
				Warn().
				Msg("conflicting sources detected")
		}
		return state, nil
	})
}

// NewComposeNode generates the reply, grounded in the top evidence when any
// survived filtering. Generation failure never fails the run: the lead gets
// a fallback message and the run escalates.
func NewComposeNode(deps *Deps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, state *model.RunState) (*model.RunState, error) {
		maxTurns := deps.Conversation.ComposeTurns
		if maxTurns <= 0 {
			maxTurns = 3
		}

		msgs, err := prompts.BuildComposeMessages(ctx, state.Query, state.ConversationHistory, state.RerankedSources, state.LeadContext, maxTurns, 3)
		var responseText string
		if err == nil {
			out, genErr := deps.ResponseModel.Generate(ctx, msgs)
			if genErr != nil {
				err = genErr
			} else {
				responseText = out.Content
			}
		}
		if err != nil {
			logx.Run(state.TraceID, state.LeadID).
				Error().
				Err(err).
				Msg("response composition failed")
			state.AddError("Response composition failed: " + err.Error())
			state.ResponseText = composeFallbackText
			state.Escalated = true
			state.EscalationReason = "response_generation_error"
			return state, nil
		}

		state.ResponseText = responseText
		state.Grounded = len(state.RerankedSources) > 0

		used := state.RerankedSources
		if len(used) > 3 {
			used = used[:3]
		}
		titles := make([]string, 0, len(used))
		for _, e := range used {
			titles = append(titles, e.DocTitle)
		}
		state.SourcesUsed = titles

		// confidence floor applies even after a clean generation
		if escalate, reason := deps.Engine.ShouldEscalate(state.Confidence, false, false); escalate && !state.Escalated {
			state.Escalated = true
			state.EscalationReason = reason
			logx.Run(state.TraceID, state.LeadID).
				Warn().
				Float64("confidence", state.Confidence).
				Str("reason", reason).
				Msg("confidence below threshold, escalating")
		}
		return state, nil
	})
}
