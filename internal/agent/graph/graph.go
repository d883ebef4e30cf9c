package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/leadpilot-ai/server/internal/agent/decision"
	"github.com/leadpilot-ai/server/internal/agent/graph/nodes"
	"github.com/leadpilot-ai/server/internal/agent/graph/observers"
	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/rag"
	"github.com/leadpilot-ai/server/internal/tools"
	logx "github.com/leadpilot-ai/server/pkg/logger"
)

const orchestrationFailureText = "I apologize, but I'm experiencing technical difficulties. A team member will assist you shortly."

// Runner executes one pipeline run per inbound lead message. Run always
// returns a terminal state: orchestration failures come back as escalated
// runs, never as errors.
type Runner interface {
	Run(ctx context.Context, in model.LeadMessage) *model.RunState
}

// Config holds everything needed to compose the full agent pipeline.
type Config struct {
	APIKey  string
	BaseURL string

	DecisionModel model.DecisionModelConfig
	ResponseModel model.ResponseModelConfig
	Confidence    model.ConfidenceConfig
	RAG           model.RAGConfig
	Conversation  model.ConversationConfig

	Leads         model.LeadRepository
	Conversations model.ConversationRepository
	VectorStore   rag.VectorStore
	Embedder      rag.Embedder
	Tools         *tools.Registry
}

// GraphBuilder handles construction of the agent pipeline graph.
type GraphBuilder struct {
	deps  *nodes.Deps
	graph *compose.Graph[model.LeadMessage, *model.RunState]
}

type graphRunner struct {
	runnable compose.Runnable[model.LeadMessage, *model.RunState]
}

func (r *graphRunner) Run(ctx context.Context, in model.LeadMessage) *model.RunState {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().
			Err(err).
			Str("email", in.Email).
			Msg("agent orchestration failed")
		return &model.RunState{
			LeadEmail:        in.Email,
			Query:            in.Message,
			Source:           in.Source,
			ResponseText:     orchestrationFailureText,
			Escalated:        true,
			EscalationReason: "orchestration_error",
			Errors:           []string{err.Error()},
		}
	}
	return out
}

// BuildAgentGraph wires chat models, decision engine and retrieval into a
// compiled pipeline and returns a Runner.
func BuildAgentGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Leads == nil || cfg.Conversations == nil {
		return nil, fmt.Errorf("lead and conversation repositories are required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		DecisionConfig: &cfg.DecisionModel,
		RespConfig:     &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	engine := decision.NewEngine(cms.Decision, cfg.Confidence, cfg.Conversation.DecisionTurns)
	retriever := rag.NewRetriever(cfg.Embedder, cfg.VectorStore, cfg.RAG.TopK)
	reranker := rag.NewReranker(rag.RerankerConfig{
		SimilarityWeight: cfg.RAG.SimilarityWeight,
		RecencyWeight:    cfg.RAG.RecencyWeight,
		QualityWeight:    cfg.RAG.QualityWeight,
		HalfLifeDays:     cfg.RAG.RecencyHalfLife,
		ConflictSpread:   cfg.RAG.ConflictSpread,
	})

	runnable, err := BuildGraph(ctx, &nodes.Deps{
		Engine:        engine,
		Retriever:     retriever,
		Reranker:      reranker,
		ResponseModel: cms.Response,
		Leads:         cfg.Leads,
		Conversations: cfg.Conversations,
		Tools:         cfg.Tools,
		RAG:           cfg.RAG,
		Conversation:  cfg.Conversation,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Agent graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and compiles the pipeline graph from its node deps.
func BuildGraph(ctx context.Context, deps *nodes.Deps) (compose.Runnable[model.LeadMessage, *model.RunState], error) {
	if deps == nil {
		return nil, fmt.Errorf("graph deps are nil")
	}
	if deps.Engine == nil || deps.ResponseModel == nil {
		return nil, fmt.Errorf("decision engine and response model are required")
	}

	builder := &GraphBuilder{
		deps:  deps,
		graph: compose.NewGraph[model.LeadMessage, *model.RunState](),
	}

	builder.addNodes()
	builder.addEdges()
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph.
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeIntake, nodes.NewIntakeNode())
	b.graph.AddLambdaNode(nodes.NodeLoadContext, nodes.NewLoadContextNode(b.deps))
	b.graph.AddLambdaNode(nodes.NodeDecide, nodes.NewDecideNode(b.deps))
	b.graph.AddLambdaNode(nodes.NodeRetrieve, nodes.NewRetrieveNode(b.deps))
	b.graph.AddLambdaNode(nodes.NodeCompose, nodes.NewComposeNode(b.deps))
	b.graph.AddLambdaNode(nodes.NodeTools, nodes.NewToolsNode(b.deps))
	b.graph.AddLambdaNode(nodes.NodeEscalate, nodes.NewEscalateNode(b.deps))
	b.graph.AddLambdaNode(nodes.NodeMemory, nodes.NewMemoryNode(b.deps))
	b.graph.AddLambdaNode(nodes.NodeFinalize, nodes.NewFinalizeNode())
}

// addEdges creates the unconditional flow connections.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeIntake},
		{nodes.NodeIntake, nodes.NodeLoadContext},
		{nodes.NodeLoadContext, nodes.NodeDecide},
		{nodes.NodeRetrieve, nodes.NodeCompose},
		{nodes.NodeTools, nodes.NodeMemory},
		{nodes.NodeEscalate, nodes.NodeMemory},
		{nodes.NodeMemory, nodes.NodeFinalize},
		{nodes.NodeFinalize, compose.END},
	}
	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the two conditional routes: retrieval after the
// decision, and escalate/tools/memory after composition.
func (b *GraphBuilder) addBranches() error {
	retrievalBranch := compose.NewGraphBranch(
		func(ctx context.Context, state *model.RunState) (string, error) {
			if state.RetrievalNeeded {
				return nodes.NodeRetrieve, nil
			}
			return nodes.NodeCompose, nil
		},
		map[string]bool{
			nodes.NodeRetrieve: true,
			nodes.NodeCompose:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeDecide, retrievalBranch); err != nil {
		return fmt.Errorf("error adding retrieval branch: %w", err)
	}

	postComposeBranch := compose.NewGraphBranch(
		func(ctx context.Context, state *model.RunState) (string, error) {
			if state.Escalated {
				return nodes.NodeEscalate, nil
			}
			if len(state.ToolsToUse) > 0 {
				return nodes.NodeTools, nil
			}
			return nodes.NodeMemory, nil
		},
		map[string]bool{
			nodes.NodeEscalate: true,
			nodes.NodeTools:    true,
			nodes.NodeMemory:   true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeCompose, postComposeBranch); err != nil {
		return fmt.Errorf("error adding post-compose branch: %w", err)
	}
	return nil
}

// compile finalizes the graph. The pipeline is a DAG, so a small step limit
// is enough to catch wiring mistakes.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.LeadMessage, *model.RunState], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
