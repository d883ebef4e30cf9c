package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot-ai/server/internal/agent/decision"
	"github.com/leadpilot-ai/server/internal/agent/graph/nodes"
	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/agent/repo"
	"github.com/leadpilot-ai/server/internal/rag"
	"github.com/leadpilot-ai/server/internal/tools"
)

type scriptedModel struct {
	response string
	err      error
}

func (m *scriptedModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.response, nil), nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (stubEmbedder) EmbedSingle(context.Context, string) ([]float64, error) {
	return []float64{0.1, 0.2, 0.3}, nil
}

type stubVectorStore struct {
	result *rag.QueryResult
}

func (s *stubVectorStore) Upsert(context.Context, []rag.Document) error { return nil }

func (s *stubVectorStore) Query(context.Context, []float64, int, map[string]string) (*rag.QueryResult, error) {
	if s.result == nil {
		return &rag.QueryResult{}, nil
	}
	return s.result, nil
}

func (s *stubVectorStore) Delete(context.Context, []string) error { return nil }

func (s *stubVectorStore) Count(context.Context) (int64, error) { return 0, nil }

func (s *stubVectorStore) Clear(context.Context) error { return nil }

type pipelineFixture struct {
	rdb   *redis.Client
	leads model.LeadRepository
	convs model.ConversationRepository
}

func buildPipeline(t *testing.T, decisionText string, response *scriptedModel, hits *rag.QueryResult) (*pipelineFixture, func(model.LeadMessage) *model.RunState) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	leads := repo.NewRedisLeadRepository(rdb)
	convs := repo.NewRedisConversationRepository(rdb, time.Hour)

	registry := tools.NewRegistry(
		tools.NewExecutor(tools.WithBackoffBase(time.Millisecond)),
		tools.NewCRMAdapter(leads),
		tools.NewCalendarAdapter(rdb),
		tools.NewEmailAdapter(rdb),
	)

	engine := decision.NewEngine(&scriptedModel{response: decisionText}, model.ConfidenceConfig{High: 0.75, Low: 0.5}, 5)
	retriever := rag.NewRetriever(stubEmbedder{}, &stubVectorStore{result: hits}, 8)
	reranker := rag.NewReranker(rag.DefaultRerankerConfig())

	runnable, err := BuildGraph(context.Background(), &nodes.Deps{
		Engine:        engine,
		Retriever:     retriever,
		Reranker:      reranker,
		ResponseModel: response,
		Leads:         leads,
		Conversations: convs,
		Tools:         registry,
		RAG:           model.RAGConfig{TopK: 8, ScoreThreshold: 0.6},
		Conversation:  model.ConversationConfig{HistoryLimit: 10, DecisionTurns: 5, ComposeTurns: 3},
	})
	require.NoError(t, err)

	run := func(in model.LeadMessage) *model.RunState {
		state, err := runnable.Invoke(context.Background(), in)
		require.NoError(t, err)
		return state
	}
	return &pipelineFixture{rdb: rdb, leads: leads, convs: convs}, run
}

func pricingHits() *rag.QueryResult {
	return &rag.QueryResult{
		IDs:       []string{"doc-1", "doc-2"},
		Documents: []string{"The starter plan is $49 per month.", "Annual billing gets two months free."},
		Metadatas: []map[string]any{
			{"doc_title": "pricing_guide", "doc_type": "pricing"},
			{"doc_title": "billing_faq", "doc_type": "faq"},
		},
		Distances: []float64{0.1, 0.15},
	}
}

func TestPipelineGroundedAnswer(t *testing.T) {
	decisionText := "DECISION: RETRIEVE\n" +
		"CONFIDENCE: 0.9\n" +
		"REASONING: Pricing question needs knowledge base\n" +
		"TOOLS_NEEDED: none\n" +
		"RETRIEVAL_NEEDED: yes"
	response := &scriptedModel{response: "Our starter plan is $49 per month, with two months free on annual billing."}

	fx, run := buildPipeline(t, decisionText, response, pricingHits())

	state := run(model.LeadMessage{Email: "jane@acme.com", Message: "How much does the starter plan cost?"})

	assert.False(t, state.Escalated, state.EscalationReason)
	assert.Equal(t, model.DecisionRetrieve, state.Decision)
	assert.InDelta(t, 0.9, state.Confidence, 1e-9)
	assert.True(t, state.Grounded)
	assert.Equal(t, response.response, state.ResponseText)
	require.NotEmpty(t, state.SourcesUsed)
	assert.Equal(t, "pricing_guide", state.SourcesUsed[0])
	assert.False(t, state.ConflictsDetected)

	// both sides of the exchange are remembered
	history, err := fx.convs.LoadHistory(context.Background(), state.LeadID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "agent", history[1].Role)

	interactions, err := fx.leads.RecentInteractions(context.Background(), state.LeadID, 10)
	require.NoError(t, err)
	require.Len(t, interactions, 2)
	assert.Equal(t, model.DecisionRetrieve, interactions[0].DecisionType)
}

func TestPipelineComposeFailureEscalates(t *testing.T) {
	decisionText := "DECISION: REASON_ONLY\n" +
		"CONFIDENCE: 0.9\n" +
		"REASONING: General question\n" +
		"TOOLS_NEEDED: none\n" +
		"RETRIEVAL_NEEDED: no"
	response := &scriptedModel{err: errors.New("model overloaded")}

	fx, run := buildPipeline(t, decisionText, response, nil)

	state := run(model.LeadMessage{Email: "jane@acme.com", Message: "Tell me about your product"})

	assert.True(t, state.Escalated)
	assert.Equal(t, "response_generation_error", state.EscalationReason)
	// the hand-off message replaces the fallback before it reaches the lead
	assert.Contains(t, state.ResponseText, "connecting you with one of our team members")
	require.NotEmpty(t, state.Errors)
	assert.Contains(t, state.Errors[0], "model overloaded")

	lead, err := fx.leads.GetByID(context.Background(), state.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEscalated, lead.Status)
}

func TestPipelineLowConfidenceEscalates(t *testing.T) {
	decisionText := "DECISION: REASON_ONLY\n" +
		"CONFIDENCE: 0.3\n" +
		"REASONING: Ambiguous request\n" +
		"TOOLS_NEEDED: none\n" +
		"RETRIEVAL_NEEDED: no"
	response := &scriptedModel{response: "Here is my best guess."}

	fx, run := buildPipeline(t, decisionText, response, nil)

	state := run(model.LeadMessage{Email: "jane@acme.com", Message: "What about the thing we discussed?"})

	assert.True(t, state.Escalated)
	assert.Equal(t, "confidence_below_threshold", state.EscalationReason)
	assert.Contains(t, state.ResponseText, "connecting you with one of our team members")

	lead, err := fx.leads.GetByID(context.Background(), state.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEscalated, lead.Status)
}

func TestPipelineToolsFlow(t *testing.T) {
	decisionText := "DECISION: USE_TOOL\n" +
		"CONFIDENCE: 0.9\n" +
		"REASONING: Lead shared contact details\n" +
		"TOOLS_NEEDED: crm, email\n" +
		"RETRIEVAL_NEEDED: no"
	response := &scriptedModel{response: "Thanks Jane, I've noted your details and sent a summary."}

	fx, run := buildPipeline(t, decisionText, response, nil)

	state := run(model.LeadMessage{Email: "jane@acme.com", Name: "Jane", Message: "Please keep me posted at this address"})

	assert.False(t, state.Escalated, state.EscalationReason)
	require.Len(t, state.ToolResults, 2)
	for _, res := range state.ToolResults {
		assert.True(t, res.Success, res.Error)
	}
	assert.Empty(t, state.ToolErrors)

	lead, err := fx.leads.GetByID(context.Background(), state.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusContacted, lead.Status)

	outbox, err := fx.rdb.LLen(context.Background(), "email:outbox").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), outbox)
}

func TestPipelineUnknownToolIsRecorded(t *testing.T) {
	decisionText := "DECISION: USE_TOOL\n" +
		"CONFIDENCE: 0.9\n" +
		"REASONING: Needs something exotic\n" +
		"TOOLS_NEEDED: telepathy\n" +
		"RETRIEVAL_NEEDED: no"
	response := &scriptedModel{response: "On it."}

	_, run := buildPipeline(t, decisionText, response, nil)

	state := run(model.LeadMessage{Email: "jane@acme.com", Message: "Do the thing"})

	require.Len(t, state.ToolResults, 1)
	assert.False(t, state.ToolResults[0].Success)
	assert.Equal(t, "Unknown tool: telepathy", state.ToolResults[0].Error)
	require.Len(t, state.ToolErrors, 1)
}
