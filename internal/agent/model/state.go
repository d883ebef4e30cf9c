package model

import (
	"time"

	"github.com/leadpilot-ai/server/internal/rag"
)

// LeadMessage is the inbound payload that starts one pipeline run.
type LeadMessage struct {
	Email    string         `json:"email"`
	Name     string         `json:"name,omitempty"`
	Message  string         `json:"message"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Turn is one utterance of the lead/agent conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolOutcome records the result of one tool action during a run.
type ToolOutcome struct {
	Action  string         `json:"action"`
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RunState carries everything one pipeline run accumulates. It is the graph's
// single in/out value: every node receives it, mutates its own slice of fields
// and passes it on.
type RunState struct {
	// Input
	LeadID    string
	LeadEmail string
	Query     string
	Source    string

	// Context
	LeadContext         map[string]any
	ConversationHistory []Turn

	// Decision
	Decision          DecisionType
	DecisionReasoning string
	Confidence        float64

	// RAG
	RetrievalNeeded   bool
	RetrievedSources  []*rag.Evidence
	RerankedSources   []*rag.Evidence
	ConflictsDetected bool

	// Response
	ResponseText string
	SourcesUsed  []string
	Grounded     bool

	// Tools
	ToolsToUse  []string
	ToolResults []ToolOutcome
	ToolErrors  []string

	// Escalation
	Escalated        bool
	EscalationReason string

	// Metadata
	TraceID    string
	NextAction string
	Errors     []string
	StartedAt  time.Time
}

// PipelineOutput is the externally visible result of a run.
type PipelineOutput struct {
	ResponseText string       `json:"response_text"`
	Confidence   float64      `json:"confidence"`
	DecisionType DecisionType `json:"decision_type"`
	SourcesUsed  []string     `json:"sources_used"`
	ToolsCalled  []string     `json:"tools_called"`
	Escalated    bool         `json:"escalated"`
	NextAction   string       `json:"next_action,omitempty"`
}

// Output projects the run state onto the response shape the API returns.
func (s *RunState) Output() *PipelineOutput {
	tools := make([]string, 0, len(s.ToolResults))
	for _, r := range s.ToolResults {
		tools = append(tools, r.Action)
	}
	sources := s.SourcesUsed
	if sources == nil {
		sources = []string{}
	}
	return &PipelineOutput{
		ResponseText: s.ResponseText,
		Confidence:   s.Confidence,
		DecisionType: s.Decision,
		SourcesUsed:  sources,
		ToolsCalled:  tools,
		Escalated:    s.Escalated,
		NextAction:   s.NextAction,
	}
}

// AddError appends a pipeline error without interrupting the run.
func (s *RunState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}
