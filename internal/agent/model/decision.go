package model

// DecisionType enumerates the routes the decision stage can choose.
type DecisionType string

const (
	DecisionRetrieve   DecisionType = "retrieve"
	DecisionReasonOnly DecisionType = "reason_only"
	DecisionUseTool    DecisionType = "use_tool"
	DecisionClarify    DecisionType = "clarify"
	DecisionEscalate   DecisionType = "escalate"
)

func (d DecisionType) String() string {
	return string(d)
}

// DecisionOutput is the structured result of one decision-model call.
type DecisionOutput struct {
	Decision         DecisionType `json:"decision"`
	Confidence       float64      `json:"confidence"`
	Reasoning        string       `json:"reasoning"`
	ToolsNeeded      []string     `json:"tools_needed"`
	RetrievalNeeded  bool         `json:"retrieval_needed"`
	EscalationReason string       `json:"escalation_reason,omitempty"`
}
