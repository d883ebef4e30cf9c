package model

import "time"

// LeadStatus enumerates the lifecycle states of a lead.
type LeadStatus string

const (
	StatusNew              LeadStatus = "new"
	StatusContacted        LeadStatus = "contacted"
	StatusQualified        LeadStatus = "qualified"
	StatusUnqualified      LeadStatus = "unqualified"
	StatusMeetingScheduled LeadStatus = "meeting_scheduled"
	StatusProposalSent     LeadStatus = "proposal_sent"
	StatusWon              LeadStatus = "won"
	StatusLost             LeadStatus = "lost"
	StatusEscalated        LeadStatus = "escalated"
)

func (s LeadStatus) String() string {
	return string(s)
}

// LeadSource enumerates where a lead came from.
type LeadSource string

const (
	SourceWebsiteForm LeadSource = "website_form"
	SourceEmail       LeadSource = "email"
	SourcePhone       LeadSource = "phone"
	SourceReferral    LeadSource = "referral"
	SourceSocialMedia LeadSource = "social_media"
	SourceOther       LeadSource = "other"
)

// Lead is the factual record of a prospective customer.
type Lead struct {
	ID      string     `json:"id"`
	Email   string     `json:"email"`
	Name    string     `json:"name,omitempty"`
	Company string     `json:"company,omitempty"`
	Phone   string     `json:"phone,omitempty"`
	Status  LeadStatus `json:"status"`
	Source  LeadSource `json:"source"`

	QualificationScore float64 `json:"qualification_score"`
	BudgetRange        string  `json:"budget_range,omitempty"`
	Timeline           string  `json:"timeline,omitempty"`
	DecisionMaker      string  `json:"decision_maker,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	NextFollowupAt  *time.Time `json:"next_followup_at,omitempty"`
}

// Context flattens the attributes the decision prompt cares about.
func (l *Lead) Context() map[string]any {
	return map[string]any{
		"lead_id":             l.ID,
		"email":               l.Email,
		"name":                l.Name,
		"company":             l.Company,
		"status":              l.Status.String(),
		"source":              string(l.Source),
		"qualification_score": l.QualificationScore,
	}
}

// Interaction is one exchange in the lead history, annotated with the
// decision metadata of the run that produced it.
type Interaction struct {
	ID               string       `json:"id"`
	LeadID           string       `json:"lead_id"`
	MessageFrom      string       `json:"message_from"` // "lead" or "agent"
	MessageText      string       `json:"message_text"`
	DecisionType     DecisionType `json:"decision_type,omitempty"`
	ConfidenceScore  float64      `json:"confidence_score,omitempty"`
	ToolsUsed        []string     `json:"tools_used,omitempty"`
	SourcesRetrieved []string     `json:"sources_retrieved,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// EscalationEvent records a hand-off to a human.
type EscalationEvent struct {
	ID              string         `json:"id"`
	LeadID          string         `json:"lead_id"`
	Reason          string         `json:"reason"`
	ConfidenceScore float64        `json:"confidence_score"`
	Context         map[string]any `json:"context,omitempty"`
	Resolved        string         `json:"resolved"` // pending, resolved, ignored
	CreatedAt       time.Time      `json:"created_at"`
}
