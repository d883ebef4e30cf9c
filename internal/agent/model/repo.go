package model

import (
	"context"
	"time"
)

// LeadRepository is the factual memory: leads, interactions and escalations.
type LeadRepository interface {
	// GetOrCreate returns the lead for the given email, creating a new one
	// when none exists yet.
	GetOrCreate(ctx context.Context, email, name string, source LeadSource) (*Lead, error)

	// GetByID retrieves a lead by its identifier.
	GetByID(ctx context.Context, id string) (*Lead, error)

	// GetByEmail retrieves a lead through the email index.
	GetByEmail(ctx context.Context, email string) (*Lead, error)

	// Update applies the non-nil fields of the patch and returns the updated lead.
	Update(ctx context.Context, id string, patch LeadUpdate) (*Lead, error)

	// AddInteraction appends an exchange to the lead history.
	AddInteraction(ctx context.Context, it *Interaction) error

	// RecentInteractions returns up to limit interactions, newest first.
	RecentInteractions(ctx context.Context, leadID string, limit int) ([]Interaction, error)

	// AddEscalation records a hand-off event.
	AddEscalation(ctx context.Context, ev *EscalationEvent) error

	// ScheduleFollowup sets next_followup_at and indexes the lead for the sweep.
	ScheduleFollowup(ctx context.Context, leadID string, at time.Time) error

	// DueForFollowup lists leads whose follow-up time has passed.
	DueForFollowup(ctx context.Context, now time.Time) ([]*Lead, error)
}

// LeadUpdate is a partial update; nil fields are left untouched.
type LeadUpdate struct {
	Name               *string
	Company            *string
	Phone              *string
	Status             *LeadStatus
	QualificationScore *float64
	BudgetRange        *string
	Timeline           *string
	DecisionMaker      *string
	LastContactedAt    *time.Time
	NextFollowupAt     *time.Time
}

// ConversationRepository stores the rolling conversation per lead.
type ConversationRepository interface {
	// AppendTurn adds one utterance to the lead's conversation.
	AppendTurn(ctx context.Context, leadID string, turn Turn) error

	// LoadHistory returns up to limit turns, oldest first.
	LoadHistory(ctx context.Context, leadID string, limit int) ([]Turn, error)

	// ClearHistory removes the conversation for a lead.
	ClearHistory(ctx context.Context, leadID string) error
}
