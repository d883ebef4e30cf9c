package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/core/errx"
)

// CRMAdapter executes lead-management actions against the lead repository.
type CRMAdapter struct {
	repo model.LeadRepository
}

func NewCRMAdapter(repo model.LeadRepository) *CRMAdapter {
	return &CRMAdapter{repo: repo}
}

func (a *CRMAdapter) Name() string {
	return "crm_tool"
}

func (a *CRMAdapter) Kind() Kind {
	return KindCRM
}

func (a *CRMAdapter) Execute(ctx context.Context, action string, params Params) Result {
	switch action {
	case "upsert":
		return a.upsert(ctx, params)
	case "qualify":
		return a.qualify(ctx, params)
	case "update_status":
		return a.updateStatus(ctx, params)
	case "get_lead":
		return a.getLead(ctx, params)
	case "schedule_followup":
		return a.scheduleFollowup(ctx, params)
	default:
		return Failure("unknown CRM action: " + action)
	}
}

func (a *CRMAdapter) upsert(ctx context.Context, params Params) Result {
	email := params.String("email")
	if email == "" {
		return Failure("upsert requires an email")
	}

	actionType := "updated"
	lead, err := a.repo.GetByEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			return crmFailure(err)
		}
		actionType = "created"
		lead, err = a.repo.GetOrCreate(ctx, email, params.String("name"), model.LeadSource(params.String("source")))
		if err != nil {
			return crmFailure(err)
		}
	}

	patch := model.LeadUpdate{}
	if name := params.String("name"); name != "" {
		patch.Name = &name
	}
	if company := params.String("company"); company != "" {
		patch.Company = &company
	}
	if phone := params.String("phone"); phone != "" {
		patch.Phone = &phone
	}
	if patch != (model.LeadUpdate{}) {
		lead, err = a.repo.Update(ctx, lead.ID, patch)
		if err != nil {
			return crmFailure(err)
		}
	}

	return Result{Success: true, Data: map[string]any{
		"action":  actionType,
		"lead_id": lead.ID,
		"email":   lead.Email,
		"status":  lead.Status.String(),
	}}
}

func (a *CRMAdapter) qualify(ctx context.Context, params Params) Result {
	leadID := params.String("lead_id")
	patch := model.LeadUpdate{}

	if budget := params.String("budget_range"); budget != "" {
		patch.BudgetRange = &budget
	}
	if timeline := params.String("timeline"); timeline != "" {
		patch.Timeline = &timeline
	}
	if dm := params.String("decision_maker"); dm != "" {
		patch.DecisionMaker = &dm
	}
	if score, ok := params.Float("qualification_score"); ok {
		patch.QualificationScore = &score
		// score drives the status transition
		switch {
		case score >= 0.7:
			status := model.StatusQualified
			patch.Status = &status
		case score < 0.4:
			status := model.StatusUnqualified
			patch.Status = &status
		}
	}

	lead, err := a.repo.Update(ctx, leadID, patch)
	if err != nil {
		if isNotFound(err) {
			return Failure("Lead not found: " + leadID)
		}
		return crmFailure(err)
	}

	return Result{Success: true, Data: map[string]any{
		"lead_id":             lead.ID,
		"qualification_score": lead.QualificationScore,
		"status":              lead.Status.String(),
	}}
}

var validStatuses = map[model.LeadStatus]struct{}{
	model.StatusNew:              {},
	model.StatusContacted:        {},
	model.StatusQualified:        {},
	model.StatusUnqualified:      {},
	model.StatusMeetingScheduled: {},
	model.StatusProposalSent:     {},
	model.StatusWon:              {},
	model.StatusLost:             {},
	model.StatusEscalated:        {},
}

func (a *CRMAdapter) updateStatus(ctx context.Context, params Params) Result {
	leadID := params.String("lead_id")
	status := model.LeadStatus(params.String("status"))
	if _, ok := validStatuses[status]; !ok {
		return Failure("invalid status: " + string(status))
	}

	now := time.Now().UTC()
	lead, err := a.repo.Update(ctx, leadID, model.LeadUpdate{
		Status:          &status,
		LastContactedAt: &now,
	})
	if err != nil {
		if isNotFound(err) {
			return Failure("Lead not found: " + leadID)
		}
		return crmFailure(err)
	}

	return Result{Success: true, Data: map[string]any{
		"lead_id": lead.ID,
		"status":  lead.Status.String(),
	}}
}

func (a *CRMAdapter) getLead(ctx context.Context, params Params) Result {
	leadID := params.String("lead_id")
	lead, err := a.repo.GetByID(ctx, leadID)
	if err != nil {
		if isNotFound(err) {
			return Failure("Lead not found: " + leadID)
		}
		return crmFailure(err)
	}

	b, err := json.Marshal(lead)
	if err != nil {
		return Failure(fmt.Sprintf("marshal lead: %v", err))
	}
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return Failure(fmt.Sprintf("unmarshal lead: %v", err))
	}
	return Result{Success: true, Data: data}
}

func (a *CRMAdapter) scheduleFollowup(ctx context.Context, params Params) Result {
	leadID := params.String("lead_id")
	days := params.Int("days_from_now", 3)
	at := time.Now().UTC().AddDate(0, 0, days)

	if err := a.repo.ScheduleFollowup(ctx, leadID, at); err != nil {
		if isNotFound(err) {
			return Failure("Lead not found: " + leadID)
		}
		return crmFailure(err)
	}

	return Result{Success: true, Data: map[string]any{
		"lead_id":               leadID,
		"followup_scheduled_at": at.Format(time.RFC3339),
	}}
}

func isNotFound(err error) bool {
	var appErr *errx.AppError
	return errors.As(err, &appErr) && appErr.Status == http.StatusNotFound
}

// crmFailure treats repository errors as transient: storage hiccups are
// worth retrying.
func crmFailure(err error) Result {
	return TransientFailure(fmt.Sprintf("CRM operation failed: %v", err))
}

var _ Adapter = (*CRMAdapter)(nil)
