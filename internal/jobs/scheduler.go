package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/tools"
	logx "github.com/leadpilot-ai/server/pkg/logger"
)

// FollowupScheduler periodically sweeps leads whose follow-up time has
// passed and sends each one a follow-up email through the tool registry.
type FollowupScheduler struct {
	leads           model.LeadRepository
	registry        *tools.Registry
	cron            *cron.Cron
	intervalMinutes int
	afterDays       int
}

func NewFollowupScheduler(leads model.LeadRepository, registry *tools.Registry, cfg model.SchedulerConfig) *FollowupScheduler {
	interval := cfg.FollowupIntervalMinutes
	if interval <= 0 {
		interval = 30
	}
	afterDays := cfg.FollowupAfterDays
	if afterDays <= 0 {
		afterDays = 7
	}
	return &FollowupScheduler{
		leads:           leads,
		registry:        registry,
		cron:            cron.New(),
		intervalMinutes: interval,
		afterDays:       afterDays,
	}
}

func (s *FollowupScheduler) Start() error {
	spec := fmt.Sprintf("@every %dm", s.intervalMinutes)
	if _, err := s.cron.AddFunc(spec, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule followup sweep: %w", err)
	}
	s.cron.Start()
	logx.Info().Int("interval_minutes", s.intervalMinutes).Msg("followup scheduler started")
	return nil
}

func (s *FollowupScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep sends one follow-up to every due lead, then pushes their next
// follow-up out. A failed send leaves the lead due for the next sweep.
func (s *FollowupScheduler) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	due, err := s.leads.DueForFollowup(ctx, now)
	if err != nil {
		logx.Error().Err(err).Msg("followup sweep failed to list due leads")
		return
	}
	if len(due) == 0 {
		return
	}
	logx.Info().Int("due", len(due)).Msg("followup sweep started")

	for _, lead := range due {
		res := s.registry.Execute(ctx, "send_followup", tools.Params{
			"to_email":  lead.Email,
			"lead_name": lead.Name,
		})
		if !res.Success {
			logx.Warn().
				Str("lead_id", lead.ID).
				Str("error", res.Error).
				Msg("followup send failed")
			continue
		}

		next := now.AddDate(0, 0, s.afterDays)
		if _, err := s.leads.Update(ctx, lead.ID, model.LeadUpdate{
			LastContactedAt: &now,
			NextFollowupAt:  &next,
		}); err != nil {
			logx.Error().Err(err).Str("lead_id", lead.ID).Msg("failed to reschedule followup")
			continue
		}
		logx.Info().
			Str("lead_id", lead.ID).
			Time("next_followup_at", next).
			Msg("followup sent")
	}
}
