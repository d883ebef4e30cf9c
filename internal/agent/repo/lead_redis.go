package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/core/errx"
	logx "github.com/leadpilot-ai/server/pkg/logger"
)

const followupIndexKey = "leads:followup"

// RedisLeadRepository is the factual memory. Leads live as JSON records with
// an email index, interactions and escalations as per-lead lists, and the
// follow-up schedule as a sorted set keyed by due time.
type RedisLeadRepository struct {
	rdb redis.Cmdable
}

func NewRedisLeadRepository(rdb redis.Cmdable) *RedisLeadRepository {
	return &RedisLeadRepository{rdb: rdb}
}

func (r *RedisLeadRepository) leadKey(id string) string {
	return fmt.Sprintf("lead:%s", id)
}

func (r *RedisLeadRepository) emailKey(email string) string {
	return fmt.Sprintf("lead:email:%s", email)
}

func (r *RedisLeadRepository) interactionsKey(id string) string {
	return fmt.Sprintf("lead:%s:interactions", id)
}

func (r *RedisLeadRepository) escalationsKey(id string) string {
	return fmt.Sprintf("lead:%s:escalations", id)
}

func (r *RedisLeadRepository) GetOrCreate(ctx context.Context, email, name string, source model.LeadSource) (*model.Lead, error) {
	id, err := r.rdb.Get(ctx, r.emailKey(email)).Result()
	if err == nil {
		return r.GetByID(ctx, id)
	}
	if err != redis.Nil {
		return nil, errx.WrapRedis(err)
	}

	if source == "" {
		source = model.SourceWebsiteForm
	}
	lead := &model.Lead{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Status:    model.StatusNew,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}

	created, err := r.rdb.SetNX(ctx, r.emailKey(email), lead.ID, 0).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	if !created {
		// lost the race, someone else registered this email first
		return r.GetByEmail(ctx, email)
	}

	if err := r.save(ctx, lead); err != nil {
		return nil, err
	}
	logx.Info().Str("lead_id", lead.ID).Str("email", email).Msg("lead created")
	return lead, nil
}

func (r *RedisLeadRepository) GetByID(ctx context.Context, id string) (*model.Lead, error) {
	raw, err := r.rdb.Get(ctx, r.leadKey(id)).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	var lead model.Lead
	if err := json.Unmarshal([]byte(raw), &lead); err != nil {
		return nil, fmt.Errorf("unmarshal lead %s: %w", id, err)
	}
	return &lead, nil
}

func (r *RedisLeadRepository) GetByEmail(ctx context.Context, email string) (*model.Lead, error) {
	id, err := r.rdb.Get(ctx, r.emailKey(email)).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	return r.GetByID(ctx, id)
}

func (r *RedisLeadRepository) Update(ctx context.Context, id string, patch model.LeadUpdate) (*model.Lead, error) {
	lead, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		lead.Name = *patch.Name
	}
	if patch.Company != nil {
		lead.Company = *patch.Company
	}
	if patch.Phone != nil {
		lead.Phone = *patch.Phone
	}
	if patch.Status != nil {
		lead.Status = *patch.Status
	}
	if patch.QualificationScore != nil {
		lead.QualificationScore = *patch.QualificationScore
	}
	if patch.BudgetRange != nil {
		lead.BudgetRange = *patch.BudgetRange
	}
	if patch.Timeline != nil {
		lead.Timeline = *patch.Timeline
	}
	if patch.DecisionMaker != nil {
		lead.DecisionMaker = *patch.DecisionMaker
	}
	if patch.LastContactedAt != nil {
		lead.LastContactedAt = patch.LastContactedAt
	}
	if patch.NextFollowupAt != nil {
		lead.NextFollowupAt = patch.NextFollowupAt
		if err := r.rdb.ZAdd(ctx, followupIndexKey, redis.Z{
			Score:  float64(patch.NextFollowupAt.Unix()),
			Member: lead.ID,
		}).Err(); err != nil {
			return nil, errx.WrapRedis(err)
		}
	}

	if err := r.save(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (r *RedisLeadRepository) save(ctx context.Context, lead *model.Lead) error {
	b, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}
	if err := r.rdb.Set(ctx, r.leadKey(lead.ID), b, 0).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisLeadRepository) AddInteraction(ctx context.Context, it *model.Interaction) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}
	if err := r.rdb.RPush(ctx, r.interactionsKey(it.LeadID), b).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisLeadRepository) RecentInteractions(ctx context.Context, leadID string, limit int) ([]model.Interaction, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	rows, err := r.rdb.LRange(ctx, r.interactionsKey(leadID), start, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.Interaction{}, nil
		}
		return nil, errx.WrapRedis(err)
	}

	// stored oldest first, returned newest first
	out := make([]model.Interaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		var it model.Interaction
		if err := json.Unmarshal([]byte(rows[i]), &it); err != nil {
			return nil, fmt.Errorf("unmarshal interaction: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *RedisLeadRepository) AddEscalation(ctx context.Context, ev *model.EscalationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Resolved == "" {
		ev.Resolved = "pending"
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal escalation: %w", err)
	}
	if err := r.rdb.RPush(ctx, r.escalationsKey(ev.LeadID), b).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisLeadRepository) ScheduleFollowup(ctx context.Context, leadID string, at time.Time) error {
	at = at.UTC()
	_, err := r.Update(ctx, leadID, model.LeadUpdate{NextFollowupAt: &at})
	return err
}

// DueForFollowup returns leads whose follow-up is due and who are still in a
// workable status. Leads that progressed past the funnel are dropped from
// the index as a side effect.
func (r *RedisLeadRepository) DueForFollowup(ctx context.Context, now time.Time) ([]*model.Lead, error) {
	ids, err := r.rdb.ZRangeByScore(ctx, followupIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}

	due := make([]*model.Lead, 0, len(ids))
	for _, id := range ids {
		lead, err := r.GetByID(ctx, id)
		if err != nil {
			logx.Warn().Err(err).Str("lead_id", id).Msg("followup index points at missing lead")
			continue
		}
		switch lead.Status {
		case model.StatusNew, model.StatusContacted, model.StatusQualified:
			due = append(due, lead)
		default:
			if err := r.rdb.ZRem(ctx, followupIndexKey, id).Err(); err != nil {
				return nil, errx.WrapRedis(err)
			}
		}
	}
	return due, nil
}

var _ model.LeadRepository = (*RedisLeadRepository)(nil)
