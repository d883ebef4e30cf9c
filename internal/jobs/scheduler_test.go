package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot-ai/server/internal/agent/model"
	"github.com/leadpilot-ai/server/internal/agent/repo"
	"github.com/leadpilot-ai/server/internal/tools"
)

func newSchedulerFixture(t *testing.T) (*FollowupScheduler, model.LeadRepository, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	leads := repo.NewRedisLeadRepository(rdb)
	registry := tools.NewRegistry(
		tools.NewExecutor(tools.WithBackoffBase(time.Millisecond)),
		tools.NewEmailAdapter(rdb),
	)
	scheduler := NewFollowupScheduler(leads, registry, model.SchedulerConfig{
		FollowupIntervalMinutes: 30,
		FollowupAfterDays:       7,
	})
	return scheduler, leads, rdb
}

func TestSweepSendsFollowupsAndReschedules(t *testing.T) {
	scheduler, leads, rdb := newSchedulerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	lead, err := leads.GetOrCreate(ctx, "jane@acme.com", "Jane", model.SourceWebsiteForm)
	require.NoError(t, err)
	require.NoError(t, leads.ScheduleFollowup(ctx, lead.ID, now.Add(-time.Hour)))

	scheduler.Sweep(ctx)

	outbox, err := rdb.LLen(ctx, "email:outbox").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), outbox)

	updated, err := leads.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.NextFollowupAt)
	assert.WithinDuration(t, now.AddDate(0, 0, 7), *updated.NextFollowupAt, time.Minute)
	require.NotNil(t, updated.LastContactedAt)

	// nothing left due, so a second sweep is a no-op
	scheduler.Sweep(ctx)
	outbox, err = rdb.LLen(ctx, "email:outbox").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), outbox)
}

func TestSweepSkipsLeadsNotYetDue(t *testing.T) {
	scheduler, leads, rdb := newSchedulerFixture(t)
	ctx := context.Background()

	lead, err := leads.GetOrCreate(ctx, "jane@acme.com", "Jane", model.SourceWebsiteForm)
	require.NoError(t, err)
	require.NoError(t, leads.ScheduleFollowup(ctx, lead.ID, time.Now().UTC().Add(48*time.Hour)))

	scheduler.Sweep(ctx)

	outbox, err := rdb.LLen(ctx, "email:outbox").Result()
	require.NoError(t, err)
	assert.Zero(t, outbox)
}

func TestSweepLeavesLeadDueWhenSendFails(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	leads := repo.NewRedisLeadRepository(rdb)
	// registry without an email adapter: every send fails permanently
	registry := tools.NewRegistry(tools.NewExecutor(tools.WithBackoffBase(time.Millisecond)))
	scheduler := NewFollowupScheduler(leads, registry, model.SchedulerConfig{})

	ctx := context.Background()
	now := time.Now().UTC()
	lead, err := leads.GetOrCreate(ctx, "jane@acme.com", "Jane", model.SourceWebsiteForm)
	require.NoError(t, err)
	require.NoError(t, leads.ScheduleFollowup(ctx, lead.ID, now.Add(-time.Hour)))

	scheduler.Sweep(ctx)

	due, err := leads.DueForFollowup(ctx, now)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
