package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository"
	"contest-engine-backend/internal/features/contest/repository/memory"
	poolmemory "contest-engine-backend/internal/features/pool/repository/memory"
	poolservice "contest-engine-backend/internal/features/pool/service"
	walletmemory "contest-engine-backend/internal/features/wallet/repository/memory"
)

type schedFixture struct {
	repo   *memory.Repository
	sender *fakeSender
	dist   *DistributionService
	sched  *SchedulerService
}

func newSchedFixture(t *testing.T, now time.Time) *schedFixture {
	t.Helper()

	f := &schedFixture{
		repo:   memory.NewContestRepository(),
		sender: &fakeSender{},
	}
	pool := poolservice.NewPoolService(poolmemory.NewPoolRepository())
	f.dist = NewDistributionService(f.repo, pool, walletmemory.NewWalletRepository(), f.sender, &fakeChain{}, time.Millisecond, time.Second)
	f.sched = NewSchedulerService(f.repo, NewRankingService(f.repo), f.dist, time.Minute, time.Hour)
	f.setNow(now)
	return f
}

func (f *schedFixture) setNow(now time.Time) {
	f.sched.now = func() time.Time { return now }
	f.dist.now = func() time.Time { return now }
}

func (f *schedFixture) expiredContest(t *testing.T, id string, winnersCount int) *models.Contest {
	t.Helper()

	start := testStart
	end := start.Add(24 * time.Hour)
	prizes := make([]models.Prize, winnersCount)
	for i := range prizes {
		prizes[i] = models.Prize{Kind: models.PrizeKindCustom, Title: "prize"}
	}
	contest := &models.Contest{
		ID:           id,
		ChannelID:    1001,
		Status:       models.ContestStatusActive,
		ActivityType: models.ActivityTypeAll,
		Duration:     models.Duration24h,
		WinnersCount: winnersCount,
		StartsAt:     &start,
		EndsAt:       &end,
		Prizes:       prizes,
	}
	require.NoError(t, f.repo.Create(context.Background(), contest))
	return contest
}

func TestRunTickCompletesExpiredContest(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	contest := f.expiredContest(t, "exp-1", 2)
	ctx := context.Background()

	base := testStart.Add(time.Hour)
	seedStats(t, f.repo, contest.ID, 1, 30, base)
	seedStats(t, f.repo, contest.ID, 2, 10, base)
	seedStats(t, f.repo, contest.ID, 3, 20, base)

	require.NoError(t, f.sched.RunTick(ctx))

	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Winners, 2)
	assert.Equal(t, int64(1), got.Winners[0].TelegramID)
	assert.Equal(t, 1, got.Winners[0].Position)
	assert.Equal(t, int64(30), got.Winners[0].Points)
	assert.Equal(t, int64(3), got.Winners[1].TelegramID)
	assert.Equal(t, 2, got.Winners[1].Position)

	for _, winner := range got.Winners {
		record, err := f.repo.GetDistribution(ctx, contest.ID, winner.TelegramID, winner.Position)
		require.NoError(t, err)
		assert.Equal(t, models.DistributionStatusSent, record.Status)
	}
}

func TestRunTickDoubleTickIsIdempotent(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	contest := f.expiredContest(t, "exp-2", 1)
	ctx := context.Background()
	seedStats(t, f.repo, contest.ID, 1, 30, testStart.Add(time.Hour))

	require.NoError(t, f.sched.RunTick(ctx))
	require.NoError(t, f.sched.RunTick(ctx))

	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	require.Len(t, got.Winners, 1, "second tick must not duplicate winners")

	records, err := f.repo.ListDistributions(ctx, contest.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1, "second tick must not duplicate distribution records")
}

func TestRunTickIgnoresRunningContests(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(time.Hour))
	contest := f.expiredContest(t, "running", 1)
	ctx := context.Background()

	require.NoError(t, f.sched.RunTick(ctx))

	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusActive, got.Status)
	assert.Empty(t, got.Winners)
}

func TestRunTickContestWithNoParticipants(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	contest := f.expiredContest(t, "empty", 3)
	ctx := context.Background()

	require.NoError(t, f.sched.RunTick(ctx))

	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusCompleted, got.Status)
	assert.Empty(t, got.Winners)
}

func TestSecondChanceDrawAfterDelay(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	contest := f.expiredContest(t, "sc-1", 1)
	ctx := context.Background()
	seedStats(t, f.repo, contest.ID, 1, 30, testStart.Add(time.Hour))
	seedStats(t, f.repo, contest.ID, 2, 10, testStart.Add(time.Hour))

	require.NoError(t, f.sched.RunTick(ctx))

	// Opt-ins: a losing participant and the main winner (excluded).
	for _, telegramID := range []int64{1, 2} {
		_ = f.repo.AddSecondChanceEntry(ctx, &models.SecondChanceEntry{
			ContestID:  contest.ID,
			TelegramID: telegramID,
		})
	}

	// Before the delay elapses nothing is drawn.
	require.NoError(t, f.sched.RunTick(ctx))
	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SecondChanceDrawnAt)
	require.Len(t, got.Winners, 1)

	f.setNow(testStart.Add(27 * time.Hour))
	require.NoError(t, f.sched.RunTick(ctx))

	got, err = f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SecondChanceDrawnAt)
	require.Len(t, got.Winners, 2)
	assert.Equal(t, int64(2), got.Winners[1].TelegramID, "main winner must be excluded from the draw")
	assert.True(t, got.Winners[1].SecondChance)
	assert.Equal(t, 2, got.Winners[1].Position)

	record, err := f.repo.GetDistribution(ctx, contest.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, models.DistributionStatusSent, record.Status)

	// The marker makes the draw happen at most once.
	require.NoError(t, f.sched.RunTick(ctx))
	got, err = f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.Len(t, got.Winners, 2)
}

func TestSecondChanceDrawCapped(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	contest := f.expiredContest(t, "sc-cap", 1)
	ctx := context.Background()
	seedStats(t, f.repo, contest.ID, 1, 30, testStart.Add(time.Hour))

	require.NoError(t, f.sched.RunTick(ctx))

	for telegramID := int64(10); telegramID < 20; telegramID++ {
		require.NoError(t, f.repo.AddSecondChanceEntry(ctx, &models.SecondChanceEntry{
			ContestID:  contest.ID,
			TelegramID: telegramID,
		}))
	}

	f.setNow(testStart.Add(27 * time.Hour))
	require.NoError(t, f.sched.RunTick(ctx))

	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.Len(t, got.Winners, 1+SecondChanceWinnersCap)
}

func TestRunRecoveryResumesStuckCompletion(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	contest := f.expiredContest(t, "stuck", 1)
	ctx := context.Background()
	seedStats(t, f.repo, contest.ID, 1, 30, testStart.Add(time.Hour))

	// A crash right after the claim leaves the contest in completing with
	// no winners drawn.
	claimed, err := f.repo.UpdateStatusIf(ctx, contest.ID, models.ContestStatusActive, models.ContestStatusCompleting)
	require.NoError(t, err)
	require.True(t, claimed)

	// Regular ticks only select active contests and pass it by.
	require.NoError(t, f.sched.RunTick(ctx))
	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContestStatusCompleting, got.Status)
	require.Empty(t, got.Winners)

	require.NoError(t, f.sched.RunRecovery(ctx))

	got, err = f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Winners, 1)
	assert.Equal(t, int64(1), got.Winners[0].TelegramID)

	record, err := f.repo.GetDistribution(ctx, contest.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, models.DistributionStatusSent, record.Status)
}

func TestRunRecoverySkipsLiveCompletion(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	contest := f.expiredContest(t, "live", 1)
	ctx := context.Background()

	claimed, err := f.repo.UpdateStatusIf(ctx, contest.ID, models.ContestStatusActive, models.ContestStatusCompleting)
	require.NoError(t, err)
	require.True(t, claimed)

	// Another scheduler still holds the completion lock: hands off.
	require.NoError(t, f.repo.AcquireLock(ctx, "complete:"+contest.ID, time.Minute))
	require.NoError(t, f.sched.RunRecovery(ctx))

	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusCompleting, got.Status)
}

func TestRunRecoveryRedrivesMissingRecords(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	ctx := context.Background()

	completedAt := testStart.Add(24 * time.Hour)
	contest := &models.Contest{
		ID:           "rec-1",
		ChannelID:    1001,
		Status:       models.ContestStatusCompleted,
		ActivityType: models.ActivityTypeAll,
		Duration:     models.Duration24h,
		WinnersCount: 2,
		Prizes: []models.Prize{
			{Kind: models.PrizeKindCustom, Title: "first"},
			{Kind: models.PrizeKindCustom, Title: "second"},
		},
		Winners: []models.Winner{
			{TelegramID: 1, Position: 1, Sent: true},
			{TelegramID: 2, Position: 2},
		},
		CompletedAt: &completedAt,
	}
	require.NoError(t, f.repo.Create(ctx, contest))

	require.NoError(t, f.sched.RunRecovery(ctx))

	record, err := f.repo.GetDistribution(ctx, contest.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, models.DistributionStatusSent, record.Status)

	// The already-sent winner gained no record out of thin air.
	_, err = f.repo.GetDistribution(ctx, contest.ID, 1, 1)
	assert.ErrorIs(t, err, repository.ErrDistributionNotFound)
}

func TestRunRecoveryLeavesFailedRecordsToRetry(t *testing.T) {
	f := newSchedFixture(t, testStart.Add(25*time.Hour))
	ctx := context.Background()

	completedAt := testStart.Add(24 * time.Hour)
	contest := &models.Contest{
		ID:           "rec-2",
		Status:       models.ContestStatusCompleted,
		ActivityType: models.ActivityTypeAll,
		Duration:     models.Duration24h,
		WinnersCount: 1,
		Prizes:       []models.Prize{{Kind: models.PrizeKindOnDemandGift, GiftID: "bear"}},
		Winners:      []models.Winner{{TelegramID: 1, Position: 1}},
		CompletedAt:  &completedAt,
	}
	require.NoError(t, f.repo.Create(ctx, contest))

	failed := &models.PrizeDistribution{
		ID:         "dist-failed",
		ContestID:  contest.ID,
		TelegramID: 1,
		Position:   1,
		PrizeKind:  models.PrizeKindOnDemandGift,
		Status:     models.DistributionStatusFailed,
		Attempts:   2,
	}
	require.NoError(t, f.repo.SaveDistribution(ctx, failed))

	require.NoError(t, f.sched.RunRecovery(ctx))

	record, err := f.repo.GetDistributionByID(ctx, "dist-failed")
	require.NoError(t, err)
	assert.Equal(t, models.DistributionStatusFailed, record.Status)
	assert.Equal(t, 2, record.Attempts, "recovery must not touch existing records")
	assert.Empty(t, f.sender.calls)
}

func TestStartStop(t *testing.T) {
	f := newSchedFixture(t, testStart)

	f.sched.Start()
	f.sched.Start() // second Start is a no-op
	f.sched.Stop()
	f.sched.Stop() // second Stop is a no-op
}
