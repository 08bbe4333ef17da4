package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contest-engine-backend/internal/features/contest/models"
	"contest-engine-backend/internal/features/contest/repository/memory"
	poolmemory "contest-engine-backend/internal/features/pool/repository/memory"
	poolservice "contest-engine-backend/internal/features/pool/service"
)

type lifecycleFixture struct {
	repo *memory.Repository
	pool *poolservice.PoolService
	svc  *ContestService
}

func newLifecycleFixture(t *testing.T, now time.Time) *lifecycleFixture {
	t.Helper()

	f := &lifecycleFixture{
		repo: memory.NewContestRepository(),
		pool: poolservice.NewPoolService(poolmemory.NewPoolRepository()),
	}
	f.svc = NewContestService(f.repo, f.pool)
	f.svc.now = func() time.Time { return now }
	return f
}

func validCreate() *models.ContestCreate {
	return &models.ContestCreate{
		ChannelID:    1001,
		ActivityType: models.ActivityTypeAll,
		Duration:     models.Duration48h,
		WinnersCount: 2,
		Prizes: []models.Prize{
			{Kind: models.PrizeKindCustom, Title: "first"},
			{Kind: models.PrizeKindCustom, Title: "second"},
		},
	}
}

func TestCreateContest(t *testing.T) {
	f := newLifecycleFixture(t, testStart)

	contest, err := f.svc.Create(context.Background(), validCreate())
	require.NoError(t, err)
	assert.NotEmpty(t, contest.ID)
	assert.Equal(t, models.ContestStatusDraft, contest.Status)
	assert.Nil(t, contest.StartsAt, "window is stamped at activation, not creation")
	assert.Nil(t, contest.EndsAt)
}

func TestCreateContestValidation(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()

	missingPrize := validCreate()
	missingPrize.Prizes = missingPrize.Prizes[:1]
	_, err := f.svc.Create(ctx, missingPrize)
	assert.Error(t, err, "prize count must match winners count")

	badDuration := validCreate()
	badDuration.Duration = models.ContestDuration(time.Minute)
	_, err = f.svc.Create(ctx, badDuration)
	assert.Error(t, err)

	badPrize := validCreate()
	badPrize.Prizes[0] = models.Prize{Kind: models.PrizeKindPooledGift}
	_, err = f.svc.Create(ctx, badPrize)
	assert.Error(t, err, "pooled prize needs a gift id")
}

func TestLifecycleHappyPath(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()

	contest, err := f.svc.Create(ctx, validCreate())
	require.NoError(t, err)

	contest, err = f.svc.MarkAwaitingPayment(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusPendingPayment, contest.Status)

	contest, err = f.svc.Activate(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusActive, contest.Status)
	require.NotNil(t, contest.StartsAt)
	require.NotNil(t, contest.EndsAt)
	assert.Equal(t, testStart, *contest.StartsAt)
	assert.Equal(t, testStart.Add(48*time.Hour), *contest.EndsAt)
}

func TestActivateSkipsDraft(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()

	contest, err := f.svc.Create(ctx, validCreate())
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, contest.ID)
	assert.Error(t, err, "draft cannot activate without passing the payment gate")
}

func TestActivateReservesPooledPrizes(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()
	require.NoError(t, f.pool.SetTotal(ctx, "star", 10))

	create := validCreate()
	create.Prizes = []models.Prize{
		{Kind: models.PrizeKindPooledGift, GiftID: "star"},
		{Kind: models.PrizeKindCustom, Title: "second"},
	}
	contest, err := f.svc.Create(ctx, create)
	require.NoError(t, err)
	_, err = f.svc.MarkAwaitingPayment(ctx, contest.ID)
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, contest.ID)
	require.NoError(t, err)

	entry, err := f.pool.Entry(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Reserved)

	got, err := f.repo.GetByID(ctx, contest.ID)
	require.NoError(t, err)
	assert.True(t, got.Prizes[0].Reserved, "the hold must be attributed to the prize slot")
	assert.False(t, got.Prizes[1].Reserved)
}

func TestActivateWithDepletedPoolStillActivates(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()

	create := validCreate()
	create.WinnersCount = 1
	create.Prizes = []models.Prize{{Kind: models.PrizeKindPooledGift, GiftID: "rare"}}
	contest, err := f.svc.Create(ctx, create)
	require.NoError(t, err)
	_, err = f.svc.MarkAwaitingPayment(ctx, contest.ID)
	require.NoError(t, err)

	contest, err = f.svc.Activate(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusActive, contest.Status)
}

func TestCancelReleasesReservations(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()
	require.NoError(t, f.pool.SetTotal(ctx, "star", 10))

	create := validCreate()
	create.WinnersCount = 1
	create.Prizes = []models.Prize{{Kind: models.PrizeKindPooledGift, GiftID: "star"}}
	contest, err := f.svc.Create(ctx, create)
	require.NoError(t, err)
	_, err = f.svc.MarkAwaitingPayment(ctx, contest.ID)
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, contest.ID)
	require.NoError(t, err)

	contest, err = f.svc.Cancel(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusCancelled, contest.Status)

	entry, err := f.pool.Entry(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.Reserved)

	// Terminal: no way back.
	_, err = f.svc.Activate(ctx, contest.ID)
	assert.Error(t, err)
}

func TestCancelReleasesOnlyOwnHolds(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()
	require.NoError(t, f.pool.SetTotal(ctx, "star", 1))

	activate := func(t *testing.T) *models.Contest {
		t.Helper()
		create := validCreate()
		create.WinnersCount = 1
		create.Prizes = []models.Prize{{Kind: models.PrizeKindPooledGift, GiftID: "star"}}
		contest, err := f.svc.Create(ctx, create)
		require.NoError(t, err)
		_, err = f.svc.MarkAwaitingPayment(ctx, contest.ID)
		require.NoError(t, err)
		contest, err = f.svc.Activate(ctx, contest.ID)
		require.NoError(t, err)
		return contest
	}

	// First contest takes the only unit; the second activates without one.
	first := activate(t)
	second := activate(t)

	entry, err := f.pool.Entry(ctx, "star")
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.Reserved)

	_, err = f.svc.Cancel(ctx, second.ID)
	require.NoError(t, err)

	entry, err = f.pool.Entry(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Reserved, "cancelling a contest without a hold must not release another contest's hold")

	_, err = f.svc.Cancel(ctx, first.ID)
	require.NoError(t, err)

	entry, err = f.pool.Entry(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.Reserved)
}

func TestCancelRequiresActive(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()

	contest, err := f.svc.Create(ctx, validCreate())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, contest.ID)
	assert.Error(t, err)
}

func TestJoinSecondChance(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()

	completedAt := testStart
	contest := &models.Contest{
		ID:           "sc-join",
		Status:       models.ContestStatusCompleted,
		ActivityType: models.ActivityTypeAll,
		Duration:     models.Duration24h,
		WinnersCount: 1,
		Prizes:       []models.Prize{{Kind: models.PrizeKindCustom, Title: "prize"}},
		Winners:      []models.Winner{{TelegramID: 1, Position: 1}},
		CompletedAt:  &completedAt,
	}
	require.NoError(t, f.repo.Create(ctx, contest))

	require.NoError(t, f.svc.JoinSecondChance(ctx, contest.ID, 2, "proof"))

	err := f.svc.JoinSecondChance(ctx, contest.ID, 2, "proof")
	assert.ErrorIs(t, err, ErrAlreadyOptedIn)

	err = f.svc.JoinSecondChance(ctx, contest.ID, 1, "proof")
	assert.Error(t, err, "main winners cannot opt in")
}

func TestJoinSecondChanceRequiresCompleted(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()

	contest, err := f.svc.Create(ctx, validCreate())
	require.NoError(t, err)

	err = f.svc.JoinSecondChance(ctx, contest.ID, 2, "proof")
	assert.Error(t, err)
}

func TestJoinSecondChanceClosedAfterDraw(t *testing.T) {
	f := newLifecycleFixture(t, testStart)
	ctx := context.Background()

	completedAt := testStart
	drawnAt := testStart.Add(2 * time.Hour)
	contest := &models.Contest{
		ID:                  "sc-closed",
		Status:              models.ContestStatusCompleted,
		ActivityType:        models.ActivityTypeAll,
		Duration:            models.Duration24h,
		WinnersCount:        1,
		Prizes:              []models.Prize{{Kind: models.PrizeKindCustom, Title: "prize"}},
		CompletedAt:         &completedAt,
		SecondChanceDrawnAt: &drawnAt,
	}
	require.NoError(t, f.repo.Create(ctx, contest))

	err := f.svc.JoinSecondChance(ctx, contest.ID, 2, "proof")
	assert.Error(t, err)
}
