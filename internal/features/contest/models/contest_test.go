package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContestTransitions(t *testing.T) {
	tests := []struct {
		from    ContestStatus
		to      ContestStatus
		allowed bool
	}{
		{ContestStatusDraft, ContestStatusPendingPayment, true},
		{ContestStatusPendingPayment, ContestStatusActive, true},
		{ContestStatusActive, ContestStatusCompleting, true},
		{ContestStatusActive, ContestStatusCancelled, true},
		{ContestStatusCompleting, ContestStatusCompleted, true},

		{ContestStatusDraft, ContestStatusActive, false},
		{ContestStatusActive, ContestStatusCompleted, false},
		{ContestStatusCompleted, ContestStatusActive, false},
		{ContestStatusCancelled, ContestStatusActive, false},
		{ContestStatusCompleted, ContestStatusCompleting, false},
	}

	for _, tt := range tests {
		c := &Contest{Status: tt.from}
		assert.Equal(t, tt.allowed, c.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAcceptsActivity(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	c := &Contest{Status: ContestStatusActive, StartsAt: &start, EndsAt: &end}

	assert.True(t, c.AcceptsActivity(start.Add(time.Hour)))
	assert.False(t, c.AcceptsActivity(end.Add(time.Second)))

	c.Status = ContestStatusCompleting
	assert.False(t, c.AcceptsActivity(start.Add(time.Hour)))
}

func TestCountsAction(t *testing.T) {
	reactions := &Contest{ActivityType: ActivityTypeReactions}
	assert.True(t, reactions.CountsAction(ActionReaction))
	assert.False(t, reactions.CountsAction(ActionComment))
	assert.False(t, reactions.CountsAction(ActionReply))

	comments := &Contest{ActivityType: ActivityTypeComments}
	assert.False(t, comments.CountsAction(ActionReaction))
	assert.True(t, comments.CountsAction(ActionComment))
	assert.True(t, comments.CountsAction(ActionReply), "replies count as comments")

	all := &Contest{ActivityType: ActivityTypeAll}
	assert.True(t, all.CountsAction(ActionReaction))
	assert.True(t, all.CountsAction(ActionComment))
	assert.True(t, all.CountsAction(ActionReply))
}

func TestContestValidate(t *testing.T) {
	valid := &Contest{
		WinnersCount: 2,
		Duration:     Duration24h,
		ActivityType: ActivityTypeAll,
		Prizes: []Prize{
			{Kind: PrizeKindCustom, Title: "a"},
			{Kind: PrizeKindCustom, Title: "b"},
		},
	}
	require.NoError(t, valid.Validate())

	mismatch := *valid
	mismatch.WinnersCount = 3
	assert.ErrorIs(t, mismatch.Validate(), ErrPrizeCountMismatch)

	tooMany := *valid
	tooMany.WinnersCount = 101
	assert.ErrorIs(t, tooMany.Validate(), ErrInvalidWinnersCount)

	badDuration := *valid
	badDuration.Duration = ContestDuration(time.Minute)
	assert.ErrorIs(t, badDuration.Validate(), ErrInvalidDuration)
}

func TestPrizeValidate(t *testing.T) {
	tests := []struct {
		name  string
		prize Prize
		ok    bool
	}{
		{"pooled gift", Prize{Kind: PrizeKindPooledGift, GiftID: "star"}, true},
		{"pooled gift missing id", Prize{Kind: PrizeKindPooledGift}, false},
		{"ondemand gift", Prize{Kind: PrizeKindOnDemandGift, GiftID: "bear"}, true},
		{"chain transfer", Prize{Kind: PrizeKindChainTransfer, AmountNano: 100}, true},
		{"chain transfer zero amount", Prize{Kind: PrizeKindChainTransfer}, false},
		{"custom", Prize{Kind: PrizeKindCustom, Title: "t-shirt"}, true},
		{"custom untitled", Prize{Kind: PrizeKindCustom}, false},
		{"unknown kind", Prize{Kind: PrizeKind("mystery")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prize.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestActionKindBasePoints(t *testing.T) {
	for kind, want := range map[ActionKind]int64{
		ActionReaction: 1,
		ActionComment:  3,
		ActionReply:    2,
	} {
		got, err := kind.BasePoints()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ActionKind("view").BasePoints()
	assert.ErrorIs(t, err, ErrUnknownActionKind)
}

func TestBoostActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)

	bounded := &Boost{IsActive: true, ExpiresAt: &expires}
	assert.True(t, bounded.ActiveAt(now))
	assert.False(t, bounded.ActiveAt(expires))
	assert.False(t, bounded.ActiveAt(expires.Add(time.Second)))

	unbounded := &Boost{IsActive: true}
	assert.True(t, unbounded.ActiveAt(now.Add(1000*time.Hour)))

	inactive := &Boost{IsActive: false, ExpiresAt: &expires}
	assert.False(t, inactive.ActiveAt(now))
}

func TestEffectiveMultiplier(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)

	fresh := &ParticipantStats{Multiplier: 2.0, BoostExpiresAt: &expires}
	mult, expired := fresh.EffectiveMultiplier(now)
	assert.Equal(t, 2.0, mult)
	assert.False(t, expired)

	lapsed := &ParticipantStats{Multiplier: 2.0, BoostExpiresAt: &now}
	mult, expired = lapsed.EffectiveMultiplier(now)
	assert.Equal(t, 1.0, mult)
	assert.True(t, expired)

	unboosted := &ParticipantStats{Multiplier: 1.0}
	mult, expired = unboosted.EffectiveMultiplier(now)
	assert.Equal(t, 1.0, mult)
	assert.False(t, expired)
}

func TestDistributionKey(t *testing.T) {
	d := &PrizeDistribution{ContestID: "c1", TelegramID: 42, Position: 2}
	assert.Equal(t, "c1:42:2", d.Key())
	assert.Equal(t, d.Key(), DistributionKey("c1", 42, 2))
}

func TestDistributionExhausted(t *testing.T) {
	d := &PrizeDistribution{Attempts: MaxDistributionAttempts - 1}
	assert.False(t, d.Exhausted())
	d.Attempts++
	assert.True(t, d.Exhausted())
}
