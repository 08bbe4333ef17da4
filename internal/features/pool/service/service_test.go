package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contest-engine-backend/internal/features/pool/repository/memory"
)

func newPool(t *testing.T) *PoolService {
	t.Helper()
	return NewPoolService(memory.NewPoolRepository())
}

func TestReserveConsumeRelease(t *testing.T) {
	svc := newPool(t)
	ctx := context.Background()
	require.NoError(t, svc.SetTotal(ctx, "star", 3))

	ok, err := svc.Reserve(ctx, "star", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	avail, err := svc.Availability(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, int64(1), avail)

	ok, err = svc.Consume(ctx, "star", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Release(ctx, "star", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	entry, err := svc.Entry(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, int64(3), entry.Total)
	assert.Equal(t, int64(0), entry.Reserved)
	assert.Equal(t, int64(1), entry.Consumed)
	assert.Equal(t, int64(2), entry.Availability())
}

func TestReserveDeclinesOverAvailability(t *testing.T) {
	svc := newPool(t)
	ctx := context.Background()
	require.NoError(t, svc.SetTotal(ctx, "star", 1))

	ok, err := svc.Reserve(ctx, "star", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	// The declined call changed nothing.
	avail, err := svc.Availability(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, int64(1), avail)
}

func TestConsumeRequiresReservation(t *testing.T) {
	svc := newPool(t)
	ctx := context.Background()
	require.NoError(t, svc.SetTotal(ctx, "star", 5))

	ok, err := svc.Consume(ctx, "star", 1)
	require.NoError(t, err)
	assert.False(t, ok, "consume without a hold must decline")

	ok, err = svc.Release(ctx, "star", 1)
	require.NoError(t, err)
	assert.False(t, ok, "release without a hold must decline")
}

func TestQuantityValidation(t *testing.T) {
	svc := newPool(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "star", 0)
	assert.Error(t, err)
	_, err = svc.Consume(ctx, "star", -1)
	assert.Error(t, err)
	assert.Error(t, svc.SetTotal(ctx, "star", -1))
}

func TestSetTotalCannotShrinkBelowCommitted(t *testing.T) {
	svc := newPool(t)
	ctx := context.Background()
	require.NoError(t, svc.SetTotal(ctx, "star", 5))

	ok, err := svc.Reserve(ctx, "star", 3)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.Consume(ctx, "star", 1)
	require.NoError(t, err)
	require.True(t, ok)

	// reserved(2) + consumed(1) = 3 is the floor.
	assert.Error(t, svc.SetTotal(ctx, "star", 2))
	assert.NoError(t, svc.SetTotal(ctx, "star", 3))
}

func TestUnknownGiftAvailability(t *testing.T) {
	svc := newPool(t)
	ctx := context.Background()

	avail, err := svc.Availability(ctx, "ghost")
	require.NoError(t, err)
	assert.Zero(t, avail)

	_, err = svc.Entry(ctx, "ghost")
	assert.Error(t, err)
}

func TestConcurrentReserveLastUnit(t *testing.T) {
	svc := newPool(t)
	ctx := context.Background()
	require.NoError(t, svc.SetTotal(ctx, "star", 1))

	const attempts = 32
	var wg sync.WaitGroup
	results := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := svc.Reserve(ctx, "star", 1)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	won := 0
	for _, ok := range results {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one reservation may win the last unit")

	entry, err := svc.Entry(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Reserved)
}
