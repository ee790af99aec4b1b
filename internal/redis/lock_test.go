package redisclient

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 5*time.Second)
}

func TestWithSlotLockMutualExclusion(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()
	providerID := uuid.New()

	err := locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:00", func(ctx context.Context) error {
		// a second caller for the same slot must be turned away while we hold it
		inner := locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:00", func(context.Context) error {
			t.Fatal("second caller entered the critical section")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockDistinctSlotsDoNotContend(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()
	providerID := uuid.New()

	err := locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:00", func(ctx context.Context) error {
		return locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:30", func(context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)

	// different provider, same slot string
	err = locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:00", func(ctx context.Context) error {
		return locker.WithSlotLock(ctx, uuid.New(), "2026-09-15", "09:00", func(context.Context) error {
			return nil
		})
	})
	require.NoError(t, err)
}

func TestWithSlotLockReleasesAfterFn(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()
	providerID := uuid.New()

	err := locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:00", func(context.Context) error {
		return nil
	})
	require.NoError(t, err)

	// the first caller released on return, so the slot is free again
	var entered bool
	err = locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:00", func(context.Context) error {
		entered = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, entered)
}

func TestWithSlotLockPropagatesFnError(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()
	providerID := uuid.New()

	sentinel := assert.AnError
	err := locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:00", func(context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	// an fn error still releases the lock
	err = locker.WithSlotLock(ctx, providerID, "2026-09-15", "09:00", func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
}
