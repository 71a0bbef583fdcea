package services

import (
	"context"
	"sync"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilivegod/TickEase/internal/status"
)

func TestMemoryLedger_TryDecrement(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	require.NoError(t, ledger.RegisterTier(ctx, "vip", 10, 10))

	assert.NoError(t, ledger.TryDecrement(ctx, "vip", 4))

	available, err := ledger.Snapshot(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, int64(6), available)

	// exact remaining amount still succeeds
	assert.NoError(t, ledger.TryDecrement(ctx, "vip", 6))

	// nothing left
	err = ledger.TryDecrement(ctx, "vip", 1)
	assert.ErrorIs(t, err, status.ErrInsufficientInventory)

	available, err = ledger.Snapshot(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, int64(0), available)
}

func TestMemoryLedger_TryDecrement_UnknownTier(t *testing.T) {
	ledger := NewMemoryLedger()

	err := ledger.TryDecrement(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, status.ErrTierNotFound)
}

func TestMemoryLedger_Increment_PastCapacityIsInvariantViolation(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	require.NoError(t, ledger.RegisterTier(ctx, "basic", 5, 5))

	err := ledger.Increment(ctx, "basic", 1)
	assert.ErrorIs(t, err, status.ErrInvariantViolation)

	// the failed increment must not change state
	available, err := ledger.Snapshot(ctx, "basic")
	require.NoError(t, err)
	assert.Equal(t, int64(5), available)
}

func TestMemoryLedger_RegisterTier_RejectsBadCounts(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	assert.ErrorIs(t, ledger.RegisterTier(ctx, "t", 5, 6), status.ErrInvariantViolation)
	assert.ErrorIs(t, ledger.RegisterTier(ctx, "t", 5, -1), status.ErrInvariantViolation)
}

// N concurrent decrements of 1 against a tier holding N-1 must produce
// exactly N-1 successes and 1 failure.
func TestMemoryLedger_ConcurrentDecrement_NoOverSell(t *testing.T) {
	const n = 64

	ledger := NewMemoryLedger()
	ctx := context.Background()
	require.NoError(t, ledger.RegisterTier(ctx, "ga", n-1, n-1))

	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ledger.TryDecrement(ctx, "ga", 1)
		}()
	}
	wg.Wait()
	close(results)

	successes, insufficient := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case err == status.ErrInsufficientInventory:
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, n-1, successes)
	assert.Equal(t, 1, insufficient)

	available, err := ledger.Snapshot(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, int64(0), available)
}

func TestMemoryLedger_ConcurrentDecrementIncrement_StaysInBounds(t *testing.T) {
	const workers = 32
	const rounds = 100

	ledger := NewMemoryLedger()
	ctx := context.Background()
	require.NoError(t, ledger.RegisterTier(ctx, "pit", 16, 16))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if err := ledger.TryDecrement(ctx, "pit", 1); err == nil {
					require.NoError(t, ledger.Increment(ctx, "pit", 1))
				}
			}
		}()
	}
	wg.Wait()

	available, err := ledger.Snapshot(ctx, "pit")
	require.NoError(t, err)
	assert.Equal(t, int64(16), available)
}

func TestRedisLedger_TryDecrement_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(db)
	ctx := context.Background()

	mock.ExpectEval(tryDecrementScript, []string{"tier:avail:vip"}, int64(2)).SetVal(int64(8))

	err := ledger.TryDecrement(ctx, "vip", 2)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedger_TryDecrement_Insufficient(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(db)
	ctx := context.Background()

	mock.ExpectEval(tryDecrementScript, []string{"tier:avail:vip"}, int64(5)).SetVal(int64(-1))

	err := ledger.TryDecrement(ctx, "vip", 5)

	assert.ErrorIs(t, err, status.ErrInsufficientInventory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedger_TryDecrement_UnknownTier(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(db)
	ctx := context.Background()

	mock.ExpectEval(tryDecrementScript, []string{"tier:avail:ghost"}, int64(1)).SetVal(int64(-2))

	err := ledger.TryDecrement(ctx, "ghost", 1)

	assert.ErrorIs(t, err, status.ErrTierNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedger_Increment_InvariantViolation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(db)
	ctx := context.Background()

	mock.ExpectEval(incrementScript, []string{"tier:avail:vip", "tier:cap:vip"}, int64(3)).SetVal(int64(-3))

	err := ledger.Increment(ctx, "vip", 3)

	assert.ErrorIs(t, err, status.ErrInvariantViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedger_RegisterAndSnapshot(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(db)
	ctx := context.Background()

	mock.ExpectSet("tier:cap:vip", int64(100), 0).SetVal("OK")
	mock.ExpectSet("tier:avail:vip", int64(100), 0).SetVal("OK")
	mock.ExpectGet("tier:avail:vip").SetVal("97")

	require.NoError(t, ledger.RegisterTier(ctx, "vip", 100, 100))

	available, err := ledger.Snapshot(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, int64(97), available)
	assert.NoError(t, mock.ExpectationsWereMet())
}
