package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/ilivegod/TickEase/internal/status"
)

// Ledger is the single source of truth for per-tier availability. The
// TryDecrement/Increment pair is the serialization point for every
// checkout attempt; implementations must never let two concurrent
// decrements over-draw a tier below zero.
type Ledger interface {
	// RegisterTier installs a tier counter. Called at startup from the
	// tiers collection; re-registering resets the counter.
	RegisterTier(ctx context.Context, tierID string, capacity, available int64) error

	// TryDecrement atomically checks available >= qty and decrements.
	// Returns status.ErrInsufficientInventory without touching state
	// when the tier cannot cover qty.
	TryDecrement(ctx context.Context, tierID string, qty int64) error

	// Increment restores inventory on release/expiry. An increment that
	// would exceed capacity returns status.ErrInvariantViolation and is
	// not applied.
	Increment(ctx context.Context, tierID string, qty int64) error

	// Snapshot is a non-blocking read for display; it may be briefly
	// stale under concurrent writers.
	Snapshot(ctx context.Context, tierID string) (int64, error)
}

// MemoryLedger keeps one atomic counter per tier. All mutation goes
// through CAS loops, so no two racing decrements can both win the last
// ticket.
type MemoryLedger struct {
	mu    sync.RWMutex
	tiers map[string]*tierCounter
}

type tierCounter struct {
	capacity  int64
	available atomic.Int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{tiers: make(map[string]*tierCounter)}
}

func (l *MemoryLedger) RegisterTier(_ context.Context, tierID string, capacity, available int64) error {
	if available < 0 || available > capacity {
		return status.ErrInvariantViolation
	}

	counter := &tierCounter{capacity: capacity}
	counter.available.Store(available)

	l.mu.Lock()
	l.tiers[tierID] = counter
	l.mu.Unlock()

	return nil
}

func (l *MemoryLedger) counter(tierID string) (*tierCounter, error) {
	l.mu.RLock()
	counter, ok := l.tiers[tierID]
	l.mu.RUnlock()
	if !ok {
		return nil, status.ErrTierNotFound
	}
	return counter, nil
}

func (l *MemoryLedger) TryDecrement(_ context.Context, tierID string, qty int64) error {
	counter, err := l.counter(tierID)
	if err != nil {
		return err
	}

	for {
		current := counter.available.Load()
		if current < qty {
			return status.ErrInsufficientInventory
		}
		if counter.available.CompareAndSwap(current, current-qty) {
			return nil
		}
	}
}

func (l *MemoryLedger) Increment(_ context.Context, tierID string, qty int64) error {
	counter, err := l.counter(tierID)
	if err != nil {
		return err
	}

	for {
		current := counter.available.Load()
		next := current + qty
		if next > counter.capacity {
			return status.ErrInvariantViolation
		}
		if counter.available.CompareAndSwap(current, next) {
			return nil
		}
	}
}

func (l *MemoryLedger) Snapshot(_ context.Context, tierID string) (int64, error) {
	counter, err := l.counter(tierID)
	if err != nil {
		return 0, err
	}
	return counter.available.Load(), nil
}

// Redis-backed ledger. The check-and-update runs inside a Lua script so
// it is atomic across every process sharing the instance.
//
// Script results: new available count on success, -1 insufficient,
// -2 tier not registered, -3 increment past capacity.
const tryDecrementScript = `
local avail = redis.call("GET", KEYS[1])
if avail == false then
	return -2
end
local qty = tonumber(ARGV[1])
if tonumber(avail) < qty then
	return -1
end
return redis.call("DECRBY", KEYS[1], qty)
`

const incrementScript = `
local avail = redis.call("GET", KEYS[1])
local cap = redis.call("GET", KEYS[2])
if avail == false or cap == false then
	return -2
end
local qty = tonumber(ARGV[1])
if tonumber(avail) + qty > tonumber(cap) then
	return -3
end
return redis.call("INCRBY", KEYS[1], qty)
`

type RedisLedger struct {
	Redis redis.Cmdable
}

func NewRedisLedger(client redis.Cmdable) *RedisLedger {
	return &RedisLedger{Redis: client}
}

func availKey(tierID string) string { return "tier:avail:" + tierID }
func capKey(tierID string) string   { return "tier:cap:" + tierID }

func (l *RedisLedger) RegisterTier(ctx context.Context, tierID string, capacity, available int64) error {
	if available < 0 || available > capacity {
		return status.ErrInvariantViolation
	}

	if err := l.Redis.Set(ctx, capKey(tierID), capacity, 0).Err(); err != nil {
		return err
	}
	return l.Redis.Set(ctx, availKey(tierID), available, 0).Err()
}

func (l *RedisLedger) TryDecrement(ctx context.Context, tierID string, qty int64) error {
	result, err := l.Redis.Eval(ctx, tryDecrementScript, []string{availKey(tierID)}, qty).Int64()
	if err != nil {
		return err
	}

	switch result {
	case -1:
		return status.ErrInsufficientInventory
	case -2:
		return status.ErrTierNotFound
	}
	return nil
}

func (l *RedisLedger) Increment(ctx context.Context, tierID string, qty int64) error {
	result, err := l.Redis.Eval(ctx, incrementScript, []string{availKey(tierID), capKey(tierID)}, qty).Int64()
	if err != nil {
		return err
	}

	switch result {
	case -2:
		return status.ErrTierNotFound
	case -3:
		return status.ErrInvariantViolation
	}
	return nil
}

func (l *RedisLedger) Snapshot(ctx context.Context, tierID string) (int64, error) {
	available, err := l.Redis.Get(ctx, availKey(tierID)).Int64()
	if err == redis.Nil {
		return 0, status.ErrTierNotFound
	} else if err != nil {
		return 0, err
	}
	return available, nil
}
