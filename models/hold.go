package models

import (
	"sync/atomic"
	"time"
)

type HoldState int32

const (
	HoldActive HoldState = iota
	HoldConfirmed
	HoldReleased
	HoldExpired
)

func (s HoldState) String() string {
	switch s {
	case HoldActive:
		return "active"
	case HoldConfirmed:
		return "confirmed"
	case HoldReleased:
		return "released"
	case HoldExpired:
		return "expired"
	}
	return "unknown"
}

// Terminal reports whether no further transition is allowed out of s.
func (s HoldState) Terminal() bool {
	return s != HoldActive
}

// Hold is a time-limited provisional claim on tier inventory made during
// checkout. Everything except the state field is immutable after creation;
// the state only moves through TransitionFrom, so concurrent resolvers
// (payment confirmation, client cancel, expiry sweep) get exactly one winner.
type Hold struct {
	ID        string    `json:"id"`
	TierID    string    `json:"tier_id"`
	EventID   string    `json:"event_id"`
	OwnerID   string    `json:"owner_id"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	state atomic.Int32
}

func NewHold(id, tierID, eventID, ownerID string, qty int64, ttl time.Duration) *Hold {
	now := time.Now()
	return &Hold{
		ID:        id,
		TierID:    tierID,
		EventID:   eventID,
		OwnerID:   ownerID,
		Quantity:  qty,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (h *Hold) State() HoldState {
	return HoldState(h.state.Load())
}

// TransitionFrom applies the from->to transition only if the hold is
// currently in from, and reports whether this caller won the swap.
func (h *Hold) TransitionFrom(from, to HoldState) bool {
	if from.Terminal() {
		return false
	}
	return h.state.CompareAndSwap(int32(from), int32(to))
}

// Lapsed reports whether the hold is past its expiry time at t. A lapsed
// hold may still be in Active state until a resolver transitions it.
func (h *Hold) Lapsed(t time.Time) bool {
	return t.After(h.ExpiresAt)
}
