package models

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHold_TransitionFrom_SingleWinner(t *testing.T) {
	hold := NewHold("h1", "tier1", "event1", "user1", 2, time.Minute)

	var wg sync.WaitGroup
	wins := make(chan HoldState, 3)

	attempts := []HoldState{HoldConfirmed, HoldReleased, HoldExpired}
	for _, to := range attempts {
		wg.Add(1)
		go func(to HoldState) {
			defer wg.Done()
			if hold.TransitionFrom(HoldActive, to) {
				wins <- to
			}
		}(to)
	}
	wg.Wait()
	close(wins)

	winners := []HoldState{}
	for w := range wins {
		winners = append(winners, w)
	}

	assert.Len(t, winners, 1, "exactly one resolver must win")
	assert.Equal(t, winners[0], hold.State())
}

func TestHold_NoTransitionOutOfTerminalState(t *testing.T) {
	hold := NewHold("h1", "tier1", "event1", "user1", 1, time.Minute)

	assert.True(t, hold.TransitionFrom(HoldActive, HoldConfirmed))

	assert.False(t, hold.TransitionFrom(HoldConfirmed, HoldReleased))
	assert.False(t, hold.TransitionFrom(HoldConfirmed, HoldExpired))
	assert.False(t, hold.TransitionFrom(HoldActive, HoldReleased))
	assert.Equal(t, HoldConfirmed, hold.State())
}

func TestHold_Lapsed(t *testing.T) {
	hold := NewHold("h1", "tier1", "event1", "user1", 1, 50*time.Millisecond)

	assert.False(t, hold.Lapsed(time.Now()))
	assert.True(t, hold.Lapsed(time.Now().Add(time.Second)))
}

func TestHoldState_String(t *testing.T) {
	tests := []struct {
		state    HoldState
		expected string
	}{
		{HoldActive, "active"},
		{HoldConfirmed, "confirmed"},
		{HoldReleased, "released"},
		{HoldExpired, "expired"},
		{HoldState(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

func TestTicket_CheckInTransition(t *testing.T) {
	ticket := &Ticket{ID: "t1", HoldID: "h1", OwnerID: "user1"}

	assert.Equal(t, TicketIssued, ticket.State())
	assert.True(t, ticket.TransitionFrom(TicketIssued, TicketCheckedIn))
	assert.False(t, ticket.TransitionFrom(TicketIssued, TicketCheckedIn))
	assert.Equal(t, TicketCheckedIn, ticket.State())
}

func TestTicket_RevokeAfterCheckIn(t *testing.T) {
	ticket := &Ticket{ID: "t1"}

	assert.True(t, ticket.TransitionFrom(TicketIssued, TicketCheckedIn))
	// revoke for record-keeping is still allowed after entry
	assert.True(t, ticket.TransitionFrom(TicketCheckedIn, TicketRevoked))
	assert.Equal(t, TicketRevoked, ticket.State())
}
