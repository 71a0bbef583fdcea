package models

import (
	"sync/atomic"
	"time"
)

type TicketState int32

const (
	TicketIssued TicketState = iota
	TicketCheckedIn
	TicketRevoked
)

func (s TicketState) String() string {
	switch s {
	case TicketIssued:
		return "issued"
	case TicketCheckedIn:
		return "checked_in"
	case TicketRevoked:
		return "revoked"
	}
	return "unknown"
}

// Ticket is an immutable issued ticket record. Code is the opaque scan
// payload shown to the buyer as a QR symbol; it is never derivable from
// the ticket ID. Only the state field mutates after issuance, through
// the same CAS discipline as Hold.
type Ticket struct {
	ID       string    `json:"id"`
	HoldID   string    `json:"hold_id"`
	TierID   string    `json:"tier_id"`
	EventID  string    `json:"event_id"`
	OwnerID  string    `json:"owner_id"`
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`

	state atomic.Int32
}

func (t *Ticket) State() TicketState {
	return TicketState(t.state.Load())
}

func (t *Ticket) TransitionFrom(from, to TicketState) bool {
	return t.state.CompareAndSwap(int32(from), int32(to))
}
