package status

import "errors"

// Capacity errors.
var (
	ErrInsufficientInventory = errors.New("inventory: not enough tickets available")
)

// Lookup errors.
var (
	ErrTierNotFound   = errors.New("inventory: price tier not found")
	ErrHoldNotFound   = errors.New("hold: hold not found")
	ErrTicketNotFound = errors.New("ticket: ticket not found")
)

// State-conflict errors.
var (
	ErrHoldExpired         = errors.New("hold: hold expired before confirmation")
	ErrHoldAlreadyResolved = errors.New("hold: hold already resolved")
	ErrAlreadyCheckedIn    = errors.New("ticket: ticket already checked in")
	ErrTicketRevoked       = errors.New("ticket: ticket revoked")
)

// ErrInvariantViolation marks conditions that are unreachable in correct
// operation, e.g. an inventory increment past tier capacity. Callers log
// and alert on it instead of silently correcting.
var ErrInvariantViolation = errors.New("inventory: invariant violation")
