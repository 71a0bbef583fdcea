package services

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/ilivegod/TickEase/internal/status"
	"github.com/ilivegod/TickEase/models"
	"github.com/ilivegod/TickEase/monitoring"
	"github.com/ilivegod/TickEase/utils"
)

// scanCodeBytes gives 128 bits of entropy per scan code.
const scanCodeBytes = 16

// TicketService mints immutable tickets from confirmed holds and handles
// the scan surface. Issuance is idempotent per hold; the code index is
// keyed by blake2b digest so a scan lookup never walks other tickets'
// codes.
type TicketService struct {
	monitor *monitoring.Monitor

	mu       sync.RWMutex
	byHold   map[string][]*models.Ticket
	byID     map[string]*models.Ticket
	byDigest map[[32]byte]*models.Ticket
}

func NewTicketService(monitor *monitoring.Monitor) *TicketService {
	return &TicketService{
		monitor:  monitor,
		byHold:   make(map[string][]*models.Ticket),
		byID:     make(map[string]*models.Ticket),
		byDigest: make(map[[32]byte]*models.Ticket),
	}
}

// CodeDigest returns the hex digest under which a scan code is indexed.
// Durable stores keep only this digest, never the plaintext code.
func CodeDigest(code string) string {
	sum := blake2b.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// IssueTickets mints exactly hold.Quantity tickets for a Confirmed hold.
// A repeated call for the same hold returns the previously issued
// tickets in the same order; no duplicates are ever minted.
func (s *TicketService) IssueTickets(_ context.Context, hold *models.Hold) ([]*models.Ticket, error) {
	if hold == nil {
		return nil, status.ErrHoldNotFound
	}
	if hold.State() != models.HoldConfirmed {
		return nil, status.ErrHoldAlreadyResolved
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byHold[hold.ID]; ok {
		out := make([]*models.Ticket, len(existing))
		copy(out, existing)
		return out, nil
	}

	now := time.Now()
	tickets := make([]*models.Ticket, 0, hold.Quantity)
	for i := int64(0); i < hold.Quantity; i++ {
		code, err := utils.GenerateCode(scanCodeBytes)
		if err != nil {
			return nil, err
		}

		ticket := &models.Ticket{
			ID:       uuid.NewString(),
			HoldID:   hold.ID,
			TierID:   hold.TierID,
			EventID:  hold.EventID,
			OwnerID:  hold.OwnerID,
			Code:     code,
			IssuedAt: now,
		}

		s.byID[ticket.ID] = ticket
		s.byDigest[blake2b.Sum256([]byte(code))] = ticket
		tickets = append(tickets, ticket)
	}

	s.byHold[hold.ID] = tickets
	slog.Info("tickets issued", "hold_id", hold.ID, "count", len(tickets))

	out := make([]*models.Ticket, len(tickets))
	copy(out, tickets)
	return out, nil
}

// CheckIn consumes a scan code exactly once. Concurrent scans of the
// same code produce a single success; everyone else gets
// ErrAlreadyCheckedIn.
func (s *TicketService) CheckIn(_ context.Context, code string) (*models.Ticket, error) {
	digest := blake2b.Sum256([]byte(code))

	s.mu.RLock()
	ticket, ok := s.byDigest[digest]
	s.mu.RUnlock()
	if !ok {
		s.trackCheckIn("not_found")
		return nil, status.ErrTicketNotFound
	}

	if ticket.TransitionFrom(models.TicketIssued, models.TicketCheckedIn) {
		s.trackCheckIn("success")
		return ticket, nil
	}

	switch ticket.State() {
	case models.TicketRevoked:
		s.trackCheckIn("revoked")
		return nil, status.ErrTicketRevoked
	default:
		s.trackCheckIn("duplicate")
		return nil, status.ErrAlreadyCheckedIn
	}
}

// Revoke marks a ticket Revoked, e.g. for a refund. Revoking a
// CheckedIn ticket keeps the record but does not undo entry. Revoking
// an already revoked ticket is a no-op.
func (s *TicketService) Revoke(_ context.Context, ticketID string) (*models.Ticket, error) {
	s.mu.RLock()
	ticket, ok := s.byID[ticketID]
	s.mu.RUnlock()
	if !ok {
		return nil, status.ErrTicketNotFound
	}

	for {
		current := ticket.State()
		if current == models.TicketRevoked {
			return ticket, nil
		}
		if ticket.TransitionFrom(current, models.TicketRevoked) {
			slog.Info("ticket revoked", "ticket_id", ticketID, "previous_state", current.String())
			return ticket, nil
		}
	}
}

func (s *TicketService) GetTicket(ticketID string) (*models.Ticket, error) {
	s.mu.RLock()
	ticket, ok := s.byID[ticketID]
	s.mu.RUnlock()
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	return ticket, nil
}

// TicketsForHold returns the issued tickets for a hold, if any.
func (s *TicketService) TicketsForHold(holdID string) []*models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.byHold[holdID]
	if !ok {
		return nil
	}
	out := make([]*models.Ticket, len(existing))
	copy(out, existing)
	return out
}

func (s *TicketService) trackCheckIn(result string) {
	if s.monitor != nil {
		s.monitor.TrackCheckIn(result)
	}
}
