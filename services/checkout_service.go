package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ilivegod/TickEase/config"
	"github.com/ilivegod/TickEase/internal/services/payment"
	"github.com/ilivegod/TickEase/internal/status"
	"github.com/ilivegod/TickEase/models"
	"github.com/ilivegod/TickEase/monitoring"
)

// PaymentOutcome is the settled result of one charge as reported by the
// inbound payment callback.
type PaymentOutcome string

const (
	OutcomeSuccess PaymentOutcome = "success"
	OutcomeFailed  PaymentOutcome = "failed"
	OutcomeTimeout PaymentOutcome = "timeout"
)

func ParseOutcome(raw string) (PaymentOutcome, error) {
	switch PaymentOutcome(raw) {
	case OutcomeSuccess, OutcomeFailed, OutcomeTimeout:
		return PaymentOutcome(raw), nil
	}
	return "", fmt.Errorf("checkout: unknown payment outcome %q", raw)
}

// CheckoutSession is what the app needs to drive one purchase attempt:
// the hold countdown and the QR payload for the payment screen.
type CheckoutSession struct {
	Hold       *models.Hold
	PaymentRef string
	QRPayload  string
	Amount     decimal.Decimal
	Currency   string
}

// TicketIssuer is the slice of the ticket service the orchestrator
// needs.
type TicketIssuer interface {
	IssueTickets(ctx context.Context, hold *models.Hold) ([]*models.Ticket, error)
}

// CheckoutService drives a purchase attempt end to end and is the only
// component that talks to the payment provider, keeping that failure
// domain out of the ledger and the hold registry.
type CheckoutService struct {
	ledger       Ledger
	reservations *ReservationService
	tickets      TicketIssuer
	provider     payment.Provider
	monitor      *monitoring.Monitor
	cfg          *config.Config

	tmu   sync.RWMutex
	tiers map[string]*models.PriceTier

	smu      sync.RWMutex
	sessions map[string]*CheckoutSession
}

func NewCheckoutService(
	ledger Ledger,
	reservations *ReservationService,
	tickets TicketIssuer,
	provider payment.Provider,
	monitor *monitoring.Monitor,
	cfg *config.Config,
) *CheckoutService {
	s := &CheckoutService{
		ledger:       ledger,
		reservations: reservations,
		tickets:      tickets,
		provider:     provider,
		monitor:      monitor,
		cfg:          cfg,
		tiers:        make(map[string]*models.PriceTier),
		sessions:     make(map[string]*CheckoutSession),
	}

	// drop the session when the hold registry drops the hold, so the
	// two maps age out together
	reservations.SetEvictHook(func(holdID string) {
		s.smu.Lock()
		delete(s.sessions, holdID)
		s.smu.Unlock()
	})

	return s
}

// RegisterTier adds a tier to the catalog. Called at startup from the
// tiers collection, after the ledger counter is installed.
func (s *CheckoutService) RegisterTier(tier *models.PriceTier) {
	s.tmu.Lock()
	s.tiers[tier.ID] = tier
	s.tmu.Unlock()
}

func (s *CheckoutService) Tier(tierID string) (*models.PriceTier, error) {
	s.tmu.RLock()
	tier, ok := s.tiers[tierID]
	s.tmu.RUnlock()
	if !ok {
		return nil, status.ErrTierNotFound
	}
	return tier, nil
}

func (s *CheckoutService) TierIDs() []string {
	s.tmu.RLock()
	defer s.tmu.RUnlock()

	ids := make([]string, 0, len(s.tiers))
	for id := range s.tiers {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot exposes the ledger's display read for the tier listing.
func (s *CheckoutService) Snapshot(ctx context.Context, tierID string) (int64, error) {
	return s.ledger.Snapshot(ctx, tierID)
}

// BeginCheckout places a hold and authorizes a pending charge with the
// provider. If the provider call fails the hold is rolled back so
// inventory is never parked behind a charge that doesn't exist.
func (s *CheckoutService) BeginCheckout(ctx context.Context, tierID, ownerID string, qty int64) (*CheckoutSession, error) {
	tier, err := s.Tier(tierID)
	if err != nil {
		return nil, err
	}
	if qty > s.cfg.MaxHoldQty {
		return nil, fmt.Errorf("checkout: quantity %d exceeds the per-order limit of %d", qty, s.cfg.MaxHoldQty)
	}

	hold, err := s.reservations.CreateHold(ctx, tier.ID, tier.EventID, ownerID, qty, s.cfg.HoldTTL)
	if err != nil {
		return nil, err
	}

	amount := tier.Price.Mul(decimal.NewFromInt(qty))

	pctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	start := time.Now()
	auth, err := s.provider.Authorize(pctx, &payment.Request{
		Amount:      amount,
		Currency:    tier.Currency,
		Reference:   hold.ID,
		Description: fmt.Sprintf("%s x%d", tier.Name, qty),
		ExpiresIn:   time.Until(hold.ExpiresAt),
	})
	s.trackPayment("authorize", time.Since(start))

	if err != nil {
		if rerr := s.reservations.ReleaseHold(ctx, hold.ID); rerr != nil {
			slog.Error("hold rollback after authorize failure", "hold_id", hold.ID, "err", rerr)
		}
		s.trackCheckout("authorize_failed")
		return nil, fmt.Errorf("checkout: payment authorization failed: %w", err)
	}

	session := &CheckoutSession{
		Hold:       hold,
		PaymentRef: auth.Ref,
		QRPayload:  auth.QRPayload,
		Amount:     amount,
		Currency:   tier.Currency,
	}

	s.smu.Lock()
	s.sessions[hold.ID] = session
	s.smu.Unlock()

	s.trackCheckout("started")
	return session, nil
}

// CompleteCheckout settles one purchase attempt.
//
// On success the hold is confirmed and tickets are issued. If the hold
// already expired when payment settled, the charge is voided through
// the provider and ErrHoldExpired is surfaced: payment capture and
// inventory confirmation never both stand without reconciliation.
// On failure or timeout the hold is released.
func (s *CheckoutService) CompleteCheckout(ctx context.Context, holdID string, outcome PaymentOutcome) ([]*models.Ticket, error) {
	switch outcome {
	case OutcomeSuccess:
		return s.settleSuccess(ctx, holdID)
	case OutcomeFailed, OutcomeTimeout:
		return nil, s.settleFailure(ctx, holdID, outcome)
	default:
		return nil, fmt.Errorf("checkout: unknown payment outcome %q", outcome)
	}
}

func (s *CheckoutService) settleSuccess(ctx context.Context, holdID string) ([]*models.Ticket, error) {
	hold, err := s.reservations.ConfirmHold(ctx, holdID)
	if errors.Is(err, status.ErrHoldExpired) {
		s.voidCharge(ctx, holdID)
		s.trackCheckout("expired_after_payment")
		return nil, status.ErrHoldExpired
	}
	if err != nil {
		s.trackCheckout("conflict")
		return nil, err
	}

	tickets, err := s.tickets.IssueTickets(ctx, hold)
	if err != nil {
		// the hold is Confirmed and its inventory consumed, but no
		// tickets exist; this needs a human or a retry, so make it loud
		slog.Error("ticket issuance failed after hold confirmation, manual reconciliation required",
			"hold_id", hold.ID,
			"tier_id", hold.TierID,
			"err", err,
		)
		s.trackCheckout("issue_failed")
		return nil, err
	}

	s.trackCheckout("success")
	return tickets, nil
}

func (s *CheckoutService) settleFailure(ctx context.Context, holdID string, outcome PaymentOutcome) error {
	hold, err := s.reservations.GetHold(holdID)
	if err != nil {
		return err
	}

	err = s.reservations.ReleaseHold(ctx, holdID)
	if errors.Is(err, status.ErrHoldAlreadyResolved) && hold.State() != models.HoldConfirmed {
		// the sweep (or an earlier failure callback) already resolved it
		err = nil
	}
	if err != nil {
		return err
	}

	s.trackCheckout(string(outcome))
	return nil
}

// CancelCheckout is the client-initiated release before payment
// settles. It races safely against the expiry sweep and a late payment
// success; the hold's single-winner transition decides.
func (s *CheckoutService) CancelCheckout(ctx context.Context, holdID, ownerID string) error {
	hold, err := s.reservations.GetHold(holdID)
	if err != nil {
		return err
	}
	if hold.OwnerID != ownerID {
		return status.ErrHoldNotFound
	}

	if err := s.reservations.ReleaseHold(ctx, holdID); err != nil {
		return err
	}

	s.voidCharge(ctx, holdID)
	s.trackCheckout("cancelled")
	return nil
}

// Session returns the checkout session for a hold, if one exists.
func (s *CheckoutService) Session(holdID string) (*CheckoutSession, bool) {
	s.smu.RLock()
	session, ok := s.sessions[holdID]
	s.smu.RUnlock()
	return session, ok
}

func (s *CheckoutService) voidCharge(ctx context.Context, holdID string) {
	session, ok := s.Session(holdID)
	if !ok {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	start := time.Now()
	err := s.provider.Void(pctx, session.PaymentRef)
	s.trackPayment("void", time.Since(start))

	if err != nil {
		// the charge and the expired hold have diverged; this needs a
		// human or a retry queue, so make it loud
		slog.Error("charge void failed, manual reconciliation required",
			"hold_id", holdID,
			"payment_ref", session.PaymentRef,
			"err", err,
		)
	}
}

func (s *CheckoutService) trackCheckout(outcome string) {
	if s.monitor != nil {
		s.monitor.TrackCheckout(outcome)
	}
}

func (s *CheckoutService) trackPayment(call string, d time.Duration) {
	if s.monitor != nil {
		s.monitor.TrackPaymentCall(string(s.provider.Name()), call, d)
	}
}
