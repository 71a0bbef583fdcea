package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ilivegod/TickEase/utils"
)

// Sandbox is an in-process provider for development and tests. Charges
// are kept in memory; the simulate-payment endpoint (development only)
// flips them to paid.
type Sandbox struct {
	mu      sync.Mutex
	charges map[string]*Status
	voided  map[string]bool
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		charges: make(map[string]*Status),
		voided:  make(map[string]bool),
	}
}

func (s *Sandbox) Name() ProviderName { return ProviderSandbox }

func (s *Sandbox) Authorize(_ context.Context, req *Request) (*Authorization, error) {
	ref, err := utils.GenerateReference(8)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.charges[ref] = &Status{
		Ref:      ref,
		State:    ChargePending,
		Amount:   req.Amount,
		Currency: req.Currency,
	}
	s.mu.Unlock()

	expiresAt := time.Now().Add(req.ExpiresIn)
	payload := fmt.Sprintf("TICKEASE|SANDBOX|%s|%s %s", ref, req.Amount.StringFixed(2), req.Currency)

	return &Authorization{Ref: ref, QRPayload: payload, ExpiresAt: expiresAt}, nil
}

func (s *Sandbox) CheckCharge(_ context.Context, ref string) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	charge, ok := s.charges[ref]
	if !ok {
		return nil, fmt.Errorf("sandbox: unknown charge %q", ref)
	}
	copied := *charge
	return &copied, nil
}

func (s *Sandbox) Void(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charge, ok := s.charges[ref]
	if !ok {
		return fmt.Errorf("sandbox: unknown charge %q", ref)
	}
	charge.State = ChargeVoided
	s.voided[ref] = true
	return nil
}

func (s *Sandbox) Close(_ context.Context) error { return nil }

// SettleCharge marks a pending charge paid or failed. Only the
// development simulate-payment endpoint and tests use it.
func (s *Sandbox) SettleCharge(ref string, paid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charge, ok := s.charges[ref]
	if !ok {
		return fmt.Errorf("sandbox: unknown charge %q", ref)
	}
	if charge.State != ChargePending {
		return fmt.Errorf("sandbox: charge %q already %s", ref, charge.State)
	}
	if paid {
		charge.State = ChargePaid
	} else {
		charge.State = ChargeFailed
	}
	return nil
}

// Voided reports whether a charge was voided; used in tests to assert
// the refund-and-fail reconciliation path ran.
func (s *Sandbox) Voided(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voided[ref]
}
