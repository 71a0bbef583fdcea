package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilivegod/TickEase/internal/status"
	"github.com/ilivegod/TickEase/models"
	"github.com/ilivegod/TickEase/monitoring"
)

// ReservationService owns the hold registry. A hold's quantity is
// subtracted from the ledger while the hold is Active and handed back on
// release or expiry. Every resolution path goes through the hold's CAS
// state transition, so a user confirming payment, a client cancel and
// the expiry sweep can never double-resolve the same hold.
type ReservationService struct {
	ledger  Ledger
	monitor *monitoring.Monitor

	mu         sync.RWMutex
	holds      map[string]*models.Hold
	resolvedAt map[string]time.Time

	// retention is how long terminal holds stay queryable for idempotent
	// replay before the sweep drops them.
	retention time.Duration

	// resolveHook runs after a hold reaches a terminal state; the cmd
	// wiring uses it to archive resolved holds.
	resolveHook func(*models.Hold)

	// evictHook runs when a terminal hold is dropped from the registry.
	evictHook func(holdID string)

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

const defaultHoldRetention = time.Hour

func NewReservationService(ledger Ledger, monitor *monitoring.Monitor) *ReservationService {
	return &ReservationService{
		ledger:     ledger,
		monitor:    monitor,
		holds:      make(map[string]*models.Hold),
		resolvedAt: make(map[string]time.Time),
		retention:  defaultHoldRetention,
		stopChan:   make(chan struct{}),
	}
}

func (s *ReservationService) SetResolveHook(hook func(*models.Hold)) {
	s.resolveHook = hook
}

func (s *ReservationService) SetEvictHook(hook func(holdID string)) {
	s.evictHook = hook
}

func (s *ReservationService) SetRetention(d time.Duration) {
	s.retention = d
}

// CreateHold decrements the ledger and registers an Active hold with
// expiry now+ttl. On insufficient inventory nothing changes.
func (s *ReservationService) CreateHold(ctx context.Context, tierID, eventID, ownerID string, qty int64, ttl time.Duration) (*models.Hold, error) {
	if qty < 1 {
		return nil, fmt.Errorf("hold: quantity must be at least 1, got %d", qty)
	}

	if err := s.ledger.TryDecrement(ctx, tierID, qty); err != nil {
		s.trackHold("create", tierID, "rejected")
		return nil, err
	}

	hold := models.NewHold(uuid.NewString(), tierID, eventID, ownerID, qty, ttl)

	s.mu.Lock()
	s.holds[hold.ID] = hold
	s.mu.Unlock()

	s.trackHold("create", tierID, "success")
	return hold, nil
}

func (s *ReservationService) GetHold(holdID string) (*models.Hold, error) {
	s.mu.RLock()
	hold, ok := s.holds[holdID]
	s.mu.RUnlock()
	if !ok {
		return nil, status.ErrHoldNotFound
	}
	return hold, nil
}

// ConfirmHold moves an Active hold to Confirmed exactly once. Confirming
// an already-Confirmed hold is idempotent and returns the same hold. A
// hold past its expiry is expired here rather than waiting for the sweep,
// so a late payment can never claim inventory the sweep would restock.
func (s *ReservationService) ConfirmHold(ctx context.Context, holdID string) (*models.Hold, error) {
	hold, err := s.GetHold(holdID)
	if err != nil {
		return nil, err
	}

	if hold.Lapsed(time.Now()) && hold.TransitionFrom(models.HoldActive, models.HoldExpired) {
		s.restock(ctx, hold)
		s.trackHold("expire", hold.TierID, "lazy")
		s.resolved(hold)
	}

	if hold.TransitionFrom(models.HoldActive, models.HoldConfirmed) {
		s.trackHold("confirm", hold.TierID, "success")
		s.resolved(hold)
		return hold, nil
	}

	switch hold.State() {
	case models.HoldConfirmed:
		return hold, nil
	case models.HoldExpired:
		return nil, status.ErrHoldExpired
	default:
		return nil, status.ErrHoldAlreadyResolved
	}
}

// ReleaseHold moves an Active hold to Released and restores its quantity
// to the ledger.
func (s *ReservationService) ReleaseHold(ctx context.Context, holdID string) error {
	hold, err := s.GetHold(holdID)
	if err != nil {
		return err
	}

	if !hold.TransitionFrom(models.HoldActive, models.HoldReleased) {
		return status.ErrHoldAlreadyResolved
	}

	s.restock(ctx, hold)
	s.trackHold("release", hold.TierID, "success")
	s.resolved(hold)
	return nil
}

// StartSweeper runs the background expiry sweep until Stop is called.
// A longer interval recaptures inventory later; a shorter one costs more
// scanning. Both are safe: the CAS transition keeps the sweep and any
// caller-driven resolution from double-releasing.
func (s *ReservationService) StartSweeper(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Info("hold expiry sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				s.sweep(context.Background())
			case <-s.stopChan:
				slog.Info("hold expiry sweeper stopping")
				return
			}
		}
	}()
}

func (s *ReservationService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *ReservationService) sweep(ctx context.Context) {
	now := time.Now()

	s.mu.RLock()
	candidates := make([]*models.Hold, 0)
	for _, hold := range s.holds {
		if hold.State() == models.HoldActive && hold.Lapsed(now) {
			candidates = append(candidates, hold)
		}
	}
	s.mu.RUnlock()

	for _, hold := range candidates {
		if !hold.TransitionFrom(models.HoldActive, models.HoldExpired) {
			// lost the race to a confirm/release; nothing to do
			continue
		}
		s.restock(ctx, hold)
		s.trackHold("expire", hold.TierID, "swept")
		s.resolved(hold)
		slog.Info("hold expired", "hold_id", hold.ID, "tier_id", hold.TierID, "qty", hold.Quantity)
	}

	s.pruneResolved(now)
}

// pruneResolved drops terminal holds that have been resolved for longer
// than the retention window, so the registry does not grow for the
// lifetime of an on-sale.
func (s *ReservationService) pruneResolved(now time.Time) {
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	var evicted []string
	for id, at := range s.resolvedAt {
		if at.Before(cutoff) {
			delete(s.holds, id)
			delete(s.resolvedAt, id)
			evicted = append(evicted, id)
		}
	}
	s.mu.Unlock()

	if s.evictHook != nil {
		for _, id := range evicted {
			s.evictHook(id)
		}
	}
}

// restock hands a resolved hold's quantity back to the ledger. An
// increment past capacity means the accounting is broken somewhere;
// it is logged loudly, never clamped.
func (s *ReservationService) restock(ctx context.Context, hold *models.Hold) {
	if err := s.ledger.Increment(ctx, hold.TierID, hold.Quantity); err != nil {
		slog.Error("inventory restock failed",
			"hold_id", hold.ID,
			"tier_id", hold.TierID,
			"qty", hold.Quantity,
			"err", err,
		)
	}
}

func (s *ReservationService) resolved(hold *models.Hold) {
	s.mu.Lock()
	s.resolvedAt[hold.ID] = time.Now()
	s.mu.Unlock()

	if s.resolveHook != nil {
		s.resolveHook(hold)
	}
}

func (s *ReservationService) trackHold(operation, tierID, result string) {
	if s.monitor != nil {
		s.monitor.TrackHoldOperation(operation, tierID, result)
	}
}

// ActiveHoldQuantity sums the quantities of Active holds for a tier.
// Used by the invariant checks in tests and the admin surface.
func (s *ReservationService) ActiveHoldQuantity(tierID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, hold := range s.holds {
		if hold.TierID == tierID && hold.State() == models.HoldActive {
			total += hold.Quantity
		}
	}
	return total
}
