package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilivegod/TickEase/internal/status"
	"github.com/ilivegod/TickEase/models"
)

func confirmedHold(t *testing.T, qty int64) *models.Hold {
	t.Helper()

	hold := models.NewHold("hold-1", "vip", "event1", "user1", qty, time.Minute)
	require.True(t, hold.TransitionFrom(models.HoldActive, models.HoldConfirmed))
	return hold
}

func TestTicketService_IssueTickets(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	hold := confirmedHold(t, 3)
	tickets, err := service.IssueTickets(ctx, hold)
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	seen := map[string]bool{}
	for _, ticket := range tickets {
		assert.Equal(t, hold.ID, ticket.HoldID)
		assert.Equal(t, hold.OwnerID, ticket.OwnerID)
		assert.Equal(t, models.TicketIssued, ticket.State())
		assert.Len(t, ticket.Code, scanCodeBytes*2)
		assert.NotContains(t, ticket.Code, ticket.ID, "scan code must not embed the ticket id")
		assert.False(t, seen[ticket.Code])
		seen[ticket.Code] = true
	}
}

func TestTicketService_IssueTickets_Idempotent(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	hold := confirmedHold(t, 2)

	first, err := service.IssueTickets(ctx, hold)
	require.NoError(t, err)
	second, err := service.IssueTickets(ctx, hold)
	require.NoError(t, err)

	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Code, second[i].Code)
	}
}

func TestTicketService_IssueTickets_ConcurrentCallsMintOnce(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	hold := confirmedHold(t, 4)

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan []*models.Ticket, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tickets, err := service.IssueTickets(ctx, hold)
			require.NoError(t, err)
			results <- tickets
		}()
	}
	wg.Wait()
	close(results)

	var reference []*models.Ticket
	for tickets := range results {
		require.Len(t, tickets, 4)
		if reference == nil {
			reference = tickets
			continue
		}
		for i := range tickets {
			assert.Equal(t, reference[i].ID, tickets[i].ID)
		}
	}
}

func TestTicketService_IssueTickets_RequiresConfirmedHold(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	active := models.NewHold("hold-2", "vip", "event1", "user1", 1, time.Minute)
	_, err := service.IssueTickets(ctx, active)
	assert.ErrorIs(t, err, status.ErrHoldAlreadyResolved)

	released := models.NewHold("hold-3", "vip", "event1", "user1", 1, time.Minute)
	require.True(t, released.TransitionFrom(models.HoldActive, models.HoldReleased))
	_, err = service.IssueTickets(ctx, released)
	assert.ErrorIs(t, err, status.ErrHoldAlreadyResolved)
}

func TestTicketService_CheckIn_ExactlyOnce(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	tickets, err := service.IssueTickets(ctx, confirmedHold(t, 1))
	require.NoError(t, err)
	code := tickets[0].Code

	checked, err := service.CheckIn(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCheckedIn, checked.State())

	_, err = service.CheckIn(ctx, code)
	assert.ErrorIs(t, err, status.ErrAlreadyCheckedIn)
}

func TestTicketService_CheckIn_ConcurrentScans_SingleWinner(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	tickets, err := service.IssueTickets(ctx, confirmedHold(t, 1))
	require.NoError(t, err)
	code := tickets[0].Code

	const scanners = 20
	var wg sync.WaitGroup
	errs := make(chan error, scanners)

	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CheckIn(ctx, code)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, duplicates := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case err == status.ErrAlreadyCheckedIn:
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, scanners-1, duplicates)
}

func TestTicketService_CheckIn_UnknownCode(t *testing.T) {
	service := NewTicketService(nil)

	_, err := service.CheckIn(context.Background(), "DEADBEEFDEADBEEFDEADBEEFDEADBEEF")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func TestTicketService_CheckIn_RevokedTicket(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	tickets, err := service.IssueTickets(ctx, confirmedHold(t, 1))
	require.NoError(t, err)

	_, err = service.Revoke(ctx, tickets[0].ID)
	require.NoError(t, err)

	_, err = service.CheckIn(ctx, tickets[0].Code)
	assert.ErrorIs(t, err, status.ErrTicketRevoked)
}

func TestTicketService_Revoke(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	tickets, err := service.IssueTickets(ctx, confirmedHold(t, 1))
	require.NoError(t, err)
	ticketID := tickets[0].ID

	revoked, err := service.Revoke(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketRevoked, revoked.State())

	// idempotent
	_, err = service.Revoke(ctx, ticketID)
	assert.NoError(t, err)

	_, err = service.Revoke(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func TestTicketService_RevokeAfterCheckIn_KeepsEntryRecord(t *testing.T) {
	service := NewTicketService(nil)
	ctx := context.Background()

	tickets, err := service.IssueTickets(ctx, confirmedHold(t, 1))
	require.NoError(t, err)

	_, err = service.CheckIn(ctx, tickets[0].Code)
	require.NoError(t, err)

	revoked, err := service.Revoke(ctx, tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketRevoked, revoked.State())
}

func TestCodeDigest_Deterministic(t *testing.T) {
	a := CodeDigest("ABC123")
	b := CodeDigest("ABC123")
	c := CodeDigest("ABC124")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
