package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/ilivegod/TickEase/internal/services/payment"
	"github.com/ilivegod/TickEase/internal/status"
	"github.com/ilivegod/TickEase/models"
	"github.com/ilivegod/TickEase/services"
)

type CheckoutHandler struct {
	app      *pocketbase.PocketBase
	checkout *services.CheckoutService

	// sandbox is only set when the sandbox provider is configured; it
	// backs the dev-only payment simulation endpoint.
	sandbox *payment.Sandbox
}

func NewCheckoutHandler(app *pocketbase.PocketBase, checkout *services.CheckoutService, sandbox *payment.Sandbox) *CheckoutHandler {
	return &CheckoutHandler{
		app:      app,
		checkout: checkout,
		sandbox:  sandbox,
	}
}

// Begin - Place a hold on a tier and authorize a pending charge
func (h *CheckoutHandler) Begin(e *core.RequestEvent) error {
	var req struct {
		TierID   string `json:"tier_id"`
		Quantity int64  `json:"quantity"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	session, err := h.checkout.BeginCheckout(e.Request.Context(), req.TierID, e.Auth.Id, req.Quantity)
	switch {
	case errors.Is(err, status.ErrTierNotFound):
		return apis.NewNotFoundError("Tier not found", err)
	case errors.Is(err, status.ErrInsufficientInventory):
		return apis.NewApiError(http.StatusConflict, "Not enough tickets left in this tier", nil)
	case err != nil:
		return apis.NewBadRequestError("Failed to start checkout", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"hold_id":     session.Hold.ID,
		"expires_at":  session.Hold.ExpiresAt,
		"payment_ref": session.PaymentRef,
		"qr_payload":  session.QRPayload,
		"amount":      session.Amount.StringFixed(2),
		"currency":    session.Currency,
	})
}

// Complete - Settle a purchase attempt with the reported payment outcome
func (h *CheckoutHandler) Complete(e *core.RequestEvent) error {
	var req struct {
		HoldID  string `json:"hold_id"`
		Outcome string `json:"outcome"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	outcome, err := services.ParseOutcome(req.Outcome)
	if err != nil {
		return apis.NewBadRequestError("Invalid payment outcome", err)
	}

	session, ok := h.checkout.Session(req.HoldID)
	if !ok || session.Hold.OwnerID != e.Auth.Id {
		return apis.NewNotFoundError("Hold not found", nil)
	}

	tickets, err := h.checkout.CompleteCheckout(e.Request.Context(), req.HoldID, outcome)
	switch {
	case errors.Is(err, status.ErrHoldExpired):
		return apis.NewApiError(http.StatusConflict, "Reservation expired before payment settled. The charge has been voided.", nil)
	case errors.Is(err, status.ErrHoldNotFound):
		return apis.NewNotFoundError("Hold not found", err)
	case errors.Is(err, status.ErrHoldAlreadyResolved):
		return apis.NewApiError(http.StatusConflict, "Hold was already resolved", nil)
	case err != nil:
		return apis.NewBadRequestError("Failed to complete checkout", err)
	}

	if outcome != services.OutcomeSuccess {
		return e.JSON(http.StatusOK, map[string]any{
			"hold_id": req.HoldID,
			"status":  string(outcome),
		})
	}

	h.archiveTickets(tickets)

	ticketData := make([]map[string]any, 0, len(tickets))
	for _, ticket := range tickets {
		ticketData = append(ticketData, map[string]any{
			"ticket_id": ticket.ID,
			"code":      ticket.Code,
			"tier_id":   ticket.TierID,
			"event_id":  ticket.EventID,
			"issued_at": ticket.IssuedAt,
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"hold_id": req.HoldID,
		"status":  "confirmed",
		"tickets": ticketData,
	})
}

// Cancel - Release a hold before payment settles
func (h *CheckoutHandler) Cancel(e *core.RequestEvent) error {
	holdID := e.Request.PathValue("holdId")

	err := h.checkout.CancelCheckout(e.Request.Context(), holdID, e.Auth.Id)
	switch {
	case errors.Is(err, status.ErrHoldNotFound):
		return apis.NewNotFoundError("Hold not found", err)
	case errors.Is(err, status.ErrHoldAlreadyResolved):
		return apis.NewApiError(http.StatusConflict, "Hold was already resolved", nil)
	case err != nil:
		return apis.NewBadRequestError("Failed to cancel checkout", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"hold_id": holdID,
		"status":  "released",
	})
}

// SimulatePayment - Settle a sandbox charge (development only)
func (h *CheckoutHandler) SimulatePayment(e *core.RequestEvent) error {
	if h.sandbox == nil {
		return apis.NewNotFoundError("Not available with this payment provider", nil)
	}

	var req struct {
		PaymentRef string `json:"payment_ref"`
		Paid       bool   `json:"paid"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.sandbox.SettleCharge(req.PaymentRef, req.Paid); err != nil {
		return apis.NewBadRequestError("Failed to settle charge", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"payment_ref": req.PaymentRef,
		"paid":        req.Paid,
	})
}

// archiveTickets writes issued tickets to the durable tickets
// collection. The in-memory registry stays authoritative for scans;
// a write failure here is logged, not surfaced to the buyer.
func (h *CheckoutHandler) archiveTickets(tickets []*models.Ticket) {
	collection, err := h.app.FindCollectionByNameOrId("tickets")
	if err != nil {
		slog.Error("tickets collection missing", "err", err)
		return
	}

	for _, ticket := range tickets {
		// a replayed success callback re-issues the same tickets; don't
		// archive them twice
		if existing, _ := h.app.FindFirstRecordByFilter(collection, "ticket_id = {:id}", dbx.Params{"id": ticket.ID}); existing != nil {
			continue
		}

		record := core.NewRecord(collection)
		record.Set("ticket_id", ticket.ID)
		record.Set("hold_id", ticket.HoldID)
		record.Set("tier_id", ticket.TierID)
		record.Set("event_id", ticket.EventID)
		record.Set("owner", ticket.OwnerID)
		record.Set("code_digest", services.CodeDigest(ticket.Code))
		record.Set("status", ticket.State().String())

		if err := h.app.Save(record); err != nil {
			slog.Error("ticket archive failed", "ticket_id", ticket.ID, "err", err)
		}
	}
}
