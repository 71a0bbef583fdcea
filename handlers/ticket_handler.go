package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/ilivegod/TickEase/internal/status"
	"github.com/ilivegod/TickEase/services"
)

type TicketHandler struct {
	app     *pocketbase.PocketBase
	tickets *services.TicketService
}

func NewTicketHandler(app *pocketbase.PocketBase, tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{
		app:     app,
		tickets: tickets,
	}
}

// CheckIn - Consume a scan code at the gate
func (h *TicketHandler) CheckIn(e *core.RequestEvent) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Code == "" {
		return apis.NewBadRequestError("Missing scan code", nil)
	}

	ticket, err := h.tickets.CheckIn(e.Request.Context(), req.Code)
	switch {
	case errors.Is(err, status.ErrTicketNotFound):
		return apis.NewNotFoundError("Unknown ticket code", nil)
	case errors.Is(err, status.ErrAlreadyCheckedIn):
		return apis.NewApiError(http.StatusConflict, "Ticket already checked in", nil)
	case errors.Is(err, status.ErrTicketRevoked):
		return apis.NewApiError(http.StatusGone, "Ticket has been revoked", nil)
	case err != nil:
		return apis.NewBadRequestError("Check-in failed", err)
	}

	h.syncTicketStatus(services.CodeDigest(req.Code), ticket.State().String())

	return e.JSON(http.StatusOK, map[string]any{
		"ticket_id": ticket.ID,
		"event_id":  ticket.EventID,
		"tier_id":   ticket.TierID,
		"owner":     ticket.OwnerID,
		"status":    ticket.State().String(),
	})
}

// Revoke - Invalidate a ticket, e.g. for a refund (superusers only)
func (h *TicketHandler) Revoke(e *core.RequestEvent) error {
	ticketID := e.Request.PathValue("ticketId")

	ticket, err := h.tickets.Revoke(e.Request.Context(), ticketID)
	switch {
	case errors.Is(err, status.ErrTicketNotFound):
		return apis.NewNotFoundError("Ticket not found", nil)
	case err != nil:
		return apis.NewBadRequestError("Revoke failed", err)
	}

	record, ferr := h.app.FindFirstRecordByFilter("tickets", "ticket_id = {:id}", dbx.Params{"id": ticketID})
	if ferr == nil {
		record.Set("status", ticket.State().String())
		if serr := h.app.Save(record); serr != nil {
			slog.Error("ticket status sync failed", "ticket_id", ticketID, "err", serr)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket_id": ticket.ID,
		"status":    ticket.State().String(),
	})
}

// History - List the caller's issued tickets
func (h *TicketHandler) History(e *core.RequestEvent) error {
	records, err := h.app.FindRecordsByFilter(
		"tickets",
		"owner = {:owner}",
		"-created",
		50,
		0,
		dbx.Params{"owner": e.Auth.Id},
	)
	if err != nil {
		return apis.NewBadRequestError("Failed to load tickets", err)
	}

	result := make([]map[string]any, 0, len(records))
	for _, record := range records {
		result = append(result, map[string]any{
			"ticket_id": record.GetString("ticket_id"),
			"event_id":  record.GetString("event_id"),
			"tier_id":   record.GetString("tier_id"),
			"status":    record.GetString("status"),
			"created":   record.GetDateTime("created"),
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"tickets": result,
	})
}

// syncTicketStatus mirrors a state change into the durable tickets
// collection, best effort.
func (h *TicketHandler) syncTicketStatus(codeDigest, state string) {
	record, err := h.app.FindFirstRecordByFilter("tickets", "code_digest = {:digest}", dbx.Params{"digest": codeDigest})
	if err != nil {
		slog.Warn("no durable record for scanned ticket", "err", err)
		return
	}

	record.Set("status", state)
	if err := h.app.Save(record); err != nil {
		slog.Error("ticket status sync failed", "err", err)
	}
}
