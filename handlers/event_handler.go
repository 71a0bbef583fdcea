package handlers

import (
	"net/http"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/ilivegod/TickEase/services"
)

type EventHandler struct {
	app      *pocketbase.PocketBase
	checkout *services.CheckoutService
}

func NewEventHandler(app *pocketbase.PocketBase, checkout *services.CheckoutService) *EventHandler {
	return &EventHandler{
		app:      app,
		checkout: checkout,
	}
}

// ListTiers - Tier catalog for one event, with live availability
func (h *EventHandler) ListTiers(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	var rows []struct {
		ID       string  `db:"id"`
		Name     string  `db:"name"`
		Price    float64 `db:"price"`
		Currency string  `db:"currency"`
		Capacity int64   `db:"capacity"`
	}

	err := h.app.DB().
		Select("id", "name", "price", "currency", "capacity").
		From("tiers").
		Where(dbx.HashExp{"event_id": eventID}).
		OrderBy("price ASC").
		All(&rows)
	if err != nil {
		return apis.NewBadRequestError("Failed to load tiers", err)
	}
	if len(rows) == 0 {
		return apis.NewNotFoundError("Event has no tiers", nil)
	}

	ctx := e.Request.Context()
	tiers := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		// overlay the hot availability count; the durable column only
		// tracks confirmed sales
		available, err := h.checkout.Snapshot(ctx, row.ID)
		if err != nil {
			available = 0
		}

		tierStatus := "available"
		if available == 0 {
			tierStatus = "sold_out"
		}

		tiers = append(tiers, map[string]any{
			"tier_id":   row.ID,
			"name":      row.Name,
			"price":     row.Price,
			"currency":  row.Currency,
			"capacity":  row.Capacity,
			"available": available,
			"status":    tierStatus,
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"tiers":    tiers,
	})
}
