package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Seeds one demo event with three price tiers so a fresh checkout can
// be exercised end to end without touching the admin UI.
func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		event := core.NewRecord(events)
		event.Set("name", "Summer Music Festival")
		event.Set("venue", "Accra Sports Stadium")
		event.Set("organizer", "TickEase Live")
		event.Set("status", "on_sale")
		if err := app.Save(event); err != nil {
			return err
		}

		tiers, err := app.FindCollectionByNameOrId("tiers")
		if err != nil {
			return err
		}

		seed := []struct {
			name     string
			price    float64
			capacity int64
		}{
			{"Basic", 49.99, 300},
			{"Premium", 99.99, 150},
			{"VIP", 199.99, 50},
		}

		for _, tier := range seed {
			record := core.NewRecord(tiers)
			record.Set("event_id", event.Id)
			record.Set("name", tier.name)
			record.Set("price", tier.price)
			record.Set("currency", "GHS")
			record.Set("capacity", tier.capacity)
			record.Set("available", tier.capacity)
			if err := app.Save(record); err != nil {
				return err
			}
		}

		return nil
	}, func(app core.App) error {
		return nil
	})
}
