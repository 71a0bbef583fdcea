package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("tiers")

		collection.Fields.Add(
			&core.TextField{Name: "event_id", Required: true},
			&core.TextField{Name: "name", Required: true},
			&core.NumberField{Name: "price", Required: true},
			&core.TextField{Name: "currency", Required: true},
			&core.NumberField{Name: "capacity", Required: true, OnlyInt: true},
			// confirmed-sale bookkeeping; live availability is served
			// from the ledger
			&core.NumberField{Name: "available", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tiers_event_id", false, "event_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tiers")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
