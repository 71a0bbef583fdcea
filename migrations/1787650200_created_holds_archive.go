package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("holds_archive")

		collection.Fields.Add(
			&core.TextField{Name: "hold_id", Required: true},
			&core.TextField{Name: "tier_id", Required: true},
			&core.TextField{Name: "event_id"},
			&core.TextField{Name: "owner", Required: true},
			&core.NumberField{Name: "quantity", Required: true, OnlyInt: true},
			&core.SelectField{
				Name:      "state",
				Values:    []string{"confirmed", "released", "expired"},
				MaxSelect: 1,
				Required:  true,
			},
			&core.DateField{Name: "expires_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_holds_archive_hold_id", true, "hold_id", "")
		collection.AddIndex("idx_holds_archive_owner", false, "owner", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("holds_archive")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
