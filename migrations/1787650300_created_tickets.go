package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{Name: "ticket_id", Required: true},
			&core.TextField{Name: "hold_id", Required: true},
			&core.TextField{Name: "tier_id", Required: true},
			&core.TextField{Name: "event_id"},
			&core.TextField{Name: "owner", Required: true},
			// digest of the scan code; the plaintext code lives only in
			// the buyer's wallet
			&core.TextField{Name: "code_digest", Required: true},
			&core.SelectField{
				Name:      "status",
				Values:    []string{"issued", "checked_in", "revoked"},
				MaxSelect: 1,
				Required:  true,
			},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tickets_ticket_id", true, "ticket_id", "")
		collection.AddIndex("idx_tickets_code_digest", true, "code_digest", "")
		collection.AddIndex("idx_tickets_owner", false, "owner", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
