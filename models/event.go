package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Venue     string    `json:"venue"`
	Organizer string    `json:"organizer"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"` // draft, on_sale, closed
}

// PriceTier is a priced ticket category with its own fixed capacity.
// The live available count is not kept here; the inventory ledger owns it.
type PriceTier struct {
	ID       string          `json:"id"`
	EventID  string          `json:"event_id"`
	Name     string          `json:"name"` // Basic, Premium, VIP
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Capacity int64           `json:"capacity"`
}
