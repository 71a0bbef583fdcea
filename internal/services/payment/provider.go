package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderName identifies a payment backend.
type ProviderName string

const (
	ProviderSandbox ProviderName = "sandbox"
	ProviderGateway ProviderName = "gateway"
)

// ChargeState mirrors the provider-side lifecycle of one charge.
type ChargeState string

const (
	ChargePending ChargeState = "pending"
	ChargePaid    ChargeState = "paid"
	ChargeFailed  ChargeState = "failed"
	ChargeVoided  ChargeState = "voided"
)

// Request asks the provider to authorize a charge for one checkout.
// The core never sees card or mobile-money details; the provider hands
// back an opaque QR payload the app renders for the buyer.
type Request struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference"` // our hold ID
	Description string          `json:"description,omitempty"`
	ExpiresIn   time.Duration   `json:"-"`
}

// Authorization is the provider's answer to a Request.
type Authorization struct {
	Ref       string    `json:"ref"` // provider-side charge reference
	QRPayload string    `json:"qr_payload"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Status reports the current state of a charge.
type Status struct {
	Ref      string          `json:"ref"`
	State    ChargeState     `json:"state"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Provider is the outbound payment collaborator. All calls must honor
// ctx deadlines; the checkout orchestrator is the only caller.
type Provider interface {
	Name() ProviderName

	// Authorize registers a pending charge and returns its QR payload.
	Authorize(ctx context.Context, req *Request) (*Authorization, error)

	// CheckCharge returns the provider-side state of a charge.
	CheckCharge(ctx context.Context, ref string) (*Status, error)

	// Void cancels or refunds a charge, e.g. when payment settled after
	// the hold already expired.
	Void(ctx context.Context, ref string) error

	Close(ctx context.Context) error
}
