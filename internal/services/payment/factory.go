package payment

import (
	"fmt"

	"github.com/ilivegod/TickEase/config"
)

// New builds the configured provider. The sandbox is the default in
// development; real deployments point PAYMENT_PROVIDER at the gateway.
func New(cfg *config.Config) (Provider, error) {
	switch ProviderName(cfg.PaymentProvider) {
	case ProviderSandbox:
		return NewSandbox(), nil
	case ProviderGateway:
		if cfg.PaymentGatewayURL == "" {
			return nil, fmt.Errorf("payment: PAYMENT_GATEWAY_URL is required for the gateway provider")
		}
		return NewGateway(GatewayConfig{
			BaseURL: cfg.PaymentGatewayURL,
			APIKey:  cfg.PaymentGatewayKey,
			Timeout: cfg.PaymentTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("payment: unknown provider %q", cfg.PaymentProvider)
	}
}
