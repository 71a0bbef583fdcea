package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ilivegod/TickEase/utils"
)

// Gateway talks to an external QR payment gateway over HTTP. Every call
// carries a deadline and runs behind a circuit breaker so a degraded
// gateway fails fast instead of pinning checkout goroutines.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *utils.CircuitBreaker
}

type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: utils.NewCircuitBreaker("payment-gateway"),
	}
}

func (g *Gateway) Name() ProviderName { return ProviderGateway }

func (g *Gateway) Authorize(ctx context.Context, req *Request) (*Authorization, error) {
	body := map[string]any{
		"amount":         req.Amount.StringFixed(2),
		"currency":       req.Currency,
		"reference":      req.Reference,
		"description":    req.Description,
		"expiry_seconds": int(req.ExpiresIn.Seconds()),
	}

	var auth Authorization
	if err := g.post(ctx, "/v1/charges", body, &auth); err != nil {
		return nil, fmt.Errorf("gateway authorize: %w", err)
	}
	return &auth, nil
}

func (g *Gateway) CheckCharge(ctx context.Context, ref string) (*Status, error) {
	var st Status
	if err := g.get(ctx, "/v1/charges/"+ref, &st); err != nil {
		return nil, fmt.Errorf("gateway check charge: %w", err)
	}
	return &st, nil
}

func (g *Gateway) Void(ctx context.Context, ref string) error {
	if err := g.post(ctx, "/v1/charges/"+ref+"/void", map[string]any{}, nil); err != nil {
		return fmt.Errorf("gateway void: %w", err)
	}
	return nil
}

func (g *Gateway) Close(_ context.Context) error {
	g.client.CloseIdleConnections()
	return nil
}

func (g *Gateway) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	_, err = g.breaker.Execute(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.apiKey)

		return nil, g.do(req, out)
	})
	return err
}

func (g *Gateway) get(ctx context.Context, path string, out any) error {
	_, err := g.breaker.Execute(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+g.apiKey)

		return nil, g.do(req, out)
	})
	return err
}

func (g *Gateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
