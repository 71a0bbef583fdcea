package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_Authorize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "150.00", body["amount"])
		assert.Equal(t, "GHS", body["currency"])
		assert.Equal(t, "hold-42", body["reference"])

		json.NewEncoder(w).Encode(Authorization{
			Ref:       "chg_123",
			QRPayload: "QR|chg_123",
			ExpiresAt: time.Now().Add(5 * time.Minute),
		})
	}))
	defer server.Close()

	gateway := NewGateway(GatewayConfig{BaseURL: server.URL, APIKey: "test-key", Timeout: time.Second})

	auth, err := gateway.Authorize(context.Background(), &Request{
		Amount:    decimal.NewFromFloat(150),
		Currency:  "GHS",
		Reference: "hold-42",
		ExpiresIn: 5 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "chg_123", auth.Ref)
	assert.Equal(t, "QR|chg_123", auth.QRPayload)
}

func TestGateway_CheckCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges/chg_123", r.URL.Path)
		json.NewEncoder(w).Encode(Status{Ref: "chg_123", State: ChargePaid, Currency: "GHS"})
	}))
	defer server.Close()

	gateway := NewGateway(GatewayConfig{BaseURL: server.URL, Timeout: time.Second})

	st, err := gateway.CheckCharge(context.Background(), "chg_123")
	require.NoError(t, err)
	assert.Equal(t, ChargePaid, st.State)
}

func TestGateway_Void(t *testing.T) {
	voided := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges/chg_123/void", r.URL.Path)
		voided = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	gateway := NewGateway(GatewayConfig{BaseURL: server.URL, Timeout: time.Second})

	require.NoError(t, gateway.Void(context.Background(), "chg_123"))
	assert.True(t, voided)
}

func TestGateway_ErrorStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient funds", http.StatusPaymentRequired)
	}))
	defer server.Close()

	gateway := NewGateway(GatewayConfig{BaseURL: server.URL, Timeout: time.Second})

	_, err := gateway.CheckCharge(context.Background(), "chg_999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
}

func TestGateway_TimeoutHonored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	gateway := NewGateway(GatewayConfig{BaseURL: server.URL, Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := gateway.CheckCharge(context.Background(), "chg_slow")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestSandbox_SettleAndVoid(t *testing.T) {
	sandbox := NewSandbox()
	ctx := context.Background()

	auth, err := sandbox.Authorize(ctx, &Request{
		Amount:    decimal.NewFromFloat(49.99),
		Currency:  "GHS",
		Reference: "hold-1",
		ExpiresIn: time.Minute,
	})
	require.NoError(t, err)
	assert.Contains(t, auth.QRPayload, auth.Ref)

	st, err := sandbox.CheckCharge(ctx, auth.Ref)
	require.NoError(t, err)
	assert.Equal(t, ChargePending, st.State)

	require.NoError(t, sandbox.SettleCharge(auth.Ref, true))
	st, err = sandbox.CheckCharge(ctx, auth.Ref)
	require.NoError(t, err)
	assert.Equal(t, ChargePaid, st.State)

	// settling twice is rejected
	assert.Error(t, sandbox.SettleCharge(auth.Ref, false))

	require.NoError(t, sandbox.Void(ctx, auth.Ref))
	assert.True(t, sandbox.Voided(auth.Ref))
}
