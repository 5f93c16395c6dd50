package billpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fernpay/paydesk/internal/app/service/saga"
	cfgpkg "github.com/fernpay/paydesk/pkg/config"
)

func newTestClient(baseURL string) *Client {
	cfg := &cfgpkg.Config{}
	cfg.Provider.Name = "billaggr"
	cfg.Provider.BaseURL = baseURL
	cfg.Provider.APIKey = "key-123"
	return NewClient(zap.NewNop().Sugar(), cfg)
}

func TestPayBill_DecodesReceipt(t *testing.T) {
	var gotKey string
	var gotBody saga.BillPaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/bills/pay", r.URL.Path)
		gotKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction_id":"tx-9","delivery_status":"DELIVERED"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	receipt, err := c.PayBill(context.Background(), &saga.BillPaymentRequest{
		BillerID:                "biller-x",
		SubscriberAccountNumber: "0801234567",
		Amount:                  decimal.RequireFromString("50.00"),
		Currency:                "USD",
		CustomIdentifier:        "po:abc",
	})
	require.NoError(t, err)
	require.Equal(t, "tx-9", receipt.TransactionID)
	require.True(t, receipt.Delivered())
	require.Equal(t, "key-123", gotKey)
	require.Equal(t, "biller-x", gotBody.BillerID)
	require.Equal(t, "po:abc", gotBody.CustomIdentifier)
}

func TestPost_ErrorStatusStillReturnsReceipt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"transaction_id":"tx-ambiguous","delivery_status":"PENDING"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	receipt, err := c.OrderGiftCard(context.Background(), &saga.GiftCardRequest{
		ProductID: "gc-1", CountryCode: "US", Quantity: 1, Currency: "USD",
	})
	require.Error(t, err)
	require.NotNil(t, receipt, "transaction id must survive an error status for webhook correlation")
	require.Equal(t, "tx-ambiguous", receipt.TransactionID)
}

func TestPost_ErrorStatusWithoutReceipt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`upstream maintenance`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	receipt, err := c.PayBill(context.Background(), &saga.BillPaymentRequest{BillerID: "b", SubscriberAccountNumber: "1"})
	require.Error(t, err)
	require.Nil(t, receipt)
	require.Contains(t, err.Error(), "503")
}
