package fxrates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fernpay/paydesk/internal/app/service/quote"
	cfgpkg "github.com/fernpay/paydesk/pkg/config"
)

func TestGetRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/rates", r.URL.Path)
		require.Equal(t, "USD", r.URL.Query().Get("from"))
		require.Equal(t, "NGN", r.URL.Query().Get("to"))
		_, _ = w.Write([]byte(`{"rate":"1500.25"}`))
	}))
	defer srv.Close()

	cfg := &cfgpkg.Config{}
	cfg.Rates.BaseURL = srv.URL
	cfg.Rates.Provider = "openexchange"
	c := NewClient(zap.NewNop().Sugar(), cfg)

	rate, err := c.GetRate(context.Background(), "USD", "NGN")
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1500.25")))
	require.Equal(t, "openexchange", c.Provider())
}

func TestGetRate_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`unsupported pair`))
	}))
	defer srv.Close()

	cfg := &cfgpkg.Config{}
	cfg.Rates.BaseURL = srv.URL
	c := NewClient(zap.NewNop().Sugar(), cfg)

	_, err := c.GetRate(context.Background(), "USD", "XXX")
	require.Error(t, err)
	require.Contains(t, err.Error(), "400")
}

func TestCalculateFees_FallbackTable(t *testing.T) {
	cfg := &cfgpkg.Config{}
	cfg.Rates.FallbackFeeBps = map[string]int64{"standard": 125, "default": 200}
	c := NewClient(zap.NewNop().Sugar(), cfg)

	// 125 bps on 100.00 = 1.25
	fee, err := c.CalculateFees(context.Background(), &quote.FeeQuery{
		Amount: decimal.NewFromInt(100), UserTier: "standard",
	})
	require.NoError(t, err)
	require.True(t, fee.Equal(decimal.RequireFromString("1.25")))

	// Unknown tier takes the default entry.
	fee, err = c.CalculateFees(context.Background(), &quote.FeeQuery{
		Amount: decimal.NewFromInt(100), UserTier: "vip",
	})
	require.NoError(t, err)
	require.True(t, fee.Equal(decimal.RequireFromString("2")))
}

func TestCalculateFees_Endpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/fees", r.URL.Path)
		_, _ = w.Write([]byte(`{"fee":"0.75"}`))
	}))
	defer srv.Close()

	cfg := &cfgpkg.Config{}
	cfg.Rates.BaseURL = srv.URL
	c := NewClient(zap.NewNop().Sugar(), cfg)

	fee, err := c.CalculateFees(context.Background(), &quote.FeeQuery{
		Amount: decimal.NewFromInt(10), FromCurrency: "USD", ToCurrency: "NGN", UserTier: "standard",
	})
	require.NoError(t, err)
	require.True(t, fee.Equal(decimal.RequireFromString("0.75")))
}
