package fxrates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fernpay/paydesk/internal/app/service/quote"
	cfgpkg "github.com/fernpay/paydesk/pkg/config"
)

const feeBpsDenominator = 10000

// Client quotes FX spot rates and conversion fees from the rates service.
// When no fee endpoint is configured it falls back to the per-tier basis
// point table from config, so dev environments run without the dependency.
type Client struct {
	log            *zap.SugaredLogger
	httpClient     *http.Client
	baseURL        string
	provider       string
	fallbackFeeBps map[string]int64
}

func NewClient(log *zap.SugaredLogger, cfg *cfgpkg.Config) *Client {
	return &Client{
		log:            log,
		httpClient:     &http.Client{Timeout: cfg.Rates.Timeout},
		baseURL:        cfg.Rates.BaseURL,
		provider:       cfg.Rates.Provider,
		fallbackFeeBps: cfg.Rates.FallbackFeeBps,
	}
}

// Provider names the upstream rate source recorded on converted orders.
func (c *Client) Provider() string {
	return c.provider
}

type rateResponse struct {
	Rate      decimal.Decimal `json:"rate"`
	Timestamp time.Time       `json:"timestamp"`
}

// GetRate returns target units per source unit.
func (c *Client) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	q := url.Values{"from": {from}, "to": {to}}
	endpoint := fmt.Sprintf("%s/v1/rates?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build rate request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return decimal.Zero, fmt.Errorf("rates service returned %d for %s->%s: %s", resp.StatusCode, from, to, string(raw))
	}

	var out rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode rate response: %w", err)
	}
	return out.Rate, nil
}

type feeResponse struct {
	Fee decimal.Decimal `json:"fee"`
}

// CalculateFees prices the conversion fee on the base source amount.
func (c *Client) CalculateFees(ctx context.Context, q *quote.FeeQuery) (decimal.Decimal, error) {
	if c.baseURL == "" {
		return c.fallbackFee(q), nil
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to marshal fee query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/fees", bytes.NewReader(payload))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build fee request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fee request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return decimal.Zero, fmt.Errorf("rates service returned %d for fee query: %s", resp.StatusCode, string(raw))
	}

	var out feeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode fee response: %w", err)
	}
	return out.Fee, nil
}

// fallbackFee applies the configured basis points for the user's tier, with a
// "default" entry as the catch-all.
func (c *Client) fallbackFee(q *quote.FeeQuery) decimal.Decimal {
	bps, ok := c.fallbackFeeBps[q.UserTier]
	if !ok {
		bps = c.fallbackFeeBps["default"]
	}
	if bps <= 0 {
		return decimal.Zero
	}
	return q.Amount.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(feeBpsDenominator))
}
