package ledgerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/fernpay/paydesk/internal/app/service/quote"
	"github.com/fernpay/paydesk/internal/app/service/saga"
	cfgpkg "github.com/fernpay/paydesk/pkg/config"
)

// Client talks to the internal ledger service. Debits and refunds carry a
// caller-chosen reference id; the ledger applies each reference at most once,
// so retrying a call with the same reference is safe.
type Client struct {
	log        *zap.SugaredLogger
	httpClient *http.Client
	baseURL    string
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
}

func NewClient(log *zap.SugaredLogger, cfg *cfgpkg.Config) *Client {
	return &Client{
		log:        log,
		httpClient: &http.Client{Timeout: cfg.Ledger.Timeout},
		baseURL:    cfg.Ledger.BaseURL,
		signingKey: []byte(cfg.Ledger.SigningKey),
		issuer:     cfg.Ledger.Issuer,
		tokenTTL:   cfg.Ledger.TokenTTL,
	}
}

// serviceToken mints a short-lived HS256 token per request; the ledger trusts
// the shared signing key, not the caller's network position.
func (c *Client) serviceToken() (string, error) {
	now := time.Now().UTC()
	claims := jwt.StandardClaims{
		Issuer:    c.issuer,
		Subject:   "paydesk",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(c.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal ledger request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build ledger request: %w", err)
	}
	token, err := c.serviceToken()
	if err != nil {
		return fmt.Errorf("failed to sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("ledger returned %d for %s %s: %s", resp.StatusCode, method, path, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}
	return nil
}

// GetAccount resolves the account's currency for quoting.
func (c *Client) GetAccount(ctx context.Context, id string) (*quote.Account, error) {
	var acct quote.Account
	if err := c.do(ctx, http.MethodGet, "/internal/v1/accounts/"+id, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *Client) Debit(ctx context.Context, entry *saga.LedgerEntry) error {
	return c.do(ctx, http.MethodPost, "/internal/v1/entries/debit", entry, nil)
}

func (c *Client) Refund(ctx context.Context, entry *saga.LedgerEntry) error {
	return c.do(ctx, http.MethodPost, "/internal/v1/entries/refund", entry, nil)
}
