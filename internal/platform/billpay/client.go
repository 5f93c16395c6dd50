package billpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/fernpay/paydesk/internal/app/service/saga"
	cfgpkg "github.com/fernpay/paydesk/pkg/config"
)

// Client submits bill payments and gift card orders to the aggregator. The
// custom identifier on each request is echoed back in webhooks, so orders can
// be correlated even when the synchronous response is lost.
type Client struct {
	log        *zap.SugaredLogger
	httpClient *http.Client
	name       string
	baseURL    string
	apiKey     string
}

func NewClient(log *zap.SugaredLogger, cfg *cfgpkg.Config) *Client {
	return &Client{
		log:        log,
		httpClient: &http.Client{Timeout: cfg.Provider.Timeout},
		name:       cfg.Provider.Name,
		baseURL:    cfg.Provider.BaseURL,
		apiKey:     cfg.Provider.APIKey,
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) PayBill(ctx context.Context, req *saga.BillPaymentRequest) (*saga.ProviderReceipt, error) {
	return c.post(ctx, "/api/v1/bills/pay", req)
}

func (c *Client) OrderGiftCard(ctx context.Context, req *saga.GiftCardRequest) (*saga.ProviderReceipt, error) {
	return c.post(ctx, "/api/v1/giftcards/orders", req)
}

// post submits one provider call and decodes the receipt even on an error
// status: a 5xx body can still carry the transaction id the webhook will key
// on, and the caller persists it before failing the order.
func (c *Client) post(ctx context.Context, path string, body any) (*saga.ProviderReceipt, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	var receipt saga.ProviderReceipt
	if jerr := json.Unmarshal(raw, &receipt); jerr != nil || receipt.TransactionID == "" {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("provider %s returned %d: %s", c.name, resp.StatusCode, string(raw))
		}
		if jerr != nil {
			return nil, fmt.Errorf("failed to decode provider receipt: %w", jerr)
		}
		return nil, fmt.Errorf("provider %s returned no transaction id", c.name)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &receipt, fmt.Errorf("provider %s returned %d: %s", c.name, resp.StatusCode, string(raw))
	}
	return &receipt, nil
}
