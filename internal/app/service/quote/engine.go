package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrRateUnavailable means no usable FX spot rate exists for the pair.
	ErrRateUnavailable = errors.New("fx rate unavailable")
	// ErrQuote covers every other pricing failure (account lookup, fee config).
	ErrQuote = errors.New("quote unavailable")
)

// Account is the slice of the ledger account the engine needs.
type Account struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
}

// AccountSource resolves the currency of a source account.
type AccountSource interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
}

// RateSource returns an FX spot rate quoted as target units per source unit.
type RateSource interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
	Provider() string
}

type FeeQuery struct {
	Amount       decimal.Decimal `json:"amount"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	UserTier     string          `json:"user_tier"`
}

// FeeSource prices the conversion fee for a base source amount.
type FeeSource interface {
	CalculateFees(ctx context.Context, q *FeeQuery) (decimal.Decimal, error)
}

type Request struct {
	SourceAccountID string
	TargetAmount    decimal.Decimal
	TargetCurrency  string
	UserTier        string
}

// Quote is an advisory price for one submission. It is recomputed fresh on
// every call; idempotent replays short-circuit before reaching the engine.
type Quote struct {
	SourceCurrency  string           `json:"source_currency"`
	SourceAmount    decimal.Decimal  `json:"source_amount"`
	FeeCurrency     string           `json:"fee_currency"`
	FeeAmount       decimal.Decimal  `json:"fee_amount"`
	NeedsConversion bool             `json:"needs_conversion"`
	FxRate          *decimal.Decimal `json:"fx_rate"`
	FxProvider      *string          `json:"fx_provider"`
}

type Engine struct {
	accounts AccountSource
	rates    RateSource
	fees     FeeSource
	log      *zap.SugaredLogger
}

func NewEngine(accounts AccountSource, rates RateSource, fees FeeSource, log *zap.SugaredLogger) *Engine {
	return &Engine{accounts: accounts, rates: rates, fees: fees, log: log}
}

// Price resolves the source currency and computes the debit amount for the
// requested target amount. Same-currency submissions carry no fee and no
// conversion; otherwise sourceAmount = targetAmount/rate + fee.
func (e *Engine) Price(ctx context.Context, req *Request) (*Quote, error) {
	acct, err := e.accounts.GetAccount(ctx, req.SourceAccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve account %s: %v", ErrQuote, req.SourceAccountID, err)
	}

	if acct.Currency == req.TargetCurrency {
		return &Quote{
			SourceCurrency:  acct.Currency,
			SourceAmount:    req.TargetAmount,
			FeeCurrency:     acct.Currency,
			FeeAmount:       decimal.Zero,
			NeedsConversion: false,
		}, nil
	}

	rate, err := e.rates.GetRate(ctx, acct.Currency, req.TargetCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %s->%s: %v", ErrRateUnavailable, acct.Currency, req.TargetCurrency, err)
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive rate %s for %s->%s", ErrRateUnavailable, rate, acct.Currency, req.TargetCurrency)
	}

	baseSource := req.TargetAmount.Div(rate)
	fee, err := e.fees.CalculateFees(ctx, &FeeQuery{
		Amount:       baseSource,
		FromCurrency: acct.Currency,
		ToCurrency:   req.TargetCurrency,
		UserTier:     req.UserTier,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fee for %s->%s tier %s: %v", ErrQuote, acct.Currency, req.TargetCurrency, req.UserTier, err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("%w: negative fee %s", ErrQuote, fee)
	}

	return &Quote{
		SourceCurrency:  acct.Currency,
		SourceAmount:    baseSource.Add(fee),
		FeeCurrency:     acct.Currency,
		FeeAmount:       fee,
		NeedsConversion: true,
		FxRate:          &rate,
		FxProvider:      lo.ToPtr(e.rates.Provider()),
	}, nil
}
