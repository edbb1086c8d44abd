package gateio

import (
	"context"
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"gateio/pkg/core"
	"gateio/pkg/exchange"
	"gateio/pkg/session"
)

// Client is the typed REST client. Every call goes through a session, so
// rate limits, the circuit breaker and the cache apply.
type Client struct {
	session  *session.Session
	protocol *Protocol
}

// NewClient creates a REST client from config.
func NewClient(config *core.Config) (*Client, error) {
	s, err := session.New(config)
	if err != nil {
		return nil, err
	}
	protocol := NewProtocol()
	if err := s.SetProtocol(protocol); err != nil {
		return nil, err
	}
	return &Client{session: s, protocol: protocol}, nil
}

// SetLogger sets the logger used for HTTP and session logging.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.session.SetLogger(logger)
}

// Session returns the underlying session.
func (c *Client) Session() *session.Session {
	return c.session
}

// Close releases the HTTP client. Further calls fail with core.ErrClientClosed.
func (c *Client) Close() error {
	return c.session.Close()
}

func do[T any](ctx context.Context, c *Client, op core.Operation, params core.Params) (T, error) {
	var zero T
	result, err := c.session.Do(ctx, op, params)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected response type: %T", result)
	}
	return typed, nil
}

// ListCurrencyPairs lists all spot currency pairs.
func (c *Client) ListCurrencyPairs(ctx context.Context) ([]CurrencyPair, error) {
	return do[[]CurrencyPair](ctx, c, core.OpListCurrencyPairs, nil)
}

// ListTickers returns 24h tickers. An empty pair lists every pair.
func (c *Client) ListTickers(ctx context.Context, pair string) ([]Ticker, error) {
	params := core.Params{}
	if pair != "" {
		params["currency_pair"] = pair
	}
	return do[[]Ticker](ctx, c, core.OpListTickers, params)
}

// OrderBook returns the order book of pair. Supports WithInterval, WithLimit and WithOrderBookID.
func (c *Client) OrderBook(ctx context.Context, pair string, opts ...exchange.Option) (*OrderBookSnapshot, error) {
	params := exchange.ApplyOptions(opts...).Params(core.Params{"currency_pair": pair})
	return do[*OrderBookSnapshot](ctx, c, core.OpGetOrderBook, params)
}

// Candlesticks returns candlesticks of pair. WithLimit cannot be combined with WithTimeRange.
func (c *Client) Candlesticks(ctx context.Context, pair string, interval Interval, opts ...exchange.Option) ([]Candlestick, error) {
	params := exchange.ApplyOptions(opts...).Params(core.Params{"currency_pair": pair})
	if interval != "" {
		params["interval"] = string(interval)
	}
	return do[[]Candlestick](ctx, c, core.OpGetCandlesticks, params)
}

// ServerTime returns the exchange clock.
func (c *Client) ServerTime(ctx context.Context) (*ServerTime, error) {
	return do[*ServerTime](ctx, c, core.OpGetServerTime, nil)
}

// ListMarginCurrencyPairs lists pairs that support margin trading.
func (c *Client) ListMarginCurrencyPairs(ctx context.Context) ([]MarginCurrencyPair, error) {
	return do[[]MarginCurrencyPair](ctx, c, core.OpListMarginCurrencyPairs, nil)
}

// ListOpenOrders lists open orders grouped by pair. Supports WithPage, WithLimit and WithAccount.
func (c *Client) ListOpenOrders(ctx context.Context, opts ...exchange.Option) ([]OpenOrders, error) {
	return do[[]OpenOrders](ctx, c, core.OpListOpenOrders, exchange.ApplyOptions(opts...).Params(nil))
}

// CreateOrder submits order. Build it with the order package to get validation.
func (c *Client) CreateOrder(ctx context.Context, order NewOrder) (*SpotOrder, error) {
	return do[*SpotOrder](ctx, c, core.OpCreateOrder, core.Params{"order": order})
}

// CancelOrder cancels one order. Supports WithAccount.
func (c *Client) CancelOrder(ctx context.Context, orderID, pair string, opts ...exchange.Option) (*SpotOrder, error) {
	params := exchange.ApplyOptions(opts...).Params(core.Params{
		"currency_pair": pair,
	})
	params["order_id"] = orderID
	return do[*SpotOrder](ctx, c, core.OpCancelOrder, params)
}

// MyTrades lists personal fills on pair. Supports WithLimit, WithPage, WithOrderID and WithAccount.
func (c *Client) MyTrades(ctx context.Context, pair string, opts ...exchange.Option) ([]MyTrade, error) {
	params := exchange.ApplyOptions(opts...).Params(core.Params{"currency_pair": pair})
	return do[[]MyTrade](ctx, c, core.OpListMyTrades, params)
}

// SpotAccounts lists spot balances. An empty currency lists all of them.
func (c *Client) SpotAccounts(ctx context.Context, currency string) ([]SpotAccount, error) {
	params := core.Params{}
	if currency != "" {
		params["currency"] = currency
	}
	return do[[]SpotAccount](ctx, c, core.OpListSpotAccounts, params)
}

// CrossMarginAccount returns the cross margin account summary.
func (c *Client) CrossMarginAccount(ctx context.Context) (*CrossMarginAccount, error) {
	return do[*CrossMarginAccount](ctx, c, core.OpGetCrossMarginAccount, nil)
}

// CrossMarginRepay repays amount of a cross margin loan in currency.
func (c *Client) CrossMarginRepay(ctx context.Context, currency string, amount *apd.Decimal) ([]CrossMarginLoan, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("repay amount must be positive")
	}
	return do[[]CrossMarginLoan](ctx, c, core.OpCrossMarginRepay, core.Params{
		"currency": currency,
		"amount":   amount.Text('f'),
	})
}

// CrossMarginCurrencies lists currencies supported by cross margin.
func (c *Client) CrossMarginCurrencies(ctx context.Context) ([]CrossMarginCurrency, error) {
	return do[[]CrossMarginCurrency](ctx, c, core.OpListCrossMarginCurrencies, nil)
}

// DepositAddress returns the deposit addresses of currency.
func (c *Client) DepositAddress(ctx context.Context, currency string) (*DepositAddress, error) {
	return do[*DepositAddress](ctx, c, core.OpGetDepositAddress, core.Params{"currency": currency})
}

// WithdrawStatus returns withdrawal fees and limits. An empty currency lists all of them.
func (c *Client) WithdrawStatus(ctx context.Context, currency string) ([]WithdrawStatus, error) {
	params := core.Params{}
	if currency != "" {
		params["currency"] = currency
	}
	return do[[]WithdrawStatus](ctx, c, core.OpListWithdrawStatus, params)
}

// CurrencyChains lists the chains currency can be deposited or withdrawn on.
func (c *Client) CurrencyChains(ctx context.Context, currency string) ([]CurrencyChain, error) {
	return do[[]CurrencyChain](ctx, c, core.OpListCurrencyChains, core.Params{"currency": currency})
}

// Withdraw submits a withdrawal. Amount must be a positive decimal.
func (c *Client) Withdraw(ctx context.Context, withdrawal WithdrawRequest) (*LedgerRecord, error) {
	amount, _, err := apd.NewFromString(withdrawal.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid withdraw amount %q: %w", withdrawal.Amount, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("withdraw amount must be positive")
	}
	return do[*LedgerRecord](ctx, c, core.OpWithdraw, core.Params{"withdrawal": withdrawal})
}

// Deposits lists deposit records. An empty currency lists all of them.
// Supports WithTimeRange, WithLimit and WithOffset.
func (c *Client) Deposits(ctx context.Context, currency string, opts ...exchange.Option) ([]LedgerRecord, error) {
	return do[[]LedgerRecord](ctx, c, core.OpListDeposits, ledgerParams(currency, opts))
}

// Withdrawals lists withdrawal records. An empty currency lists all of them.
// Supports WithTimeRange, WithLimit and WithOffset.
func (c *Client) Withdrawals(ctx context.Context, currency string, opts ...exchange.Option) ([]LedgerRecord, error) {
	return do[[]LedgerRecord](ctx, c, core.OpListWithdrawals, ledgerParams(currency, opts))
}

func ledgerParams(currency string, opts []exchange.Option) core.Params {
	params := exchange.ApplyOptions(opts...).Params(nil)
	if currency != "" {
		params["currency"] = currency
	}
	return params
}
