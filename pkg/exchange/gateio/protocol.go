package gateio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"resty.dev/v3"

	"gateio/pkg/core"
)

const (
	// APIPrefix is the path prefix of every v4 REST endpoint.
	APIPrefix = "/api/v4"

	// BucketOrders is the rate limit bucket shared by order placement, cancellation and withdrawals.
	BucketOrders = "orders"
)

// Protocol implements core.Protocol for the Gate.io v4 REST API.
type Protocol struct {
	now func() time.Time
}

// NewProtocol creates a protocol that signs with the wall clock.
func NewProtocol() *Protocol {
	return &Protocol{now: time.Now}
}

// Name returns "gateio".
func (p *Protocol) Name() string {
	return "gateio"
}

// Version returns the REST API version.
func (p *Protocol) Version() string {
	return "4"
}

// SupportedOperations returns every operation BuildRequest accepts.
func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpListCurrencyPairs,
		core.OpListTickers,
		core.OpGetOrderBook,
		core.OpGetCandlesticks,
		core.OpGetServerTime,
		core.OpListOpenOrders,
		core.OpCreateOrder,
		core.OpCancelOrder,
		core.OpListMyTrades,
		core.OpListSpotAccounts,
		core.OpGetCrossMarginAccount,
		core.OpCrossMarginRepay,
		core.OpListMarginCurrencyPairs,
		core.OpListCrossMarginCurrencies,
		core.OpGetDepositAddress,
		core.OpListWithdrawStatus,
		core.OpListCurrencyChains,
		core.OpWithdraw,
		core.OpListDeposits,
		core.OpListWithdrawals,
	}
}

// RateLimits returns the published spot limits.
func (p *Protocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{
		RequestsPerSecond: 900,
		OrdersPerSecond:   10,
		Burst:             900,
	}
}

// BuildRequest constructs the request for op. Required parameters are checked here.
func (p *Protocol) BuildRequest(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
	switch op {
	case core.OpListCurrencyPairs:
		return core.NewRequest(http.MethodGet, APIPrefix+"/spot/currency_pairs").
			SetCache("currency_pairs", time.Minute), nil
	case core.OpListTickers:
		return p.buildListTickersRequest(params)
	case core.OpGetOrderBook:
		return p.buildOrderBookRequest(params)
	case core.OpGetCandlesticks:
		return p.buildCandlesticksRequest(params)
	case core.OpGetServerTime:
		return core.NewRequest(http.MethodGet, APIPrefix+"/spot/time"), nil
	case core.OpListOpenOrders:
		return p.buildListOpenOrdersRequest(params)
	case core.OpCreateOrder:
		return p.buildCreateOrderRequest(params)
	case core.OpCancelOrder:
		return p.buildCancelOrderRequest(params)
	case core.OpListMyTrades:
		return p.buildMyTradesRequest(params)
	case core.OpListSpotAccounts:
		currency, ok := getStringParam(params, "currency")
		return core.NewRequest(http.MethodGet, APIPrefix+"/spot/accounts").
			SetQueryIf(ok, "currency", currency).
			SetRequireAuth(true), nil
	case core.OpGetCrossMarginAccount:
		return core.NewRequest(http.MethodGet, APIPrefix+"/margin/cross/accounts").
			SetRequireAuth(true), nil
	case core.OpCrossMarginRepay:
		return p.buildCrossMarginRepayRequest(params)
	case core.OpListMarginCurrencyPairs:
		return core.NewRequest(http.MethodGet, APIPrefix+"/margin/currency_pairs").
			SetCache("margin_currency_pairs", time.Minute), nil
	case core.OpListCrossMarginCurrencies:
		return core.NewRequest(http.MethodGet, APIPrefix+"/margin/cross/currencies").
			SetRequireAuth(true), nil
	case core.OpGetDepositAddress:
		currency, err := getRequiredStringParam(params, "currency")
		if err != nil {
			return nil, err
		}
		return core.NewRequest(http.MethodGet, APIPrefix+"/wallet/deposit_address").
			SetQuery("currency", currency).
			SetRequireAuth(true), nil
	case core.OpListWithdrawStatus:
		currency, ok := getStringParam(params, "currency")
		return core.NewRequest(http.MethodGet, APIPrefix+"/wallet/withdraw_status").
			SetQueryIf(ok, "currency", currency).
			SetRequireAuth(true), nil
	case core.OpListCurrencyChains:
		currency, err := getRequiredStringParam(params, "currency")
		if err != nil {
			return nil, err
		}
		return core.NewRequest(http.MethodGet, APIPrefix+"/wallet/currency_chains").
			SetQuery("currency", currency).
			SetCache("currency_chains:"+currency, time.Minute), nil
	case core.OpWithdraw:
		return p.buildWithdrawRequest(params)
	case core.OpListDeposits:
		return p.buildLedgerRequest(APIPrefix+"/wallet/deposits", params)
	case core.OpListWithdrawals:
		return p.buildLedgerRequest(APIPrefix+"/wallet/withdrawals", params)
	default:
		return nil, core.NewExchangeError(p.Name(), core.ErrorTypeBadRequest, 0,
			fmt.Sprintf("unsupported operation: %s", op)).WithCode(core.ErrCodeUnsupported)
	}
}

func (p *Protocol) buildListTickersRequest(params core.Params) (*core.Request, error) {
	req := core.NewRequest(http.MethodGet, APIPrefix+"/spot/tickers")
	if pair, ok := getStringParam(params, "currency_pair"); ok {
		req.SetQuery("currency_pair", pair).SetCache("tickers:"+pair, time.Second)
	} else {
		req.SetCache("tickers", time.Second)
	}
	return req, nil
}

func (p *Protocol) buildOrderBookRequest(params core.Params) (*core.Request, error) {
	pair, err := getRequiredStringParam(params, "currency_pair")
	if err != nil {
		return nil, err
	}
	interval, hasInterval := getStringParam(params, "interval")
	limit, hasLimit := getIntParam(params, "limit")
	withID, _ := params["with_id"].(bool)

	req := core.NewRequest(http.MethodGet, APIPrefix+"/spot/order_book").
		SetQuery("currency_pair", pair).
		SetQueryIf(hasInterval, "interval", interval).
		SetQueryIf(hasLimit, "limit", limit).
		SetQueryIf(withID, "with_id", true)
	if !withID {
		req.SetCache(fmt.Sprintf("order_book:%s:%s:%d", pair, interval, limit), 100*time.Millisecond)
	}
	return req, nil
}

func (p *Protocol) buildCandlesticksRequest(params core.Params) (*core.Request, error) {
	pair, err := getRequiredStringParam(params, "currency_pair")
	if err != nil {
		return nil, err
	}
	interval, hasInterval := getStringParam(params, "interval")
	if hasInterval && !Interval(interval).Valid() {
		return nil, fmt.Errorf("invalid candlestick interval: %s", interval)
	}
	limit, hasLimit := getIntParam(params, "limit")
	from, hasFrom := getIntParam(params, "from")
	to, hasTo := getIntParam(params, "to")
	if hasLimit && (hasFrom || hasTo) {
		return nil, fmt.Errorf("limit cannot be combined with from or to")
	}

	return core.NewRequest(http.MethodGet, APIPrefix+"/spot/candlesticks").
		SetQuery("currency_pair", pair).
		SetQueryIf(hasInterval, "interval", interval).
		SetQueryIf(hasLimit, "limit", limit).
		SetQueryIf(hasFrom, "from", from).
		SetQueryIf(hasTo, "to", to), nil
}

func (p *Protocol) buildListOpenOrdersRequest(params core.Params) (*core.Request, error) {
	page, hasPage := getIntParam(params, "page")
	limit, hasLimit := getIntParam(params, "limit")
	account, hasAccount := getStringParam(params, "account")

	return core.NewRequest(http.MethodGet, APIPrefix+"/spot/open_orders").
		SetQueryIf(hasPage, "page", page).
		SetQueryIf(hasLimit, "limit", limit).
		SetQueryIf(hasAccount, "account", account).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildCreateOrderRequest(params core.Params) (*core.Request, error) {
	var order NewOrder
	switch v := params["order"].(type) {
	case NewOrder:
		order = v
	case *NewOrder:
		if v == nil {
			return nil, fmt.Errorf("missing required parameter: order")
		}
		order = *v
	default:
		return nil, fmt.Errorf("missing required parameter: order")
	}
	if order.CurrencyPair == "" {
		return nil, fmt.Errorf("parameter currency_pair cannot be empty")
	}

	return core.NewRequest(http.MethodPost, APIPrefix+"/spot/orders").
		SetBody(order).
		SetBucket(BucketOrders).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildCancelOrderRequest(params core.Params) (*core.Request, error) {
	orderID, err := getRequiredStringParam(params, "order_id")
	if err != nil {
		return nil, err
	}
	pair, err := getRequiredStringParam(params, "currency_pair")
	if err != nil {
		return nil, err
	}
	account, hasAccount := getStringParam(params, "account")

	return core.NewRequest(http.MethodDelete, APIPrefix+"/spot/orders/"+url.PathEscape(orderID)).
		SetQuery("currency_pair", pair).
		SetQueryIf(hasAccount, "account", account).
		SetBucket(BucketOrders).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildMyTradesRequest(params core.Params) (*core.Request, error) {
	pair, err := getRequiredStringParam(params, "currency_pair")
	if err != nil {
		return nil, err
	}
	limit, hasLimit := getIntParam(params, "limit")
	page, hasPage := getIntParam(params, "page")
	orderID, hasOrderID := getStringParam(params, "order_id")
	account, hasAccount := getStringParam(params, "account")

	return core.NewRequest(http.MethodGet, APIPrefix+"/spot/my_trades").
		SetQuery("currency_pair", pair).
		SetQueryIf(hasLimit, "limit", limit).
		SetQueryIf(hasPage, "page", page).
		SetQueryIf(hasOrderID, "order_id", orderID).
		SetQueryIf(hasAccount, "account", account).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildCrossMarginRepayRequest(params core.Params) (*core.Request, error) {
	currency, err := getRequiredStringParam(params, "currency")
	if err != nil {
		return nil, err
	}
	amount, err := getRequiredStringParam(params, "amount")
	if err != nil {
		return nil, err
	}

	return core.NewRequest(http.MethodPost, APIPrefix+"/margin/cross/repayments").
		SetBody(CrossMarginRepayRequest{Currency: currency, Amount: amount}).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildWithdrawRequest(params core.Params) (*core.Request, error) {
	var withdrawal WithdrawRequest
	switch v := params["withdrawal"].(type) {
	case WithdrawRequest:
		withdrawal = v
	case *WithdrawRequest:
		if v == nil {
			return nil, fmt.Errorf("missing required parameter: withdrawal")
		}
		withdrawal = *v
	default:
		return nil, fmt.Errorf("missing required parameter: withdrawal")
	}
	switch {
	case withdrawal.Currency == "":
		return nil, fmt.Errorf("parameter currency cannot be empty")
	case withdrawal.Address == "":
		return nil, fmt.Errorf("parameter address cannot be empty")
	case withdrawal.Amount == "":
		return nil, fmt.Errorf("parameter amount cannot be empty")
	}

	return core.NewRequest(http.MethodPost, APIPrefix+"/withdrawals").
		SetBody(withdrawal).
		SetBucket(BucketOrders).
		SetRequireAuth(true), nil
}

// buildLedgerRequest builds a deposit or withdrawal history query.
func (p *Protocol) buildLedgerRequest(path string, params core.Params) (*core.Request, error) {
	currency, hasCurrency := getStringParam(params, "currency")
	from, hasFrom := getIntParam(params, "from")
	to, hasTo := getIntParam(params, "to")
	if hasFrom && hasTo && from > to {
		return nil, fmt.Errorf("from %d is after to %d", from, to)
	}
	limit, hasLimit := getIntParam(params, "limit")
	offset, hasOffset := getIntParam(params, "offset")

	return core.NewRequest(http.MethodGet, path).
		SetQueryIf(hasCurrency, "currency", currency).
		SetQueryIf(hasFrom, "from", from).
		SetQueryIf(hasTo, "to", to).
		SetQueryIf(hasLimit, "limit", limit).
		SetQueryIf(hasOffset, "offset", offset).
		SetRequireAuth(true), nil
}

// ParseResponse decodes the body for op. A non-2xx response becomes an
// ExchangeError carrying the API error body when one is present.
func (p *Protocol) ParseResponse(op core.Operation, resp *resty.Response) (any, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil response")
	}

	if resp.StatusCode() >= 400 {
		return nil, p.parseError(resp)
	}

	switch op {
	case core.OpListCurrencyPairs:
		return decodeBody[[]CurrencyPair](resp, "currency pairs")
	case core.OpListTickers:
		return decodeBody[[]Ticker](resp, "tickers")
	case core.OpGetOrderBook:
		return decodeBody[*OrderBookSnapshot](resp, "order book")
	case core.OpGetCandlesticks:
		return decodeBody[[]Candlestick](resp, "candlesticks")
	case core.OpGetServerTime:
		return decodeBody[*ServerTime](resp, "server time")
	case core.OpListOpenOrders:
		return decodeBody[[]OpenOrders](resp, "open orders")
	case core.OpCreateOrder, core.OpCancelOrder:
		return decodeBody[*SpotOrder](resp, "order")
	case core.OpListMyTrades:
		return decodeBody[[]MyTrade](resp, "trades")
	case core.OpListSpotAccounts:
		return decodeBody[[]SpotAccount](resp, "spot accounts")
	case core.OpGetCrossMarginAccount:
		return decodeBody[*CrossMarginAccount](resp, "cross margin account")
	case core.OpCrossMarginRepay:
		return decodeBody[[]CrossMarginLoan](resp, "repayments")
	case core.OpListMarginCurrencyPairs:
		return decodeBody[[]MarginCurrencyPair](resp, "margin currency pairs")
	case core.OpListCrossMarginCurrencies:
		return decodeBody[[]CrossMarginCurrency](resp, "cross margin currencies")
	case core.OpGetDepositAddress:
		return decodeBody[*DepositAddress](resp, "deposit address")
	case core.OpListWithdrawStatus:
		return decodeBody[[]WithdrawStatus](resp, "withdraw status")
	case core.OpListCurrencyChains:
		return decodeBody[[]CurrencyChain](resp, "currency chains")
	case core.OpWithdraw:
		return decodeBody[*LedgerRecord](resp, "withdrawal")
	case core.OpListDeposits:
		return decodeBody[[]LedgerRecord](resp, "deposits")
	case core.OpListWithdrawals:
		return decodeBody[[]LedgerRecord](resp, "withdrawals")
	default:
		var result any
		if err := sonic.Unmarshal(resp.Bytes(), &result); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		return result, nil
	}
}

func (p *Protocol) parseError(resp *resty.Response) error {
	status := resp.StatusCode()

	apiErr := &core.APIError{}
	if err := sonic.Unmarshal(resp.Bytes(), apiErr); err == nil && apiErr.Label != "" {
		apiErr.HTTPStatus = status
		return core.NewAPIExchangeError(p.Name(), core.ErrorTypeForLabel(apiErr.Label, status), apiErr)
	}
	return core.NewExchangeError(p.Name(), core.ErrorTypeForStatus(status), status,
		fmt.Sprintf("HTTP error: %s", resp.Status()))
}

func decodeBody[T any](resp *resty.Response, what string) (T, error) {
	var out T
	if err := sonic.Unmarshal(resp.Bytes(), &out); err != nil {
		return out, fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return out, nil
}

// SignRequest attaches KEY, SIGN and Timestamp headers. The body must already
// be the exact bytes that will be sent. The path is signed in its escaped
// form, as it appears on the wire.
func (p *Protocol) SignRequest(req *resty.Request, creds core.Credentials) error {
	path := req.URL
	if u, err := url.Parse(req.URL); err == nil {
		path = u.EscapedPath()
	}

	body, err := bodyBytes(req.Body)
	if err != nil {
		return &core.SigningError{Err: err}
	}

	headers, err := NewAuthHeaders(SignableRequest{
		Method: req.Method,
		Path:   path,
		Query:  req.QueryParams.Encode(),
		Body:   body,
	}, &creds, p.now())
	if err != nil {
		return err
	}

	req.SetHeaders(headers.Map())
	return nil
}

func bodyBytes(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return sonic.Marshal(b)
	}
}

func getRequiredStringParam(params core.Params, key string) (string, error) {
	val, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string", key)
	}

	if str == "" {
		return "", fmt.Errorf("parameter %s cannot be empty", key)
	}

	return str, nil
}

func getStringParam(params core.Params, key string) (string, bool) {
	switch v := params[key].(type) {
	case string:
		return v, v != ""
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	}
	return "", false
}

func getIntParam(params core.Params, key string) (int64, bool) {
	switch v := params[key].(type) {
	case int:
		return int64(v), v > 0
	case int64:
		return v, v > 0
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
