package gateio

import (
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/cockroachdb/apd/v3"

	"gateio/pkg/core"
)

// TradeStatus tells which sides of a currency pair can trade.
type TradeStatus string

const (
	TradeStatusUntradable TradeStatus = "untradable"
	TradeStatusBuyable    TradeStatus = "buyable"
	TradeStatusSellable   TradeStatus = "sellable"
	TradeStatusTradable   TradeStatus = "tradable"
)

// CurrencyPair is one entry of the spot currency pair list.
type CurrencyPair struct {
	ID              string       `json:"id"`
	Base            string       `json:"base"`
	Quote           string       `json:"quote"`
	Fee             apd.Decimal  `json:"fee"`
	MinBaseAmount   *apd.Decimal `json:"min_base_amount,omitempty"`
	MinQuoteAmount  *apd.Decimal `json:"min_quote_amount,omitempty"`
	AmountPrecision int          `json:"amount_precision"`
	Precision       int          `json:"precision"`
	TradeStatus     TradeStatus  `json:"trade_status"`
	SellStart       int64        `json:"sell_start"`
	BuyStart        int64        `json:"buy_start"`
}

// OrderBookSnapshot is the REST order book. ID is set only when requested with_id.
type OrderBookSnapshot struct {
	ID      *int64       `json:"id,omitempty"`
	Current int64        `json:"current"`
	Update  int64        `json:"update"`
	Asks    []PriceLevel `json:"asks"`
	Bids    []PriceLevel `json:"bids"`
}

// Interval is a candlestick width.
type Interval string

const (
	Interval10s Interval = "10s"
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval8h  Interval = "8h"
	Interval1d  Interval = "1d"
	Interval7d  Interval = "7d"
	Interval30d Interval = "30d"
)

var intervals = map[Interval]bool{
	Interval10s: true, Interval1m: true, Interval5m: true, Interval15m: true,
	Interval30m: true, Interval1h: true, Interval4h: true, Interval8h: true,
	Interval1d: true, Interval7d: true, Interval30d: true,
}

// Valid reports whether the interval is accepted by the candlestick endpoint.
func (i Interval) Valid() bool {
	return intervals[i]
}

// Candlestick is one row of the candlestick endpoint. Rows arrive as arrays:
// [timestamp, quote volume, close, high, low, open, base volume, window closed].
type Candlestick struct {
	Timestamp    int64
	QuoteVolume  apd.Decimal
	Close        apd.Decimal
	High         apd.Decimal
	Low          apd.Decimal
	Open         apd.Decimal
	BaseVolume   apd.Decimal
	WindowClosed bool
}

func (c *Candlestick) UnmarshalJSON(data []byte) error {
	var cols []string
	var colErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		switch typ {
		case jsonparser.String, jsonparser.Number, jsonparser.Boolean:
			cols = append(cols, string(value))
		default:
			colErr = fmt.Errorf("candlestick: unexpected %s column", typ)
		}
	})
	if err != nil {
		return fmt.Errorf("candlestick: %w", err)
	}
	if colErr != nil {
		return colErr
	}
	if len(cols) < 7 {
		return fmt.Errorf("candlestick: expected at least 7 columns, got %d", len(cols))
	}

	var out Candlestick
	if out.Timestamp, err = strconv.ParseInt(cols[0], 10, 64); err != nil {
		return fmt.Errorf("candlestick timestamp: %w", err)
	}
	for i, dst := range []*apd.Decimal{&out.QuoteVolume, &out.Close, &out.High, &out.Low, &out.Open, &out.BaseVolume} {
		if _, _, err := dst.SetString(cols[i+1]); err != nil {
			return fmt.Errorf("candlestick column %d: %w", i+1, err)
		}
	}
	if len(cols) > 7 {
		out.WindowClosed = cols[7] == "true"
	}
	*c = out
	return nil
}

// ServerTime is the exchange clock in milliseconds.
type ServerTime struct {
	ServerTime int64 `json:"server_time"`
}

// MarginCurrencyPair is a pair that supports margin trading.
type MarginCurrencyPair struct {
	ID             string       `json:"id"`
	Base           string       `json:"base"`
	Quote          string       `json:"quote"`
	Leverage       int          `json:"leverage"`
	MinBaseAmount  *apd.Decimal `json:"min_base_amount,omitempty"`
	MinQuoteAmount *apd.Decimal `json:"min_quote_amount,omitempty"`
	MaxQuoteAmount *apd.Decimal `json:"max_quote_amount,omitempty"`
	Status         int          `json:"status"`
}

// SpotOrder is an order as returned by the REST API.
type SpotOrder struct {
	ID                 string           `json:"id"`
	Text               string           `json:"text"`
	CreateTime         FlexInt          `json:"create_time"`
	UpdateTime         FlexInt          `json:"update_time"`
	CurrencyPair       string           `json:"currency_pair"`
	Status             core.OrderStatus `json:"status"`
	Type               core.OrderType   `json:"type"`
	Account            core.Account     `json:"account"`
	Side               core.OrderSide   `json:"side"`
	Amount             apd.Decimal      `json:"amount"`
	Price              apd.Decimal      `json:"price"`
	TimeInForce        core.TimeInForce `json:"time_in_force"`
	Left               apd.Decimal      `json:"left"`
	FilledTotal        apd.Decimal      `json:"filled_total"`
	AvgDealPrice       *apd.Decimal     `json:"avg_deal_price,omitempty"`
	Fee                apd.Decimal      `json:"fee"`
	FeeCurrency        string           `json:"fee_currency"`
	PointFee           apd.Decimal      `json:"point_fee"`
	GTFee              apd.Decimal      `json:"gt_fee"`
	GTDiscount         bool             `json:"gt_discount"`
	RebatedFee         apd.Decimal      `json:"rebated_fee"`
	RebatedFeeCurrency string           `json:"rebated_fee_currency"`
}

// OpenOrders groups the open orders of one currency pair.
type OpenOrders struct {
	CurrencyPair string      `json:"currency_pair"`
	Total        int         `json:"total"`
	Orders       []SpotOrder `json:"orders"`
}

// NewOrder is the body of a create order call. Amounts are plain decimal strings.
type NewOrder struct {
	Text         string           `json:"text,omitempty"`
	CurrencyPair string           `json:"currency_pair"`
	Type         core.OrderType   `json:"type"`
	Account      core.Account     `json:"account"`
	Side         core.OrderSide   `json:"side"`
	Amount       string           `json:"amount"`
	Price        string           `json:"price,omitempty"`
	TimeInForce  core.TimeInForce `json:"time_in_force"`
	Iceberg      string           `json:"iceberg,omitempty"`
	AutoBorrow   *bool            `json:"auto_borrow,omitempty"`
	AutoRepay    *bool            `json:"auto_repay,omitempty"`
}

// MyTrade is one personal fill from the trade history endpoint.
type MyTrade struct {
	ID           FlexInt        `json:"id"`
	CreateTime   FlexInt        `json:"create_time"`
	CreateTimeMs string         `json:"create_time_ms"`
	CurrencyPair string         `json:"currency_pair"`
	OrderID      FlexInt        `json:"order_id"`
	Side         core.OrderSide `json:"side"`
	Role         Role           `json:"role"`
	Amount       apd.Decimal    `json:"amount"`
	Price        apd.Decimal    `json:"price"`
	Fee          apd.Decimal    `json:"fee"`
	FeeCurrency  string         `json:"fee_currency"`
	PointFee     apd.Decimal    `json:"point_fee"`
	GTFee        apd.Decimal    `json:"gt_fee"`
	Text         string         `json:"text"`
}

// SpotAccount is the balance of one currency in the spot account.
type SpotAccount struct {
	Currency  string      `json:"currency"`
	Available apd.Decimal `json:"available"`
	Locked    apd.Decimal `json:"locked"`
}

// CrossMarginBalance is the per-currency part of the cross margin account.
type CrossMarginBalance struct {
	Available apd.Decimal `json:"available"`
	Freeze    apd.Decimal `json:"freeze"`
	Borrowed  apd.Decimal `json:"borrowed"`
	Interest  apd.Decimal `json:"interest"`
}

// CrossMarginAccount is the cross margin account summary.
type CrossMarginAccount struct {
	UserID                     FlexInt                       `json:"user_id"`
	Locked                     bool                          `json:"locked"`
	Balances                   map[string]CrossMarginBalance `json:"balances"`
	Total                      apd.Decimal                   `json:"total"`
	Borrowed                   apd.Decimal                   `json:"borrowed"`
	Interest                   apd.Decimal                   `json:"interest"`
	Risk                       apd.Decimal                   `json:"risk"`
	TotalInitialMargin         *apd.Decimal                  `json:"total_initial_margin,omitempty"`
	TotalMarginBalance         *apd.Decimal                  `json:"total_margin_balance,omitempty"`
	TotalMaintenanceMargin     *apd.Decimal                  `json:"total_maintenance_margin,omitempty"`
	TotalInitialMarginRate     *apd.Decimal                  `json:"total_initial_margin_rate,omitempty"`
	TotalMaintenanceMarginRate *apd.Decimal                  `json:"total_maintenance_margin_rate,omitempty"`
	TotalAvailableMargin       *apd.Decimal                  `json:"total_available_margin,omitempty"`
}

// CrossMarginRepayRequest is the body of a cross margin repayment.
type CrossMarginRepayRequest struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// CrossMarginLoan is a loan record returned after a repayment.
type CrossMarginLoan struct {
	ID             string      `json:"id"`
	CreateTime     FlexInt     `json:"create_time"`
	UpdateTime     FlexInt     `json:"update_time"`
	Currency       string      `json:"currency"`
	Amount         apd.Decimal `json:"amount"`
	Text           string      `json:"text"`
	Status         int         `json:"status"`
	Repaid         apd.Decimal `json:"repaid"`
	RepaidInterest apd.Decimal `json:"repaid_interest"`
	UnpaidInterest apd.Decimal `json:"unpaid_interest"`
}

// CrossMarginCurrency describes a currency that can be borrowed on cross margin.
type CrossMarginCurrency struct {
	Name                 string      `json:"name"`
	Rate                 apd.Decimal `json:"rate"`
	Prec                 apd.Decimal `json:"prec"`
	Discount             apd.Decimal `json:"discount"`
	MinBorrowAmount      apd.Decimal `json:"min_borrow_amount"`
	UserMaxBorrowAmount  apd.Decimal `json:"user_max_borrow_amount"`
	TotalMaxBorrowAmount apd.Decimal `json:"total_max_borrow_amount"`
	Price                apd.Decimal `json:"price"`
	Status               int         `json:"status"`
}

// MultichainAddress is the deposit address of a currency on one chain.
type MultichainAddress struct {
	Chain        string `json:"chain"`
	Address      string `json:"address"`
	PaymentID    string `json:"payment_id"`
	PaymentName  string `json:"payment_name"`
	ObtainFailed int    `json:"obtain_failed"`
}

// DepositAddress holds the deposit addresses of a currency.
type DepositAddress struct {
	Currency            string              `json:"currency"`
	Address             string              `json:"address"`
	MultichainAddresses []MultichainAddress `json:"multichain_addresses"`
}

// WithdrawStatus holds withdrawal fees and limits of a currency.
type WithdrawStatus struct {
	Currency               string            `json:"currency"`
	Name                   string            `json:"name"`
	NameCN                 string            `json:"name_cn"`
	Deposit                FlexInt           `json:"deposit"`
	WithdrawPercent        string            `json:"withdraw_percent"`
	WithdrawFix            apd.Decimal       `json:"withdraw_fix"`
	WithdrawDayLimit       apd.Decimal       `json:"withdraw_day_limit"`
	WithdrawAmountMini     apd.Decimal       `json:"withdraw_amount_mini"`
	WithdrawDayLimitRemain apd.Decimal       `json:"withdraw_day_limit_remain"`
	WithdrawEachtimeLimit  apd.Decimal       `json:"withdraw_eachtime_limit"`
	WithdrawFixOnChains    map[string]string `json:"withdraw_fix_on_chains,omitempty"`
}

// CurrencyChain is one chain a currency can be deposited or withdrawn on.
type CurrencyChain struct {
	Chain              string `json:"chain"`
	NameCN             string `json:"name_cn"`
	NameEN             string `json:"name_en"`
	ContractAddress    string `json:"contract_address,omitempty"`
	IsDisabled         int    `json:"is_disabled"`
	IsDepositDisabled  int    `json:"is_deposit_disabled"`
	IsWithdrawDisabled int    `json:"is_withdraw_disabled"`
}

// WithdrawRequest is the body of a withdrawal.
type WithdrawRequest struct {
	Currency        string `json:"currency"`
	Address         string `json:"address"`
	Amount          string `json:"amount"`
	Chain           string `json:"chain,omitempty"`
	Memo            string `json:"memo,omitempty"`
	WithdrawOrderID string `json:"withdraw_order_id,omitempty"`
}

// LedgerStatus is the state of a deposit or withdrawal.
type LedgerStatus string

const (
	LedgerDone      LedgerStatus = "DONE"
	LedgerCancel    LedgerStatus = "CANCEL"
	LedgerRequest   LedgerStatus = "REQUEST"
	LedgerManual    LedgerStatus = "MANUAL"
	LedgerBCode     LedgerStatus = "BCODE"
	LedgerExtPend   LedgerStatus = "EXTPEND"
	LedgerFail      LedgerStatus = "FAIL"
	LedgerInvalid   LedgerStatus = "INVALID"
	LedgerVerify    LedgerStatus = "VERIFY"
	LedgerProcess   LedgerStatus = "PROCES"
	LedgerPending   LedgerStatus = "PEND"
	LedgerDMove     LedgerStatus = "DMOVE"
	LedgerSplitPend LedgerStatus = "SPLITPEND"
)

// Final reports whether the record will not change any more.
func (s LedgerStatus) Final() bool {
	switch s {
	case LedgerDone, LedgerCancel, LedgerFail, LedgerInvalid:
		return true
	}
	return false
}

// LedgerRecord is a deposit or withdrawal. Fee is only set on withdrawals.
type LedgerRecord struct {
	ID              string       `json:"id"`
	TxID            string       `json:"txid"`
	WithdrawOrderID string       `json:"withdraw_order_id,omitempty"`
	Timestamp       FlexInt      `json:"timestamp"`
	Currency        string       `json:"currency"`
	Address         string       `json:"address"`
	Amount          apd.Decimal  `json:"amount"`
	Fee             apd.Decimal  `json:"fee"`
	Memo            string       `json:"memo"`
	Status          LedgerStatus `json:"status"`
	Chain           string       `json:"chain"`
}
