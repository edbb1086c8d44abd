package gateio

import (
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"gateio/pkg/core"
)

// Variant is the decoded result of a server message. The concrete type is
// fixed by Resolve from the channel and event, never by the payload shape.
type Variant interface {
	Kind() Kind
}

// FlexInt is an integer that arrives either as a JSON number or a numeric string.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("integer: %w", err)
		}
		s = unquoted
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("integer: invalid value %s", data)
	}
	*n = FlexInt(v)
	return nil
}

func (n FlexInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(n), 10)), nil
}

// SubscribeAck is the reply to subscribe and unsubscribe requests.
type SubscribeAck struct {
	Status string `json:"status"`
}

func (SubscribeAck) Kind() Kind { return KindSubscribeAck }

// Ticker is a spot.tickers update.
type Ticker struct {
	CurrencyPair     string       `json:"currency_pair"`
	Last             apd.Decimal  `json:"last"`
	LowestAsk        *apd.Decimal `json:"lowest_ask,omitempty"`
	HighestBid       *apd.Decimal `json:"highest_bid,omitempty"`
	ChangePercentage apd.Decimal  `json:"change_percentage"`
	BaseVolume       apd.Decimal  `json:"base_volume"`
	QuoteVolume      apd.Decimal  `json:"quote_volume"`
	High24h          apd.Decimal  `json:"high_24h"`
	Low24h           apd.Decimal  `json:"low_24h"`
}

func (Ticker) Kind() Kind { return KindTicker }

// Role tells whether a fill added or removed liquidity.
type Role string

const (
	RoleMaker Role = "maker"
	RoleTaker Role = "taker"
)

// UserTrade is one fill from spot.usertrades.
type UserTrade struct {
	ID           FlexInt        `json:"id"`
	UserID       FlexInt        `json:"user_id"`
	OrderID      FlexInt        `json:"order_id"`
	CurrencyPair string         `json:"currency_pair"`
	CreateTime   FlexInt        `json:"create_time"`
	CreateTimeMs string         `json:"create_time_ms"`
	Side         core.OrderSide `json:"side"`
	Amount       apd.Decimal    `json:"amount"`
	Role         Role           `json:"role"`
	Price        apd.Decimal    `json:"price"`
	Fee          apd.Decimal    `json:"fee"`
	PointFee     apd.Decimal    `json:"point_fee"`
	GTFee        apd.Decimal    `json:"gt_fee"`
	FeeCurrency  string         `json:"fee_currency"`
	Text         string         `json:"text"`
}

// UserTradeList is the batched form of spot.usertrades.
type UserTradeList []UserTrade

func (UserTradeList) Kind() Kind { return KindUserTradeList }

// OrderEvent is the lifecycle step reported by spot.orders.
type OrderEvent string

const (
	OrderEventPut    OrderEvent = "put"
	OrderEventUpdate OrderEvent = "update"
	OrderEventFinish OrderEvent = "finish"
)

// Order is one spot.orders update.
type Order struct {
	ID                 FlexInt          `json:"id"`
	User               FlexInt          `json:"user"`
	Text               string           `json:"text"`
	CreateTime         FlexInt          `json:"create_time"`
	CreateTimeMs       string           `json:"create_time_ms"`
	UpdateTime         FlexInt          `json:"update_time"`
	UpdateTimeMs       FlexInt          `json:"update_time_ms"`
	Event              OrderEvent       `json:"event"`
	CurrencyPair       string           `json:"currency_pair"`
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
	AutoBorrow         bool             `json:"auto_borrow"`
	AutoRepay          bool             `json:"auto_repay"`
}

// OrderList is the batched form of spot.orders.
type OrderList []Order

func (OrderList) Kind() Kind { return KindOrderList }

// CrossBalance is one spot.cross_balances entry.
type CrossBalance struct {
	Timestamp   FlexInt     `json:"timestamp"`
	TimestampMs FlexInt     `json:"timestamp_ms"`
	User        FlexInt     `json:"user"`
	Currency    string      `json:"currency"`
	Change      apd.Decimal `json:"change"`
	Total       apd.Decimal `json:"total"`
	Available   apd.Decimal `json:"available"`
}

type CrossBalanceList []CrossBalance

func (CrossBalanceList) Kind() Kind { return KindCrossBalanceList }

// SpotBalance is one spot.balances entry.
type SpotBalance struct {
	Timestamp    FlexInt     `json:"timestamp"`
	TimestampMs  FlexInt     `json:"timestamp_ms"`
	User         FlexInt     `json:"user"`
	Currency     string      `json:"currency"`
	Change       apd.Decimal `json:"change"`
	Total        apd.Decimal `json:"total"`
	Available    apd.Decimal `json:"available"`
	Freeze       apd.Decimal `json:"freeze"`
	FreezeChange apd.Decimal `json:"freeze_change"`
	ChangeType   string      `json:"change_type"`
}

type SpotBalanceList []SpotBalance

func (SpotBalanceList) Kind() Kind { return KindSpotBalanceList }

// CrossLoan is a spot.cross_loan update.
type CrossLoan struct {
	Timestamp FlexInt     `json:"timestamp"`
	User      FlexInt     `json:"user"`
	Currency  string      `json:"currency"`
	Change    apd.Decimal `json:"change"`
	Total     apd.Decimal `json:"total"`
	Available apd.Decimal `json:"available"`
	Borrowed  apd.Decimal `json:"borrowed"`
	Interest  apd.Decimal `json:"interest"`
}

func (CrossLoan) Kind() Kind { return KindCrossLoan }

// PriceLevel is one [price, amount] pair of an order book.
type PriceLevel struct {
	Price  apd.Decimal
	Amount apd.Decimal
}

func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := sonic.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("price level: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("price level: expected [price, amount], got %d elements", len(pair))
	}
	if _, _, err := l.Price.SetString(pair[0]); err != nil {
		return fmt.Errorf("price level price: %w", err)
	}
	if _, _, err := l.Amount.SetString(pair[1]); err != nil {
		return fmt.Errorf("price level amount: %w", err)
	}
	return nil
}

func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return sonic.Marshal([2]string{l.Price.String(), l.Amount.String()})
}

// ChangedOrderBookLevels is a spot.order_book_update delta.
type ChangedOrderBookLevels struct {
	// UpdateTime is in milliseconds.
	UpdateTime    int64
	Event         string
	EventTime     int64
	CurrencyPair  string
	FirstUpdateID int64
	LastUpdateID  int64
	Bids          []PriceLevel
	Asks          []PriceLevel
}

func (ChangedOrderBookLevels) Kind() Kind { return KindChangedOrderBookLevels }

// UnmarshalJSON matches the single-letter keys exactly; "U"/"u" and "e"/"E"
// differ only by case.
func (c *ChangedOrderBookLevels) UnmarshalJSON(data []byte) error {
	var out ChangedOrderBookLevels
	var err error

	if out.UpdateTime, _, err = readInt(data, "t", true); err != nil {
		return err
	}
	if out.Event, _, err = readString(data, "e", false); err != nil {
		return err
	}
	if out.EventTime, _, err = readInt(data, "E", false); err != nil {
		return err
	}
	if out.CurrencyPair, _, err = readString(data, "s", true); err != nil {
		return err
	}
	if out.FirstUpdateID, _, err = readInt(data, "U", true); err != nil {
		return err
	}
	if out.LastUpdateID, _, err = readInt(data, "u", true); err != nil {
		return err
	}
	if out.Bids, err = readLevels(data, "b"); err != nil {
		return err
	}
	if out.Asks, err = readLevels(data, "a"); err != nil {
		return err
	}

	*c = out
	return nil
}

func readLevels(data []byte, key string) ([]PriceLevel, error) {
	value, typ, _, err := jsonparser.Get(data, key)
	if err != nil || typ != jsonparser.Array {
		return nil, fmt.Errorf("field %q: expected array of levels", key)
	}
	var levels []PriceLevel
	if err := sonic.Unmarshal(value, &levels); err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return levels, nil
}

// requiredKeys lists the fields each element must carry for a variant to
// decode. Order book deltas check their own fields.
var requiredKeys = map[Kind][]string{
	KindSubscribeAck: {"status"},
	KindTicker: {
		"currency_pair", "last", "change_percentage", "base_volume",
		"quote_volume", "high_24h", "low_24h",
	},
	KindUserTradeList: {
		"id", "user_id", "order_id", "currency_pair", "create_time", "create_time_ms",
		"side", "amount", "role", "price", "fee", "point_fee", "gt_fee", "fee_currency", "text",
	},
	KindOrderList: {
		"id", "user", "text", "create_time", "create_time_ms", "update_time", "update_time_ms",
		"event", "currency_pair", "type", "account", "side", "amount", "price", "time_in_force",
		"left", "filled_total", "fee", "fee_currency", "point_fee", "gt_fee", "rebated_fee",
		"rebated_fee_currency",
	},
	KindCrossBalanceList: {
		"timestamp", "timestamp_ms", "user", "currency", "change", "total", "available",
	},
	KindSpotBalanceList: {
		"timestamp", "timestamp_ms", "user", "currency", "change", "total", "available",
		"freeze", "freeze_change", "change_type",
	},
	KindCrossLoan: {
		"timestamp", "user", "currency", "change", "total", "available", "borrowed", "interest",
	},
}
