package core

import (
	"fmt"
	"strconv"
)

// unmarshalEnum decodes a quoted lowercase name into one of names.
func unmarshalEnum(data []byte, names []string, kind string) (int, error) {
	str, err := strconv.Unquote(string(data))
	if err != nil {
		return 0, fmt.Errorf("%s: expected string, got %s", kind, data)
	}
	for i, name := range names {
		if name == str {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s: unknown value %q", kind, str)
}

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase an asset.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell an asset.
	SideSell
)

var sideNames = []string{"buy", "sell"}

// String returns the wire form of the side ("buy" or "sell").
func (s OrderSide) String() string {
	return sideNames[s]
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	i, err := unmarshalEnum(data, sideNames, "side")
	if err != nil {
		return err
	}
	*s = OrderSide(i)
	return nil
}

// OrderType represents the type of order to place on an exchange.
type OrderType int

// Order type constants define how an order is executed.
const (
	// TypeLimit executes at a specified price or better.
	TypeLimit OrderType = iota
	// TypeMarket executes immediately at the best available price.
	TypeMarket
)

var orderTypeNames = []string{"limit", "market"}

// String returns the wire form of the order type.
func (t OrderType) String() string {
	return orderTypeNames[t]
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	i, err := unmarshalEnum(data, orderTypeNames, "order type")
	if err != nil {
		return err
	}
	*t = OrderType(i)
	return nil
}

// Account selects which account an order is placed against.
type Account int

const (
	AccountSpot Account = iota
	AccountMargin
	AccountCrossMargin
)

var accountNames = []string{"spot", "margin", "cross_margin"}

// String returns the wire form of the account.
func (a Account) String() string {
	return accountNames[a]
}

// MarshalJSON implements json.Marshaler for Account.
func (a Account) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Account.
func (a *Account) UnmarshalJSON(data []byte) error {
	i, err := unmarshalEnum(data, accountNames, "account")
	if err != nil {
		return err
	}
	*a = Account(i)
	return nil
}

// OrderStatus represents the current state of an order.
type OrderStatus int

const (
	// StatusOpen is waiting to be filled.
	StatusOpen OrderStatus = iota
	// StatusClosed is fully filled.
	StatusClosed
	// StatusCancelled was cancelled manually or by the matching engine.
	StatusCancelled
)

var orderStatusNames = []string{"open", "closed", "cancelled"}

// String returns the wire form of the status.
func (s OrderStatus) String() string {
	return orderStatusNames[s]
}

// IsTerminal returns true if no further fills can happen.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// MarshalJSON implements json.Marshaler for OrderStatus.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderStatus.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	i, err := unmarshalEnum(data, orderStatusNames, "order status")
	if err != nil {
		return err
	}
	*s = OrderStatus(i)
	return nil
}

// TimeInForce defines how long an order remains active.
type TimeInForce int

const (
	// GTC (Good Till Cancelled) keeps the order active until filled or cancelled.
	GTC TimeInForce = iota
	// IOC (Immediate Or Cancelled) takes liquidity only; the rest is cancelled.
	IOC
	// POC (Pending Or Cancelled) is post-only: it never takes liquidity.
	POC
	// FOK (Fill Or Kill) fills completely or not at all.
	FOK
)

var timeInForceNames = []string{"gtc", "ioc", "poc", "fok"}

// String returns the wire form of time in force.
func (t TimeInForce) String() string {
	return timeInForceNames[t]
}

// MarshalJSON implements json.Marshaler for TimeInForce.
func (t TimeInForce) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for TimeInForce.
func (t *TimeInForce) UnmarshalJSON(data []byte) error {
	i, err := unmarshalEnum(data, timeInForceNames, "time in force")
	if err != nil {
		return err
	}
	*t = TimeInForce(i)
	return nil
}
