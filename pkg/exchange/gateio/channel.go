package gateio

import (
	"errors"
	"fmt"
	"strconv"
)

// Channel names of the spot WebSocket API.
const (
	ChannelTickers         = "spot.tickers"
	ChannelUserTrades      = "spot.usertrades"
	ChannelOrders          = "spot.orders"
	ChannelCrossBalances   = "spot.cross_balances"
	ChannelSpotBalances    = "spot.balances"
	ChannelCrossLoan       = "spot.cross_loan"
	ChannelOrderBookUpdate = "spot.order_book_update"
)

// Event is the event field of a request or server message.
type Event string

const (
	EventSubscribe   Event = "subscribe"
	EventUnsubscribe Event = "unsubscribe"
	EventUpdate      Event = "update"
)

// Kind tags which payload variant a message carries.
type Kind int

const (
	KindSubscribeAck Kind = iota
	KindTicker
	KindUserTradeList
	KindOrderList
	KindCrossBalanceList
	KindSpotBalanceList
	KindCrossLoan
	KindChangedOrderBookLevels
)

func (k Kind) String() string {
	names := [...]string{
		"subscribe_ack",
		"ticker",
		"user_trade_list",
		"order_list",
		"cross_balance_list",
		"spot_balance_list",
		"cross_loan",
		"changed_order_book_levels",
	}
	if k < 0 || int(k) >= len(names) {
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
	return names[k]
}

// IsList reports whether the variant is always decoded as a batch.
func (k Kind) IsList() bool {
	switch k {
	case KindUserTradeList, KindOrderList, KindCrossBalanceList, KindSpotBalanceList:
		return true
	}
	return false
}

var (
	ErrUnrecognizedChannel = errors.New("unrecognized channel")
	ErrUnrecognizedEvent   = errors.New("unrecognized event")
)

// ResolveError names the channel and event that could not be resolved.
// It wraps ErrUnrecognizedChannel or ErrUnrecognizedEvent.
type ResolveError struct {
	Channel string
	Event   string
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: channel=%q event=%q", e.Err, e.Channel, e.Event)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

var updateKinds = map[string]Kind{
	ChannelTickers:         KindTicker,
	ChannelUserTrades:      KindUserTradeList,
	ChannelOrders:          KindOrderList,
	ChannelCrossBalances:   KindCrossBalanceList,
	ChannelSpotBalances:    KindSpotBalanceList,
	ChannelCrossLoan:       KindCrossLoan,
	ChannelOrderBookUpdate: KindChangedOrderBookLevels,
}

// Resolve maps a channel and event to the payload variant of its result.
// Subscribe and unsubscribe replies are acknowledgements on every channel.
func Resolve(channel, event string) (Kind, error) {
	switch Event(event) {
	case EventSubscribe, EventUnsubscribe:
		return KindSubscribeAck, nil
	case EventUpdate:
		kind, ok := updateKinds[channel]
		if !ok {
			return 0, &ResolveError{Channel: channel, Event: event, Err: ErrUnrecognizedChannel}
		}
		return kind, nil
	default:
		return 0, &ResolveError{Channel: channel, Event: event, Err: ErrUnrecognizedEvent}
	}
}

// Channels returns every channel with a known update payload.
func Channels() []string {
	return []string{
		ChannelTickers,
		ChannelUserTrades,
		ChannelOrders,
		ChannelCrossBalances,
		ChannelSpotBalances,
		ChannelCrossLoan,
		ChannelOrderBookUpdate,
	}
}
