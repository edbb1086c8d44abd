package stream

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"gateio/internal/metrics"
	"gateio/pkg/exchange/gateio"
)

// ErrClosed is returned by Err after the peer or the user closed the connection.
var ErrClosed = errors.New("stream closed")

// Hub is a gateio.Listener that copies each update to every matching
// subscriber. A slow subscriber loses updates instead of blocking the others.
type Hub struct {
	config Config
	logger zerolog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	errs   chan error
	done   chan struct{}
	err    error
}

type subscriber struct {
	channel string
	// deliver hands env to the subscriber and reports false when its buffer is full.
	deliver func(env *gateio.ServerEnvelope) bool
	close   func()
}

var (
	_ gateio.Listener            = (*Hub)(nil)
	_ gateio.ClosingListener     = (*Hub)(nil)
	_ gateio.DecodeErrorListener = (*Hub)(nil)
)

func NewHub(config Config) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	return &Hub{
		config: config,
		logger: zerolog.Nop(),
		subs:   make(map[int]*subscriber),
		errs:   make(chan error, config.BufferSize),
		done:   make(chan struct{}),
	}
}

func (h *Hub) SetLogger(logger zerolog.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger
}

// Errors carries server errors and undecodable frames. It is never closed.
func (h *Hub) Errors() <-chan error {
	return h.errs
}

// Done is closed when the connection ends. Err then tells why.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Err returns nil while the connection is open, ErrClosed after a close and
// the transport error after a failure.
func (h *Hub) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Subscribe returns every envelope on channel, acknowledgements included.
func (h *Hub) Subscribe(channel string) (<-chan *gateio.ServerEnvelope, func()) {
	return subscribe(h, channel, func(env *gateio.ServerEnvelope) []*gateio.ServerEnvelope {
		return []*gateio.ServerEnvelope{env}
	})
}

// Tickers returns ticker updates for pair, or for every pair when pair is empty.
func (h *Hub) Tickers(pair string) (<-chan gateio.Ticker, func()) {
	return subscribe(h, gateio.ChannelTickers, func(env *gateio.ServerEnvelope) []gateio.Ticker {
		t, ok := env.Result.(gateio.Ticker)
		if !ok || (pair != "" && t.CurrencyPair != pair) {
			return nil
		}
		return []gateio.Ticker{t}
	})
}

// Orders returns order updates one by one.
func (h *Hub) Orders() (<-chan gateio.Order, func()) {
	return subscribe(h, gateio.ChannelOrders, func(env *gateio.ServerEnvelope) []gateio.Order {
		orders, _ := env.Result.(gateio.OrderList)
		return orders
	})
}

// UserTrades returns personal fills one by one.
func (h *Hub) UserTrades() (<-chan gateio.UserTrade, func()) {
	return subscribe(h, gateio.ChannelUserTrades, func(env *gateio.ServerEnvelope) []gateio.UserTrade {
		trades, _ := env.Result.(gateio.UserTradeList)
		return trades
	})
}

// SpotBalances returns spot balance changes one by one.
func (h *Hub) SpotBalances() (<-chan gateio.SpotBalance, func()) {
	return subscribe(h, gateio.ChannelSpotBalances, func(env *gateio.ServerEnvelope) []gateio.SpotBalance {
		balances, _ := env.Result.(gateio.SpotBalanceList)
		return balances
	})
}

// OrderBookUpdates returns order book deltas for pair, or every pair when empty.
func (h *Hub) OrderBookUpdates(pair string) (<-chan gateio.ChangedOrderBookLevels, func()) {
	return subscribe(h, gateio.ChannelOrderBookUpdate, func(env *gateio.ServerEnvelope) []gateio.ChangedOrderBookLevels {
		levels, ok := env.Result.(gateio.ChangedOrderBookLevels)
		if !ok || (pair != "" && levels.CurrencyPair != pair) {
			return nil
		}
		return []gateio.ChangedOrderBookLevels{levels}
	})
}

// subscribe registers a subscriber whose channel receives what extract pulls
// out of each envelope. The returned func unsubscribes and closes the channel.
func subscribe[T any](h *Hub, channel string, extract func(*gateio.ServerEnvelope) []T) (<-chan T, func()) {
	ch := make(chan T, h.config.BufferSize)

	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		close(ch)
		return ch, func() {}
	default:
	}

	id := h.nextID
	h.nextID++
	var once sync.Once
	h.subs[id] = &subscriber{
		channel: channel,
		deliver: func(env *gateio.ServerEnvelope) bool {
			for _, item := range extract(env) {
				select {
				case ch <- item:
				default:
					return false
				}
			}
			return true
		},
		close: func() { once.Do(func() { close(ch) }) },
	}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			sub.close()
		}
	}
}

// OnEvent routes env to the subscribers of its channel. Server errors go to Errors.
func (h *Hub) OnEvent(env *gateio.ServerEnvelope) {
	if env.Error != nil {
		h.pushError(env.Error)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.channel != env.Channel {
			continue
		}
		if !sub.deliver(env) {
			metrics.StreamDropped.WithLabelValues(env.Channel).Inc()
			h.logger.Warn().Str("channel", env.Channel).Msg("subscriber buffer full, dropping update")
		}
	}
}

func (h *Hub) OnDecodeError(err error) {
	h.pushError(err)
}

func (h *Hub) OnFailure(err error) {
	h.finish(err)
}

func (h *Hub) OnClosing(code int, reason string) {
	h.finish(ErrClosed)
}

func (h *Hub) pushError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case h.errs <- err:
	default:
		h.logger.Warn().Err(err).Msg("error buffer full, dropping error")
	}
}

func (h *Hub) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		return
	default:
	}
	h.err = err
	close(h.done)
	for id, sub := range h.subs {
		sub.close()
		delete(h.subs, id)
	}
}
