package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gateio/pkg/core"
	"gateio/pkg/exchange"
	"gateio/pkg/exchange/gateio"
)

// Trader is the part of the REST client the manager places and cancels orders with.
type Trader interface {
	CreateOrder(ctx context.Context, order gateio.NewOrder) (*gateio.SpotOrder, error)
	CancelOrder(ctx context.Context, orderID, pair string, opts ...exchange.Option) (*gateio.SpotOrder, error)
}

var _ Trader = (*gateio.Client)(nil)

// ManagerConfig holds configuration options for the order manager.
type ManagerConfig struct {
	// MaxOrders caps the tracked orders; finished ones are evicted first. Defaults to 10000.
	MaxOrders int `json:"max_orders" yaml:"max_orders"`
	// BufferSize is the capacity of each Subscribe channel. Defaults to 100.
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`
}

// Manager tracks the orders it placed and keeps them current from
// spot.orders updates. Orders placed elsewhere are tracked once an update
// for them arrives.
type Manager struct {
	trader Trader
	config ManagerConfig
	logger zerolog.Logger

	mu     sync.RWMutex
	orders map[string]*tracked
	byText map[string]string

	subsMu sync.RWMutex
	subs   map[chan gateio.SpotOrder]struct{}
}

type tracked struct {
	order   gateio.SpotOrder
	updated time.Time
}

func NewManager(trader Trader, config ManagerConfig) *Manager {
	if config.MaxOrders <= 0 {
		config.MaxOrders = 10000
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	return &Manager{
		trader: trader,
		config: config,
		logger: zerolog.Nop(),
		orders: make(map[string]*tracked),
		byText: make(map[string]string),
		subs:   make(map[chan gateio.SpotOrder]struct{}),
	}
}

func (m *Manager) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// Place submits order and starts tracking the order the exchange returns.
func (m *Manager) Place(ctx context.Context, order gateio.NewOrder) (gateio.SpotOrder, error) {
	placed, err := m.trader.CreateOrder(ctx, order)
	if err != nil {
		return gateio.SpotOrder{}, fmt.Errorf("place order: %w", err)
	}
	m.store(*placed)
	m.logger.Info().
		Str("order_id", placed.ID).
		Str("text", placed.Text).
		Str("pair", placed.CurrencyPair).
		Stringer("side", placed.Side).
		Msg("order placed")
	return *placed, nil
}

// Cancel cancels a tracked order. Finished orders are rejected locally.
func (m *Manager) Cancel(ctx context.Context, orderID string) (gateio.SpotOrder, error) {
	current, ok := m.Get(orderID)
	if !ok {
		return gateio.SpotOrder{}, fmt.Errorf("order not found: %s", orderID)
	}
	if current.Status.IsTerminal() {
		return gateio.SpotOrder{}, fmt.Errorf("order %s is already %s", orderID, current.Status)
	}

	cancelled, err := m.trader.CancelOrder(ctx, orderID, current.CurrencyPair, exchange.WithAccount(current.Account))
	if err != nil {
		return gateio.SpotOrder{}, fmt.Errorf("cancel order: %w", err)
	}
	m.store(*cancelled)
	return *cancelled, nil
}

// CancelAll cancels every open order, only those on pair when it is set.
func (m *Manager) CancelAll(ctx context.Context, pair string) error {
	var errs []error
	for _, o := range m.Orders(Filter{CurrencyPair: pair, Status: ptr(core.StatusOpen)}) {
		if _, err := m.Cancel(ctx, o.ID); err != nil {
			m.logger.Warn().Err(err).Str("order_id", o.ID).Msg("failed to cancel order")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get returns a copy of a tracked order by exchange id.
func (m *Manager) Get(orderID string) (gateio.SpotOrder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.orders[orderID]
	if !ok {
		return gateio.SpotOrder{}, false
	}
	return t.order, true
}

// GetByText returns a copy of a tracked order by its client text.
func (m *Manager) GetByText(text string) (gateio.SpotOrder, bool) {
	m.mu.RLock()
	id, ok := m.byText[text]
	m.mu.RUnlock()
	if !ok {
		return gateio.SpotOrder{}, false
	}
	return m.Get(id)
}

// Orders returns copies of the tracked orders that match filter.
func (m *Manager) Orders(filter Filter) []gateio.SpotOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []gateio.SpotOrder
	for _, t := range m.orders {
		if filter.Matches(&t.order) {
			out = append(out, t.order)
		}
	}
	return out
}

// OpenOrders returns the tracked orders that can still fill.
func (m *Manager) OpenOrders() []gateio.SpotOrder {
	return m.Orders(Filter{Status: ptr(core.StatusOpen)})
}

// Apply merges one spot.orders update into the tracked order and reports
// whether anything changed. Updates for finished orders are ignored.
func (m *Manager) Apply(update gateio.Order) bool {
	id := strconv.FormatInt(int64(update.ID), 10)
	status := statusOf(update)

	m.mu.Lock()
	t, ok := m.orders[id]
	if ok && !validTransition(t.order.Status, status) {
		m.mu.Unlock()
		m.logger.Warn().
			Str("order_id", id).
			Stringer("from", t.order.Status).
			Stringer("to", status).
			Msg("ignoring order update")
		return false
	}
	if !ok {
		t = &tracked{}
		m.orders[id] = t
	}

	o := &t.order
	o.ID = id
	o.Text = update.Text
	o.CreateTime = update.CreateTime
	o.UpdateTime = update.UpdateTime
	o.CurrencyPair = update.CurrencyPair
	o.Status = status
	o.Type = update.Type
	o.Account = update.Account
	o.Side = update.Side
	o.Amount.Set(&update.Amount)
	o.Price.Set(&update.Price)
	o.TimeInForce = update.TimeInForce
	o.Left.Set(&update.Left)
	o.FilledTotal.Set(&update.FilledTotal)
	o.AvgDealPrice = update.AvgDealPrice
	o.Fee.Set(&update.Fee)
	o.FeeCurrency = update.FeeCurrency
	o.PointFee.Set(&update.PointFee)
	o.GTFee.Set(&update.GTFee)
	o.GTDiscount = update.GTDiscount
	o.RebatedFee.Set(&update.RebatedFee)
	o.RebatedFeeCurrency = update.RebatedFeeCurrency
	t.updated = time.Now()
	if o.Text != "" {
		m.byText[o.Text] = id
	}
	snapshot := *o
	m.evict()
	m.mu.Unlock()

	m.notify(snapshot)
	return true
}

// Follow applies updates until the channel closes or ctx is done, e.g.
// with the channel of stream.Hub.Orders.
func (m *Manager) Follow(ctx context.Context, updates <-chan gateio.Order) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			m.Apply(update)
		}
	}
}

// Subscribe returns a channel that receives every tracked order change.
// The channel is closed when ctx is done. A full channel drops the change.
func (m *Manager) Subscribe(ctx context.Context) <-chan gateio.SpotOrder {
	ch := make(chan gateio.SpotOrder, m.config.BufferSize)

	m.subsMu.Lock()
	m.subs[ch] = struct{}{}
	m.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subsMu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.subsMu.Unlock()
	}()
	return ch
}

func (m *Manager) store(o gateio.SpotOrder) {
	m.mu.Lock()
	t, ok := m.orders[o.ID]
	if ok && !validTransition(t.order.Status, o.Status) {
		m.mu.Unlock()
		return
	}
	if !ok {
		t = &tracked{}
		m.orders[o.ID] = t
	}
	t.order = o
	t.updated = time.Now()
	if o.Text != "" {
		m.byText[o.Text] = o.ID
	}
	m.evict()
	m.mu.Unlock()

	m.notify(o)
}

// evict drops the least recently updated finished orders while over the
// limit. Open orders are never dropped. Callers hold mu.
func (m *Manager) evict() {
	for len(m.orders) > m.config.MaxOrders {
		var oldestID string
		var oldest time.Time
		for id, t := range m.orders {
			if !t.order.Status.IsTerminal() {
				continue
			}
			if oldestID == "" || t.updated.Before(oldest) {
				oldestID, oldest = id, t.updated
			}
		}
		if oldestID == "" {
			return
		}
		if text := m.orders[oldestID].order.Text; text != "" {
			delete(m.byText, text)
		}
		delete(m.orders, oldestID)
	}
}

func (m *Manager) notify(o gateio.SpotOrder) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()

	for ch := range m.subs {
		select {
		case ch <- o:
		default:
			m.logger.Warn().Str("order_id", o.ID).Msg("order subscriber channel full, update dropped")
		}
	}
}

// statusOf maps an update to a status. A finished order with nothing left
// was filled; anything else that finished was cancelled.
func statusOf(update gateio.Order) core.OrderStatus {
	if update.Event != gateio.OrderEventFinish {
		return core.StatusOpen
	}
	if update.Left.IsZero() {
		return core.StatusClosed
	}
	return core.StatusCancelled
}

func validTransition(from, to core.OrderStatus) bool {
	return from == to || from == core.StatusOpen
}

// Filter selects tracked orders. Nil and empty fields match everything.
type Filter struct {
	CurrencyPair string
	Side         *core.OrderSide
	Status       *core.OrderStatus
	Account      *core.Account
}

func (f *Filter) Matches(o *gateio.SpotOrder) bool {
	if f.CurrencyPair != "" && o.CurrencyPair != f.CurrencyPair {
		return false
	}
	if f.Side != nil && o.Side != *f.Side {
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.Account != nil && o.Account != *f.Account {
		return false
	}
	return true
}

func ptr[T any](v T) *T {
	return &v
}
