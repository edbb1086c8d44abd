package stream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"gateio/pkg/exchange"
	"gateio/pkg/exchange/gateio"
)

var (
	// ErrNotSynced is returned by Apply before a snapshot was loaded or after a gap.
	ErrNotSynced = errors.New("order book not synced")
	// ErrSequenceGap means an update was missed and the book must be reloaded.
	ErrSequenceGap = errors.New("order book update gap")
	// ErrEmptyBook is returned by price queries on a side with no levels.
	ErrEmptyBook = errors.New("order book side is empty")
)

var decimalContext = apd.BaseContext.WithPrecision(34)

// Snapshotter fetches the REST order book.
type Snapshotter interface {
	OrderBook(ctx context.Context, pair string, opts ...exchange.Option) (*gateio.OrderBookSnapshot, error)
}

var _ Snapshotter = (*gateio.Client)(nil)

// Book is a local order book of one pair built from a REST snapshot and
// kept current with spot.order_book_update deltas.
type Book struct {
	pair   string
	logger zerolog.Logger

	mu      sync.RWMutex
	synced  bool
	lastID  int64
	updated time.Time
	bids    map[string]gateio.PriceLevel
	asks    map[string]gateio.PriceLevel
}

func NewBook(pair string) *Book {
	return &Book{
		pair:   pair,
		logger: zerolog.Nop(),
		bids:   make(map[string]gateio.PriceLevel),
		asks:   make(map[string]gateio.PriceLevel),
	}
}

func (b *Book) SetLogger(logger zerolog.Logger) {
	b.logger = logger
}

func (b *Book) Pair() string { return b.pair }

// Reset replaces the book with snapshot. The snapshot must carry its update id.
func (b *Book) Reset(snapshot *gateio.OrderBookSnapshot) error {
	if snapshot == nil || snapshot.ID == nil {
		return fmt.Errorf("order book snapshot of %s has no update id", b.pair)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.bids)
	clear(b.asks)
	setLevels(b.bids, snapshot.Bids)
	setLevels(b.asks, snapshot.Asks)
	b.lastID = *snapshot.ID
	b.updated = time.UnixMilli(snapshot.Update)
	b.synced = true
	return nil
}

// Apply merges one delta. Deltas the book already covers are skipped and
// reported as not applied. A delta that starts past the next expected id
// unsyncs the book and returns ErrSequenceGap.
func (b *Book) Apply(delta gateio.ChangedOrderBookLevels) (bool, error) {
	if delta.CurrencyPair != b.pair {
		return false, fmt.Errorf("order book of %s got update for %s", b.pair, delta.CurrencyPair)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.synced {
		return false, ErrNotSynced
	}
	if delta.LastUpdateID <= b.lastID {
		return false, nil
	}
	if delta.FirstUpdateID > b.lastID+1 {
		b.synced = false
		return false, fmt.Errorf("%w: have %d, update starts at %d", ErrSequenceGap, b.lastID, delta.FirstUpdateID)
	}

	setLevels(b.bids, delta.Bids)
	setLevels(b.asks, delta.Asks)
	b.lastID = delta.LastUpdateID
	b.updated = time.UnixMilli(delta.UpdateTime)
	return true, nil
}

// setLevels stores absolute amounts; a zero amount removes the price.
func setLevels(side map[string]gateio.PriceLevel, levels []gateio.PriceLevel) {
	for _, l := range levels {
		key := priceKey(&l.Price)
		if l.Amount.IsZero() {
			delete(side, key)
			continue
		}
		side[key] = l
	}
}

func priceKey(price *apd.Decimal) string {
	var reduced apd.Decimal
	reduced.Reduce(price)
	return reduced.Text('f')
}

func (b *Book) Synced() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.synced
}

// LastUpdateID returns the id of the last snapshot or delta applied.
func (b *Book) LastUpdateID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastID
}

func (b *Book) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

// Levels returns up to depth levels per side, best first. Depth <= 0 returns all.
func (b *Book) Levels(depth int) (bids, asks []gateio.PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedLevels(b.bids, true, depth), sortedLevels(b.asks, false, depth)
}

func sortedLevels(side map[string]gateio.PriceLevel, descending bool, depth int) []gateio.PriceLevel {
	out := make([]gateio.PriceLevel, 0, len(side))
	for _, l := range side {
		out = append(out, l)
	}
	slices.SortFunc(out, func(x, y gateio.PriceLevel) int {
		if descending {
			return y.Price.Cmp(&x.Price)
		}
		return x.Price.Cmp(&y.Price)
	})
	if depth > 0 && len(out) > depth {
		out = out[:depth]
	}
	return out
}

// Quote is the top of the book.
type Quote struct {
	Pair          string      `json:"pair"`
	Bid           apd.Decimal `json:"bid"`
	Ask           apd.Decimal `json:"ask"`
	Spread        apd.Decimal `json:"spread"`
	SpreadPercent apd.Decimal `json:"spread_percent"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Quote returns the best bid and ask with their spread.
func (b *Book) Quote() (*Quote, error) {
	bids, asks := b.Levels(1)
	if len(bids) == 0 || len(asks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBook, b.pair)
	}

	q := &Quote{Pair: b.pair, Timestamp: b.UpdatedAt()}
	q.Bid.Set(&bids[0].Price)
	q.Ask.Set(&asks[0].Price)
	if _, err := decimalContext.Sub(&q.Spread, &q.Ask, &q.Bid); err != nil {
		return nil, fmt.Errorf("calculate spread: %w", err)
	}
	if !q.Bid.IsZero() {
		var ratio apd.Decimal
		if _, err := decimalContext.Quo(&ratio, &q.Spread, &q.Bid); err != nil {
			return nil, fmt.Errorf("calculate spread percent: %w", err)
		}
		if _, err := decimalContext.Mul(&q.SpreadPercent, &ratio, apd.New(100, 0)); err != nil {
			return nil, fmt.Errorf("calculate spread percent: %w", err)
		}
	}
	return q, nil
}

// VWAP returns the volume-weighted average price of the first depth levels
// on both sides. Depth <= 0 uses the whole book.
func (b *Book) VWAP(depth int) (apd.Decimal, error) {
	bids, asks := b.Levels(depth)

	var totalValue, totalVolume apd.Decimal
	for _, level := range slices.Concat(bids, asks) {
		var value apd.Decimal
		if _, err := decimalContext.Mul(&value, &level.Price, &level.Amount); err != nil {
			return apd.Decimal{}, fmt.Errorf("calculate vwap: %w", err)
		}
		if _, err := decimalContext.Add(&totalValue, &totalValue, &value); err != nil {
			return apd.Decimal{}, fmt.Errorf("calculate vwap: %w", err)
		}
		if _, err := decimalContext.Add(&totalVolume, &totalVolume, &level.Amount); err != nil {
			return apd.Decimal{}, fmt.Errorf("calculate vwap: %w", err)
		}
	}
	if totalVolume.IsZero() {
		return apd.Decimal{}, fmt.Errorf("%w: %s", ErrEmptyBook, b.pair)
	}

	var vwap apd.Decimal
	if _, err := decimalContext.Quo(&vwap, &totalValue, &totalVolume); err != nil {
		return apd.Decimal{}, fmt.Errorf("calculate vwap: %w", err)
	}
	return vwap, nil
}

// Sync loads a snapshot from source and applies updates until ctx is done
// or updates closes. On a sequence gap it reloads the snapshot. Subscribe
// to the deltas before calling Sync so none are lost while the snapshot loads.
func (b *Book) Sync(ctx context.Context, source Snapshotter, updates <-chan gateio.ChangedOrderBookLevels, depth int) error {
	opts := []exchange.Option{exchange.WithOrderBookID()}
	if depth > 0 {
		opts = append(opts, exchange.WithLimit(depth))
	}

	for {
		snapshot, err := source.OrderBook(ctx, b.pair, opts...)
		if err != nil {
			return fmt.Errorf("load order book snapshot: %w", err)
		}
		if err := b.Reset(snapshot); err != nil {
			return err
		}
		b.logger.Debug().Str("pair", b.pair).Int64("id", *snapshot.ID).Msg("order book snapshot loaded")

		if err := b.follow(ctx, updates); !errors.Is(err, ErrSequenceGap) {
			return err
		}
		b.logger.Warn().Str("pair", b.pair).Msg("order book gap, reloading snapshot")
	}
}

func (b *Book) follow(ctx context.Context, updates <-chan gateio.ChangedOrderBookLevels) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delta, ok := <-updates:
			if !ok {
				return ErrClosed
			}
			if _, err := b.Apply(delta); err != nil {
				return err
			}
		}
	}
}
