package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateio/pkg/exchange"
	"gateio/pkg/exchange/gateio"
)

func level(t *testing.T, price, amount string) gateio.PriceLevel {
	t.Helper()
	var l gateio.PriceLevel
	_, _, err := l.Price.SetString(price)
	require.NoError(t, err)
	_, _, err = l.Amount.SetString(amount)
	require.NoError(t, err)
	return l
}

func snapshot(t *testing.T, id int64) *gateio.OrderBookSnapshot {
	return &gateio.OrderBookSnapshot{
		ID:     &id,
		Update: 1700000000000,
		Bids:   []gateio.PriceLevel{level(t, "99", "1"), level(t, "98", "2")},
		Asks:   []gateio.PriceLevel{level(t, "101", "1"), level(t, "102", "3")},
	}
}

func delta(first, last int64, bids, asks []gateio.PriceLevel) gateio.ChangedOrderBookLevels {
	return gateio.ChangedOrderBookLevels{
		UpdateTime:    1700000001000,
		CurrencyPair:  "BTC_USDT",
		FirstUpdateID: first,
		LastUpdateID:  last,
		Bids:          bids,
		Asks:          asks,
	}
}

func prices(levels []gateio.PriceLevel) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = l.Price.String()
	}
	return out
}

func TestBook_Reset(t *testing.T) {
	book := NewBook("BTC_USDT")
	assert.False(t, book.Synced())

	require.Error(t, book.Reset(&gateio.OrderBookSnapshot{}), "snapshot without id")
	require.NoError(t, book.Reset(snapshot(t, 100)))

	assert.True(t, book.Synced())
	assert.Equal(t, int64(100), book.LastUpdateID())
	assert.Equal(t, time.UnixMilli(1700000000000), book.UpdatedAt())

	bids, asks := book.Levels(0)
	assert.Equal(t, []string{"99", "98"}, prices(bids))
	assert.Equal(t, []string{"101", "102"}, prices(asks))
}

func TestBook_Apply(t *testing.T) {
	tests := []struct {
		name     string
		delta    gateio.ChangedOrderBookLevels
		applied  bool
		wantErr  error
		wantBids []string
		wantAsks []string
		lastID   int64
	}{
		{
			name:     "stale_update_skipped",
			delta:    delta(90, 100, []gateio.PriceLevel{level(t, "99.5", "1")}, nil),
			wantBids: []string{"99", "98"},
			wantAsks: []string{"101", "102"},
			lastID:   100,
		},
		{
			name:     "overlapping_first_update",
			delta:    delta(95, 105, []gateio.PriceLevel{level(t, "99.5", "1")}, nil),
			applied:  true,
			wantBids: []string{"99.5", "99", "98"},
			wantAsks: []string{"101", "102"},
			lastID:   105,
		},
		{
			name:     "next_update",
			delta:    delta(101, 101, nil, []gateio.PriceLevel{level(t, "100.5", "2")}),
			applied:  true,
			wantBids: []string{"99", "98"},
			wantAsks: []string{"100.5", "101", "102"},
			lastID:   101,
		},
		{
			name:     "zero_amount_removes_level",
			delta:    delta(101, 102, []gateio.PriceLevel{level(t, "99.0", "0")}, []gateio.PriceLevel{level(t, "102", "0.000")}),
			applied:  true,
			wantBids: []string{"98"},
			wantAsks: []string{"101"},
			lastID:   102,
		},
		{
			name:     "amount_replaced",
			delta:    delta(101, 101, []gateio.PriceLevel{level(t, "98", "7")}, nil),
			applied:  true,
			wantBids: []string{"99", "98"},
			wantAsks: []string{"101", "102"},
			lastID:   101,
		},
		{
			name:     "gap",
			delta:    delta(103, 104, []gateio.PriceLevel{level(t, "97", "1")}, nil),
			wantErr:  ErrSequenceGap,
			wantBids: []string{"99", "98"},
			wantAsks: []string{"101", "102"},
			lastID:   100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := NewBook("BTC_USDT")
			require.NoError(t, book.Reset(snapshot(t, 100)))

			applied, err := book.Apply(tt.delta)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, book.Synced())
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.applied, applied)

			bids, asks := book.Levels(0)
			assert.Equal(t, tt.wantBids, prices(bids))
			assert.Equal(t, tt.wantAsks, prices(asks))
			assert.Equal(t, tt.lastID, book.LastUpdateID())
		})
	}
}

func TestBook_ApplyErrors(t *testing.T) {
	book := NewBook("BTC_USDT")

	_, err := book.Apply(delta(1, 1, nil, nil))
	assert.ErrorIs(t, err, ErrNotSynced)

	require.NoError(t, book.Reset(snapshot(t, 1)))
	other := delta(2, 2, nil, nil)
	other.CurrencyPair = "ETH_USDT"
	_, err = book.Apply(other)
	assert.ErrorContains(t, err, "ETH_USDT")
}

func TestBook_Quote(t *testing.T) {
	book := NewBook("BTC_USDT")
	require.NoError(t, book.Reset(&gateio.OrderBookSnapshot{ID: new(int64)}))

	_, err := book.Quote()
	require.ErrorIs(t, err, ErrEmptyBook)

	id := int64(100)
	require.NoError(t, book.Reset(&gateio.OrderBookSnapshot{
		ID:   &id,
		Bids: []gateio.PriceLevel{level(t, "100", "1"), level(t, "99", "1")},
		Asks: []gateio.PriceLevel{level(t, "101", "1")},
	}))
	q, err := book.Quote()
	require.NoError(t, err)
	assert.Equal(t, "100", q.Bid.String())
	assert.Equal(t, "101", q.Ask.String())
	assert.Equal(t, "1", q.Spread.String())
	assert.Zero(t, q.SpreadPercent.Cmp(apd.New(1, 0)), "got %s", q.SpreadPercent.String())
}

func TestBook_VWAP(t *testing.T) {
	book := NewBook("BTC_USDT")
	require.NoError(t, book.Reset(snapshot(t, 100)))

	// (99*1 + 101*1) / 2
	top, err := book.VWAP(1)
	require.NoError(t, err)
	assert.Zero(t, top.Cmp(apd.New(100, 0)), "got %s", top.String())

	// (99 + 196 + 101 + 306) / 7
	all, err := book.VWAP(0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(all.String(), "100.285714285714"), "got %s", all.String())

	empty := NewBook("ETH_USDT")
	_, err = empty.VWAP(5)
	assert.ErrorIs(t, err, ErrEmptyBook)
}

type fakeSnapshotter struct {
	mu    sync.Mutex
	ids   []int64
	calls int
	opts  *exchange.Options
	err   error
}

func (f *fakeSnapshotter) OrderBook(_ context.Context, pair string, opts ...exchange.Option) (*gateio.OrderBookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.opts = exchange.ApplyOptions(opts...)
	id := f.ids[min(f.calls, len(f.ids)-1)]
	f.calls++
	return &gateio.OrderBookSnapshot{
		ID:   &id,
		Bids: []gateio.PriceLevel{{Price: *apd.New(99, 0), Amount: *apd.New(1, 0)}},
		Asks: []gateio.PriceLevel{{Price: *apd.New(101, 0), Amount: *apd.New(1, 0)}},
	}, nil
}

func TestBook_Sync(t *testing.T) {
	source := &fakeSnapshotter{ids: []int64{10, 20}}
	updates := make(chan gateio.ChangedOrderBookLevels, 8)

	updates <- delta(5, 9, nil, nil)
	updates <- delta(10, 11, []gateio.PriceLevel{level(t, "99.5", "1")}, nil)
	// gap: 12 missing, forces a reload that returns id 20
	updates <- delta(13, 13, nil, nil)
	updates <- delta(21, 22, nil, []gateio.PriceLevel{level(t, "100.5", "1")})
	close(updates)

	book := NewBook("BTC_USDT")
	err := book.Sync(context.Background(), source, updates, 50)
	require.ErrorIs(t, err, ErrClosed)

	assert.Equal(t, 2, source.calls)
	assert.True(t, source.opts.WithID)
	assert.Equal(t, 50, source.opts.Limit)
	assert.Equal(t, int64(22), book.LastUpdateID())

	bids, asks := book.Levels(0)
	assert.Equal(t, []string{"99"}, prices(bids), "levels from before the reload are gone")
	assert.Equal(t, []string{"100.5", "101"}, prices(asks))
}

func TestBook_SyncErrors(t *testing.T) {
	boom := errors.New("unavailable")
	err := NewBook("BTC_USDT").Sync(context.Background(), &fakeSnapshotter{err: boom}, nil, 0)
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewBook("BTC_USDT").Sync(ctx, &fakeSnapshotter{ids: []int64{1}}, make(chan gateio.ChangedOrderBookLevels), 0)
	require.ErrorIs(t, err, context.Canceled)
}
