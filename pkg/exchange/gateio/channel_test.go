package gateio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		channel string
		event   string
		want    Kind
	}{
		{ChannelTickers, "update", KindTicker},
		{ChannelUserTrades, "update", KindUserTradeList},
		{ChannelOrders, "update", KindOrderList},
		{ChannelCrossBalances, "update", KindCrossBalanceList},
		{ChannelSpotBalances, "update", KindSpotBalanceList},
		{ChannelCrossLoan, "update", KindCrossLoan},
		{ChannelOrderBookUpdate, "update", KindChangedOrderBookLevels},
		{ChannelTickers, "subscribe", KindSubscribeAck},
		{ChannelOrders, "unsubscribe", KindSubscribeAck},
		{"spot.anything", "subscribe", KindSubscribeAck},
	}

	for _, tt := range tests {
		t.Run(tt.channel+"/"+tt.event, func(t *testing.T) {
			got, err := Resolve(tt.channel, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		event   string
		wantErr error
	}{
		{"unknown channel", "spot.candlesticks", "update", ErrUnrecognizedChannel},
		{"empty channel", "", "update", ErrUnrecognizedChannel},
		{"unknown event", ChannelTickers, "snapshot", ErrUnrecognizedEvent},
		{"event is case sensitive", ChannelTickers, "Update", ErrUnrecognizedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.channel, tt.event)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var resolveErr *ResolveError
			require.ErrorAs(t, err, &resolveErr)
			assert.Equal(t, tt.channel, resolveErr.Channel)
			assert.Equal(t, tt.event, resolveErr.Event)
		})
	}
}

func TestKind_IsList(t *testing.T) {
	lists := map[Kind]bool{
		KindSubscribeAck:           false,
		KindTicker:                 false,
		KindUserTradeList:          true,
		KindOrderList:              true,
		KindCrossBalanceList:       true,
		KindSpotBalanceList:        true,
		KindCrossLoan:              false,
		KindChangedOrderBookLevels: false,
	}
	for kind, want := range lists {
		assert.Equal(t, want, kind.IsList(), kind.String())
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "subscribe_ack", KindSubscribeAck.String())
	assert.Equal(t, "changed_order_book_levels", KindChangedOrderBookLevels.String())
	assert.Equal(t, "unknown(8)", Kind(8).String())
	assert.Equal(t, "unknown(-1)", Kind(-1).String())
}

func TestChannels_AllResolve(t *testing.T) {
	for _, channel := range Channels() {
		_, err := Resolve(channel, string(EventUpdate))
		assert.NoError(t, err, channel)
	}
}
