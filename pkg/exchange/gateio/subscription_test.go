package gateio

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateio/pkg/core"
)

func TestWSCanonicalString(t *testing.T) {
	assert.Equal(t,
		"channel=spot.orders&event=subscribe&time=1700000000",
		WSCanonicalString(ChannelOrders, EventSubscribe, 1700000000))
}

func TestNewSubscriptionRequest_Signed(t *testing.T) {
	creds := &core.Credentials{APIKey: "my-key", SecretKey: "secret"}

	req, err := NewSubscriptionRequest(ChannelOrders, EventSubscribe, time.Unix(1700000000, 0), creds,
		WithID(7), WithPayload("BTC_USDT"))
	require.NoError(t, err)

	auth := req.Auth()
	require.NotNil(t, auth)
	assert.Equal(t, "api_key", auth.Method)
	assert.Equal(t, "my-key", auth.Key)
	assert.Equal(t, "0dc17b76097b2726573e30bde2a792ce238bbd452f414d949a5f71d5bf1dd50e8e8166a762af6614f0228360882c6e35df2ac39ed0eba1be8b02d9ca1ec9c6c9", auth.Sign)

	want, err := Sign("secret", WSCanonicalString(req.Channel(), req.Event(), req.Time()))
	require.NoError(t, err)
	assert.Equal(t, want, auth.Sign)
}

func TestNewSubscriptionRequest_Wire(t *testing.T) {
	creds := &core.Credentials{APIKey: "my-key", SecretKey: "secret"}

	req, err := NewSubscriptionRequest(ChannelTickers, EventUnsubscribe, time.Unix(1700000000, 0), creds,
		WithID(3), WithPayload("BTC_USDT", "ETH_USDT"))
	require.NoError(t, err)

	data, err := req.MarshalJSON()
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, sonic.Unmarshal(data, &wire))

	assert.Equal(t, float64(1700000000), wire["time"])
	assert.Equal(t, float64(3), wire["id"])
	assert.Equal(t, "spot.tickers", wire["channel"])
	assert.Equal(t, "unsubscribe", wire["event"])
	assert.Equal(t, []any{"BTC_USDT", "ETH_USDT"}, wire["payload"])

	auth, ok := wire["auth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "api_key", auth["method"])
	assert.Equal(t, "my-key", auth["KEY"])
	assert.Equal(t, req.Auth().Sign, auth["SIGN"])
}

func TestNewSubscriptionRequest_Unsigned(t *testing.T) {
	req, err := NewSubscriptionRequest(ChannelTickers, EventSubscribe, time.Unix(1700000000, 0), nil)
	require.NoError(t, err)

	assert.Nil(t, req.Auth())
	_, hasID := req.ID()
	assert.False(t, hasID)
	assert.Empty(t, req.Payload())

	data, err := req.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":1700000000,"channel":"spot.tickers","event":"subscribe"}`, string(data))
}

func TestNewSubscriptionRequest_Errors(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		channel string
		event   Event
		creds   *core.Credentials
		wantErr error
	}{
		{"update is not a request", ChannelTickers, EventUpdate, nil, ErrUnrecognizedEvent},
		{"unknown event", ChannelTickers, Event("ping"), nil, ErrUnrecognizedEvent},
		{"empty channel", "", EventSubscribe, nil, nil},
		{"empty secret", ChannelOrders, EventSubscribe, &core.Credentials{APIKey: "k"}, core.ErrEmptySecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewSubscriptionRequest(tt.channel, tt.event, now, tt.creds)
			require.Error(t, err)
			assert.Nil(t, req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSubscriptionRequest_PayloadIsCopied(t *testing.T) {
	payload := []string{"BTC_USDT"}
	req, err := NewSubscriptionRequest(ChannelTickers, EventSubscribe, time.Now(), nil, WithPayload(payload...))
	require.NoError(t, err)

	payload[0] = "ETH_USDT"
	got := req.Payload()
	assert.Equal(t, []string{"BTC_USDT"}, got)

	got[0] = "DOGE_USDT"
	assert.Equal(t, []string{"BTC_USDT"}, req.Payload())
}
