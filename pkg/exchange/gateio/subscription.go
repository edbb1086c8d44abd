package gateio

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"gateio/pkg/core"
)

// AuthMethod is the only authentication method the WebSocket API accepts.
const AuthMethod = "api_key"

// AuthBlock authenticates a subscribe or unsubscribe request.
type AuthBlock struct {
	Method string `json:"method"`
	Key    string `json:"KEY"`
	Sign   string `json:"SIGN"`
}

// WSCanonicalString is the text signed for a WebSocket request.
func WSCanonicalString(channel string, event Event, ts int64) string {
	return fmt.Sprintf("channel=%s&event=%s&time=%d", channel, event, ts)
}

// NewAuthBlock signs channel, event and time with the credential secret.
func NewAuthBlock(channel string, event Event, ts int64, creds core.Credentials) (*AuthBlock, error) {
	sign, err := Sign(creds.SecretKey, WSCanonicalString(channel, event, ts))
	if err != nil {
		return nil, err
	}
	return &AuthBlock{Method: AuthMethod, Key: creds.APIKey, Sign: sign}, nil
}

// SubscriptionRequest is an outbound subscribe or unsubscribe frame.
// Build it with NewSubscriptionRequest; the auth block is derived from the
// other fields there and cannot be set on its own.
type SubscriptionRequest struct {
	time    int64
	id      *int64
	channel string
	event   Event
	payload []string
	auth    *AuthBlock
}

// SubscriptionOption customizes a SubscriptionRequest before it is signed.
type SubscriptionOption func(*SubscriptionRequest)

// WithID sets the request id echoed back by the server.
func WithID(id int64) SubscriptionOption {
	return func(r *SubscriptionRequest) {
		r.id = &id
	}
}

// WithPayload sets the channel arguments, e.g. currency pairs.
func WithPayload(payload ...string) SubscriptionOption {
	return func(r *SubscriptionRequest) {
		r.payload = append([]string(nil), payload...)
	}
}

// NewSubscriptionRequest builds a request at time t. When creds is non-nil the
// request carries an auth block computed over its channel, event and time.
func NewSubscriptionRequest(channel string, event Event, t time.Time, creds *core.Credentials, opts ...SubscriptionOption) (*SubscriptionRequest, error) {
	if event != EventSubscribe && event != EventUnsubscribe {
		return nil, fmt.Errorf("%w: %q is not a request event", ErrUnrecognizedEvent, event)
	}
	if channel == "" {
		return nil, fmt.Errorf("channel is required")
	}

	r := &SubscriptionRequest{
		time:    t.Unix(),
		channel: channel,
		event:   event,
	}
	for _, opt := range opts {
		opt(r)
	}

	if creds != nil {
		auth, err := NewAuthBlock(r.channel, r.event, r.time, *creds)
		if err != nil {
			return nil, err
		}
		r.auth = auth
	}
	return r, nil
}

func (r *SubscriptionRequest) Time() int64     { return r.time }
func (r *SubscriptionRequest) Channel() string { return r.channel }
func (r *SubscriptionRequest) Event() Event    { return r.event }

// ID returns the request id and whether one was set.
func (r *SubscriptionRequest) ID() (int64, bool) {
	if r.id == nil {
		return 0, false
	}
	return *r.id, true
}

// Payload returns a copy of the channel arguments.
func (r *SubscriptionRequest) Payload() []string {
	return append([]string(nil), r.payload...)
}

// Auth returns the auth block, or nil for an unauthenticated request.
func (r *SubscriptionRequest) Auth() *AuthBlock {
	if r.auth == nil {
		return nil
	}
	auth := *r.auth
	return &auth
}

type subscriptionWire struct {
	Time    int64      `json:"time"`
	ID      *int64     `json:"id,omitempty"`
	Channel string     `json:"channel"`
	Event   Event      `json:"event"`
	Payload []string   `json:"payload,omitempty"`
	Auth    *AuthBlock `json:"auth,omitempty"`
}

// MarshalJSON writes the wire form. Absent id, payload and auth are omitted.
func (r *SubscriptionRequest) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(subscriptionWire{
		Time:    r.time,
		ID:      r.id,
		Channel: r.channel,
		Event:   r.event,
		Payload: r.payload,
		Auth:    r.auth,
	})
}
