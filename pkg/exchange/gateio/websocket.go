package gateio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"gateio/internal/ws"
	"gateio/pkg/core"
)

// Close code and reason sent when the client closes the connection itself.
const (
	CloseNormal     = 1000
	CloseUserReason = "Closed by user"
)

// WSClient is a WebSocket v4 client. Each Connect opens one connection with
// its own Dispatcher; there is no reconnection.
type WSClient struct {
	url          string
	creds        *core.Credentials
	listener     Listener
	pingInterval time.Duration
	logger       zerolog.Logger
	requestID    atomic.Int64
	now          func() time.Time

	mu         sync.Mutex
	conn       *ws.Conn
	dispatcher *Dispatcher
}

// NewWSClient creates a client for config.WSURL that reports to listener.
// Requests are signed when config carries credentials.
func NewWSClient(config *core.Config, listener Listener) *WSClient {
	return &WSClient{
		url:          config.WSURL,
		creds:        config.Credentials,
		listener:     listener,
		pingInterval: config.PingInterval,
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
}

func (c *WSClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Connect dials the server. It fails if a connection is already open.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dispatcher != nil && c.dispatcher.State() == StateOpen {
		return fmt.Errorf("already connected")
	}

	dispatcher := NewDispatcher(c.listener, c.url, c.logger)
	conn := ws.New(ws.Config{
		URL:          c.url,
		PingInterval: c.pingInterval,
	}, &connHandler{dispatcher: dispatcher})
	conn.SetLogger(c.logger)

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	c.conn = conn
	c.dispatcher = dispatcher
	return nil
}

// State returns the state of the current connection. A client that never
// connected reports StateClosed.
func (c *WSClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dispatcher == nil {
		return StateClosed
	}
	return c.dispatcher.State()
}

// Subscribe asks for updates on channel, e.g. currency pairs for spot.tickers.
func (c *WSClient) Subscribe(channel string, payload ...string) error {
	return c.send(channel, EventSubscribe, payload)
}

// Unsubscribe stops updates on channel.
func (c *WSClient) Unsubscribe(channel string, payload ...string) error {
	return c.send(channel, EventUnsubscribe, payload)
}

func (c *WSClient) send(channel string, event Event, payload []string) error {
	c.mu.Lock()
	conn, dispatcher := c.conn, c.dispatcher
	c.mu.Unlock()

	if conn == nil || dispatcher.State() != StateOpen {
		return core.ErrNotConnected
	}

	opts := []SubscriptionOption{WithID(c.requestID.Add(1))}
	if len(payload) > 0 {
		opts = append(opts, WithPayload(payload...))
	}
	req, err := NewSubscriptionRequest(channel, event, c.now(), c.creds, opts...)
	if err != nil {
		return err
	}

	data, err := req.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", event, err)
	}

	c.logger.Debug().
		Str("channel", channel).
		Str("event", string(event)).
		Bool("auth", req.Auth() != nil).
		Msg("sending request")
	return conn.WriteMessage(data)
}

// Close notifies the listener with OnClosing(1000, "Closed by user") before
// closing the socket. No failure is reported for this connection afterwards.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn, dispatcher := c.conn, c.dispatcher
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	dispatcher.BeginClose(CloseNormal, CloseUserReason)
	err := conn.Close(CloseNormal, CloseUserReason)
	dispatcher.HandleClose(CloseNormal, CloseUserReason)
	return err
}

type connHandler struct {
	dispatcher *Dispatcher
}

func (h *connHandler) OnText(data []byte) {
	h.dispatcher.HandleMessage(data)
}

func (h *connHandler) OnClose(code int, reason string) {
	h.dispatcher.HandleClose(code, reason)
}

func (h *connHandler) OnFailure(err error) {
	h.dispatcher.HandleFailure(err)
}
