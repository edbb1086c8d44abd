package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

// Handler receives what happens on a connection. Calls for text frames are
// made from the read goroutine one at a time, in arrival order.
type Handler interface {
	OnText(data []byte)
	// OnClose is called when the peer sends a close frame.
	OnClose(code int, reason string)
	// OnFailure is called when the connection breaks without a close frame.
	OnFailure(err error)
}

// Config holds options for a single websocket connection.
type Config struct {
	URL string
	// Header is sent with the upgrade request.
	Header http.Header
	// PingInterval is the time between ping frames. Zero disables pings.
	PingInterval time.Duration
	// PongWait is how long past a ping the connection may stay silent.
	PongWait time.Duration
}

// Conn is one websocket connection. It does not reconnect.
type Conn struct {
	config  Config
	state   *State
	socket  *gws.Conn
	handler Handler
	logger  zerolog.Logger

	mu          sync.Mutex
	connectedCh chan struct{}
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

type eventHandler struct {
	conn *Conn
}

// New prepares a connection. Call Connect to dial.
func New(config Config, handler Handler) *Conn {
	if config.PongWait == 0 {
		config.PongWait = 20 * time.Second
	}
	c := &Conn{
		config:      config,
		state:       &State{},
		handler:     handler,
		logger:      zerolog.Nop(),
		connectedCh: make(chan struct{}),
		stopCh:      make(chan struct{}),
	}
	c.state.Store(StateDisconnected)
	return c
}

// SetLogger configures the logger for the connection.
func (c *Conn) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

func (c *Conn) readDeadline() time.Time {
	if c.config.PingInterval == 0 {
		return time.Time{}
	}
	return time.Now().Add(c.config.PingInterval + c.config.PongWait)
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	h.conn.state.Store(StateConnected)
	_ = socket.SetReadDeadline(h.conn.readDeadline())
	close(h.conn.connectedCh)

	h.conn.logger.Info().Str("url", h.conn.config.URL).Msg("websocket connected")
}

func (h *eventHandler) OnClose(socket *gws.Conn, err error) {
	c := h.conn
	wasClosed := c.state.Load() == StateClosed
	c.state.Store(StateClosed)
	c.stop()

	var closeErr *gws.CloseError
	switch {
	case errors.As(err, &closeErr):
		c.logger.Info().
			Int("code", int(closeErr.Code)).
			Str("reason", string(closeErr.Reason)).
			Msg("websocket closed")
		c.handler.OnClose(int(closeErr.Code), string(closeErr.Reason))
	case wasClosed:
		// closed by us; the handler already knows
		c.logger.Debug().Err(err).Msg("websocket closed locally")
	default:
		c.logger.Warn().Err(err).Str("url", c.config.URL).Msg("websocket failed")
		c.handler.OnFailure(err)
	}
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetReadDeadline(h.conn.readDeadline())
	_ = socket.WritePong(payload)
}

func (h *eventHandler) OnPong(socket *gws.Conn, payload []byte) {
	_ = socket.SetReadDeadline(h.conn.readDeadline())
}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	_ = socket.SetReadDeadline(h.conn.readDeadline())
	if message.Opcode != gws.OpcodeText {
		return
	}
	data := message.Bytes()
	if len(data) == 0 {
		return
	}

	h.conn.logger.Debug().Bytes("data", data).Msg("received websocket message")
	// message buffers are recycled after Close
	h.conn.handler.OnText(append([]byte(nil), data...))
}

// Connect dials the configured URL and waits for the handshake.
func (c *Conn) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(StateDisconnected, StateConnecting) {
		return fmt.Errorf("invalid state for connect: %s", c.state.Load())
	}

	socket, _, err := gws.NewClient(&eventHandler{conn: c}, &gws.ClientOption{
		Addr:          c.config.URL,
		RequestHeader: c.config.Header,
	})
	if err != nil {
		c.state.Store(StateDisconnected)
		return fmt.Errorf("connect websocket: %w", err)
	}

	c.mu.Lock()
	c.socket = socket
	c.mu.Unlock()

	c.wg.Go(func() {
		socket.ReadLoop()
	})

	select {
	case <-c.connectedCh:
	case <-ctx.Done():
		c.state.Store(StateClosed)
		_ = socket.NetConn().Close()
		c.wg.Wait()
		return ctx.Err()
	}

	if c.config.PingInterval > 0 {
		c.wg.Go(c.pingLoop)
	}
	return nil
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				c.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *Conn) writePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil || c.state.Load() != StateConnected {
		return fmt.Errorf("websocket not connected")
	}
	return c.socket.WritePing(nil)
}

func (c *Conn) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Wait blocks until the read and ping goroutines have exited.
func (c *Conn) Wait() {
	c.wg.Wait()
}

// State returns the transport state.
func (c *Conn) State() ConnState {
	return c.state.Load()
}

// IsConnected returns true if the websocket has an active connection.
func (c *Conn) IsConnected() bool {
	return c.state.Load() == StateConnected
}

// WriteMessage sends a text frame. Writes are serialized.
func (c *Conn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.socket == nil || c.state.Load() != StateConnected {
		return fmt.Errorf("websocket not connected")
	}
	return c.socket.WriteMessage(gws.OpcodeText, data)
}

// SendJSON marshals v and sends it as a text frame.
func (c *Conn) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.WriteMessage(data)
}

// Close sends a close frame with code and reason, then tears the connection
// down. It does not wait for the read goroutine, so it may be called from a
// Handler callback.
func (c *Conn) Close(code int, reason string) error {
	prev := c.state.Load()
	if prev == StateClosed {
		return nil
	}
	c.state.Store(StateClosed)
	c.stop()

	c.mu.Lock()
	socket := c.socket
	c.mu.Unlock()

	if socket != nil {
		if prev == StateConnected {
			socket.WriteClose(uint16(code), []byte(reason))
		}
		_ = socket.NetConn().Close()
	}
	return nil
}
