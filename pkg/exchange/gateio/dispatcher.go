package gateio

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"

	"gateio/internal/metrics"
)

// ConnState is the lifecycle of one connection as seen by its listener.
type ConnState int32

const (
	StateOpen ConnState = iota
	StateClosing
	StateClosed
	StateFailed
)

func (s ConnState) String() string {
	names := [...]string{"open", "closing", "closed", "failed"}
	if s < 0 || int(s) >= len(names) {
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
	return names[s]
}

// Dispatcher decodes frames of a single connection and forwards them to a
// Listener. Create one per connection.
type Dispatcher struct {
	listener Listener
	endpoint string
	state    atomic.Int32
	logger   zerolog.Logger
}

// NewDispatcher returns a dispatcher in the open state.
func NewDispatcher(listener Listener, endpoint string, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		listener: listener,
		endpoint: endpoint,
		logger:   logger,
	}
	d.setState(StateOpen)
	return d
}

// State returns the current state.
func (d *Dispatcher) State() ConnState {
	return ConnState(d.state.Load())
}

func (d *Dispatcher) setState(s ConnState) {
	d.state.Store(int32(s))
	metrics.WSConnectionState.WithLabelValues(d.endpoint).Set(float64(s))
}

func (d *Dispatcher) transition(from, to ConnState) bool {
	if !d.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	metrics.WSConnectionState.WithLabelValues(d.endpoint).Set(float64(to))
	return true
}

func (d *Dispatcher) terminal() bool {
	s := d.State()
	return s == StateClosed || s == StateFailed
}

// HandleMessage decodes one text frame. A frame that fails to decode is
// reported on its own and does not change the connection state.
//
// Frames are dropped once the connection is closed or failed. The check runs
// before decoding, so an OnEvent may still overlap a BeginClose or HandleClose
// issued from another goroutine. Callbacks never overlap each other when
// frames and close notifications come from one delivery goroutine.
func (d *Dispatcher) HandleMessage(data []byte) {
	if d.terminal() {
		return
	}

	env, err := Decode(data)
	if err != nil {
		channel := ""
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			channel = decodeErr.Channel
		}
		metrics.WSDecodeErrors.WithLabelValues(channel).Inc()

		if l, ok := d.listener.(DecodeErrorListener); ok {
			l.OnDecodeError(err)
			return
		}
		d.logger.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable frame")
		d.logger.Debug().Bytes("raw", data).Msg("undecodable frame")
		return
	}

	if env.Error != nil {
		metrics.WSServerErrors.WithLabelValues(env.Channel, strconv.Itoa(int(env.Error.Code))).Inc()
	} else {
		metrics.WSFrames.WithLabelValues(env.Channel, env.Result.Kind().String()).Inc()
	}
	d.listener.OnEvent(env)
}

// BeginClose marks a close started by this side and notifies the listener
// before returning. It reports false when the connection was not open.
func (d *Dispatcher) BeginClose(code int, reason string) bool {
	if !d.transition(StateOpen, StateClosing) {
		return false
	}
	d.notifyClosing(code, reason)
	return true
}

// HandleClose records that the transport closed. A close initiated by the
// peer notifies the listener; one that follows BeginClose does not notify twice.
func (d *Dispatcher) HandleClose(code int, reason string) {
	if d.transition(StateOpen, StateClosing) {
		d.notifyClosing(code, reason)
	}
	d.transition(StateClosing, StateClosed)
}

// HandleFailure reports a transport failure unless a close is already under way.
func (d *Dispatcher) HandleFailure(err error) {
	if !d.transition(StateOpen, StateFailed) {
		if s := d.State(); s == StateClosing {
			d.transition(StateClosing, StateClosed)
		}
		d.logger.Debug().Err(err).Str("state", d.State().String()).Msg("suppressed transport failure")
		return
	}
	d.logger.Warn().Err(err).Str("endpoint", d.endpoint).Msg("websocket failure")
	d.listener.OnFailure(err)
}

func (d *Dispatcher) notifyClosing(code int, reason string) {
	d.logger.Info().Int("code", code).Str("reason", reason).Msg("websocket closing")
	if l, ok := d.listener.(ClosingListener); ok {
		l.OnClosing(code, reason)
	}
}
