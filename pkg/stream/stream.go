// Package stream fans decoded WebSocket updates out to Go channels.
package stream

import (
	"context"

	"gateio/pkg/exchange/gateio"
)

// Stream is a connection that can be opened and closed.
// *gateio.WSClient implements it.
type Stream interface {
	Connect(ctx context.Context) error
	Subscribe(channel string, payload ...string) error
	Unsubscribe(channel string, payload ...string) error
	Close() error
	State() gateio.ConnState
}

var _ Stream = (*gateio.WSClient)(nil)

// Config sizes the per-subscriber buffers.
type Config struct {
	// BufferSize is the capacity of each subscriber channel. Updates that
	// find the buffer full are dropped.
	BufferSize int
}

func DefaultConfig() Config {
	return Config{BufferSize: 100}
}
