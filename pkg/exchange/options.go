// Package exchange holds options shared by list and query calls.
package exchange

import (
	"time"

	"gateio/pkg/core"
)

type Option func(*Options)

type Options struct {
	Limit    int
	Page     int
	Offset   int
	Interval string
	From     time.Time
	To       time.Time
	Account  *core.Account
	OrderID  string
	WithID   bool
}

func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

func WithPage(page int) Option {
	return func(o *Options) {
		o.Page = page
	}
}

// WithOffset skips the first offset records of a wallet history list.
func WithOffset(offset int) Option {
	return func(o *Options) {
		o.Offset = offset
	}
}

// WithInterval sets the candlestick width or the order book price merge step.
func WithInterval(interval string) Option {
	return func(o *Options) {
		o.Interval = interval
	}
}

func WithTimeRange(from, to time.Time) Option {
	return func(o *Options) {
		o.From = from
		o.To = to
	}
}

func WithAccount(account core.Account) Option {
	return func(o *Options) {
		o.Account = &account
	}
}

func WithOrderID(id string) Option {
	return func(o *Options) {
		o.OrderID = id
	}
}

// WithOrderBookID asks for the order book update id.
func WithOrderBookID() Option {
	return func(o *Options) {
		o.WithID = true
	}
}

func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Params merges the set options into params using the REST query names.
// Zero values are left out.
func (o *Options) Params(params core.Params) core.Params {
	if params == nil {
		params = core.Params{}
	}
	if o.Limit > 0 {
		params["limit"] = o.Limit
	}
	if o.Page > 0 {
		params["page"] = o.Page
	}
	if o.Offset > 0 {
		params["offset"] = o.Offset
	}
	if o.Interval != "" {
		params["interval"] = o.Interval
	}
	if !o.From.IsZero() {
		params["from"] = o.From.Unix()
	}
	if !o.To.IsZero() {
		params["to"] = o.To.Unix()
	}
	if o.Account != nil {
		params["account"] = o.Account.String()
	}
	if o.OrderID != "" {
		params["order_id"] = o.OrderID
	}
	if o.WithID {
		params["with_id"] = true
	}
	return params
}
