package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v2"

	"gateio/pkg/core"
	"gateio/pkg/exchange"
	"gateio/pkg/exchange/gateio"
	"gateio/pkg/order"
	"gateio/pkg/stream"
)

var timeCommand = &cli.Command{
	Name:   "time",
	Usage:  "print the exchange server time",
	Action: serverTime,
}

func serverTime(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	st, err := client.ServerTime(ctx)
	if err != nil {
		return err
	}
	fmt.Println(time.UnixMilli(st.ServerTime).UTC().Format(time.RFC3339Nano))
	return nil
}

var pairsCommand = &cli.Command{
	Name:  "pairs",
	Usage: "list spot currency pairs",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "margin", Usage: "list margin pairs instead"},
	},
	Action: listPairs,
}

func listPairs(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	if c.Bool("margin") {
		pairs, err := client.ListMarginCurrencyPairs(ctx)
		if err != nil {
			return err
		}
		return jsonOutput(pairs)
	}
	pairs, err := client.ListCurrencyPairs(ctx)
	if err != nil {
		return err
	}
	return jsonOutput(pairs)
}

var tickerCommand = &cli.Command{
	Name:      "ticker",
	Usage:     "print tickers, all pairs when none is given",
	ArgsUsage: "[pair]",
	Action:    ticker,
}

func ticker(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	tickers, err := client.ListTickers(ctx, c.Args().First())
	if err != nil {
		return err
	}
	return jsonOutput(tickers)
}

var bookCommand = &cli.Command{
	Name:      "book",
	Usage:     "print the order book of a pair",
	ArgsUsage: "<pair>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 10, Usage: "levels per side"},
		&cli.StringFlag{Name: "interval", Usage: "price merge step, 0 for none"},
		&cli.BoolFlag{Name: "with-id", Usage: "include the order book update id"},
		&cli.BoolFlag{Name: "follow", Usage: "keep a live book from WebSocket updates and print quotes"},
		&cli.DurationFlag{Name: "every", Value: time.Second, Usage: "quote interval with --follow"},
	},
	Action: book,
}

func book(c *cli.Context) error {
	pair := c.Args().First()
	if pair == "" {
		return cli.ShowSubcommandHelp(c)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	if c.Bool("follow") {
		return followBook(c, e, client, pair)
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	opts := []exchange.Option{exchange.WithLimit(c.Int("limit"))}
	if c.IsSet("interval") {
		opts = append(opts, exchange.WithInterval(c.String("interval")))
	}
	if c.Bool("with-id") {
		opts = append(opts, exchange.WithOrderBookID())
	}
	snapshot, err := client.OrderBook(ctx, pair, opts...)
	if err != nil {
		return err
	}
	return jsonOutput(snapshot)
}

func followBook(c *cli.Context, e *env, client *gateio.Client, pair string) error {
	hub := stream.NewHub(stream.DefaultConfig())
	hub.SetLogger(e.logger)
	deltas, unsubscribe := hub.OrderBookUpdates(pair)
	defer unsubscribe()

	ws := gateio.NewWSClient(e.config, hub)
	ws.SetLogger(e.logger)

	connectCtx, cancel := context.WithTimeout(c.Context, e.config.Timeout)
	err := ws.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.Subscribe(gateio.ChannelOrderBookUpdate, pair, "100ms"); err != nil {
		return err
	}

	local := stream.NewBook(pair)
	local.SetLogger(e.logger)
	synced := make(chan error, 1)
	go func() {
		synced <- local.Sync(c.Context, client, deltas, c.Int("limit"))
	}()

	ticker := time.NewTicker(c.Duration("every"))
	defer ticker.Stop()
	for {
		select {
		case <-c.Context.Done():
			return nil
		case err := <-synced:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, stream.ErrClosed) {
				return hub.Err()
			}
			return err
		case err := <-hub.Errors():
			e.logger.Error().Err(err).Msg("stream error")
		case <-ticker.C:
			if !local.Synced() {
				continue
			}
			quote, err := local.Quote()
			if err != nil {
				e.logger.Warn().Err(err).Msg("no quote")
				continue
			}
			fmt.Printf("%s bid=%s ask=%s spread=%s id=%d\n",
				quote.Pair, quote.Bid.String(), quote.Ask.String(), quote.Spread.String(), local.LastUpdateID())
		}
	}
}

var candlesCommand = &cli.Command{
	Name:      "candles",
	Usage:     "print candlesticks of a pair",
	ArgsUsage: "<pair>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "interval", Value: string(gateio.Interval1h), Usage: "10s, 1m, 5m, 15m, 30m, 1h, 4h, 8h, 1d, 7d or 30d"},
		&cli.IntFlag{Name: "limit", Value: 24, Usage: "number of candles"},
	},
	Action: candles,
}

func candles(c *cli.Context) error {
	pair := c.Args().First()
	if pair == "" {
		return cli.ShowSubcommandHelp(c)
	}
	interval := gateio.Interval(c.String("interval"))
	if !interval.Valid() {
		return fmt.Errorf("invalid interval %q", interval)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	rows, err := client.Candlesticks(ctx, pair, interval, exchange.WithLimit(c.Int("limit")))
	if err != nil {
		return err
	}
	return jsonOutput(rows)
}

var balancesCommand = &cli.Command{
	Name:      "balances",
	Usage:     "print account balances",
	ArgsUsage: "[currency]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "cross", Usage: "print the cross margin account instead"},
	},
	Action: balances,
}

func balances(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	var out any
	err = e.private(client, func() error {
		var callErr error
		if c.Bool("cross") {
			out, callErr = client.CrossMarginAccount(ctx)
		} else {
			out, callErr = client.SpotAccounts(ctx, c.Args().First())
		}
		return callErr
	})
	if err != nil {
		return err
	}
	return jsonOutput(out)
}

var ordersCommand = &cli.Command{
	Name:  "orders",
	Usage: "list open orders",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "account", Usage: "spot, margin or cross_margin"},
		&cli.IntFlag{Name: "limit", Usage: "orders per pair"},
	},
	Action: openOrders,
}

func openOrders(c *cli.Context) error {
	var opts []exchange.Option
	if c.IsSet("account") {
		account, err := parseEnum[core.Account](c.String("account"))
		if err != nil {
			return err
		}
		opts = append(opts, exchange.WithAccount(account))
	}
	if c.IsSet("limit") {
		opts = append(opts, exchange.WithLimit(c.Int("limit")))
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	var out []gateio.OpenOrders
	err = e.private(client, func() error {
		var callErr error
		out, callErr = client.ListOpenOrders(ctx, opts...)
		return callErr
	})
	if err != nil {
		return err
	}
	return jsonOutput(out)
}

var orderCommand = &cli.Command{
	Name:  "order",
	Usage: "place or cancel an order",
	Subcommands: []*cli.Command{
		{
			Name:      "place",
			Usage:     "place a spot or margin order",
			ArgsUsage: "<pair> <buy|sell> <amount> [price]",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "market", Usage: "market order, price must be omitted"},
				&cli.StringFlag{Name: "account", Value: core.AccountSpot.String(), Usage: "spot, margin or cross_margin"},
				&cli.StringFlag{Name: "tif", Usage: "gtc, ioc, poc or fok"},
				&cli.StringFlag{Name: "iceberg", Usage: "visible amount"},
				&cli.StringFlag{Name: "text", Usage: "client order id, starting with t-"},
				&cli.BoolFlag{Name: "auto-borrow", Usage: "borrow the shortfall on margin"},
				&cli.BoolFlag{Name: "auto-repay", Usage: "repay loans with the proceeds on cross margin"},
				&cli.BoolFlag{Name: "dry-run", Usage: "print the order body without sending it"},
			},
			Action: placeOrder,
		},
		{
			Name:      "cancel",
			Usage:     "cancel an order",
			ArgsUsage: "<pair> <order id>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "account", Usage: "spot, margin or cross_margin"},
			},
			Action: cancelOrder,
		},
	},
}

func placeOrder(c *cli.Context) error {
	if c.NArg() < 3 {
		return cli.ShowSubcommandHelp(c)
	}
	side, err := parseEnum[core.OrderSide](c.Args().Get(1))
	if err != nil {
		return err
	}
	account, err := parseEnum[core.Account](c.String("account"))
	if err != nil {
		return err
	}

	b := order.NewBuilder(c.Args().Get(0)).
		Side(side).
		Account(account).
		Amount(c.Args().Get(2))
	if c.Bool("market") {
		b.Market()
	} else {
		if c.NArg() < 4 {
			return fmt.Errorf("limit orders need a price")
		}
		b.Limit().Price(c.Args().Get(3))
	}
	if c.Bool("auto-borrow") {
		b.AutoBorrow(true)
	}
	if c.Bool("auto-repay") {
		b.AutoRepay(true)
	}
	if c.IsSet("tif") {
		tif, err := parseEnum[core.TimeInForce](c.String("tif"))
		if err != nil {
			return err
		}
		b.TimeInForce(tif)
	}
	if c.IsSet("iceberg") {
		b.Iceberg(c.String("iceberg"))
	}
	if c.IsSet("text") {
		b.Text(c.String("text"))
	} else {
		b.RandomText()
	}

	newOrder, err := b.Build()
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		return jsonOutput(newOrder)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	var placed *gateio.SpotOrder
	err = e.private(client, func() error {
		var callErr error
		placed, callErr = client.CreateOrder(ctx, newOrder)
		return callErr
	})
	if err != nil {
		return err
	}
	return jsonOutput(placed)
}

func cancelOrder(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.ShowSubcommandHelp(c)
	}
	var opts []exchange.Option
	if c.IsSet("account") {
		account, err := parseEnum[core.Account](c.String("account"))
		if err != nil {
			return err
		}
		opts = append(opts, exchange.WithAccount(account))
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	client, err := e.client()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	var cancelled *gateio.SpotOrder
	err = e.private(client, func() error {
		var callErr error
		cancelled, callErr = client.CancelOrder(ctx, c.Args().Get(1), c.Args().Get(0), opts...)
		return callErr
	})
	if err != nil {
		return err
	}
	return jsonOutput(cancelled)
}

var streamCommand = &cli.Command{
	Name:      "stream",
	Usage:     "subscribe to a WebSocket channel and print updates until interrupted",
	ArgsUsage: "<channel> [payload...]",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "buffer", Value: stream.DefaultConfig().BufferSize, Usage: "updates buffered before dropping"},
	},
	Action: streamChannel,
}

func streamChannel(c *cli.Context) error {
	channel := c.Args().First()
	if channel == "" {
		return cli.ShowSubcommandHelp(c)
	}
	payload := c.Args().Tail()

	e, err := setup(c)
	if err != nil {
		return err
	}

	hub := stream.NewHub(stream.Config{BufferSize: c.Int("buffer")})
	hub.SetLogger(e.logger)
	updates, unsubscribe := hub.Subscribe(channel)
	defer unsubscribe()

	client := gateio.NewWSClient(e.config, hub)
	client.SetLogger(e.logger)

	ctx, cancel := context.WithTimeout(c.Context, e.config.Timeout)
	err = client.Connect(ctx)
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Subscribe(channel, payload...); err != nil {
		return err
	}
	e.logger.Info().Str("channel", channel).Strs("payload", payload).Msg("subscribed")

	for {
		select {
		case <-c.Context.Done():
			return nil
		case <-hub.Done():
			if err := hub.Err(); !errors.Is(err, stream.ErrClosed) {
				return err
			}
			return nil
		case err := <-hub.Errors():
			e.logger.Error().Err(err).Msg("stream error")
		case env, ok := <-updates:
			if !ok {
				continue
			}
			if err := jsonOutput(env); err != nil {
				return err
			}
		}
	}
}

var signCommand = &cli.Command{
	Name:  "sign",
	Usage: "print the signature headers for a REST call or a WebSocket request",
	Subcommands: []*cli.Command{
		{
			Name:      "rest",
			ArgsUsage: "<method> <path> [query]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "body", Usage: "request body"},
				&cli.Int64Flag{Name: "time", Usage: "unix seconds, now when unset"},
			},
			Action: signREST,
		},
		{
			Name:      "ws",
			ArgsUsage: "<channel> <subscribe|unsubscribe> [payload...]",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "time", Usage: "unix seconds, now when unset"},
				&cli.Int64Flag{Name: "id", Usage: "request id"},
			},
			Action: signWS,
		},
	},
}

func signTime(c *cli.Context) time.Time {
	if c.IsSet("time") {
		return time.Unix(c.Int64("time"), 0)
	}
	return time.Now()
}

func signREST(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	req := gateio.SignableRequest{
		Method: c.Args().Get(0),
		Path:   c.Args().Get(1),
		Query:  c.Args().Get(2),
	}
	if c.IsSet("body") {
		req.Body = []byte(c.String("body"))
	}
	headers, err := gateio.NewAuthHeaders(req, e.config.Credentials, signTime(c))
	if err != nil {
		return err
	}
	return jsonOutput(headers.Map())
}

func signWS(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	if e.config.Credentials == nil {
		return core.ErrNoCredentials
	}

	opts := []gateio.SubscriptionOption{gateio.WithPayload(c.Args().Tail()[1:]...)}
	if c.IsSet("id") {
		opts = append(opts, gateio.WithID(c.Int64("id")))
	}
	req, err := gateio.NewSubscriptionRequest(c.Args().Get(0), gateio.Event(c.Args().Get(1)), signTime(c), e.config.Credentials, opts...)
	if err != nil {
		return err
	}
	return jsonOutput(req)
}

// parseEnum reads a wire name such as "buy" or "cross_margin" into its enum.
func parseEnum[T any](name string) (T, error) {
	var v T
	if err := sonic.UnmarshalString(strconv.Quote(name), &v); err != nil {
		return v, err
	}
	return v, nil
}
