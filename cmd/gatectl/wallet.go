package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"gateio/pkg/exchange"
	"gateio/pkg/exchange/gateio"
)

var walletCommand = &cli.Command{
	Name:  "wallet",
	Usage: "deposit and withdrawal tools",
	Subcommands: []*cli.Command{
		{
			Name:      "chains",
			Usage:     "list the chains a currency moves on",
			ArgsUsage: "<currency>",
			Action:    currencyChains,
		},
		{
			Name:      "deposits",
			Usage:     "list deposit records",
			ArgsUsage: "[currency]",
			Flags:     ledgerFlags,
			Action:    ledgerAction(false),
		},
		{
			Name:      "withdrawals",
			Usage:     "list withdrawal records",
			ArgsUsage: "[currency]",
			Flags:     ledgerFlags,
			Action:    ledgerAction(true),
		},
		{
			Name:      "withdraw",
			Usage:     "withdraw to an address",
			ArgsUsage: "<currency> <address> <amount>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "chain", Usage: "chain name, see wallet chains"},
				&cli.StringFlag{Name: "memo", Usage: "address memo or tag"},
				&cli.StringFlag{Name: "id", Usage: "client withdrawal id"},
				&cli.BoolFlag{Name: "dry-run", Usage: "print the request body without sending it"},
			},
			Action: withdraw,
		},
	},
}

var ledgerFlags = []cli.Flag{
	&cli.DurationFlag{Name: "since", Usage: "only records newer than this, e.g. 72h"},
	&cli.IntFlag{Name: "limit", Value: 100, Usage: "maximum number of records"},
	&cli.IntFlag{Name: "offset", Usage: "records to skip"},
}

func currencyChains(c *cli.Context) error {
	currency := c.Args().First()
	if currency == "" {
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

	ctx, cancel := commandContext(c)
	defer cancel()

	chains, err := client.CurrencyChains(ctx, currency)
	if err != nil {
		return err
	}
	return jsonOutput(chains)
}

func ledgerOptions(c *cli.Context, now time.Time) []exchange.Option {
	opts := []exchange.Option{
		exchange.WithLimit(c.Int("limit")),
		exchange.WithOffset(c.Int("offset")),
	}
	if since := c.Duration("since"); since > 0 {
		opts = append(opts, exchange.WithTimeRange(now.Add(-since), now))
	}
	return opts
}

func ledgerAction(withdrawals bool) cli.ActionFunc {
	return func(c *cli.Context) error {
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

		opts := ledgerOptions(c, time.Now())
		var records []gateio.LedgerRecord
		err = e.private(client, func() error {
			var callErr error
			if withdrawals {
				records, callErr = client.Withdrawals(ctx, c.Args().First(), opts...)
			} else {
				records, callErr = client.Deposits(ctx, c.Args().First(), opts...)
			}
			return callErr
		})
		if err != nil {
			return err
		}
		return jsonOutput(records)
	}
}

func withdraw(c *cli.Context) error {
	if c.NArg() < 3 {
		return cli.ShowSubcommandHelp(c)
	}
	request := gateio.WithdrawRequest{
		Currency:        c.Args().Get(0),
		Address:         c.Args().Get(1),
		Amount:          c.Args().Get(2),
		Chain:           c.String("chain"),
		Memo:            c.String("memo"),
		WithdrawOrderID: c.String("id"),
	}
	if c.Bool("dry-run") {
		return jsonOutput(request)
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

	var record *gateio.LedgerRecord
	err = e.private(client, func() error {
		var callErr error
		record, callErr = client.Withdraw(ctx, request)
		return callErr
	})
	if err != nil {
		return err
	}
	return jsonOutput(record)
}
