// Package order builds validated spot order requests.
package order

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"gateio/pkg/core"
	"gateio/pkg/exchange/gateio"
)

// TextPrefix starts every custom order text.
const TextPrefix = "t-"

// MaxTextLen is the longest text the API accepts, prefix included.
const MaxTextLen = 30

var (
	textPattern = regexp.MustCompile(`^t-[0-9A-Za-z_.-]{1,28}$`)
	pairPattern = regexp.MustCompile(`^[0-9A-Z]+_[0-9A-Z]+$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("gate_text", func(fl validator.FieldLevel) bool {
		return textPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("gate_pair", func(fl validator.FieldLevel) bool {
		return pairPattern.MatchString(fl.Field().String())
	})
	return v
}

// NewText returns a random order text: the prefix followed by 28 hex characters.
func NewText() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return TextPrefix + id[:MaxTextLen-len(TextPrefix)]
}

type draft struct {
	Text         string `validate:"omitempty,gate_text"`
	CurrencyPair string `validate:"required,gate_pair"`
}

// Builder provides a fluent interface for constructing orders.
// It accumulates the first parse error and reports it on Build.
//
// Example:
//
//	o, err := order.NewBuilder("BTC_USDT").
//	    Buy().
//	    Limit().
//	    Price("50000").
//	    Amount("0.001").
//	    Build()
type Builder struct {
	draft       draft
	side        core.OrderSide
	orderType   core.OrderType
	account     core.Account
	timeInForce core.TimeInForce
	tifSet      bool
	amount      apd.Decimal
	price       apd.Decimal
	iceberg     apd.Decimal
	autoBorrow  *bool
	autoRepay   *bool
	err         error
}

// NewBuilder starts a GTC limit order on the spot account.
func NewBuilder(pair string) *Builder {
	return &Builder{
		draft:   draft{CurrencyPair: pair},
		account: core.AccountSpot,
	}
}

func (b *Builder) Side(side core.OrderSide) *Builder {
	b.side = side
	return b
}

func (b *Builder) Buy() *Builder {
	return b.Side(core.SideBuy)
}

func (b *Builder) Sell() *Builder {
	return b.Side(core.SideSell)
}

func (b *Builder) Type(orderType core.OrderType) *Builder {
	b.orderType = orderType
	return b
}

func (b *Builder) Limit() *Builder {
	return b.Type(core.TypeLimit)
}

// Market makes a market order. Unless set otherwise it is IOC.
func (b *Builder) Market() *Builder {
	return b.Type(core.TypeMarket)
}

// Account selects spot, margin or cross margin.
func (b *Builder) Account(account core.Account) *Builder {
	b.account = account
	return b
}

// Price sets the limit price from its decimal text.
func (b *Builder) Price(price string) *Builder {
	b.setDecimal(&b.price, price, "price")
	return b
}

func (b *Builder) PriceDecimal(price *apd.Decimal) *Builder {
	b.price.Set(price)
	return b
}

// Amount sets the order size. For market buys it is the quote amount.
func (b *Builder) Amount(amount string) *Builder {
	b.setDecimal(&b.amount, amount, "amount")
	return b
}

func (b *Builder) AmountDecimal(amount *apd.Decimal) *Builder {
	b.amount.Set(amount)
	return b
}

// Iceberg sets the visible amount. Zero means fully visible.
func (b *Builder) Iceberg(amount string) *Builder {
	b.setDecimal(&b.iceberg, amount, "iceberg")
	return b
}

func (b *Builder) TimeInForce(tif core.TimeInForce) *Builder {
	b.timeInForce = tif
	b.tifSet = true
	return b
}

func (b *Builder) GTC() *Builder { return b.TimeInForce(core.GTC) }
func (b *Builder) IOC() *Builder { return b.TimeInForce(core.IOC) }
func (b *Builder) POC() *Builder { return b.TimeInForce(core.POC) }
func (b *Builder) FOK() *Builder { return b.TimeInForce(core.FOK) }

// Text sets a custom order text. It must start with "t-".
func (b *Builder) Text(text string) *Builder {
	b.draft.Text = text
	return b
}

// RandomText sets a text from NewText.
func (b *Builder) RandomText() *Builder {
	return b.Text(NewText())
}

// AutoBorrow lets a margin order borrow what it lacks.
func (b *Builder) AutoBorrow(on bool) *Builder {
	b.autoBorrow = &on
	return b
}

// AutoRepay repays loans from the proceeds of a cross margin order.
func (b *Builder) AutoRepay(on bool) *Builder {
	b.autoRepay = &on
	return b
}

func (b *Builder) setDecimal(dst *apd.Decimal, s, field string) {
	if b.err != nil {
		return
	}
	if _, _, err := dst.SetString(s); err != nil {
		b.err = fmt.Errorf("parse %s: %w", field, err)
	}
}

// Build validates the order and returns the request body.
func (b *Builder) Build() (gateio.NewOrder, error) {
	if b.err != nil {
		return gateio.NewOrder{}, b.err
	}
	if err := b.validate(); err != nil {
		return gateio.NewOrder{}, err
	}

	tif := b.timeInForce
	if !b.tifSet && b.orderType == core.TypeMarket {
		tif = core.IOC
	}

	o := gateio.NewOrder{
		Text:         b.draft.Text,
		CurrencyPair: b.draft.CurrencyPair,
		Type:         b.orderType,
		Account:      b.account,
		Side:         b.side,
		Amount:       b.amount.Text('f'),
		TimeInForce:  tif,
		AutoBorrow:   b.autoBorrow,
		AutoRepay:    b.autoRepay,
	}
	if b.orderType == core.TypeLimit {
		o.Price = b.price.Text('f')
	}
	if b.iceberg.Sign() > 0 {
		o.Iceberg = b.iceberg.Text('f')
	}
	return o, nil
}

func (b *Builder) validate() error {
	if err := validate.Struct(b.draft); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			switch fieldErrs[0].Field() {
			case "Text":
				return fmt.Errorf("text must match %s", textPattern)
			case "CurrencyPair":
				return fmt.Errorf("currency pair must look like BTC_USDT")
			}
		}
		return err
	}

	if b.amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if b.iceberg.Sign() < 0 {
		return fmt.Errorf("iceberg cannot be negative")
	}

	switch b.orderType {
	case core.TypeLimit:
		if b.price.Sign() <= 0 {
			return fmt.Errorf("price must be positive for limit orders")
		}
	case core.TypeMarket:
		if b.price.Sign() != 0 {
			return fmt.Errorf("market orders take no price")
		}
		if b.tifSet && b.timeInForce != core.IOC && b.timeInForce != core.FOK {
			return fmt.Errorf("market orders must be IOC or FOK")
		}
		if b.iceberg.Sign() != 0 {
			return fmt.Errorf("market orders cannot be iceberg orders")
		}
	default:
		return fmt.Errorf("invalid order type")
	}

	if b.side != core.SideBuy && b.side != core.SideSell {
		return fmt.Errorf("invalid order side")
	}

	borrow := b.autoBorrow != nil && *b.autoBorrow
	repay := b.autoRepay != nil && *b.autoRepay
	if borrow && repay {
		return fmt.Errorf("auto_borrow and auto_repay cannot both be set")
	}
	if (borrow || repay) && b.account == core.AccountSpot {
		return fmt.Errorf("auto_borrow and auto_repay need a margin account")
	}
	if repay && b.account != core.AccountCrossMargin {
		return fmt.Errorf("auto_repay is only supported on cross margin")
	}
	return nil
}
