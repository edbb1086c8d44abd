package core

import "strconv"

// Operation represents a REST call that can be performed on the exchange.
type Operation int

// Operation constants define all supported REST calls.
const (
	// OpListCurrencyPairs lists all spot currency pairs.
	OpListCurrencyPairs Operation = iota
	// OpListTickers retrieves 24h tickers for one or all pairs.
	OpListTickers
	// OpGetOrderBook retrieves the current order book depth.
	OpGetOrderBook
	// OpGetCandlesticks retrieves candlestick data.
	OpGetCandlesticks
	// OpGetServerTime retrieves the exchange clock.
	OpGetServerTime
	// OpListOpenOrders lists open orders grouped by pair.
	OpListOpenOrders
	// OpCreateOrder submits a new spot order.
	OpCreateOrder
	// OpCancelOrder cancels a single order.
	OpCancelOrder
	// OpListMyTrades lists personal trading history.
	OpListMyTrades
	// OpListSpotAccounts lists spot balances.
	OpListSpotAccounts
	// OpGetCrossMarginAccount retrieves the cross margin account.
	OpGetCrossMarginAccount
	// OpCrossMarginRepay repays a cross margin loan.
	OpCrossMarginRepay
	// OpListMarginCurrencyPairs lists pairs that support margin trading.
	OpListMarginCurrencyPairs
	// OpListCrossMarginCurrencies lists currencies supported by cross margin.
	OpListCrossMarginCurrencies
	// OpGetDepositAddress retrieves a deposit address.
	OpGetDepositAddress
	// OpListWithdrawStatus retrieves withdrawal fees and limits.
	OpListWithdrawStatus
	// OpListCurrencyChains lists the chains a currency can move on.
	OpListCurrencyChains
	// OpWithdraw submits a withdrawal.
	OpWithdraw
	// OpListDeposits lists deposit records.
	OpListDeposits
	// OpListWithdrawals lists withdrawal records.
	OpListWithdrawals
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	names := [...]string{
		"LIST_CURRENCY_PAIRS",
		"LIST_TICKERS",
		"GET_ORDER_BOOK",
		"GET_CANDLESTICKS",
		"GET_SERVER_TIME",
		"LIST_OPEN_ORDERS",
		"CREATE_ORDER",
		"CANCEL_ORDER",
		"LIST_MY_TRADES",
		"LIST_SPOT_ACCOUNTS",
		"GET_CROSS_MARGIN_ACCOUNT",
		"CROSS_MARGIN_REPAY",
		"LIST_MARGIN_CURRENCY_PAIRS",
		"LIST_CROSS_MARGIN_CURRENCIES",
		"GET_DEPOSIT_ADDRESS",
		"LIST_WITHDRAW_STATUS",
		"LIST_CURRENCY_CHAINS",
		"WITHDRAW",
		"LIST_DEPOSITS",
		"LIST_WITHDRAWALS",
	}
	if o < 0 || int(o) >= len(names) {
		return "UNKNOWN_OPERATION(" + strconv.Itoa(int(o)) + ")"
	}
	return names[o]
}

// RequiresAuth reports whether the operation touches private account data.
func (o Operation) RequiresAuth() bool {
	switch o {
	case OpListOpenOrders, OpCreateOrder, OpCancelOrder, OpListMyTrades,
		OpListSpotAccounts, OpGetCrossMarginAccount, OpCrossMarginRepay,
		OpListCrossMarginCurrencies, OpGetDepositAddress, OpListWithdrawStatus,
		OpWithdraw, OpListDeposits, OpListWithdrawals:
		return true
	}
	return false
}

// IsOrderOperation reports whether the operation counts against the order rate limit.
// Withdrawals share that limit.
func (o Operation) IsOrderOperation() bool {
	return o == OpCreateOrder || o == OpCancelOrder || o == OpWithdraw
}
