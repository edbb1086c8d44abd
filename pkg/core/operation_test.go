package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want string
	}{
		{"list_currency_pairs", OpListCurrencyPairs, "LIST_CURRENCY_PAIRS"},
		{"get_order_book", OpGetOrderBook, "GET_ORDER_BOOK"},
		{"get_candlesticks", OpGetCandlesticks, "GET_CANDLESTICKS"},
		{"create_order", OpCreateOrder, "CREATE_ORDER"},
		{"cancel_order", OpCancelOrder, "CANCEL_ORDER"},
		{"cross_margin_repay", OpCrossMarginRepay, "CROSS_MARGIN_REPAY"},
		{"list_withdraw_status", OpListWithdrawStatus, "LIST_WITHDRAW_STATUS"},
		{"list_currency_chains", OpListCurrencyChains, "LIST_CURRENCY_CHAINS"},
		{"withdraw", OpWithdraw, "WITHDRAW"},
		{"list_deposits", OpListDeposits, "LIST_DEPOSITS"},
		{"list_withdrawals", OpListWithdrawals, "LIST_WITHDRAWALS"},
		{"out_of_range", Operation(99), "UNKNOWN_OPERATION(99)"},
		{"negative", Operation(-1), "UNKNOWN_OPERATION(-1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestOperation_RequiresAuth(t *testing.T) {
	public := []Operation{
		OpListCurrencyPairs, OpListTickers, OpGetOrderBook, OpGetCandlesticks,
		OpGetServerTime, OpListMarginCurrencyPairs, OpListCurrencyChains,
	}
	for _, op := range public {
		assert.False(t, op.RequiresAuth(), op.String())
	}

	private := []Operation{
		OpListOpenOrders, OpCreateOrder, OpCancelOrder, OpListMyTrades, OpListSpotAccounts,
		OpGetCrossMarginAccount, OpCrossMarginRepay, OpGetDepositAddress, OpListWithdrawStatus,
		OpWithdraw, OpListDeposits, OpListWithdrawals,
	}
	for _, op := range private {
		assert.True(t, op.RequiresAuth(), op.String())
	}
}

func TestOperation_IsOrderOperation(t *testing.T) {
	for op := OpListCurrencyPairs; op <= OpListWithdrawals; op++ {
		want := op == OpCreateOrder || op == OpCancelOrder || op == OpWithdraw
		assert.Equal(t, want, op.IsOrderOperation(), op.String())
	}
}
