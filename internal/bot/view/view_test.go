package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-swap/internal/bot/keyboard"
	"github.com/Proton-105/himera-swap/internal/orders"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/internal/wallet"
)

func testStep(t *testing.T, walletCount int) *session.Step {
	t.Helper()

	records := make([]wallet.Record, walletCount)
	for i := range records {
		records[i] = wallet.Record{Address: fmt.Sprintf("0x%040x", i+1)}
	}

	step, err := session.Apply(session.New(7), session.Event{
		Type: session.EventSelectToken,
		Token: &session.Token{
			Address:   "0x00000000000000000000000000000000000000aa",
			Symbol:    "TKN",
			Name:      "Token",
			Price:     decimal.RequireFromString("0.0042"),
			MarketCap: decimal.NewFromInt(42000),
		},
		Wallets: records,
	})
	require.NoError(t, err)
	return step
}

func callbackData(v View) []string {
	var out []string
	for _, row := range v.Markup.InlineKeyboard {
		for _, btn := range row {
			out = append(out, btn.Data)
		}
	}
	return out
}

func TestMainIsDeterministic(t *testing.T) {
	step := testStep(t, 6)
	before := step.Clone()
	opts := Options{NativeSymbol: "ETH", Balances: map[string]decimal.Decimal{
		step.Wallets[0].Address: decimal.RequireFromString("1.23456"),
	}}

	first, err := Main(step, opts)
	require.NoError(t, err)
	second, err := Main(step, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, step)
	assert.Contains(t, first.Text, "TKN (Token)")
	assert.Contains(t, first.Text, "Market cap: $42k")
	assert.Contains(t, first.Text, "1.2346 ETH")
	assert.Contains(t, callbackData(first), "flow:limit")
	assert.Contains(t, callbackData(first), "all")
	assert.Equal(t, "✅ Wallet 1", first.Markup.InlineKeyboard[0][0].Text)
}

func TestMainWithoutToken(t *testing.T) {
	v, err := Main(session.New(1), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Send a token contract address to start trading.", v.Text)
	assert.Equal(t, []string{"orders:1"}, callbackData(v))
}

func TestForStepSelectsFlowView(t *testing.T) {
	step := testStep(t, 2)

	limitStep, err := session.Apply(step, session.Event{Type: session.EventEnterFlow, Flow: session.FlowLimit, Wallets: step.Wallets})
	require.NoError(t, err)
	v, err := ForStep(limitStep, Options{})
	require.NoError(t, err)
	assert.Contains(t, v.Text, "Limit order")
	assert.Contains(t, callbackData(v), keyboard.ActionTrigger)
	assert.Contains(t, callbackData(v), keyboard.ActionBack)

	dcaStep, err := session.Apply(step, session.Event{Type: session.EventEnterFlow, Flow: session.FlowDCA, Wallets: step.Wallets})
	require.NoError(t, err)
	v, err = ForStep(dcaStep, Options{})
	require.NoError(t, err)
	assert.Contains(t, v.Text, "DCA order")
	assert.Contains(t, callbackData(v), keyboard.ActionInterval)
}

func TestOrdersPagination(t *testing.T) {
	due := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	list := make([]*orders.Order, 7)
	for i := range list {
		list[i] = &orders.Order{
			ID:            fmt.Sprintf("%08d-0000-0000-0000-000000000000", i),
			Kind:          orders.KindLimit,
			Mode:          orders.ModeBuy,
			TokenSymbol:   "TKN",
			WalletAddress: "0x0000000000000000000000000000000000000001",
			SizeKind:      orders.SizeAmount,
			Size:          decimal.RequireFromString("0.1"),
			Metric:        orders.MetricMarketCap,
			Target:        decimal.NewFromInt(50000),
		}
	}
	list[6].Kind = orders.KindDCA
	list[6].IntervalMinutes = 20
	list[6].OccurrencesTotal = 3
	list[6].NextDueAt = &due

	v, err := Orders(list, 2, Options{})
	require.NoError(t, err)
	assert.Contains(t, v.Text, "#00000005")
	assert.Contains(t, v.Text, "every 20m, 0/3 done, next 2026-01-02 03:04 UTC")
	assert.NotContains(t, v.Text, "#00000004")

	data := callbackData(v)
	assert.Contains(t, data, "cxl:"+list[5].ID)
	assert.Contains(t, data, "orders:1")

	v, err = Orders(list, 1, Options{})
	require.NoError(t, err)
	assert.Contains(t, v.Text, "when market_cap ≤ 50k")

	empty, err := Orders(nil, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, "You have no pending orders.", empty.Text)
}

func TestPromptFallback(t *testing.T) {
	assert.Equal(t, "Send the amount to spend.", Prompt(nil, session.InputBuyAmount))
}

func TestExternalTextIsEscaped(t *testing.T) {
	step, err := session.Apply(session.New(7), session.Event{
		Type: session.EventSelectToken,
		Token: &session.Token{
			Address:   "0x00000000000000000000000000000000000000aa",
			Symbol:    "<PEPE>",
			Name:      "Pepe & Co",
			Price:     decimal.RequireFromString("0.0042"),
			MarketCap: decimal.NewFromInt(42000),
		},
		Wallets: []wallet.Record{{Address: "0x0000000000000000000000000000000000000001", Name: "<b>main"}},
	})
	require.NoError(t, err)

	v, err := Main(step, Options{})
	require.NoError(t, err)
	assert.Contains(t, v.Text, "<b>&lt;PEPE&gt; (Pepe &amp; Co)</b>")
	assert.Contains(t, v.Text, "&lt;b&gt;main <code>")
	assert.NotContains(t, v.Text, "<PEPE>")

	list := []*orders.Order{{ID: "abcdef12-0000", Kind: orders.KindLimit, Mode: orders.ModeBuy, TokenSymbol: "A&B",
		SizeKind: orders.SizeAmount, Size: decimal.NewFromInt(1), Metric: orders.MetricPrice, Target: decimal.NewFromInt(2)}}
	page, err := Orders(list, 1, Options{})
	require.NoError(t, err)
	assert.Contains(t, page.Text, "A&amp;B")
}
