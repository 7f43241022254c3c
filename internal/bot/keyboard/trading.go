package keyboard

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-swap/internal/i18n"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/internal/wallet"
)

// CollapsedWallets is how many wallets are listed until the user expands the list.
const CollapsedWallets = 4

const (
	markSelected   = "✅ "
	markUnselected = "▫️ "
)

var (
	buyAmounts = []decimal.Decimal{
		decimal.RequireFromString("0.05"),
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("0.25"),
		decimal.RequireFromString("0.5"),
		decimal.NewFromInt(1),
	}
	sellPercents = []decimal.Decimal{
		decimal.NewFromInt(10),
		decimal.NewFromInt(25),
		decimal.NewFromInt(50),
		decimal.NewFromInt(100),
	}
)

// WalletRows lists wallets two per row in list order. Only the first CollapsedWallets are shown unless showAll,
// and a toggle row is added when there are more.
func WalletRows(t i18n.Translator, wallets []wallet.Record, selected []string, showAll bool) [][]InlineButton {
	visible := wallets
	if !showAll && len(visible) > CollapsedWallets {
		visible = visible[:CollapsedWallets]
	}

	isSelected := make(map[string]bool, len(selected))
	for _, key := range selected {
		isSelected[key] = true
	}

	rows := make([][]InlineButton, 0, len(visible)/2+2)
	var row []InlineButton
	for i, rec := range visible {
		key := wallet.Key(i)
		mark := markUnselected
		if isSelected[key] {
			mark = markSelected
		}

		row = append(row, InlineButton{Text: mark + rec.Name, Action: ActionWallet, Arg: key})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if len(wallets) > CollapsedWallets {
		label := i18n.Label(t, "keyboard.show_all", "Show all wallets")
		if showAll {
			label = i18n.Label(t, "keyboard.show_less", "Show less")
		}
		rows = append(rows, []InlineButton{{Text: label, Action: ActionShowAll}})
	}

	return rows
}

// ModeRow shows both directions with the active one marked.
func ModeRow(t i18n.Translator, mode session.Mode) []InlineButton {
	buy := i18n.Label(t, "keyboard.buy", "Buy")
	sell := i18n.Label(t, "keyboard.sell", "Sell")
	if mode == session.ModeSell {
		sell = markSelected + sell
	} else {
		buy = markSelected + buy
	}

	return []InlineButton{
		{Text: buy, Action: ActionMode, Arg: string(session.ModeBuy)},
		{Text: sell, Action: ActionMode, Arg: string(session.ModeSell)},
	}
}

// SizeRows returns the preset sizes for mode followed by the custom size button. Preset buttons carry action,
// ActionSize for immediate swaps or ActionSubmit for order placement.
// Buy sizes are in the native asset, sell sizes are percentages of the token balance.
func SizeRows(t i18n.Translator, mode session.Mode, nativeSymbol, action string) [][]InlineButton {
	var presets []InlineButton
	custom := InlineButton{Action: ActionCustom}

	if mode == session.ModeSell {
		for _, pct := range sellPercents {
			presets = append(presets, InlineButton{
				Text:   pct.String() + "%",
				Action: action,
				Arg:    SizeArg(session.SizePercent, pct),
			})
		}
		custom.Text = i18n.Label(t, "keyboard.custom_percent", "Custom %")
	} else {
		for _, amount := range buyAmounts {
			text := amount.String()
			if nativeSymbol != "" {
				text += " " + nativeSymbol
			}
			presets = append(presets, InlineButton{
				Text:   text,
				Action: action,
				Arg:    SizeArg(session.SizeAmount, amount),
			})
		}
		custom.Text = i18n.Label(t, "keyboard.custom_amount", "Custom amount")
	}

	rows := make([][]InlineButton, 0, 3)
	for i := 0; i < len(presets); i += 3 {
		end := min(i+3, len(presets))
		rows = append(rows, presets[i:end])
	}
	rows = append(rows, []InlineButton{custom})

	return rows
}

// FlowRow offers the limit and scheduled flows plus the orders list.
func FlowRow(t i18n.Translator) []InlineButton {
	return []InlineButton{
		{Text: i18n.Label(t, "keyboard.limit", "Limit order"), Action: ActionFlow, Arg: string(session.FlowLimit)},
		{Text: i18n.Label(t, "keyboard.dca", "DCA order"), Action: ActionFlow, Arg: string(session.FlowDCA)},
	}
}

// NavRow holds refresh and the orders shortcut.
func NavRow(t i18n.Translator) []InlineButton {
	return []InlineButton{
		{Text: i18n.Label(t, "keyboard.refresh", "Refresh"), Action: ActionRefresh},
		{Text: i18n.Label(t, "keyboard.orders", "My orders"), Action: ActionOrders, Arg: "1"},
	}
}

// LimitRows shows the trigger value and metric toggle.
func LimitRows(t i18n.Translator, limit session.LimitSetup) [][]InlineButton {
	value := i18n.Label(t, "keyboard.not_set", "not set")
	if limit.TriggerValue.IsPositive() {
		value = FormatNumber(limit.TriggerValue)
	}

	metric := i18n.Label(t, "keyboard.metric_market_cap", "Metric: market cap")
	if limit.Metric == session.MetricPrice {
		metric = i18n.Label(t, "keyboard.metric_price", "Metric: price")
	}

	return [][]InlineButton{
		{{Text: withValue(i18n.Label(t, "keyboard.trigger", "Trigger: {{.Value}}"), value), Action: ActionTrigger}},
		{{Text: metric, Action: ActionMetric}},
	}
}

// DCARows shows the duration and interval buttons.
func DCARows(t i18n.Translator, dca session.DCASetup) [][]InlineButton {
	notSet := i18n.Label(t, "keyboard.not_set", "not set")

	duration, interval := notSet, notSet
	if dca.DurationMinutes > 0 {
		duration = FormatMinutes(dca.DurationMinutes)
	}
	if dca.IntervalMinutes > 0 {
		interval = FormatMinutes(dca.IntervalMinutes)
	}

	return [][]InlineButton{{
		{Text: withValue(i18n.Label(t, "keyboard.duration", "Duration: {{.Value}}"), duration), Action: ActionDuration},
		{Text: withValue(i18n.Label(t, "keyboard.interval", "Interval: {{.Value}}"), interval), Action: ActionInterval},
	}}
}

// BackRow leaves the current flow.
func BackRow(t i18n.Translator) []InlineButton {
	return []InlineButton{{Text: i18n.Label(t, "keyboard.back", "Back"), Action: ActionBack}}
}

// CancelOrderButton cancels the order with the given id. label is a short display reference.
func CancelOrderButton(t i18n.Translator, orderID, label string) InlineButton {
	return InlineButton{
		Text:   withValue(i18n.Label(t, "keyboard.cancel_order", "Cancel #{{.Value}}"), label),
		Action: ActionCancel,
		Arg:    orderID,
	}
}

// FormatMinutes renders minutes as a compact duration such as 1d2h30m.
func FormatMinutes(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}

	var b strings.Builder
	if d := minutes / (24 * 60); d > 0 {
		b.WriteString(strconv.Itoa(d) + "d")
		minutes %= 24 * 60
	}
	if h := minutes / 60; h > 0 {
		b.WriteString(strconv.Itoa(h) + "h")
		minutes %= 60
	}
	if minutes > 0 {
		b.WriteString(strconv.Itoa(minutes) + "m")
	}

	return b.String()
}

// FormatNumber abbreviates large values with k, m and b suffixes.
func FormatNumber(v decimal.Decimal) string {
	suffixes := []struct {
		unit   decimal.Decimal
		suffix string
	}{
		{decimal.NewFromInt(1_000_000_000), "b"},
		{decimal.NewFromInt(1_000_000), "m"},
		{decimal.NewFromInt(1_000), "k"},
	}

	for _, s := range suffixes {
		if v.Abs().GreaterThanOrEqual(s.unit) {
			return v.Div(s.unit).Round(2).String() + s.suffix
		}
	}

	return v.String()
}

func withValue(label, value string) string {
	return i18n.Fill(label, "Value", value)
}
