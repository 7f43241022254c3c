// Package view renders the text and inline keyboard for each screen of the trading conversation.
package view

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/keyboard"
	"github.com/Proton-105/himera-swap/internal/i18n"
	"github.com/Proton-105/himera-swap/internal/orders"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/internal/wallet"
)

// OrdersPageSize is the number of orders listed per page.
const OrdersPageSize = 5

// View is a rendered screen. Builders are deterministic and never modify their input.
type View struct {
	Text   string
	Markup *telebot.ReplyMarkup
}

// Options carries rendering inputs that do not live in the step.
type Options struct {
	Translator   i18n.Translator
	NativeSymbol string
	// Balances maps wallet address to native balance. Missing entries render as zero.
	Balances map[string]decimal.Decimal
}

// ForStep renders the screen matching the step's flow.
func ForStep(step *session.Step, opts Options) (View, error) {
	switch step.Flow {
	case session.FlowLimit:
		return Limit(step, opts)
	case session.FlowDCA:
		return DCA(step, opts)
	default:
		return Main(step, opts)
	}
}

// Main renders the token overview with market order buttons.
func Main(step *session.Step, opts Options) (View, error) {
	t := opts.Translator
	kb := keyboard.NewInlineKeyboard()

	if step.Token == nil {
		kb.AddRow(keyboard.NavRow(t)[1])
		return build(i18n.Label(t, "view.welcome", "Send a token contract address to start trading."), kb)
	}

	var b strings.Builder
	writeToken(&b, t, step.Token)
	b.WriteString("\n")
	writeWallets(&b, t, step, opts)
	b.WriteString("\n")
	writeMode(&b, t, step.Mode)

	kb.AddRows(keyboard.WalletRows(t, step.Wallets, step.SelectedWallets, step.ShowAllWallets)...)
	kb.AddRow(keyboard.ModeRow(t, step.Mode)...)
	kb.AddRows(keyboard.SizeRows(t, step.Mode, opts.NativeSymbol, keyboard.ActionSize)...)
	kb.AddRow(keyboard.FlowRow(t)...)
	kb.AddRow(keyboard.NavRow(t)...)

	return build(b.String(), kb)
}

// Limit renders the limit order setup screen.
func Limit(step *session.Step, opts Options) (View, error) {
	t := opts.Translator
	limit := session.LimitSetup{Metric: session.MetricMarketCap}
	if step.Limit != nil {
		limit = *step.Limit
	}

	var b strings.Builder
	b.WriteString("<b>" + i18n.Label(t, "view.limit_title", "Limit order") + "</b>\n")
	writeToken(&b, t, step.Token)
	b.WriteString("\n")
	writeMode(&b, t, step.Mode)
	b.WriteString(i18n.Label(t, "view.limit_hint", "Set a trigger value, then pick a size."))

	kb := keyboard.NewInlineKeyboard()
	kb.AddRows(keyboard.WalletRows(t, step.Wallets, step.SelectedWallets, step.ShowAllWallets)...)
	kb.AddRow(keyboard.ModeRow(t, step.Mode)...)
	kb.AddRows(keyboard.LimitRows(t, limit)...)
	kb.AddRows(keyboard.SizeRows(t, step.Mode, opts.NativeSymbol, keyboard.ActionSubmit)...)
	kb.AddRow(keyboard.BackRow(t)...)

	return build(b.String(), kb)
}

// DCA renders the scheduled order setup screen.
func DCA(step *session.Step, opts Options) (View, error) {
	t := opts.Translator
	var dca session.DCASetup
	if step.DCA != nil {
		dca = *step.DCA
	}

	var b strings.Builder
	b.WriteString("<b>" + i18n.Label(t, "view.dca_title", "DCA order") + "</b>\n")
	writeToken(&b, t, step.Token)
	b.WriteString("\n")
	writeMode(&b, t, step.Mode)
	b.WriteString(i18n.Label(t, "view.dca_hint", "Set duration and interval, then pick a size."))

	kb := keyboard.NewInlineKeyboard()
	kb.AddRows(keyboard.WalletRows(t, step.Wallets, step.SelectedWallets, step.ShowAllWallets)...)
	kb.AddRow(keyboard.ModeRow(t, step.Mode)...)
	kb.AddRows(keyboard.DCARows(t, dca)...)
	kb.AddRows(keyboard.SizeRows(t, step.Mode, opts.NativeSymbol, keyboard.ActionSubmit)...)
	kb.AddRow(keyboard.BackRow(t)...)

	return build(b.String(), kb)
}

// Orders renders one page of pending orders with cancel buttons. page is 1-based.
func Orders(list []*orders.Order, page int, opts Options) (View, error) {
	t := opts.Translator
	kb := keyboard.NewInlineKeyboard()

	if len(list) == 0 {
		kb.AddRow(keyboard.BackRow(t)...)
		return build(i18n.Label(t, "view.orders_empty", "You have no pending orders."), kb)
	}

	p := keyboard.Paginate(len(list), OrdersPageSize, page)

	var b strings.Builder
	b.WriteString("<b>" + i18n.Label(t, "view.orders_title", "Pending orders") + "</b>\n")
	for _, o := range list[p.Start:p.End] {
		ref := shortID(o.ID)
		b.WriteString(fmt.Sprintf("\n#%s %s %s %s · %s\n", ref, strings.ToUpper(string(o.Kind)), o.Mode, html.EscapeString(o.TokenSymbol), wallet.ShortAddress(o.WalletAddress)))
		b.WriteString(describeOrder(o) + "\n")
		kb.AddRow(keyboard.CancelOrderButton(t, o.ID, ref))
	}

	if p.Pages > 1 {
		kb.AddRow(keyboard.PaginationButtons(t, keyboard.ActionOrders, p)...)
	}
	kb.AddRow(keyboard.BackRow(t)...)

	return build(b.String(), kb)
}

// Prompt returns the text asking for the awaited input.
func Prompt(t i18n.Translator, input session.Input) string {
	fallbacks := map[session.Input]string{
		session.InputLimitTriggerValue: "Send the trigger value, e.g. 50000, 50k or 1.5m.",
		session.InputDCADuration:       "Send the total duration, e.g. 1d, 2h30m.",
		session.InputDCAInterval:       "Send the interval between buys, e.g. 30m (minimum 5m).",
		session.InputOrderAmount:       "Send the order size.",
		session.InputBuyAmount:         "Send the amount to spend.",
		session.InputSellPercent:       "Send the percentage of your balance to sell (1-100).",
	}
	return i18n.Label(t, "prompt."+string(input), fallbacks[input])
}

func build(text string, kb *keyboard.InlineKeyboardBuilder) (View, error) {
	markup, err := kb.Build()
	if err != nil {
		return View{}, fmt.Errorf("build keyboard: %w", err)
	}
	return View{Text: text, Markup: markup}, nil
}

func writeToken(b *strings.Builder, t i18n.Translator, token *session.Token) {
	if token == nil {
		return
	}

	title := i18n.Fill(i18n.Label(t, "view.token", "{{.Symbol}} ({{.Name}})"), "Symbol", html.EscapeString(token.Symbol), "Name", html.EscapeString(token.Name))

	b.WriteString("<b>" + title + "</b>\n")
	b.WriteString("<code>" + html.EscapeString(token.Address) + "</code>\n")
	b.WriteString(fill(i18n.Label(t, "view.price", "Price: ${{.Value}}"), token.Price.String()) + "\n")
	b.WriteString(fill(i18n.Label(t, "view.market_cap", "Market cap: ${{.Value}}"), keyboard.FormatNumber(token.MarketCap)) + "\n")
}

func writeWallets(b *strings.Builder, t i18n.Translator, step *session.Step, opts Options) {
	if len(step.Wallets) == 0 {
		return
	}

	b.WriteString(i18n.Label(t, "view.wallets", "Wallets") + ":\n")
	for _, rec := range step.Wallets {
		balance, ok := opts.Balances[rec.Address]
		if !ok {
			balance = decimal.Zero
		}
		line := fmt.Sprintf("%s <code>%s</code>: %s", html.EscapeString(rec.Name), wallet.ShortAddress(rec.Address), balance.Round(4).String())
		if opts.NativeSymbol != "" {
			line += " " + opts.NativeSymbol
		}
		b.WriteString(line + "\n")
	}
}

func writeMode(b *strings.Builder, t i18n.Translator, mode session.Mode) {
	if mode == session.ModeSell {
		b.WriteString(i18n.Label(t, "view.mode_sell", "Mode: sell") + "\n")
		return
	}
	b.WriteString(i18n.Label(t, "view.mode_buy", "Mode: buy") + "\n")
}

func describeOrder(o *orders.Order) string {
	size := o.Size.String()
	if o.SizeKind == orders.SizePercent {
		size += "%"
	}

	if o.Kind == orders.KindDCA {
		line := fmt.Sprintf("size %s every %s, %d/%d done",
			size,
			keyboard.FormatMinutes(o.IntervalMinutes),
			o.OccurrencesDone,
			o.OccurrencesTotal,
		)
		if o.NextDueAt != nil {
			line += ", next " + o.NextDueAt.UTC().Format("2006-01-02 15:04 UTC")
		}
		return line
	}

	cmp := "≤"
	if o.Mode == orders.ModeSell {
		cmp = "≥"
	}
	return fmt.Sprintf("size %s when %s %s %s", size, o.Metric, cmp, keyboard.FormatNumber(o.Target))
}

func fill(label, value string) string {
	return i18n.Fill(label, "Value", value)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
