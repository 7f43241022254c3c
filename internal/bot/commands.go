package bot

import telebot "gopkg.in/telebot.v3"

// Command constants for Telegram bot commands.
const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"
	CommandOrders = "/orders"
)

// menu is the command list shown by Telegram clients.
var menu = []telebot.Command{
	{Text: "start", Description: "Open the trading view"},
	{Text: "orders", Description: "List pending orders"},
	{Text: "cancel", Description: "Leave the current order setup"},
}
