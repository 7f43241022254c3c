package keyboard_test

import (
	"strings"
	"testing"

	"github.com/Proton-105/himera-swap/internal/bot/keyboard"
	"github.com/Proton-105/himera-swap/internal/testutil"
)

func TestInlineKeyboardBuilder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		builder := keyboard.NewInlineKeyboard()
		builder.AddRow(
			keyboard.InlineButton{Text: "Prev", Action: "orders", Arg: "1"},
			keyboard.InlineButton{Text: "Next", Action: "orders", Arg: "2"},
		).AddRow(
			keyboard.InlineButton{Text: "Back", Action: "back"},
		).AddRow()

		markup, err := builder.Build()
		testutil.AssertNoError(t, err)

		if markup == nil {
			t.Fatal("expected markup, got nil")
		}

		testutil.AssertEqual(t, 2, len(markup.InlineKeyboard))
		testutil.AssertEqual(t, 2, len(markup.InlineKeyboard[0]))
		testutil.AssertEqual(t, 1, len(markup.InlineKeyboard[1]))
		testutil.AssertEqual(t, "orders:2", markup.InlineKeyboard[0][1].Data)
		testutil.AssertEqual(t, "back", markup.InlineKeyboard[1][0].Data)
		testutil.AssertEqual(t, "", markup.InlineKeyboard[1][0].Unique)
	})

	t.Run("callback data overflow", func(t *testing.T) {
		builder := keyboard.NewInlineKeyboard()
		builder.AddRow(keyboard.InlineButton{
			Text:   "Too big",
			Action: "overflow",
			Arg:    strings.Repeat("x", keyboard.CallbackDataLimitBytes),
		})

		_, err := builder.Build()
		testutil.AssertError(t, err)
	})
}
