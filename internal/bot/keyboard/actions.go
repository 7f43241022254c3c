package keyboard

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-swap/internal/session"
)

// Callback actions.
const (
	ActionWallet   = "w"
	ActionShowAll  = "all"
	ActionMode     = "mode"
	ActionSize     = "size"
	ActionSubmit   = "submit"
	ActionCustom   = "custom"
	ActionFlow     = "flow"
	ActionTrigger  = "trig"
	ActionMetric   = "metric"
	ActionDuration = "dur"
	ActionInterval = "int"
	ActionBack     = "back"
	ActionRefresh  = "refresh"
	ActionOrders   = "orders"
	ActionCancel   = "cxl"
)

const (
	sizeAmountPrefix  = "a"
	sizePercentPrefix = "p"
)

// SizeArg encodes a preset size as a callback argument.
func SizeArg(kind session.SizeKind, value decimal.Decimal) string {
	if kind == session.SizePercent {
		return sizePercentPrefix + value.String()
	}
	return sizeAmountPrefix + value.String()
}

// ParseSizeArg decodes an argument produced by SizeArg.
func ParseSizeArg(arg string) (session.Size, error) {
	var kind session.SizeKind
	switch {
	case strings.HasPrefix(arg, sizeAmountPrefix):
		kind = session.SizeAmount
	case strings.HasPrefix(arg, sizePercentPrefix):
		kind = session.SizePercent
	default:
		return session.Size{}, fmt.Errorf("unknown size argument %q", arg)
	}

	value, err := decimal.NewFromString(arg[1:])
	if err != nil || !value.IsPositive() {
		return session.Size{}, fmt.Errorf("invalid size argument %q", arg)
	}
	if kind == session.SizePercent && value.GreaterThan(decimal.NewFromInt(100)) {
		return session.Size{}, fmt.Errorf("percent out of range %q", arg)
	}

	return session.Size{Kind: kind, Value: value}, nil
}
