package session

import (
	"errors"
	"fmt"

	"github.com/Proton-105/himera-swap/internal/wallet"
)

// EventType enumerates the inputs of the step state machine.
type EventType string

const (
	EventSelectToken   EventType = "select_token"
	EventEnterFlow     EventType = "enter_flow"
	EventToggleWallet  EventType = "toggle_wallet"
	EventToggleMode    EventType = "toggle_mode"
	EventToggleMetric  EventType = "toggle_metric"
	EventToggleShowAll EventType = "toggle_show_all"
	EventAwaitInput    EventType = "await_input"
	EventInput         EventType = "input"
	EventBack          EventType = "back"
	EventSubmit        EventType = "submit"
	EventSetWallets    EventType = "set_wallets"
)

// Event carries the payload for a single state machine step. Only the fields relevant to Type are read.
type Event struct {
	Type            EventType
	Token           *Token
	Flow            Flow
	Wallets         []wallet.Record
	WalletKey       string
	Input           Input
	PromptMessageID int
	Text            string
}

// ErrInvalidTransition indicates the event would move to a screen that is not reachable from the current one.
var ErrInvalidTransition = errors.New("invalid step transition")

// ValidationError describes a rejected event; the step is left untouched.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

func invalidf(field, format string, args ...any) *ValidationError {
	msg := fmt.Sprintf(format, args...)
	return &ValidationError{Field: field, Message: msg, Err: errors.New(msg)}
}

// Apply computes the step that results from ev without mutating step.
// A nil step is treated as a freshly created one. Every rejection is a *ValidationError.
func Apply(step *Step, ev Event) (*Step, error) {
	if step == nil {
		step = New(0)
	}

	next := step.Clone()
	if next.Mode == "" {
		next.Mode = ModeBuy
	}
	if next.Flow == "" {
		next.Flow = FlowNone
	}
	if next.Input == "" {
		next.Input = InputNone
	}

	var err *ValidationError
	switch ev.Type {
	case EventSelectToken:
		err = applySelectToken(next, ev)
	case EventEnterFlow:
		err = applyEnterFlow(next, ev)
	case EventToggleWallet:
		err = applyToggleWallet(next, ev)
	case EventToggleMode:
		if next.Mode == ModeBuy {
			next.Mode = ModeSell
		} else {
			next.Mode = ModeBuy
		}
	case EventToggleMetric:
		if next.Flow != FlowLimit || next.Limit == nil {
			err = invalidf("metric", "not in the limit flow")
			break
		}
		if next.Limit.Metric == MetricMarketCap {
			next.Limit.Metric = MetricPrice
		} else {
			next.Limit.Metric = MetricMarketCap
		}
	case EventToggleShowAll:
		next.ShowAllWallets = !next.ShowAllWallets
	case EventAwaitInput:
		err = applyAwaitInput(next, ev)
	case EventInput:
		err = applyInput(next, ev)
	case EventBack, EventSubmit:
		next.resetFlow()
	case EventSetWallets:
		next.setWallets(ev.Wallets)
		next.pruneSelection()
		next.defaultSelection()
	default:
		err = invalidf("event", "unknown event %q", ev.Type)
	}

	if err != nil {
		return nil, err
	}

	from, to := ScreenOf(step), ScreenOf(next)
	if !IsTransitionAllowed(from, to) {
		return nil, &ValidationError{
			Field:   "screen",
			Message: fmt.Sprintf("cannot move from %s to %s", from, to),
			Err:     ErrInvalidTransition,
		}
	}
	if from != to {
		transitionRecorder(string(from), string(to))
	}

	return next, nil
}

func applySelectToken(s *Step, ev Event) *ValidationError {
	if ev.Token == nil || ev.Token.Address == "" {
		return invalidf("token", "token is required")
	}

	token := *ev.Token
	s.Token = &token
	s.resetFlow()

	if ev.Wallets != nil {
		s.setWallets(ev.Wallets)
		s.pruneSelection()
	}
	s.defaultSelection()

	return nil
}

func applyEnterFlow(s *Step, ev Event) *ValidationError {
	if ev.Flow != FlowLimit && ev.Flow != FlowDCA {
		return invalidf("flow", "unknown flow %q", ev.Flow)
	}
	if s.Token == nil {
		return invalidf("token", "select a token first")
	}

	s.setWallets(ev.Wallets)
	if len(s.Wallets) == 0 {
		return invalidf("wallets", "no wallets available")
	}

	s.SelectedWallets = []string{wallet.Key(0)}
	if s.CurrentWallet != "" {
		if key, ok := wallet.Find(s.Wallets, s.CurrentWallet); ok {
			s.SelectedWallets = []string{key}
		} else {
			s.CurrentWallet = ""
		}
	}

	s.resetFlow()
	s.Flow = ev.Flow
	switch ev.Flow {
	case FlowLimit:
		s.Limit = &LimitSetup{Metric: MetricMarketCap}
	case FlowDCA:
		s.DCA = &DCASetup{}
	}

	return nil
}

func applyToggleWallet(s *Step, ev Event) *ValidationError {
	rec, ok := s.WalletMap[ev.WalletKey]
	if !ok {
		return invalidf("wallet", "unknown wallet %q", ev.WalletKey)
	}

	kept := make([]string, 0, len(s.SelectedWallets)+1)
	removed := false
	for _, key := range s.SelectedWallets {
		if key == ev.WalletKey {
			removed = true
			continue
		}
		kept = append(kept, key)
	}
	if !removed {
		kept = append(kept, ev.WalletKey)
	}

	s.SelectedWallets = sortKeys(kept)
	s.CurrentWallet = rec.Address

	return nil
}

func applyAwaitInput(s *Step, ev Event) *ValidationError {
	switch ev.Input {
	case InputLimitTriggerValue:
		if s.Flow != FlowLimit {
			return invalidf("input", "not in the limit flow")
		}
	case InputDCADuration, InputDCAInterval:
		if s.Flow != FlowDCA {
			return invalidf("input", "not in the dca flow")
		}
	case InputOrderAmount:
		if s.Flow == FlowNone {
			return invalidf("input", "no order flow active")
		}
	case InputBuyAmount, InputSellPercent:
		if s.Flow != FlowNone {
			return invalidf("input", "finish or leave the current flow first")
		}
		if s.Token == nil {
			return invalidf("token", "select a token first")
		}
	default:
		return invalidf("input", "unknown input %q", ev.Input)
	}

	s.Input = ev.Input
	s.PromptMessageID = ev.PromptMessageID
	s.PendingSize = nil

	return nil
}

func applyInput(s *Step, ev Event) *ValidationError {
	switch s.Input {
	case InputLimitTriggerValue:
		if s.Limit == nil {
			return invalidf("input", "not in the limit flow")
		}
		value, err := ParseTriggerValue(ev.Text)
		if err != nil {
			return invalid("trigger_value", err)
		}
		s.Limit.TriggerValue = value
	case InputDCADuration:
		if s.DCA == nil {
			return invalidf("input", "not in the dca flow")
		}
		minutes, err := ParseDuration(ev.Text)
		if err != nil {
			return invalid("duration", err)
		}
		if s.DCA.IntervalMinutes > minutes {
			return invalidf("duration", "must be at least the interval")
		}
		s.DCA.DurationMinutes = minutes
	case InputDCAInterval:
		if s.DCA == nil {
			return invalidf("input", "not in the dca flow")
		}
		minutes, err := ParseDuration(ev.Text)
		if err != nil {
			return invalid("interval", err)
		}
		if s.DCA.DurationMinutes > 0 && minutes > s.DCA.DurationMinutes {
			return invalidf("interval", "must not exceed the duration")
		}
		s.DCA.IntervalMinutes = minutes
	case InputOrderAmount:
		size, err := parseSize(s.Mode, ev.Text)
		if err != nil {
			return err
		}
		s.PendingSize = size
	case InputBuyAmount:
		size, err := parseSize(ModeBuy, ev.Text)
		if err != nil {
			return err
		}
		s.PendingSize = size
	case InputSellPercent:
		size, err := parseSize(ModeSell, ev.Text)
		if err != nil {
			return err
		}
		s.PendingSize = size
	default:
		return invalidf("input", "no input expected")
	}

	s.Input = InputNone
	s.PromptMessageID = 0

	return nil
}

func parseSize(mode Mode, text string) (*Size, *ValidationError) {
	if mode == ModeSell {
		value, err := ParsePercent(text)
		if err != nil {
			return nil, invalid("percent", err)
		}
		return &Size{Kind: SizePercent, Value: value}, nil
	}

	value, err := ParseAmount(text)
	if err != nil {
		return nil, invalid("amount", err)
	}
	return &Size{Kind: SizeAmount, Value: value}, nil
}
