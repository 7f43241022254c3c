package session

// Screen names the view a step is showing; transitions are validated between screens.
type Screen string

const (
	ScreenMain               Screen = "main"
	ScreenMainAwaitingAmount Screen = "main_awaiting_amount"
	ScreenLimitSetup         Screen = "limit_setup"
	ScreenLimitAwaitTrigger  Screen = "limit_awaiting_trigger"
	ScreenLimitAwaitAmount   Screen = "limit_awaiting_amount"
	ScreenDCASetup           Screen = "dca_setup"
	ScreenDCAAwaitDuration   Screen = "dca_awaiting_duration"
	ScreenDCAAwaitInterval   Screen = "dca_awaiting_interval"
	ScreenDCAAwaitAmount     Screen = "dca_awaiting_amount"
)

// validTransitions lists the permitted moves besides staying put and returning to main.
var validTransitions = map[Screen][]Screen{
	ScreenMain: {
		ScreenLimitSetup,
		ScreenDCASetup,
		ScreenMainAwaitingAmount,
	},
	ScreenLimitSetup: {
		ScreenLimitAwaitTrigger,
		ScreenLimitAwaitAmount,
	},
	ScreenLimitAwaitTrigger: {
		ScreenLimitSetup,
		ScreenLimitAwaitAmount,
	},
	ScreenLimitAwaitAmount: {
		ScreenLimitSetup,
		ScreenLimitAwaitTrigger,
	},
	ScreenDCASetup: {
		ScreenDCAAwaitDuration,
		ScreenDCAAwaitInterval,
		ScreenDCAAwaitAmount,
	},
	ScreenDCAAwaitDuration: {
		ScreenDCASetup,
		ScreenDCAAwaitInterval,
		ScreenDCAAwaitAmount,
	},
	ScreenDCAAwaitInterval: {
		ScreenDCASetup,
		ScreenDCAAwaitDuration,
		ScreenDCAAwaitAmount,
	},
	ScreenDCAAwaitAmount: {
		ScreenDCASetup,
		ScreenDCAAwaitDuration,
		ScreenDCAAwaitInterval,
	},
}

// IsTransitionAllowed reports whether moving from one screen to another is valid.
func IsTransitionAllowed(from, to Screen) bool {
	if from == to || to == ScreenMain {
		return true
	}

	for _, screen := range validTransitions[from] {
		if screen == to {
			return true
		}
	}

	return false
}

// ScreenOf derives the screen from the step's flow and awaited input.
func ScreenOf(s *Step) Screen {
	if s == nil {
		return ScreenMain
	}

	switch s.Flow {
	case FlowLimit:
		switch s.Input {
		case InputLimitTriggerValue:
			return ScreenLimitAwaitTrigger
		case InputOrderAmount:
			return ScreenLimitAwaitAmount
		}
		return ScreenLimitSetup
	case FlowDCA:
		switch s.Input {
		case InputDCADuration:
			return ScreenDCAAwaitDuration
		case InputDCAInterval:
			return ScreenDCAAwaitInterval
		case InputOrderAmount:
			return ScreenDCAAwaitAmount
		}
		return ScreenDCASetup
	}

	if s.Input == InputBuyAmount || s.Input == InputSellPercent {
		return ScreenMainAwaitingAmount
	}
	return ScreenMain
}

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe screen transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}
