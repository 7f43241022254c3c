package lifecycle

import "context"

// Stage orders shutdown hooks. Lower stages finish before higher ones start.
type Stage int

const (
	// StageIntake stops accepting updates.
	StageIntake Stage = iota
	// StageWorkers waits for scans and background loops.
	StageWorkers
	// StageStores closes connections the earlier stages used.
	StageStores
)

func (s Stage) String() string {
	switch s {
	case StageIntake:
		return "intake"
	case StageWorkers:
		return "workers"
	case StageStores:
		return "stores"
	default:
		return "unknown"
	}
}

// Hook describes a named shutdown hook.
type Hook struct {
	Name  string
	Stage Stage
	Fn    func(ctx context.Context) error
}
