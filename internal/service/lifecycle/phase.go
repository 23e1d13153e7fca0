package lifecycle

// Phase is a step of an auto-update run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseChecking
	PhaseNoOp
	PhaseReconciling
	PhasePersisting
	PhaseSchedulingReminders
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseChecking:
		return "checking"
	case PhaseNoOp:
		return "no_op"
	case PhaseReconciling:
		return "reconciling"
	case PhasePersisting:
		return "persisting"
	case PhaseSchedulingReminders:
		return "scheduling_reminders"
	default:
		return "unknown"
	}
}

// next lists the allowed successors of each phase.
var next = map[Phase][]Phase{
	PhaseIdle:                {PhaseChecking},
	PhaseChecking:            {PhaseNoOp, PhaseReconciling, PhaseIdle},
	PhaseNoOp:                {PhaseIdle},
	PhaseReconciling:         {PhasePersisting},
	PhasePersisting:          {PhaseSchedulingReminders, PhaseIdle},
	PhaseSchedulingReminders: {PhaseIdle},
}

// CanTransition reports whether to directly follows from.
func CanTransition(from, to Phase) bool {
	for _, p := range next[from] {
		if p == to {
			return true
		}
	}
	return false
}
