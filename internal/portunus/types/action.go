package types

// Action is the effect a schedule hit has on a door.
type Action int

const (
	ActionNone       Action = 0
	ActionSilentOpen Action = 1
	ActionPulse      Action = 2
	ActionReverse    Action = 3
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionSilentOpen:
		return "silent_open"
	case ActionPulse:
		return "pulse"
	case ActionReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	return a >= ActionNone && a <= ActionReverse
}
