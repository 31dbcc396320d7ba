package core

// DispatchKind tells consumers what a ghost just did.
type DispatchKind uint8

const (
	// DispatchReset is the snap back to the recorded starting pose at countdown entry.
	DispatchReset DispatchKind = iota
	DispatchMove
	DispatchAbility
	DispatchDeath
)

func (k DispatchKind) String() string {
	switch k {
	case DispatchReset:
		return "reset"
	case DispatchMove:
		return "move"
	case DispatchAbility:
		return "ability"
	case DispatchDeath:
		return "death"
	default:
		return "unknown"
	}
}

// Dispatch is emitted by the player every time a ghost acts, so that
// animation, effects and other systems can react.
type Dispatch struct {
	Entity    EntityID
	Kind      DispatchKind
	Cycle     uint64
	Timestamp TimeStamp
	Pos       GridPos
	Ability   AbilityKind
	Target    *GridPos
}
