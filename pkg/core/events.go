// pkg/core/events.go
package core

// EventType is the closed set of things a timeline can record.
// Only Movement, Ability and Death implement it.
type EventType interface {
	eventType()
	// Variant returns the wire name of the event kind.
	Variant() string
}

// Movement moves the entity to a tile.
type Movement struct {
	To GridPos
}

// Ability activates an ability, optionally targeted at a tile.
// A nil Target means the ability is untargeted.
type Ability struct {
	Kind   AbilityKind
	Target *GridPos
}

// Death marks the entity dead at the event's timestamp.
type Death struct{}

func (Movement) eventType() {}
func (Ability) eventType()  {}
func (Death) eventType()    {}

func (Movement) Variant() string { return "movement" }
func (Ability) Variant() string  { return "ability" }
func (Death) Variant() string    { return "death" }

// NewAbility builds an Ability event, copying the target so the caller's
// pointer is never aliased by a timeline.
func NewAbility(kind AbilityKind, target *GridPos) Ability {
	if target != nil {
		t := *target
		target = &t
	}
	return Ability{Kind: kind, Target: target}
}

// TimelineEvent is a single recorded event.
type TimelineEvent struct {
	Timestamp TimeStamp
	Type      EventType
}
