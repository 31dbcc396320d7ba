package core

import (
	"encoding/json"
	"fmt"
)

// eventJSON is the wire form of a TimelineEvent.
type eventJSON struct {
	T       TimeStamp   `json:"t"`
	Kind    string      `json:"kind"`
	To      *GridPos    `json:"to,omitempty"`
	Ability AbilityKind `json:"ability,omitempty"`
	Target  *GridPos    `json:"target,omitempty"`
}

// MarshalJSON encodes the event with an explicit kind tag.
func (e TimelineEvent) MarshalJSON() ([]byte, error) {
	out := eventJSON{T: e.Timestamp}
	switch ev := e.Type.(type) {
	case Movement:
		out.Kind = ev.Variant()
		to := ev.To
		out.To = &to
	case Ability:
		out.Kind = ev.Variant()
		out.Ability = ev.Kind
		out.Target = ev.Target
	case Death:
		out.Kind = ev.Variant()
	case nil:
		return nil, fmt.Errorf("event at %s has no type", e.Timestamp)
	default:
		return nil, fmt.Errorf("unsupported event type %T", e.Type)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an event, rejecting unknown kinds.
func (e *TimelineEvent) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	switch in.Kind {
	case "movement":
		if in.To == nil {
			return fmt.Errorf("movement event at %s has no destination", in.T)
		}
		e.Type = Movement{To: *in.To}
	case "ability":
		if in.Ability == "" {
			return fmt.Errorf("ability event at %s has no ability", in.T)
		}
		e.Type = NewAbility(in.Ability, in.Target)
	case "death":
		e.Type = Death{}
	default:
		return fmt.Errorf("unknown event kind %q", in.Kind)
	}
	e.Timestamp = in.T
	return nil
}
