// Package parser turns string command arguments into typed timeline values.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/util"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Scripted input often serializes whole numbers as floats.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// EntityRef addresses one entity in one arena.
type EntityRef struct {
	Arena  string
	Entity core.EntityID
}

// RecordEvent is a parsed :RECORD:EVENT: command.
type RecordEvent struct {
	EntityRef
	Timestamp core.TimeStamp
	Type      core.EventType
}

// StampEvent is a parsed :RECORD:STAMP: command.
type StampEvent struct {
	EntityRef
	Type core.EventType
}

// Spawn is a parsed :ENTITY:SPAWN: command.
type Spawn struct {
	EntityRef
	Pos core.GridPos
}

// ParseEntityRef parses [arena, entity, ...].
func ParseEntityRef(data []string) (EntityRef, error) {
	var result EntityRef
	data = util.CleanArgs(data)

	if len(data) < 2 {
		return result, fmt.Errorf("insufficient data fields: got %d, need 2", len(data))
	}
	if data[0] == "" {
		return result, fmt.Errorf("empty arena id")
	}
	result.Arena = data[0]

	id, err := parseUintFromFloat(data[1])
	if err != nil {
		return result, fmt.Errorf("error parsing entity id: %w", err)
	}
	result.Entity = core.EntityID(id)
	return result, nil
}

// ParseTimeStamp parses seconds. Range checks are left to the recorder so
// that out-of-bounds events are reported the same way however they arrive.
func ParseTimeStamp(s string) (core.TimeStamp, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing timestamp: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("error parsing timestamp: %q is not finite", s)
	}
	return core.TimeStamp(f), nil
}

// ParseGridPos parses [col, row].
func ParseGridPos(data []string) (core.GridPos, error) {
	if len(data) < 2 {
		return core.GridPos{}, fmt.Errorf("insufficient grid fields: got %d, need 2", len(data))
	}
	col, err := parseIntFromFloat(data[0])
	if err != nil {
		return core.GridPos{}, fmt.Errorf("error parsing col: %w", err)
	}
	row, err := parseIntFromFloat(data[1])
	if err != nil {
		return core.GridPos{}, fmt.Errorf("error parsing row: %w", err)
	}
	return core.GridPos{Col: int(col), Row: int(row)}, nil
}

// ParseEventType parses one of
//
//	move <col> <row>
//	ability <kind> [<col> <row>]
//	death
func ParseEventType(data []string) (core.EventType, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("missing event kind")
	}

	switch kind := strings.ToLower(data[0]); kind {
	case "move", "movement":
		pos, err := ParseGridPos(data[1:])
		if err != nil {
			return nil, fmt.Errorf("move: %w", err)
		}
		return core.Movement{To: pos}, nil

	case "ability":
		if len(data) < 2 || data[1] == "" {
			return nil, fmt.Errorf("ability: missing ability kind")
		}
		var target *core.GridPos
		switch len(data) {
		case 2:
		case 4:
			pos, err := ParseGridPos(data[2:])
			if err != nil {
				return nil, fmt.Errorf("ability: %w", err)
			}
			target = &pos
		default:
			return nil, fmt.Errorf("ability: expected kind and optional col row, got %d fields", len(data)-1)
		}
		return core.NewAbility(core.AbilityKind(data[1]), target), nil

	case "death":
		return core.Death{}, nil

	default:
		return nil, fmt.Errorf("unknown event kind: %s", data[0])
	}
}

// ParseRecordEvent parses [arena, entity, ts, kind, ...].
func ParseRecordEvent(data []string) (RecordEvent, error) {
	var result RecordEvent

	ref, err := ParseEntityRef(data)
	if err != nil {
		return result, err
	}
	result.EntityRef = ref

	if len(data) < 4 {
		return result, fmt.Errorf("insufficient data fields: got %d, need 4", len(data))
	}
	result.Timestamp, err = ParseTimeStamp(data[2])
	if err != nil {
		return result, err
	}
	result.Type, err = ParseEventType(data[3:])
	if err != nil {
		return result, err
	}
	return result, nil
}

// ParseStampEvent parses [arena, entity, kind, ...].
func ParseStampEvent(data []string) (StampEvent, error) {
	var result StampEvent

	ref, err := ParseEntityRef(data)
	if err != nil {
		return result, err
	}
	result.EntityRef = ref

	result.Type, err = ParseEventType(data[2:])
	if err != nil {
		return result, err
	}
	return result, nil
}

// ParseSpawn parses [arena, entity, col, row].
func ParseSpawn(data []string) (Spawn, error) {
	var result Spawn

	ref, err := ParseEntityRef(data)
	if err != nil {
		return result, err
	}
	result.EntityRef = ref

	result.Pos, err = ParseGridPos(data[2:])
	if err != nil {
		return result, err
	}
	return result, nil
}
