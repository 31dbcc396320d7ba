package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/util"
	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// ScriptLine is one scheduled command of a simulation script.
type ScriptLine struct {
	Line    int
	At      core.TimeStamp // seconds since the simulation started
	Command string
	Args    []string
}

// ParseScript reads lines of the form
//
//	<seconds> <command> <args...>   # comment
//
// Blank lines and comments are skipped. Lines must be in non-decreasing time
// order.
func ParseScript(r io.Reader) ([]ScriptLine, error) {
	var out []ScriptLine
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		fields := splitFields(util.StripComment(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected <seconds> <command>", n)
		}

		at, err := ParseTimeStamp(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if at < 0 {
			return nil, fmt.Errorf("line %d: negative time %s", n, at)
		}
		if len(out) > 0 && at < out[len(out)-1].At {
			return nil, fmt.Errorf("line %d: time %s before previous line", n, at)
		}

		out = append(out, ScriptLine{Line: n, At: at, Command: fields[1], Args: fields[2:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return out, nil
}

// splitFields splits on whitespace, keeping double-quoted runs together.
func splitFields(line string) []string {
	var fields []string
	var b strings.Builder
	inQuote := false
	flush := func() {
		if b.Len() > 0 {
			fields = append(fields, b.String())
			b.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case !inQuote && (r == ' ' || r == '\t'):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return fields
}
