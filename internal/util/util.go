// Package util provides small string helpers shared by the command parsers.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs trims and unescapes every argument in place and returns data.
func CleanArgs(data []string) []string {
	for i, v := range data {
		data[i] = FixEscapeQuotes(TrimQuotes(strings.TrimSpace(v)))
	}
	return data
}

// StripComment drops everything from the first unquoted '#'.
func StripComment(line string) string {
	inQuote := false
	for i, r := range line {
		switch r {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}
