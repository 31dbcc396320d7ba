package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"hello"`, "hello"},
		{`hello`, "hello"},
		{`""`, ""},
		{`"AutoShot`, "AutoShot"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, TrimQuotes(tt.input), tt.input)
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	assert.Equal(t, `say "hi"`, FixEscapeQuotes(`say ""hi""`))
	assert.Equal(t, "plain", FixEscapeQuotes("plain"))
}

func TestCleanArgs(t *testing.T) {
	data := []string{` "north" `, `7`, `""`}
	got := CleanArgs(data)

	assert.Equal(t, []string{"north", "7", ""}, got)
	assert.Equal(t, "north", data[0], "cleans in place")
}

func TestStripComment(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0.5 :RECORD:START: north 1 # begin", "0.5 :RECORD:START: north 1 "},
		{"# whole line", ""},
		{`1 :RECORD:STAMP: north 1 ability "Shot#2"`, `1 :RECORD:STAMP: north 1 ability "Shot#2"`},
		{"no comment", "no comment"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, StripComment(tt.input), tt.input)
	}
}
