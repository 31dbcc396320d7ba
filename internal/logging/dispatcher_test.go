package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/matthewharwood/arenic-bevy-sub009/internal/dispatcher"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestDispatcherLogger_LoggedCommand(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	d, err := dispatcher.New(NewDispatcherLogger(logger))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer d.Close()

	d.Register(":RECORD:START:", func(dispatcher.Event) (any, error) { return "ok", nil }, dispatcher.Logged())
	d.Register(":PLAYBACK:START:", func(dispatcher.Event) (any, error) {
		return nil, errors.New("no published timeline")
	}, dispatcher.Logged())

	if _, err := d.Dispatch(dispatcher.Event{Command: ":RECORD:START:", Args: []string{"1"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.Dispatch(dispatcher.Event{Command: ":PLAYBACK:START:"}); err == nil {
		t.Fatal("expected error")
	}

	recs := decodeLines(t, &buf)
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d: %s", len(recs), buf.String())
	}

	if recs[0]["level"] != "DEBUG" || recs[0]["msg"] != "handling event" {
		t.Errorf("unexpected first record: %v", recs[0])
	}
	if recs[0]["command"] != ":RECORD:START:" || recs[0]["args"] != float64(1) {
		t.Errorf("key/values not passed through: %v", recs[0])
	}
	if recs[1]["msg"] != "event complete" {
		t.Errorf("expected completion record, got %v", recs[1])
	}

	failed := recs[3]
	if failed["level"] != "ERROR" || failed["msg"] != "event failed" {
		t.Errorf("unexpected failure record: %v", failed)
	}
	if failed["command"] != ":PLAYBACK:START:" || failed["error"] != "no published timeline" {
		t.Errorf("failure fields missing: %v", failed)
	}
}

func TestDispatcherLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	dl.Debug("handling event", "command", ":PLAYBACK:STOP:")
	dl.Info("registered", "command", ":PLAYBACK:STOP:")

	recs := decodeLines(t, &buf)
	if len(recs) != 1 || recs[0]["msg"] != "registered" {
		t.Errorf("expected only the info record, got %s", buf.String())
	}
}
