package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }
func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler { return f }
func (f failingHandler) WithGroup(string) slog.Handler { return f }

func TestMultiHandler_FailingSinkDoesNotBlockOthers(t *testing.T) {
	var text bytes.Buffer
	h := NewMultiHandler(nil, failingHandler{}, slog.NewTextHandler(&text, nil))

	logger := slog.New(h).With("arena", "north").WithGroup("ghost")
	logger.Info("replay", "entity", 4)

	assert.Len(t, h.handlers, 2)
	assert.Contains(t, text.String(), "arena=north ghost.entity=4")
}

func TestMultiHandler_EnabledByAnyHandler(t *testing.T) {
	ctx := context.Background()
	info := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelError))
	assert.False(t, NewMultiHandler(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, NewMultiHandler(info, debug).Enabled(ctx, slog.LevelDebug))
}
