package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(":RECORD:START:", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":RECORD:START:", Args: []string{"1", "7"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(":TIMELINE:SAVE:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	// Dispatch 3 events
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: ":TIMELINE:SAVE:"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	// Wait for processing
	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	d.Register(":TIMELINE:SAVE:", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Dispatch(Event{Command: ":TIMELINE:SAVE:"}) // being processed
	d.Dispatch(Event{Command: ":TIMELINE:SAVE:"}) // queued
	d.Dispatch(Event{Command: ":TIMELINE:SAVE:"}) // queued

	// This should be dropped
	_, err := d.Dispatch(Event{Command: ":TIMELINE:SAVE:"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
	d.Close()
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(":TIMELINE:SAVE:", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(Event{Command: ":TIMELINE:SAVE:"})
	// Second event fills the queue
	d.Dispatch(Event{Command: ":TIMELINE:SAVE:"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: ":TIMELINE:SAVE:"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
	<-done
	d.Close()
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":RECORD:FINALIZE:", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: ":RECORD:FINALIZE:", Args: []string{"a", "b"}})

	// Give time for logging
	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":RECORD:CANCEL:", func(e Event) (any, error) {
		return nil, fmt.Errorf("entity 7: not recording")
	}, Logged())

	d.Dispatch(Event{Command: ":RECORD:CANCEL:"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":PLAYBACK:START:", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":PLAYBACK:START:") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler(":PLAYBACK:SEEK:") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register(":TIMELINE:SAVE:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: ":TIMELINE:SAVE:"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "queued" {
		t.Errorf("expected 'queued', got %v", result)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_CloseDrainsBuffered(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register(":TIMELINE:SAVE:", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		if _, err := d.Dispatch(Event{Command: ":TIMELINE:SAVE:"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	d.Close()

	if processed.Load() != 5 {
		t.Errorf("expected 5 processed after Close, got %d", processed.Load())
	}

	_, err := d.Dispatch(Event{Command: ":TIMELINE:SAVE:"})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// second Close is a no-op
	d.Close()
}

func TestDispatcher_BufferedErrorLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":TIMELINE:SAVE:", func(e Event) (any, error) {
		return nil, fmt.Errorf("no published timeline")
	}, Buffered(1))

	if _, err := d.Dispatch(Event{Command: ":TIMELINE:SAVE:"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.Close()

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) != 1 || !strings.HasPrefix(logger.messages[0], "ERROR: buffered event failed") {
		t.Errorf("expected one buffered failure log, got %v", logger.messages)
	}
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	noop := func(e Event) (any, error) { return nil, nil }
	d.Register(":RECORD:START:", noop)
	d.Register(":PLAYBACK:START:", noop)
	d.Register(":ENTITY:SPAWN:", noop)

	got := d.Commands()
	want := []string{":ENTITY:SPAWN:", ":PLAYBACK:START:", ":RECORD:START:"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDispatcher_DispatchStampsTime(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var seen time.Time
	d.Register(":RECORD:STAMP:", func(e Event) (any, error) {
		seen = e.Timestamp
		return nil, nil
	})

	if _, err := d.Dispatch(Event{Command: ":RECORD:STAMP:"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.IsZero() {
		t.Error("expected dispatch to stamp the event time")
	}
}
