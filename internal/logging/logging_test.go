package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionFile(t *testing.T) {
	start := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	assert.Equal(t,
		filepath.Join("ghostlogs", "ghostloop.20260212_213836.log"),
		SessionFile("ghostlogs", "ghostloop", start, "log"))
	assert.Equal(t,
		filepath.Join("ghostlogs", "ghostloop.20260212_213836.lp.gz"),
		SessionFile("./ghostlogs", "ghostloop", start, "lp.gz"))
}

func TestNewGraylogWriter(t *testing.T) {
	w, err := NewGraylogWriter("127.0.0.1:12201")
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	assert.NoError(t, w.Close())
}
