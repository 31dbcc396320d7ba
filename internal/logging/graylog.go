package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter opens a GELF UDP writer to addr. Records written to it are
// shipped to Graylog; pass it to Setup as a sink.
func NewGraylogWriter(addr string) (io.WriteCloser, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create gelf writer for %s: %w", addr, err)
	}
	w.Facility = InstrumentationName
	return w, nil
}
