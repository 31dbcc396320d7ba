package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// sessionStamp names files by the local session start, second resolution.
const sessionStamp = "20060102_150405"

// SessionFile returns <dir>/<app>.<stamp>.<ext> for a run started at start.
func SessionFile(dir, app string, start time.Time, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.%s", app, start.Format(sessionStamp), ext))
}
