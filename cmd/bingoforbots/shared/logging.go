package shared

import (
	"fmt"
	"os"

	log "github.com/charmbracelet/log"
)

// SetupLogger builds the process logger. When path is non-empty the log
// is appended to that file instead of stderr; the file stays open for
// the lifetime of the process.
func SetupLogger(level, path string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	out := os.Stderr
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}

	return log.NewWithOptions(out, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	}), nil
}
