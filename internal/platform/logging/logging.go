package logging

import (
	"io"

	hclog "github.com/hashicorp/go-hclog"
)

// New returns the root logger. Unknown levels fall back to warn.
func New(level string, output io.Writer) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "breathkit",
		Level:  lvl,
		Output: output,
	})
}

// Discard is used by tests and by callers that did not configure logging.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}
