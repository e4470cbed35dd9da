package pkg

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// LogWriter tees log lines to several sinks. A failing sink (a full disk
// under the rotated file, say) never keeps the line from the others.
type LogWriter struct {
	sinks []io.Writer
}

func NewLogWriter(sinks ...io.Writer) *LogWriter {
	return &LogWriter{sinks: sinks}
}

// Write reports len(p) once any sink took the line, plus the combined
// errors of the sinks that failed.
func (lw *LogWriter) Write(p []byte) (int, error) {
	var (
		errs    error
		written bool
	)
	for i, sink := range lw.sinks {
		if _, err := sink.Write(p); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("log sink %d: %w", i, err))
			continue
		}
		written = true
	}

	if !written {
		return 0, errs
	}
	return len(p), errs
}
