package cvconfig

import (
	"fmt"
	"io"
	"log/slog"
)

// LogFormat selects the encoding of log records.
type LogFormat string

const (
	PlaintextFormat LogFormat = "plaintext"
	JSONFormat      LogFormat = "json"
)

// LoggingConfig controls the engine's log output.
type LoggingConfig struct {
	Level  slog.Level
	Format LogFormat
}

// NewHandler returns a slog.Handler writing to w in c's format and level.
// An empty format is treated as plaintext.
func (c LoggingConfig) NewHandler(w io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: c.Level}
	switch c.Format {
	case PlaintextFormat, "":
		return slog.NewTextHandler(w, opts), nil
	case JSONFormat:
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}
