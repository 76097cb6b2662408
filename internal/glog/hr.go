package glog

import (
	"log/slog"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// HR returns a copy of log that includes fields for the given height and round.
func HR(log *slog.Logger, h cvconsensus.Height, r cvconsensus.Round) *slog.Logger {
	return log.With("height", uint64(h), "round", uint32(r))
}
