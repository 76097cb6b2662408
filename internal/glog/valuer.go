// Package glog contains helpers for structured logging with log/slog.
package glog

import (
	"encoding/hex"
	"log/slog"
)

// Short wraps an identifier so it is logged as hex,
// abbreviated to its first 8 bytes.
type Short []byte

func (v Short) LogValue() slog.Value {
	if len(v) <= 8 {
		return slog.StringValue(hex.EncodeToString(v))
	}
	return slog.StringValue(hex.EncodeToString(v[:8]) + "…")
}
