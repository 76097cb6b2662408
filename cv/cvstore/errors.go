package cvstore

import (
	"fmt"
	"strings"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// DecidedValueConflictError is returned from [ValueStore.SaveDecidedValue]
// when a different certificate or value already exists at the height.
// The consensus engine never produces two certificates for one height,
// so this error indicates a serious programming bug.
type DecidedValueConflictError struct {
	Height cvconsensus.Height

	Existing, Got cvconsensus.ValueID
}

func (e DecidedValueConflictError) Error() string {
	return fmt.Sprintf(
		"refusing to overwrite decided value at height %d: have value %x, got %x",
		e.Height, e.Existing, e.Got,
	)
}

// MissingTableError is returned from [ValueStore.VerifyTables]
// when the backend lacks a required table or namespace.
type MissingTableError struct {
	Table string
}

func (e MissingTableError) Error() string {
	return fmt.Sprintf("required table %q is missing", e.Table)
}

// StoreError wraps any error a backend returns through a [Store].
// Which fields are set depends on Op.
type StoreError struct {
	Op string

	Height  cvconsensus.Height
	Round   cvconsensus.Round
	ValueID cvconsensus.ValueID

	// Whether Height, Round, and ValueID are meaningful for Op.
	HasHeight, HasRound, HasValueID bool

	Err error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.HasHeight {
		fmt.Fprintf(&b, " height=%d", e.Height)
	}
	if e.HasRound {
		fmt.Fprintf(&b, " round=%d", e.Round)
	}
	if e.HasValueID {
		fmt.Fprintf(&b, " value_id=%x", []byte(e.ValueID))
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
