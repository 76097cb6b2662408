// Package cvcodec defines how key-value backends
// serialize consensus values into storage records.
package cvcodec

import (
	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// Marshaler serializes cvconsensus values to byte slices.
type Marshaler interface {
	MarshalDecidedValue(cvconsensus.DecidedValue) ([]byte, error)
	MarshalProposedValue(cvconsensus.ProposedValue) ([]byte, error)
}

// Unmarshaler deserializes byte slices into cvconsensus values.
type Unmarshaler interface {
	UnmarshalDecidedValue([]byte, *cvconsensus.DecidedValue) error
	UnmarshalProposedValue([]byte, *cvconsensus.ProposedValue) error
}

// MarshalCodec marshals and unmarshals cvconsensus values, producing byte slices.
type MarshalCodec interface {
	Marshaler
	Unmarshaler
}
