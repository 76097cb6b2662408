package cvconsensus

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashScheme determines the ValueID of a Value.
type HashScheme interface {
	// ValueID calculates the identifier of v.
	// Two values with identical content must produce identical IDs.
	ValueID(v Value) (ValueID, error)
}

// Blake2bHashScheme is a [HashScheme] whose value IDs
// are the 32-byte blake2b digest of the value.
type Blake2bHashScheme struct{}

func (Blake2bHashScheme) ValueID(v Value) (ValueID, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new blake2b hasher: %w", err)
	}

	_, _ = hasher.Write(v)
	return hasher.Sum(nil), nil
}

// NewProposedValue returns a ProposedValue for v
// with its ValueID calculated through hs.
func NewProposedValue(
	hs HashScheme,
	height Height, round, validRound Round,
	proposer []byte,
	v Value,
) (ProposedValue, error) {
	id, err := hs.ValueID(v)
	if err != nil {
		return ProposedValue{}, fmt.Errorf("failed to calculate value ID: %w", err)
	}

	return ProposedValue{
		Height:     height,
		Round:      round,
		ValidRound: validRound,
		Proposer:   proposer,
		Value:      v,
		ValueID:    id,
		Validity:   true,
	}, nil
}
