package cvconsensus

import (
	"bytes"
	"encoding/hex"
	"math"
	"slices"
)

// Height is the sequential slot index being agreed upon.
type Height uint64

// Round is a voting attempt within a single height.
// Rounds restart at zero for every new height.
type Round uint32

// NilRound is used as the ValidRound of a proposal
// that was not previously locked in any round.
const NilRound Round = math.MaxUint32

// Value is the application payload agreed upon by consensus.
type Value []byte

// ValueID is the content-derived identifier of a [Value],
// as calculated by a [HashScheme].
type ValueID []byte

func (id ValueID) String() string {
	return hex.EncodeToString(id)
}

// Clone returns a copy of id that does not share its backing array.
func (id ValueID) Clone() ValueID {
	return bytes.Clone(id)
}

// Equal reports whether id and other hold the same bytes.
func (id ValueID) Equal(other ValueID) bool {
	return bytes.Equal(id, other)
}

// ProposalKey uniquely identifies an undecided proposal within the store.
type ProposalKey struct {
	Height  Height
	Round   Round
	ValueID string
}

// ProposedValue is a candidate value observed in a particular height and round.
type ProposedValue struct {
	Height Height
	Round  Round

	// The round in which the proposer last saw a polka for this value,
	// or NilRound.
	ValidRound Round

	// Opaque proposer address.
	Proposer []byte

	Value   Value
	ValueID ValueID

	// Whether the application considered the value valid.
	Validity bool
}

// Key returns the (height, round, value ID) triple identifying pv.
func (pv ProposedValue) Key() ProposalKey {
	return ProposalKey{
		Height:  pv.Height,
		Round:   pv.Round,
		ValueID: string(pv.ValueID),
	}
}

// Clone returns a deep copy of pv.
func (pv ProposedValue) Clone() ProposedValue {
	pv.Proposer = bytes.Clone(pv.Proposer)
	pv.Value = bytes.Clone(pv.Value)
	pv.ValueID = bytes.Clone(pv.ValueID)
	return pv
}

// Equal reports whether pv and other have identical field values.
// Nil and empty byte slices are considered equal.
func (pv ProposedValue) Equal(other ProposedValue) bool {
	return pv.Height == other.Height &&
		pv.Round == other.Round &&
		pv.ValidRound == other.ValidRound &&
		pv.Validity == other.Validity &&
		bytes.Equal(pv.Proposer, other.Proposer) &&
		bytes.Equal(pv.Value, other.Value) &&
		bytes.Equal(pv.ValueID, other.ValueID)
}

// CommitSignature is a single validator's signature within a [CommitCertificate].
type CommitSignature struct {
	Address   []byte
	Signature []byte
}

// CommitCertificate is the quorum proof that ValueID was decided
// at Height, in Round.
type CommitCertificate struct {
	Height  Height
	Round   Round
	ValueID ValueID

	Signatures []CommitSignature
}

// Clone returns a deep copy of c.
func (c CommitCertificate) Clone() CommitCertificate {
	c.ValueID = bytes.Clone(c.ValueID)
	if c.Signatures != nil {
		sigs := make([]CommitSignature, len(c.Signatures))
		for i, s := range c.Signatures {
			sigs[i] = CommitSignature{
				Address:   bytes.Clone(s.Address),
				Signature: bytes.Clone(s.Signature),
			}
		}
		c.Signatures = sigs
	}
	return c
}

// Equal reports whether c and other describe the same certificate,
// including the order of signatures.
func (c CommitCertificate) Equal(other CommitCertificate) bool {
	if c.Height != other.Height || c.Round != other.Round || !c.ValueID.Equal(other.ValueID) {
		return false
	}

	return slices.EqualFunc(c.Signatures, other.Signatures, func(a, b CommitSignature) bool {
		return bytes.Equal(a.Address, b.Address) && bytes.Equal(a.Signature, b.Signature)
	})
}

// DecidedValue is the finalized value at a height, along with its certificate.
// At most one DecidedValue exists for any height.
type DecidedValue struct {
	Certificate CommitCertificate
	Value       Value
}

// Height is shorthand for dv.Certificate.Height.
func (dv DecidedValue) Height() Height {
	return dv.Certificate.Height
}

// Clone returns a deep copy of dv.
func (dv DecidedValue) Clone() DecidedValue {
	return DecidedValue{
		Certificate: dv.Certificate.Clone(),
		Value:       bytes.Clone(dv.Value),
	}
}

func (dv DecidedValue) Equal(other DecidedValue) bool {
	return dv.Certificate.Equal(other.Certificate) && bytes.Equal(dv.Value, other.Value)
}
