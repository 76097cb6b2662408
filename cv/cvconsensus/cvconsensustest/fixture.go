package cvconsensustest

import (
	"fmt"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// Fixture produces deterministic consensus values for tests.
type Fixture struct {
	HashScheme cvconsensus.HashScheme

	// Number of signatures to include in generated commit certificates.
	NSignatures int
}

// NewFixture returns a Fixture using the blake2b hash scheme
// and three signatures per certificate.
func NewFixture() *Fixture {
	return &Fixture{
		HashScheme:  cvconsensus.Blake2bHashScheme{},
		NSignatures: 3,
	}
}

// ValueID returns the ID of v according to f's hash scheme,
// panicking on failure.
func (f *Fixture) ValueID(v cvconsensus.Value) cvconsensus.ValueID {
	id, err := f.HashScheme.ValueID(v)
	if err != nil {
		panic(fmt.Errorf("failed to calculate value ID: %w", err))
	}
	return id
}

// ProposedValue returns a valid proposal for payload at the given height and round,
// from a proposer named after the round.
func (f *Fixture) ProposedValue(h cvconsensus.Height, r cvconsensus.Round, payload string) cvconsensus.ProposedValue {
	pv, err := cvconsensus.NewProposedValue(
		f.HashScheme,
		h, r, cvconsensus.NilRound,
		[]byte(fmt.Sprintf("proposer-%d", r)),
		cvconsensus.Value(payload),
	)
	if err != nil {
		panic(err)
	}
	return pv
}

// CommitCertificate returns a certificate for v at the given height and round.
// The signatures are placeholders and are not verifiable.
func (f *Fixture) CommitCertificate(h cvconsensus.Height, r cvconsensus.Round, v cvconsensus.Value) cvconsensus.CommitCertificate {
	sigs := make([]cvconsensus.CommitSignature, f.NSignatures)
	for i := range sigs {
		sigs[i] = cvconsensus.CommitSignature{
			Address:   []byte(fmt.Sprintf("val%d", i)),
			Signature: []byte(fmt.Sprintf("sig/%d/%d/%d", h, r, i)),
		}
	}

	return cvconsensus.CommitCertificate{
		Height:     h,
		Round:      r,
		ValueID:    f.ValueID(v),
		Signatures: sigs,
	}
}

// DecidedValue returns a decided value for payload at the given height and round.
func (f *Fixture) DecidedValue(h cvconsensus.Height, r cvconsensus.Round, payload string) cvconsensus.DecidedValue {
	v := cvconsensus.Value(payload)
	return cvconsensus.DecidedValue{
		Certificate: f.CommitCertificate(h, r, v),
		Value:       v,
	}
}
