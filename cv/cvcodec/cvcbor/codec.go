// Package cvcbor provides a [cvcodec.MarshalCodec] backed by CBOR.
package cvcbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gordian-engine/gadapter/cv/cvcodec"
	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

var _ cvcodec.MarshalCodec = MarshalCodec{}

// MarshalCodec is a [cvcodec.MarshalCodec] that
// translates cvconsensus values to and from CBOR arrays.
type MarshalCodec struct{}

type cborSignature struct {
	_ struct{} `cbor:",toarray"`

	Address   []byte
	Signature []byte
}

type cborDecided struct {
	_ struct{} `cbor:",toarray"`

	Height     uint64
	Round      uint32
	ValueID    []byte
	Signatures []cborSignature
	Value      []byte
}

type cborProposed struct {
	_ struct{} `cbor:",toarray"`

	Height     uint64
	Round      uint32
	ValidRound uint32
	Proposer   []byte
	Value      []byte
	ValueID    []byte
	Validity   bool
}

func (MarshalCodec) MarshalDecidedValue(dv cvconsensus.DecidedValue) ([]byte, error) {
	c := dv.Certificate
	cd := cborDecided{
		Height:  uint64(c.Height),
		Round:   uint32(c.Round),
		ValueID: c.ValueID,
		Value:   dv.Value,
	}
	if len(c.Signatures) > 0 {
		cd.Signatures = make([]cborSignature, len(c.Signatures))
		for i, s := range c.Signatures {
			cd.Signatures[i] = cborSignature{Address: s.Address, Signature: s.Signature}
		}
	}
	return cbor.Marshal(cd)
}

func (MarshalCodec) UnmarshalDecidedValue(b []byte, dv *cvconsensus.DecidedValue) error {
	var cd cborDecided
	if err := cbor.Unmarshal(b, &cd); err != nil {
		return fmt.Errorf("failed to unmarshal decided value: %w", err)
	}

	*dv = cvconsensus.DecidedValue{
		Certificate: cvconsensus.CommitCertificate{
			Height:  cvconsensus.Height(cd.Height),
			Round:   cvconsensus.Round(cd.Round),
			ValueID: cd.ValueID,
		},
		Value: cd.Value,
	}
	if len(cd.Signatures) > 0 {
		sigs := make([]cvconsensus.CommitSignature, len(cd.Signatures))
		for i, s := range cd.Signatures {
			sigs[i] = cvconsensus.CommitSignature{Address: s.Address, Signature: s.Signature}
		}
		dv.Certificate.Signatures = sigs
	}
	return nil
}

func (MarshalCodec) MarshalProposedValue(pv cvconsensus.ProposedValue) ([]byte, error) {
	return cbor.Marshal(cborProposed{
		Height:     uint64(pv.Height),
		Round:      uint32(pv.Round),
		ValidRound: uint32(pv.ValidRound),
		Proposer:   pv.Proposer,
		Value:      pv.Value,
		ValueID:    pv.ValueID,
		Validity:   pv.Validity,
	})
}

func (MarshalCodec) UnmarshalProposedValue(b []byte, pv *cvconsensus.ProposedValue) error {
	var cp cborProposed
	if err := cbor.Unmarshal(b, &cp); err != nil {
		return fmt.Errorf("failed to unmarshal proposed value: %w", err)
	}

	*pv = cvconsensus.ProposedValue{
		Height:     cvconsensus.Height(cp.Height),
		Round:      cvconsensus.Round(cp.Round),
		ValidRound: cvconsensus.Round(cp.ValidRound),
		Proposer:   cp.Proposer,
		Value:      cp.Value,
		ValueID:    cp.ValueID,
		Validity:   cp.Validity,
	}
	return nil
}
