// Package cvmsgpack provides a [cvcodec.MarshalCodec] backed by msgpack.
package cvmsgpack

import (
	"fmt"

	"github.com/gordian-engine/gadapter/cv/cvcodec"
	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/vmihailenco/msgpack/v4"
)

var _ cvcodec.MarshalCodec = MarshalCodec{}

// MarshalCodec is a [cvcodec.MarshalCodec] that
// translates cvconsensus values to and from msgpack.
type MarshalCodec struct{}

type mpSignature struct {
	_msgpack struct{} `msgpack:",asArray"`

	Address   []byte
	Signature []byte
}

type mpDecided struct {
	_msgpack struct{} `msgpack:",asArray"`

	Height     uint64
	Round      uint32
	ValueID    []byte
	Signatures []mpSignature
	Value      []byte
}

type mpProposed struct {
	_msgpack struct{} `msgpack:",asArray"`

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
	md := mpDecided{
		Height:  uint64(c.Height),
		Round:   uint32(c.Round),
		ValueID: c.ValueID,
		Value:   dv.Value,
	}
	if len(c.Signatures) > 0 {
		md.Signatures = make([]mpSignature, len(c.Signatures))
		for i, s := range c.Signatures {
			md.Signatures[i] = mpSignature{Address: s.Address, Signature: s.Signature}
		}
	}
	return msgpack.Marshal(&md)
}

func (MarshalCodec) UnmarshalDecidedValue(b []byte, dv *cvconsensus.DecidedValue) error {
	var md mpDecided
	if err := msgpack.Unmarshal(b, &md); err != nil {
		return fmt.Errorf("failed to unmarshal decided value: %w", err)
	}

	*dv = cvconsensus.DecidedValue{
		Certificate: cvconsensus.CommitCertificate{
			Height:  cvconsensus.Height(md.Height),
			Round:   cvconsensus.Round(md.Round),
			ValueID: md.ValueID,
		},
		Value: md.Value,
	}
	if len(md.Signatures) > 0 {
		sigs := make([]cvconsensus.CommitSignature, len(md.Signatures))
		for i, s := range md.Signatures {
			sigs[i] = cvconsensus.CommitSignature{Address: s.Address, Signature: s.Signature}
		}
		dv.Certificate.Signatures = sigs
	}
	return nil
}

func (MarshalCodec) MarshalProposedValue(pv cvconsensus.ProposedValue) ([]byte, error) {
	return msgpack.Marshal(&mpProposed{
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
	var mp mpProposed
	if err := msgpack.Unmarshal(b, &mp); err != nil {
		return fmt.Errorf("failed to unmarshal proposed value: %w", err)
	}

	*pv = cvconsensus.ProposedValue{
		Height:     cvconsensus.Height(mp.Height),
		Round:      cvconsensus.Round(mp.Round),
		ValidRound: cvconsensus.Round(mp.ValidRound),
		Proposer:   mp.Proposer,
		Value:      mp.Value,
		ValueID:    mp.ValueID,
		Validity:   mp.Validity,
	}
	return nil
}
