package cvkv

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"runtime/trace"
	"slices"

	"github.com/gordian-engine/gadapter/cv/cvcodec"
	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvstore"
)

// Store is a [cvstore.ValueStore] over any ordered key-value [Provider].
//
// Decided values and proposals are encoded with the configured codec.
// Each proposal record is prefixed with a sequence number
// drawn from a counter in the meta namespace,
// which determines the order proposals are listed in.
type Store[R Reader, W ReadWriter] struct {
	p     Provider[R, W]
	codec cvcodec.MarshalCodec
}

var _ cvstore.ValueStore = (*Store[Reader, ReadWriter])(nil)

// NewStore returns a Store over p.
// The type parameters cannot be inferred from p;
// provider packages offer a NewValueStore helper that supplies them.
//
// NewStore does not create the namespaces; call [Store.CreateTables] before use.
func NewStore[R Reader, W ReadWriter](p Provider[R, W], codec cvcodec.MarshalCodec) *Store[R, W] {
	return &Store[R, W]{p: p, codec: codec}
}

// CreateTables writes the schema marker of every namespace.
// It is safe to call on a store that already has them.
func (s *Store[R, W]) CreateTables(ctx context.Context) error {
	return s.p.Update(ctx, func(w W) error {
		for _, ns := range Namespaces {
			if err := w.Set(schemaKey(ns), []byte{1}); err != nil {
				return fmt.Errorf("failed to create namespace %q: %w", ns, err)
			}
		}
		return nil
	})
}

func (s *Store[R, W]) VerifyTables(ctx context.Context) error {
	defer trace.StartRegion(ctx, "VerifyTables").End()

	return s.p.View(ctx, func(r R) error {
		for _, ns := range Namespaces {
			_, ok, err := r.Get(schemaKey(ns))
			if err != nil {
				return fmt.Errorf("failed to check namespace %q: %w", ns, err)
			}
			if !ok {
				return cvstore.MissingTableError{Table: ns}
			}
		}
		return nil
	})
}

func (s *Store[R, W]) MaxDecidedValueHeight(ctx context.Context) (cvconsensus.Height, bool, error) {
	defer trace.StartRegion(ctx, "MaxDecidedValueHeight").End()

	var (
		h  cvconsensus.Height
		ok bool
	)
	err := s.p.View(ctx, func(r R) error {
		b, found, err := r.Get(maxDecidedKey)
		if err != nil {
			return fmt.Errorf("failed to read max decided height: %w", err)
		}
		if !found {
			return nil
		}

		u, valid := getUint64(b)
		if !valid {
			return fmt.Errorf("corrupt max decided height record (%d bytes)", len(b))
		}
		h, ok = cvconsensus.Height(u), true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return h, ok, nil
}

func (s *Store[R, W]) LoadDecidedValue(ctx context.Context, h cvconsensus.Height) (cvconsensus.DecidedValue, bool, error) {
	defer trace.StartRegion(ctx, "LoadDecidedValue").End()

	var (
		dv cvconsensus.DecidedValue
		ok bool
	)
	err := s.p.View(ctx, func(r R) error {
		var err error
		dv, ok, err = s.getDecided(r, h)
		return err
	})
	if err != nil {
		return cvconsensus.DecidedValue{}, false, err
	}
	return dv, ok, nil
}

func (s *Store[R, W]) getDecided(r Reader, h cvconsensus.Height) (cvconsensus.DecidedValue, bool, error) {
	b, ok, err := r.Get(decidedKey(h))
	if err != nil {
		return cvconsensus.DecidedValue{}, false, fmt.Errorf("failed to read decided value: %w", err)
	}
	if !ok {
		return cvconsensus.DecidedValue{}, false, nil
	}

	var dv cvconsensus.DecidedValue
	if err := s.codec.UnmarshalDecidedValue(b, &dv); err != nil {
		return cvconsensus.DecidedValue{}, false, err
	}
	return dv, true, nil
}

func (s *Store[R, W]) SaveDecidedValue(ctx context.Context, cert cvconsensus.CommitCertificate, v cvconsensus.Value) error {
	defer trace.StartRegion(ctx, "SaveDecidedValue").End()

	dv := cvconsensus.DecidedValue{Certificate: cert, Value: v}
	enc, err := s.codec.MarshalDecidedValue(dv)
	if err != nil {
		return fmt.Errorf("failed to marshal decided value: %w", err)
	}

	return s.p.Update(ctx, func(w W) error {
		have, ok, err := s.getDecided(w, cert.Height)
		if err != nil {
			return err
		}
		if ok {
			if have.Equal(dv) {
				return nil
			}
			return cvstore.DecidedValueConflictError{
				Height:   cert.Height,
				Existing: have.Certificate.ValueID,
				Got:      cert.ValueID.Clone(),
			}
		}

		if err := w.Set(decidedKey(cert.Height), enc); err != nil {
			return fmt.Errorf("failed to write decided value: %w", err)
		}

		b, found, err := w.Get(maxDecidedKey)
		if err != nil {
			return fmt.Errorf("failed to read max decided height: %w", err)
		}
		if found {
			if u, valid := getUint64(b); valid && cvconsensus.Height(u) >= cert.Height {
				return nil
			}
		}
		if err := w.Set(maxDecidedKey, putUint64(uint64(cert.Height))); err != nil {
			return fmt.Errorf("failed to write max decided height: %w", err)
		}
		return nil
	})
}

type seqProposal struct {
	Seq uint64
	PV  cvconsensus.ProposedValue
}

func (s *Store[R, W]) decodeProposal(b []byte) (seqProposal, error) {
	if len(b) < 8 {
		return seqProposal{}, fmt.Errorf("corrupt proposal record (%d bytes)", len(b))
	}

	sp := seqProposal{Seq: binary.BigEndian.Uint64(b)}
	if err := s.codec.UnmarshalProposedValue(b[8:], &sp.PV); err != nil {
		return seqProposal{}, err
	}
	return sp, nil
}

func (s *Store[R, W]) LoadUndecidedProposals(ctx context.Context, h cvconsensus.Height, r cvconsensus.Round) ([]cvconsensus.ProposedValue, error) {
	defer trace.StartRegion(ctx, "LoadUndecidedProposals").End()

	var sps []seqProposal
	err := s.p.View(ctx, func(rd R) error {
		return rd.Scan(roundPrefix(h, r), func(_, val []byte) error {
			sp, err := s.decodeProposal(bytes.Clone(val))
			if err != nil {
				return err
			}
			sps = append(sps, sp)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan proposals: %w", err)
	}
	if len(sps) == 0 {
		return nil, nil
	}

	slices.SortFunc(sps, func(a, b seqProposal) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})

	pvs := make([]cvconsensus.ProposedValue, len(sps))
	for i, sp := range sps {
		pvs[i] = sp.PV
	}
	return pvs, nil
}

func (s *Store[R, W]) SaveUndecidedProposal(ctx context.Context, pv cvconsensus.ProposedValue) error {
	defer trace.StartRegion(ctx, "SaveUndecidedProposal").End()

	enc, err := s.codec.MarshalProposedValue(pv)
	if err != nil {
		return fmt.Errorf("failed to marshal proposed value: %w", err)
	}

	key := proposalKey(pv.Height, pv.Round, pv.ValueID)
	return s.p.Update(ctx, func(w W) error {
		var seq uint64

		// An existing entry keeps its sequence number.
		b, ok, err := w.Get(key)
		if err != nil {
			return fmt.Errorf("failed to read existing proposal: %w", err)
		}
		if ok {
			if len(b) < 8 {
				return fmt.Errorf("corrupt proposal record (%d bytes)", len(b))
			}
			seq = binary.BigEndian.Uint64(b)
		} else {
			b, found, err := w.Get(proposalSeqKey)
			if err != nil {
				return fmt.Errorf("failed to read proposal sequence: %w", err)
			}
			if found {
				u, valid := getUint64(b)
				if !valid {
					return fmt.Errorf("corrupt proposal sequence record (%d bytes)", len(b))
				}
				seq = u + 1
			}
			if err := w.Set(proposalSeqKey, putUint64(seq)); err != nil {
				return fmt.Errorf("failed to write proposal sequence: %w", err)
			}
		}

		rec := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(enc)), seq)
		rec = append(rec, enc...)
		if err := w.Set(key, rec); err != nil {
			return fmt.Errorf("failed to write proposal: %w", err)
		}
		return nil
	})
}

func (s *Store[R, W]) LoadUndecidedProposal(
	ctx context.Context,
	h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID,
) (cvconsensus.ProposedValue, bool, error) {
	defer trace.StartRegion(ctx, "LoadUndecidedProposal").End()

	var (
		pv cvconsensus.ProposedValue
		ok bool
	)
	err := s.p.View(ctx, func(rd R) error {
		b, found, err := rd.Get(proposalKey(h, r, id))
		if err != nil {
			return fmt.Errorf("failed to read proposal: %w", err)
		}
		if !found {
			return nil
		}

		sp, err := s.decodeProposal(b)
		if err != nil {
			return err
		}
		pv, ok = sp.PV, true
		return nil
	})
	if err != nil {
		return cvconsensus.ProposedValue{}, false, err
	}
	return pv, ok, nil
}
