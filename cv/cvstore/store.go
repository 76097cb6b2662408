package cvstore

import (
	"context"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// Store is the caller-facing handle to a consensus value backend.
//
// The zero value is not usable; create one with [NewStore].
// A Store holds only a reference to its backend,
// so copying a Store is cheap and every copy reads and writes the same data.
// Store adds no locking; consistency comes from the backend's transactions.
//
// Every non-nil backend error is wrapped in a [*StoreError]
// identifying the operation and key.
// Use [errors.As] or [errors.Is] to inspect the underlying cause.
type Store struct {
	vs ValueStore
}

// Store satisfies ValueStore itself, so it can be handed to code
// that accepts the interface.
var _ ValueStore = Store{}

// NewStore returns a Store backed by vs.
// If vs is already a Store, it is returned unchanged.
func NewStore(vs ValueStore) Store {
	if vs == nil {
		panic("BUG: NewStore called with nil ValueStore")
	}

	if s, ok := vs.(Store); ok {
		return s
	}

	return Store{vs: vs}
}

// String does not expose the backend.
func (s Store) String() string {
	return "cvstore.Store"
}

func (s Store) MaxDecidedValueHeight(ctx context.Context) (cvconsensus.Height, bool, error) {
	h, ok, err := s.vs.MaxDecidedValueHeight(ctx)
	if err != nil {
		return 0, false, &StoreError{Op: "MaxDecidedValueHeight", Err: err}
	}
	return h, ok, nil
}

func (s Store) LoadDecidedValue(ctx context.Context, h cvconsensus.Height) (cvconsensus.DecidedValue, bool, error) {
	dv, ok, err := s.vs.LoadDecidedValue(ctx, h)
	if err != nil {
		return cvconsensus.DecidedValue{}, false, &StoreError{
			Op:     "LoadDecidedValue",
			Height: h, HasHeight: true,
			Err: err,
		}
	}
	return dv, ok, nil
}

func (s Store) SaveDecidedValue(ctx context.Context, cert cvconsensus.CommitCertificate, v cvconsensus.Value) error {
	if err := s.vs.SaveDecidedValue(ctx, cert, v); err != nil {
		return &StoreError{
			Op:     "SaveDecidedValue",
			Height: cert.Height, HasHeight: true,
			Round: cert.Round, HasRound: true,
			ValueID: cert.ValueID, HasValueID: true,
			Err: err,
		}
	}
	return nil
}

func (s Store) LoadUndecidedProposals(ctx context.Context, h cvconsensus.Height, r cvconsensus.Round) ([]cvconsensus.ProposedValue, error) {
	pvs, err := s.vs.LoadUndecidedProposals(ctx, h, r)
	if err != nil {
		return nil, &StoreError{
			Op:     "LoadUndecidedProposals",
			Height: h, HasHeight: true,
			Round: r, HasRound: true,
			Err: err,
		}
	}
	return pvs, nil
}

func (s Store) SaveUndecidedProposal(ctx context.Context, pv cvconsensus.ProposedValue) error {
	if err := s.vs.SaveUndecidedProposal(ctx, pv); err != nil {
		return &StoreError{
			Op:     "SaveUndecidedProposal",
			Height: pv.Height, HasHeight: true,
			Round: pv.Round, HasRound: true,
			ValueID: pv.ValueID, HasValueID: true,
			Err: err,
		}
	}
	return nil
}

func (s Store) LoadUndecidedProposal(
	ctx context.Context,
	h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID,
) (cvconsensus.ProposedValue, bool, error) {
	pv, ok, err := s.vs.LoadUndecidedProposal(ctx, h, r, id)
	if err != nil {
		return cvconsensus.ProposedValue{}, false, &StoreError{
			Op:     "LoadUndecidedProposal",
			Height: h, HasHeight: true,
			Round: r, HasRound: true,
			ValueID: id, HasValueID: true,
			Err: err,
		}
	}
	return pv, ok, nil
}

func (s Store) VerifyTables(ctx context.Context) error {
	if err := s.vs.VerifyTables(ctx); err != nil {
		return &StoreError{Op: "VerifyTables", Err: err}
	}
	return nil
}
