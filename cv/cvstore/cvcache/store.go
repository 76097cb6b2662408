// Package cvcache wraps a [cvstore.ValueStore] with an in-memory cache of decided values.
package cvcache

import (
	"context"
	"fmt"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is a read-through cache of decided values in front of another ValueStore.
//
// A decided value never changes once saved,
// so cached entries are never invalidated.
// Only hits are cached; an undecided height is always re-checked in the inner store.
// Proposals and the max height pass straight through.
type Store struct {
	inner cvstore.ValueStore

	decided *lru.Cache[cvconsensus.Height, cvconsensus.DecidedValue]
}

var _ cvstore.ValueStore = (*Store)(nil)

// NewStore returns a Store holding up to size decided values.
func NewStore(inner cvstore.ValueStore, size int) (*Store, error) {
	c, err := lru.New[cvconsensus.Height, cvconsensus.DecidedValue](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create decided value cache: %w", err)
	}

	return &Store{inner: inner, decided: c}, nil
}

// Len reports the number of cached decided values.
func (s *Store) Len() int {
	return s.decided.Len()
}

func (s *Store) MaxDecidedValueHeight(ctx context.Context) (cvconsensus.Height, bool, error) {
	return s.inner.MaxDecidedValueHeight(ctx)
}

func (s *Store) LoadDecidedValue(ctx context.Context, h cvconsensus.Height) (cvconsensus.DecidedValue, bool, error) {
	if dv, ok := s.decided.Get(h); ok {
		return dv.Clone(), true, nil
	}

	dv, ok, err := s.inner.LoadDecidedValue(ctx, h)
	if err != nil || !ok {
		return dv, ok, err
	}

	s.decided.Add(h, dv.Clone())
	return dv, true, nil
}

func (s *Store) SaveDecidedValue(ctx context.Context, cert cvconsensus.CommitCertificate, v cvconsensus.Value) error {
	if err := s.inner.SaveDecidedValue(ctx, cert, v); err != nil {
		return err
	}

	// The inner store accepted it, so it is now the value at this height.
	dv := cvconsensus.DecidedValue{Certificate: cert, Value: v}
	s.decided.Add(cert.Height, dv.Clone())
	return nil
}

func (s *Store) LoadUndecidedProposals(ctx context.Context, h cvconsensus.Height, r cvconsensus.Round) ([]cvconsensus.ProposedValue, error) {
	return s.inner.LoadUndecidedProposals(ctx, h, r)
}

func (s *Store) SaveUndecidedProposal(ctx context.Context, pv cvconsensus.ProposedValue) error {
	return s.inner.SaveUndecidedProposal(ctx, pv)
}

func (s *Store) LoadUndecidedProposal(
	ctx context.Context,
	h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID,
) (cvconsensus.ProposedValue, bool, error) {
	return s.inner.LoadUndecidedProposal(ctx, h, r, id)
}

func (s *Store) VerifyTables(ctx context.Context) error {
	return s.inner.VerifyTables(ctx)
}
