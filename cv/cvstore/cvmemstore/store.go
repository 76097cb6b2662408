package cvmemstore

import (
	"context"
	"sync"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvstore"
)

// Store is an in-memory [cvstore.ValueStore].
// Every value is cloned on its way in and out,
// so callers may freely modify what they pass and what they receive.
type Store struct {
	mu sync.RWMutex

	decided map[cvconsensus.Height]cvconsensus.DecidedValue

	// Height -> Round -> proposals in insertion order.
	proposals map[cvconsensus.Height]map[cvconsensus.Round][]cvconsensus.ProposedValue

	maxHeight cvconsensus.Height
}

func NewStore() *Store {
	return &Store{
		decided:   make(map[cvconsensus.Height]cvconsensus.DecidedValue),
		proposals: make(map[cvconsensus.Height]map[cvconsensus.Round][]cvconsensus.ProposedValue),
	}
}

func (s *Store) MaxDecidedValueHeight(ctx context.Context) (cvconsensus.Height, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.decided) == 0 {
		return 0, false, nil
	}
	return s.maxHeight, true, nil
}

func (s *Store) LoadDecidedValue(ctx context.Context, h cvconsensus.Height) (cvconsensus.DecidedValue, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dv, ok := s.decided[h]
	if !ok {
		return cvconsensus.DecidedValue{}, false, nil
	}
	return dv.Clone(), true, nil
}

func (s *Store) SaveDecidedValue(ctx context.Context, cert cvconsensus.CommitCertificate, v cvconsensus.Value) error {
	dv := cvconsensus.DecidedValue{Certificate: cert, Value: v}

	s.mu.Lock()
	defer s.mu.Unlock()

	if have, ok := s.decided[cert.Height]; ok {
		if have.Equal(dv) {
			return nil
		}
		return cvstore.DecidedValueConflictError{
			Height:   cert.Height,
			Existing: have.Certificate.ValueID.Clone(),
			Got:      cert.ValueID.Clone(),
		}
	}

	s.decided[cert.Height] = dv.Clone()
	if len(s.decided) == 1 || cert.Height > s.maxHeight {
		s.maxHeight = cert.Height
	}
	return nil
}

func (s *Store) LoadUndecidedProposals(ctx context.Context, h cvconsensus.Height, r cvconsensus.Round) ([]cvconsensus.ProposedValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pvs := s.proposals[h][r]
	if len(pvs) == 0 {
		return nil, nil
	}

	out := make([]cvconsensus.ProposedValue, len(pvs))
	for i, pv := range pvs {
		out[i] = pv.Clone()
	}
	return out, nil
}

func (s *Store) SaveUndecidedProposal(ctx context.Context, pv cvconsensus.ProposedValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRound, ok := s.proposals[pv.Height]
	if !ok {
		byRound = make(map[cvconsensus.Round][]cvconsensus.ProposedValue)
		s.proposals[pv.Height] = byRound
	}

	pvs := byRound[pv.Round]
	for i := range pvs {
		if pvs[i].ValueID.Equal(pv.ValueID) {
			pvs[i] = pv.Clone()
			return nil
		}
	}

	byRound[pv.Round] = append(pvs, pv.Clone())
	return nil
}

func (s *Store) LoadUndecidedProposal(
	ctx context.Context,
	h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID,
) (cvconsensus.ProposedValue, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pv := range s.proposals[h][r] {
		if pv.ValueID.Equal(id) {
			return pv.Clone(), true, nil
		}
	}
	return cvconsensus.ProposedValue{}, false, nil
}

// VerifyTables always succeeds, as the in-memory maps are created with the Store.
func (s *Store) VerifyTables(ctx context.Context) error {
	return nil
}
