package cvstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvconsensus/cvconsensustest"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvmemstore"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvstoretest"
	"github.com/stretchr/testify/require"
)

func TestStore_compliance(t *testing.T) {
	t.Parallel()

	cvstoretest.TestValueStoreCompliance(t, func(func(func())) (cvstore.ValueStore, error) {
		return cvstore.NewStore(cvmemstore.NewStore()), nil
	})
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	t.Run("nil backend panics", func(t *testing.T) {
		t.Parallel()
		require.Panics(t, func() { cvstore.NewStore(nil) })
	})

	t.Run("wrapping a Store is a no-op", func(t *testing.T) {
		t.Parallel()

		s := cvstore.NewStore(cvmemstore.NewStore())
		require.Equal(t, s, cvstore.NewStore(s))
	})

	t.Run("string hides backend", func(t *testing.T) {
		t.Parallel()

		s := cvstore.NewStore(cvmemstore.NewStore())
		require.Equal(t, "cvstore.Store", s.String())
	})
}

func TestStore_copiesShareBackend(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s1 := cvstore.NewStore(cvmemstore.NewStore())
	s2 := s1

	fx := cvconsensustest.NewFixture()
	dv := fx.DecidedValue(1, 0, "shared")
	require.NoError(t, s1.SaveDecidedValue(ctx, dv.Certificate, dv.Value))

	got, ok, err := s2.LoadDecidedValue(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, dv.Equal(got))

	pv := fx.ProposedValue(2, 0, "p")
	require.NoError(t, s2.SaveUndecidedProposal(ctx, pv))

	pvs, err := s1.LoadUndecidedProposals(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, pvs, 1)
}

func TestStore_wrapsBackendErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errDisk := errors.New("disk on fire")
	s := cvstore.NewStore(failingValueStore{Err: errDisk})

	fx := cvconsensustest.NewFixture()
	dv := fx.DecidedValue(7, 2, "v")
	pv := fx.ProposedValue(7, 3, "p")

	requireStoreError := func(t *testing.T, err error, op string) *cvstore.StoreError {
		t.Helper()

		require.ErrorIs(t, err, errDisk)

		var se *cvstore.StoreError
		require.ErrorAs(t, err, &se)
		require.Equal(t, op, se.Op)
		return se
	}

	t.Run("MaxDecidedValueHeight", func(t *testing.T) {
		h, ok, err := s.MaxDecidedValueHeight(ctx)
		se := requireStoreError(t, err, "MaxDecidedValueHeight")
		require.False(t, se.HasHeight)
		require.False(t, ok)
		require.Zero(t, h)
	})

	t.Run("LoadDecidedValue", func(t *testing.T) {
		_, ok, err := s.LoadDecidedValue(ctx, 7)
		se := requireStoreError(t, err, "LoadDecidedValue")
		require.True(t, se.HasHeight)
		require.Equal(t, cvconsensus.Height(7), se.Height)
		require.False(t, ok)
	})

	t.Run("SaveDecidedValue", func(t *testing.T) {
		err := s.SaveDecidedValue(ctx, dv.Certificate, dv.Value)
		se := requireStoreError(t, err, "SaveDecidedValue")
		require.Equal(t, cvconsensus.Height(7), se.Height)
		require.Equal(t, cvconsensus.Round(2), se.Round)
		require.True(t, dv.Certificate.ValueID.Equal(se.ValueID))
		require.Contains(t, err.Error(), "SaveDecidedValue height=7 round=2 value_id=")
		require.Contains(t, err.Error(), "disk on fire")
	})

	t.Run("LoadUndecidedProposals", func(t *testing.T) {
		pvs, err := s.LoadUndecidedProposals(ctx, 7, 3)
		se := requireStoreError(t, err, "LoadUndecidedProposals")
		require.True(t, se.HasRound)
		require.False(t, se.HasValueID)
		require.Nil(t, pvs)
	})

	t.Run("SaveUndecidedProposal", func(t *testing.T) {
		err := s.SaveUndecidedProposal(ctx, pv)
		se := requireStoreError(t, err, "SaveUndecidedProposal")
		require.True(t, pv.ValueID.Equal(se.ValueID))
	})

	t.Run("LoadUndecidedProposal", func(t *testing.T) {
		_, ok, err := s.LoadUndecidedProposal(ctx, 7, 3, pv.ValueID)
		requireStoreError(t, err, "LoadUndecidedProposal")
		require.False(t, ok)
	})

	t.Run("VerifyTables", func(t *testing.T) {
		err := s.VerifyTables(ctx)
		requireStoreError(t, err, "VerifyTables")
	})
}

func TestStore_conflictErrorReachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := cvstore.NewStore(cvmemstore.NewStore())
	fx := cvconsensustest.NewFixture()

	a := fx.DecidedValue(3, 0, "a")
	b := fx.DecidedValue(3, 0, "b")
	require.NoError(t, s.SaveDecidedValue(ctx, a.Certificate, a.Value))

	err := s.SaveDecidedValue(ctx, b.Certificate, b.Value)

	var se *cvstore.StoreError
	require.ErrorAs(t, err, &se)

	var conflict cvstore.DecidedValueConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, cvconsensus.Height(3), conflict.Height)
}

// failingValueStore returns Err from every method,
// alongside result values that would otherwise look like a hit.
type failingValueStore struct {
	Err error
}

func (s failingValueStore) MaxDecidedValueHeight(context.Context) (cvconsensus.Height, bool, error) {
	return 99, true, s.Err
}

func (s failingValueStore) LoadDecidedValue(_ context.Context, h cvconsensus.Height) (cvconsensus.DecidedValue, bool, error) {
	return cvconsensus.DecidedValue{Certificate: cvconsensus.CommitCertificate{Height: h}}, true, s.Err
}

func (s failingValueStore) SaveDecidedValue(context.Context, cvconsensus.CommitCertificate, cvconsensus.Value) error {
	return s.Err
}

func (s failingValueStore) LoadUndecidedProposals(_ context.Context, h cvconsensus.Height, r cvconsensus.Round) ([]cvconsensus.ProposedValue, error) {
	return []cvconsensus.ProposedValue{{Height: h, Round: r}}, s.Err
}

func (s failingValueStore) SaveUndecidedProposal(context.Context, cvconsensus.ProposedValue) error {
	return s.Err
}

func (s failingValueStore) LoadUndecidedProposal(
	_ context.Context, h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID,
) (cvconsensus.ProposedValue, bool, error) {
	return cvconsensus.ProposedValue{Height: h, Round: r, ValueID: id}, true, s.Err
}

func (s failingValueStore) VerifyTables(context.Context) error {
	return s.Err
}
