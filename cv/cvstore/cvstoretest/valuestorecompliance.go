package cvstoretest

import (
	"context"
	"fmt"
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvconsensus/cvconsensustest"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// ValueStoreFactory returns a new, initialized, empty ValueStore.
// Any resources the store holds should be released through cleanup.
type ValueStoreFactory func(cleanup func(func())) (cvstore.ValueStore, error)

func TestValueStoreCompliance(t *testing.T, f ValueStoreFactory) {
	t.Run("empty store", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		require.NoError(t, s.VerifyTables(ctx))

		_, ok, err := s.MaxDecidedValueHeight(ctx)
		require.NoError(t, err)
		require.False(t, ok)

		_, ok, err = s.LoadDecidedValue(ctx, 1)
		require.NoError(t, err)
		require.False(t, ok)

		pvs, err := s.LoadUndecidedProposals(ctx, 1, 0)
		require.NoError(t, err)
		require.Empty(t, pvs)

		_, ok, err = s.LoadUndecidedProposal(ctx, 1, 0, cvconsensus.ValueID("missing"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("decided values", func(t *testing.T) {
		t.Run("round trip", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			dv := fx.DecidedValue(1, 3, "my_value")

			require.NoError(t, s.SaveDecidedValue(ctx, dv.Certificate, dv.Value))

			got, ok, err := s.LoadDecidedValue(ctx, 1)
			require.NoError(t, err)
			require.True(t, ok)
			requireDecidedEqual(t, dv, got)

			// Other heights are still undecided.
			_, ok, err = s.LoadDecidedValue(ctx, 2)
			require.NoError(t, err)
			require.False(t, ok)
		})

		t.Run("identical save is idempotent", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			dv := fx.DecidedValue(4, 0, "my_value")

			require.NoError(t, s.SaveDecidedValue(ctx, dv.Certificate, dv.Value))
			require.NoError(t, s.SaveDecidedValue(ctx, dv.Certificate.Clone(), dv.Value))

			got, ok, err := s.LoadDecidedValue(ctx, 4)
			require.NoError(t, err)
			require.True(t, ok)
			requireDecidedEqual(t, dv, got)

			h, ok, err := s.MaxDecidedValueHeight(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, cvconsensus.Height(4), h)
		})

		t.Run("conflicting save is rejected", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			orig := fx.DecidedValue(2, 0, "original")
			require.NoError(t, s.SaveDecidedValue(ctx, orig.Certificate, orig.Value))

			// Different value in the same round.
			other := fx.DecidedValue(2, 0, "other")
			err = s.SaveDecidedValue(ctx, other.Certificate, other.Value)
			var conflict cvstore.DecidedValueConflictError
			require.ErrorAs(t, err, &conflict)
			require.Equal(t, cvconsensus.Height(2), conflict.Height)
			require.True(t, orig.Certificate.ValueID.Equal(conflict.Existing))
			require.True(t, other.Certificate.ValueID.Equal(conflict.Got))

			// Same value, certificate from a different round.
			later := fx.DecidedValue(2, 5, "original")
			require.ErrorAs(t, s.SaveDecidedValue(ctx, later.Certificate, later.Value), &conflict)

			// Same certificate, different signatures.
			resigned := orig.Certificate.Clone()
			resigned.Signatures = resigned.Signatures[:1]
			require.ErrorAs(t, s.SaveDecidedValue(ctx, resigned, orig.Value), &conflict)

			// Original is unmodified.
			got, ok, err := s.LoadDecidedValue(ctx, 2)
			require.NoError(t, err)
			require.True(t, ok)
			requireDecidedEqual(t, orig, got)
		})

		t.Run("max height tracks greatest height", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()

			_, ok, err := s.MaxDecidedValueHeight(ctx)
			require.NoError(t, err)
			require.False(t, ok)

			for _, h := range []cvconsensus.Height{3, 1, 5} {
				dv := fx.DecidedValue(h, 0, fmt.Sprintf("value at %d", h))
				require.NoError(t, s.SaveDecidedValue(ctx, dv.Certificate, dv.Value))
			}

			h, ok, err := s.MaxDecidedValueHeight(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, cvconsensus.Height(5), h)

			// Every height is still individually retrievable.
			for _, h := range []cvconsensus.Height{1, 3, 5} {
				got, ok, err := s.LoadDecidedValue(ctx, h)
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, h, got.Height())
			}
		})

		t.Run("concurrent identical saves", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			dv := fx.DecidedValue(9, 1, "contended")

			var eg errgroup.Group
			for range 8 {
				eg.Go(func() error {
					return s.SaveDecidedValue(ctx, dv.Certificate.Clone(), dv.Value)
				})
			}
			require.NoError(t, eg.Wait())

			got, ok, err := s.LoadDecidedValue(ctx, 9)
			require.NoError(t, err)
			require.True(t, ok)
			requireDecidedEqual(t, dv, got)
		})

		t.Run("loaded value is independent of the store", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			dv := fx.DecidedValue(1, 0, "immutable")
			input := dv.Clone()
			require.NoError(t, s.SaveDecidedValue(ctx, input.Certificate, input.Value))

			// Mutating the input after the save must not change the stored value.
			input.Value[0] = 'X'

			got, ok, err := s.LoadDecidedValue(ctx, 1)
			require.NoError(t, err)
			require.True(t, ok)
			requireDecidedEqual(t, dv, got)

			// Neither may mutating a loaded value.
			got.Value[0] = 'Y'
			got.Certificate.Signatures[0].Signature[0] = 'Z'

			again, ok, err := s.LoadDecidedValue(ctx, 1)
			require.NoError(t, err)
			require.True(t, ok)
			requireDecidedEqual(t, dv, again)
		})
	})

	t.Run("undecided proposals", func(t *testing.T) {
		t.Run("round isolation", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			a := fx.ProposedValue(10, 0, "A")
			b := fx.ProposedValue(10, 1, "B")

			require.NoError(t, s.SaveUndecidedProposal(ctx, a))
			require.NoError(t, s.SaveUndecidedProposal(ctx, b))

			pvs, err := s.LoadUndecidedProposals(ctx, 10, 0)
			require.NoError(t, err)
			requireProposalsEqual(t, []cvconsensus.ProposedValue{a}, pvs)

			pvs, err = s.LoadUndecidedProposals(ctx, 10, 1)
			require.NoError(t, err)
			requireProposalsEqual(t, []cvconsensus.ProposedValue{b}, pvs)

			pvs, err = s.LoadUndecidedProposals(ctx, 11, 0)
			require.NoError(t, err)
			require.Empty(t, pvs)
		})

		t.Run("point lookup", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			a := fx.ProposedValue(10, 0, "A")
			require.NoError(t, s.SaveUndecidedProposal(ctx, a))

			got, ok, err := s.LoadUndecidedProposal(ctx, 10, 0, a.ValueID)
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, a.Equal(got), "got %#v, want %#v", got, a)

			// Each component of the key must match.
			b := fx.ProposedValue(10, 0, "B")
			for _, tc := range []struct {
				name string
				h    cvconsensus.Height
				r    cvconsensus.Round
				id   cvconsensus.ValueID
			}{
				{name: "other height", h: 11, r: 0, id: a.ValueID},
				{name: "other round", h: 10, r: 1, id: a.ValueID},
				{name: "other value", h: 10, r: 0, id: b.ValueID},
			} {
				_, ok, err := s.LoadUndecidedProposal(ctx, tc.h, tc.r, tc.id)
				require.NoError(t, err, tc.name)
				require.False(t, ok, tc.name)
			}
		})

		t.Run("insertion order", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			want := []cvconsensus.ProposedValue{
				fx.ProposedValue(3, 2, "zzz"),
				fx.ProposedValue(3, 2, "aaa"),
				fx.ProposedValue(3, 2, "mmm"),
			}
			for _, pv := range want {
				require.NoError(t, s.SaveUndecidedProposal(ctx, pv))
			}

			got, err := s.LoadUndecidedProposals(ctx, 3, 2)
			require.NoError(t, err)
			requireProposalsEqual(t, want, got)
		})

		t.Run("overwriting a key does not duplicate", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			a := fx.ProposedValue(5, 0, "A")
			b := fx.ProposedValue(5, 0, "B")

			require.NoError(t, s.SaveUndecidedProposal(ctx, a))
			require.NoError(t, s.SaveUndecidedProposal(ctx, b))

			// Identical resave.
			require.NoError(t, s.SaveUndecidedProposal(ctx, a))

			// A resave with updated metadata replaces the entry in place.
			a2 := a.Clone()
			a2.Validity = false
			a2.ValidRound = 0
			require.NoError(t, s.SaveUndecidedProposal(ctx, a2))

			got, err := s.LoadUndecidedProposals(ctx, 5, 0)
			require.NoError(t, err)
			requireProposalsEqual(t, []cvconsensus.ProposedValue{a2, b}, got)

			pv, ok, err := s.LoadUndecidedProposal(ctx, 5, 0, a.ValueID)
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, a2.Equal(pv))
		})

		t.Run("concurrent saves at distinct keys", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()

			const n = 10
			var eg errgroup.Group
			for i := range n {
				pv := fx.ProposedValue(7, 0, fmt.Sprintf("value-%d", i))
				eg.Go(func() error {
					return s.SaveUndecidedProposal(ctx, pv)
				})
			}
			require.NoError(t, eg.Wait())

			got, err := s.LoadUndecidedProposals(ctx, 7, 0)
			require.NoError(t, err)
			require.Len(t, got, n)
		})

		t.Run("proposals and decided values are independent", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := f(t.Cleanup)
			require.NoError(t, err)

			fx := cvconsensustest.NewFixture()
			pv := fx.ProposedValue(1, 0, "A")
			require.NoError(t, s.SaveUndecidedProposal(ctx, pv))

			// An undecided proposal does not make the height decided.
			_, ok, err := s.MaxDecidedValueHeight(ctx)
			require.NoError(t, err)
			require.False(t, ok)

			dv := fx.DecidedValue(1, 0, "A")
			require.NoError(t, s.SaveDecidedValue(ctx, dv.Certificate, dv.Value))

			// Deciding the height retains its proposals.
			got, err := s.LoadUndecidedProposals(ctx, 1, 0)
			require.NoError(t, err)
			requireProposalsEqual(t, []cvconsensus.ProposedValue{pv}, got)
		})
	})
}

func requireDecidedEqual(t *testing.T, want, got cvconsensus.DecidedValue) {
	t.Helper()
	require.True(t, want.Equal(got), "decided values differ:\nwant %#v\ngot  %#v", want, got)
}

func requireProposalsEqual(t *testing.T, want, got []cvconsensus.ProposedValue) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.True(t, want[i].Equal(got[i]), "proposal %d differs:\nwant %#v\ngot  %#v", i, want[i], got[i])
	}
}
