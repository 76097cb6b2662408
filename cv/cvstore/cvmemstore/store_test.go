package cvmemstore_test

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
	"pgregory.net/rapid"
)

func TestStore(t *testing.T) {
	t.Parallel()

	cvstoretest.TestValueStoreCompliance(t, func(func(func())) (cvstore.ValueStore, error) {
		return cvmemstore.NewStore(), nil
	})
}

// Saving decided values at arbitrary heights in arbitrary order
// always reports the greatest height, and retains the first value saved at each height.
func TestStore_decidedProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := cvmemstore.NewStore()
		fx := cvconsensustest.NewFixture()

		first := make(map[cvconsensus.Height]cvconsensus.DecidedValue)
		var maxH cvconsensus.Height

		saves := rapid.SliceOfN(rapid.Uint64Range(0, 20), 1, 50).Draw(t, "heights")
		for i, raw := range saves {
			h := cvconsensus.Height(raw)
			payload := rapid.SampledFrom([]string{"a", "b"}).Draw(t, "payload")
			dv := fx.DecidedValue(h, 0, payload)

			err := s.SaveDecidedValue(ctx, dv.Certificate, dv.Value)

			have, seen := first[h]
			switch {
			case !seen:
				if err != nil {
					t.Fatalf("save %d at new height %d failed: %v", i, h, err)
				}
				first[h] = dv
				if len(first) == 1 || h > maxH {
					maxH = h
				}
			case have.Equal(dv):
				if err != nil {
					t.Fatalf("identical save %d at height %d failed: %v", i, h, err)
				}
			default:
				var conflict cvstore.DecidedValueConflictError
				if !errors.As(err, &conflict) {
					t.Fatalf("conflicting save %d at height %d: expected conflict error, got %v", i, h, err)
				}
			}

			got, ok, err := s.MaxDecidedValueHeight(ctx)
			if err != nil || !ok || got != maxH {
				t.Fatalf("max height: got (%d, %t, %v), want %d", got, ok, err, maxH)
			}
		}

		for h, want := range first {
			got, ok, err := s.LoadDecidedValue(ctx, h)
			if err != nil || !ok || !want.Equal(got) {
				t.Fatalf("height %d: got (%#v, %t, %v), want %#v", h, got, ok, err, want)
			}
		}
	})
}

func TestStore_proposalOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := cvmemstore.NewStore()
	fx := cvconsensustest.NewFixture()

	a := fx.ProposedValue(1, 0, "a")
	b := fx.ProposedValue(1, 0, "b")
	require.NoError(t, s.SaveUndecidedProposal(ctx, b))
	require.NoError(t, s.SaveUndecidedProposal(ctx, a))

	// Mutating the saved input does not alter the stored proposal.
	b.Value[0] = 'x'

	pvs, err := s.LoadUndecidedProposals(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, pvs, 2)
	require.Equal(t, cvconsensus.Value("b"), pvs[0].Value)
	require.Equal(t, cvconsensus.Value("a"), pvs[1].Value)
}
