package cvcodectest

import (
	"bytes"
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvcodec"
	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvconsensus/cvconsensustest"
	"github.com/stretchr/testify/require"
)

const determinismTries = 20

// In case there is any state in the codec,
// providing a factory function allows a clean start for every subtest.
type MarshalCodecFactory func() cvcodec.MarshalCodec

// TestMarshalCodecCompliance ensures the codec in mcf
// follows all expected properties of a [cvcodec.MarshalCodec].
func TestMarshalCodecCompliance(t *testing.T, mcf MarshalCodecFactory) {
	t.Run("decided value round trip", func(t *testing.T) {
		t.Parallel()

		fx := cvconsensustest.NewFixture()
		dv := fx.DecidedValue(12, 3, "decided payload")

		mc := mcf()
		b, err := mc.MarshalDecidedValue(dv)
		require.NoError(t, err)

		var got cvconsensus.DecidedValue
		require.NoError(t, mc.UnmarshalDecidedValue(b, &got))
		require.True(t, dv.Equal(got), "got %#v, want %#v", got, dv)
	})

	t.Run("decided value without signatures", func(t *testing.T) {
		t.Parallel()

		fx := cvconsensustest.NewFixture()
		fx.NSignatures = 0
		dv := fx.DecidedValue(1, 0, "x")

		mc := mcf()
		b, err := mc.MarshalDecidedValue(dv)
		require.NoError(t, err)

		var got cvconsensus.DecidedValue
		require.NoError(t, mc.UnmarshalDecidedValue(b, &got))
		require.True(t, dv.Equal(got))
		require.Empty(t, got.Certificate.Signatures)
	})

	t.Run("proposed value round trip", func(t *testing.T) {
		t.Parallel()

		fx := cvconsensustest.NewFixture()
		pv := fx.ProposedValue(7, 2, "proposal")
		pv.ValidRound = 1
		pv.Validity = false

		mc := mcf()
		b, err := mc.MarshalProposedValue(pv)
		require.NoError(t, err)

		var got cvconsensus.ProposedValue
		require.NoError(t, mc.UnmarshalProposedValue(b, &got))
		require.True(t, pv.Equal(got), "got %#v, want %#v", got, pv)
	})

	t.Run("nil round survives", func(t *testing.T) {
		t.Parallel()

		fx := cvconsensustest.NewFixture()
		pv := fx.ProposedValue(7, 0, "proposal")
		require.Equal(t, cvconsensus.NilRound, pv.ValidRound)

		mc := mcf()
		b, err := mc.MarshalProposedValue(pv)
		require.NoError(t, err)

		var got cvconsensus.ProposedValue
		require.NoError(t, mc.UnmarshalProposedValue(b, &got))
		require.Equal(t, cvconsensus.NilRound, got.ValidRound)
	})

	t.Run("deterministic output", func(t *testing.T) {
		t.Parallel()

		fx := cvconsensustest.NewFixture()
		dv := fx.DecidedValue(5, 0, "determinism")

		mc := mcf()
		want, err := mc.MarshalDecidedValue(dv)
		require.NoError(t, err)

		for range determinismTries {
			got, err := mc.MarshalDecidedValue(dv)
			require.NoError(t, err)
			require.True(t, bytes.Equal(want, got))
		}
	})

	t.Run("garbage input is an error", func(t *testing.T) {
		t.Parallel()

		mc := mcf()
		var dv cvconsensus.DecidedValue
		require.Error(t, mc.UnmarshalDecidedValue([]byte{0xff, 0x00, 0x13}, &dv))

		var pv cvconsensus.ProposedValue
		require.Error(t, mc.UnmarshalProposedValue([]byte{0xff, 0x00, 0x13}, &pv))
	})
}
