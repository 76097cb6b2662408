package cvconsensus_test

import (
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvconsensus/cvconsensustest"
	"github.com/stretchr/testify/require"
)

func TestBlake2bHashScheme_deterministic(t *testing.T) {
	t.Parallel()

	var hs cvconsensus.Blake2bHashScheme

	a, err := hs.ValueID(cvconsensus.Value("hello"))
	require.NoError(t, err)
	require.Len(t, a, 32)

	b, err := hs.ValueID(cvconsensus.Value("hello"))
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	c, err := hs.ValueID(cvconsensus.Value("world"))
	require.NoError(t, err)
	require.False(t, a.Equal(c))
}

func TestDecidedValue_Clone(t *testing.T) {
	t.Parallel()

	fx := cvconsensustest.NewFixture()
	dv := fx.DecidedValue(4, 1, "payload")

	c := dv.Clone()
	require.True(t, dv.Equal(c))

	// Mutating the clone must not affect the original.
	c.Certificate.Signatures[0].Signature[0] ^= 0xff
	c.Value[0] = 'X'
	require.False(t, dv.Equal(c))
	require.Equal(t, cvconsensus.Value("payload"), dv.Value)
}

func TestCommitCertificate_Equal(t *testing.T) {
	t.Parallel()

	fx := cvconsensustest.NewFixture()
	c := fx.CommitCertificate(1, 0, cvconsensus.Value("v"))

	require.True(t, c.Equal(c.Clone()))

	other := c.Clone()
	other.Round = 1
	require.False(t, c.Equal(other))

	other = c.Clone()
	other.Signatures = other.Signatures[:2]
	require.False(t, c.Equal(other))
}

func TestProposedValue_Key(t *testing.T) {
	t.Parallel()

	fx := cvconsensustest.NewFixture()
	pv := fx.ProposedValue(10, 2, "A")

	require.Equal(t, cvconsensus.ProposalKey{
		Height:  10,
		Round:   2,
		ValueID: string(pv.ValueID),
	}, pv.Key())
	require.Equal(t, cvconsensus.NilRound, pv.ValidRound)
	require.True(t, pv.Validity)
}
