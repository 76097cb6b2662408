package cvpebble_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvcodec/cvcbor"
	"github.com/gordian-engine/gadapter/cv/cvconsensus/cvconsensustest"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvkv"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvkv/cvpebble"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvstoretest"
	"github.com/stretchr/testify/require"
)

func TestValueStore(t *testing.T) {
	t.Parallel()

	cvstoretest.TestValueStoreCompliance(t, func(cleanup func(func())) (cvstore.ValueStore, error) {
		p, err := cvpebble.OpenInMem()
		if err != nil {
			return nil, err
		}
		cleanup(func() {
			_ = p.Close()
		})

		s := cvpebble.NewValueStore(p, cvcbor.MarshalCodec{})
		if err := s.CreateTables(context.Background()); err != nil {
			return nil, err
		}
		return s, nil
	})
}

func TestValueStore_VerifyTablesBeforeCreate(t *testing.T) {
	t.Parallel()

	p, err := cvpebble.OpenInMem()
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	s := cvpebble.NewValueStore(p, cvcbor.MarshalCodec{})

	var mte cvstore.MissingTableError
	require.ErrorAs(t, s.VerifyTables(ctx), &mte)
	require.Equal(t, cvkv.DecidedNamespace, mte.Table)

	require.NoError(t, s.CreateTables(ctx))
	require.NoError(t, s.VerifyTables(ctx))
}

func TestValueStore_reopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	fx := cvconsensustest.NewFixture()
	dv := fx.DecidedValue(12, 1, "durable")
	pv := fx.ProposedValue(13, 0, "pending")

	p, err := cvpebble.Open(dir)
	require.NoError(t, err)

	s := cvpebble.NewValueStore(p, cvcbor.MarshalCodec{})
	require.NoError(t, s.CreateTables(ctx))
	require.NoError(t, s.SaveDecidedValue(ctx, dv.Certificate, dv.Value))
	require.NoError(t, s.SaveUndecidedProposal(ctx, pv))
	require.NoError(t, p.Close())

	p, err = cvpebble.Open(dir)
	require.NoError(t, err)
	defer p.Close()

	s = cvpebble.NewValueStore(p, cvcbor.MarshalCodec{})
	require.NoError(t, s.VerifyTables(ctx))

	h, ok, err := s.MaxDecidedValueHeight(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, dv.Height(), h)

	got, ok, err := s.LoadDecidedValue(ctx, 12)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, dv.Equal(got))

	gotPV, ok, err := s.LoadUndecidedProposal(ctx, 13, 0, pv.ValueID)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, pv.Equal(gotPV))
}

func TestValueStore_canceledUpdateHasNoEffect(t *testing.T) {
	t.Parallel()

	p, err := cvpebble.OpenInMem()
	require.NoError(t, err)
	defer p.Close()

	s := cvpebble.NewValueStore(p, cvcbor.MarshalCodec{})
	require.NoError(t, s.CreateTables(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fx := cvconsensustest.NewFixture()
	dv := fx.DecidedValue(1, 0, "never")
	require.ErrorIs(t, s.SaveDecidedValue(ctx, dv.Certificate, dv.Value), context.Canceled)

	_, ok, err := s.MaxDecidedValueHeight(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}
