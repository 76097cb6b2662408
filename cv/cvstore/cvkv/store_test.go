package cvkv_test

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvcodec/cvcbor"
	"github.com/gordian-engine/gadapter/cv/cvcodec/cvmsgpack"
	"github.com/gordian-engine/gadapter/cv/cvconsensus/cvconsensustest"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvkv"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvstoretest"
	"github.com/stretchr/testify/require"
)

func TestStore_mapProvider(t *testing.T) {
	t.Parallel()

	t.Run("cbor", func(t *testing.T) {
		t.Parallel()

		cvstoretest.TestValueStoreCompliance(t, func(func(func())) (cvstore.ValueStore, error) {
			s := cvkv.NewStore[mapView, mapView](newMapProvider(), cvcbor.MarshalCodec{})
			return s, s.CreateTables(context.Background())
		})
	})

	t.Run("msgpack", func(t *testing.T) {
		t.Parallel()

		cvstoretest.TestValueStoreCompliance(t, func(func(func())) (cvstore.ValueStore, error) {
			s := cvkv.NewStore[mapView, mapView](newMapProvider(), cvmsgpack.MarshalCodec{})
			return s, s.CreateTables(context.Background())
		})
	})
}

func TestStore_VerifyTables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := cvkv.NewStore[mapView, mapView](newMapProvider(), cvcbor.MarshalCodec{})

	var mte cvstore.MissingTableError
	require.ErrorAs(t, s.VerifyTables(ctx), &mte)
	require.Equal(t, cvkv.DecidedNamespace, mte.Table)

	require.NoError(t, s.CreateTables(ctx))
	require.NoError(t, s.VerifyTables(ctx))

	// Idempotent.
	require.NoError(t, s.CreateTables(ctx))
	require.NoError(t, s.VerifyTables(ctx))
}

func TestStore_failedUpdateDiscardsWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newMapProvider()
	s := cvkv.NewStore[mapView, mapView](p, cvcbor.MarshalCodec{})
	require.NoError(t, s.CreateTables(ctx))

	fx := cvconsensustest.NewFixture()
	dv := fx.DecidedValue(1, 0, "a")

	errBoom := errors.New("boom")
	p.failSet = func(key []byte) error {
		// Fail on the meta write, after the decided record was staged.
		if key[0] == 'm' {
			return errBoom
		}
		return nil
	}
	require.ErrorIs(t, s.SaveDecidedValue(ctx, dv.Certificate, dv.Value), errBoom)

	p.failSet = nil
	_, ok, err := s.LoadDecidedValue(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_canceledContext(t *testing.T) {
	t.Parallel()

	p := newMapProvider()
	s := cvkv.NewStore[mapView, mapView](p, cvcbor.MarshalCodec{})
	require.NoError(t, s.CreateTables(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fx := cvconsensustest.NewFixture()
	pv := fx.ProposedValue(1, 0, "a")
	require.ErrorIs(t, s.SaveUndecidedProposal(ctx, pv), context.Canceled)

	pvs, err := s.LoadUndecidedProposals(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Empty(t, pvs)
}

func TestPrefixEnd(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in, want []byte
	}{
		{in: []byte("p"), want: []byte("q")},
		{in: []byte{'p', 0x01, 0xff}, want: []byte{'p', 0x02}},
		{in: []byte{0xff, 0xff}, want: nil},
	} {
		require.Equal(t, tc.want, cvkv.PrefixEnd(tc.in), "prefix %x", tc.in)
	}
}

// mapProvider is a minimal Provider used to exercise Store without a real database.
// Updates copy the whole map and swap it in on success.
type mapProvider struct {
	mu sync.Mutex
	m  map[string][]byte

	failSet func(key []byte) error
}

func newMapProvider() *mapProvider {
	return &mapProvider{m: make(map[string][]byte)}
}

type mapView struct {
	m       map[string][]byte
	failSet func(key []byte) error
}

func (v mapView) Get(key []byte) ([]byte, bool, error) {
	val, ok := v.m[string(key)]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(val), true, nil
}

func (v mapView) Scan(prefix []byte, fn func(key, val []byte) error) error {
	var keys []string
	for k := range v.m {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), v.m[k]); err != nil {
			return err
		}
	}
	return nil
}

func (v mapView) Set(key, val []byte) error {
	if v.failSet != nil {
		if err := v.failSet(key); err != nil {
			return err
		}
	}
	v.m[string(key)] = bytes.Clone(val)
	return nil
}

func (p *mapProvider) View(ctx context.Context, fn func(mapView) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(mapView{m: p.m})
}

func (p *mapProvider) Update(ctx context.Context, fn func(mapView) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string][]byte, len(p.m))
	for k, v := range p.m {
		next[k] = v
	}
	if err := fn(mapView{m: next, failSet: p.failSet}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.m = next
	return nil
}
