package cvsqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvconsensus/cvconsensustest"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvstoretest"
	"github.com/gordian-engine/gadapter/cvsqlite"
	"github.com/stretchr/testify/require"
)

func TestNewInMemStore(t *testing.T) {
	t.Parallel()

	// Just create the database and close it successfully.
	s, err := cvsqlite.NewInMemStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)

	// Helpful output in the simplest test, if there is uncertainty which type was built.
	t.Logf("Tests are for build type %s", s.BuildType)

	require.NoError(t, s.Close())
}

func TestValueStoreCompliance_inMem(t *testing.T) {
	t.Parallel()

	cvstoretest.TestValueStoreCompliance(t, func(cleanup func(func())) (cvstore.ValueStore, error) {
		s, err := cvsqlite.NewInMemStore(context.Background())
		if err != nil {
			return nil, err
		}
		cleanup(func() {
			require.NoError(t, s.Close())
		})
		return s, nil
	})
}

func TestValueStoreCompliance_onDisk(t *testing.T) {
	t.Parallel()

	cvstoretest.TestValueStoreCompliance(t, func(cleanup func(func())) (cvstore.ValueStore, error) {
		dir, err := os.MkdirTemp("", "cvsqlite-*")
		if err != nil {
			return nil, err
		}
		cleanup(func() {
			_ = os.RemoveAll(dir)
		})

		s, err := cvsqlite.NewOnDiskStore(context.Background(), filepath.Join(dir, "cv.sqlite"))
		if err != nil {
			return nil, err
		}
		cleanup(func() {
			require.NoError(t, s.Close())
		})
		return s, nil
	})
}

func TestOpenOnDiskStore_VerifyTables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cv.sqlite")

	t.Run("missing file", func(t *testing.T) {
		_, err := cvsqlite.OpenOnDiskStore(ctx, dbPath)
		require.Error(t, err)
	})

	t.Run("partial schema", func(t *testing.T) {
		// Create a database holding only some of the tables.
		s, err := cvsqlite.NewOnDiskStore(ctx, dbPath)
		require.NoError(t, err)
		require.NoError(t, s.Close())

		dropTable(t, dbPath, "undecided_proposals")

		s, err = cvsqlite.OpenOnDiskStore(ctx, dbPath)
		require.NoError(t, err)
		defer s.Close()

		var mte cvstore.MissingTableError
		require.ErrorAs(t, s.VerifyTables(ctx), &mte)
		require.Equal(t, "undecided_proposals", mte.Table)
	})
}

func TestNewOnDiskStore_reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cv.sqlite")
	fx := cvconsensustest.NewFixture()

	s, err := cvsqlite.NewOnDiskStore(ctx, dbPath)
	require.NoError(t, err)

	dv := fx.DecidedValue(3, 1, "durable")
	require.NoError(t, s.SaveDecidedValue(ctx, dv.Certificate, dv.Value))
	require.NoError(t, s.SaveUndecidedProposal(ctx, fx.ProposedValue(4, 0, "a")))
	require.NoError(t, s.SaveUndecidedProposal(ctx, fx.ProposedValue(4, 0, "b")))
	require.NoError(t, s.Close())

	// Reopening migrates nothing but keeps all data.
	s, err = cvsqlite.NewOnDiskStore(ctx, dbPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.VerifyTables(ctx))

	h, ok, err := s.MaxDecidedValueHeight(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cvconsensus.Height(3), h)

	got, ok, err := s.LoadDecidedValue(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, dv.Equal(got))

	// Insertion order survives a restart.
	require.NoError(t, s.SaveUndecidedProposal(ctx, fx.ProposedValue(4, 0, "c")))
	pvs, err := s.LoadUndecidedProposals(ctx, 4, 0)
	require.NoError(t, err)
	require.Len(t, pvs, 3)
	require.Equal(t, cvconsensus.Value("a"), pvs[0].Value)
	require.Equal(t, cvconsensus.Value("b"), pvs[1].Value)
	require.Equal(t, cvconsensus.Value("c"), pvs[2].Value)
}

func TestStore_emptyByteFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := cvsqlite.NewInMemStore(ctx)
	require.NoError(t, err)
	defer s.Close()

	pv := cvconsensus.ProposedValue{
		Height:     1,
		Round:      0,
		ValidRound: cvconsensus.NilRound,
		ValueID:    cvconsensus.ValueID("id"),
	}
	require.NoError(t, s.SaveUndecidedProposal(ctx, pv))

	got, ok, err := s.LoadUndecidedProposal(ctx, 1, 0, pv.ValueID)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, pv.Equal(got))

	cert := cvconsensus.CommitCertificate{Height: 1, ValueID: cvconsensus.ValueID("id")}
	require.NoError(t, s.SaveDecidedValue(ctx, cert, nil))
	require.NoError(t, s.SaveDecidedValue(ctx, cert, cvconsensus.Value{}))
}

// dropTable removes a table from the database at dbPath,
// using the same driver the store was built with.
func dropTable(t *testing.T, dbPath, table string) {
	t.Helper()

	db, err := sql.Open(cvsqlite.DriverName(), "file:"+dbPath+"?mode=rw")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`DROP TABLE ` + table)
	require.NoError(t, err)
}
