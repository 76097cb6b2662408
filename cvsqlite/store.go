package cvsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/trace"
	"strings"
	"sync/atomic"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvstore"
)

// Store is a [cvstore.ValueStore] backed by sqlite.
//
// Heights and rounds are bound as int64, the width of a sqlite integer,
// so heights beyond math.MaxInt64 are unsupported.
type Store struct {
	// The string "purego" or "cgo" depending on build tags.
	BuildType string

	// Due to transaction locking behaviors of sqlite
	// (see: https://www.sqlite.org/lang_transaction.html),
	// and the way they interact with the Go SQL drivers,
	// it is better to maintain two separate connection pools.
	ro, rw *sql.DB
}

var _ cvstore.ValueStore = (*Store)(nil)

// NewOnDiskStore opens the database at dbPath,
// creating the file if it does not exist,
// and migrates it to the current schema.
func NewOnDiskStore(ctx context.Context, dbPath string) (*Store, error) {
	dbPath = filepath.Clean(dbPath)
	if _, err := os.Stat(dbPath); err != nil {
		// Create a file for the database;
		// if no file exists, then our startup pragma commands fail.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat path %q: %w", dbPath, err)
		}

		// Not os.Create, which would truncate a file created concurrently.
		f, err := os.OpenFile(dbPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to create empty database file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close new empty database file: %w", err)
		}
	}

	return openOnDisk(ctx, dbPath, true)
}

// OpenOnDiskStore opens the existing database at dbPath without migrating it.
// Use it to inspect a database, for instance with [Store.VerifyTables],
// without modifying its schema.
func OpenOnDiskStore(ctx context.Context, dbPath string) (*Store, error) {
	dbPath = filepath.Clean(dbPath)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", dbPath, err)
	}

	return openOnDisk(ctx, dbPath, false)
}

func openOnDisk(ctx context.Context, dbPath string, doMigrate bool) (*Store, error) {
	// In combination with the SetMaxOpenConns(1) call,
	// this allows only a single writer at a time;
	// instead of other writers getting an ephemeral "database is locked" error,
	// they block while contending for the single available connection.
	uri := "file:" + dbPath + "?mode=rw"

	// The driver type comes from the sqlitedriver_*.go file
	// chosen based on build tags.
	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}

	rw.SetMaxOpenConns(1)

	// Unlike other pragmas, this is persistent,
	// and it is only relevant to on-disk databases.
	if _, err := rw.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to set journal_mode=WAL: %w", err), rw.Close())
	}

	if err := pragmasRW(ctx, rw); err != nil {
		return nil, errors.Join(err, rw.Close())
	}

	if doMigrate {
		if err := migrate(ctx, rw); err != nil {
			return nil, errors.Join(err, rw.Close())
		}
	}

	// Change mode=rw to mode=ro (since we know that was the final query parameter).
	uri = uri[:len(uri)-1] + "o"
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("error opening read-only database: %w", err), rw.Close())
	}
	if err := pragmasRO(ctx, ro); err != nil {
		return nil, errors.Join(err, ro.Close(), rw.Close())
	}

	return &Store{
		BuildType: sqliteBuildType,

		rw: rw,
		ro: ro,
	}, nil
}

// DriverName reports the database/sql driver the package was built against.
func DriverName() string {
	return sqliteDriverType
}

var inMemNameCounter uint32

// NewInMemStore returns a migrated Store on a new in-memory database.
// Each call produces an independent database.
func NewInMemStore(ctx context.Context) (*Store, error) {
	dbName := fmt.Sprintf("db%d", atomic.AddUint32(&inMemNameCounter, 1))
	uri := "file:" + dbName +
		// Give the "file" a unique name so that multiple connections within one process
		// can use the same in-memory database.
		"?mode=memory" +
		// A private cache would give every connection a distinct database.
		"&cache=shared" +
		// Take the write lock at the beginning of every transaction.
		// https://www.sqlite.org/lang_transaction.html#deferred_immediate_and_exclusive_transactions
		"&_txlock=immediate"

	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}

	// Without limiting it to one open connection,
	// we would get frequent "table is locked" errors
	// that the busy timeout handler does not resolve.
	rw.SetMaxOpenConns(1)

	if err := pragmasRW(ctx, rw); err != nil {
		return nil, errors.Join(err, rw.Close())
	}

	if err := migrate(ctx, rw); err != nil {
		return nil, errors.Join(err, rw.Close())
	}

	// The drivers cannot mark an in-memory connection read-only,
	// so the read pool uses the same URI without the txlock directive.
	var ok bool
	uri, ok = strings.CutSuffix(uri, "&_txlock=immediate")
	if !ok {
		panic(fmt.Errorf("BUG: failed to cut _txlock suffix from uri %q", uri))
	}
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("error opening read-only database: %w", err), rw.Close())
	}
	if err := pragmasRO(ctx, ro); err != nil {
		return nil, errors.Join(err, ro.Close(), rw.Close())
	}

	return &Store{
		BuildType: sqliteBuildType,

		rw: rw,
		ro: ro,
	}, nil
}

func (s *Store) Close() error {
	errRO := s.ro.Close()
	if errRO != nil {
		errRO = fmt.Errorf("error closing read-only database: %w", errRO)
	}
	errRW := s.rw.Close()
	if errRW != nil {
		errRW = fmt.Errorf("error closing read-write database: %w", errRW)
	}

	return errors.Join(errRO, errRW)
}

func (s *Store) VerifyTables(ctx context.Context) error {
	defer trace.StartRegion(ctx, "VerifyTables").End()

	for _, name := range requiredTables {
		var count int
		if err := s.ro.QueryRowContext(
			ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
			name,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to check for table %q: %w", name, err)
		}
		if count == 0 {
			return cvstore.MissingTableError{Table: name}
		}
	}

	return nil
}

func (s *Store) MaxDecidedValueHeight(ctx context.Context) (cvconsensus.Height, bool, error) {
	defer trace.StartRegion(ctx, "MaxDecidedValueHeight").End()

	var h sql.NullInt64
	if err := s.ro.QueryRowContext(
		ctx, `SELECT MAX(height) FROM decided_values`,
	).Scan(&h); err != nil {
		return 0, false, fmt.Errorf("failed to select max height: %w", err)
	}

	if !h.Valid {
		return 0, false, nil
	}
	return cvconsensus.Height(h.Int64), true, nil
}

func (s *Store) LoadDecidedValue(ctx context.Context, h cvconsensus.Height) (cvconsensus.DecidedValue, bool, error) {
	defer trace.StartRegion(ctx, "LoadDecidedValue").End()

	// A read transaction so the value and signatures come from one snapshot.
	tx, err := s.ro.BeginTx(ctx, nil)
	if err != nil {
		return cvconsensus.DecidedValue{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return s.loadDecidedInTx(ctx, tx, h)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) loadDecidedInTx(ctx context.Context, q querier, h cvconsensus.Height) (
	cvconsensus.DecidedValue, bool, error,
) {
	defer trace.StartRegion(ctx, "loadDecidedInTx").End()

	dv := cvconsensus.DecidedValue{
		Certificate: cvconsensus.CommitCertificate{Height: h},
	}
	var valueID, value []byte
	err := q.QueryRowContext(
		ctx,
		`SELECT round, value_id, value FROM decided_values WHERE height = ?`,
		int64(h),
	).Scan(&dv.Certificate.Round, &valueID, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cvconsensus.DecidedValue{}, false, nil
		}
		return cvconsensus.DecidedValue{}, false, fmt.Errorf("failed to select decided value: %w", err)
	}
	dv.Certificate.ValueID = valueID
	dv.Value = value

	rows, err := q.QueryContext(
		ctx,
		`SELECT address, signature FROM commit_signatures WHERE height = ? ORDER BY idx`,
		int64(h),
	)
	if err != nil {
		return cvconsensus.DecidedValue{}, false, fmt.Errorf("failed to select commit signatures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sig cvconsensus.CommitSignature
		if err := rows.Scan(&sig.Address, &sig.Signature); err != nil {
			return cvconsensus.DecidedValue{}, false, fmt.Errorf("failed to scan commit signature: %w", err)
		}
		dv.Certificate.Signatures = append(dv.Certificate.Signatures, sig)
	}
	if err := rows.Err(); err != nil {
		return cvconsensus.DecidedValue{}, false, fmt.Errorf("failed to iterate commit signatures: %w", err)
	}

	return dv, true, nil
}

func (s *Store) SaveDecidedValue(ctx context.Context, cert cvconsensus.CommitCertificate, v cvconsensus.Value) error {
	defer trace.StartRegion(ctx, "SaveDecidedValue").End()

	tx, err := s.rw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	dv := cvconsensus.DecidedValue{Certificate: cert, Value: v}
	have, ok, err := s.loadDecidedInTx(ctx, tx, cert.Height)
	if err != nil {
		return err
	}
	if ok {
		if have.Equal(dv) {
			return nil
		}
		return cvstore.DecidedValueConflictError{
			Height:   cert.Height,
			Existing: have.Certificate.ValueID,
			Got:      cert.ValueID.Clone(),
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO decided_values(height, round, value_id, value) VALUES(?, ?, ?, ?)`,
		int64(cert.Height), int64(cert.Round), blob(cert.ValueID), blob(v),
	); err != nil {
		return fmt.Errorf("failed to insert decided value: %w", err)
	}

	if len(cert.Signatures) > 0 {
		stmt, err := tx.PrepareContext(
			ctx,
			`INSERT INTO commit_signatures(height, idx, address, signature) VALUES(?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("failed to prepare commit signature insert: %w", err)
		}
		defer stmt.Close()

		for i, sig := range cert.Signatures {
			if _, err := stmt.ExecContext(
				ctx, int64(cert.Height), i, blob(sig.Address), blob(sig.Signature),
			); err != nil {
				return fmt.Errorf("failed to insert commit signature %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit saving decided value: %w", err)
	}
	return nil
}

func (s *Store) LoadUndecidedProposals(ctx context.Context, h cvconsensus.Height, r cvconsensus.Round) ([]cvconsensus.ProposedValue, error) {
	defer trace.StartRegion(ctx, "LoadUndecidedProposals").End()

	rows, err := s.ro.QueryContext(
		ctx,
		`SELECT value_id, valid_round, proposer, value, validity FROM undecided_proposals
WHERE height = ? AND round = ?
ORDER BY id`,
		int64(h), int64(r),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select proposals: %w", err)
	}
	defer rows.Close()

	var pvs []cvconsensus.ProposedValue
	for rows.Next() {
		pv := cvconsensus.ProposedValue{Height: h, Round: r}
		if err := scanProposal(rows, &pv); err != nil {
			return nil, err
		}
		pvs = append(pvs, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate proposals: %w", err)
	}

	return pvs, nil
}

func (s *Store) SaveUndecidedProposal(ctx context.Context, pv cvconsensus.ProposedValue) error {
	defer trace.StartRegion(ctx, "SaveUndecidedProposal").End()

	// The upsert updates the existing row in place, so its id,
	// and therefore its position in the listing order, does not change.
	if _, err := s.rw.ExecContext(
		ctx,
		`INSERT INTO undecided_proposals(height, round, value_id, valid_round, proposer, value, validity)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(height, round, value_id) DO UPDATE SET
  valid_round = excluded.valid_round,
  proposer = excluded.proposer,
  value = excluded.value,
  validity = excluded.validity`,
		int64(pv.Height), int64(pv.Round), blob(pv.ValueID),
		int64(pv.ValidRound), blob(pv.Proposer), blob(pv.Value),
		pv.Validity,
	); err != nil {
		return fmt.Errorf("failed to upsert proposal: %w", err)
	}
	return nil
}

func (s *Store) LoadUndecidedProposal(
	ctx context.Context,
	h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID,
) (cvconsensus.ProposedValue, bool, error) {
	defer trace.StartRegion(ctx, "LoadUndecidedProposal").End()

	pv := cvconsensus.ProposedValue{Height: h, Round: r}
	row := s.ro.QueryRowContext(
		ctx,
		`SELECT value_id, valid_round, proposer, value, validity FROM undecided_proposals
WHERE height = ? AND round = ? AND value_id = ?`,
		int64(h), int64(r), blob(id),
	)
	if err := scanProposal(row, &pv); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cvconsensus.ProposedValue{}, false, nil
		}
		return cvconsensus.ProposedValue{}, false, err
	}
	return pv, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanProposal scans the columns
// value_id, valid_round, proposer, value, validity
// into pv, which must already have its height and round set.
func scanProposal(sc scanner, pv *cvconsensus.ProposedValue) error {
	var valueID, proposer, value []byte
	if err := sc.Scan(&valueID, &pv.ValidRound, &proposer, &value, &pv.Validity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("failed to scan proposal: %w", err)
	}

	pv.ValueID = valueID
	pv.Proposer = proposer
	pv.Value = value
	return nil
}

// blob avoids binding a nil slice, which the drivers send as NULL.
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func pragmasRW(ctx context.Context, db *sql.DB) error {
	defer trace.StartRegion(ctx, "pragmasRW").End()

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("failed to set foreign keys on: %w", err)
	}

	// https://www.sqlite.org/lang_analyze.html#periodically_run_pragma_optimize_
	// "Applications that use long-lived database connections should run `PRAGMA optimize=0x10002;`
	// when the connection is first opened."
	if _, err := db.ExecContext(ctx, `PRAGMA optimize(0x10002);`); err != nil {
		return fmt.Errorf("failed to run startup PRAGMA optimize: %w", err)
	}

	return nil
}

func pragmasRO(ctx context.Context, db *sql.DB) error {
	defer trace.StartRegion(ctx, "pragmasRO").End()

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("failed to set foreign keys on: %w", err)
	}

	return nil
}
