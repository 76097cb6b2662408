// Package cvbadger provides a [cvkv.Provider] backed by a badger database.
package cvbadger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/gordian-engine/gadapter/cv/cvcodec"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvkv"
)

// Provider is a [cvkv.Provider] over a badger database.
type Provider struct {
	db *badger.DB

	// Badger would report concurrent writers as transaction conflicts;
	// holding writeMu across Update means they never occur.
	writeMu sync.Mutex
}

var _ cvkv.Provider[Reader, Writer] = (*Provider)(nil)

// Open opens or creates the badger database in dir.
func Open(dir string) (*Provider, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMem opens a badger database held entirely in memory.
func OpenInMem() (*Provider, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Provider, error) {
	// Badger's default logger writes to stderr; callers log through slog instead.
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Provider{db: db}, nil
}

func (p *Provider) Close() error {
	return p.db.Close()
}

// NewValueStore returns a [*cvkv.Store] over p.
func NewValueStore(p *Provider, codec cvcodec.MarshalCodec) *cvkv.Store[Reader, Writer] {
	return cvkv.NewStore[Reader, Writer](p, codec)
}

func (p *Provider) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.db.View(func(txn *badger.Txn) error {
		return fn(Reader{txn: txn})
	})
}

func (p *Provider) Update(ctx context.Context, fn func(Writer) error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	txn := p.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(Writer{Reader: Reader{txn: txn}}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reader is the read handle passed to [Provider.View].
type Reader struct {
	txn *badger.Txn
}

func (r Reader) Get(key []byte) ([]byte, bool, error) {
	item, err := r.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to copy value: %w", err)
	}
	return val, true, nil
}

func (r Reader) Scan(prefix []byte, fn func(key, val []byte) error) error {
	it := r.txn.NewIterator(badger.IteratorOptions{
		Prefix:         prefix,
		PrefetchValues: true,
		PrefetchSize:   16,
	})
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		err := item.Value(func(val []byte) error {
			return fn(item.Key(), val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Writer is the read-write handle passed to [Provider.Update].
type Writer struct {
	Reader
}

func (w Writer) Set(key, val []byte) error {
	return w.txn.Set(key, val)
}
