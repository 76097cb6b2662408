// Package cvpebble provides a [cvkv.Provider] backed by a pebble database.
package cvpebble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/gordian-engine/gadapter/cv/cvcodec"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvkv"
)

// Provider is a [cvkv.Provider] over a pebble database.
//
// Reads see a snapshot taken at the start of [Provider.View].
// Writes are staged in an indexed batch,
// so a write transaction observes its own writes,
// and are committed with [pebble.Sync].
type Provider struct {
	db *pebble.DB

	// Serializes Update calls.
	// Pebble batches do not detect conflicts on their own.
	writeMu sync.Mutex
}

var _ cvkv.Provider[Reader, Writer] = (*Provider)(nil)

// Open opens or creates the pebble database in dir.
func Open(dir string) (*Provider, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %q: %w", dir, err)
	}
	return &Provider{db: db}, nil
}

// OpenInMem opens a pebble database on an in-memory filesystem.
// Its contents are lost on Close.
func OpenInMem() (*Provider, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory pebble db: %w", err)
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

	snap := p.db.NewSnapshot()
	defer snap.Close()

	return fn(Reader{r: snap})
}

func (p *Provider) Update(ctx context.Context, fn func(Writer) error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	b := p.db.NewIndexedBatch()
	defer b.Close()

	if err := fn(Writer{Reader: Reader{r: b}, b: b}); err != nil {
		return err
	}

	// Last chance to abandon the batch.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Reader is the read handle passed to [Provider.View].
type Reader struct {
	r pebble.Reader
}

func (r Reader) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := r.r.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()

	// The value is only valid until the closer is closed.
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (r Reader) Scan(prefix []byte, fn func(key, val []byte) error) (err error) {
	iter, err := r.r.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: cvkv.PrefixEnd(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer func() {
		err = errors.Join(err, iter.Close())
	}()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Writer is the read-write handle passed to [Provider.Update].
type Writer struct {
	Reader

	b *pebble.Batch
}

func (w Writer) Set(key, val []byte) error {
	return w.b.Set(key, val, nil)
}
