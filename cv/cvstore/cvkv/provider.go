package cvkv

import "context"

// Reader is a read-only view of a key-value provider
// within a single transaction or snapshot.
type Reader interface {
	// Get returns the value at key.
	// The returned slice belongs to the caller.
	// If the key does not exist, ok is false and err is nil.
	Get(key []byte) (val []byte, ok bool, err error)

	// Scan calls fn, in ascending key order, for every key beginning with prefix.
	// The key and val slices are only valid for the duration of the call.
	// If fn returns an error, iteration stops and Scan returns that error.
	Scan(prefix []byte, fn func(key, val []byte) error) error
}

// ReadWriter is a Reader that may also stage writes.
// Staged writes are visible to subsequent reads in the same transaction.
type ReadWriter interface {
	Reader

	// Set stages val at key.
	// The provider may retain both slices until the transaction ends.
	Set(key, val []byte) error
}

// Provider supplies transactions over an ordered key-value store.
//
// The reader and writer handle types are separate type parameters
// so that providers whose read and write transactions differ
// do not need to erase those differences.
type Provider[R Reader, W ReadWriter] interface {
	// View calls fn with a consistent read-only view of the store.
	View(ctx context.Context, fn func(R) error) error

	// Update calls fn within a write transaction.
	// If fn returns nil, the staged writes are committed atomically;
	// otherwise they are discarded and Update returns fn's error.
	// Providers must not run two Update callbacks concurrently.
	// If ctx is canceled before commit, the writes are discarded.
	Update(ctx context.Context, fn func(W) error) error
}
