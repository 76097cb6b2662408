package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gordian-engine/gadapter/cv/cvcodec"
	"github.com/gordian-engine/gadapter/cv/cvcodec/cvcbor"
	"github.com/gordian-engine/gadapter/cv/cvcodec/cvmsgpack"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvkv/cvbadger"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvkv/cvpebble"
	"github.com/gordian-engine/gadapter/cvsqlite"
	"github.com/spf13/pflag"
)

// choiceFlag is a string flag restricted to a fixed set of values.
type choiceFlag struct {
	val     string
	choices []string
}

var _ pflag.Value = (*choiceFlag)(nil)

func newChoiceFlag(def string, choices ...string) *choiceFlag {
	return &choiceFlag{val: def, choices: choices}
}

func (f *choiceFlag) String() string { return f.val }

func (f *choiceFlag) Set(s string) error {
	for _, c := range f.choices {
		if s == c {
			f.val = s
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(f.choices, ", "))
}

func (f *choiceFlag) Type() string { return "string" }

// storeFlags are the flags shared by every command that opens a store.
type storeFlags struct {
	backend *choiceFlag
	codec   *choiceFlag
	path    string
}

func addStoreFlags(fs *pflag.FlagSet) *storeFlags {
	sf := &storeFlags{
		backend: newChoiceFlag("sqlite", "sqlite", "pebble", "badger"),
		codec:   newChoiceFlag("cbor", "cbor", "msgpack"),
	}
	fs.Var(sf.backend, "backend", "storage backend (sqlite|pebble|badger)")
	fs.Var(sf.codec, "codec", "value encoding for the key-value backends (cbor|msgpack)")
	fs.StringVar(&sf.path, "path", "", "database file (sqlite) or directory (pebble, badger)")
	return sf
}

// openedStore is a backend opened by [storeFlags.open].
type openedStore struct {
	VS cvstore.ValueStore

	// Creates the schema; nil if opening already did so.
	createTables func(context.Context) error

	close func() error
}

func (s openedStore) CreateTables(ctx context.Context) error {
	if s.createTables == nil {
		return nil
	}
	return s.createTables(ctx)
}

func (s openedStore) Close() error {
	return s.close()
}

func (sf *storeFlags) marshalCodec() cvcodec.MarshalCodec {
	if sf.codec.val == "msgpack" {
		return cvmsgpack.MarshalCodec{}
	}
	return cvcbor.MarshalCodec{}
}

// open opens the configured backend.
// If create is false, a sqlite database must already exist at the path.
func (sf *storeFlags) open(ctx context.Context, create bool) (openedStore, error) {
	if sf.path == "" {
		return openedStore{}, errors.New("--path is required")
	}

	switch sf.backend.val {
	case "sqlite":
		var (
			s   *cvsqlite.Store
			err error
		)
		if create {
			s, err = cvsqlite.NewOnDiskStore(ctx, sf.path)
		} else {
			s, err = cvsqlite.OpenOnDiskStore(ctx, sf.path)
		}
		if err != nil {
			return openedStore{}, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return openedStore{VS: s, close: s.Close}, nil

	case "pebble":
		p, err := cvpebble.Open(sf.path)
		if err != nil {
			return openedStore{}, fmt.Errorf("failed to open pebble store: %w", err)
		}
		s := cvpebble.NewValueStore(p, sf.marshalCodec())
		return openedStore{VS: s, createTables: s.CreateTables, close: p.Close}, nil

	case "badger":
		p, err := cvbadger.Open(sf.path)
		if err != nil {
			return openedStore{}, fmt.Errorf("failed to open badger store: %w", err)
		}
		s := cvbadger.NewValueStore(p, sf.marshalCodec())
		return openedStore{VS: s, createTables: s.CreateTables, close: p.Close}, nil

	default:
		panic(fmt.Errorf("BUG: unhandled backend %q", sf.backend.val))
	}
}
