package cvkv

import (
	"encoding/binary"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// Namespace names reported in [cvstore.MissingTableError].
const (
	DecidedNamespace   = "decided"
	ProposalsNamespace = "proposals"
	MetaNamespace      = "meta"
)

// Namespaces lists every namespace that [Store.CreateTables] creates,
// in the order [Store.VerifyTables] checks them.
var Namespaces = []string{DecidedNamespace, ProposalsNamespace, MetaNamespace}

// Key prefixes.
// Schema markers sort before every record.
const (
	schemaPrefix   byte = 0x00
	decidedPrefix  byte = 'd'
	proposalPrefix byte = 'p'
	metaPrefix     byte = 'm'
)

var (
	maxDecidedKey  = metaKey("max_decided")
	proposalSeqKey = metaKey("seq")
)

func schemaKey(namespace string) []byte {
	k := make([]byte, 1+len(namespace))
	k[0] = schemaPrefix
	copy(k[1:], namespace)
	return k
}

func metaKey(name string) []byte {
	k := make([]byte, 1+len(name))
	k[0] = metaPrefix
	copy(k[1:], name)
	return k
}

// decidedKey is 'd' followed by the big-endian height,
// so decided values sort by height.
func decidedKey(h cvconsensus.Height) []byte {
	k := make([]byte, 1+8)
	k[0] = decidedPrefix
	binary.BigEndian.PutUint64(k[1:], uint64(h))
	return k
}

// roundPrefix is the common prefix of every proposal key at (h, r).
func roundPrefix(h cvconsensus.Height, r cvconsensus.Round) []byte {
	k := make([]byte, 1+8+4)
	k[0] = proposalPrefix
	binary.BigEndian.PutUint64(k[1:], uint64(h))
	binary.BigEndian.PutUint32(k[9:], uint32(r))
	return k
}

func proposalKey(h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID) []byte {
	return append(roundPrefix(h, r), id...)
}

// PrefixEnd returns the smallest key greater than every key beginning with prefix,
// for use as an exclusive upper bound in range iteration.
// It returns nil if no such key exists, as when prefix is all 0xff bytes.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func putUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func getUint64(b []byte) (uint64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(b), true
}
