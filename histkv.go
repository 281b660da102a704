// Package histkv implements a versioned, ordered key-value engine: an
// in-memory B-tree over byte keys where every leaf keeps a bounded buffer
// of prior writes, spilling to an on-disk history index once that buffer
// fills. Querying as_of(key, tx) recovers whatever value was current at
// transaction tx, whether that answer lives in the in-memory buffer or
// has already been spilled to disk.
//
// The engine is a single-writer/single-reader design: every public
// BufferedBTree method serializes on one mutex per tree. See tree.go,
// leaf.go and intermediate.go for the node implementations, and
// internal/codec, internal/pagefile, internal/datalog and internal/history
// for the on-disk formats and I/O layer.
package histkv

import "github.com/chiefnoah/histkv/txid"

// Version is the current release of the histkv module.
const Version = "v0.1.0"

// ShowVersion returns the current version string, mirroring the teacher
// package's top-level version accessor.
func ShowVersion() string {
	return Version
}

// TX is the engine's 128-bit transaction number. It is an alias of
// txid.TX so that internal/codec (which must not import this package, to
// avoid a cycle) can share the exact same representation.
type TX = txid.TX

// ZeroTX is the TX value meaning "before any write".
var ZeroTX = txid.Zero

// TXFromUint64 builds a TX from a plain 64-bit epoch/counter value.
func TXFromUint64(v uint64) TX { return txid.FromUint64(v) }

// Serializable is implemented by anything that can be turned into its
// canonical on-disk byte form. BufferedBTree's methods take plain []byte
// keys and values; Key and Value below implement it over []byte.
type Serializable interface {
	Serialize() []byte
}

// Key is the default Serializable byte-key implementation: opaque,
// non-empty, ordered lexicographically via bytes.Compare.
type Key []byte

// Serialize returns the key's canonical byte form (itself).
func (k Key) Serialize() []byte { return []byte(k) }

// Value is the default Serializable byte-value implementation: opaque,
// up to MaxValueSize bytes.
type Value []byte

// Serialize returns the value's canonical byte form (itself).
func (v Value) Serialize() []byte { return []byte(v) }
