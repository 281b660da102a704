package histkv

import "github.com/zeebo/xxh3"

// Checksum returns a fast, non-cryptographic hash of value, for callers
// that want to verify a value round-tripped through the data log
// unchanged without re-reading and byte-comparing the whole payload.
func Checksum(value []byte) uint64 {
	return xxh3.Hash(value)
}
