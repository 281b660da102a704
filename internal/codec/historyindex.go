// Package codec implements the fixed and variable-length binary record
// formats described in spec.md §4.2: HistoryIndexNode, DataLogEntry /
// ValueDataLogEntry, and MainIndexEntry. All integers are little-endian
// and unsigned; every codec here round-trips exactly.
package codec

import (
	"fmt"

	"github.com/chiefnoah/histkv/txid"
)

// MaxChildren is the fixed fan-out F for HistoryIndexNode and
// MainIndexEntry. Duplicated from the root package's constant (rather than
// imported) to keep this package free of a dependency on histkv, which
// itself depends on codec.
const MaxChildren = 170

// childSize is the encoded size of one HistoryIndexNode child entry:
// flags(1) + tx(16) + off_or_val(8) + len_or_val(8).
const childSize = 1 + 16 + 8 + 8

// HistoryIndexNodeSize is the fixed on-disk size of every HistoryIndexNode
// record: depth(2) + MaxChildren*childSize.
const HistoryIndexNodeSize = 2 + childSize*MaxChildren

// HistoryChildFlag bit 0 distinguishes an inline value (the off/len pair
// carries a value directly, for depth-0 children whose value fits in the
// 16 available bytes) from an indirect one (the off/len pair is an
// offset+length into the data log, or a child node offset for depth>0
// children).
const HistoryChildFlagInline = 1 << 0

// HistoryChildFlagDeleted marks a depth-0 child whose write was a delete:
// OffsetOrValue/LengthOrValue carry no meaningful payload.
const HistoryChildFlagDeleted = 1 << 1

// HistoryChild is one entry of a HistoryIndexNode. At depth 0, TX is the
// entry's own transaction number and OffsetOrValue/LengthOrValue locate
// its value (inline or in the data log). At depth > 0, TX is the maximum
// transaction number of the child subtree and OffsetOrValue is the child
// HistoryIndexNode's offset.
type HistoryChild struct {
	Flags          uint8
	TX             txid.TX
	OffsetOrValue  uint64
	LengthOrValue  uint64
}

// Inline reports whether this child carries its value inline rather than
// pointing at the data log.
func (c HistoryChild) Inline() bool {
	return c.Flags&HistoryChildFlagInline != 0
}

// Deleted reports whether this depth-0 child represents a delete.
func (c HistoryChild) Deleted() bool {
	return c.Flags&HistoryChildFlagDeleted != 0
}

// HistoryIndexNode is a fixed-size, always-full B-tree node indexing
// HistoryRecords by TX. Records with fewer than MaxChildren real entries
// are not representable on disk; callers pad with sentinel children.
type HistoryIndexNode struct {
	Depth    uint16
	Children [MaxChildren]HistoryChild
}

// NewHistoryIndexNode validates that children has exactly MaxChildren
// entries and returns a HistoryIndexNode wrapping them.
func NewHistoryIndexNode(depth uint16, children []HistoryChild) (*HistoryIndexNode, error) {
	if len(children) != MaxChildren {
		return nil, &InvalidRecordError{Reason: fmt.Sprintf(
			"history index node must have exactly %d children, got %d", MaxChildren, len(children))}
	}
	node := &HistoryIndexNode{Depth: depth}
	copy(node.Children[:], children)
	return node, nil
}

// Serialize encodes the node to its fixed HistoryIndexNodeSize byte form.
func (n *HistoryIndexNode) Serialize() []byte {
	buf := make([]byte, HistoryIndexNodeSize)
	buf[0] = byte(n.Depth)
	buf[1] = byte(n.Depth >> 8)
	for i, child := range n.Children {
		off := 2 + i*childSize
		buf[off] = child.Flags
		txBytes := child.TX.Bytes()
		copy(buf[off+1:off+17], txBytes[:])
		putU64(buf[off+17:off+25], child.OffsetOrValue)
		putU64(buf[off+25:off+33], child.LengthOrValue)
	}
	return buf
}

// DeserializeHistoryIndexNode decodes a HistoryIndexNode from exactly
// HistoryIndexNodeSize bytes.
func DeserializeHistoryIndexNode(buf []byte) (*HistoryIndexNode, error) {
	if len(buf) != HistoryIndexNodeSize {
		return nil, &InvalidRecordError{Reason: fmt.Sprintf(
			"history index node buffer must be %d bytes, got %d", HistoryIndexNodeSize, len(buf))}
	}
	node := &HistoryIndexNode{
		Depth: uint16(buf[0]) | uint16(buf[1])<<8,
	}
	for i := 0; i < MaxChildren; i++ {
		off := 2 + i*childSize
		node.Children[i] = HistoryChild{
			Flags:         buf[off],
			TX:            txid.FromBytes(buf[off+1 : off+17]),
			OffsetOrValue: getU64(buf[off+17 : off+25]),
			LengthOrValue: getU64(buf[off+25 : off+33]),
		}
	}
	return node, nil
}

func putU64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

func getU64(buf []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v
}
