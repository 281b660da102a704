package codec

import "fmt"

// mainIndexFlagsBytes is ceil(MaxChildren/8), the size of the per-child
// flags bitmap.
const mainIndexFlagsBytes = (MaxChildren + 7) / 8

// MainIndexEntrySize is the fixed on-disk size of a MainIndexEntry:
// depth(2) + flags bitmap + MaxChildren * 24-byte triples.
const MainIndexEntrySize = 2 + mainIndexFlagsBytes + 24*MaxChildren

// MainIndexChild is one (key_offset, node-or-value_offset, key-or-value
// length) triple of a MainIndexEntry, the on-disk projection of an
// IntermediateNode. At Depth > 0 these point at a child node's key and
// the child node's own offset; at Depth == 0 (a leaf's parent) they point
// at the key and the leaf's current value.
type MainIndexChild struct {
	KeyOffset   uint64
	ValueOffset uint64
	Length      uint64
}

// MainIndexEntry is the on-disk projection of an IntermediateNode.
type MainIndexEntry struct {
	Depth    uint16
	Flags    [MaxChildren]bool
	Children [MaxChildren]MainIndexChild
}

// NewMainIndexEntry validates that children has exactly MaxChildren
// entries.
func NewMainIndexEntry(depth uint16, flags []bool, children []MainIndexChild) (*MainIndexEntry, error) {
	if len(children) != MaxChildren {
		return nil, &InvalidRecordError{Reason: fmt.Sprintf(
			"main index entry must have exactly %d children, got %d", MaxChildren, len(children))}
	}
	if len(flags) != MaxChildren {
		return nil, &InvalidRecordError{Reason: fmt.Sprintf(
			"main index entry must have exactly %d flags, got %d", MaxChildren, len(flags))}
	}
	entry := &MainIndexEntry{Depth: depth}
	copy(entry.Flags[:], flags)
	copy(entry.Children[:], children)
	return entry, nil
}

// Serialize encodes the entry to its fixed MainIndexEntrySize byte form.
func (e *MainIndexEntry) Serialize() []byte {
	buf := make([]byte, MainIndexEntrySize)
	buf[0] = byte(e.Depth)
	buf[1] = byte(e.Depth >> 8)

	bitmap := buf[2 : 2+mainIndexFlagsBytes]
	for i, set := range e.Flags {
		if set {
			bitmap[i/8] |= 1 << (uint(i) % 8)
		}
	}

	base := 2 + mainIndexFlagsBytes
	for i, child := range e.Children {
		off := base + i*24
		putU64(buf[off:off+8], child.KeyOffset)
		putU64(buf[off+8:off+16], child.ValueOffset)
		putU64(buf[off+16:off+24], child.Length)
	}
	return buf
}

// DeserializeMainIndexEntry decodes a MainIndexEntry from exactly
// MainIndexEntrySize bytes.
func DeserializeMainIndexEntry(buf []byte) (*MainIndexEntry, error) {
	if len(buf) != MainIndexEntrySize {
		return nil, &InvalidRecordError{Reason: fmt.Sprintf(
			"main index entry buffer must be %d bytes, got %d", MainIndexEntrySize, len(buf))}
	}
	entry := &MainIndexEntry{Depth: uint16(buf[0]) | uint16(buf[1])<<8}

	bitmap := buf[2 : 2+mainIndexFlagsBytes]
	for i := range entry.Flags {
		entry.Flags[i] = bitmap[i/8]&(1<<(uint(i)%8)) != 0
	}

	base := 2 + mainIndexFlagsBytes
	for i := range entry.Children {
		off := base + i*24
		entry.Children[i] = MainIndexChild{
			KeyOffset:   getU64(buf[off : off+8]),
			ValueOffset: getU64(buf[off+8 : off+16]),
			Length:      getU64(buf[off+16 : off+24]),
		}
	}
	return entry, nil
}
