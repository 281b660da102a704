package histkv

import (
	"sync"

	"github.com/chiefnoah/histkv/txid"
)

// Leaf node flags (spec.md §4.3). Flags are XORed against DefaultFlags at
// construction time, so callers disable a default by explicitly setting
// its bit -- preserved from the source's "init_flags XOR DEFAULT_FLAGS"
// behavior even though DefaultFlags is presently zero.
const (
	FlagDeleted        uint8 = 1 << 0
	FlagPersistHistory uint8 = 1 << 1
	// DefaultFlags carries no bits set by default.
	DefaultFlags uint8 = 0
)

// HistoryRecord is one past state of a key: the value (absent iff
// Deleted) current as of TX, before it was overwritten.
type HistoryRecord struct {
	TX      txid.TX
	Value   []byte
	Deleted bool
}

// WriteRequest describes what must be persisted for a leaf's new current
// state: a snapshot the caller may choose to write to a persisted main
// index (spec.md §6: "Main index stream (when persisted)"). BufferedBTree
// does not itself persist the main index, but the type is part of
// LeafNode's public contract per spec.md §4.3.
type WriteRequest struct {
	Offset *int64
	Delete bool
	Value  []byte
	TX     txid.TX
}

// HistoryReadRequest asks the caller to resolve an as_of query against the
// on-disk history index rooted at Offset, for the given TX.
type HistoryReadRequest struct {
	Offset int64
	TX     txid.TX
}

// AsOfResult is the outcome of LeafNode.AsOf: either Pending is set (the
// caller must resolve via the history searcher) or Found reports whether
// a live value was located.
type AsOfResult struct {
	Value   []byte
	Found   bool
	Pending *HistoryReadRequest
}

// historyChunk records one spilled, on-disk HistoryIndexNode chunk for a
// leaf: its file offset and the smallest TX it holds. This bookkeeping is
// intentionally in-memory only (not persisted) -- see DESIGN.md's
// discussion of spec.md §9's open question on history_offset's shape.
type historyChunk struct {
	Offset int64
	MinTX  txid.TX
}

// LeafNode holds the latest state of one key plus a bounded in-memory
// buffer of its prior states, per spec.md §3/§4.3.
type LeafNode struct {
	mu sync.Mutex

	key     []byte
	value   []byte
	deleted bool
	flags   uint8
	tx      txid.TX

	history           []HistoryRecord
	historyWriteIndex int

	// historyOffset is the offset of the newest spilled chunk, matching
	// spec.md §3's field of the same name. It is 0 both before any spill
	// and when the first chunk sits at offset 0 of the history stream, so
	// AsOf checks chunks, not this field, to tell whether anything has
	// spilled. chunks tracks every spilled chunk for this leaf's lifetime
	// so AsOf can pick the right one to search.
	historyOffset int64
	chunks        []historyChunk

	// keyLogOffset/keyLogWritten track the one-time write of this leaf's
	// key bytes to the data log, which every later ValueDataLogEntry
	// written during a spill back-references (spec.md §4.2).
	keyLogOffset  int64
	keyLogWritten bool
}

// NewLeafNode constructs a leaf for key with its first value, written at
// tx. initFlags is XORed against DefaultFlags per spec.md §4.3.
func NewLeafNode(key []byte, value []byte, tx txid.TX, initFlags uint8, deleted bool) *LeafNode {
	v := value
	if deleted {
		v = nil
	}
	return &LeafNode{
		key:     key,
		value:   v,
		deleted: deleted,
		flags:   initFlags ^ DefaultFlags,
		tx:      tx,
	}
}

// Key returns the leaf's ordering key.
func (l *LeafNode) Key() []byte {
	return l.key
}

// CurrentTX returns the TX of the leaf's most recent write.
func (l *LeafNode) CurrentTX() txid.TX {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tx
}

// CurrentValue returns the leaf's current value, or (nil, false) if the
// most recent write was a delete.
func (l *LeafNode) CurrentValue() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deleted {
		return nil, false
	}
	return l.value, true
}

// PersistHistory reports whether this leaf's history buffer is ever
// spilled to disk (FlagPersistHistory).
func (l *LeafNode) PersistHistory() bool {
	return l.flags&FlagPersistHistory != 0
}

// AddRecord pushes the leaf's current state onto its history buffer and
// installs a new current state. It returns the WriteRequest describing
// the new current state and, if the history buffer just reached
// LeafHistoryCapacity, the batch of records that must be spilled (the
// caller -- BufferedBTree, which owns the IO handlers -- performs that
// I/O and reports the result back via RecordSpill).
func (l *LeafNode) AddRecord(value []byte, tx txid.TX, deleted bool) (*WriteRequest, []HistoryRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, HistoryRecord{TX: l.tx, Value: l.value, Deleted: l.deleted})

	l.tx = tx
	if deleted {
		value = nil
	}
	l.deleted = deleted
	l.value = value

	req := &WriteRequest{Delete: deleted, Value: value, TX: tx}

	var spill []HistoryRecord
	if len(l.history) == LeafHistoryCapacity {
		spill = l.history
		l.history = nil
		l.historyWriteIndex += LeafHistoryCapacity
	}
	return req, spill
}

// RecordSpill registers a freshly written chunk (offset, and the smallest
// TX it holds) against this leaf, advancing historyOffset.
func (l *LeafNode) RecordSpill(offset int64, minTX txid.TX) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chunks = append(l.chunks, historyChunk{Offset: offset, MinTX: minTX})
	l.historyOffset = offset
}

// NeedsKeyLogWrite reports whether this leaf's key has not yet been
// written to the data log, returning its bytes if so.
func (l *LeafNode) NeedsKeyLogWrite() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.keyLogWritten {
		return nil, false
	}
	return l.key, true
}

// RecordKeyLogOffset registers the offset at which this leaf's key bytes
// were written to the data log.
func (l *LeafNode) RecordKeyLogOffset(offset int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keyLogOffset = offset
	l.keyLogWritten = true
}

// KeyLogOffset returns the offset at which this leaf's key bytes were
// written to the data log. Only meaningful after NeedsKeyLogWrite has
// reported false (or RecordKeyLogOffset has been called).
func (l *LeafNode) KeyLogOffset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keyLogOffset
}

// AsOf resolves the value that was current at tx, per spec.md §4.3:
//   - tx >= current tx: the current value (none if deleted).
//   - tx older than the in-memory buffer's oldest entry, with history
//     already spilled: a HistoryReadRequest for the caller to resolve.
//   - otherwise: the last in-memory history entry with tx <= target.
func (l *LeafNode) AsOf(tx txid.TX) *AsOfResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !tx.Less(l.tx) {
		if l.deleted {
			return &AsOfResult{Found: false}
		}
		return &AsOfResult{Value: l.value, Found: true}
	}

	if len(l.history) > 0 && tx.Less(l.history[0].TX) && len(l.chunks) > 0 {
		return &AsOfResult{Pending: &HistoryReadRequest{Offset: l.chunkOffsetForLocked(tx), TX: tx}}
	}
	if len(l.history) == 0 {
		if len(l.chunks) > 0 {
			return &AsOfResult{Pending: &HistoryReadRequest{Offset: l.chunkOffsetForLocked(tx), TX: tx}}
		}
		return &AsOfResult{Found: false}
	}

	idx := -1
	for i, rec := range l.history {
		if rec.TX.Greater(tx) {
			break
		}
		idx = i
	}
	if idx == -1 {
		return &AsOfResult{Found: false}
	}
	rec := l.history[idx]
	if rec.Deleted {
		return &AsOfResult{Found: false}
	}
	return &AsOfResult{Value: rec.Value, Found: true}
}

// chunkOffsetForLocked returns the offset of the newest spilled chunk
// whose MinTX is <= tx -- the chunk that must hold the answer, since
// per-leaf chunks are created in strictly increasing TX order and cover
// contiguous TX ranges.
func (l *LeafNode) chunkOffsetForLocked(tx txid.TX) int64 {
	best := l.chunks[0].Offset
	for _, c := range l.chunks {
		if c.MinTX.Greater(tx) {
			break
		}
		best = c.Offset
	}
	return best
}

// ToWriteRequest snapshots the leaf's current state for persistence.
func (l *LeafNode) ToWriteRequest() *WriteRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &WriteRequest{Delete: l.deleted, Value: l.value, TX: l.tx}
}
