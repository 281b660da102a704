package histkv

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/chiefnoah/histkv/internal/codec"
	"github.com/chiefnoah/histkv/internal/datalog"
	"github.com/chiefnoah/histkv/internal/history"
	"github.com/chiefnoah/histkv/internal/pagefile"
	"github.com/chiefnoah/histkv/txid"
)

// frame is one step of a root-to-leaf descent: the intermediate node
// visited and the index of the child that was followed.
type frame struct {
	node *IntermediateNode
	idx  int
}

// BufferedBTree is the engine's top-level structure (spec.md §4.5): an
// in-memory B-tree over byte keys whose leaves additionally buffer recent
// write history, spilling to the on-disk history index once a leaf's
// buffer fills. Mutating operations run under a single coarse lock,
// matching the source's "public operations under an exclusive lock"
// model -- concurrent readers are not a goal here (spec.md's Non-goals).
type BufferedBTree struct {
	mu     sync.Mutex
	root   node
	nextTX txid.TX

	historyIO *pagefile.Handler
	dataLog   *datalog.Logger
	searcher  *history.Searcher

	watchers *watchHub
}

// NewBufferedBTree constructs an empty tree. historyIO and dataLog back
// the on-disk history index and value log; searcher resolves as_of
// queries against them. startTX is the first transaction number the tree
// will assign (spec.md calls this tx_epoch).
func NewBufferedBTree(historyIO *pagefile.Handler, dataLog *datalog.Logger, searcher *history.Searcher, startTX txid.TX) *BufferedBTree {
	return &BufferedBTree{
		historyIO: historyIO,
		dataLog:   dataLog,
		searcher:  searcher,
		nextTX:    startTX,
		watchers:  newWatchHub(),
	}
}

// Watch registers a channel to receive every successful mutation. See
// notify.go.
func (t *BufferedBTree) Watch() (<-chan Event, func()) {
	return t.watchers.subscribe()
}

// descend walks from the root to the leaf whose key range contains
// target, recording each intermediate hop. Returns (nil, nil) if the tree
// is empty.
func (t *BufferedBTree) descend(target []byte) ([]frame, *LeafNode) {
	if t.root == nil {
		return nil, nil
	}
	var frames []frame
	cur := t.root
	for {
		switch n := cur.(type) {
		case *LeafNode:
			return frames, n
		case *IntermediateNode:
			idx, child := n.findChild(target)
			frames = append(frames, frame{node: n, idx: idx})
			cur = child
		default:
			return frames, nil
		}
	}
}

// Put writes value for key, assigning it the next transaction number.
// Overwriting an existing key pushes its prior state onto that leaf's
// history buffer (spec.md §4.1 "put").
func (t *BufferedBTree) Put(key, value []byte) (txid.TX, error) {
	if len(value) > MaxValueSize {
		return txid.Zero, fmt.Errorf("histkv: value of %d bytes exceeds MaxValueSize (%d)", len(value), MaxValueSize)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tx := t.nextTX
	t.nextTX = t.nextTX.Next()

	if t.root == nil {
		t.root = NewLeafNode(key, value, tx, FlagPersistHistory, false)
		t.watchers.publish(Event{Key: key, TX: tx, Deleted: false})
		return tx, nil
	}

	frames, leaf := t.descend(key)
	if leaf != nil && bytes.Equal(leaf.Key(), key) {
		_, spill := leaf.AddRecord(value, tx, false)
		if spill != nil {
			if err := t.spillLeafHistory(leaf, spill); err != nil {
				return tx, err
			}
		}
		t.watchers.publish(Event{Key: key, TX: tx, Deleted: false})
		return tx, nil
	}

	newLeaf := NewLeafNode(key, value, tx, FlagPersistHistory, false)
	if err := t.insertLeaf(frames, leaf, key, newLeaf); err != nil {
		return tx, err
	}
	t.watchers.publish(Event{Key: key, TX: tx, Deleted: false})
	return tx, nil
}

// Delete tombstones key, assigning it the next transaction number.
// Deleting a key that does not currently exist (absent, or already
// deleted) is a documented no-op: it returns the tree's current nextTX
// unchanged and a nil error, consuming no transaction number (spec.md
// §4.5 step 3, §7, §8 Property 3).
func (t *BufferedBTree) Delete(key []byte) (txid.TX, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, leaf := t.descend(key)
	if leaf == nil || !bytes.Equal(leaf.Key(), key) {
		return t.nextTX, nil
	}
	if _, ok := leaf.CurrentValue(); !ok {
		return t.nextTX, nil
	}

	tx := t.nextTX
	t.nextTX = t.nextTX.Next()

	_, spill := leaf.AddRecord(nil, tx, true)
	if spill != nil {
		if err := t.spillLeafHistory(leaf, spill); err != nil {
			return tx, err
		}
	}
	t.watchers.publish(Event{Key: key, TX: tx, Deleted: true})
	return tx, nil
}

// Get returns key's current value, or (nil, false) if it does not exist
// or was deleted.
func (t *BufferedBTree) Get(key []byte) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, leaf := t.descend(key)
	if leaf == nil || !bytes.Equal(leaf.Key(), key) {
		return nil, false
	}
	return leaf.CurrentValue()
}

// AsOf returns the value key held at transaction tx, resolving to the
// on-disk history index via the shared Searcher when the answer has
// already spilled out of the leaf's in-memory buffer (spec.md §4.1
// "as_of").
func (t *BufferedBTree) AsOf(key []byte, tx txid.TX) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, leaf := t.descend(key)

	if leaf == nil || !bytes.Equal(leaf.Key(), key) {
		return nil, false, nil
	}
	res := leaf.AsOf(tx)
	if res.Pending != nil {
		return t.searcher.Resolve(res.Pending.Offset, res.Pending.TX)
	}
	return res.Value, res.Found, nil
}

// AllKeys invokes fn for every leaf in key order. Used by introspection
// tooling (cmd/histkv-demo's dump command), not by the hot read/write
// path.
func (t *BufferedBTree) AllKeys(fn func(key, value []byte, deleted bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch n := t.root.(type) {
	case nil:
		return
	case *LeafNode:
		v, ok := n.CurrentValue()
		fn(n.Key(), v, !ok)
	case *IntermediateNode:
		n.allLeaves(func(l *LeafNode) {
			v, ok := l.CurrentValue()
			fn(l.Key(), v, !ok)
		})
	}
}

// insertLeaf links newLeaf into the tree at the position described by
// frames (the path taken while searching for key), per spec.md §4.5
// steps 3-5.
func (t *BufferedBTree) insertLeaf(frames []frame, existingLeafAtPath *LeafNode, key []byte, newLeaf *LeafNode) error {
	if len(frames) == 0 {
		// The root was a single leaf (or empty, handled earlier); promote
		// to a two-child intermediate root.
		left, right := orderLeaves(existingLeafAtPath, newLeaf)
		t.root = NewIntermediateNode([]intermediateChild{
			{key: left.maxKey(), child: left},
			{key: right.maxKey(), child: right},
		})
		return nil
	}
	return t.insertWithSplit(frames, len(frames)-1, key, newLeaf)
}

// insertWithSplit inserts (key, child) into frames[i].node, widening
// ancestor separators on a plain success (spec.md §4.5 step 5). If the
// node is already full, it splits the node (spec.md §4.4 split), places
// (key, child) into whichever half it now belongs -- guaranteed to fit,
// since a fresh split leaves each half far under MaxChildren -- and
// propagates the new sibling up to the parent frame, recursing through
// any further NodeFull and promoting a new root if the split reaches the
// top of the stack (spec.md §4.5 split_nodes).
func (t *BufferedBTree) insertWithSplit(frames []frame, i int, key []byte, child node) error {
	n := frames[i].node
	if err := n.insertChild(key, child); err == nil {
		t.fixupAncestors(frames, i)
		return nil
	} else if _, ok := err.(*NodeFullError); !ok {
		return err
	}

	right := n.split()
	target := n
	if bytes.Compare(key, n.maxKey()) > 0 {
		target = right
	}
	if err := target.insertChild(key, child); err != nil {
		return &UnreachableStateError{Reason: "freshly split node rejected its one pending insert"}
	}

	if i == 0 {
		t.root = NewIntermediateNode([]intermediateChild{
			{key: n.maxKey(), child: n},
			{key: right.maxKey(), child: right},
		})
		return nil
	}
	frames[i-1].node.replaceChild(frames[i-1].idx, n.maxKey(), n)
	return t.insertWithSplit(frames, i-1, right.maxKey(), right)
}

// fixupAncestors widens each ancestor's separator key to match
// frames[i].node's (possibly newly extended) maximum key, stopping at
// the first ancestor whose range already covers it (spec.md §4.5 step 5).
func (t *BufferedBTree) fixupAncestors(frames []frame, i int) {
	cur := frames[i].node
	for i > 0 {
		parent := frames[i-1].node
		existing := parent.childAt(frames[i-1].idx)
		if bytes.Compare(cur.maxKey(), existing.key) <= 0 {
			return
		}
		parent.updateSeparator(frames[i-1].idx, cur.maxKey())
		cur = parent
		i--
	}
}

// orderLeaves returns a and b in ascending key order.
func orderLeaves(a, b *LeafNode) (*LeafNode, *LeafNode) {
	if bytes.Compare(a.Key(), b.Key()) <= 0 {
		return a, b
	}
	return b, a
}

// spillLeafHistory persists a full LeafHistoryCapacity batch of history
// records to the data log and a new on-disk HistoryIndexNode, per
// spec.md §4.2/§4.6. Each record's value (if not a delete) is written to
// the data log as a ValueDataLogEntry back-referencing the leaf's own key
// entry, written lazily on first spill.
func (t *BufferedBTree) spillLeafHistory(leaf *LeafNode, batch []HistoryRecord) error {
	if keyBytes, needsWrite := leaf.NeedsKeyLogWrite(); needsWrite {
		off, err := t.dataLog.WriteKey(keyBytes)
		if err != nil {
			return err
		}
		leaf.RecordKeyLogOffset(off)
	}

	children := make([]codec.HistoryChild, len(batch))
	for i, rec := range batch {
		if rec.Deleted {
			children[i] = codec.HistoryChild{Flags: codec.HistoryChildFlagDeleted, TX: rec.TX}
			continue
		}
		valOffset, err := t.dataLog.WriteValue(uint64(leaf.KeyLogOffset()), rec.Value)
		if err != nil {
			return err
		}
		children[i] = codec.HistoryChild{TX: rec.TX, OffsetOrValue: uint64(valOffset), LengthOrValue: uint64(len(rec.Value))}
	}

	histNode, err := codec.NewHistoryIndexNode(0, children)
	if err != nil {
		return err
	}
	offset, err := t.historyIO.Write(nil, histNode.Serialize())
	if err != nil {
		return err
	}
	leaf.RecordSpill(offset, batch[0].TX)
	return nil
}
