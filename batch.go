package histkv

import (
	"sync"

	"github.com/chiefnoah/histkv/txid"
)

// Batch queues a sequence of Put/Delete operations to apply together,
// adapted from lib/transactions.go's TransactionManager: the same
// begin/add-operation/commit/rollback shape, collapsed from a
// server-side registry keyed by transaction ID (the demo protocol now
// owns that keying, see protocol.go) down to the operation queue itself.
//
// Batch is not a true ACID transaction: each queued operation is applied
// directly against the tree's own exclusive lock and assigned its own TX
// as usual, so a failure partway through Commit leaves earlier operations
// applied. Full multi-key atomicity would need a redo/undo log, which is
// out of scope (spec.md's Non-goals exclude a crash-recovery protocol,
// and atomicity without recovery is of limited value).
type Batch struct {
	mu  sync.Mutex
	ops []batchOp
}

type batchOp struct {
	key     []byte
	value   []byte
	deleted bool
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put queues a write.
func (b *Batch) Put(key, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp{key: key, value: value})
}

// Delete queues a tombstone.
func (b *Batch) Delete(key []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp{key: key, deleted: true})
}

// Rollback discards all queued operations without applying them.
func (b *Batch) Rollback() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
}

// Commit applies every queued operation, in order, against tree. It
// returns the TX assigned to the last applied operation and stops at the
// first error.
func (b *Batch) Commit(tree *BufferedBTree) (txid.TX, error) {
	b.mu.Lock()
	ops := b.ops
	b.ops = nil
	b.mu.Unlock()

	last := txid.Zero
	for _, op := range ops {
		var (
			tx  txid.TX
			err error
		)
		if op.deleted {
			tx, err = tree.Delete(op.key)
		} else {
			tx, err = tree.Put(op.key, op.value)
		}
		if err != nil {
			return last, err
		}
		last = tx
	}
	return last, nil
}
