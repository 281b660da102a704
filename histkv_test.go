package histkv

import (
	"fmt"
	"testing"

	"github.com/chiefnoah/histkv/internal/datalog"
	"github.com/chiefnoah/histkv/internal/history"
	"github.com/chiefnoah/histkv/internal/pagefile"
	"github.com/chiefnoah/histkv/internal/codec"
	"github.com/chiefnoah/histkv/txid"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T) *BufferedBTree {
	t.Helper()
	historyIO := pagefile.NewHandler(pagefile.NewMemStream(), 0, codec.HistoryIndexNodeSize)
	dataIO := pagefile.NewHandler(pagefile.NewMemStream(), 0, 0)
	log := datalog.NewLogger(dataIO, nil)
	searcher := history.NewSearcher(historyIO, log, 64)
	return NewBufferedBTree(historyIO, log, searcher, txid.Zero)
}

func TestPutGetRoundTrip(t *testing.T) {
	tree := newTestTree(t)
	_, err := tree.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)

	v, ok := tree.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	_, ok = tree.Get([]byte("missing"))
	require.False(t, ok)
}

func TestPutOverwriteKeepsHistory(t *testing.T) {
	tree := newTestTree(t)
	tx1, err := tree.Put([]byte("k"), []byte("v1"))
	require.NoError(t, err)
	tx2, err := tree.Put([]byte("k"), []byte("v2"))
	require.NoError(t, err)
	require.True(t, tx1.Less(tx2))

	v, found, err := tree.AsOf([]byte("k"), tx1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), v)

	v, found, err = tree.AsOf([]byte("k"), tx2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v2"), v)

	v, ok := tree.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v2"), v)
}

func TestAsOfBeforeFirstWriteReturnsNotFound(t *testing.T) {
	tree := newTestTree(t)
	// Start at epoch 1 so the first write lands at tx 1 and tx 0 precedes it.
	tree.nextTX = txid.FromUint64(1)
	tx1, err := tree.Put([]byte("k"), []byte("v1"))
	require.NoError(t, err)

	_, found, err := tree.AsOf([]byte("k"), txid.Zero)
	require.NoError(t, err)
	require.False(t, found)
	_ = tx1
}

func TestDeleteTombstonesKey(t *testing.T) {
	tree := newTestTree(t)
	txPut, err := tree.Put([]byte("k"), []byte("v1"))
	require.NoError(t, err)
	txDel, err := tree.Delete([]byte("k"))
	require.NoError(t, err)
	require.True(t, txPut.Less(txDel))

	_, ok := tree.Get([]byte("k"))
	require.False(t, ok)

	v, found, err := tree.AsOf([]byte("k"), txPut)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), v)

	_, found, err = tree.AsOf([]byte("k"), txDel)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteNonexistentKeyIsNoOp(t *testing.T) {
	tree := newTestTree(t)
	before := tree.nextTX
	tx, err := tree.Delete([]byte("nope"))
	require.NoError(t, err)
	require.Equal(t, before, tx)
	require.Equal(t, before, tree.nextTX)
}

func TestDeleteAlreadyDeletedKeyIsNoOp(t *testing.T) {
	tree := newTestTree(t)
	_, err := tree.Put([]byte("k"), []byte("v"))
	require.NoError(t, err)
	_, err = tree.Delete([]byte("k"))
	require.NoError(t, err)

	before := tree.nextTX
	tx, err := tree.Delete([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, before, tx)
	require.Equal(t, before, tree.nextTX)
}

func TestTreeSplitsAcrossManyKeys(t *testing.T) {
	tree := newTestTree(t)
	const n = 500
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		_, err := tree.Put(key, []byte(fmt.Sprintf("val-%d", i)))
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		v, ok := tree.Get(key)
		require.True(t, ok, "key %s", key)
		require.Equal(t, fmt.Sprintf("val-%d", i), string(v))
	}
}

func TestHistorySpillsToDiskAndAsOfResolves(t *testing.T) {
	tree := newTestTree(t)
	var txs []txid.TX
	values := make([]string, 0, LeafHistoryCapacity+1)
	for i := 0; i < LeafHistoryCapacity+1; i++ {
		val := fmt.Sprintf("v%d", i)
		values = append(values, val)
		tx, err := tree.Put([]byte("spilly"), []byte(val))
		require.NoError(t, err)
		txs = append(txs, tx)
	}

	// The first LeafHistoryCapacity writes are now off the in-memory
	// buffer (spilled); the searcher must resolve them from disk.
	v, found, err := tree.AsOf([]byte("spilly"), txs[0])
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, values[0], string(v))

	v, found, err = tree.AsOf([]byte("spilly"), txs[LeafHistoryCapacity/2])
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, values[LeafHistoryCapacity/2], string(v))

	// The final write is still the live current value.
	v, ok := tree.Get([]byte("spilly"))
	require.True(t, ok)
	require.Equal(t, values[len(values)-1], string(v))
}

func TestWatchReceivesMutationEvents(t *testing.T) {
	tree := newTestTree(t)
	ch, unsub := tree.Watch()
	defer unsub()

	tx, err := tree.Put([]byte("k"), []byte("v"))
	require.NoError(t, err)

	ev := <-ch
	require.Equal(t, "k", string(ev.Key))
	require.Equal(t, tx, ev.TX)
	require.False(t, ev.Deleted)
}

func TestBatchCommitAppliesAllOperations(t *testing.T) {
	tree := newTestTree(t)
	_, err := tree.Put([]byte("existing"), []byte("v0"))
	require.NoError(t, err)

	b := NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	b.Delete([]byte("existing"))

	_, err = b.Commit(tree)
	require.NoError(t, err)

	v, ok := tree.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
	_, ok = tree.Get([]byte("existing"))
	require.False(t, ok)
}

func TestBatchRollbackDiscardsQueuedOps(t *testing.T) {
	tree := newTestTree(t)
	b := NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Rollback()

	_, err := b.Commit(tree)
	require.NoError(t, err)
	_, ok := tree.Get([]byte("a"))
	require.False(t, ok)
}

func TestPutRejectsOversizedValue(t *testing.T) {
	tree := newTestTree(t)
	big := make([]byte, MaxValueSize+1)
	_, err := tree.Put([]byte("k"), big)
	require.Error(t, err)
}
