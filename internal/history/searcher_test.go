package history

import (
	"testing"

	"github.com/chiefnoah/histkv/internal/codec"
	"github.com/chiefnoah/histkv/internal/datalog"
	"github.com/chiefnoah/histkv/internal/pagefile"
	"github.com/chiefnoah/histkv/txid"
	"github.com/stretchr/testify/require"
)

// buildPaddedNode returns a full MaxChildren-wide HistoryIndexNode whose
// first len(real) entries are the given children and the rest are
// deleted sentinels with strictly increasing TX values far beyond any
// target used in these tests, so they never spuriously match.
func buildPaddedNode(t *testing.T, depth uint16, real []codec.HistoryChild) *codec.HistoryIndexNode {
	t.Helper()
	children := make([]codec.HistoryChild, codec.MaxChildren)
	copy(children, real)
	for i := len(real); i < codec.MaxChildren; i++ {
		children[i] = codec.HistoryChild{
			Flags: codec.HistoryChildFlagDeleted,
			TX:    txid.FromUint64(uint64(100000 + i)),
		}
	}
	node, err := codec.NewHistoryIndexNode(depth, children)
	require.NoError(t, err)
	return node
}

func newEnv(t *testing.T) (*pagefile.Handler, *datalog.Logger, *Searcher) {
	t.Helper()
	historyIO := pagefile.NewHandler(pagefile.NewMemStream(), 0, codec.HistoryIndexNodeSize)
	dataIO := pagefile.NewHandler(pagefile.NewMemStream(), 0, 0)
	log := datalog.NewLogger(dataIO, nil)
	searcher := NewSearcher(historyIO, log, 8)
	return historyIO, log, searcher
}

func TestSearcherResolvesExactAndBetweenEntries(t *testing.T) {
	historyIO, log, searcher := newEnv(t)

	keyOff, err := log.WriteKey([]byte("k"))
	require.NoError(t, err)
	v10Off, err := log.WriteValue(uint64(keyOff), []byte("v10"))
	require.NoError(t, err)
	v20Off, err := log.WriteValue(uint64(keyOff), []byte("v20"))
	require.NoError(t, err)

	node := buildPaddedNode(t, 0, []codec.HistoryChild{
		{TX: txid.FromUint64(10), OffsetOrValue: uint64(v10Off), LengthOrValue: 3},
		{TX: txid.FromUint64(20), OffsetOrValue: uint64(v20Off), LengthOrValue: 3},
		{TX: txid.FromUint64(30), Flags: codec.HistoryChildFlagDeleted},
	})
	offset, err := historyIO.Write(nil, node.Serialize())
	require.NoError(t, err)

	val, found, err := searcher.Resolve(offset, txid.FromUint64(15))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v10"), val)

	val, found, err = searcher.Resolve(offset, txid.FromUint64(25))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v20"), val)

	val, found, err = searcher.Resolve(offset, txid.FromUint64(20))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v20"), val)
}

func TestSearcherResolvesDeleteAsNoValue(t *testing.T) {
	historyIO, _, searcher := newEnv(t)

	node := buildPaddedNode(t, 0, []codec.HistoryChild{
		{TX: txid.FromUint64(10)},
		{TX: txid.FromUint64(30), Flags: codec.HistoryChildFlagDeleted},
	})
	offset, err := historyIO.Write(nil, node.Serialize())
	require.NoError(t, err)

	val, found, err := searcher.Resolve(offset, txid.FromUint64(35))
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, val)
}

func TestSearcherWalksDepthOneRoot(t *testing.T) {
	historyIO, log, searcher := newEnv(t)

	keyOff, err := log.WriteKey([]byte("k"))
	require.NoError(t, err)
	v10Off, err := log.WriteValue(uint64(keyOff), []byte("v10"))
	require.NoError(t, err)

	leftLeaf := buildPaddedNode(t, 0, []codec.HistoryChild{
		{TX: txid.FromUint64(10), OffsetOrValue: uint64(v10Off), LengthOrValue: 3},
		{TX: txid.FromUint64(20)},
	})
	leftOffset, err := historyIO.Write(nil, leftLeaf.Serialize())
	require.NoError(t, err)

	rightLeaf := buildPaddedNode(t, 0, []codec.HistoryChild{
		{TX: txid.FromUint64(50), Flags: codec.HistoryChildFlagDeleted},
		{TX: txid.FromUint64(60), Flags: codec.HistoryChildFlagDeleted},
	})
	rightOffset, err := historyIO.Write(nil, rightLeaf.Serialize())
	require.NoError(t, err)

	root := buildPaddedNode(t, 1, []codec.HistoryChild{
		{TX: txid.FromUint64(20), OffsetOrValue: uint64(leftOffset)},
		{TX: txid.FromUint64(60), OffsetOrValue: uint64(rightOffset)},
	})
	rootOffset, err := historyIO.Write(nil, root.Serialize())
	require.NoError(t, err)

	_, found, err := searcher.Resolve(rootOffset, txid.FromUint64(15))
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = searcher.Resolve(rootOffset, txid.FromUint64(55))
	require.NoError(t, err)
	require.False(t, found) // deleted -> not found, same convention as Get
}

func TestSearcherResolvesNoneBeforeFirstEntry(t *testing.T) {
	historyIO, _, searcher := newEnv(t)

	node := buildPaddedNode(t, 0, []codec.HistoryChild{
		{TX: txid.FromUint64(10)},
	})
	offset, err := historyIO.Write(nil, node.Serialize())
	require.NoError(t, err)

	_, found, err := searcher.Resolve(offset, txid.FromUint64(1))
	require.NoError(t, err)
	require.False(t, found)
}
