package codec

import (
	"testing"

	"github.com/chiefnoah/histkv/txid"
	"github.com/stretchr/testify/require"
)

// TestHistoryIndexNodeRoundTrip is scenario S6 from spec.md §8: construct a
// HistoryIndexNode(depth=3, children=[(1,i,2i,3i) | i in [0,F)]), serialize,
// deserialize, and expect every field recovered exactly.
func TestHistoryIndexNodeRoundTrip(t *testing.T) {
	children := make([]HistoryChild, MaxChildren)
	for i := range children {
		children[i] = HistoryChild{
			Flags:         1,
			TX:            txid.FromUint64(uint64(i)),
			OffsetOrValue: uint64(2 * i),
			LengthOrValue: uint64(3 * i),
		}
	}
	node, err := NewHistoryIndexNode(3, children)
	require.NoError(t, err)

	buf := node.Serialize()
	require.Len(t, buf, HistoryIndexNodeSize)

	got, err := DeserializeHistoryIndexNode(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(3), got.Depth)
	for i, child := range got.Children {
		require.Equal(t, uint8(1), child.Flags, "child %d", i)
		require.Equal(t, uint64(i), child.TX.Lo, "child %d", i)
		require.Equal(t, uint64(2*i), child.OffsetOrValue, "child %d", i)
		require.Equal(t, uint64(3*i), child.LengthOrValue, "child %d", i)
	}
}

func TestHistoryIndexNodeWrongChildCount(t *testing.T) {
	_, err := NewHistoryIndexNode(0, make([]HistoryChild, MaxChildren-1))
	require.Error(t, err)
	var invalid *InvalidRecordError
	require.ErrorAs(t, err, &invalid)
}

func TestDataLogEntryRoundTrip(t *testing.T) {
	entry := &DataLogEntry{Flags: 0, Data: []byte("the-key")}
	buf := entry.Serialize()

	flags, keyOffset, dataLen, err := DecodeDataLogHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint8(0), flags)
	require.Equal(t, uint64(0), keyOffset)
	require.Equal(t, len(entry.Data), dataLen)

	decoded := DecodeDataLogEntry(flags, keyOffset, buf[entry.HeaderSize():entry.HeaderSize()+dataLen])
	require.Equal(t, entry.Data, decoded.Data)
	require.False(t, decoded.IsValueEntry())
}

func TestValueDataLogEntryRoundTrip(t *testing.T) {
	entry := &DataLogEntry{Flags: DataLogValueFlag, KeyOffset: 42, Data: []byte("v1")}
	buf := entry.Serialize()

	flags, keyOffset, dataLen, err := DecodeDataLogHeader(buf)
	require.NoError(t, err)
	require.True(t, flags&DataLogValueFlag != 0)
	require.Equal(t, uint64(42), keyOffset)

	decoded := DecodeDataLogEntry(flags, keyOffset, buf[entry.HeaderSize():entry.HeaderSize()+dataLen])
	require.Equal(t, entry.Data, decoded.Data)
	require.Equal(t, uint64(42), decoded.KeyOffset)
	require.True(t, decoded.IsValueEntry())
}

func TestMainIndexEntryRoundTrip(t *testing.T) {
	children := make([]MainIndexChild, MaxChildren)
	flags := make([]bool, MaxChildren)
	for i := range children {
		children[i] = MainIndexChild{KeyOffset: uint64(i), ValueOffset: uint64(i * 2), Length: uint64(i * 3)}
		flags[i] = i%2 == 0
	}
	entry, err := NewMainIndexEntry(5, flags, children)
	require.NoError(t, err)

	buf := entry.Serialize()
	require.Len(t, buf, MainIndexEntrySize)

	got, err := DeserializeMainIndexEntry(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(5), got.Depth)
	for i := range got.Children {
		require.Equal(t, children[i], got.Children[i], "child %d", i)
		require.Equal(t, flags[i], got.Flags[i], "flag %d", i)
	}
}
