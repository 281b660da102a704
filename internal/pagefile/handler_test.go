package pagefile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerAppendAndRead(t *testing.T) {
	h := NewHandler(NewMemStream(), 0, 0)

	off1, err := h.Write(nil, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(0), off1)

	off2, err := h.Write(nil, []byte("world!"))
	require.NoError(t, err)
	require.Equal(t, int64(5), off2)

	got, err := h.Read(off1, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	got2, err := h.Read(off2, 6)
	require.NoError(t, err)
	require.Equal(t, []byte("world!"), got2)

	require.Equal(t, int64(11), h.Size())
}

func TestHandlerExplicitOffsetOverwrite(t *testing.T) {
	h := NewHandler(NewMemStream(), 0, 0)
	_, err := h.Write(nil, []byte("aaaa"))
	require.NoError(t, err)

	zero := int64(0)
	_, err = h.Write(&zero, []byte("bbbb"))
	require.NoError(t, err)

	got, err := h.Read(0, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("bbbb"), got)
}

func TestHandlerPageSizeEnforced(t *testing.T) {
	h := NewHandler(NewMemStream(), 0, 8)

	_, err := h.Write(nil, []byte("short"))
	require.Error(t, err)

	_, err = h.Write(nil, []byte("exactly8"))
	require.NoError(t, err)

	_, err = h.Read(0, 4)
	require.Error(t, err)

	got, err := h.Read(0, 8)
	require.NoError(t, err)
	require.Equal(t, []byte("exactly8"), got)
}

func TestHandlerShortReadErrors(t *testing.T) {
	h := NewHandler(NewMemStream(), 0, 0)
	_, err := h.Write(nil, []byte("hi"))
	require.NoError(t, err)

	_, err = h.Read(0, 10)
	require.Error(t, err)
}

func TestHandlerReopenPreservesSize(t *testing.T) {
	stream := NewMemStream()
	h1 := NewHandler(stream, 0, 0)
	_, err := h1.Write(nil, []byte("persisted"))
	require.NoError(t, err)

	h2 := NewHandler(stream, h1.Size(), 0)
	off, err := h2.Write(nil, []byte("more"))
	require.NoError(t, err)
	require.Equal(t, int64(9), off)
}
