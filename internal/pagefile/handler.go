// Package pagefile implements the mutex-protected, offset-addressed byte
// stream I/O layer shared by the history index and the data log. It is the
// Go counterpart of the teacher's lib/kayveedb.go disk access and the
// source's hist_prototype/storage.py IOHandler.
package pagefile

import (
	"fmt"
	"io"
	"sync"
)

// Stream is anything a Handler can read from and write to at explicit
// offsets. *os.File satisfies it directly; tests use an in-memory
// implementation (see mem.go).
type Stream interface {
	io.ReaderAt
	io.WriterAt
}

// InvalidWriteRequestError is returned when a write/read violates the
// handler's page-size contract, or when the underlying stream returns
// fewer bytes than requested.
type InvalidWriteRequestError struct {
	Reason string
}

func (e *InvalidWriteRequestError) Error() string {
	return fmt.Sprintf("invalid write request: %s", e.Reason)
}

// Handler is a mutex-protected wrapper around a random-access byte stream.
// Write(nil, bytes) appends at end-of-stream and returns the offset it
// chose; Write(&offset, bytes) writes at that explicit offset. Read
// requires the exact number of bytes requested; short reads fail. When
// PageSize is non-zero, every write must supply exactly PageSize bytes and
// every read must request exactly PageSize bytes.
type Handler struct {
	mu       sync.Mutex
	stream   Stream
	size     int64
	pageSize int
}

// NewHandler wraps stream, whose current logical length is initialSize
// (typically os.Stat(...).Size() for a reopened file, or 0 for a fresh
// one). pageSize of 0 disables the fixed-page-size contract.
func NewHandler(stream Stream, initialSize int64, pageSize int) *Handler {
	return &Handler{stream: stream, size: initialSize, pageSize: pageSize}
}

// PageSize reports the handler's configured fixed page size, or 0.
func (h *Handler) PageSize() int {
	return h.pageSize
}

// Write writes data at offset, or appends it if offset is nil, returning
// the offset actually written to.
func (h *Handler) Write(offset *int64, data []byte) (int64, error) {
	if h.pageSize != 0 && len(data) != h.pageSize {
		return 0, &InvalidWriteRequestError{Reason: fmt.Sprintf(
			"write of %d bytes does not match page size %d", len(data), h.pageSize)}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	var off int64
	if offset == nil {
		off = h.size
	} else {
		off = *offset
	}

	n, err := h.stream.WriteAt(data, off)
	if err != nil {
		return 0, fmt.Errorf("pagefile: write at offset %d: %w", off, err)
	}
	if n != len(data) {
		return 0, &InvalidWriteRequestError{Reason: fmt.Sprintf(
			"short write: wrote %d of %d bytes", n, len(data))}
	}
	if end := off + int64(n); end > h.size {
		h.size = end
	}
	return off, nil
}

// Read reads exactly size bytes at offset. A short read is an error.
func (h *Handler) Read(offset int64, size int) ([]byte, error) {
	if h.pageSize != 0 && size != h.pageSize {
		return nil, &InvalidWriteRequestError{Reason: fmt.Sprintf(
			"read of %d bytes does not match page size %d", size, h.pageSize)}
	}
	buf := make([]byte, size)
	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.stream.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("pagefile: read at offset %d: %w", offset, err)
	}
	if n != size {
		return nil, &InvalidWriteRequestError{Reason: fmt.Sprintf(
			"short read: read %d of %d bytes at offset %d", n, size, offset)}
	}
	return buf, nil
}

// Size returns the handler's current notion of end-of-stream, i.e. the
// offset the next unpositioned Write would use.
func (h *Handler) Size() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}
