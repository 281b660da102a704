// Package datalog implements the Data Logger (spec.md §4.7): an append-only
// byte stream of variable-length key/value payloads, read back by offset.
// Grounded on original_source/hist_prototype/data_logger.py.
package datalog

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/chiefnoah/histkv/internal/codec"
	"github.com/chiefnoah/histkv/internal/pagefile"
	"github.com/klauspost/compress/s2"
)

// Logger appends DataLogEntry/ValueDataLogEntry records through a
// pagefile.Handler and reads them back by offset.
type Logger struct {
	io *pagefile.Handler
	// Cipher, when non-nil, seals every value payload written through
	// WriteValue (and opens it on Read) with XChaCha20-Poly1305, carried
	// over from the teacher's per-value AEAD encryption (see
	// SPEC_FULL.md §11.1). Keys, written through WriteKey, are never
	// encrypted, preserving the byte-lexicographic ordering the main index
	// relies on.
	Cipher cipher.AEAD
	// Compress, when true, s2-compresses every value payload before it is
	// (optionally) sealed. Keys are never compressed, for the same
	// ordering reason Cipher never touches them.
	Compress bool
}

// NewLogger wraps io. aead may be nil to disable at-rest encryption.
func NewLogger(io *pagefile.Handler, aead cipher.AEAD) *Logger {
	return &Logger{io: io, Cipher: aead}
}

// WriteKey appends a plain DataLogEntry (flags&1==0) holding a key's bytes
// and returns its offset.
func (l *Logger) WriteKey(data []byte) (int64, error) {
	entry := &codec.DataLogEntry{Flags: 0, Data: data}
	return l.io.Write(nil, entry.Serialize())
}

// WriteValue appends a ValueDataLogEntry (flags&1==1) pointing back at a
// prior key entry at keyOffset, and returns the value entry's own offset.
// If a Cipher is configured, data is sealed before it reaches the
// pagefile.Handler.
func (l *Logger) WriteValue(keyOffset uint64, data []byte) (int64, error) {
	payload := data
	if l.Compress {
		payload = s2.Encode(nil, payload)
	}
	if l.Cipher != nil {
		sealed, err := l.seal(payload)
		if err != nil {
			return 0, fmt.Errorf("datalog: seal value: %w", err)
		}
		payload = sealed
	}
	entry := &codec.DataLogEntry{Flags: codec.DataLogValueFlag, KeyOffset: keyOffset, Data: payload}
	return l.io.Write(nil, entry.Serialize())
}

// Read reads and decodes the DataLogEntry at offset, first reading its
// (variable-size) header to learn the data length, then reading the data.
// If this is a value entry and a Cipher is configured, the data is opened
// before it is returned.
func (l *Logger) Read(offset int64) (*codec.DataLogEntry, error) {
	header, err := l.io.Read(offset, codec.DataLogBaseHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("datalog: read base header at %d: %w", offset, err)
	}
	flags := header[0]
	headerSize := codec.DataLogBaseHeaderSize
	if flags&codec.DataLogValueFlag != 0 {
		headerSize += codec.DataLogValueHeaderExtra
		header, err = l.io.Read(offset, headerSize)
		if err != nil {
			return nil, fmt.Errorf("datalog: read value header at %d: %w", offset, err)
		}
	}

	decodedFlags, keyOffset, dataLen, err := codec.DecodeDataLogHeader(header)
	if err != nil {
		return nil, fmt.Errorf("datalog: decode header at %d: %w", offset, err)
	}

	var data []byte
	if dataLen > 0 {
		data, err = l.io.Read(offset+int64(headerSize), dataLen)
		if err != nil {
			return nil, fmt.Errorf("datalog: read data at %d: %w", offset, err)
		}
	}

	if decodedFlags&codec.DataLogValueFlag != 0 {
		if l.Cipher != nil {
			opened, err := l.open(data)
			if err != nil {
				return nil, fmt.Errorf("datalog: open value at %d: %w", offset, err)
			}
			data = opened
		}
		if l.Compress {
			decoded, err := s2Decode(data)
			if err != nil {
				return nil, fmt.Errorf("datalog: decompress value at %d: %w", offset, err)
			}
			data = decoded
		}
	}

	return codec.DecodeDataLogEntry(decodedFlags, keyOffset, data), nil
}

// seal generates a fresh random nonce, seals data, and prefixes the nonce
// to the ciphertext so Read can recover it without a separate index.
func (l *Logger) seal(data []byte) ([]byte, error) {
	nonce := make([]byte, l.Cipher.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := l.Cipher.Seal(nil, nonce, data, nil)
	return append(nonce, sealed...), nil
}

func (l *Logger) open(data []byte) ([]byte, error) {
	nonceSize := l.Cipher.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("sealed value shorter than nonce size %d", nonceSize)
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return l.Cipher.Open(nil, nonce, ciphertext, nil)
}

func s2Decode(data []byte) ([]byte, error) {
	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, err
	}
	return s2.Decode(make([]byte, n), data)
}
