package codec

import "fmt"

// DataLogValueFlag is flags bit 0: when set, the entry is a
// ValueDataLogEntry (carries a key_offset back-pointer); when clear, it is
// a plain DataLogEntry (typically a key payload).
const DataLogValueFlag = 0x1

// DataLogBaseHeaderSize is flags(1) + length(8), present on every entry.
const DataLogBaseHeaderSize = 1 + 8

// DataLogValueHeaderExtra is the extra key_offset(8) a ValueDataLogEntry's
// header carries beyond the base header.
const DataLogValueHeaderExtra = 8

// DataLogEntry is flags:u8 | length:u64 | data[length], optionally
// preceded -- between length and data -- by a key_offset:u64 when
// Flags&DataLogValueFlag != 0 (a ValueDataLogEntry). key_offset must point
// at a prior DataLogEntry with flags&1 == 0.
type DataLogEntry struct {
	Flags     uint8
	KeyOffset uint64
	Data      []byte
}

// IsValueEntry reports whether this is a ValueDataLogEntry (carries a
// key_offset back-pointer).
func (e *DataLogEntry) IsValueEntry() bool {
	return e.Flags&DataLogValueFlag != 0
}

// HeaderSize returns this entry's on-disk header size: base header, plus
// the key_offset field if it is a value entry.
func (e *DataLogEntry) HeaderSize() int {
	if e.IsValueEntry() {
		return DataLogBaseHeaderSize + DataLogValueHeaderExtra
	}
	return DataLogBaseHeaderSize
}

// Serialize encodes the full entry: header followed by Data.
func (e *DataLogEntry) Serialize() []byte {
	headerSize := e.HeaderSize()
	buf := make([]byte, headerSize+len(e.Data))
	buf[0] = e.Flags
	putU64(buf[1:9], uint64(len(e.Data)))
	o := DataLogBaseHeaderSize
	if e.IsValueEntry() {
		putU64(buf[o:o+8], e.KeyOffset)
		o += 8
	}
	copy(buf[o:], e.Data)
	return buf
}

// DecodeDataLogHeader parses flags, the data length, and (if present) the
// key_offset from the start of buf. The deserializer must read length
// before consuming data: this is exactly that first pass, letting the
// caller (internal/datalog.Logger) learn how many more bytes to read from
// disk before decoding the full entry with DecodeDataLogEntry.
func DecodeDataLogHeader(buf []byte) (flags uint8, keyOffset uint64, dataLen int, err error) {
	if len(buf) < DataLogBaseHeaderSize {
		return 0, 0, 0, &InvalidRecordError{Reason: fmt.Sprintf(
			"data log header requires at least %d bytes, got %d", DataLogBaseHeaderSize, len(buf))}
	}
	flags = buf[0]
	length := getU64(buf[1:9])
	if flags&DataLogValueFlag != 0 {
		if len(buf) < DataLogBaseHeaderSize+DataLogValueHeaderExtra {
			return 0, 0, 0, &InvalidRecordError{Reason: "value data log entry header truncated before key_offset"}
		}
		keyOffset = getU64(buf[9:17])
	}
	return flags, keyOffset, int(length), nil
}

// DecodeDataLogEntry decodes a complete entry (header plus exactly
// dataLen bytes of data) from buf, given a header already parsed by
// DecodeDataLogHeader.
func DecodeDataLogEntry(flags uint8, keyOffset uint64, data []byte) *DataLogEntry {
	return &DataLogEntry{Flags: flags, KeyOffset: keyOffset, Data: data}
}
