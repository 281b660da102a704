// Package protocol is a demo wire protocol (SPEC_FULL.md §11.6); the
// cmd/histkv-demo CLI does not use it. Adapted from protocol/protocol.go: the same
// length-prefixed Packet/Response framing and CommandType/StatusCode
// enums, trimmed to the operations the engine actually exposes (put,
// delete, get, as_of, batch begin/commit/rollback, connect/disconnect,
// watch) and with the list/set/hash/zset and standalone-cache command
// types dropped along with lib/datastructures.go and lib/cache.go's
// CacheManager (SPEC_FULL.md §12).
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// CommandType identifies a demo-protocol request.
type CommandType byte

const (
	CommandAuth       CommandType = 0x01
	CommandPut        CommandType = 0x02
	CommandDelete     CommandType = 0x03
	CommandGet        CommandType = 0x04
	CommandAsOf       CommandType = 0x05
	CommandBeginTx    CommandType = 0x06
	CommandCommitTx   CommandType = 0x07
	CommandRollbackTx CommandType = 0x08
	CommandWatch      CommandType = 0x09
	CommandConnect    CommandType = 0x0A
	CommandDisconnect CommandType = 0x0B
)

// StatusCode is the outcome of a request.
type StatusCode uint32

const (
	StatusSuccess    StatusCode = 0x00
	StatusError      StatusCode = 0x01
	StatusTxBegin    StatusCode = 0x02
	StatusTxCommit   StatusCode = 0x03
	StatusTxRollback StatusCode = 0x04
	StatusNotFound   StatusCode = 0x05
)

// Packet is one client request.
type Packet struct {
	CommandID   uint32
	CommandType CommandType
	Payload     []byte
}

// Response is one server reply.
type Response struct {
	CommandID uint32
	Status    StatusCode
	Data      []byte
}

var (
	maxPayloadSize uint32 = 10 * 1024 * 1024 // 10 MiB
	mu             sync.RWMutex
)

// SetMaxPayloadSize sets the largest payload DeserializeResponse/
// DeserializePacket will accept.
func SetMaxPayloadSize(size uint32) {
	mu.Lock()
	defer mu.Unlock()
	maxPayloadSize = size
}

// GetMaxPayloadSize returns the current payload size cap.
func GetMaxPayloadSize() uint32 {
	mu.RLock()
	defer mu.RUnlock()
	return maxPayloadSize
}

// SerializePacket encodes a Packet as CommandID | CommandType | len(Payload) | Payload.
func SerializePacket(p Packet) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, p.CommandID); err != nil {
		return nil, fmt.Errorf("protocol: write CommandID: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, p.CommandType); err != nil {
		return nil, fmt.Errorf("protocol: write CommandType: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(p.Payload))); err != nil {
		return nil, fmt.Errorf("protocol: write PayloadSize: %w", err)
	}
	if _, err := buf.Write(p.Payload); err != nil {
		return nil, fmt.Errorf("protocol: write Payload: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializePacket decodes a Packet from reader.
func DeserializePacket(reader io.Reader) (Packet, error) {
	var p Packet
	if err := binary.Read(reader, binary.BigEndian, &p.CommandID); err != nil {
		return p, fmt.Errorf("protocol: read CommandID: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &p.CommandType); err != nil {
		return p, fmt.Errorf("protocol: read CommandType: %w", err)
	}
	var size uint32
	if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
		return p, fmt.Errorf("protocol: read PayloadSize: %w", err)
	}
	if size > GetMaxPayloadSize() {
		return p, fmt.Errorf("protocol: payload size %d exceeds maximum allowed %d", size, GetMaxPayloadSize())
	}
	p.Payload = make([]byte, size)
	if _, err := io.ReadFull(reader, p.Payload); err != nil {
		return p, fmt.Errorf("protocol: read Payload: %w", err)
	}
	return p, nil
}

// SerializeResponse encodes a Response as CommandID | Status | len(Data) | Data.
func SerializeResponse(r Response) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, r.CommandID); err != nil {
		return nil, fmt.Errorf("protocol: write CommandID: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(r.Status)); err != nil {
		return nil, fmt.Errorf("protocol: write Status: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(r.Data))); err != nil {
		return nil, fmt.Errorf("protocol: write DataSize: %w", err)
	}
	if _, err := buf.Write(r.Data); err != nil {
		return nil, fmt.Errorf("protocol: write Data: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeResponse decodes a Response from reader.
func DeserializeResponse(reader io.Reader) (Response, error) {
	var r Response
	if err := binary.Read(reader, binary.BigEndian, &r.CommandID); err != nil {
		return r, fmt.Errorf("protocol: read CommandID: %w", err)
	}
	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return r, fmt.Errorf("protocol: read Status: %w", err)
	}
	r.Status = StatusCode(status)
	var dataSize uint32
	if err := binary.Read(reader, binary.BigEndian, &dataSize); err != nil {
		return r, fmt.Errorf("protocol: read DataSize: %w", err)
	}
	if dataSize > GetMaxPayloadSize() {
		return r, fmt.Errorf("protocol: data size %d exceeds maximum allowed %d", dataSize, GetMaxPayloadSize())
	}
	r.Data = make([]byte, dataSize)
	if _, err := io.ReadFull(reader, r.Data); err != nil {
		return r, fmt.Errorf("protocol: read Data: %w", err)
	}
	return r, nil
}

func (c CommandType) String() string {
	switch c {
	case CommandAuth:
		return "Auth"
	case CommandPut:
		return "Put"
	case CommandDelete:
		return "Delete"
	case CommandGet:
		return "Get"
	case CommandAsOf:
		return "AsOf"
	case CommandBeginTx:
		return "Begin Batch"
	case CommandCommitTx:
		return "Commit Batch"
	case CommandRollbackTx:
		return "Rollback Batch"
	case CommandWatch:
		return "Watch"
	case CommandConnect:
		return "Connect"
	case CommandDisconnect:
		return "Disconnect"
	default:
		return "Unknown"
	}
}

func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusError:
		return "Error"
	case StatusTxBegin:
		return "Batch Begin"
	case StatusTxCommit:
		return "Batch Commit"
	case StatusTxRollback:
		return "Batch Rollback"
	case StatusNotFound:
		return "Not Found"
	default:
		return "Unknown"
	}
}
