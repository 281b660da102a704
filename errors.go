package histkv

import "fmt"

// NodeFullError is raised by IntermediateNode.insertChild when the target
// node has reached MaxChildren. The tree recovers from it internally via
// BufferedBTree.insertWithSplit; callers should never observe it.
type NodeFullError struct {
	MaxKey []byte
}

func (e *NodeFullError) Error() string {
	return fmt.Sprintf("node is full, cannot insert another child (max_key=%x)", e.MaxKey)
}

// InvalidInsertError is returned when an insert would duplicate an existing
// sibling's ordering key. The source's intermediate_node.py treats this as
// unreachable application code ("This is a bug!!!"); we surface it as a
// typed error instead of panicking.
type InvalidInsertError struct {
	Key []byte
}

func (e *InvalidInsertError) Error() string {
	return fmt.Sprintf("insert would duplicate existing ordering key %x", e.Key)
}

// InvalidRecordError signals a malformed on-disk record: wrong child count,
// an impossible length, or a bad flag combination.
type InvalidRecordError struct {
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record: %s", e.Reason)
}

// InvalidWriteRequestError signals a page-size mismatch or short read/write
// at the pagefile.Handler boundary.
type InvalidWriteRequestError struct {
	Reason string
}

func (e *InvalidWriteRequestError) Error() string {
	return fmt.Sprintf("invalid write request: %s", e.Reason)
}

// UnreachableStateError marks an invariant violation: a missing expected
// child during descent, an empty stack during split, etc. Implementations
// should not attempt to recover from it.
type UnreachableStateError struct {
	Reason string
}

func (e *UnreachableStateError) Error() string {
	return fmt.Sprintf("unreachable state: %s", e.Reason)
}
