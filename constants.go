package histkv

// MaxChildren is the fixed fan-out F for every disk-resident fixed-fanout
// structure: HistoryIndexNode and MainIndexEntry children, and the cap on
// IntermediateNode's children. The source wavered between 16 (an early
// iteration) and 170 (the later, on-disk one); SPEC_FULL.md fixes F=170
// for everything except the in-memory leaf history buffer.
const MaxChildren = 170

// MaxValueSize is the largest value (in bytes) the engine will store. It
// must fit into an unsigned 32-bit length field.
const MaxValueSize = 1024 * 1024 // 1 MiB

// LeafHistoryCapacity bounds the in-memory leaf history buffer. It is an
// internal tuning parameter distinct from MaxChildren in principle (the
// source's early iteration used 16 for this, and spec.md §9 notes it need
// not equal the on-disk fan-out F). This implementation sets it equal to
// MaxChildren: since spec.md requires every spilled HistoryIndexNode to
// carry exactly F real entries ("Spills must emit exactly F-wide
// records"), and explicitly leaves partial/padded spills as an open
// question ("do not guess"), capacity == F is the only buffer size that
// produces a full F-wide batch on every spill without needing to define
// padding semantics. See DESIGN.md.
const LeafHistoryCapacity = MaxChildren

// TXWidthBits is the width of a transaction number.
const TXWidthBits = 128
