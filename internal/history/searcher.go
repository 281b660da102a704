// Package history implements the History Searcher (spec.md §4.6): walking
// the on-disk, per-leaf history-index B-tree to resolve an as_of query
// whose answer has already been spilled out of a leaf's in-memory buffer.
//
// Grounded on original_source/hist_prototype/searcher.py, with the
// SPEC_FULL.md §13 correction that the searcher shares the caller's
// history-index pagefile.Handler rather than opening its own file handle (spec.md §5:
// "IO handlers may be shared between the main and history indexes").
package history

import (
	"fmt"
	"sort"

	"github.com/chiefnoah/histkv/internal/codec"
	"github.com/chiefnoah/histkv/internal/datalog"
	"github.com/chiefnoah/histkv/internal/pagefile"
	"github.com/chiefnoah/histkv/txid"
)

// Searcher resolves as_of queries against the on-disk history index.
type Searcher struct {
	io    *pagefile.Handler
	log   *datalog.Logger
	cache *pagefile.Cache[*codec.HistoryIndexNode]
}

// NewSearcher builds a Searcher over a shared history-index handler and
// data logger. cacheSize <= 0 disables the page cache.
func NewSearcher(io *pagefile.Handler, log *datalog.Logger, cacheSize int) *Searcher {
	s := &Searcher{io: io, log: log}
	if cacheSize > 0 {
		s.cache = pagefile.NewCache[*codec.HistoryIndexNode](cacheSize)
	}
	return s
}

// Resolve walks the history index B-tree rooted at rootOffset looking for
// the value that was current at target. It returns (value, true, nil) if
// a write at or before target was found and was not a delete, and (nil,
// false, nil) if no write at or before target exists in this subtree or
// the matching write was a delete -- mirroring LeafNode.AsOf's and
// BufferedBTree.Get's convention that a delete reads back as "not found".
func (s *Searcher) Resolve(rootOffset int64, target txid.TX) ([]byte, bool, error) {
	node, err := s.readNode(rootOffset)
	if err != nil {
		return nil, false, err
	}

	for node.Depth > 0 {
		idx := sort.Search(len(node.Children), func(i int) bool {
			return node.Children[i].TX.Greater(target)
		})
		if idx == len(node.Children) {
			idx = len(node.Children) - 1
		}
		child := node.Children[idx]
		next, err := s.readNode(int64(child.OffsetOrValue))
		if err != nil {
			return nil, false, err
		}
		node = next
	}

	// depth == 0: find the greatest TX <= target via binary search
	// (children are strictly ascending per spec.md §3).
	idx := sort.Search(len(node.Children), func(i int) bool {
		return node.Children[i].TX.Greater(target)
	})
	if idx == 0 {
		return nil, false, nil
	}
	match := node.Children[idx-1]
	if match.TX.Greater(target) {
		return nil, false, nil
	}
	if match.Deleted() {
		return nil, false, nil
	}
	if match.Inline() {
		return nil, false, fmt.Errorf("history: inline value decoding is not supported by this searcher")
	}
	entry, err := s.log.Read(int64(match.OffsetOrValue))
	if err != nil {
		return nil, false, fmt.Errorf("history: read data log entry at %d: %w", match.OffsetOrValue, err)
	}
	return entry.Data, true, nil
}

func (s *Searcher) readNode(offset int64) (*codec.HistoryIndexNode, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(offset); ok {
			return cached, nil
		}
	}
	buf, err := s.io.Read(offset, codec.HistoryIndexNodeSize)
	if err != nil {
		return nil, fmt.Errorf("history: read node at %d: %w", offset, err)
	}
	node, err := codec.DeserializeHistoryIndexNode(buf)
	if err != nil {
		return nil, fmt.Errorf("history: decode node at %d: %w", offset, err)
	}
	if s.cache != nil {
		s.cache.Put(offset, node)
	}
	return node, nil
}
