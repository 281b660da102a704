package histkv

import (
	"sync"

	"github.com/chiefnoah/histkv/txid"
)

// Event describes one successful mutation, delivered to Watch subscribers.
type Event struct {
	Key     []byte
	TX      txid.TX
	Deleted bool
}

// watchHub is a single-topic broadcast adapted from the source's
// channel-keyed lib.PubSub (grounded on lib/pubsub.go): every mutation
// notification here is the same "topic" (the whole tree), so the
// channel-name map collapses to a flat subscriber list. Buffered,
// drop-oldest delivery replaces PubSub's blocking send so a slow watcher
// cannot stall writers.
type watchHub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newWatchHub() *watchHub {
	return &watchHub{subs: make(map[chan Event]struct{})}
}

// subscribe registers a new watcher and returns its channel along with an
// unsubscribe function (mirrors PubSub.Subscribe/Unsubscribe).
func (h *watchHub) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, unsub
}

// publish delivers ev to every live subscriber. A subscriber whose buffer
// is full has its oldest pending event dropped to make room, rather than
// blocking the writer holding the tree lock.
func (h *watchHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
