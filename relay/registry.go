package relay

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// viewerQueueSize bounds each viewer's private outbound queue. A viewer that
// falls this far behind starts losing frames rather than stalling publishers.
const viewerQueueSize = 256

// viewerRegistry holds the outbound queue of every connected viewer, keyed by
// an opaque per-connection handle so teardown is an O(1) delete instead of a
// scan for dead channels.
//
// Locking: register/unregister take the write lock, publish takes the read
// lock. A queue channel is only ever closed under the write lock, so publish
// can never send on a closed channel.
type viewerRegistry struct {
	mu      sync.RWMutex
	viewers map[string]chan []byte

	sent    atomic.Uint64
	dropped atomic.Uint64
}

func newViewerRegistry() *viewerRegistry {
	return &viewerRegistry{
		viewers: make(map[string]chan []byte),
	}
}

// register allocates a private queue for one viewer and returns its handle.
func (r *viewerRegistry) register() (id string, queue <-chan []byte) {
	ch := make(chan []byte, viewerQueueSize)
	id = uuid.NewString()
	r.mu.Lock()
	r.viewers[id] = ch
	r.mu.Unlock()
	return id, ch
}

// unregister removes a viewer and closes its queue, which ends the viewer's
// forward loop. Safe to call more than once for the same handle.
func (r *viewerRegistry) unregister(id string) {
	r.mu.Lock()
	if ch, ok := r.viewers[id]; ok {
		delete(r.viewers, id)
		close(ch)
	}
	r.mu.Unlock()
}

// publish enqueues msg on every registered viewer queue without blocking.
// Queues that are full lose the message; a slow viewer only degrades its own
// stream, never the publishing student or other viewers.
func (r *viewerRegistry) publish(msg []byte) {
	r.mu.RLock()
	for _, ch := range r.viewers {
		select {
		case ch <- msg:
			r.sent.Add(1)
		default:
			r.dropped.Add(1)
		}
	}
	r.mu.RUnlock()
}

func (r *viewerRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}
