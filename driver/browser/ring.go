package browser

import (
	"sync"

	"github.com/hazyhaar/boardsnap/driver"
)

// responseRing keeps the last N network response events. Writers come
// from the CDP event goroutine; readers from the resolver. Sequence
// numbers let readers discard events that predate a click they issued.
type responseRing struct {
	mu     sync.Mutex
	events []driver.ResponseEvent
	size   int
	seq    uint64
}

func newResponseRing(size int) *responseRing {
	return &responseRing{size: size}
}

func (r *responseRing) add(ev driver.ResponseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ev.Seq = r.seq
	r.events = append(r.events, ev)
	if len(r.events) > r.size {
		r.events = r.events[len(r.events)-r.size:]
	}
}

// recent returns up to limit events, newest first.
func (r *responseRing) recent(limit int) []driver.ResponseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]driver.ResponseEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.events[i])
	}
	return out
}
