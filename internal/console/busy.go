package console

import "sync/atomic"

// Busy counts in-flight panel calls. The indicator stays visible until every
// overlapping call has released its token, so a fast call finishing first
// cannot hide it under a slower one.
type Busy struct {
	n atomic.Int64
}

// Acquire takes a token and returns its release. Release is safe to call
// exactly once per token, typically deferred.
func (b *Busy) Acquire() (release func()) {
	b.n.Add(1)
	var done atomic.Bool
	return func() {
		if done.CompareAndSwap(false, true) {
			b.n.Add(-1)
		}
	}
}

// Active reports whether any call is still in flight.
func (b *Busy) Active() bool { return b.n.Load() > 0 }
