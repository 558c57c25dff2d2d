package reconcile

import (
	"time"

	"github.com/hazyhaar/overlay/annotate"
)

// batcher is the pending set. The first add of a cycle arms one timer;
// later adds only join the set. take returns the batch and starts a new
// cycle.
type batcher struct {
	window    time.Duration
	maxBuffer int

	order   []annotate.Subject
	index   map[string]int
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newBatcher(window time.Duration, maxBuffer int) *batcher {
	return &batcher{
		window:    window,
		maxBuffer: maxBuffer,
		index:     make(map[string]int),
	}
}

// add queues s. A subject already pending is replaced in place, keeping
// its position. Returns true when the set reached maxBuffer and must be
// flushed now.
func (b *batcher) add(s annotate.Subject) bool {
	k := s.Key()
	if i, ok := b.index[k]; ok {
		b.order[i] = s
	} else {
		b.index[k] = len(b.order)
		b.order = append(b.order, s)
	}
	if len(b.order) >= b.maxBuffer {
		return true
	}
	if b.timer == nil {
		b.timer = time.NewTimer(b.window)
		b.timerCh = b.timer.C
	}
	return false
}

// armed reports whether a flush is scheduled.
func (b *batcher) armed() bool { return b.timer != nil }

func (b *batcher) len() int { return len(b.order) }

// timerC fires when the window of the current cycle expires. Nil when no
// flush is scheduled, which blocks forever in a select.
func (b *batcher) timerC() <-chan time.Time { return b.timerCh }

// take empties the set and disarms the timer.
func (b *batcher) take() []annotate.Subject {
	batch := b.order
	b.order = nil
	b.index = make(map[string]int, len(batch))
	b.stop()
	return batch
}

func (b *batcher) stop() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
		b.timerCh = nil
	}
}
