package driver

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/binder"
)

type deathEvent struct {
	notifiees []binder.DeathNotifiee
	handle    binder.Handle
}

// reaper delivers death notifications from one goroutine, in the order the
// deaths were recorded.
type reaper struct {
	cond    *sync.Cond
	done    chan struct{}
	queue   []deathEvent
	pending int
	mu      sync.Mutex
	closed  bool
}

func newReaper() *reaper {
	r := &reaper{done: make(chan struct{})}
	r.cond = sync.NewCond(&r.mu)
	go r.run()
	return r
}

func (r *reaper) enqueue(ev deathEvent) bool {
	if len(ev.notifiees) == 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.queue = append(r.queue, ev)
	r.pending++
	r.cond.Broadcast()
	return true
}

func (r *reaper) run() {
	defer close(r.done)
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		ev := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.deliver(ev)

		r.mu.Lock()
		r.pending--
		r.cond.Broadcast()
		r.mu.Unlock()
	}
}

func (r *reaper) deliver(ev deathEvent) {
	Logger().Debug("delivering death notification",
		zap.Uint32("handle", uint32(ev.handle)),
		zap.Int("notifiees", len(ev.notifiees)))

	for _, n := range ev.notifiees {
		func() {
			defer func() {
				if p := recover(); p != nil {
					Logger().Error("death notifiee panicked",
						zap.Uint32("handle", uint32(ev.handle)),
						zap.Any("panic", p))
				}
			}()
			n.SendObituary()
		}()
	}
}

// drain waits until every queued notification has been delivered.
func (r *reaper) drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.pending > 0 {
		r.cond.Wait()
	}
}

// close delivers what is queued, then stops the goroutine.
func (r *reaper) close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
	<-r.done
}
