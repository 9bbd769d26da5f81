package driver

import (
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/errors"
	"github.com/wippyai/binder/parcel"
)

// Config holds driver configuration. A nil *Config uses defaults.
type Config struct {
	// MaxNodes limits the number of live nodes. 0 means unlimited.
	MaxNodes int
}

// Driver is an in-process binder.Transport.
type Driver struct {
	nodes     *nodeTable
	reaper    *reaper
	observers []Observer
	oneway    sync.WaitGroup
	mu        sync.Mutex
	obsMu     sync.RWMutex
	maxNodes  int
	closed    bool
}

var _ binder.Transport = (*Driver)(nil)

// New creates a driver and starts its reaper goroutine.
func New(cfg *Config) *Driver {
	d := &Driver{
		nodes:  newNodeTable(),
		reaper: newReaper(),
	}
	if cfg != nil {
		d.maxNodes = cfg.MaxNodes
	}
	return d
}

// Publish registers obj as a node and returns its handle.
func (d *Driver) Publish(obj Object) (binder.Handle, error) {
	if obj == nil {
		return 0, errors.InvalidInput(errors.PhaseDriver, "publish nil object")
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, errors.Closed(errors.PhaseDriver, "driver")
	}
	if d.maxNodes > 0 && d.nodes.live >= d.maxNodes {
		d.mu.Unlock()
		return 0, errors.New(errors.PhaseDriver, errors.KindInvalidInput).
			Detail("node limit %d reached", d.maxNodes).
			Build()
	}
	h := d.nodes.insert(obj)
	d.mu.Unlock()

	Logger().Debug("node published", zap.Uint32("handle", uint32(h)))
	d.notify(Event{Type: EventPublished, Handle: h})
	return h, nil
}

// Kill marks the node dead, closes its object and schedules death
// notifications for every registered notifiee.
func (d *Driver) Kill(h binder.Handle) error {
	d.mu.Lock()
	n := d.nodes.get(h)
	if n == nil || n.dead {
		d.mu.Unlock()
		return errors.DeadObject(errors.PhaseDriver, uint32(h))
	}
	n.dead = true
	obj := n.object
	n.object = nil
	watchers := n.watchers
	n.watchers = nil
	ev := Event{Type: EventDied, Handle: h, Strong: n.strong, Weak: n.weak}
	freed := d.nodes.release(h)
	d.mu.Unlock()

	Logger().Debug("node killed",
		zap.Uint32("handle", uint32(h)),
		zap.Int("watchers", len(watchers)))

	d.notify(ev)
	if freed {
		d.notify(Event{Type: EventFreed, Handle: h})
	}
	d.reaper.enqueue(deathEvent{handle: h, notifiees: watchers})

	if c, ok := obj.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Transact delivers a transaction to the node's object. Oneway
// transactions run asynchronously and return a nil reply.
func (d *Driver) Transact(h binder.Handle, code uint32, data *parcel.Parcel, flags uint32) (*parcel.Parcel, error) {
	d.mu.Lock()
	n := d.nodes.get(h)
	if n == nil || n.dead {
		d.mu.Unlock()
		return nil, errors.DeadObject(errors.PhaseDriver, uint32(h))
	}
	obj := n.object
	if flags&binder.FlagOneway != 0 {
		d.oneway.Add(1)
	}
	d.mu.Unlock()

	// Requests are copied, as they would be across a process boundary.
	in := parcel.FromBytes(append([]byte(nil), data.Bytes()...))

	if flags&binder.FlagOneway != 0 {
		go func() {
			defer d.oneway.Done()
			if err := obj.Transact(code, in, parcel.New(), flags); err != nil {
				Logger().Debug("oneway transaction failed",
					zap.Uint32("handle", uint32(h)),
					zap.Uint32("code", code),
					zap.Error(err))
			}
		}()
		return nil, nil
	}

	reply := parcel.New()
	if err := obj.Transact(code, in, reply, flags); err != nil {
		return nil, err
	}
	return parcel.FromBytes(reply.Bytes()), nil
}

func (d *Driver) adjust(h binder.Handle, typ EventType, strong, weak int32) {
	d.mu.Lock()
	n := d.nodes.get(h)
	if n == nil {
		d.mu.Unlock()
		Logger().Warn("reference change on unknown handle",
			zap.Uint32("handle", uint32(h)),
			zap.Stringer("event", typ))
		return
	}
	if n.strong+strong < 0 || n.weak+weak < 0 {
		d.mu.Unlock()
		Logger().Warn("reference count underflow",
			zap.Uint32("handle", uint32(h)),
			zap.Stringer("event", typ))
		return
	}
	n.strong += strong
	n.weak += weak
	ev := Event{Type: typ, Handle: h, Strong: n.strong, Weak: n.weak}
	freed := d.nodes.release(h)
	d.mu.Unlock()

	d.notify(ev)
	if freed {
		d.notify(Event{Type: EventFreed, Handle: h})
	}
}

// IncStrongHandle implements binder.Transport.
func (d *Driver) IncStrongHandle(h binder.Handle) {
	d.adjust(h, EventStrongAcquired, 1, 0)
}

// DecStrongHandle implements binder.Transport.
func (d *Driver) DecStrongHandle(h binder.Handle) {
	d.adjust(h, EventStrongReleased, -1, 0)
}

// IncWeakHandle implements binder.Transport.
func (d *Driver) IncWeakHandle(h binder.Handle) {
	d.adjust(h, EventWeakAcquired, 0, 1)
}

// DecWeakHandle implements binder.Transport.
func (d *Driver) DecWeakHandle(h binder.Handle) {
	d.adjust(h, EventWeakReleased, 0, -1)
}

// AttemptIncStrongHandle implements binder.Transport. It fails for dead or
// unknown nodes.
func (d *Driver) AttemptIncStrongHandle(h binder.Handle) bool {
	d.mu.Lock()
	n := d.nodes.get(h)
	if n == nil || n.dead {
		d.mu.Unlock()
		return false
	}
	n.strong++
	ev := Event{Type: EventStrongAcquired, Handle: h, Strong: n.strong, Weak: n.weak}
	d.mu.Unlock()

	d.notify(ev)
	return true
}

// RequestDeathNotification implements binder.Transport. Registering on a
// dead node schedules an immediate notification.
func (d *Driver) RequestDeathNotification(h binder.Handle, dn binder.DeathNotifiee) error {
	if dn == nil {
		return errors.InvalidInput(errors.PhaseDriver, "nil death notifiee")
	}

	d.mu.Lock()
	n := d.nodes.get(h)
	if n == nil {
		d.mu.Unlock()
		return errors.DeadObject(errors.PhaseDriver, uint32(h))
	}
	if n.dead {
		d.mu.Unlock()
		if !d.reaper.enqueue(deathEvent{handle: h, notifiees: []binder.DeathNotifiee{dn}}) {
			return errors.Closed(errors.PhaseDriver, "driver")
		}
		return nil
	}
	for _, w := range n.watchers {
		if w == dn {
			d.mu.Unlock()
			return errors.AlreadyRegistered(errors.PhaseDriver, "death notification")
		}
	}
	n.watchers = append(n.watchers, dn)
	ev := Event{Type: EventDeathRequested, Handle: h, Strong: n.strong, Weak: n.weak}
	d.mu.Unlock()

	d.notify(ev)
	return nil
}

// ClearDeathNotification implements binder.Transport. Clearing after the
// node died is not an error.
func (d *Driver) ClearDeathNotification(h binder.Handle, dn binder.DeathNotifiee) error {
	d.mu.Lock()
	n := d.nodes.get(h)
	if n == nil {
		d.mu.Unlock()
		return errors.DeadObject(errors.PhaseDriver, uint32(h))
	}
	if n.dead {
		d.mu.Unlock()
		return nil
	}
	var found bool
	n.watchers, found = removeNotifiee(n.watchers, dn)
	if !found {
		d.mu.Unlock()
		return errors.NotFound(errors.PhaseDriver, "death notification")
	}
	ev := Event{Type: EventDeathCleared, Handle: h, Strong: n.strong, Weak: n.weak}
	d.mu.Unlock()

	d.notify(ev)
	return nil
}

// NodeInfo is a snapshot of one node.
type NodeInfo struct {
	Handle   binder.Handle
	Strong   int32
	Weak     int32
	Watchers int
	Dead     bool
}

// Lookup returns a snapshot of the node for h.
func (d *Driver) Lookup(h binder.Handle) (NodeInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.nodes.get(h)
	if n == nil {
		return NodeInfo{}, false
	}
	return nodeInfo(h, n), true
}

// Nodes returns a snapshot of every node in handle order.
func (d *Driver) Nodes() []NodeInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []NodeInfo
	d.nodes.each(func(h binder.Handle, n *node) bool {
		out = append(out, nodeInfo(h, n))
		return true
	})
	return out
}

func nodeInfo(h binder.Handle, n *node) NodeInfo {
	return NodeInfo{
		Handle:   h,
		Strong:   n.strong,
		Weak:     n.weak,
		Watchers: len(n.watchers),
		Dead:     n.dead,
	}
}

// Len returns the number of nodes in the table, dead or alive.
func (d *Driver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nodes.live
}

// Drain blocks until every scheduled death notification has been
// delivered. It must not be called from a death recipient.
func (d *Driver) Drain() {
	d.reaper.drain()
}

// Subscribe adds an observer for node events.
func (d *Driver) Subscribe(o Observer) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	d.observers = append(d.observers, o)
}

// Unsubscribe removes an observer.
func (d *Driver) Unsubscribe(o Observer) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	for i, obs := range d.observers {
		if obs == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			return
		}
	}
}

func (d *Driver) notify(e Event) {
	d.obsMu.RLock()
	defer d.obsMu.RUnlock()
	for _, o := range d.observers {
		o.OnNodeEvent(e)
	}
}

// Close kills every live node, delivers the resulting death notifications
// and stops the reaper. Errors from closing node objects are combined.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	var live []binder.Handle
	d.nodes.each(func(h binder.Handle, n *node) bool {
		if !n.dead {
			live = append(live, h)
		}
		return true
	})
	d.mu.Unlock()

	var err error
	for _, h := range live {
		if kerr := d.Kill(h); kerr != nil && !errors.Is(kerr, errors.ErrDeadObject) {
			err = multierr.Append(err, kerr)
		}
	}
	d.oneway.Wait()
	d.reaper.close()
	return err
}
