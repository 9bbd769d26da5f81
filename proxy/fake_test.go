package proxy

import (
	"sync"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/errors"
	"github.com/wippyai/binder/parcel"
)

// fakeTransport counts every call and lets tests script transaction results.
type fakeTransport struct {
	notifiees map[binder.Handle][]binder.DeathNotifiee

	transactErr  error
	transactFunc func(code uint32, data *parcel.Parcel) (*parcel.Parcel, error)
	attemptOK    bool
	attemptHook  func()
	requestErr   error

	transacts   int
	incStrong   int
	decStrong   int
	incWeak     int
	decWeak     int
	attempts    int
	requests    int
	clears      int
	lastRequest binder.Handle

	mu sync.Mutex
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		notifiees: make(map[binder.Handle][]binder.DeathNotifiee),
		attemptOK: true,
	}
}

func (f *fakeTransport) Transact(h binder.Handle, code uint32, data *parcel.Parcel, flags uint32) (*parcel.Parcel, error) {
	f.mu.Lock()
	f.transacts++
	fn := f.transactFunc
	err := f.transactErr
	f.mu.Unlock()

	if fn != nil {
		return fn(code, data)
	}
	if err != nil {
		return nil, err
	}
	return parcel.New(), nil
}

func (f *fakeTransport) IncStrongHandle(binder.Handle) {
	f.mu.Lock()
	f.incStrong++
	f.mu.Unlock()
}

func (f *fakeTransport) DecStrongHandle(binder.Handle) {
	f.mu.Lock()
	f.decStrong++
	f.mu.Unlock()
}

func (f *fakeTransport) IncWeakHandle(binder.Handle) {
	f.mu.Lock()
	f.incWeak++
	f.mu.Unlock()
}

func (f *fakeTransport) DecWeakHandle(binder.Handle) {
	f.mu.Lock()
	f.decWeak++
	f.mu.Unlock()
}

func (f *fakeTransport) AttemptIncStrongHandle(binder.Handle) bool {
	f.mu.Lock()
	f.attempts++
	ok := f.attemptOK
	hook := f.attemptHook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return ok
}

func (f *fakeTransport) RequestDeathNotification(h binder.Handle, n binder.DeathNotifiee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return f.requestErr
	}
	f.requests++
	f.lastRequest = h
	f.notifiees[h] = append(f.notifiees[h], n)
	return nil
}

func (f *fakeTransport) ClearDeathNotification(h binder.Handle, n binder.DeathNotifiee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	list := f.notifiees[h]
	for i, x := range list {
		if x == n {
			f.notifiees[h] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

// kill delivers a death event for h the way a transport reaper would:
// outside the fake's lock.
func (f *fakeTransport) kill(h binder.Handle) {
	f.mu.Lock()
	list := append([]binder.DeathNotifiee(nil), f.notifiees[h]...)
	f.transactErr = errors.DeadObject(errors.PhaseDriver, uint32(h))
	f.mu.Unlock()

	for _, n := range list {
		n.SendObituary()
	}
}

func (f *fakeTransport) count(field *int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *field
}

// recorder is a DeathRecipient that records deliveries.
type recorder struct {
	who   []*Proxy
	calls int
	mu    sync.Mutex
}

func (r *recorder) BinderDied(who *Proxy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.who = append(r.who, who)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
