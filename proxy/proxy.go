package proxy

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/errors"
	"github.com/wippyai/binder/parcel"
)

// Proxy is a reference-counted handle to a remote object.
type Proxy struct {
	transport binder.Transport
	onDestroy func(*Proxy)

	obituaries  []obituary
	attachments attachments
	descriptor  string

	mu        sync.Mutex
	strong    atomic.Int32
	weak      atomic.Int32
	alive     atomic.Bool
	destroyed atomic.Bool
	obitsSent bool
	handle    binder.Handle
}

// New creates a proxy for h and registers its standing weak reference with
// the transport. The returned proxy holds no references; the caller must
// take one with IncStrong or IncWeak.
func New(t binder.Transport, h binder.Handle) *Proxy {
	p := &Proxy{
		transport: t,
		handle:    h,
	}
	p.alive.Store(true)
	t.IncWeakHandle(h)
	return p
}

// Handle returns the remote handle this proxy names.
func (p *Proxy) Handle() binder.Handle {
	return p.handle
}

// IsAlive reports whether the remote was alive at the last observation.
// Once false it stays false.
func (p *Proxy) IsAlive() bool {
	return p.alive.Load()
}

// Transact relays a transaction to the remote. After the remote is known to
// be dead it fails with errors.ErrDeadObject without touching the
// transport. Any other transport error is returned unchanged. A successful
// call always yields a non-nil reply.
func (p *Proxy) Transact(code uint32, data *parcel.Parcel, flags uint32) (*parcel.Parcel, error) {
	// A stale true only costs one doomed round trip.
	if !p.alive.Load() {
		return nil, errors.DeadObject(errors.PhaseTransact, uint32(p.handle))
	}

	reply, err := p.transport.Transact(p.handle, code, data, flags)
	if err != nil {
		if errors.Is(err, errors.ErrDeadObject) {
			p.alive.Store(false)
		}
		return reply, err
	}
	if reply == nil {
		reply = parcel.New()
	}
	return reply, nil
}

// PingBinder checks that the remote is reachable.
func (p *Proxy) PingBinder() error {
	_, err := p.Transact(binder.PingTransaction, parcel.New(), 0)
	return err
}

// Dump asks the remote for a diagnostic description of its state.
func (p *Proxy) Dump() (string, error) {
	reply, err := p.Transact(binder.DumpTransaction, parcel.New(), 0)
	if err != nil {
		return "", err
	}
	s, _, err := reply.ReadString16()
	return s, err
}

// GetInterfaceDescriptor returns the remote's interface name, querying the
// remote on first use. It returns "" if the query fails.
//
// The query runs without the proxy lock held, so concurrent first callers
// may each issue it; the first result stored wins.
func (p *Proxy) GetInterfaceDescriptor() string {
	p.mu.Lock()
	cached := p.descriptor
	p.mu.Unlock()
	if cached != "" {
		return cached
	}

	reply, err := p.Transact(binder.InterfaceTransaction, parcel.New(), 0)
	if err != nil {
		Logger().Debug("interface query failed",
			zap.Uint32("handle", uint32(p.handle)),
			zap.Error(err))
		return ""
	}
	res, _, err := reply.ReadString16()
	if err != nil {
		Logger().Debug("interface reply malformed",
			zap.Uint32("handle", uint32(p.handle)),
			zap.Error(err))
		return ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.descriptor == "" {
		p.descriptor = res
	}
	return p.descriptor
}

// destroy runs once when the weak count reaches zero.
func (p *Proxy) destroy() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}
	if p.onDestroy != nil {
		p.onDestroy(p)
	}

	p.mu.Lock()
	watched := p.obituaries != nil && !p.obitsSent
	p.obituaries = nil
	objects := p.attachments.detachAll()
	p.mu.Unlock()

	if watched {
		if err := p.transport.ClearDeathNotification(p.handle, p); err != nil {
			Logger().Warn("clear death notification on destroy",
				zap.Uint32("handle", uint32(p.handle)),
				zap.Error(err))
		}
	}
	objects.killAll()
	p.transport.DecWeakHandle(p.handle)

	Logger().Debug("proxy destroyed", zap.Uint32("handle", uint32(p.handle)))
}
