package proxy

import (
	"weak"

	"go.uber.org/zap"

	"github.com/wippyai/binder/errors"
)

// DeathRecipient is notified when the remote behind a proxy dies.
// Implementations must be comparable (typically a pointer) so they can be
// matched by UnlinkToDeath.
type DeathRecipient interface {
	BinderDied(who *Proxy)
}

// DeathRecipientFunc adapts a function pointer to DeathRecipient. Function
// values are not comparable, so the adapter is used through a pointer.
type DeathRecipientFunc func(who *Proxy)

// BinderDied calls f.
func (f *DeathRecipientFunc) BinderDied(who *Proxy) {
	(*f)(who)
}

type obituary struct {
	recipient DeathRecipient
	cookie    uintptr
	flags     uint32
}

// matches reports whether o is the registration named by an unlink request.
// A nil recipient selects by cookie.
func (o obituary) matches(recipient DeathRecipient, cookie uintptr, flags uint32) bool {
	if o.flags != flags {
		return false
	}
	if recipient != nil {
		return o.recipient == recipient
	}
	return o.cookie == cookie
}

// resolver is implemented by recipients that may have been collected.
type resolver interface {
	resolve() DeathRecipient
}

type weakRecipient[T any] struct {
	ptr weak.Pointer[T]
}

// WeakRecipient wraps r so that a registration does not keep it alive.
// Wrapping the same pointer twice yields equal values, so the wrapper can
// be passed to UnlinkToDeath.
func WeakRecipient[T any, P interface {
	*T
	DeathRecipient
}](r P) DeathRecipient {
	return weakRecipient[T]{ptr: weak.Make((*T)(r))}
}

func (w weakRecipient[T]) resolve() DeathRecipient {
	v := w.ptr.Value()
	if v == nil {
		return nil
	}
	return any(v).(DeathRecipient)
}

// BinderDied forwards to the wrapped recipient if it still exists.
func (w weakRecipient[T]) BinderDied(who *Proxy) {
	if r := w.resolve(); r != nil {
		r.BinderDied(who)
	}
}

// LinkToDeath registers recipient to be told when the remote dies. It fails
// with errors.ErrDeadObject once the death notice has been delivered.
// A nil recipient is a programming error and panics.
func (p *Proxy) LinkToDeath(recipient DeathRecipient, cookie uintptr, flags uint32) error {
	if recipient == nil {
		panic("proxy: LinkToDeath with nil recipient")
	}

	p.mu.Lock()
	if p.obitsSent {
		p.mu.Unlock()
		return errors.DeadObject(errors.PhaseDeath, uint32(p.handle))
	}

	if p.obituaries == nil {
		// Held until the watch is cleared or the notice is delivered.
		p.IncWeak()
		if err := p.transport.RequestDeathNotification(p.handle, p); err != nil {
			p.mu.Unlock()
			p.DecWeak()
			Logger().Warn("request death notification failed",
				zap.Uint32("handle", uint32(p.handle)),
				zap.Error(err))
			return errors.Wrap(errors.PhaseDeath, errors.KindDeadObject, err, "request death notification")
		}
		Logger().Debug("watching remote", zap.Uint32("handle", uint32(p.handle)))
	}

	p.obituaries = append(p.obituaries, obituary{
		recipient: recipient,
		cookie:    cookie,
		flags:     flags,
	})
	p.mu.Unlock()
	return nil
}

// UnlinkToDeath removes the first registration matching recipient (or, if
// recipient is nil, cookie) and flags, and returns the removed recipient.
func (p *Proxy) UnlinkToDeath(recipient DeathRecipient, cookie uintptr, flags uint32) (DeathRecipient, error) {
	p.mu.Lock()
	if p.obitsSent {
		p.mu.Unlock()
		return nil, errors.DeadObject(errors.PhaseDeath, uint32(p.handle))
	}

	for i, o := range p.obituaries {
		if !o.matches(recipient, cookie, flags) {
			continue
		}

		p.obituaries = append(p.obituaries[:i], p.obituaries[i+1:]...)
		last := len(p.obituaries) == 0
		if last {
			p.obituaries = nil
			if err := p.transport.ClearDeathNotification(p.handle, p); err != nil {
				Logger().Warn("clear death notification failed",
					zap.Uint32("handle", uint32(p.handle)),
					zap.Error(err))
			}
		}
		p.mu.Unlock()

		if last {
			p.DecWeak()
		}
		return o.recipient, nil
	}

	p.mu.Unlock()
	return nil, errors.NotFound(errors.PhaseDeath, "death recipient")
}

// SendObituary is the death-delivery entry point called by the transport.
// The first call marks the proxy dead and notifies every registered
// recipient once; later calls do nothing.
func (p *Proxy) SendObituary() {
	p.mu.Lock()
	if p.obitsSent {
		p.mu.Unlock()
		return
	}
	p.alive.Store(false)
	p.obitsSent = true

	obits := p.obituaries
	p.obituaries = nil
	if obits != nil {
		if err := p.transport.ClearDeathNotification(p.handle, p); err != nil {
			Logger().Debug("clear death notification after death",
				zap.Uint32("handle", uint32(p.handle)),
				zap.Error(err))
		}
	}
	p.mu.Unlock()

	Logger().Debug("delivering obituaries",
		zap.Uint32("handle", uint32(p.handle)),
		zap.Int("recipients", len(obits)))

	for _, o := range obits {
		p.reportOneDeath(o)
	}

	if obits != nil {
		p.DecWeak()
	}
}

func (p *Proxy) reportOneDeath(o obituary) {
	r := o.recipient
	if w, ok := r.(resolver); ok {
		if r = w.resolve(); r == nil {
			return
		}
	}
	r.BinderDied(p)
}
