package proxy

import "github.com/wippyai/binder/errors"

// IncStrong acquires a strong reference. The first strong reference is
// forwarded to the transport.
func (p *Proxy) IncStrong() {
	p.IncWeak()
	if p.strong.Add(1) == 1 {
		p.onFirstStrongRef()
	}
}

// DecStrong releases a strong reference. Releasing the last one is
// forwarded to the transport.
func (p *Proxy) DecStrong() {
	n := p.strong.Add(-1)
	if n < 0 {
		panic(refsViolation(p, "strong count underflow"))
	}
	if n == 0 {
		p.onLastStrongRefReleased()
	}
	p.DecWeak()
}

// IncWeak acquires a weak reference.
func (p *Proxy) IncWeak() {
	if p.weak.Add(1) == 1 && p.destroyed.Load() {
		panic(refsViolation(p, "weak reference to destroyed proxy"))
	}
}

// DecWeak releases a weak reference. Releasing the last one destroys the
// proxy.
func (p *Proxy) DecWeak() {
	n := p.weak.Add(-1)
	if n < 0 {
		panic(refsViolation(p, "weak count underflow"))
	}
	if n == 0 {
		p.destroy()
	}
}

// tryIncWeak acquires a weak reference only while the proxy still has one.
func (p *Proxy) tryIncWeak() bool {
	for {
		n := p.weak.Load()
		if n <= 0 {
			return false
		}
		if p.weak.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// AttemptIncStrong promotes a weak reference held by the caller to a strong
// one. When no strong holder exists the transport is asked to promote the
// remote reference, which fails if the remote is dead.
func (p *Proxy) AttemptIncStrong() bool {
	p.IncWeak()

	for {
		n := p.strong.Load()
		if n <= 0 {
			break
		}
		if p.strong.CompareAndSwap(n, n+1) {
			return true
		}
	}

	if !p.onIncStrongAttempted() {
		p.DecWeak()
		return false
	}

	// The transport already counted this reference. If another holder got
	// in first, it counted one too, so give the extra back.
	if p.strong.Add(1) != 1 {
		p.transport.DecStrongHandle(p.handle)
	}
	return true
}

// StrongCount returns the current strong count.
func (p *Proxy) StrongCount() int32 {
	return p.strong.Load()
}

// WeakCount returns the current weak count, including the weak half of
// every strong reference.
func (p *Proxy) WeakCount() int32 {
	return p.weak.Load()
}

func (p *Proxy) onFirstStrongRef() {
	p.transport.IncStrongHandle(p.handle)
}

func (p *Proxy) onLastStrongRefReleased() {
	p.transport.DecStrongHandle(p.handle)
}

func (p *Proxy) onIncStrongAttempted() bool {
	return p.transport.AttemptIncStrongHandle(p.handle)
}

// refsViolation describes a reference counting bug in the caller. It is
// raised as a panic, never returned.
func refsViolation(p *Proxy, detail string) *errors.Error {
	return errors.New(errors.PhaseRefs, errors.KindInvalidInput).
		Handle(uint32(p.handle)).
		Detail(detail).
		Build()
}
