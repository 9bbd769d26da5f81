package proxy

import (
	"go.uber.org/zap"

	"github.com/wippyai/binder/errors"
)

// CleanupFunc releases an attachment's payload when the proxy is destroyed.
type CleanupFunc func(key, payload, cookie any)

type attachment struct {
	payload any
	cookie  any
	cleanup CleanupFunc
}

// attachments maps identity keys to payloads. Keys must be comparable.
type attachments struct {
	entries map[any]attachment
}

func (a *attachments) attach(key, payload, cookie any, cleanup CleanupFunc) bool {
	if _, exists := a.entries[key]; exists {
		return false
	}
	if a.entries == nil {
		a.entries = make(map[any]attachment)
	}
	a.entries[key] = attachment{payload: payload, cookie: cookie, cleanup: cleanup}
	return true
}

func (a *attachments) find(key any) (any, bool) {
	e, ok := a.entries[key]
	return e.payload, ok
}

func (a *attachments) detach(key any) (any, bool) {
	e, ok := a.entries[key]
	if ok {
		delete(a.entries, key)
	}
	return e.payload, ok
}

// detachAll empties a and returns the previous entries.
func (a *attachments) detachAll() attachments {
	out := attachments{entries: a.entries}
	a.entries = nil
	return out
}

// killAll runs every entry's cleanup, in no particular order, and clears a.
func (a *attachments) killAll() {
	for key, e := range a.entries {
		if e.cleanup != nil {
			e.cleanup(key, e.payload, e.cookie)
		}
	}
	a.entries = nil
}

// AttachObject stores payload under key. An existing key is left untouched;
// the collision is logged and reported as errors.ErrAlreadyRegistered.
func (p *Proxy) AttachObject(key, payload, cookie any, cleanup CleanupFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed.Load() {
		Logger().Warn("attach to destroyed proxy", zap.Uint32("handle", uint32(p.handle)))
		return errors.Closed(errors.PhaseAttach, "proxy")
	}
	if !p.attachments.attach(key, payload, cookie, cleanup) {
		Logger().Warn("object already attached",
			zap.Uint32("handle", uint32(p.handle)),
			zap.Any("key", key))
		return errors.AlreadyRegistered(errors.PhaseAttach, "object key")
	}
	return nil
}

// FindObject returns the payload attached under key.
func (p *Proxy) FindObject(key any) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attachments.find(key)
}

// DetachObject removes key without running its cleanup and returns the
// payload.
func (p *Proxy) DetachObject(key any) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attachments.detach(key)
}
