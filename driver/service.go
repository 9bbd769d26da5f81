package driver

import (
	"io"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/errors"
	"github.com/wippyai/binder/parcel"
)

// Service is a local Object that answers the reserved ping, interface and
// dump transactions itself and passes user codes to a Handler.
type Service struct {
	handler    Handler
	descriptor string
}

// NewService creates a service named descriptor. handler may be nil for a
// service with no user codes.
func NewService(descriptor string, handler Handler) *Service {
	return &Service{
		descriptor: descriptor,
		handler:    handler,
	}
}

// Descriptor returns the interface name.
func (s *Service) Descriptor() string {
	return s.descriptor
}

// Transact implements Object.
func (s *Service) Transact(code uint32, data, reply *parcel.Parcel, flags uint32) error {
	switch code {
	case binder.PingTransaction:
		return nil
	case binder.InterfaceTransaction:
		return reply.WriteString16(s.descriptor)
	case binder.DumpTransaction:
		var out string
		if d, ok := s.handler.(Dumper); ok {
			out = d.Dump()
		}
		return reply.WriteString16(out)
	}

	if !binder.IsUserCode(code) || s.handler == nil {
		return errors.StatusUnknownTransaction
	}
	return s.handler.OnTransact(code, data, reply, flags)
}

// Close releases the handler if it implements io.Closer.
func (s *Service) Close() error {
	if c, ok := s.handler.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
