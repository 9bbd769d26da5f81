package binder

import "github.com/wippyai/binder/parcel"

// Handle names a remote object inside a Transport's namespace.
// Handle values are assigned by the Transport and never change.
type Handle uint32

// Transaction codes. User codes live in [FirstCallTransaction,
// LastCallTransaction]; the rest are reserved for the runtime.
const (
	FirstCallTransaction uint32 = 0x00000001
	LastCallTransaction  uint32 = 0x00ffffff

	PingTransaction      uint32 = '_'<<24 | 'P'<<16 | 'N'<<8 | 'G'
	DumpTransaction      uint32 = '_'<<24 | 'D'<<16 | 'M'<<8 | 'P'
	InterfaceTransaction uint32 = '_'<<24 | 'N'<<16 | 'T'<<8 | 'F'
)

// Transaction flags.
const (
	// FlagOneway requests asynchronous delivery; no reply is returned.
	FlagOneway uint32 = 0x01
)

// DeathNotifiee is the death-delivery entry point a Transport calls when a
// remote object it was asked to watch dies.
type DeathNotifiee interface {
	SendObituary()
}

// Transport is the IPC channel a proxy relays through.
//
// Reference count adjustments are fire-and-forget. Transact reports a dead
// remote with an error matching errors.ErrDeadObject; any other error is
// opaque to callers.
type Transport interface {
	Transact(h Handle, code uint32, data *parcel.Parcel, flags uint32) (*parcel.Parcel, error)

	IncStrongHandle(h Handle)
	DecStrongHandle(h Handle)
	IncWeakHandle(h Handle)
	DecWeakHandle(h Handle)

	// AttemptIncStrongHandle acquires a strong reference on the remote
	// without a prior strong holder. It fails if the remote is dead.
	AttemptIncStrongHandle(h Handle) bool

	RequestDeathNotification(h Handle, n DeathNotifiee) error
	ClearDeathNotification(h Handle, n DeathNotifiee) error
}

// IsUserCode reports whether code is available for service-defined
// transactions.
func IsUserCode(code uint32) bool {
	return code >= FirstCallTransaction && code <= LastCallTransaction
}
