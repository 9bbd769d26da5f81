// Package binder provides a Go implementation of binder-style remote object
// proxies: reference-counted handles to objects living behind an IPC
// transport, with transaction relay and death notification.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	binder/          Root package with Handle, reserved codes and the Transport contract
//	├── proxy/       Remote object proxies, death notification, attachments, proxy cache
//	├── driver/      In-process Transport with node table and death reaper
//	├── sandbox/     Remote objects hosted as wazero guests
//	├── parcel/      Transaction payload buffer
//	└── errors/      Structured error types and status codes
//
// # Quick Start
//
// Publish a service and talk to it through a proxy:
//
//	drv := driver.New(nil)
//	defer drv.Close()
//
//	h, err := drv.Publish(driver.NewService("demo.IEcho", echoHandler))
//
//	cache := proxy.NewCache(drv)
//	p := cache.Get(h)
//	defer p.DecStrong()
//
//	reply, err := p.Transact(binder.FirstCallTransaction, data, 0)
//	if errors.Is(err, errors.ErrDeadObject) {
//	    // remote is gone
//	}
//
// # Death Notification
//
// Register a recipient to learn when the remote object dies:
//
//	err := p.LinkToDeath(recipient, 0, 0)
//
// The Transport invokes the proxy's SendObituary exactly once when the
// remote dies; every registered recipient receives BinderDied once, outside
// any proxy lock, in registration order.
//
// # Reference Counting
//
// Proxies carry strong and weak counts. The Transport only sees the
// transitions: IncStrongHandle on the first strong reference,
// DecStrongHandle when the last one is released, IncWeakHandle at
// construction and DecWeakHandle at destruction.
package binder
