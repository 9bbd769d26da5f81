// Package driver provides an in-process binder.Transport.
//
// The driver plays the part of the kernel: it owns a table of nodes (local
// objects published by a service), counts the strong and weak references
// remote proxies hold on each node, and delivers death notifications when a
// node is killed.
//
// # Node Table
//
// Publish maps an Object to an integer handle:
//
//	drv := driver.New(nil)
//	defer drv.Close()
//
//	h, err := drv.Publish(driver.NewService("demo.IEcho", handler))
//
// Handle 0 is reserved and always invalid. Handles of freed nodes are reused.
// A node is freed once it is dead and no proxy references it.
//
// # Death Notification
//
// Kill marks a node dead, closes its Object if it implements io.Closer and
// hands every registered DeathNotifiee to the reaper: a single goroutine
// owned by the driver that calls SendObituary outside all driver locks.
// Registering on a node that is already dead schedules an immediate
// notification. Drain blocks until the reaper is idle.
//
// # Observers
//
// Register observers to trace node lifecycle and reference traffic:
//
//	obs := driver.ObserverFunc(func(e driver.Event) {
//	    log.Printf("%s handle=%d strong=%d weak=%d", e.Type, e.Handle, e.Strong, e.Weak)
//	})
//	drv.Subscribe(&obs)
package driver
