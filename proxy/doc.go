// Package proxy implements the local stand-in for a remote binder object.
//
// A Proxy owns one handle in a binder.Transport. It relays transactions,
// tracks whether the remote is still alive, delivers death notifications to
// registered recipients and carries out-of-band attachments that are cleaned
// up when the proxy is destroyed.
//
// # Lifetime
//
// A Proxy has a strong and a weak count. Every strong reference also holds a
// weak one, and the proxy is destroyed when the weak count drops to zero.
// Only count transitions reach the Transport:
//
//	New                 -> IncWeakHandle
//	strong 0 -> 1       -> IncStrongHandle
//	strong 1 -> 0       -> DecStrongHandle
//	AttemptIncStrong    -> AttemptIncStrongHandle (only when no strong holder exists)
//	weak 1 -> 0         -> DecWeakHandle (proxy destroyed)
//
// Most callers obtain proxies from a Cache, which keeps one proxy per handle
// and returns it with a strong reference held:
//
//	cache := proxy.NewCache(transport)
//	p := cache.Get(h)
//	defer p.DecStrong()
//
// # Death Notification
//
// LinkToDeath registers a recipient. The first registration asks the
// Transport to watch the handle and takes a weak reference on the proxy so
// it outlives the watch; removing the last registration undoes both. When
// the Transport calls SendObituary, the proxy is marked dead and every
// recipient registered at that moment receives BinderDied exactly once,
// outside the proxy lock and in registration order.
//
// Recipients are held strongly unless wrapped with WeakRecipient, in which
// case a recipient that has been garbage collected is skipped.
//
// # Attachments
//
// AttachObject stores one payload per key. Remaining payloads have their
// cleanup functions run when the proxy is destroyed.
package proxy
