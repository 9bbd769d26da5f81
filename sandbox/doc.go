// Package sandbox hosts binder services compiled to WebAssembly.
//
// A guest module exports its linear memory as "memory" and one function:
//
//	transact(code i32, len i32) -> i32
//
// Before each call the host copies the request payload to offset 0 of the
// guest's memory. The guest writes its reply at offset 0 and returns the
// reply length, or a negative status code. A trap kills the node, so every
// proxy linked to it receives an obituary.
//
// Each guest runs in its own module instance on a shared wazero runtime.
// Calls into one guest are serialized.
package sandbox
