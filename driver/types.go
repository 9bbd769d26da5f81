package driver

import (
	"github.com/wippyai/binder"
	"github.com/wippyai/binder/parcel"
)

// EventType identifies a node lifecycle or reference event.
type EventType uint8

const (
	EventPublished EventType = iota
	EventStrongAcquired
	EventStrongReleased
	EventWeakAcquired
	EventWeakReleased
	EventDeathRequested
	EventDeathCleared
	EventDied
	EventFreed
)

var eventNames = [...]string{
	EventPublished:      "published",
	EventStrongAcquired: "strong_acquired",
	EventStrongReleased: "strong_released",
	EventWeakAcquired:   "weak_acquired",
	EventWeakReleased:   "weak_released",
	EventDeathRequested: "death_requested",
	EventDeathCleared:   "death_cleared",
	EventDied:           "died",
	EventFreed:          "freed",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event describes a change to a node. Strong and Weak are the counts after
// the change.
type Event struct {
	Handle binder.Handle
	Strong int32
	Weak   int32
	Type   EventType
}

// Observer receives node events.
type Observer interface {
	OnNodeEvent(Event)
}

// ObserverFunc adapts a function to Observer. Use it through a pointer so
// it can be unsubscribed.
type ObserverFunc func(Event)

// OnNodeEvent calls f.
func (f *ObserverFunc) OnNodeEvent(e Event) {
	(*f)(e)
}

// Object is the callee side of a node. data is positioned at its start;
// anything written to reply is returned to the caller.
type Object interface {
	Transact(code uint32, data, reply *parcel.Parcel, flags uint32) error
}

// Handler implements a service's user transaction codes.
type Handler interface {
	OnTransact(code uint32, data, reply *parcel.Parcel, flags uint32) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(code uint32, data, reply *parcel.Parcel, flags uint32) error

// OnTransact calls f.
func (f HandlerFunc) OnTransact(code uint32, data, reply *parcel.Parcel, flags uint32) error {
	return f(code, data, reply, flags)
}

// Dumper is optionally implemented by handlers to answer dump requests.
type Dumper interface {
	Dump() string
}
