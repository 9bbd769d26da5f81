package driver

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wippyai/binder"
	binderrors "github.com/wippyai/binder/errors"
	"github.com/wippyai/binder/parcel"
)

type testObserver struct {
	events []Event
	mu     sync.Mutex
}

func (o *testObserver) OnNodeEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *testObserver) types() []EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]EventType, len(o.events))
	for i, e := range o.events {
		out[i] = e.Type
	}
	return out
}

type notifiee struct {
	calls atomic.Int32
}

func (n *notifiee) SendObituary() {
	n.calls.Add(1)
}

type closer struct {
	err    error
	closed atomic.Int32
}

func (c *closer) OnTransact(uint32, *parcel.Parcel, *parcel.Parcel, uint32) error {
	return nil
}

func (c *closer) Close() error {
	c.closed.Add(1)
	return c.err
}

func echoHandler() Handler {
	return HandlerFunc(func(code uint32, data, reply *parcel.Parcel, flags uint32) error {
		b, err := data.ReadByteArray()
		if err != nil {
			return err
		}
		reply.WriteByteArray(b)
		return nil
	})
}

func mustPublish(t *testing.T, d *Driver, obj Object) binder.Handle {
	t.Helper()
	h, err := d.Publish(obj)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}
	return h
}

func TestDriver_PublishLookup(t *testing.T) {
	d := New(nil)
	defer d.Close()

	h := mustPublish(t, d, NewService("demo.IEcho", nil))
	info, ok := d.Lookup(h)
	if !ok {
		t.Fatal("Lookup failed")
	}
	if info.Handle != h || info.Dead || info.Strong != 0 || info.Weak != 0 {
		t.Fatalf("Lookup = %+v", info)
	}
	if _, ok := d.Lookup(0); ok {
		t.Fatal("handle 0 must be invalid")
	}
	if _, ok := d.Lookup(h + 10); ok {
		t.Fatal("out of range handle must be invalid")
	}
	if d.Len() != 1 {
		t.Fatalf("Len = %d, want 1", d.Len())
	}

	if _, err := d.Publish(nil); err == nil {
		t.Fatal("publishing nil should fail")
	}
}

func TestDriver_MaxNodes(t *testing.T) {
	d := New(&Config{MaxNodes: 1})
	defer d.Close()

	mustPublish(t, d, NewService("a", nil))
	if _, err := d.Publish(NewService("b", nil)); err == nil {
		t.Fatal("expected node limit error")
	}
}

func TestDriver_Transact(t *testing.T) {
	d := New(nil)
	defer d.Close()
	h := mustPublish(t, d, NewService("demo.IEcho", echoHandler()))

	t.Run("ping", func(t *testing.T) {
		if _, err := d.Transact(h, binder.PingTransaction, parcel.New(), 0); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})

	t.Run("interface", func(t *testing.T) {
		reply, err := d.Transact(h, binder.InterfaceTransaction, parcel.New(), 0)
		if err != nil {
			t.Fatal(err)
		}
		s, _, err := reply.ReadString16()
		if err != nil || s != "demo.IEcho" {
			t.Fatalf("descriptor = %q, %v", s, err)
		}
	})

	t.Run("user code", func(t *testing.T) {
		data := parcel.New()
		data.WriteByteArray([]byte("hello"))
		// Move the caller's cursor; the callee must still read from the start.
		data.SetPosition(data.Len())

		reply, err := d.Transact(h, binder.FirstCallTransaction, data, 0)
		if err != nil {
			t.Fatal(err)
		}
		b, err := reply.ReadByteArray()
		if err != nil || string(b) != "hello" {
			t.Fatalf("reply = %q, %v", b, err)
		}
	})

	t.Run("unknown reserved code", func(t *testing.T) {
		_, err := d.Transact(h, binder.LastCallTransaction+1, parcel.New(), 0)
		if !errors.Is(err, binderrors.StatusUnknownTransaction) {
			t.Fatalf("err = %v, want UNKNOWN_TRANSACTION", err)
		}
	})

	t.Run("unknown handle", func(t *testing.T) {
		_, err := d.Transact(h+100, binder.PingTransaction, parcel.New(), 0)
		if !errors.Is(err, binderrors.ErrDeadObject) {
			t.Fatalf("err = %v, want dead object", err)
		}
	})
}

func TestDriver_Dump(t *testing.T) {
	d := New(nil)
	defer d.Close()
	h := mustPublish(t, d, NewService("demo.IDump", dumpHandler{}))

	reply, err := d.Transact(h, binder.DumpTransaction, parcel.New(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if s, _, _ := reply.ReadString16(); s != "all good" {
		t.Fatalf("dump = %q", s)
	}
}

type dumpHandler struct{}

func (dumpHandler) OnTransact(uint32, *parcel.Parcel, *parcel.Parcel, uint32) error { return nil }
func (dumpHandler) Dump() string                                                    { return "all good" }

func TestDriver_Oneway(t *testing.T) {
	d := New(nil)
	got := make(chan []byte, 1)
	h := mustPublish(t, d, NewService("demo.IOneway", HandlerFunc(
		func(code uint32, data, reply *parcel.Parcel, flags uint32) error {
			b, _ := data.ReadByteArray()
			got <- b
			return nil
		})))

	data := parcel.New()
	data.WriteByteArray([]byte("fire"))
	reply, err := d.Transact(h, binder.FirstCallTransaction, data, binder.FlagOneway)
	if err != nil || reply != nil {
		t.Fatalf("oneway = %v, %v, want nil, nil", reply, err)
	}
	if b := <-got; string(b) != "fire" {
		t.Fatalf("handler got %q", b)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDriver_RefCounts(t *testing.T) {
	d := New(nil)
	defer d.Close()
	obs := &testObserver{}
	d.Subscribe(obs)

	h := mustPublish(t, d, NewService("demo", nil))
	d.IncWeakHandle(h)
	d.IncStrongHandle(h)
	if !d.AttemptIncStrongHandle(h) {
		t.Fatal("AttemptIncStrongHandle failed on live node")
	}

	info, _ := d.Lookup(h)
	if info.Strong != 2 || info.Weak != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", info.Strong, info.Weak)
	}

	d.DecStrongHandle(h)
	d.DecStrongHandle(h)
	d.DecWeakHandle(h)
	// Underflow is ignored.
	d.DecWeakHandle(h)

	info, _ = d.Lookup(h)
	if info.Strong != 0 || info.Weak != 0 {
		t.Fatalf("counts = %d/%d, want 0/0", info.Strong, info.Weak)
	}

	want := []EventType{
		EventPublished, EventWeakAcquired, EventStrongAcquired, EventStrongAcquired,
		EventStrongReleased, EventStrongReleased, EventWeakReleased,
	}
	got := obs.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, got[i], want[i])
		}
	}

	d.Unsubscribe(obs)
	d.IncWeakHandle(h)
	if len(obs.types()) != len(want) {
		t.Fatal("unsubscribed observer received events")
	}
	d.DecWeakHandle(h)
}

func TestDriver_DeathNotification(t *testing.T) {
	d := New(nil)
	defer d.Close()
	h := mustPublish(t, d, NewService("demo", nil))

	a, b := &notifiee{}, &notifiee{}
	if err := d.RequestDeathNotification(h, a); err != nil {
		t.Fatal(err)
	}
	if err := d.RequestDeathNotification(h, b); err != nil {
		t.Fatal(err)
	}
	if err := d.RequestDeathNotification(h, a); !errors.Is(err, binderrors.ErrAlreadyRegistered) {
		t.Fatalf("duplicate request = %v, want already registered", err)
	}
	if err := d.ClearDeathNotification(h, b); err != nil {
		t.Fatal(err)
	}
	if err := d.ClearDeathNotification(h, b); !errors.Is(err, binderrors.ErrNotFound) {
		t.Fatalf("second clear = %v, want not found", err)
	}

	if err := d.Kill(h); err != nil {
		t.Fatal(err)
	}
	d.Drain()

	if a.calls.Load() != 1 || b.calls.Load() != 0 {
		t.Fatalf("calls = %d/%d, want 1/0", a.calls.Load(), b.calls.Load())
	}
	if err := d.Kill(h); err == nil {
		t.Fatal("second Kill should fail")
	}
}

func TestDriver_RequestOnDeadNode(t *testing.T) {
	d := New(nil)
	defer d.Close()
	h := mustPublish(t, d, NewService("demo", nil))
	d.IncWeakHandle(h) // keep the dead node in the table
	defer d.DecWeakHandle(h)

	if err := d.Kill(h); err != nil {
		t.Fatal(err)
	}

	n := &notifiee{}
	if err := d.RequestDeathNotification(h, n); err != nil {
		t.Fatalf("request on dead node: %v", err)
	}
	d.Drain()
	if n.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", n.calls.Load())
	}
	if err := d.ClearDeathNotification(h, n); err != nil {
		t.Fatalf("clear after death = %v, want nil", err)
	}
	if d.AttemptIncStrongHandle(h) {
		t.Fatal("AttemptIncStrongHandle succeeded on dead node")
	}
	if _, err := d.Transact(h, binder.PingTransaction, parcel.New(), 0); !errors.Is(err, binderrors.ErrDeadObject) {
		t.Fatalf("Transact = %v, want dead object", err)
	}
}

func TestDriver_FreeAfterDeath(t *testing.T) {
	d := New(nil)
	defer d.Close()
	obs := &testObserver{}
	d.Subscribe(obs)

	h := mustPublish(t, d, NewService("demo", nil))
	d.IncWeakHandle(h)
	_ = d.Kill(h)

	if _, ok := d.Lookup(h); !ok {
		t.Fatal("referenced dead node freed too early")
	}
	d.DecWeakHandle(h)
	if _, ok := d.Lookup(h); ok {
		t.Fatal("unreferenced dead node not freed")
	}

	types := obs.types()
	if types[len(types)-1] != EventFreed {
		t.Fatalf("last event = %v, want freed", types[len(types)-1])
	}

	// Freed handles are reused.
	h2 := mustPublish(t, d, NewService("again", nil))
	if h2 != h {
		t.Fatalf("handle %d not reused, got %d", h, h2)
	}
}

func TestDriver_KillClosesObject(t *testing.T) {
	d := New(nil)
	defer d.Close()
	c := &closer{}
	h := mustPublish(t, d, NewService("demo", c))

	if err := d.Kill(h); err != nil {
		t.Fatal(err)
	}
	if c.closed.Load() != 1 {
		t.Fatalf("closed = %d, want 1", c.closed.Load())
	}
}

func TestDriver_Close(t *testing.T) {
	d := New(nil)
	c1 := &closer{err: errors.New("first")}
	c2 := &closer{err: errors.New("second")}
	h1 := mustPublish(t, d, NewService("a", c1))
	mustPublish(t, d, NewService("b", c2))

	n := &notifiee{}
	if err := d.RequestDeathNotification(h1, n); err != nil {
		t.Fatal(err)
	}

	err := d.Close()
	if err == nil {
		t.Fatal("expected combined close error")
	}
	if !errors.Is(err, c1.err) || !errors.Is(err, c2.err) {
		t.Fatalf("Close = %v, want both errors", err)
	}
	if n.calls.Load() != 1 {
		t.Fatalf("notifiee calls = %d, want 1", n.calls.Load())
	}
	if _, err := d.Publish(NewService("late", nil)); !errors.Is(err, binderrors.ErrClosed) {
		t.Fatalf("Publish after Close = %v, want closed", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close = %v", err)
	}
}

type panicky struct{}

func (panicky) SendObituary() { panic("boom") }

func TestDriver_ReaperSurvivesPanic(t *testing.T) {
	d := New(nil)
	defer d.Close()
	h := mustPublish(t, d, NewService("demo", nil))

	n := &notifiee{}
	_ = d.RequestDeathNotification(h, panicky{})
	_ = d.RequestDeathNotification(h, n)
	_ = d.Kill(h)
	d.Drain()

	if n.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", n.calls.Load())
	}
}

func TestEventType_String(t *testing.T) {
	if EventDied.String() != "died" {
		t.Fatalf("String() = %q", EventDied.String())
	}
	if EventType(200).String() != "unknown" {
		t.Fatal("out of range event type should be unknown")
	}
}
