package driver_test

import (
	"sync"
	"testing"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/driver"
	"github.com/wippyai/binder/errors"
	"github.com/wippyai/binder/parcel"
	"github.com/wippyai/binder/proxy"
)

func TestProxyOverDriver(t *testing.T) {
	d := driver.New(nil)
	defer d.Close()

	h, err := d.Publish(driver.NewService("demo.ICounter", nil))
	if err != nil {
		t.Fatal(err)
	}

	cache := proxy.NewCache(d)
	p := cache.Get(h)

	if err := p.PingBinder(); err != nil {
		t.Fatalf("PingBinder: %v", err)
	}
	if got := p.GetInterfaceDescriptor(); got != "demo.ICounter" {
		t.Fatalf("descriptor = %q", got)
	}

	info, _ := d.Lookup(h)
	if info.Strong != 1 || info.Weak != 1 {
		t.Fatalf("driver counts = %d/%d, want 1/1", info.Strong, info.Weak)
	}

	// A second holder reuses the proxy and does not touch the driver.
	if q := cache.Get(h); q != p {
		t.Fatal("cache returned a different proxy")
	}
	p.DecStrong()
	info, _ = d.Lookup(h)
	if info.Strong != 1 {
		t.Fatalf("driver strong = %d, want 1", info.Strong)
	}

	var (
		mu   sync.Mutex
		died []*proxy.Proxy
	)
	r := proxy.DeathRecipientFunc(func(who *proxy.Proxy) {
		mu.Lock()
		died = append(died, who)
		mu.Unlock()
	})
	if err := p.LinkToDeath(&r, 0, 0); err != nil {
		t.Fatalf("LinkToDeath: %v", err)
	}
	info, _ = d.Lookup(h)
	if info.Watchers != 1 {
		t.Fatalf("watchers = %d, want 1", info.Watchers)
	}

	if err := d.Kill(h); err != nil {
		t.Fatal(err)
	}
	d.Drain()

	mu.Lock()
	if len(died) != 1 || died[0] != p {
		t.Fatalf("died = %v, want one delivery for the proxy", died)
	}
	mu.Unlock()

	if p.IsAlive() {
		t.Fatal("proxy still alive after obituary")
	}
	if _, err := p.Transact(binder.FirstCallTransaction, parcel.New(), 0); !errors.Is(err, errors.ErrDeadObject) {
		t.Fatalf("Transact = %v, want dead object", err)
	}
	if err := p.LinkToDeath(&r, 0, 0); !errors.Is(err, errors.ErrDeadObject) {
		t.Fatalf("LinkToDeath after death = %v, want dead object", err)
	}

	p.DecStrong()
	if cache.Len() != 0 {
		t.Fatalf("cache len = %d, want 0", cache.Len())
	}
	if _, ok := d.Lookup(h); ok {
		t.Fatal("dead node should be freed once the proxy is gone")
	}
}

func TestProxyOverDriver_UnlinkBeforeDeath(t *testing.T) {
	d := driver.New(nil)
	defer d.Close()

	h, _ := d.Publish(driver.NewService("demo", nil))
	cache := proxy.NewCache(d)
	p := cache.Get(h)
	defer p.DecStrong()

	calls := 0
	r := proxy.DeathRecipientFunc(func(*proxy.Proxy) { calls++ })
	if err := p.LinkToDeath(&r, 1, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := p.UnlinkToDeath(&r, 1, 0); err != nil {
		t.Fatal(err)
	}
	info, _ := d.Lookup(h)
	if info.Watchers != 0 || info.Weak != 1 {
		t.Fatalf("after unlink watchers=%d weak=%d, want 0/1", info.Watchers, info.Weak)
	}

	_ = d.Kill(h)
	d.Drain()
	if calls != 0 {
		t.Fatalf("unlinked recipient called %d times", calls)
	}
}
