package sandbox

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/driver"
	"github.com/wippyai/binder/errors"
)

// Config holds sandbox configuration. A nil *Config uses defaults.
type Config struct {
	// MemoryLimitPages caps each guest's memory in 64KB pages.
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Host loads guest modules and publishes them as nodes on a driver.
type Host struct {
	ctx     context.Context
	cancel  context.CancelFunc
	runtime wazero.Runtime
	driver  *driver.Driver
	guests  map[binder.Handle]*guest
	mu      sync.Mutex
	closed  bool
}

// NewHost creates a host publishing into drv. Guest calls run under a
// context derived from ctx; cancelling it aborts running guests.
func NewHost(ctx context.Context, drv *driver.Driver, cfg *Config) *Host {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Host{
		ctx:     ctx,
		cancel:  cancel,
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		driver:  drv,
		guests:  make(map[binder.Handle]*guest),
	}
}

// Load compiles and instantiates wasm and publishes it as a service named
// descriptor.
func (h *Host) Load(ctx context.Context, wasm []byte, descriptor string) (binder.Handle, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return 0, errors.Closed(errors.PhaseSandbox, "host")
	}

	compiled, err := h.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return 0, errors.Load("compile failed", err)
	}

	// Anonymous instances so one binary can be loaded more than once.
	mod, err := h.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = compiled.Close(ctx)
		return 0, errors.Load("instantiate failed", err)
	}

	g, err := newGuest(h.ctx, h, mod)
	if err != nil {
		_ = mod.Close(ctx)
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		_ = mod.Close(ctx)
		return 0, errors.Closed(errors.PhaseSandbox, "host")
	}
	handle, err := h.driver.Publish(driver.NewService(descriptor, g))
	if err != nil {
		_ = mod.Close(ctx)
		return 0, err
	}
	g.handle = handle
	h.guests[handle] = g

	Logger().Info("guest loaded",
		zap.Uint32("handle", uint32(handle)),
		zap.String("descriptor", descriptor),
		zap.Int("size", len(wasm)))
	return handle, nil
}

// Len returns the number of loaded guests.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.guests)
}

func (h *Host) forget(handle binder.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.guests, handle)
}

// Close kills every loaded guest's node and closes the runtime.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	handles := make([]binder.Handle, 0, len(h.guests))
	for handle := range h.guests {
		handles = append(handles, handle)
	}
	h.mu.Unlock()

	var g errgroup.Group
	for _, handle := range handles {
		g.Go(func() error {
			if err := h.driver.Kill(handle); err != nil && !errors.Is(err, errors.ErrDeadObject) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	h.cancel()
	return multierr.Append(err, h.runtime.Close(ctx))
}
