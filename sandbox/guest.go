package sandbox

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/errors"
	"github.com/wippyai/binder/parcel"
)

const (
	exportTransact = "transact"
	exportMemory   = "memory"
)

// guest is the driver.Handler for one module instance.
type guest struct {
	ctx    context.Context
	mod    api.Module
	fn     api.Function
	mem    api.Memory
	host   *Host
	name   string
	mu     sync.Mutex
	handle binder.Handle
	closed bool
}

func newGuest(ctx context.Context, host *Host, mod api.Module) (*guest, error) {
	fn := mod.ExportedFunction(exportTransact)
	if fn == nil {
		return nil, errors.Load("missing export \""+exportTransact+"\"", nil)
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != 2 || len(def.ResultTypes()) != 1 {
		return nil, errors.Load("export \""+exportTransact+"\" must be (i32, i32) -> i32", nil)
	}
	mem := mod.ExportedMemory(exportMemory)
	if mem == nil {
		return nil, errors.Load("missing export \""+exportMemory+"\"", nil)
	}
	return &guest{
		ctx:  ctx,
		mod:  mod,
		fn:   fn,
		mem:  mem,
		host: host,
		name: mod.Name(),
	}, nil
}

// OnTransact runs the guest's transact export. A trap kills the node.
func (g *guest) OnTransact(code uint32, data, reply *parcel.Parcel, flags uint32) error {
	out, trap, err := g.call(code, data.Bytes())
	if trap != nil {
		Logger().Warn("guest trapped",
			zap.Uint32("handle", uint32(g.handle)),
			zap.Uint32("code", code),
			zap.Error(trap))
		if kerr := g.host.driver.Kill(g.handle); kerr != nil {
			Logger().Debug("kill after trap", zap.Error(kerr))
		}
		return errors.New(errors.PhaseSandbox, errors.KindDeadObject).
			Handle(uint32(g.handle)).
			Cause(trap).
			Detail("guest trapped").
			Build()
	}
	if err != nil {
		return err
	}
	_, _ = reply.Write(out)
	return nil
}

// call holds the guest lock for the duration of one invocation. The
// returned reply is a copy of guest memory.
func (g *guest) call(code uint32, req []byte) (out []byte, trap error, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, nil, errors.DeadObject(errors.PhaseSandbox, uint32(g.handle))
	}
	if !g.mem.Write(0, req) {
		return nil, nil, errors.OutOfBounds(errors.PhaseSandbox, 0, len(req), int(g.mem.Size()))
	}

	res, callErr := g.fn.Call(g.ctx, uint64(code), uint64(len(req)))
	if callErr != nil {
		return nil, callErr, nil
	}

	n := int32(uint32(res[0]))
	if n < 0 {
		return nil, nil, errors.Status(n)
	}
	buf, ok := g.mem.Read(0, uint32(n))
	if !ok {
		return nil, nil, errors.New(errors.PhaseSandbox, errors.KindInvalidData).
			Handle(uint32(g.handle)).
			Detail("reply length %d exceeds memory size %d", n, g.mem.Size()).
			Build()
	}
	return append([]byte(nil), buf...), nil, nil
}

// Close releases the module instance. It runs when the node is killed.
func (g *guest) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.host.forget(g.handle)
	Logger().Debug("guest closed",
		zap.Uint32("handle", uint32(g.handle)),
		zap.String("module", g.name))
	return g.mod.Close(context.Background())
}
