package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/driver"
	"github.com/wippyai/binder/parcel"
	"github.com/wippyai/binder/proxy"
	"github.com/wippyai/binder/sandbox"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain returns the exit code so deferred log flushing runs first.
func realMain(args []string) int {
	fs := flag.NewFlagSet("binderctl", flag.ContinueOnError)
	var (
		wasmFile    = fs.String("wasm", "", "Path to guest wasm module (built-in echo guest if empty)")
		descriptor  = fs.String("descriptor", "demo.IEcho", "Interface descriptor to publish the guest under")
		code        = fs.Uint("code", uint(binder.FirstCallTransaction), "Transaction code to send")
		data        = fs.String("data", "", "String payload, sent as a byte array")
		kill        = fs.Bool("kill", false, "Kill the service after transacting and report the obituary")
		interactive = fs.Bool("i", false, "Interactive mode with TUI")
		verbose     = fs.Bool("v", false, "Verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = logger.Sync() }()
		proxy.SetLogger(logger.Named("proxy"))
		driver.SetLogger(logger.Named("driver"))
		sandbox.SetLogger(logger.Named("sandbox"))
	}

	wasm := sandbox.EchoWasm
	if *wasmFile != "" {
		b, err := os.ReadFile(*wasmFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read file: %v\n", err)
			return 1
		}
		wasm = b
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i requires a terminal")
			return 1
		}
		if err := runInteractive(wasm, *descriptor); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := run(wasm, *descriptor, uint32(*code), *data, *kill); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// session bundles the stack both modes run on.
type session struct {
	driver *driver.Driver
	host   *sandbox.Host
	cache  *proxy.Cache
}

func newSession(ctx context.Context) *session {
	drv := driver.New(nil)
	return &session{
		driver: drv,
		host:   sandbox.NewHost(ctx, drv, &sandbox.Config{MemoryLimitPages: 256}),
		cache:  proxy.NewCache(drv),
	}
}

func (s *session) close(ctx context.Context) error {
	if err := s.host.Close(ctx); err != nil {
		return err
	}
	return s.driver.Close()
}

func run(wasm []byte, descriptor string, code uint32, payload string, kill bool) error {
	ctx := context.Background()
	s := newSession(ctx)
	defer s.close(ctx)

	h, err := s.host.Load(ctx, wasm, descriptor)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	fmt.Printf("Published %s as handle %d\n", descriptor, h)

	p := s.cache.Get(h)
	defer p.DecStrong()

	died := make(chan binder.Handle, 1)
	recipient := proxy.DeathRecipientFunc(func(who *proxy.Proxy) {
		died <- who.Handle()
	})
	if err := p.LinkToDeath(&recipient, 0, 0); err != nil {
		return fmt.Errorf("link to death: %w", err)
	}

	if err := p.PingBinder(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Println("Ping: ok")
	fmt.Printf("Descriptor: %q\n", p.GetInterfaceDescriptor())

	req := parcel.New()
	req.WriteByteArray([]byte(payload))
	reply, err := p.Transact(code, req, 0)
	if err != nil {
		fmt.Printf("Transact %d: %v\n", code, err)
	} else {
		b, rerr := reply.ReadByteArray()
		if rerr != nil {
			fmt.Printf("Transact %d: %d byte reply\n", code, reply.Len())
		} else {
			fmt.Printf("Transact %d: %q\n", code, b)
		}
	}

	if kill && p.IsAlive() {
		if err := s.driver.Kill(h); err != nil {
			return fmt.Errorf("kill: %w", err)
		}
	}
	s.driver.Drain()

	select {
	case who := <-died:
		fmt.Printf("Obituary received for handle %d\n", who)
	default:
		fmt.Printf("Alive: %v\n", p.IsAlive())
	}
	return nil
}
