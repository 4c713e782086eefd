// Package engine ties the update channel, the command parser and the element
// registry together and tells the Surface Adapter when to repaint.
//
// An Engine is driven by calling Tick periodically from a single goroutine,
// the same one that runs the Surface Adapter's draw callbacks. Tick, Handle,
// Apply and Draw must only be called from that goroutine. Submit, Snapshots
// and Lookup are safe from any goroutine.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"linestatus/internal/channel"
	"linestatus/internal/command"
	"linestatus/internal/element"
	"linestatus/internal/eventbus"
	"linestatus/internal/fault"
)

// DefaultPollInterval is how often Run ticks.
const DefaultPollInterval = 100 * time.Millisecond

// inboxSize bounds commands queued by Submit between two ticks.
const inboxSize = 64

// ErrInboxFull is returned by Submit when the loop is not keeping up.
var ErrInboxFull = errors.New("engine inbox full")

// Surface is the part of the Surface Adapter the engine talks to.
type Surface interface {
	// MarkDirty requests a repaint of the named element. The adapter later
	// calls Engine.Draw for it.
	MarkDirty(name string)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(name string)

// MarkDirty calls f(name).
func (f SurfaceFunc) MarkDirty(name string) { f(name) }

// Options configures New.
type Options struct {
	// Elements are registered in order.
	Elements []element.Spec
	// DefaultElement is addressed by bare "N" commands. See ResolveDefault.
	DefaultElement string
	Transport      channel.Transport
	Surface        Surface
	Bus            *eventbus.Bus
	Logger         *zap.Logger
	// Debug draws every element in black.
	Debug bool
}

// Engine owns the element registry and the update transport.
type Engine struct {
	reg         *element.Registry
	transport   channel.Transport
	surface     Surface
	bus         *eventbus.Bus
	log         *zap.Logger
	defaultName string
	debug       bool

	inbox     chan []byte
	published atomic.Pointer[[]element.Snapshot]

	closeOnce sync.Once
	closeErr  error
}

// New registers opts.Elements and returns an engine ready to tick.
func New(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("engine: no transport")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	bus := opts.Bus
	if bus == nil {
		bus = eventbus.New()
	}

	reg := element.NewRegistry()
	for _, spec := range opts.Elements {
		if _, err := reg.Register(spec); err != nil {
			return nil, err
		}
	}

	def, err := ResolveDefault(reg.Names(), opts.DefaultElement)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		reg:         reg,
		transport:   opts.Transport,
		surface:     opts.Surface,
		bus:         bus,
		log:         log.Named("engine"),
		defaultName: def,
		debug:       opts.Debug,
		inbox:       make(chan []byte, inboxSize),
	}
	if e.surface == nil {
		e.surface = SurfaceFunc(func(string) {})
	}
	e.publish()
	return e, nil
}

// ResolveDefault picks the element addressed by bare commands: the configured
// name when given, the only element when there is one, "volume" when present,
// and otherwise the first registered element.
func ResolveDefault(names []string, configured string) (string, error) {
	if configured != "" {
		if !slices.Contains(names, configured) {
			return "", fmt.Errorf("default element %q: %w", configured, fault.ErrUnknownElement)
		}
		return configured, nil
	}
	switch {
	case len(names) == 0:
		return "", nil
	case len(names) == 1:
		return names[0], nil
	case slices.Contains(names, "volume"):
		return "volume", nil
	}
	return names[0], nil
}

// SetSurface replaces the Surface. Call it before the first Tick.
func (e *Engine) SetSurface(s Surface) {
	e.surface = s
}

// DefaultElement returns the name addressed by bare commands.
func (e *Engine) DefaultElement() string {
	return e.defaultName
}

// Tick polls the transport and applies everything that arrived, followed by
// anything queued through Submit. Each source keeps its own receipt order;
// within one tick the transport batch always goes first, so a Submit that
// raced a socket write loses to it. Tick never blocks.
func (e *Engine) Tick() {
	cmds, err := e.transport.Poll()
	if err != nil {
		e.log.Warn("poll failed", zap.Error(err))
	}
	for _, raw := range cmds {
		e.Handle(raw)
	}
	for {
		select {
		case raw := <-e.inbox:
			e.Handle(raw)
		default:
			return
		}
	}
}

// Run ticks every interval until ctx is done. It is the host loop used when
// no toolkit owns the event loop.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Submit queues a raw command for the next Tick. It is the entry point for
// goroutines other than the loop.
func (e *Engine) Submit(raw []byte) error {
	select {
	case e.inbox <- bytes.Clone(raw):
		return nil
	default:
		return ErrInboxFull
	}
}

// Handle parses raw and applies it. Errors are logged and published as
// rejections; the returned error is informational only.
func (e *Engine) Handle(raw []byte) error {
	cmd, err := command.Parse(raw)
	if err == nil {
		err = e.Apply(cmd)
	}
	if err != nil {
		e.reject(raw, err)
	}
	return err
}

func (e *Engine) reject(raw []byte, err error) {
	input := string(bytes.TrimSpace(bytes.TrimRight(raw, "\x00")))
	kind := fault.KindOf(err)
	e.log.Warn("rejected update",
		zap.String("kind", kind),
		zap.String("input", input),
		zap.Error(err))
	e.bus.Publish("", eventbus.Rejection{
		Kind:  kind,
		Input: input,
		Error: err.Error(),
	})
}

// Snapshots returns the element states as of the last applied update. Safe
// from any goroutine.
func (e *Engine) Snapshots() []element.Snapshot {
	return *e.published.Load()
}

// Lookup returns the published state of one element. Safe from any goroutine.
func (e *Engine) Lookup(name string) (element.Snapshot, bool) {
	for _, s := range e.Snapshots() {
		if s.Name == name {
			return s, true
		}
	}
	return element.Snapshot{}, false
}

func (e *Engine) publish() {
	snaps := e.reg.Snapshots()
	e.published.Store(&snaps)
}

// Close releases the transport. Cleanup failures are logged and returned but
// never block shutdown. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.transport.Close()
		if e.closeErr != nil {
			e.log.Error("cleanup failed",
				zap.String("kind", fault.KindOf(e.closeErr)),
				zap.Error(e.closeErr))
		}
		e.bus.Publish("", eventbus.Shutdown{})
	})
	return e.closeErr
}
