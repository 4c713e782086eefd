package surface

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"linestatus/internal/element"
)

// TerminalOptions configures NewTerminal.
type TerminalOptions struct {
	// Screen overrides the terminal, mainly for tests.
	Screen tcell.Screen
	// Interval is how often the engine is ticked.
	Interval time.Duration
	// Thickness is the bar thickness in cells.
	Thickness int
	Logger    *zap.Logger
}

// Terminal hosts the engine inside a tview application. Ticks are queued on
// the application's event goroutine, so the engine and the draw callback
// never run concurrently.
type Terminal struct {
	app       *tview.Application
	root      *tview.Box
	eng       Engine
	interval  time.Duration
	thickness int
	log       *zap.Logger

	// only touched on the event goroutine
	dirty   map[string]bool
	redraws int
}

// NewTerminal builds the application. Call engine.SetSurface with the result
// before Run.
func NewTerminal(eng Engine, opts TerminalOptions) *Terminal {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	t := &Terminal{
		app:       tview.NewApplication(),
		eng:       eng,
		interval:  interval,
		thickness: max(opts.Thickness, 1),
		log:       log.Named("surface"),
		dirty:     make(map[string]bool),
	}
	if opts.Screen != nil {
		t.app.SetScreen(opts.Screen)
	}

	t.root = tview.NewBox()
	t.root.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		t.drawAll(screen, x, y, width, height)
		return x, y, width, height
	})

	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			t.app.Stop()
			return nil
		}
		return event
	})
	t.app.SetRoot(t.root, true)
	return t
}

// MarkDirty implements engine.Surface.
func (t *Terminal) MarkDirty(name string) {
	t.dirty[name] = true
}

// tick runs on the event goroutine.
func (t *Terminal) tick() {
	t.eng.Tick()
	if len(t.dirty) == 0 {
		return
	}
	clear(t.dirty)
	t.redraws++
	t.app.ForceDraw()
}

// Run blocks until ctx is done or the user quits with q or Esc.
func (t *Terminal) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				t.app.Stop()
				return
			case <-ticker.C:
				t.app.QueueUpdate(t.tick)
			}
		}
	}()

	t.log.Debug("terminal surface started", zap.Duration("interval", t.interval))
	return t.app.Run()
}

// Stop ends Run from any goroutine.
func (t *Terminal) Stop() {
	t.app.Stop()
}

func (t *Terminal) drawAll(screen tcell.Screen, x, y, width, height int) {
	bg := tcell.StyleDefault
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, bg)
		}
	}

	for _, snap := range t.eng.Snapshots() {
		r := Place(snap, width, height, t.thickness)
		r.X += x
		r.Y += y
		in, ok := t.eng.Draw(snap.Name, r.W, r.H)
		if !ok {
			continue
		}
		style := tcell.StyleDefault.Background(cellColor(in.Color))
		Cells(r, snap.Orientation, in.Segment, func(cx, cy int) {
			screen.SetContent(cx, cy, ' ', nil, style)
		})
	}
}

func cellColor(c element.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
