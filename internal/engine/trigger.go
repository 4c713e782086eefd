package engine

import (
	"fmt"

	"go.uber.org/zap"

	"linestatus/internal/command"
	"linestatus/internal/element"
	"linestatus/internal/eventbus"
	"linestatus/internal/fault"
	"linestatus/internal/render"
)

// Apply stores cmd's value on the addressed element and requests exactly one
// repaint of it. An unknown element leaves everything untouched.
func (e *Engine) Apply(cmd command.Command) error {
	name := cmd.Key
	if cmd.Default {
		name = e.defaultName
	}

	h, ok := e.reg.Find(name)
	if !ok {
		return fmt.Errorf("element %q: %w", name, fault.ErrUnknownElement)
	}
	e.reg.SetValue(h, cmd.Fraction())
	e.publish()

	e.surface.MarkDirty(name)

	e.log.Info("value updated", zap.String("element", name), zap.Int("percent", cmd.Percent))
	e.bus.Publish(name, eventbus.ValueChange{
		Percent: cmd.Percent,
		Value:   cmd.Fraction(),
	})
	return nil
}

// Draw is the Surface Adapter's draw callback: the fill geometry of the named
// element on a width×height surface.
func (e *Engine) Draw(name string, width, height int) (render.Instructions, bool) {
	snap, ok := e.snapshot(name)
	if !ok {
		return render.Instructions{}, false
	}
	return render.Draw(snap, width, height, e.debug), true
}

func (e *Engine) snapshot(name string) (element.Snapshot, bool) {
	h, ok := e.reg.Find(name)
	if !ok {
		return element.Snapshot{}, false
	}
	return e.reg.Snapshot(h)
}
