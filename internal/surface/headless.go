package surface

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Headless draws nothing. Each repaint request is turned into draw
// instructions for a virtual surface and logged.
type Headless struct {
	drawer        Drawer
	width, height int
	log           *zap.Logger
	redraws       atomic.Int64
}

// NewHeadless returns an adapter drawing on a virtual width×height surface.
func NewHeadless(d Drawer, width, height int, log *zap.Logger) *Headless {
	if log == nil {
		log = zap.NewNop()
	}
	return &Headless{drawer: d, width: width, height: height, log: log.Named("surface")}
}

// MarkDirty implements engine.Surface.
func (h *Headless) MarkDirty(name string) {
	h.redraws.Add(1)
	in, ok := h.drawer.Draw(name, h.width, h.height)
	if !ok {
		h.log.Debug("redraw of unknown element", zap.String("element", name))
		return
	}
	h.log.Debug("redraw",
		zap.String("element", name),
		zap.Int("length", in.Segment.Length),
		zap.Stringer("color", in.Color))
}

// Redraws returns how many repaints were requested.
func (h *Headless) Redraws() int64 {
	return h.redraws.Load()
}
