// Package surface provides the hosts that draw linestatus elements: a
// terminal adapter built on tview and a headless adapter that only logs.
package surface

import (
	"linestatus/internal/element"
	"linestatus/internal/render"
)

// Engine is what an adapter needs from the engine.
type Engine interface {
	Tick()
	Snapshots() []element.Snapshot
	Draw(name string, width, height int) (render.Instructions, bool)
}

// Drawer produces draw instructions for a named element.
type Drawer interface {
	Draw(name string, width, height int) (render.Instructions, bool)
}

// Rect is a region of the surface in cells.
type Rect struct {
	X, Y, W, H int
}

// Place returns the region an element occupies on a width×height surface.
// Vertical elements are thickness wide and span the height; horizontal ones
// are thickness tall and span the width. Right and bottom pin to the far
// side, left and top to the near side, and offsets start at (X, Y).
func Place(snap element.Snapshot, width, height, thickness int) Rect {
	if thickness < 1 {
		thickness = 1
	}
	a := snap.Anchor
	var r Rect
	if snap.Orientation == element.Vertical {
		r = Rect{X: width - thickness, W: thickness, H: height}
		switch a.Edge {
		case element.EdgeLeft:
			r.X = 0
		case element.EdgeOffset:
			r = Rect{X: a.X, Y: a.Y, W: thickness, H: height - a.Y}
		}
	} else {
		r = Rect{Y: height - thickness, W: width, H: thickness}
		switch a.Edge {
		case element.EdgeTop:
			r.Y = 0
		case element.EdgeOffset:
			r = Rect{X: a.X, Y: a.Y, W: width - a.X, H: thickness}
		}
	}
	return r.clip(width, height)
}

func (r Rect) clip(width, height int) Rect {
	if r.X < 0 {
		r.W += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.H += r.Y
		r.Y = 0
	}
	r.W = max(0, min(r.W, width-r.X))
	r.H = max(0, min(r.H, height-r.Y))
	return r
}

// Cells calls fn for every cell the segment covers, in surface coordinates.
func Cells(r Rect, o element.Orientation, seg render.Segment, fn func(x, y int)) {
	if seg.Empty() {
		return
	}
	var x0, x1, y0, y1 int
	if o == element.Vertical {
		x0 = seg.From.X - seg.Width/2
		x1 = x0 + seg.Width
		y0, y1 = seg.From.Y, seg.To.Y
	} else {
		x0, x1 = seg.From.X, seg.To.X
		y0 = seg.From.Y - seg.Width/2
		y1 = y0 + seg.Width
	}
	for y := max(y0, 0); y < min(y1, r.H); y++ {
		for x := max(x0, 0); x < min(x1, r.W); x++ {
			fn(r.X+x, r.Y+y)
		}
	}
}
