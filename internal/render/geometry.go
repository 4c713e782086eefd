// Package render maps element state onto line geometry. It has no windowing
// dependencies; Surface Adapters turn the result into pixels or cells.
package render

import (
	"math"

	"linestatus/internal/element"
)

// Point is a position in surface coordinates, origin top-left.
type Point struct {
	X, Y int
}

// Segment is the filled part of an element's line: a stroke from From to To
// with the given Width.
type Segment struct {
	From, To Point
	Width    int
	// Length is the filled extent along the growth axis.
	Length int
}

// Empty reports whether nothing should be drawn.
func (s Segment) Empty() bool {
	return s.Length == 0
}

// Fill computes the filled segment for value on a width×height surface.
//
// Vertical lines are anchored to the bottom and centred horizontally;
// horizontal lines are anchored to the left and centred vertically.
func Fill(value float64, o element.Orientation, width, height int) Segment {
	width = max(width, 0)
	height = max(height, 0)
	value = math.Max(0, math.Min(1, value))

	if o == element.Horizontal {
		n := int(math.Round(float64(width) * value))
		return Segment{
			From:   Point{X: 0, Y: height / 2},
			To:     Point{X: n, Y: height / 2},
			Width:  height,
			Length: n,
		}
	}

	n := int(math.Round(float64(height) * value))
	return Segment{
		From:   Point{X: width / 2, Y: height - n},
		To:     Point{X: width / 2, Y: height},
		Width:  width,
		Length: n,
	}
}

// Instructions is everything a Surface Adapter needs to paint one element.
type Instructions struct {
	Segment Segment
	Color   element.Color
}

// Draw is the draw callback handed to Surface Adapters.
func Draw(snap element.Snapshot, width, height int, debug bool) Instructions {
	c := snap.Color
	if debug {
		c = element.Black
	}
	return Instructions{
		Segment: Fill(snap.Value, snap.Orientation, width, height),
		Color:   c,
	}
}
