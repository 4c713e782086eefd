package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"linestatus/internal/element"
)

func TestFill_Vertical(t *testing.T) {
	seg := Fill(0.75, element.Vertical, 4, 1080)
	assert.Equal(t, 810, seg.Length)
	assert.Equal(t, Point{X: 2, Y: 270}, seg.From)
	assert.Equal(t, Point{X: 2, Y: 1080}, seg.To)
	assert.Equal(t, 4, seg.Width)
}

func TestFill_Horizontal(t *testing.T) {
	seg := Fill(0.2, element.Horizontal, 1920, 4)
	assert.Equal(t, 384, seg.Length)
	assert.Equal(t, Point{X: 0, Y: 2}, seg.From)
	assert.Equal(t, Point{X: 384, Y: 2}, seg.To)
	assert.Equal(t, 4, seg.Width)
}

func TestFill_Rounds(t *testing.T) {
	// 10 * 0.25 = 2.5 rounds away from zero
	assert.Equal(t, 3, Fill(0.25, element.Vertical, 1, 10).Length)
	assert.Equal(t, 2, Fill(0.24, element.Horizontal, 10, 1).Length)
}

func TestFill_Bounds(t *testing.T) {
	for _, o := range []element.Orientation{element.Vertical, element.Horizontal} {
		zero := Fill(0, o, 10, 50)
		assert.True(t, zero.Empty())

		full := Fill(1, o, 10, 50)
		if o == element.Vertical {
			assert.Equal(t, 50, full.Length)
			assert.Equal(t, 0, full.From.Y)
		} else {
			assert.Equal(t, 10, full.Length)
			assert.Equal(t, 10, full.To.X)
		}

		assert.Equal(t, full, Fill(7, o, 10, 50))
		assert.Equal(t, zero, Fill(-1, o, 10, 50))
	}
}

func TestFill_Deterministic(t *testing.T) {
	for _, v := range []float64{0, 0.1, 0.33, 0.5, 0.999, 1} {
		a := Fill(v, element.Vertical, 4, 777)
		b := Fill(v, element.Vertical, 4, 777)
		assert.Equal(t, a, b)
	}
}

func TestFill_ZeroSurface(t *testing.T) {
	assert.True(t, Fill(1, element.Vertical, 0, 0).Empty())
	assert.True(t, Fill(1, element.Horizontal, -5, 3).Empty())
}

func TestDraw_Debug(t *testing.T) {
	snap := element.Snapshot{Name: "volume", Value: 0.5, Color: element.Orange}

	in := Draw(snap, 4, 100, false)
	assert.Equal(t, element.Orange, in.Color)
	assert.Equal(t, 50, in.Segment.Length)

	in = Draw(snap, 4, 100, true)
	assert.Equal(t, element.Black, in.Color)
}
