// Package element models the named display elements drawn by linestatus.
package element

import (
	"fmt"
	"strconv"
	"strings"
)

// Orientation is the direction in which an element's line grows.
type Orientation int

const (
	// Vertical lines are anchored at the bottom and grow upward.
	Vertical Orientation = iota
	// Horizontal lines are anchored at the left and grow rightward.
	Horizontal
)

// ParseOrientation accepts "vertical" or "horizontal".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertical":
		return Vertical, nil
	case "horizontal":
		return Horizontal, nil
	}
	return 0, fmt.Errorf("orientation must be 'vertical' or 'horizontal', got %q", s)
}

func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Orientation) UnmarshalText(b []byte) error {
	v, err := ParseOrientation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Edge names the screen edge an element is pinned to.
type Edge int

const (
	EdgeRight Edge = iota
	EdgeBottom
	EdgeLeft
	EdgeTop
	// EdgeOffset pins the element to the top-left corner plus (X, Y).
	EdgeOffset
)

var edgeNames = []string{"right", "bottom", "left", "top", "offset"}

func (e Edge) String() string {
	if e < 0 || int(e) >= len(edgeNames) {
		return "unknown"
	}
	return edgeNames[e]
}

// Anchor is the placement directive handed to the Surface Adapter.
// X and Y are only meaningful for EdgeOffset.
type Anchor struct {
	Edge Edge
	X, Y int
}

// DefaultAnchor returns the edge placement used when no position is given:
// vertical bars sit on the right edge, horizontal bars on the bottom edge.
func DefaultAnchor(o Orientation) Anchor {
	if o == Horizontal {
		return Anchor{Edge: EdgeBottom}
	}
	return Anchor{Edge: EdgeRight}
}

// ParseAnchor accepts an edge name or an "X,Y" offset.
func ParseAnchor(s string) (Anchor, error) {
	s = strings.TrimSpace(s)
	for i, name := range edgeNames[:EdgeOffset] {
		if strings.EqualFold(s, name) {
			return Anchor{Edge: Edge(i)}, nil
		}
	}
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return Anchor{}, fmt.Errorf("position must be an edge name or X,Y, got %q", s)
	}
	xi, err := strconv.Atoi(strings.TrimSpace(x))
	if err != nil {
		return Anchor{}, fmt.Errorf("position x: %w", err)
	}
	yi, err := strconv.Atoi(strings.TrimSpace(y))
	if err != nil {
		return Anchor{}, fmt.Errorf("position y: %w", err)
	}
	return Anchor{Edge: EdgeOffset, X: xi, Y: yi}, nil
}

func (a Anchor) String() string {
	if a.Edge == EdgeOffset {
		return fmt.Sprintf("%d,%d", a.X, a.Y)
	}
	return a.Edge.String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Anchor) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Anchor) UnmarshalText(b []byte) error {
	v, err := ParseAnchor(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Spec describes an element at registration time.
type Spec struct {
	Name        string
	Orientation Orientation
	Anchor      Anchor
	Color       Color
	Initial     float64
}

// Snapshot is a read-only copy of an element's state.
type Snapshot struct {
	Name        string
	Value       float64
	Orientation Orientation
	Anchor      Anchor
	Color       Color
}

// Percent returns the value rounded to a whole percentage.
func (s Snapshot) Percent() int {
	return int(s.Value*100 + 0.5)
}
