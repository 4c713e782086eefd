package element

import (
	"fmt"
	"math"

	"linestatus/internal/fault"
)

// Handle addresses a registered element. The zero Handle is invalid.
type Handle struct {
	idx int // index+1 into Registry.elements
}

// Valid reports whether h was returned by Register or Find.
func (h Handle) Valid() bool {
	return h.idx > 0
}

type displayElement struct {
	name        string
	value       float64
	orientation Orientation
	anchor      Anchor
	color       Color
}

// Registry owns every display element, in registration order.
//
// A Registry is not safe for concurrent use. It is mutated only from the
// engine loop; other goroutines read published snapshots instead.
type Registry struct {
	elements []*displayElement
	byName   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds an element. The initial value is clamped into [0, 1].
func (r *Registry) Register(spec Spec) (Handle, error) {
	if spec.Name == "" {
		return Handle{}, fmt.Errorf("register: empty element name")
	}
	if _, ok := r.byName[spec.Name]; ok {
		return Handle{}, fmt.Errorf("register %q: %w", spec.Name, fault.ErrDuplicateElement)
	}

	r.elements = append(r.elements, &displayElement{
		name:        spec.Name,
		value:       clamp(spec.Initial),
		orientation: spec.Orientation,
		anchor:      spec.Anchor,
		color:       spec.Color,
	})
	h := Handle{idx: len(r.elements)}
	r.byName[spec.Name] = h.idx
	return h, nil
}

// Find returns the handle for name.
func (r *Registry) Find(name string) (Handle, bool) {
	idx, ok := r.byName[name]
	return Handle{idx: idx}, ok
}

// SetValue stores v clamped into [0, 1]. It reports false for an invalid
// handle.
func (r *Registry) SetValue(h Handle, v float64) bool {
	e := r.get(h)
	if e == nil {
		return false
	}
	e.value = clamp(v)
	return true
}

// Snapshot returns a copy of the element's state.
func (r *Registry) Snapshot(h Handle) (Snapshot, bool) {
	e := r.get(h)
	if e == nil {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Snapshots returns copies of all elements in registration order.
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, len(r.elements))
	for i, e := range r.elements {
		out[i] = e.snapshot()
	}
	return out
}

// Names returns element names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.elements))
	for i, e := range r.elements {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered elements.
func (r *Registry) Len() int {
	return len(r.elements)
}

func (r *Registry) get(h Handle) *displayElement {
	if h.idx <= 0 || h.idx > len(r.elements) {
		return nil
	}
	return r.elements[h.idx-1]
}

func (e *displayElement) snapshot() Snapshot {
	return Snapshot{
		Name:        e.name,
		Value:       e.value,
		Orientation: e.orientation,
		Anchor:      e.anchor,
		Color:       e.color,
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
