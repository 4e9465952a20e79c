package compose

import (
	"errors"
	"fmt"
	"image"
)

// ErrCyclicComposition is returned when attaching a composition would make
// it contain itself, directly or transitively. Detected at attach time;
// cycles never reach rendering.
var ErrCyclicComposition = errors.New("cyclic composition")

// Composition is a node whose visual content is the composited result of
// its ordered child layers, painted back to front. A composition can be
// nested inside another via NewCompositionLayer.
type Composition struct {
	id     NodeID
	width  int
	height int
	fps    float64

	layers    []*Layer // z-order, index 0 is the backmost
	structRev uint64
}

// NewComposition creates an empty composition with the given canvas size
// and frame rate. Size and fps propagate to nested compositions at render
// time.
func NewComposition(width, height int, fps float64) *Composition {
	return &Composition{
		id:     newNodeID(),
		width:  width,
		height: height,
		fps:    fps,
	}
}

func (c *Composition) ID() NodeID        { return c.id }
func (c *Composition) Size() image.Point { return image.Point{X: c.width, Y: c.height} }
func (c *Composition) FPS() float64      { return c.fps }

// StructRevision increases on every structural edit (add, remove,
// reorder), so cached subtree results depending on the old structure can
// never be reused.
func (c *Composition) StructRevision() uint64 { return c.structRev }

// Layers returns the children in paint order. The slice is shared; use the
// structural ops to edit it.
func (c *Composition) Layers() []*Layer { return c.layers }

// LayerByName returns the first child with the given name, or nil.
func (c *Composition) LayerByName(name string) *Layer {
	for _, l := range c.layers {
		if l.name == name {
			return l
		}
	}
	return nil
}

// LayerByID returns the child with the given id, or nil.
func (c *Composition) LayerByID(id NodeID) *Layer {
	for _, l := range c.layers {
		if l.id == id {
			return l
		}
	}
	return nil
}

func (c *Composition) indexOf(id NodeID) int {
	for i, l := range c.layers {
		if l.id == id {
			return i
		}
	}
	return -1
}

// contains reports whether target is reachable from c through nested
// composition layers.
func (c *Composition) contains(target *Composition) bool {
	for _, l := range c.layers {
		if l.comp == nil {
			continue
		}
		if l.comp == target || l.comp.contains(target) {
			return true
		}
	}
	return false
}

func (c *Composition) checkCycle(l *Layer) error {
	if l.comp == nil {
		return nil
	}
	if l.comp == c || l.comp.contains(c) {
		return fmt.Errorf("%w: %q would contain its own ancestor", ErrCyclicComposition, l.name)
	}
	return nil
}

// AddLayer appends a layer at the front of the paint order (topmost).
func (c *Composition) AddLayer(l *Layer) error {
	return c.InsertLayer(len(c.layers), l)
}

// InsertLayer places a layer at the given z index (0 = backmost). The
// graph is left unchanged on error.
func (c *Composition) InsertLayer(i int, l *Layer) error {
	if err := c.checkCycle(l); err != nil {
		return err
	}
	if c.indexOf(l.id) >= 0 {
		return fmt.Errorf("layer %q already attached", l.name)
	}
	if i < 0 || i > len(c.layers) {
		return fmt.Errorf("layer index %d out of range", i)
	}
	c.layers = append(c.layers, nil)
	copy(c.layers[i+1:], c.layers[i:])
	c.layers[i] = l
	c.structRev++
	return nil
}

// RemoveLayer detaches the child with the given id.
func (c *Composition) RemoveLayer(id NodeID) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("no layer with id %d", id)
	}
	c.layers = append(c.layers[:i], c.layers[i+1:]...)
	c.structRev++
	return nil
}

// Reorder moves the child with the given id to a new z index.
func (c *Composition) Reorder(id NodeID, newIndex int) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("no layer with id %d", id)
	}
	if newIndex < 0 || newIndex >= len(c.layers) {
		return fmt.Errorf("layer index %d out of range", newIndex)
	}
	l := c.layers[i]
	c.layers = append(c.layers[:i], c.layers[i+1:]...)
	c.layers = append(c.layers, nil)
	copy(c.layers[newIndex+1:], c.layers[newIndex:])
	c.layers[newIndex] = l
	c.structRev++
	return nil
}

// MatteSourceFor resolves the matte source for a child: the explicitly
// referenced sibling if set, otherwise the layer immediately behind it in
// paint order. Returns nil when the layer has no matte or no source
// exists.
func (c *Composition) MatteSourceFor(l *Layer) *Layer {
	if l.matte == MatteNone {
		return nil
	}
	if l.matteSrc != 0 {
		return c.LayerByID(l.matteSrc)
	}
	i := c.indexOf(l.id)
	if i <= 0 {
		return nil
	}
	return c.layers[i-1]
}
