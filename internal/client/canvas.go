package client

import "github.com/nishchay-veer/canvas-app/internal/domain"

// Canvas is the client-side shape set, keyed by shape id. The server
// echoes every accepted shape back to its author, so inserts deduplicate
// by id: applying the echo of a shape already drawn locally is a no-op
// upsert, never a duplicate.
//
// All callback dispatch happens on a single goroutine, so Canvas does no
// locking of its own.
type Canvas struct {
	order  []string
	shapes map[string]domain.Shape
}

// NewCanvas returns an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{shapes: make(map[string]domain.Shape)}
}

// Upsert inserts or replaces a shape. It reports whether the shape was new.
func (c *Canvas) Upsert(shape domain.Shape) bool {
	_, exists := c.shapes[shape.ID]
	c.shapes[shape.ID] = shape
	if !exists {
		c.order = append(c.order, shape.ID)
	}
	return !exists
}

// Remove deletes a shape by id. Removing an unknown id is a no-op.
func (c *Canvas) Remove(shapeID string) bool {
	if _, exists := c.shapes[shapeID]; !exists {
		return false
	}
	delete(c.shapes, shapeID)
	for i, id := range c.order {
		if id == shapeID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every shape.
func (c *Canvas) Clear() {
	c.order = c.order[:0]
	c.shapes = make(map[string]domain.Shape)
}

// Shapes returns the shapes in insertion order.
func (c *Canvas) Shapes() []domain.Shape {
	out := make([]domain.Shape, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.shapes[id])
	}
	return out
}

// Len returns the number of shapes on the canvas.
func (c *Canvas) Len() int {
	return len(c.shapes)
}
