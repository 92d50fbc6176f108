package mesh

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Bounds returns the axis-aligned bounding box of all points. ok is false for a
// mesh without points.
func (m *Mesh) Bounds() (box r3.Box, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.points) == 0 {
		return r3.Box{}, false
	}
	box.Min = m.points[0]
	box.Max = m.points[0]
	for _, p := range m.points[1:] {
		box.Min = r3.Vec{X: math.Min(box.Min.X, p.X), Y: math.Min(box.Min.Y, p.Y), Z: math.Min(box.Min.Z, p.Z)}
		box.Max = r3.Vec{X: math.Max(box.Max.X, p.X), Y: math.Max(box.Max.Y, p.Y), Z: math.Max(box.Max.Z, p.Z)}
	}
	return box, true
}

// FaceNormal returns the unit normal of a 2-D cell, computed with Newell's method
// so non-planar polygons get a sensible average. Degenerate cells yield the zero
// vector.
func (m *Mesh) FaceNormal(id CellID) (r3.Vec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.cellLocked(id)
	if err != nil {
		return r3.Vec{}, err
	}
	if c.Dimension() != 2 {
		return r3.Vec{}, errors.Wrapf(ErrInvalidCell, "%v has no face normal", c.Type)
	}

	var n r3.Vec
	for i, pid := range c.PointIDs {
		p := m.points[pid]
		q := m.points[c.PointIDs[(i+1)%len(c.PointIDs)]]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	if r3.Norm(n) == 0 {
		return r3.Vec{}, nil
	}
	return r3.Unit(n), nil
}

// fan calls fn for each triangle of a fan triangulation of a 2-D cell.
func (m *Mesh) fan(c Cell, fn func(p0, p1, p2 r3.Vec)) {
	p := c.PointIDs
	for i := 1; i+1 < len(p); i++ {
		fn(m.points[p[0]], m.points[p[i]], m.points[p[i+1]])
	}
}

func triangleArea(a, b, c r3.Vec) float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
}

// SurfaceArea sums the area of all 2-D cells.
func (m *Mesh) SurfaceArea() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.cells) <= 2 {
		return 0
	}
	area := 0.0
	for _, c := range m.cells[2] {
		m.fan(c, func(p0, p1, p2 r3.Vec) {
			area += triangleArea(p0, p1, p2)
		})
	}
	return area
}

// EnclosedVolume applies the divergence theorem to the 2-D cells. The result is
// only meaningful for closed, consistently oriented surfaces; its sign follows
// the orientation, so the absolute value is returned.
func (m *Mesh) EnclosedVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.cells) <= 2 {
		return 0
	}
	vol := 0.0
	for _, c := range m.cells[2] {
		m.fan(c, func(p0, p1, p2 r3.Vec) {
			vol += r3.Dot(p0, r3.Cross(p1, p2)) / 6
		})
	}
	return math.Abs(vol)
}
