package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"mrimesh/internal/logging"
)

var log = logging.For("mesh")

// FromTriangles builds a 2-D mesh from a triangle soup. Vertices closer than tol
// are welded into one point; triangles that collapse after welding are dropped.
// The returned mesh holds one reference owned by the caller.
func FromTriangles(tris [][3]r3.Vec, tol float64) (*Mesh, error) {
	m := NewMesh()
	if err := m.SetDimension(2); err != nil {
		m.UnRegister()
		return nil, err
	}
	if err := AppendTriangles(m, tris, tol); err != nil {
		m.UnRegister()
		return nil, err
	}
	return m, nil
}

// AppendTriangles welds a triangle soup onto an existing mesh whose dimension is
// at least 2. Triangles that collapse after welding are skipped.
func AppendTriangles(m *Mesh, tris [][3]r3.Vec, tol float64) error {
	loc := NewPointLocator(m)
	dropped := 0
	for _, t := range tris {
		var ids [3]int
		for i, v := range t {
			ids[i], _ = loc.InsertUniquePoint(v, tol)
		}
		if ids[0] == ids[1] || ids[1] == ids[2] || ids[0] == ids[2] {
			dropped++
			continue
		}
		if _, err := m.AddCell(Cell{Type: Triangle, PointIDs: ids[:]}); err != nil {
			return err
		}
	}
	if dropped > 0 {
		log.WithField("dropped", dropped).Info("skipped degenerate triangles")
	}
	return nil
}
