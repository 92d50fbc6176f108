package mesh

import (
	"fmt"

	"github.com/pkg/errors"
)

// CellType enumerates the supported cell shapes.
type CellType int

const (
	Vertex CellType = iota
	Line
	Triangle
	Quad
	Polygon
	Tetra
	Hexahedron
)

var cellTypeNames = [...]string{
	Vertex:     "vertex",
	Line:       "line",
	Triangle:   "triangle",
	Quad:       "quad",
	Polygon:    "polygon",
	Tetra:      "tetra",
	Hexahedron: "hexahedron",
}

func (t CellType) String() string {
	if t < 0 || int(t) >= len(cellTypeNames) {
		return fmt.Sprintf("CellType(%d)", int(t))
	}
	return cellTypeNames[t]
}

// Dimension returns the topological dimension of the cell type, or -1 for an
// unknown type.
func (t CellType) Dimension() int {
	switch t {
	case Vertex:
		return 0
	case Line:
		return 1
	case Triangle, Quad, Polygon:
		return 2
	case Tetra, Hexahedron:
		return 3
	}
	return -1
}

// NumberOfPoints returns the fixed point count of the type; 0 means variable.
func (t CellType) NumberOfPoints() int {
	switch t {
	case Vertex:
		return 1
	case Line:
		return 2
	case Triangle:
		return 3
	case Quad, Tetra:
		return 4
	case Hexahedron:
		return 8
	}
	return 0
}

// Cell is a shape over point ids of a mesh. Point ordering follows the usual
// conventions: counter-clockwise rings for 2-D cells, bottom face then top face
// for hexahedra.
type Cell struct {
	Type     CellType
	PointIDs []int
}

// CellID addresses a cell by its dimension bucket and index inside it.
type CellID struct {
	Dim   int
	Index int
}

// Dimension is the topological dimension of the cell.
func (c Cell) Dimension() int {
	return c.Type.Dimension()
}

// Validate checks the point count against the type and rejects repeated ids.
func (c Cell) Validate() error {
	if c.Type.Dimension() < 0 {
		return errors.Wrapf(ErrInvalidCell, "unknown type %v", c.Type)
	}
	n := len(c.PointIDs)
	if want := c.Type.NumberOfPoints(); want > 0 && n != want {
		return errors.Wrapf(ErrInvalidCell, "%v needs %d points, got %d", c.Type, want, n)
	}
	if c.Type == Polygon && n < 3 {
		return errors.Wrapf(ErrInvalidCell, "polygon needs at least 3 points, got %d", n)
	}
	seen := make(map[int]struct{}, n)
	for _, id := range c.PointIDs {
		if _, dup := seen[id]; dup {
			return errors.Wrapf(ErrInvalidCell, "%v repeats point %d", c.Type, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

var (
	tetraEdges = [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}}
	tetraFaces = [][]int{{0, 1, 3}, {1, 2, 3}, {2, 0, 3}, {0, 2, 1}}

	hexEdges = [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	hexFaces = [][]int{
		{0, 4, 7, 3}, {1, 2, 6, 5},
		{0, 1, 5, 4}, {3, 7, 6, 2},
		{0, 3, 2, 1}, {4, 5, 6, 7},
	}
)

// Edges returns the 1-D boundary features as point id pairs. A line is its own
// edge; vertices have none.
func (c Cell) Edges() [][2]int {
	p := c.PointIDs
	switch c.Type {
	case Line:
		return [][2]int{{p[0], p[1]}}
	case Triangle, Quad, Polygon:
		edges := make([][2]int, len(p))
		for i := range p {
			edges[i] = [2]int{p[i], p[(i+1)%len(p)]}
		}
		return edges
	case Tetra:
		return mapEdges(p, tetraEdges)
	case Hexahedron:
		return mapEdges(p, hexEdges)
	}
	return nil
}

// Faces returns the 2-D boundary features. A 2-D cell is its own face.
func (c Cell) Faces() [][]int {
	switch c.Type {
	case Triangle, Quad, Polygon:
		return [][]int{append([]int(nil), c.PointIDs...)}
	case Tetra:
		return mapFaces(c.PointIDs, tetraFaces)
	case Hexahedron:
		return mapFaces(c.PointIDs, hexFaces)
	}
	return nil
}

func mapEdges(p []int, local [][2]int) [][2]int {
	edges := make([][2]int, len(local))
	for i, e := range local {
		edges[i] = [2]int{p[e[0]], p[e[1]]}
	}
	return edges
}

func mapFaces(p []int, local [][]int) [][]int {
	faces := make([][]int, len(local))
	for i, f := range local {
		face := make([]int, len(f))
		for j, k := range f {
			face[j] = p[k]
		}
		faces[i] = face
	}
	return faces
}

// edgeKey is an undirected edge with the smaller id first.
type edgeKey [2]int

func makeEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}
