package mesh

import (
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrInvalidDimension = errors.New("mesh: dimension out of range")
	ErrDimensionInUse   = errors.New("mesh: dimension still holds cells")
	ErrDimensionNotSet  = errors.New("mesh: dimension not set")
	ErrCellDimension    = errors.New("mesh: cell dimension exceeds mesh dimension")
	ErrPointOutOfRange  = errors.New("mesh: point id out of range")
	ErrCellOutOfRange   = errors.New("mesh: cell id out of range")
	ErrInvalidCell      = errors.New("mesh: invalid cell")
)

var _ MeshBase = (*Mesh)(nil)

// Mesh stores points and cells bucketed by topological dimension. Cell storage is
// allocated per dimension by SetDimension; point-to-cell links are maintained as
// cells are added.
//
// A Mesh is safe for concurrent use.
type Mesh struct {
	Base

	mu     sync.RWMutex
	points []r3.Vec
	cells  [][]Cell
	links  [][]CellID
}

// NewMesh creates an empty mesh holding one reference. Its dimension is
// NoDimension until SetDimension is called.
func NewMesh() *Mesh {
	m := &Mesh{}
	m.Base.init(m.release)
	return m
}

// release frees the storage once the last reference is gone.
func (m *Mesh) release() {
	m.mu.Lock()
	m.points = nil
	m.cells = nil
	m.links = nil
	m.dimension.Store(NoDimension)
	m.mu.Unlock()
}

// Initialize drops all points and cells and returns the mesh to NoDimension.
func (m *Mesh) Initialize() {
	m.release()
	m.Base.Initialize()
}

// SetDimension allocates one cell store per dimension up to dim, which must be
// within 0..MaxDimension. Growing keeps existing cells. Shrinking fails with
// ErrDimensionInUse while a dropped dimension still holds cells. Repeating the
// current dimension does nothing.
func (m *Mesh) SetDimension(dim int) error {
	if dim < 0 || dim > MaxDimension {
		return errors.Wrapf(ErrInvalidDimension, "dimension %d", dim)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := len(m.cells) - 1
	switch {
	case dim == current:
		return nil
	case dim < current:
		for d := dim + 1; d <= current; d++ {
			if n := len(m.cells[d]); n > 0 {
				return errors.Wrapf(ErrDimensionInUse, "%d cells of dimension %d", n, d)
			}
		}
		m.cells = m.cells[:dim+1]
	default:
		for d := current + 1; d <= dim; d++ {
			m.cells = append(m.cells, make([]Cell, 0))
		}
	}
	return m.Base.SetDimension(dim)
}

// AddPoint appends a point and returns its id.
func (m *Mesh) AddPoint(p r3.Vec) int {
	m.mu.Lock()
	id := len(m.points)
	m.points = append(m.points, p)
	m.links = append(m.links, nil)
	m.mu.Unlock()
	m.Modified()
	return id
}

// SetPoint moves an existing point.
func (m *Mesh) SetPoint(id int, p r3.Vec) error {
	m.mu.Lock()
	if id < 0 || id >= len(m.points) {
		m.mu.Unlock()
		return errors.Wrapf(ErrPointOutOfRange, "point %d", id)
	}
	m.points[id] = p
	m.mu.Unlock()
	m.Modified()
	return nil
}

// Point returns the coordinates of a point.
func (m *Mesh) Point(id int) (r3.Vec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 0 || id >= len(m.points) {
		return r3.Vec{}, errors.Wrapf(ErrPointOutOfRange, "point %d", id)
	}
	return m.points[id], nil
}

// NumberOfPoints returns the point count.
func (m *Mesh) NumberOfPoints() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Points returns a copy of all point coordinates.
func (m *Mesh) Points() []r3.Vec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]r3.Vec(nil), m.points...)
}

// AddCell validates and stores a cell in the bucket of its dimension.
func (m *Mesh) AddCell(c Cell) (CellID, error) {
	if err := c.Validate(); err != nil {
		return CellID{}, err
	}

	m.mu.Lock()
	if len(m.cells) == 0 {
		m.mu.Unlock()
		return CellID{}, ErrDimensionNotSet
	}
	dim := c.Dimension()
	if dim >= len(m.cells) {
		m.mu.Unlock()
		return CellID{}, errors.Wrapf(ErrCellDimension, "%v cell in %d-D mesh", c.Type, len(m.cells)-1)
	}
	for _, pid := range c.PointIDs {
		if pid < 0 || pid >= len(m.points) {
			m.mu.Unlock()
			return CellID{}, errors.Wrapf(ErrPointOutOfRange, "point %d in %v cell", pid, c.Type)
		}
	}

	id := CellID{Dim: dim, Index: len(m.cells[dim])}
	m.cells[dim] = append(m.cells[dim], Cell{
		Type:     c.Type,
		PointIDs: append([]int(nil), c.PointIDs...),
	})
	for _, pid := range c.PointIDs {
		m.links[pid] = append(m.links[pid], id)
	}
	m.mu.Unlock()

	m.Modified()
	return id, nil
}

// Cell returns a copy of the addressed cell.
func (m *Mesh) Cell(id CellID) (Cell, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.cellLocked(id)
	if err != nil {
		return Cell{}, err
	}
	return Cell{Type: c.Type, PointIDs: append([]int(nil), c.PointIDs...)}, nil
}

func (m *Mesh) cellLocked(id CellID) (*Cell, error) {
	if id.Dim < 0 || id.Dim >= len(m.cells) || id.Index < 0 || id.Index >= len(m.cells[id.Dim]) {
		return nil, errors.Wrapf(ErrCellOutOfRange, "cell %d/%d", id.Dim, id.Index)
	}
	return &m.cells[id.Dim][id.Index], nil
}

// Cells returns a copy of the cells of one dimension. Unallocated dimensions
// yield nil.
func (m *Mesh) Cells(dim int) []Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if dim < 0 || dim >= len(m.cells) {
		return nil
	}
	out := make([]Cell, len(m.cells[dim]))
	for i, c := range m.cells[dim] {
		out[i] = Cell{Type: c.Type, PointIDs: append([]int(nil), c.PointIDs...)}
	}
	return out
}

// NumberOfCells returns the cell count of one dimension.
func (m *Mesh) NumberOfCells(dim int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if dim < 0 || dim >= len(m.cells) {
		return 0
	}
	return len(m.cells[dim])
}

// TotalCells returns the cell count over all dimensions.
func (m *Mesh) TotalCells() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, bucket := range m.cells {
		n += len(bucket)
	}
	return n
}

// Graft replaces the points and cells of m with a copy of those of src. The
// identity, references and source connection of m are kept.
func (m *Mesh) Graft(src *Mesh) {
	if m == src {
		return
	}

	src.mu.RLock()
	points := append([]r3.Vec(nil), src.points...)
	cells := make([][]Cell, len(src.cells))
	for d, bucket := range src.cells {
		cells[d] = make([]Cell, len(bucket))
		for i, c := range bucket {
			cells[d][i] = Cell{Type: c.Type, PointIDs: append([]int(nil), c.PointIDs...)}
		}
	}
	links := make([][]CellID, len(src.links))
	for i, l := range src.links {
		links[i] = append([]CellID(nil), l...)
	}
	src.mu.RUnlock()

	m.mu.Lock()
	m.points, m.cells, m.links = points, cells, links
	m.mu.Unlock()
	m.Base.SetDimension(len(cells) - 1)
}
