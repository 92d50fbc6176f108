package mesh

import (
	"sort"

	"github.com/pkg/errors"
)

// PointCells returns the cells, of any dimension, that use the point.
func (m *Mesh) PointCells(pid int) ([]CellID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pid < 0 || pid >= len(m.points) {
		return nil, errors.Wrapf(ErrPointOutOfRange, "point %d", pid)
	}
	return append([]CellID(nil), m.links[pid]...), nil
}

// EdgeNeighbors returns the cells of the same dimension that share at least one
// edge with the given cell, ordered by index.
func (m *Mesh) EdgeNeighbors(id CellID) ([]CellID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.cellLocked(id)
	if err != nil {
		return nil, err
	}

	found := make(map[CellID]struct{})
	for _, e := range c.Edges() {
		want := makeEdgeKey(e[0], e[1])
		for _, other := range m.links[e[0]] {
			if other == id || other.Dim != id.Dim {
				continue
			}
			if _, ok := found[other]; ok {
				continue
			}
			if hasEdge(m.cells[other.Dim][other.Index], want) {
				found[other] = struct{}{}
			}
		}
	}

	out := make([]CellID, 0, len(found))
	for n := range found {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func hasEdge(c Cell, want edgeKey) bool {
	for _, e := range c.Edges() {
		if makeEdgeKey(e[0], e[1]) == want {
			return true
		}
	}
	return false
}

// BoundaryEdges returns the edges used by exactly one 2-D cell, smaller id first,
// in sorted order.
func (m *Mesh) BoundaryEdges() [][2]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.boundaryEdgesLocked()
}

func (m *Mesh) boundaryEdgesLocked() [][2]int {
	if len(m.cells) <= 2 {
		return nil
	}
	counts := make(map[edgeKey]int)
	for _, c := range m.cells[2] {
		for _, e := range c.Edges() {
			counts[makeEdgeKey(e[0], e[1])]++
		}
	}

	var out [][2]int
	for e, n := range counts {
		if n == 1 {
			out = append(out, [2]int(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// IsClosed reports whether the mesh has 2-D cells and every edge of them is
// shared by at least two cells.
func (m *Mesh) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.cells) <= 2 || len(m.cells[2]) == 0 {
		return false
	}
	return len(m.boundaryEdgesLocked()) == 0
}
