package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// locatorPoint is a mesh point tagged with its id.
type locatorPoint struct {
	r3.Vec
	id int
}

// Compare implements the kdtree.Comparable interface
func (p locatorPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(locatorPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p locatorPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p locatorPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(locatorPoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

type locatorPoints []locatorPoint

func (p locatorPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p locatorPoints) Len() int                              { return len(p) }
func (p locatorPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p locatorPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(locatorPlane{locatorPoints: p, Dim: d}, kdtree.MedianOfRandoms(locatorPlane{locatorPoints: p, Dim: d}, 100))
}

// locatorPlane implements sort.Interface and kdtree.SortSlicer
type locatorPlane struct {
	locatorPoints
	kdtree.Dim
}

func (p locatorPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.locatorPoints[i].X < p.locatorPoints[j].X
	case 1:
		return p.locatorPoints[i].Y < p.locatorPoints[j].Y
	case 2:
		return p.locatorPoints[i].Z < p.locatorPoints[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p locatorPlane) Slice(start, end int) kdtree.SortSlicer {
	return locatorPlane{locatorPoints: p.locatorPoints[start:end], Dim: p.Dim}
}

func (p locatorPlane) Swap(i, j int) {
	p.locatorPoints[i], p.locatorPoints[j] = p.locatorPoints[j], p.locatorPoints[i]
}

// PointLocator answers closest-point queries over the points of a mesh and welds
// new points onto existing ones. Points added to the mesh behind the locator's
// back are not seen. Not safe for concurrent use.
type PointLocator struct {
	mesh  *Mesh
	tree  *kdtree.Tree
	count int
}

// NewPointLocator indexes the current points of m.
func NewPointLocator(m *Mesh) *PointLocator {
	pts := m.Points()
	l := &PointLocator{mesh: m, tree: &kdtree.Tree{}}
	if len(pts) > 0 {
		indexed := make(locatorPoints, len(pts))
		for i, p := range pts {
			indexed[i] = locatorPoint{Vec: p, id: i}
		}
		l.tree = kdtree.New(indexed, false)
		l.count = len(pts)
	}
	return l
}

// FindClosestPoint returns the id of the indexed point nearest to p and its
// distance. ok is false when nothing is indexed.
func (l *PointLocator) FindClosestPoint(p r3.Vec) (id int, dist float64, ok bool) {
	if l.count == 0 {
		return -1, math.Inf(1), false
	}
	c, d := l.tree.Nearest(locatorPoint{Vec: p})
	if c == nil {
		return -1, math.Inf(1), false
	}
	return c.(locatorPoint).id, math.Sqrt(d), true
}

// InsertUniquePoint returns the id of an indexed point within tol of p, or adds p
// to the mesh and the index. inserted reports which happened.
func (l *PointLocator) InsertUniquePoint(p r3.Vec, tol float64) (id int, inserted bool) {
	if near, dist, ok := l.FindClosestPoint(p); ok && dist <= tol {
		return near, false
	}
	id = l.mesh.AddPoint(p)
	l.tree.Insert(locatorPoint{Vec: p, id: id}, false)
	l.count++
	return id, true
}

// Len returns the number of indexed points.
func (l *PointLocator) Len() int {
	return l.count
}
