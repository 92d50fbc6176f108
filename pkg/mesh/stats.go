package mesh

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a sample of measurements.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Summary{
		Count:  len(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}
}

// Statistics is a snapshot of mesh size and quality measures.
type Statistics struct {
	Dimension     int
	Points        int
	CellsByDim    []int
	EdgeLength    Summary
	TriangleArea  Summary
	BoundaryEdges int
}

// Statistics computes edge length and cell area summaries. Every unique edge of
// every cell of dimension 1 or more is measured once; areas come from the fan
// triangulation of 2-D cells.
func (m *Mesh) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Statistics{
		Dimension:  len(m.cells) - 1,
		Points:     len(m.points),
		CellsByDim: make([]int, len(m.cells)),
	}

	seen := make(map[edgeKey]struct{})
	var lengths, areas []float64
	for d, bucket := range m.cells {
		st.CellsByDim[d] = len(bucket)
		for _, c := range bucket {
			for _, e := range c.Edges() {
				k := makeEdgeKey(e[0], e[1])
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				lengths = append(lengths, r3.Norm(r3.Sub(m.points[k[1]], m.points[k[0]])))
			}
			if d == 2 {
				m.fan(c, func(p0, p1, p2 r3.Vec) {
					areas = append(areas, triangleArea(p0, p1, p2))
				})
			}
		}
	}
	st.EdgeLength = summarize(lengths)
	st.TriangleArea = summarize(areas)
	st.BoundaryEdges = len(m.boundaryEdgesLocked())
	return st
}

// Checksum hashes point coordinates and cell connectivity. Two meshes with the
// same points and cells in the same order hash equal.
func (m *Mesh) Checksum() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}

	put(uint64(len(m.points)))
	for _, p := range m.points {
		put(math.Float64bits(p.X))
		put(math.Float64bits(p.Y))
		put(math.Float64bits(p.Z))
	}
	put(uint64(len(m.cells)))
	for _, bucket := range m.cells {
		put(uint64(len(bucket)))
		for _, c := range bucket {
			put(uint64(c.Type))
			put(uint64(len(c.PointIDs)))
			for _, id := range c.PointIDs {
				put(uint64(id))
			}
		}
	}
	return d.Sum64()
}
