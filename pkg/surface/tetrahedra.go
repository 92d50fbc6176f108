// Package surface extracts iso-surfaces from scalar volumes.
package surface

import (
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"mrimesh/internal/logging"
	"mrimesh/pkg/stl"
	"mrimesh/pkg/volume"
)

var log = logging.For("surface")

// cube corner offsets; corner 0 is the voxel itself and corner 6 the opposite one
var corners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// Six tetrahedra around the 0-6 diagonal. Neighbouring cubes split their shared
// faces along the same diagonal, so the resulting surface has no cracks.
var tetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// MarchingTetrahedra extracts the iso-surface of a volume. Every voxel cube is
// split into six tetrahedra and each tetrahedron contributes up to two triangles.
// Triangles are wound so their normals point from values >= the iso level towards
// lower values.
type MarchingTetrahedra struct {
	vol      *volume.Volume
	isoLevel float64
	scale    [3]float64
	workers  int
}

// NewMarchingTetrahedra prepares an extractor. The scale defaults to the volume
// spacing and the worker count to the number of CPUs.
func NewMarchingTetrahedra(vol *volume.Volume, isoLevel float64) (*MarchingTetrahedra, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	return &MarchingTetrahedra{
		vol:      vol,
		isoLevel: isoLevel,
		scale:    [3]float64{vol.Spacing.X, vol.Spacing.Y, vol.Spacing.Z},
		workers:  runtime.NumCPU(),
	}, nil
}

// SetScale sets the physical size of a voxel along each axis.
func (mt *MarchingTetrahedra) SetScale(x, y, z float64) {
	mt.scale = [3]float64{x, y, z}
}

// SetWorkers sets how many goroutines process slabs in parallel.
func (mt *MarchingTetrahedra) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	mt.workers = n
}

// GenerateTriangles runs the extraction. The output order does not depend on the
// number of workers.
func (mt *MarchingTetrahedra) GenerateTriangles() []stl.Triangle {
	slabs := mt.vol.Depth - 1
	if slabs < 1 || mt.vol.Width < 2 || mt.vol.Height < 2 {
		return nil
	}

	workers := mt.workers
	if workers > slabs {
		workers = slabs
	}

	// One result per z slab keeps the merge deterministic
	results := make([][]stl.Triangle, slabs)
	jobs := make(chan int, slabs)
	for z := 0; z < slabs; z++ {
		jobs <- z
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range jobs {
				results[z] = mt.processSlab(z)
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	triangles := make([]stl.Triangle, 0, total)
	for _, r := range results {
		triangles = append(triangles, r...)
	}

	log.WithField("triangles", len(triangles)).Infof("extracted iso-surface at level %.3f with %d workers", mt.isoLevel, workers)
	return triangles
}

type sample struct {
	pos   [3]float64
	value float64
}

func (mt *MarchingTetrahedra) processSlab(z int) []stl.Triangle {
	var out []stl.Triangle
	v := mt.vol
	var cube [8]sample

	for y := 0; y < v.Height-1; y++ {
		for x := 0; x < v.Width-1; x++ {
			inside := 0
			for i, c := range corners {
				cx, cy, cz := x+c[0], y+c[1], z+c[2]
				cube[i] = sample{
					pos:   [3]float64{float64(cx) * mt.scale[0], float64(cy) * mt.scale[1], float64(cz) * mt.scale[2]},
					value: v.At(cx, cy, cz),
				}
				if cube[i].value >= mt.isoLevel {
					inside++
				}
			}
			if inside == 0 || inside == 8 {
				continue
			}
			for _, tet := range tetrahedra {
				out = mt.polygonize(out, cube[tet[0]], cube[tet[1]], cube[tet[2]], cube[tet[3]])
			}
		}
	}
	return out
}

// polygonize appends the triangles of one tetrahedron.
func (mt *MarchingTetrahedra) polygonize(out []stl.Triangle, s0, s1, s2, s3 sample) []stl.Triangle {
	var in, outside []sample
	for _, s := range [4]sample{s0, s1, s2, s3} {
		if s.value >= mt.isoLevel {
			in = append(in, s)
		} else {
			outside = append(outside, s)
		}
	}

	switch len(in) {
	case 1:
		a := in[0]
		return appendOriented(out, centroid(outside), a.pos,
			mt.cut(a, outside[0]), mt.cut(a, outside[1]), mt.cut(a, outside[2]))
	case 3:
		o := outside[0]
		return appendOriented(out, o.pos, centroid(in),
			mt.cut(in[0], o), mt.cut(in[1], o), mt.cut(in[2], o))
	case 2:
		a, b := in[0], in[1]
		c, d := outside[0], outside[1]
		q0, q1, q2, q3 := mt.cut(a, c), mt.cut(a, d), mt.cut(b, d), mt.cut(b, c)
		toward := centroid(outside)
		away := centroid(in)
		out = appendOriented(out, toward, away, q0, q1, q2)
		return appendOriented(out, toward, away, q0, q2, q3)
	}
	return out
}

// cut interpolates the crossing on the edge from an inside to an outside sample.
// Always interpolating in that direction makes shared edges produce identical
// vertices.
func (mt *MarchingTetrahedra) cut(in, out sample) mgl32.Vec3 {
	t := (mt.isoLevel - in.value) / (out.value - in.value)
	return mgl32.Vec3{
		float32(in.pos[0] + t*(out.pos[0]-in.pos[0])),
		float32(in.pos[1] + t*(out.pos[1]-in.pos[1])),
		float32(in.pos[2] + t*(out.pos[2]-in.pos[2])),
	}
}

func centroid(samples []sample) [3]float64 {
	var c [3]float64
	for _, s := range samples {
		for i := range c {
			c[i] += s.pos[i]
		}
	}
	for i := range c {
		c[i] /= float64(len(samples))
	}
	return c
}

// appendOriented appends the triangle wound so its normal points from away to
// toward. Degenerate triangles are dropped.
func appendOriented(out []stl.Triangle, toward, away [3]float64, v1, v2, v3 mgl32.Vec3) []stl.Triangle {
	n := stl.FacetNormal(v1, v2, v3)
	if n.Len() == 0 {
		return out
	}
	dir := mgl32.Vec3{
		float32(toward[0] - away[0]),
		float32(toward[1] - away[1]),
		float32(toward[2] - away[2]),
	}
	if n.Dot(dir) < 0 {
		return append(out, stl.NewTriangle(v1, v3, v2))
	}
	return append(out, stl.Triangle{Normal: n, Vertex1: v1, Vertex2: v2, Vertex3: v3})
}
