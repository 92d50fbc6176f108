package surface

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrimesh/pkg/stl"
	"mrimesh/pkg/volume"
)

// signedVolume applies the divergence theorem relative to a center point
func signedVolume(triangles []stl.Triangle, center mgl32.Vec3) float64 {
	vol := 0.0
	for _, t := range triangles {
		a := t.Vertex1.Sub(center)
		b := t.Vertex2.Sub(center)
		c := t.Vertex3.Sub(center)
		vol += float64(a.Dot(b.Cross(c))) / 6
	}
	return vol
}

// cornerVolume is a 2x2x2 volume where only the first voxel is set
func cornerVolume() *volume.Volume {
	v := volume.New(2, 2, 2)
	v.Set(0, 0, 0, 1)
	return v
}

// TestSphereSurface verifies the extraction on a sphere phantom
func TestSphereSurface(t *testing.T) {
	size := 20
	v := volume.Sphere(size, float64(size)/4.0)

	mt, err := NewMarchingTetrahedra(v, 0.5)
	require.NoError(t, err)
	triangles := mt.GenerateTriangles()

	// A sphere with this resolution should have at least 100 triangles
	require.Greater(t, len(triangles), 100)

	// Outward facing normals give a positive volume close to the sphere's
	center := mgl32.Vec3{10, 10, 10}
	vol := signedVolume(triangles, center)
	assert.Greater(t, vol, 400.0)
	assert.Less(t, vol, 650.0)

	for _, tri := range triangles {
		assert.InDelta(t, 1.0, tri.Normal.Len(), 1e-5)
	}
}

// TestSetScale verifies that the scaling functionality works
func TestSetScale(t *testing.T) {
	mt, err := NewMarchingTetrahedra(cornerVolume(), 0.5)
	require.NoError(t, err)
	plain := mt.GenerateTriangles()
	require.NotEmpty(t, plain)

	mt.SetScale(2.5, 1.5, 3.0)
	scaled := mt.GenerateTriangles()
	require.Len(t, scaled, len(plain))

	scale := mgl32.Vec3{2.5, 1.5, 3.0}
	for i := range plain {
		for j, pair := range [][2]mgl32.Vec3{
			{plain[i].Vertex1, scaled[i].Vertex1},
			{plain[i].Vertex2, scaled[i].Vertex2},
			{plain[i].Vertex3, scaled[i].Vertex3},
		} {
			for k := 0; k < 3; k++ {
				assert.InDelta(t, pair[0][k]*scale[k], pair[1][k], 1e-5, "triangle %d vertex %d", i, j)
			}
		}
	}
}

// TestSpacingIsDefaultScale checks the volume spacing is applied without SetScale
func TestSpacingIsDefaultScale(t *testing.T) {
	v := cornerVolume()
	v.Spacing.Z = 4
	mt, err := NewMarchingTetrahedra(v, 0.5)
	require.NoError(t, err)

	maxZ := float32(0)
	for _, tri := range mt.GenerateTriangles() {
		for _, vert := range []mgl32.Vec3{tri.Vertex1, tri.Vertex2, tri.Vertex3} {
			maxZ = float32(math.Max(float64(maxZ), float64(vert[2])))
		}
	}
	assert.InDelta(t, 2.0, maxZ, 1e-6)
}

// TestTriangleInterpolation verifies vertices sit where the values cross the level
func TestTriangleInterpolation(t *testing.T) {
	mt, err := NewMarchingTetrahedra(cornerVolume(), 0.5)
	require.NoError(t, err)
	triangles := mt.GenerateTriangles()
	require.NotEmpty(t, triangles)

	for _, tri := range triangles {
		for _, vert := range []mgl32.Vec3{tri.Vertex1, tri.Vertex2, tri.Vertex3} {
			for k := 0; k < 3; k++ {
				c := vert[k]
				assert.True(t, c == 0 || c == 0.5, "coordinate %v is not on an edge midpoint", c)
			}
		}
		// All normals face away from the only inside corner
		center := tri.Vertex1.Add(tri.Vertex2).Add(tri.Vertex3).Mul(1.0 / 3)
		assert.Greater(t, tri.Normal.Dot(center), float32(0))
	}

	// A lower level moves the crossing towards the outside corners
	mt, err = NewMarchingTetrahedra(cornerVolume(), 0.25)
	require.NoError(t, err)
	for _, tri := range mt.GenerateTriangles() {
		for k := 0; k < 3; k++ {
			c := tri.Vertex1[k]
			assert.True(t, c == 0 || c == 0.75, "coordinate %v", c)
		}
	}
}

func TestWorkersDoNotChangeOutput(t *testing.T) {
	v := volume.Sphere(12, 4)

	mt, err := NewMarchingTetrahedra(v, 0.5)
	require.NoError(t, err)
	mt.SetWorkers(1)
	serial := mt.GenerateTriangles()

	mt.SetWorkers(4)
	parallel := mt.GenerateTriangles()

	mt.SetWorkers(0)
	clamped := mt.GenerateTriangles()

	assert.Equal(t, serial, parallel)
	assert.Equal(t, serial, clamped)
}

func TestDegenerateVolumes(t *testing.T) {
	_, err := NewMarchingTetrahedra(&volume.Volume{}, 0.5)
	assert.Error(t, err)

	flat := volume.New(5, 5, 1)
	flat.Set(2, 2, 0, 1)
	mt, err := NewMarchingTetrahedra(flat, 0.5)
	require.NoError(t, err)
	assert.Empty(t, mt.GenerateTriangles())

	// Uniform volumes have no surface
	full := volume.New(3, 3, 3)
	for i := range full.Data {
		full.Data[i] = 1
	}
	mt, err = NewMarchingTetrahedra(full, 0.5)
	require.NoError(t, err)
	assert.Empty(t, mt.GenerateTriangles())
}

// BenchmarkMarchingTetrahedra benchmarks the extraction on a sphere phantom
func BenchmarkMarchingTetrahedra(b *testing.B) {
	v := volume.Sphere(32, 8)
	mt, err := NewMarchingTetrahedra(v, 0.5)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mt.GenerateTriangles()
	}
}
