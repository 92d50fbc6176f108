package meshio

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-test/deep"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mrimesh/pkg/mesh"
	"mrimesh/pkg/stl"
)

var corners = []r3.Vec{
	{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
}

// cube faces as quads wound outwards
var quads = [][4]int{
	{0, 3, 2, 1}, {4, 5, 6, 7},
	{0, 1, 5, 4}, {3, 7, 6, 2},
	{0, 4, 7, 3}, {1, 2, 6, 5},
}

func quadCube(t *testing.T) *mesh.Mesh {
	t.Helper()
	m := mesh.NewMesh()
	require.NoError(t, m.SetDimension(2))
	for _, p := range corners {
		m.AddPoint(p)
	}
	for _, q := range quads {
		_, err := m.AddCell(mesh.Cell{Type: mesh.Quad, PointIDs: q[:]})
		require.NoError(t, err)
	}
	return m
}

func assertCube(t *testing.T, m *mesh.Mesh) {
	t.Helper()
	assert.Equal(t, 8, m.NumberOfPoints())
	assert.Equal(t, 12, m.NumberOfCells(2))
	assert.True(t, m.IsClosed())
	assert.InDelta(t, 6.0, m.SurfaceArea(), 1e-9)
	assert.InDelta(t, 1.0, m.EnclosedVolume(), 1e-9)

	box, ok := m.Bounds()
	require.True(t, ok)
	if diff := deep.Equal(r3.Box{Min: r3.Vec{}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}, box); diff != nil {
		t.Error(diff)
	}
}

func TestToTriangles(t *testing.T) {
	m := quadCube(t)
	defer m.UnRegister()

	tris := ToTriangles(m)
	require.Len(t, tris, 12)

	// The bottom quad fans into two triangles facing -z
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, tris[0].Normal)
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, tris[1].Normal)
	assert.Equal(t, tris[0].Vertex1, tris[1].Vertex1)

	// Lines and vertices are not part of the surface
	l := mesh.NewMesh()
	defer l.UnRegister()
	require.NoError(t, l.SetDimension(1))
	a := l.AddPoint(r3.Vec{})
	b := l.AddPoint(r3.Vec{X: 1})
	_, err := l.AddCell(mesh.Cell{Type: mesh.Line, PointIDs: []int{a, b}})
	require.NoError(t, err)
	assert.Empty(t, ToTriangles(l))
}

func TestSTLStream(t *testing.T) {
	m := quadCube(t)
	defer m.UnRegister()

	for _, ascii := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, WriteSTL(&buf, "cube", m, ascii))

		loaded, err := FromSTL(&buf, 1e-6)
		require.NoError(t, err, "ascii=%v", ascii)
		assertCube(t, loaded)
		loaded.UnRegister()
	}

	_, err := FromSTL(bytes.NewReader([]byte("solid x\n vertex 0 0 0\n")), 1e-6)
	assert.True(t, errors.Is(err, stl.ErrSyntax))
}

func TestGLTFStream(t *testing.T) {
	m := quadCube(t)
	defer m.UnRegister()

	for _, binary := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, WriteGLTF(&buf, "cube", m, binary))
		if binary {
			assert.Equal(t, "glTF", buf.String()[:4])
		} else {
			assert.Equal(t, byte('{'), buf.Bytes()[0])
		}

		loaded, err := ReadGLTF(&buf, 1e-6)
		require.NoError(t, err, "binary=%v", binary)
		assertCube(t, loaded)
		loaded.UnRegister()
	}

	empty := mesh.NewMesh()
	defer empty.UnRegister()
	assert.Equal(t, ErrEmptyMesh, WriteGLTF(&bytes.Buffer{}, "empty", empty, true))
}

func TestSaveLoad(t *testing.T) {
	m := quadCube(t)
	defer m.UnRegister()
	dir := t.TempDir()

	for _, name := range []string{"cube.stl", "cube.gltf", "cube.glb", "CUBE.STL"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(path, m))

			loaded, err := Load(path, 1e-6)
			require.NoError(t, err)
			defer loaded.UnRegister()
			assertCube(t, loaded)
		})
	}

	path := filepath.Join(dir, "ascii.stl")
	require.NoError(t, SaveAs(path, m, FormatSTLASCII))
	loaded, err := Load(path, 1e-6)
	require.NoError(t, err)
	assertCube(t, loaded)
	loaded.UnRegister()
}

func TestUnknownFormat(t *testing.T) {
	m := quadCube(t)
	defer m.UnRegister()

	err := Save(filepath.Join(t.TempDir(), "cube.obj"), m)
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	_, err = Load("cube.ply", 0)
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	_, err = Load(filepath.Join(t.TempDir(), "missing.stl"), 0)
	assert.Error(t, err)
}
