// Package meshio converts meshes to and from the STL and glTF file formats.
package meshio

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"mrimesh/internal/logging"
	"mrimesh/pkg/mesh"
	"mrimesh/pkg/stl"
)

var log = logging.For("meshio")

// ErrUnknownFormat is returned for file extensions without a codec.
var ErrUnknownFormat = errors.New("meshio: unknown file format")

// Format identifies a mesh file format.
type Format int

const (
	FormatSTL Format = iota
	FormatSTLASCII
	FormatGLTF
	FormatGLB
)

// FormatFor picks the format from a file name. ".stl" maps to binary STL.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		return FormatSTL, nil
	case ".gltf":
		return FormatGLTF, nil
	case ".glb":
		return FormatGLB, nil
	}
	return 0, errors.Wrapf(ErrUnknownFormat, "%q", path)
}

func toVec3(p r3.Vec) mgl32.Vec3 {
	return mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}
}

func toR3(v mgl32.Vec3) r3.Vec {
	return r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// ToTriangles fan-triangulates every 2-D cell of m. Cells of other dimensions are
// not part of a surface and are skipped.
func ToTriangles(m *mesh.Mesh) []stl.Triangle {
	pts := m.Points()
	var out []stl.Triangle
	for _, c := range m.Cells(2) {
		p := c.PointIDs
		for i := 1; i+1 < len(p); i++ {
			out = append(out, stl.NewTriangle(toVec3(pts[p[0]]), toVec3(pts[p[i]]), toVec3(pts[p[i+1]])))
		}
	}
	return out
}

// FromTriangles welds an STL triangle soup into a new mesh.
func FromTriangles(triangles []stl.Triangle, tol float64) (*mesh.Mesh, error) {
	soup := make([][3]r3.Vec, len(triangles))
	for i, t := range triangles {
		soup[i] = [3]r3.Vec{toR3(t.Vertex1), toR3(t.Vertex2), toR3(t.Vertex3)}
	}
	return mesh.FromTriangles(soup, tol)
}

// FromSTL reads a binary or ASCII STL stream into a new mesh.
func FromSTL(r io.Reader, tol float64) (*mesh.Mesh, error) {
	triangles, err := stl.Read(r)
	if err != nil {
		return nil, err
	}
	return FromTriangles(triangles, tol)
}

// WriteSTL writes the surface cells of m as binary STL, or ASCII STL named name.
func WriteSTL(w io.Writer, name string, m *mesh.Mesh, ascii bool) error {
	if ascii {
		return stl.WriteASCII(w, name, ToTriangles(m))
	}
	return stl.Write(w, ToTriangles(m))
}

// Save writes m to path in the format implied by the extension.
func Save(path string, m *mesh.Mesh) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	return SaveAs(path, m, format)
}

// SaveAs writes m to path in the given format.
func SaveAs(path string, m *mesh.Mesh, format Format) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create mesh file")
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch format {
	case FormatSTL, FormatSTLASCII:
		err = WriteSTL(file, name, m, format == FormatSTLASCII)
	case FormatGLTF:
		err = WriteGLTF(file, name, m, false)
	case FormatGLB:
		err = WriteGLTF(file, name, m, true)
	default:
		err = errors.Wrapf(ErrUnknownFormat, "format %d", format)
	}
	if err != nil {
		file.Close()
		return errors.Wrapf(err, "save %s", path)
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "close mesh file")
	}

	log.WithField("path", path).Infof("saved %d points, %d cells", m.NumberOfPoints(), m.TotalCells())
	return nil
}

// Load reads a mesh from an STL, glTF or GLB file, welding vertices within tol.
// The caller owns the returned reference.
func Load(path string, tol float64) (*mesh.Mesh, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open mesh file")
	}
	defer file.Close()

	switch format {
	case FormatGLTF, FormatGLB:
		return ReadGLTF(file, tol)
	default:
		m, err := FromSTL(file, tol)
		return m, errors.Wrapf(err, "load %s", path)
	}
}
