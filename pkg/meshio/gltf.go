package meshio

import (
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"gonum.org/v1/gonum/spatial/r3"

	"mrimesh/pkg/mesh"
)

// ErrEmptyMesh is returned when a mesh without surface cells is exported to glTF.
var ErrEmptyMesh = errors.New("meshio: mesh has no 2-D cells")

// WriteGLTF exports the 2-D cells of m as a single indexed triangle primitive with
// smooth per-vertex normals. binary selects GLB over JSON glTF.
func WriteGLTF(w io.Writer, name string, m *mesh.Mesh, binary bool) error {
	pts := m.Points()
	cells := m.Cells(2)
	if len(cells) == 0 {
		return ErrEmptyMesh
	}

	positions := make([][3]float32, len(pts))
	for i, p := range pts {
		positions[i] = toVec3(p)
	}

	// Area weighted vertex normals
	accum := make([]mgl32.Vec3, len(pts))
	var indices []uint32
	for _, c := range cells {
		p := c.PointIDs
		for i := 1; i+1 < len(p); i++ {
			a, b, d := p[0], p[i], p[i+1]
			indices = append(indices, uint32(a), uint32(b), uint32(d))
			va, vb, vd := positions[a], positions[b], positions[d]
			n := mgl32.Vec3(vb).Sub(va).Cross(mgl32.Vec3(vd).Sub(va))
			accum[a] = accum[a].Add(n)
			accum[b] = accum[b].Add(n)
			accum[d] = accum[d].Add(n)
		}
	}
	normals := make([][3]float32, len(pts))
	for i, n := range accum {
		if n.Len() > 0 {
			normals[i] = n.Normalize()
		}
	}

	doc := gltf.NewDocument()
	positionAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	indicesAccessor := modeler.WriteIndices(doc, indices)

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: name,
		Primitives: []*gltf.Primitive{
			{
				Indices: gltf.Index(indicesAccessor),
				Attributes: map[string]uint32{
					"POSITION": positionAccessor,
					"NORMAL":   normalAccessor,
				},
			},
		},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: name,
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))

	if !binary {
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
	}

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = binary
	return errors.Wrap(encoder.Encode(doc), "encode glTF")
}

// ReadGLTF imports every triangle primitive of a glTF or GLB stream into one mesh,
// welding vertices within tol. Node transforms are ignored.
func ReadGLTF(r io.Reader, tol float64) (*mesh.Mesh, error) {
	doc := &gltf.Document{}
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrap(err, "decode glTF")
	}

	var soup [][3]r3.Vec
	for _, gm := range doc.Meshes {
		for _, primitive := range gm.Primitives {
			if primitive.Mode != gltf.PrimitiveTriangles {
				log.WithField("mesh", gm.Name).Warn("skipping non-triangle primitive")
				continue
			}
			posIdx, ok := primitive.Attributes["POSITION"]
			if !ok {
				log.WithField("mesh", gm.Name).Warn("skipping primitive without positions")
				continue
			}
			positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "read positions of %q", gm.Name)
			}

			var indices []uint32
			if primitive.Indices != nil {
				indices, err = modeler.ReadIndices(doc, doc.Accessors[*primitive.Indices], nil)
				if err != nil {
					return nil, errors.Wrapf(err, "read indices of %q", gm.Name)
				}
			} else {
				indices = make([]uint32, len(positions))
				for i := range indices {
					indices[i] = uint32(i)
				}
			}

			for i := 0; i+2 < len(indices); i += 3 {
				var tri [3]r3.Vec
				for k := 0; k < 3; k++ {
					idx := indices[i+k]
					if int(idx) >= len(positions) {
						return nil, errors.Errorf("index %d out of range in %q", idx, gm.Name)
					}
					tri[k] = toR3(positions[idx])
				}
				soup = append(soup, tri)
			}
		}
	}
	return mesh.FromTriangles(soup, tol)
}
