// Package stl reads and writes triangle soups in the STL format, binary and ASCII.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const (
	headerSize   = 80
	triangleSize = 50
)

var (
	// ErrTruncated is returned when a binary file ends before its declared
	// triangle count.
	ErrTruncated = errors.New("stl: truncated file")

	// ErrSyntax is returned for malformed ASCII files.
	ErrSyntax = errors.New("stl: syntax error")
)

// Triangle is one STL facet.
type Triangle struct {
	Normal  mgl32.Vec3
	Vertex1 mgl32.Vec3
	Vertex2 mgl32.Vec3
	Vertex3 mgl32.Vec3
}

// NewTriangle builds a facet and derives its normal from the vertex winding.
func NewTriangle(v1, v2, v3 mgl32.Vec3) Triangle {
	return Triangle{
		Normal:  FacetNormal(v1, v2, v3),
		Vertex1: v1,
		Vertex2: v2,
		Vertex3: v3,
	}
}

// FacetNormal returns the unit normal of a counter-clockwise triangle, or the zero
// vector for degenerate input.
func FacetNormal(v1, v2, v3 mgl32.Vec3) mgl32.Vec3 {
	n := v2.Sub(v1).Cross(v3.Sub(v1))
	if n.Len() == 0 {
		return mgl32.Vec3{}
	}
	return n.Normalize()
}

// Write encodes triangles in binary STL.
func Write(w io.Writer, triangles []Triangle) error {
	bw := bufio.NewWriter(w)

	var header [headerSize]byte
	copy(header[:], "binary STL written by mrimesh")
	if _, err := bw.Write(header[:]); err != nil {
		return errors.Wrap(err, "write header")
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return errors.Wrap(err, "write triangle count")
	}

	var rec [triangleSize]byte
	for i, t := range triangles {
		off := 0
		for _, v := range [4]mgl32.Vec3{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, c := range v {
				binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(c))
				off += 4
			}
		}
		// attribute byte count stays zero
		if _, err := bw.Write(rec[:]); err != nil {
			return errors.Wrapf(err, "write triangle %d", i)
		}
	}
	return errors.Wrap(bw.Flush(), "flush")
}

// SaveToSTL writes triangles to a binary STL file.
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create STL file")
	}
	if err := Write(file, triangles); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "close STL file")
}

// WriteASCII encodes triangles in ASCII STL under the given solid name.
func WriteASCII(w io.Writer, name string, triangles []Triangle) error {
	bw := bufio.NewWriter(w)
	vec := func(v mgl32.Vec3) string {
		return fmt.Sprintf("%e %e %e", v[0], v[1], v[2])
	}

	fmt.Fprintf(bw, "solid %s\n", name)
	for _, t := range triangles {
		fmt.Fprintf(bw, "  facet normal %s\n", vec(t.Normal))
		fmt.Fprintf(bw, "    outer loop\n")
		fmt.Fprintf(bw, "      vertex %s\n", vec(t.Vertex1))
		fmt.Fprintf(bw, "      vertex %s\n", vec(t.Vertex2))
		fmt.Fprintf(bw, "      vertex %s\n", vec(t.Vertex3))
		fmt.Fprintf(bw, "    endloop\n")
		fmt.Fprintf(bw, "  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return errors.Wrap(bw.Flush(), "write ASCII STL")
}

// Read decodes binary or ASCII STL. A file is treated as ASCII when it starts
// with "solid" and its size does not match the binary layout.
func Read(r io.Reader) ([]Triangle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read STL")
	}
	if isASCII(data) {
		return readASCII(data)
	}
	return readBinary(data)
}

// LoadSTL reads an STL file from disk.
func LoadSTL(filename string) ([]Triangle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open STL file")
	}
	defer file.Close()
	return Read(file)
}

func isASCII(data []byte) bool {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return false
	}
	if len(data) >= headerSize+4 {
		n := binary.LittleEndian.Uint32(data[headerSize:])
		if uint64(len(data)) == uint64(headerSize+4)+uint64(n)*triangleSize {
			return false
		}
	}
	return true
}

func readBinary(data []byte) ([]Triangle, error) {
	if len(data) < headerSize+4 {
		return nil, errors.Wrapf(ErrTruncated, "%d bytes", len(data))
	}
	n := binary.LittleEndian.Uint32(data[headerSize:])
	body := data[headerSize+4:]
	if uint64(len(body)) < uint64(n)*triangleSize {
		return nil, errors.Wrapf(ErrTruncated, "%d triangles declared, %d bytes of data", n, len(body))
	}

	triangles := make([]Triangle, n)
	for i := range triangles {
		rec := body[i*triangleSize:]
		var vs [4]mgl32.Vec3
		for j := range vs {
			for k := 0; k < 3; k++ {
				vs[j][k] = math.Float32frombits(binary.LittleEndian.Uint32(rec[(j*3+k)*4:]))
			}
		}
		triangles[i] = Triangle{Normal: vs[0], Vertex1: vs[1], Vertex2: vs[2], Vertex3: vs[3]}
	}
	return triangles, nil
}

func readASCII(data []byte) ([]Triangle, error) {
	var (
		triangles []Triangle
		current   Triangle
		vertices  int
		inFacet   bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			if len(fields) != 5 || fields[1] != "normal" {
				return nil, errors.Wrapf(ErrSyntax, "line %d: bad facet", line)
			}
			n, err := parseVec(fields[2:])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			current = Triangle{Normal: n}
			vertices = 0
			inFacet = true
		case "vertex":
			if !inFacet || len(fields) != 4 || vertices >= 3 {
				return nil, errors.Wrapf(ErrSyntax, "line %d: unexpected vertex", line)
			}
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			switch vertices {
			case 0:
				current.Vertex1 = v
			case 1:
				current.Vertex2 = v
			case 2:
				current.Vertex3 = v
			}
			vertices++
		case "endfacet":
			if !inFacet || vertices != 3 {
				return nil, errors.Wrapf(ErrSyntax, "line %d: facet with %d vertices", line, vertices)
			}
			triangles = append(triangles, current)
			inFacet = false
		case "solid", "outer", "endloop", "endsolid":
		default:
			return nil, errors.Wrapf(ErrSyntax, "line %d: unknown keyword %q", line, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan ASCII STL")
	}
	if inFacet {
		return nil, errors.Wrap(ErrTruncated, "unterminated facet")
	}
	return triangles, nil
}

func parseVec(fields []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, errors.Wrapf(ErrSyntax, "bad number %q", fields[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}
