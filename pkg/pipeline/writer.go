package pipeline

import (
	"github.com/pkg/errors"

	"mrimesh/pkg/mesh"
	"mrimesh/pkg/meshio"
)

// Writer saves a mesh at the end of a pipeline. The input is updated before
// every write.
type Writer struct {
	path   string
	format meshio.Format
	input  *mesh.Mesh
}

// NewWriter creates a writer whose format follows the extension of path.
func NewWriter(path string) (*Writer, error) {
	format, err := meshio.FormatFor(path)
	if err != nil {
		return nil, err
	}
	return &Writer{path: path, format: format}, nil
}

func (w *Writer) SetInput(m *mesh.Mesh) {
	w.input = m
}

// SetASCII switches STL output between ASCII and binary. Other formats ignore it.
func (w *Writer) SetASCII(ascii bool) {
	switch {
	case w.format == meshio.FormatSTL && ascii:
		w.format = meshio.FormatSTLASCII
	case w.format == meshio.FormatSTLASCII && !ascii:
		w.format = meshio.FormatSTL
	}
}

func (w *Writer) Path() string {
	return w.path
}

// Write updates the input and saves it.
func (w *Writer) Write() error {
	if w.input == nil {
		return ErrNoInput
	}
	if err := w.input.Update(); err != nil {
		return errors.Wrap(err, "update writer input")
	}
	return meshio.SaveAs(w.path, w.input, w.format)
}
