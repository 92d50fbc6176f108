// Package volume holds scalar volumes built from stacks of 2D MRI slices and the
// helpers to load, generate and inspect them.
package volume

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ErrShape is returned when the data length does not match the dimensions.
var ErrShape = errors.New("volume: data length does not match dimensions")

// Spacing is the physical size of a voxel in mm
type Spacing struct {
	X, Y, Z float64
}

// Volume represents a 3D scalar volume
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels (number of slices)
	Depth int

	// Spacing is the physical size of each voxel in mm
	Spacing Spacing
}

// New allocates a zeroed volume with unit spacing.
func New(width, height, depth int) *Volume {
	return &Volume{
		Data:    make([]float64, width*height*depth),
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: Spacing{X: 1, Y: 1, Z: 1},
	}
}

// Validate checks the dimensions against the data length.
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return errors.Wrapf(ErrShape, "dimensions %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if len(v.Data) != v.Width*v.Height*v.Depth {
		return errors.Wrapf(ErrShape, "%d values for %dx%dx%d", len(v.Data), v.Width, v.Height, v.Depth)
	}
	return nil
}

// Index returns the offset of voxel (x, y, z) in Data.
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the voxel value at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a voxel value.
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Normalize rescales the data in place to the 0..1 range. Constant volumes
// become all zero.
func (v *Volume) Normalize() {
	if len(v.Data) == 0 {
		return
	}
	lo, hi := floats.Min(v.Data), floats.Max(v.Data)
	if hi == lo {
		for i := range v.Data {
			v.Data[i] = 0
		}
		return
	}
	floats.AddConst(-lo, v.Data)
	floats.Scale(1/(hi-lo), v.Data)
}

// Checksum hashes the dimensions, spacing and voxel values.
func (v *Volume) Checksum() uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(u uint64) {
		binary.LittleEndian.PutUint64(buf[:], u)
		d.Write(buf[:])
	}
	put(uint64(v.Width))
	put(uint64(v.Height))
	put(uint64(v.Depth))
	put(math.Float64bits(v.Spacing.X))
	put(math.Float64bits(v.Spacing.Y))
	put(math.Float64bits(v.Spacing.Z))
	for _, value := range v.Data {
		put(math.Float64bits(value))
	}
	return d.Sum64()
}

// Sphere creates a size³ phantom holding 1 inside a centered sphere of the given
// radius and 0 outside.
func Sphere(size int, radius float64) *Volume {
	v := New(size, size, size)
	center := float64(size) / 2.0

	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				if math.Sqrt(dx*dx+dy*dy+dz*dz) < radius {
					v.Set(x, y, z, 1.0)
				}
			}
		}
	}
	return v
}
