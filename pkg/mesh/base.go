// Package mesh defines the MeshBase contract shared by every mesh data object and
// Mesh, its concrete point/cell implementation.
package mesh

import (
	"sync/atomic"

	"mrimesh/pkg/dataobject"
)

const (
	// NoDimension is the dimension of a freshly created or re-initialized mesh:
	// no cell storage is allocated.
	NoDimension = -1

	// MaxDimension is the highest topological dimension a cell can have.
	MaxDimension = 3
)

// MeshBase is the minimal interface every mesh type satisfies. Topology and
// storage are left to the implementations.
type MeshBase interface {
	dataobject.DataObject

	// SetDimension prepares the mesh for cells of topological dimension dim or
	// less. Implementations define the valid range and allocation strategy.
	SetDimension(dim int) error

	// Dimension returns the value recorded by the last successful SetDimension,
	// or NoDimension.
	Dimension() int
}

var _ MeshBase = (*Base)(nil)

// Base implements MeshBase without owning any storage. Concrete meshes embed it
// and override SetDimension and Initialize.
type Base struct {
	dataobject.Object

	dimension atomic.Int64
}

// New creates a Base holding one reference.
func New() *Base {
	b := &Base{}
	b.init(nil)
	return b
}

func (b *Base) init(onDelete func()) {
	b.Object.Init(onDelete)
	b.dimension.Store(NoDimension)
}

// Initialize restores the state produced by New.
func (b *Base) Initialize() {
	b.dimension.Store(NoDimension)
	b.Object.Initialize()
}

// SetDimension records dim. Base performs no allocation and accepts any value.
func (b *Base) SetDimension(dim int) error {
	b.dimension.Store(int64(dim))
	b.Modified()
	return nil
}

// Dimension returns the recorded dimension.
func (b *Base) Dimension() int {
	b.Check()
	return int(b.dimension.Load())
}
