package mesh

import (
	"math"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrimesh/pkg/dataobject"
)

// sizedMesh overrides SetDimension to record every call and allocate a buffer,
// standing in for a third-party mesh type built on Base
type sizedMesh struct {
	Base
	calls   []int
	storage []int
}

func newSizedMesh() *sizedMesh {
	s := &sizedMesh{}
	s.Base.init(nil)
	return s
}

func (s *sizedMesh) SetDimension(dim int) error {
	s.calls = append(s.calls, dim)
	s.storage = make([]int, dim+1)
	return s.Base.SetDimension(dim)
}

func (s *sizedMesh) Initialize() {
	s.storage = nil
	s.Base.Initialize()
}

// TestNewSatisfiesMeshBase verifies the factory returns a registered MeshBase
func TestNewSatisfiesMeshBase(t *testing.T) {
	var b MeshBase = New()
	var _ dataobject.DataObject = b

	assert.Equal(t, int32(1), b.ReferenceCount())
	assert.Equal(t, NoDimension, b.Dimension())
}

// TestBaseNeverFails checks that Base accepts any dimension and resets cleanly
func TestBaseNeverFails(t *testing.T) {
	b := New()
	for _, dim := range []int{-5, 0, 3, 42, math.MaxInt, math.MinInt} {
		require.NoError(t, b.SetDimension(dim))
		assert.Equal(t, dim, b.Dimension())
	}

	before := b.MTime()
	assert.NotPanics(t, func() { b.Initialize() })
	assert.Equal(t, NoDimension, b.Dimension())
	assert.Greater(t, b.MTime(), before)
}

// TestSetDimensionDispatch verifies calls through a MeshBase reach the override
func TestSetDimensionDispatch(t *testing.T) {
	s := newSizedMesh()
	var b MeshBase = s

	require.NoError(t, b.SetDimension(2))
	assert.Equal(t, []int{2}, s.calls)
	assert.Len(t, s.storage, 3)
	assert.Equal(t, 2, b.Dimension())

	b.Initialize()
	assert.Nil(t, s.storage)
	assert.Equal(t, NoDimension, b.Dimension())

	// Mesh validates where Base does not
	var m MeshBase = NewMesh()
	err := m.SetDimension(MaxDimension + 1)
	assert.True(t, errors.Is(err, ErrInvalidDimension))
	assert.Equal(t, NoDimension, m.Dimension())
}

// TestCopiedMeshIsUnusable verifies a value copy cannot be used as a mesh
func TestCopiedMeshIsUnusable(t *testing.T) {
	b := New()
	require.NoError(t, b.SetDimension(2))
	cp := new(Base)
	reflect.ValueOf(cp).Elem().Set(reflect.ValueOf(b).Elem())

	assert.Panics(t, func() { cp.SetDimension(1) })
	assert.Panics(t, func() { cp.Dimension() })
	assert.Panics(t, func() { cp.Register() })
	assert.NotPanics(t, func() { b.Register() })
}

// TestZeroValueIsUnusable verifies construction must go through the factory
func TestZeroValueIsUnusable(t *testing.T) {
	var m Mesh
	assert.Panics(t, func() { m.AddPoint(origin) })
}

// TestMeshReleasedOnLastReference checks storage is dropped with the last reference
func TestMeshReleasedOnLastReference(t *testing.T) {
	m := unitCube(t)
	m.Register()

	assert.False(t, m.UnRegister())
	assert.Equal(t, 8, m.NumberOfPoints())

	assert.True(t, m.UnRegister())
	assert.True(t, m.Deleted())
	assert.Equal(t, 0, m.NumberOfPoints())
	assert.Equal(t, NoDimension, m.Dimension())
	_, err := m.AddCell(Cell{Type: Triangle, PointIDs: []int{0, 1, 2}})
	assert.True(t, errors.Is(err, ErrDimensionNotSet))
}
