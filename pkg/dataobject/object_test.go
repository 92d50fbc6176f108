package dataobject

import (
	"reflect"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource records how often it was asked to generate data
type countingSource struct {
	TimeStamp
	calls int
	err   error
}

func (s *countingSource) GenerateData() error {
	s.calls++
	return s.err
}

func newObject(t *testing.T) (*Object, *int) {
	t.Helper()
	deletes := 0
	o := &Object{}
	o.Init(func() { deletes++ })
	return o, &deletes
}

func TestInitAssignsIdentityAndReference(t *testing.T) {
	a, _ := newObject(t)
	b, _ := newObject(t)

	assert.Equal(t, int32(1), a.ReferenceCount())
	assert.NotEqual(t, a.ID(), b.ID(), "each object gets its own identity")
	assert.NotZero(t, a.MTime())
}

func TestReferenceCounting(t *testing.T) {
	o, deletes := newObject(t)

	o.Register()
	o.Register()
	require.Equal(t, int32(3), o.ReferenceCount())

	assert.False(t, o.UnRegister())
	assert.False(t, o.UnRegister())
	assert.Equal(t, 0, *deletes)

	assert.True(t, o.UnRegister(), "last reference deletes the object")
	assert.Equal(t, 1, *deletes)
	assert.True(t, o.Deleted())

	// A second release is reported but does not run the hook again
	assert.False(t, o.UnRegister())
	assert.Equal(t, 1, *deletes)

	assert.PanicsWithValue(t, ErrDeleted, func() { o.Register() })
}

func TestConcurrentRegister(t *testing.T) {
	o, deletes := newObject(t)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Register()
			o.UnRegister()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), o.ReferenceCount())
	assert.Equal(t, 0, *deletes)
}

func TestUninitializedObjectPanics(t *testing.T) {
	var o Object
	assert.PanicsWithValue(t, ErrNotInitialized, func() { o.Modified() })
}

func TestCopiedObjectPanics(t *testing.T) {
	o, _ := newObject(t)
	cp := new(Object)
	reflect.ValueOf(cp).Elem().Set(reflect.ValueOf(o).Elem())

	assert.PanicsWithValue(t, ErrNotInitialized, func() { cp.Register() })
	assert.PanicsWithValue(t, ErrNotInitialized, func() { cp.Check() })
	assert.NotPanics(t, func() { o.Register() })
}

func TestDoubleInitPanics(t *testing.T) {
	o, _ := newObject(t)
	assert.Panics(t, func() { o.Init(nil) })
}

func TestModifiedIsMonotonic(t *testing.T) {
	o, _ := newObject(t)
	before := o.MTime()
	o.Modified()
	assert.Greater(t, o.MTime(), before)
	assert.GreaterOrEqual(t, Now(), o.MTime())
}

func TestUpdateFollowsSource(t *testing.T) {
	o, _ := newObject(t)
	src := &countingSource{}
	src.Modified()

	// No source: nothing to do
	require.NoError(t, o.Update())

	o.SetSource(src)
	require.NoError(t, o.Update())
	assert.Equal(t, 1, src.calls)

	// Up to date: no regeneration
	require.NoError(t, o.Update())
	assert.Equal(t, 1, src.calls)

	// Source changed
	src.Modified()
	require.NoError(t, o.Update())
	assert.Equal(t, 2, src.calls)

	// Released data is regenerated even when the source is unchanged
	o.ReleaseData()
	assert.True(t, o.DataReleased())
	require.NoError(t, o.Update())
	assert.Equal(t, 3, src.calls)
	assert.False(t, o.DataReleased())
}

func TestUpdatePropagatesErrors(t *testing.T) {
	o, _ := newObject(t)
	boom := errors.New("boom")
	src := &countingSource{err: boom}
	src.Modified()
	o.SetSource(src)

	err := o.Update()
	require.Error(t, err)
	assert.Equal(t, boom, errors.Cause(err))

	// The failed update is retried
	src.err = nil
	require.NoError(t, o.Update())
	assert.Equal(t, 2, src.calls)
}

func TestInitializeForcesRegeneration(t *testing.T) {
	o, _ := newObject(t)
	src := &countingSource{}
	src.Modified()
	o.SetSource(src)
	require.NoError(t, o.Update())

	before := o.MTime()
	o.Initialize()
	assert.Greater(t, o.MTime(), before)
	assert.Same(t, src, o.Source().(*countingSource), "source survives Initialize")
	assert.Equal(t, int32(1), o.ReferenceCount())

	require.NoError(t, o.Update())
	assert.Equal(t, 2, src.calls)
}
