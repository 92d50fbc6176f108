// Package pipeline connects volumes, the iso-surface extractor and mesh writers
// through the data object update mechanism.
package pipeline

import (
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"

	"mrimesh/internal/logging"
	"mrimesh/pkg/dataobject"
	"mrimesh/pkg/mesh"
	"mrimesh/pkg/meshio"
	"mrimesh/pkg/surface"
	"mrimesh/pkg/volume"
)

var log = logging.For("pipeline")

var ErrNoInput = errors.New("pipeline: no input")

const (
	DefaultIsoLevel  = 0.5
	DefaultTolerance = 1e-6
	DefaultCacheSize = 8
)

var _ dataobject.Source = (*SurfaceFilter)(nil)

// SurfaceFilter produces the iso-surface mesh of a volume. Its output regenerates
// on Update whenever the filter was modified after the previous update. Meshes
// are cached by volume contents, iso level and weld tolerance, so returning to an
// earlier setting does not run the extraction again.
type SurfaceFilter struct {
	dataobject.TimeStamp

	mu        sync.Mutex
	input     *volume.Volume
	isoLevel  float64
	tolerance float64
	workers   int
	output    *mesh.Mesh
	cache     *resultCache
}

// NewSurfaceFilter creates a filter caching up to cacheSize meshes.
func NewSurfaceFilter(cacheSize int) (*SurfaceFilter, error) {
	cache, err := newResultCache(cacheSize)
	if err != nil {
		return nil, err
	}
	f := &SurfaceFilter{
		isoLevel:  DefaultIsoLevel,
		tolerance: DefaultTolerance,
		workers:   runtime.NumCPU(),
		cache:     cache,
	}
	f.Modified()
	return f, nil
}

// SetInput sets the volume to extract from. Call Modified after changing the
// voxels of the current input in place.
func (f *SurfaceFilter) SetInput(vol *volume.Volume) {
	f.mu.Lock()
	f.input = vol
	f.mu.Unlock()
	f.Modified()
}

func (f *SurfaceFilter) Input() *volume.Volume {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}

// SetIsoLevel sets the threshold separating inside from outside voxels.
func (f *SurfaceFilter) SetIsoLevel(level float64) {
	f.mu.Lock()
	changed := f.isoLevel != level
	f.isoLevel = level
	f.mu.Unlock()
	if changed {
		f.Modified()
	}
}

func (f *SurfaceFilter) IsoLevel() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isoLevel
}

// SetTolerance sets the distance below which extracted vertices are welded.
func (f *SurfaceFilter) SetTolerance(tol float64) {
	f.mu.Lock()
	changed := f.tolerance != tol
	f.tolerance = tol
	f.mu.Unlock()
	if changed {
		f.Modified()
	}
}

// SetWorkers sets the extraction parallelism. It does not change the result.
func (f *SurfaceFilter) SetWorkers(n int) {
	f.mu.Lock()
	f.workers = max(n, 1)
	f.mu.Unlock()
}

// Output returns the mesh this filter produces, creating it on first use. The
// filter owns one reference; callers that keep the mesh after Close must Register
// it.
func (f *SurfaceFilter) Output() *mesh.Mesh {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.output == nil {
		f.output = mesh.NewMesh()
		f.output.SetSource(f)
	}
	return f.output
}

// Update brings the output up to date and returns it.
func (f *SurfaceFilter) Update() (*mesh.Mesh, error) {
	out := f.Output()
	if err := out.Update(); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateData runs the extraction into the output mesh.
func (f *SurfaceFilter) GenerateData() error {
	f.mu.Lock()
	vol, iso, tol, workers, out := f.input, f.isoLevel, f.tolerance, f.workers, f.output
	f.mu.Unlock()

	if vol == nil {
		return ErrNoInput
	}
	if out == nil {
		out = f.Output()
	}
	logger := log.WithField("iso", iso)

	key := makeCacheKey(vol, iso, tol)
	if cached, ok := f.cache.Get(key); ok {
		defer cached.UnRegister()
		logger.Info("using cached surface")
		out.Graft(cached)
		return nil
	}

	start := time.Now()
	mt, err := surface.NewMarchingTetrahedra(vol, iso)
	if err != nil {
		return errors.Wrap(err, "prepare extraction")
	}
	mt.SetWorkers(workers)
	triangles := mt.GenerateTriangles()

	m, err := meshio.FromTriangles(triangles, tol)
	if err != nil {
		return errors.Wrap(err, "build mesh")
	}
	defer m.UnRegister()

	f.cache.Put(key, m)
	out.Graft(m)

	logger.WithField("elapsed", time.Since(start)).Infof("surface has %d points and %d triangles",
		m.NumberOfPoints(), m.NumberOfCells(2))
	return nil
}

// CacheStats reports the activity of the result cache.
func (f *SurfaceFilter) CacheStats() CacheStats {
	return f.cache.Stats()
}

// Close drops the cached meshes and the reference on the output.
func (f *SurfaceFilter) Close() {
	f.cache.Purge()

	f.mu.Lock()
	out := f.output
	f.output = nil
	f.mu.Unlock()
	if out != nil {
		out.UnRegister()
	}
}
