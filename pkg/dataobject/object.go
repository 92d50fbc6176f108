// Package dataobject provides the reference-counted, pipeline-aware base that every
// mrimesh data object (meshes in particular) embeds.
//
// Objects are never built by value. A concrete type embeds Object and calls Init
// from its factory function; from then on the object is shared through pointers
// and its lifetime is governed by Register/UnRegister.
package dataobject

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"mrimesh/internal/logging"
)

var log = logging.For("dataobject")

var (
	// ErrDeleted is raised when a deleted object is registered again.
	ErrDeleted = errors.New("dataobject: object already deleted")

	// ErrNotInitialized is raised when an object was not created through its factory
	// or was copied by value after creation.
	ErrNotInitialized = errors.New("dataobject: object copied by value or not initialized")
)

// DataObject is the capability shared by every object flowing through a pipeline.
type DataObject interface {
	// ID returns the identity assigned at creation.
	ID() uuid.UUID

	// Register adds a reference.
	Register()

	// UnRegister drops a reference and reports whether the object was deleted.
	UnRegister() bool

	// ReferenceCount returns the number of live references.
	ReferenceCount() int32

	// Initialize restores the object to the state produced by its factory.
	Initialize()

	// Modified marks the object as changed.
	Modified()

	// MTime returns the last modification time.
	MTime() uint64

	// SetSource connects the object to the source that produces its data.
	SetSource(src Source)

	// Source returns the producing source or nil.
	Source() Source

	// Update brings the data up to date with its source.
	Update() error

	// ReleaseData marks the data as released so the next Update regenerates it.
	ReleaseData()

	// DataReleased reports whether ReleaseData was called since the last Update.
	DataReleased() bool
}

// Source produces the data of a DataObject.
type Source interface {
	// MTime returns the last time the source parameters or inputs changed.
	MTime() uint64

	// GenerateData (re)computes the output data.
	GenerateData() error
}

// noCopy makes copies detectable both statically (go vet copylocks) and at run
// time: a copy no longer points at itself.
type noCopy struct {
	addr *noCopy
}

func (n *noCopy) init() {
	if n.addr != nil {
		panic("dataobject: Init called twice")
	}
	n.addr = n
}

func (n *noCopy) check() {
	if n.addr != n {
		panic(ErrNotInitialized)
	}
}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Object implements DataObject. It must be embedded by pointer-shared types and
// initialized exactly once through Init.
type Object struct {
	guard noCopy
	stamp TimeStamp

	id       uuid.UUID
	refs     atomic.Int32
	deleted  atomic.Bool
	onDelete func()

	mu         sync.Mutex
	source     Source
	updateTime uint64
	released   bool
}

// Init prepares an embedded Object: it assigns a fresh identity, sets the reference
// count to one and stamps the modified time. onDelete, when not nil, runs once when
// the last reference is dropped.
func (o *Object) Init(onDelete func()) {
	o.guard.init()
	o.id = uuid.New()
	o.onDelete = onDelete
	o.refs.Store(1)
	o.stamp.Modified()
}

// Check panics with ErrNotInitialized when o is a copy or was never initialized.
func (o *Object) Check() {
	o.guard.check()
}

// ID returns the object identity.
func (o *Object) ID() uuid.UUID {
	o.guard.check()
	return o.id
}

// Register adds a reference. Registering a deleted object panics.
func (o *Object) Register() {
	o.guard.check()
	if o.deleted.Load() {
		panic(ErrDeleted)
	}
	o.refs.Add(1)
}

// UnRegister drops a reference. When the count reaches zero the delete hook runs
// and true is returned.
func (o *Object) UnRegister() bool {
	o.guard.check()
	if o.deleted.Load() {
		log.WithField("id", o.id).Warn("unregister on deleted object")
		return false
	}
	if o.refs.Add(-1) > 0 {
		return false
	}
	if !o.deleted.CompareAndSwap(false, true) {
		return false
	}
	if o.onDelete != nil {
		o.onDelete()
	}
	log.WithField("id", o.id).Debug("object deleted")
	return true
}

// ReferenceCount returns the current number of references.
func (o *Object) ReferenceCount() int32 {
	o.guard.check()
	return o.refs.Load()
}

// Deleted reports whether the last reference was dropped.
func (o *Object) Deleted() bool {
	o.guard.check()
	return o.deleted.Load()
}

// Modified bumps the modification time.
func (o *Object) Modified() {
	o.guard.check()
	o.stamp.Modified()
}

// MTime returns the modification time.
func (o *Object) MTime() uint64 {
	o.guard.check()
	return o.stamp.MTime()
}

// Initialize resets the pipeline bookkeeping. The source connection, identity and
// reference count are kept. Embedding types reset their own state and then call
// this.
func (o *Object) Initialize() {
	o.guard.check()
	o.mu.Lock()
	o.updateTime = 0
	o.released = false
	o.mu.Unlock()
	o.stamp.Modified()
}

// SetSource connects the producing source.
func (o *Object) SetSource(src Source) {
	o.guard.check()
	o.mu.Lock()
	o.source = src
	o.updateTime = 0
	o.mu.Unlock()
	o.stamp.Modified()
}

// Source returns the producing source.
func (o *Object) Source() Source {
	o.guard.check()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.source
}

// Update asks the source to regenerate the data if the source changed after the
// last update or the data was released. Objects without a source are always up
// to date.
func (o *Object) Update() error {
	o.guard.check()

	o.mu.Lock()
	src := o.source
	stale := src != nil && (o.released || src.MTime() > o.updateTime)
	o.mu.Unlock()

	if !stale {
		return nil
	}
	if err := src.GenerateData(); err != nil {
		return errors.Wrap(err, "generate data")
	}

	o.mu.Lock()
	o.updateTime = tick()
	o.released = false
	o.mu.Unlock()
	return nil
}

// ReleaseData marks the data as released.
func (o *Object) ReleaseData() {
	o.guard.check()
	o.mu.Lock()
	o.released = true
	o.mu.Unlock()
}

// DataReleased reports whether the data was released since the last update.
func (o *Object) DataReleased() bool {
	o.guard.check()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.released
}
