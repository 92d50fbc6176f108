package dataobject

import "sync/atomic"

// clock is shared by every TimeStamp so modification times are comparable across
// objects and sources.
var clock atomic.Uint64

func tick() uint64 {
	return clock.Add(1)
}

// Now returns the current value of the shared clock without advancing it.
func Now() uint64 {
	return clock.Load()
}

// TimeStamp records when something was last modified. Sources embed it to expose
// MTime to the objects they feed.
type TimeStamp struct {
	mtime atomic.Uint64
}

// Modified advances the stamp to a fresh tick.
func (t *TimeStamp) Modified() {
	t.mtime.Store(tick())
}

// MTime returns the last recorded tick.
func (t *TimeStamp) MTime() uint64 {
	return t.mtime.Load()
}
