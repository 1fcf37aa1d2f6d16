// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// StateData is the per-call bundle of global buffers an assembly pass
// passes down to every object's capability methods. It also
// carries the monotone sequence ID used to detect stale caches.
type StateData struct {
	Time  float64
	Dt    float64
	Mode  Mode
	SeqID uint64

	// DAE-mode combined buffers
	State  []float64
	DState []float64

	// split-mode buffers (algebraic-only / differential-only / paired)
	AlgState  []float64
	DiffState []float64

	PairAlgState []float64 // companion buffer when mode.Paired()
}

// seqCounter is the global monotone counter backing sequence IDs (design
// counter: any mutator increments it). It is
// deliberately package-level: the sequence ID only needs to be unique
// within one running simulation, and every StateData in that simulation
// shares one counter so caches anywhere in the tree invalidate together.
var seqCounter uint64

// NextSeqID returns a fresh, strictly increasing sequence ID.
func NextSeqID() uint64 {
	seqCounter++
	return seqCounter
}

// Cache is the reusable "last refreshed at seqID" guard every object's
// updateLocalCache embeds.
type Cache struct {
	seqID uint64
	valid bool
}

// Fresh reports whether the cache was already refreshed for sD's sequence
// ID, and if not, marks it refreshed. Callers use it as:
//
//	if c.Fresh(sD.SeqID) { return }
//	... recompute ...
func (c *Cache) Fresh(seqID uint64) bool {
	if c.valid && c.seqID == seqID {
		return true
	}
	c.seqID = seqID
	c.valid = true
	return false
}

// Invalidate forces the next Fresh call to recompute regardless of seqID.
func (c *Cache) Invalidate() { c.valid = false }
