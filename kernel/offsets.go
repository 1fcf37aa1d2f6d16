// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// LocalSize is an object's own (non-recursive) contribution to a solver
// mode: algebraic size, differential size, algebraic-root count,
// differential-root count, and Jacobian nonzero count.
type LocalSize struct {
	Alg      int
	Diff     int
	AlgRoot  int
	DiffRoot int
	Jac      int
}

// OffsetBase is the running cursor SetOffsets advances as it walks a
// parent's children: one counter per index space (algebraic, differential,
// root, Jacobian).
type OffsetBase struct {
	Alg  int
	Diff int
	Root int
	Jac  int
}

// OffsetRecord is the per-mode offset block for a single object.
type OffsetRecord struct {
	AlgOffset  int
	DiffOffset int
	RootOffset int
	JacOffset  int

	Own LocalSize // this object's own local sizes, non-recursive

	// cached sub-totals for the object's ENTIRE subtree (own + all enabled,
	// non-sampled descendants).
	AlgSize   int
	DiffSize  int
	VSize     int // own local alg+diff size (== Own.Alg+Own.Diff)
	ASize     int // subtree alg+diff size (== AlgSize+DiffSize)
	AlgRoots  int
	DiffRoots int
	JacSize   int

	StateLoaded bool
	RJLoaded    bool
}

func (r *OffsetRecord) reset() {
	*r = OffsetRecord{AlgOffset: KNullLocation, DiffOffset: KNullLocation, RootOffset: KNullLocation, JacOffset: KNullLocation}
}

func newOffsetRecord() OffsetRecord {
	r := OffsetRecord{}
	r.reset()
	return r
}

// OffsetTable stores, per solver-mode offset-index, the offset record for
// one object.
type OffsetTable struct {
	records []OffsetRecord // indexed by mode.OffsetIndex
}

// NewOffsetTable returns an empty table; records are lazily grown as modes
// are registered.
func NewOffsetTable() *OffsetTable { return &OffsetTable{} }

func (t *OffsetTable) ensure(idx int) {
	for len(t.records) <= idx {
		t.records = append(t.records, newOffsetRecord())
	}
}

// Record returns the record for mode m, growing the table if needed.
func (t *OffsetTable) Record(m Mode) *OffsetRecord {
	t.ensure(m.OffsetIndex)
	return &t.records[m.OffsetIndex]
}

// Invalidate clears StateLoaded/RJLoaded for mode m, forcing the next
// loadSizes/setOffsets pass to rebuild it lazily.
func (t *OffsetTable) Invalidate(m Mode) {
	if m.OffsetIndex < len(t.records) {
		t.records[m.OffsetIndex].StateLoaded = false
		t.records[m.OffsetIndex].RJLoaded = false
	}
}

// InvalidateAll forces every cached mode to rebuild; used after a
// structural change whose scope is not known to be mode-specific.
func (t *OffsetTable) InvalidateAll() {
	for i := range t.records {
		t.records[i].StateLoaded = false
		t.records[i].RJLoaded = false
	}
}

// LoadSizes implements the loadSizes for object obj in mode m.
// dynOnly restricts the pass to objects that have dynamic states; it is
// set during the dyn-init sizing pass so the pflow-only subtree does not
// reappear in a dynamic solve's layout.
func LoadSizes(obj Sizeable, m Mode, dynOnly bool) {
	rec := obj.Offsets().Record(m)
	if rec.StateLoaded {
		return
	}

	if !obj.IsEnabled() {
		rec.reset()
		rec.StateLoaded, rec.RJLoaded = true, true
		return
	}

	if !m.Dynamic && obj.NoPflowStates() {
		zeroAlgebraic(rec)
		rec.StateLoaded = true
		return
	}

	if dynOnly && m.Dynamic && !obj.IsDynamicCapable() {
		zeroAlgebraic(rec)
		rec.StateLoaded = true
		return
	}

	if obj.IsSampledOnly() {
		cascadeSampledOnly(obj)
		zeroAlgebraic(rec)
		rec.StateLoaded, rec.RJLoaded = true, true
		return
	}

	rec.Own = obj.LocalSizes(m)
	rec.VSize = rec.Own.Alg + rec.Own.Diff
	rec.AlgSize = rec.Own.Alg
	rec.DiffSize = rec.Own.Diff
	rec.AlgRoots = rec.Own.AlgRoot
	rec.DiffRoots = rec.Own.DiffRoot
	rec.JacSize = rec.Own.Jac

	for _, child := range obj.SubObjects() {
		if !child.IsEnabled() || child.IsSampledOnly() {
			continue
		}
		LoadSizes(child, m, dynOnly)
		crec := child.Offsets().Record(m)
		rec.AlgSize += crec.AlgSize
		rec.DiffSize += crec.DiffSize
		rec.AlgRoots += crec.AlgRoots
		rec.DiffRoots += crec.DiffRoots
		rec.JacSize += crec.JacSize
	}
	rec.ASize = rec.AlgSize + rec.DiffSize
	rec.StateLoaded = true
	rec.RJLoaded = true
}

func zeroAlgebraic(rec *OffsetRecord) {
	rec.Own = LocalSize{}
	rec.AlgSize, rec.DiffSize, rec.VSize, rec.ASize = 0, 0, 0, 0
	rec.AlgRoots, rec.DiffRoots, rec.JacSize = 0, 0, 0
}

// cascadeSampledOnly pushes the sampled-only flag down to every child, per
// a sampled-only parent samples its whole subtree.
func cascadeSampledOnly(obj Sizeable) {
	for _, child := range obj.SubObjects() {
		if setter, ok := child.(interface{ SetSampledOnly(bool) }); ok {
			setter.SetSampledOnly(true)
		}
		cascadeSampledOnly(child)
	}
}

// SetOffsets implements the setOffsets: install obj's local offsets
// at base, then walk children left-to-right, advancing a running offset by
// each child's subtree size. This produces the contiguous, monotone
// sibling layout: the object's own block comes first, then each
// enabled, non-sampled child's subtree in insertion order.
func SetOffsets(obj Sizeable, base OffsetBase, m Mode) {
	rec := obj.Offsets().Record(m)
	if !obj.IsEnabled() {
		rec.reset()
		return
	}
	rec.AlgOffset = base.Alg
	rec.DiffOffset = base.Diff
	rec.RootOffset = base.Root
	rec.JacOffset = base.Jac

	running := OffsetBase{
		Alg:  base.Alg + rec.Own.Alg,
		Diff: base.Diff + rec.Own.Diff,
		Root: base.Root + rec.Own.AlgRoot + rec.Own.DiffRoot,
		Jac:  base.Jac + rec.Own.Jac,
	}
	for _, child := range obj.SubObjects() {
		if !child.IsEnabled() || child.IsSampledOnly() {
			child.Offsets().Record(m).reset()
			continue
		}
		SetOffsets(child, running, m)
		crec := child.Offsets().Record(m)
		running.Alg += crec.AlgSize
		running.Diff += crec.DiffSize
		running.Root += crec.AlgRoots + crec.DiffRoots
		running.Jac += crec.JacSize
	}
}

// Lp holds resolved indices into the correct state/derivative buffers for
// one object in one mode. KNullLocation means "my
// half is not being computed in this mode".
type Lp struct {
	AlgLoc  int
	DiffLoc int
	DestLoc int
}

// GetLocations resolves the five buffer-layout branches The
// branches differ only in which source buffers are chosen and whether a
// destination is null; sD/mode select amongst local, DAE, algebraic-only,
// differential-only, and paired buffers.
func GetLocations(m Mode, rec *OffsetRecord) Lp {
	switch m.Layout() {
	case LayoutLocal:
		return Lp{AlgLoc: 0, DiffLoc: rec.Own.Alg, DestLoc: 0}
	case LayoutDAE:
		return Lp{AlgLoc: rec.AlgOffset, DiffLoc: rec.DiffOffset, DestLoc: rec.AlgOffset}
	case LayoutAlgebraicOnly:
		return Lp{AlgLoc: rec.AlgOffset, DiffLoc: KNullLocation, DestLoc: rec.AlgOffset}
	case LayoutDifferentialOnly:
		return Lp{AlgLoc: KNullLocation, DiffLoc: rec.DiffOffset, DestLoc: rec.DiffOffset}
	case LayoutPaired:
		// algebraic half lives in one buffer, differential half in another
		// (addressed via mode.PairedOffsetIndex by the caller); both
		// destinations are meaningful here, unlike DAE's shared one.
		return Lp{AlgLoc: rec.AlgOffset, DiffLoc: rec.DiffOffset, DestLoc: rec.AlgOffset}
	}
	return Lp{AlgLoc: KNullLocation, DiffLoc: KNullLocation, DestLoc: KNullLocation}
}
