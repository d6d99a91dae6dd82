package vm

import (
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// Profiler counts backward branches per loop head to find hot loops. It is
// an extension point only: OnHot defaults to logging, and nothing in the
// engine depends on it firing.

// LoopKey identifies a loop by its unit and the backward jump target.
type LoopKey struct {
	Unit   *Unit
	Target int
}

// LoopProfile holds profiling data for a single loop head.
type LoopProfile struct {
	Iterations uint64 // Atomic counter for backward branches taken
	hot        atomic.Bool
}

// IsHot reports whether the loop crossed the threshold.
func (p *LoopProfile) IsHot() bool {
	return p.hot.Load()
}

// Profiler manages loop profiles for every interpreter of a Space.
type Profiler struct {
	loops sync.Map // LoopKey -> *LoopProfile

	// HotThreshold is the iteration count at which a loop becomes hot.
	HotThreshold uint64

	// OnHot is called once per loop, on the branch that makes it hot.
	OnHot func(key LoopKey, profile *LoopProfile)

	hotLoopCount uint64
	log          commonlog.Logger
}

// NewProfiler creates a profiler with the given threshold.
func NewProfiler(threshold uint64) *Profiler {
	p := &Profiler{
		HotThreshold: threshold,
		log:          commonlog.GetLogger("garnet.profiler"),
	}
	p.OnHot = p.logHot
	return p
}

// RecordBackEdge counts one backward branch to target in unit. It has the
// signature of Interpreter.OnBackEdge.
func (p *Profiler) RecordBackEdge(unit *Unit, target int) {
	key := LoopKey{Unit: unit, Target: target}
	val, _ := p.loops.LoadOrStore(key, &LoopProfile{})
	profile := val.(*LoopProfile)

	count := atomic.AddUint64(&profile.Iterations, 1)
	if count >= p.HotThreshold && profile.hot.CompareAndSwap(false, true) {
		atomic.AddUint64(&p.hotLoopCount, 1)
		if p.OnHot != nil {
			p.OnHot(key, profile)
		}
	}
}

// Profile returns the profile of a loop, or nil if it never looped.
func (p *Profiler) Profile(unit *Unit, target int) *LoopProfile {
	if val, ok := p.loops.Load(LoopKey{Unit: unit, Target: target}); ok {
		return val.(*LoopProfile)
	}
	return nil
}

// HotLoopCount returns how many loops became hot.
func (p *Profiler) HotLoopCount() uint64 {
	return atomic.LoadUint64(&p.hotLoopCount)
}

// Reset clears every profile.
func (p *Profiler) Reset() {
	p.loops.Range(func(key, _ interface{}) bool {
		p.loops.Delete(key)
		return true
	})
	atomic.StoreUint64(&p.hotLoopCount, 0)
}

func (p *Profiler) logHot(key LoopKey, profile *LoopProfile) {
	p.log.Infof("hot loop in %s at %04d after %d iterations",
		key.Unit.Name, key.Target, atomic.LoadUint64(&profile.Iterations))
}
