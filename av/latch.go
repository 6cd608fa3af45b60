package av

import "sync/atomic"

// LatchState is the state of a one-shot Latch.
type LatchState uint32

const (
	LatchUnarmed LatchState = iota
	LatchArmed
	LatchFired
)

// String returns the string representation of LatchState.
func (s LatchState) String() string {
	switch s {
	case LatchUnarmed:
		return "unarmed"
	case LatchArmed:
		return "armed"
	case LatchFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Latch is a tri-state one-shot flag. It only moves forward, so a one-shot
// event guarded by it fires at most once per Latch. Instances get fresh
// latches on creation and never reset them.
type Latch struct {
	state atomic.Uint32
}

// Arm moves an unarmed latch to armed. Re-arming an armed or fired latch is a no-op.
func (l *Latch) Arm() {
	l.state.CompareAndSwap(uint32(LatchUnarmed), uint32(LatchArmed))
}

// Fire moves an armed latch to fired and reports whether it did.
func (l *Latch) Fire() bool {
	return l.state.CompareAndSwap(uint32(LatchArmed), uint32(LatchFired))
}

// State returns the current latch state.
func (l *Latch) State() LatchState {
	return LatchState(l.state.Load())
}

// sizeTracker reports every distinct (width, height) pair, including the first.
type sizeTracker struct {
	width, height int
	seen          bool
}

func (s *sizeTracker) observe(width, height int) bool {
	if s.seen && s.width == width && s.height == height {
		return false
	}
	s.width, s.height, s.seen = width, height, true
	return true
}
