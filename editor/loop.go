package editor

import (
	"math"

	"github.com/soliddaw/daw"
)

type (
	// Loop is the looped window of the transport, in beats. End > Start >= 0
	// always holds.
	Loop struct {
		Start, End float64
	}

	LoopRegion Model

	// LoopHandle is the part of the loop ruler a gesture grabbed.
	LoopHandle int

	loopData struct {
		Loop
		// configured is set once the user (or inference) has positioned the
		// loop; inference never overrides it afterwards.
		configured bool
	}

	loopGesture struct {
		handle     LoopHandle
		startX     float64
		orig       Loop
		configured bool
	}
)

const (
	LoopStartHandle LoopHandle = iota
	LoopEndHandle
	LoopBodyHandle
)

const (
	defaultLoopEnd = 16
	// inferred loop ends are rounded up to whole 4-beat bars
	loopInferQuantum = 4
)

func defaultLoop() loopData {
	return loopData{Loop: Loop{Start: 0, End: defaultLoopEnd}}
}

func (m *Model) Loop() *LoopRegion { return (*LoopRegion)(m) }

// Value returns the current loop window.
func (m *LoopRegion) Value() Loop { return m.loop.Loop }

// Configured reports whether the loop has been positioned by the user or by
// inference.
func (m *LoopRegion) Configured() bool { return m.loop.configured }

// Length returns End - Start.
func (l Loop) Length() float64 { return l.End - l.Start }

func (m *LoopRegion) minGap() float64 { return (*Model)(m).View().Grid().Step() }

// SetStart snaps v and clamps it to [0, End - minGap].
func (m *LoopRegion) SetStart(v float64) {
	m.set(m.clampStart(v, m.loop.End), m.loop.End)
}

// SetEnd snaps v and clamps it to [Start + minGap, ∞).
func (m *LoopRegion) SetEnd(v float64) {
	m.set(m.loop.Start, m.clampEnd(v, m.loop.Start))
}

// DragRegion moves the whole loop by delta beats, keeping its length. The
// start is snapped and not moved before 0.
func (m *LoopRegion) DragRegion(delta float64) {
	m.set(m.dragged(m.loop.Loop, delta))
}

// InferFromContent sets the loop end to the end of the last clip, rounded up
// to a whole 4-beat bar. Returns false, changing nothing, if the project has
// no clips.
func (m *LoopRegion) InferFromContent() bool {
	end, ok := (*Model)(m).d.Project.ContentEnd()
	if !ok {
		return false
	}
	end = max(loopInferQuantum, math.Ceil(end/loopInferQuantum)*loopInferQuantum)
	m.set(m.loop.Start, max(end, m.loop.Start+m.minGap()))
	return true
}

func (m *LoopRegion) clampStart(v, end float64) float64 {
	v = (*Model)(m).View().Grid().Snap(v)
	return max(0, min(v, end-m.minGap()))
}

func (m *LoopRegion) clampEnd(v, start float64) float64 {
	v = (*Model)(m).View().Grid().Snap(v)
	return max(v, start+m.minGap())
}

func (m *LoopRegion) dragged(l Loop, delta float64) (start, end float64) {
	length := l.Length()
	start = max(0, (*Model)(m).View().Grid().Snap(l.Start+delta))
	return start, start + length
}

// set stores the loop, repairing anything that would break End > Start >= 0,
// and forwards it to the sound engine.
func (m *LoopRegion) set(start, end float64) {
	start = max(0, start)
	if !(end > start) {
		end = start + m.minGap()
	}
	m.loop.configured = true
	if m.loop.Start == start && m.loop.End == end {
		return
	}
	m.loop.Start, m.loop.End = start, end
	(*Model)(m).syncEngineLoop()
	(*Model)(m).notify(LoopChange)
}

// Gestures

// PointerDown starts dragging a loop handle at horizontal pixel position x.
// Returns false if another gesture is already in progress.
func (m *LoopRegion) PointerDown(handle LoopHandle, x float64) bool {
	if handle < LoopStartHandle || handle > LoopBodyHandle {
		return false
	}
	if !(*Model)(m).beginGesture(loopGestureActive) {
		return false
	}
	m.loopGesture = loopGesture{handle: handle, startX: x, orig: m.loop.Loop, configured: m.loop.configured}
	return true
}

// PointerMove updates the grabbed handle. Deltas are measured from the
// pointer-down position, so intermediate clamping does not accumulate.
func (m *LoopRegion) PointerMove(x float64) {
	if m.gesture != loopGestureActive {
		return
	}
	g := m.loopGesture
	delta := daw.PixelsToBeats(x-g.startX, (*Model)(m).View().PixelsPerBeat())
	switch g.handle {
	case LoopStartHandle:
		m.set(m.clampStart(g.orig.Start+delta, m.loop.End), m.loop.End)
	case LoopEndHandle:
		m.set(m.loop.Start, m.clampEnd(g.orig.End+delta, m.loop.Start))
	case LoopBodyHandle:
		m.set(m.dragged(g.orig, delta))
	}
}

// PointerUp applies the final position and releases the gesture.
func (m *LoopRegion) PointerUp(x float64) {
	if m.gesture != loopGestureActive {
		return
	}
	m.PointerMove(x)
	(*Model)(m).endGesture()
}

// Dragging reports whether a loop handle is grabbed, and which one.
func (m *LoopRegion) Dragging() (LoopHandle, bool) {
	return m.loopGesture.handle, m.gesture == loopGestureActive
}

func (m *LoopRegion) cancelGesture() {
	m.set(m.loopGesture.orig.Start, m.loopGesture.orig.End)
	m.loop.configured = m.loopGesture.configured
	(*Model)(m).endGesture()
}

// syncEngineLoop forwards the loop to the sound engine, if it is running.
func (m *Model) syncEngineLoop() {
	if m.engineStatus != engineReady {
		return
	}
	m.engine.SetLoop(m.transport.looping)
	m.engine.SetLoopStart(daw.BeatsToTicks(m.loop.Start))
	m.engine.SetLoopEnd(daw.BeatsToTicks(m.loop.End))
}
