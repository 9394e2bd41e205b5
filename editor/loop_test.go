package editor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
)

func TestLoopEndDragClampsToStart(t *testing.T) {
	assert := assert.New(t)
	m, _ := newModel(nil)
	m.View().GridSize().SetValue(1)
	assert.Equal(editor.Loop{Start: 0, End: 16}, m.Loop().Value())
	ppb := m.View().PixelsPerBeat()
	x := 16 * ppb
	assert.True(m.Loop().PointerDown(editor.LoopEndHandle, x))
	m.Loop().PointerMove(x - 10*ppb)
	assert.Equal(6.0, m.Loop().Value().End)
	m.Loop().PointerUp(x - 20*ppb)
	assert.Equal(editor.Loop{Start: 0, End: 1}, m.Loop().Value())
	assert.False(m.GestureActive())
}

func TestLoopSetters(t *testing.T) {
	assert := assert.New(t)
	m, _ := newModel(nil)
	m.Loop().SetStart(4.1)
	assert.Equal(4.0, m.Loop().Value().Start)
	m.Loop().SetStart(100)
	assert.Equal(editor.Loop{Start: 15.75, End: 16}, m.Loop().Value())
	m.Loop().SetStart(-3)
	assert.Equal(0.0, m.Loop().Value().Start)
	m.Loop().SetEnd(-3)
	assert.Equal(0.25, m.Loop().Value().End)
	m.Loop().SetEnd(8)
	m.Loop().SetStart(4)
	m.Loop().DragRegion(-5)
	assert.Equal(editor.Loop{Start: 0, End: 4}, m.Loop().Value())
	m.Loop().DragRegion(2.6)
	assert.Equal(editor.Loop{Start: 2.5, End: 6.5}, m.Loop().Value())
	assert.True(m.Loop().Configured())
}

func TestLoopSnapDisabled(t *testing.T) {
	m, _ := newModel(nil)
	m.View().SnapToGrid().SetValue(false)
	m.Loop().SetStart(3.3)
	assert.Equal(t, 3.3, m.Loop().Value().Start)
	m.Loop().SetEnd(3.4)
	// the minimum gap is the default step without a grid
	assert.Equal(t, 3.3+daw.DefaultStep, m.Loop().Value().End)
}

func TestLoopGestureCancel(t *testing.T) {
	assert := assert.New(t)
	m, _ := newModel(nil)
	before := m.Loop().Value()
	assert.True(m.Loop().PointerDown(editor.LoopBodyHandle, 500))
	// only one gesture at a time
	assert.False(m.Loop().PointerDown(editor.LoopStartHandle, 0))
	m.Loop().PointerMove(900)
	assert.Equal(2.0, m.Loop().Value().Start)
	handle, dragging := m.Loop().Dragging()
	assert.True(dragging)
	assert.Equal(editor.LoopBodyHandle, handle)
	assert.True(m.CancelGesture())
	assert.Equal(before, m.Loop().Value())
	assert.False(m.Loop().Configured())
	assert.False(m.CancelGesture())
}

func TestLoopInferWithoutClips(t *testing.T) {
	m, _ := newModel(nil)
	assert.False(t, m.Loop().InferFromContent())
	assert.Equal(t, editor.Loop{Start: 0, End: 16}, m.Loop().Value())
}

func TestLoopStaysOrdered(t *testing.T) {
	m, _ := newModel(nil)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		v := r.Float64()*60 - 20
		switch r.Intn(7) {
		case 0:
			m.Loop().SetStart(v)
		case 1:
			m.Loop().SetEnd(v)
		case 2:
			m.Loop().DragRegion(v)
		case 3:
			m.View().GridSize().SetValue(r.Float64() * 4)
		case 4:
			m.View().SnapToGrid().Toggle()
		case 5:
			if m.Loop().PointerDown(editor.LoopHandle(r.Intn(3)), r.Float64()*4000) {
				m.Loop().PointerMove(r.Float64()*8000 - 4000)
				m.Loop().PointerUp(r.Float64()*8000 - 4000)
			}
		case 6:
			m.View().Zoom().SetValue(r.Float64() * 5)
		}
		if l := m.Loop().Value(); !(l.End > l.Start && l.Start >= 0) {
			t.Fatalf("step %d: loop out of order: %+v", i, l)
		}
	}
}
