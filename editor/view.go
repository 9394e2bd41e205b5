package editor

import (
	"math"
	"slices"

	"github.com/soliddaw/daw"
)

type (
	View Model

	ViewMode int

	viewData struct {
		zoom          float64
		scrollX       float64
		scrollY       float64
		snapToGrid    bool
		gridSize      float64
		trackHeight   float64
		mode          ViewMode
		selectedTrack map[string]struct{}
		selectedClips map[string]struct{}
		selectedNotes map[string]struct{}
	}

	viewZoom        View
	viewScrollX     View
	viewScrollY     View
	viewGridSize    View
	viewTrackHeight View
	viewSnap        View
)

const (
	ArrangeView ViewMode = iota
	MixView
	EditView
)

const (
	minZoom            = 0.1
	maxZoom            = 10
	defaultGridSize    = 0.25
	defaultTrackHeight = 80
)

func defaultView() viewData {
	return viewData{
		zoom:          1,
		snapToGrid:    true,
		gridSize:      defaultGridSize,
		trackHeight:   defaultTrackHeight,
		selectedTrack: map[string]struct{}{},
		selectedClips: map[string]struct{}{},
		selectedNotes: map[string]struct{}{},
	}
}

func (m *Model) View() *View { return (*View)(m) }

// Grid returns the snap grid every interactive edit uses.
func (m *View) Grid() daw.Grid {
	return daw.Grid{Size: m.view.gridSize, Enabled: m.view.snapToGrid}
}

// PixelsPerBeat is the horizontal scale at the current zoom.
func (m *View) PixelsPerBeat() float64 { return daw.PixelsPerBeat(m.view.zoom) }

// BeatsToX converts a position in beats to a horizontal pixel offset in the
// scrolled timeline.
func (m *View) BeatsToX(beats float64) float64 {
	return daw.BeatsToPixels(beats, m.PixelsPerBeat()) - m.view.scrollX
}

// XToBeats is the inverse of BeatsToX.
func (m *View) XToBeats(x float64) float64 {
	return daw.PixelsToBeats(x+m.view.scrollX, m.PixelsPerBeat())
}

func (m *View) Mode() ViewMode { return m.view.mode }

func (m *View) SetMode(mode ViewMode) {
	if mode < ArrangeView || mode > EditView || mode == m.view.mode {
		return
	}
	m.view.mode = mode
	(*Model)(m).notify(ViewChange)
}

func (m *View) Zoom() Float        { return MakeFloat((*viewZoom)(m)) }
func (m *View) ScrollX() Float     { return MakeFloat((*viewScrollX)(m)) }
func (m *View) ScrollY() Float     { return MakeFloat((*viewScrollY)(m)) }
func (m *View) GridSize() Float    { return MakeFloat((*viewGridSize)(m)) }
func (m *View) TrackHeight() Float { return MakeFloat((*viewTrackHeight)(m)) }
func (m *View) SnapToGrid() Bool   { return MakeBool((*viewSnap)(m)) }

func (v *viewZoom) Value() float64    { return v.view.zoom }
func (v *viewZoom) Range() FloatRange { return FloatRange{minZoom, maxZoom} }
func (v *viewZoom) SetValue(z float64) bool {
	v.view.zoom = z
	(*Model)(v).notify(ViewChange)
	return true
}

func (v *viewScrollX) Value() float64    { return v.view.scrollX }
func (v *viewScrollX) Range() FloatRange { return FloatRange{0, math.Inf(1)} }
func (v *viewScrollX) SetValue(x float64) bool {
	v.view.scrollX = x
	(*Model)(v).notify(ViewChange)
	return true
}

func (v *viewScrollY) Value() float64    { return v.view.scrollY }
func (v *viewScrollY) Range() FloatRange { return FloatRange{0, math.Inf(1)} }
func (v *viewScrollY) SetValue(y float64) bool {
	v.view.scrollY = y
	(*Model)(v).notify(ViewChange)
	return true
}

func (v *viewGridSize) Value() float64    { return v.view.gridSize }
func (v *viewGridSize) Range() FloatRange { return FloatRange{1.0 / 64, 16} }
func (v *viewGridSize) SetValue(g float64) bool {
	v.view.gridSize = g
	(*Model)(v).notify(ViewChange)
	return true
}

func (v *viewTrackHeight) Value() float64    { return v.view.trackHeight }
func (v *viewTrackHeight) Range() FloatRange { return FloatRange{20, 400} }
func (v *viewTrackHeight) SetValue(h float64) bool {
	v.view.trackHeight = h
	(*Model)(v).notify(ViewChange)
	return true
}

func (v *viewSnap) Value() bool { return v.view.snapToGrid }
func (v *viewSnap) SetValue(val bool) {
	v.view.snapToGrid = val
	(*Model)(v).notify(ViewChange)
}

// Selection

// SelectTrack makes the track the only selected one, or toggles it in the
// selection when add is true.
func (m *View) SelectTrack(id string, add bool) {
	if (*Model)(m).d.Project.Track(id) < 0 {
		return
	}
	toggleSelection(m.view.selectedTrack, id, add)
	(*Model)(m).notify(SelectionChange)
}

// SelectClip makes the clip the only selected one, or toggles it in the
// selection when add is true.
func (m *View) SelectClip(id string, add bool) {
	if (*Model)(m).d.Project.ClipByID(id) == nil {
		return
	}
	toggleSelection(m.view.selectedClips, id, add)
	(*Model)(m).notify(SelectionChange)
}

func (m *View) SelectedTracks() []string { return sortedKeys(m.view.selectedTrack) }
func (m *View) SelectedClips() []string  { return orderedClipIDs((*Model)(m), m.view.selectedClips) }

func (m *View) IsTrackSelected(id string) bool {
	_, ok := m.view.selectedTrack[id]
	return ok
}

func (m *View) IsClipSelected(id string) bool {
	_, ok := m.view.selectedClips[id]
	return ok
}

// ClearSelection deselects all tracks, clips and notes.
func (m *View) ClearSelection() {
	(*Model)(m).clearSelections()
	(*Model)(m).notify(SelectionChange)
}

func toggleSelection(set map[string]struct{}, id string, add bool) {
	if !add {
		clear(set)
		set[id] = struct{}{}
		return
	}
	if _, ok := set[id]; ok {
		delete(set, id)
	} else {
		set[id] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	ret := make([]string, 0, len(set))
	for k := range set {
		ret = append(ret, k)
	}
	slices.Sort(ret)
	return ret
}

// orderedClipIDs returns the ids in project order, so that "the first
// selected clip" is stable.
func orderedClipIDs(m *Model, set map[string]struct{}) []string {
	var ret []string
	for _, t := range m.d.Project.Tracks {
		for _, c := range t.Clips {
			if _, ok := set[c.ID]; ok {
				ret = append(ret, c.ID)
			}
		}
	}
	return ret
}

func (m *Model) clearSelections() {
	clear(m.view.selectedTrack)
	clear(m.view.selectedClips)
	clear(m.view.selectedNotes)
}

// pruneSelections drops selected ids that no longer exist in the project.
func (m *Model) pruneSelections() {
	tracks, clips, notes := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, t := range m.d.Project.Tracks {
		tracks[t.ID] = true
		for _, c := range t.Clips {
			clips[c.ID] = true
			for _, n := range c.Content.Notes {
				notes[n.ID] = true
			}
		}
	}
	for _, s := range []struct {
		set   map[string]struct{}
		valid map[string]bool
	}{{m.view.selectedTrack, tracks}, {m.view.selectedClips, clips}, {m.view.selectedNotes, notes}} {
		for id := range s.set {
			if !s.valid[id] {
				delete(s.set, id)
			}
		}
	}
}
