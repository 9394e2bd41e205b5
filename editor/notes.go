package editor

import (
	"math"

	"github.com/soliddaw/daw"
)

type (
	// NoteEditor is the piano roll: note gestures, nudging and note
	// selection.
	NoteEditor Model

	// NoteHandle is the part of a note the pointer went down on.
	NoteHandle int

	// NoteState is the state of the note gesture.
	NoteState int

	// DragType is what a committed note drag changes.
	DragType int

	// NudgeDirection is the direction of an arrow key nudge.
	NudgeDirection int

	// Pointer is a pointer event in pixels of the piano roll. Modifier is
	// Shift or the platform shortcut key.
	Pointer struct {
		X, Y     float64
		Modifier bool
	}

	// NoteRange is an inclusive range of MIDI pitches.
	NoteRange struct {
		Min, Max int
	}

	noteGesture struct {
		state      NoteState
		drag       DragType
		clipID     string
		noteID     string
		origin     Pointer
		orig       daw.MidiNote
		rng        NoteRange
		pitchScale float64
		snapshot   modelData
	}
)

const (
	NoteBody NoteHandle = iota
	NoteLeftEdge
	NoteRightEdge
)

const (
	NoteIdle NoteState = iota
	NotePendingDrag
	NotePendingResize
	NoteDragging
)

const (
	DragPosition DragType = iota
	DragStart
	DragEnd
)

const (
	NudgeLeft NudgeDirection = iota
	NudgeRight
	NudgeUp
	NudgeDown
)

const (
	// dragThreshold is how far, in pixels, the pointer has to move before a
	// press on a note becomes a drag.
	dragThreshold = 3

	noteRangePadding = 3
	minNoteRange     = 24
	maxNoteRange     = 108
)

var defaultNoteRange = NoteRange{60, 72}

func (m *Model) Notes() *NoteEditor { return (*NoteEditor)(m) }

// Size is the number of pitches in the range.
func (r NoteRange) Size() int { return r.Max - r.Min + 1 }

// State returns the state of the note gesture and, when dragging, what the
// drag changes.
func (m *NoteEditor) State() (NoteState, DragType) {
	return m.noteGesture.state, m.noteGesture.drag
}

// TrackNoteRange returns the pitches the piano roll shows for a track: the
// range of its MIDI notes padded by 3, within [24, 108]. Notes outside
// [24, 108] widen the range to include them, so the range is never empty. A
// track without notes shows C4 to C5.
func (m *NoteEditor) TrackNoteRange(trackID string) NoteRange {
	i := m.d.Project.Track(trackID)
	if i < 0 {
		return defaultNoteRange
	}
	lo, hi, found := math.MaxInt, math.MinInt, false
	for _, c := range m.d.Project.Tracks[i].Clips {
		if !c.IsMIDI() {
			continue
		}
		for _, n := range c.Content.Notes {
			lo, hi, found = min(lo, n.Note.MIDI()), max(hi, n.Note.MIDI()), true
		}
	}
	if !found {
		return defaultNoteRange
	}
	r := NoteRange{max(minNoteRange, lo-noteRangePadding), min(maxNoteRange, hi+noteRangePadding)}
	r.Min, r.Max = min(r.Min, lo), max(r.Max, hi)
	return r
}

func (m *NoteEditor) minDuration() float64 { return (*Model)(m).View().Grid().Step() }

// Gestures

// PointerDown presses the pointer on a note. Nothing changes until the
// pointer moves past the drag threshold. Returns false if the note does not
// exist or another gesture is in progress.
func (m *NoteEditor) PointerDown(clipID, noteID string, handle NoteHandle, p Pointer) bool {
	ti, ci := m.d.Project.FindClip(clipID)
	if ti < 0 || handle < NoteBody || handle > NoteRightEdge {
		return false
	}
	clip := &m.d.Project.Tracks[ti].Clips[ci]
	note := clip.Note(noteID)
	if note == nil {
		return false
	}
	if !(*Model)(m).beginGesture(noteGestureActive) {
		return false
	}
	g := noteGesture{
		state:    NotePendingDrag,
		drag:     DragPosition,
		clipID:   clipID,
		noteID:   noteID,
		origin:   p,
		orig:     *note,
		rng:      m.TrackNoteRange(m.d.Project.Tracks[ti].ID),
		snapshot: m.d.Copy(),
	}
	g.pitchScale = m.view.trackHeight / float64(g.rng.Size())
	switch handle {
	case NoteLeftEdge:
		g.state, g.drag = NotePendingResize, DragStart
	case NoteRightEdge:
		g.state, g.drag = NotePendingResize, DragEnd
	}
	m.noteGesture = g
	return true
}

// PointerMove moves the pointer. Once past the threshold the gesture becomes
// a drag, and from then on every move updates the note.
func (m *NoteEditor) PointerMove(p Pointer) {
	if m.gesture != noteGestureActive {
		return
	}
	g := &m.noteGesture
	dx, dy := p.X-g.origin.X, p.Y-g.origin.Y
	if g.state != NoteDragging {
		if math.Abs(dx) < dragThreshold && math.Abs(dy) < dragThreshold {
			return
		}
		g.state = NoteDragging
		if _, ok := m.view.selectedNotes[g.noteID]; !ok {
			toggleSelection(m.view.selectedNotes, g.noteID, false)
			(*Model)(m).notify(SelectionChange)
		}
	}
	m.applyDrag(dx, dy)
}

// PointerUp releases the pointer. A press that never became a drag selects
// the note: it becomes the only selected note, or with Modifier it is
// toggled in the selection. A drag ends as one undoable change.
func (m *NoteEditor) PointerUp(p Pointer) {
	if m.gesture != noteGestureActive {
		return
	}
	g := &m.noteGesture
	m.PointerMove(p)
	if g.state == NoteDragging {
		(*Model)(m).pushUndo(g.snapshot)
		m.prevUndoKind = ""
	} else {
		toggleSelection(m.view.selectedNotes, g.noteID, p.Modifier)
		(*Model)(m).notify(SelectionChange)
	}
	m.noteGesture = noteGesture{}
	(*Model)(m).endGesture()
}

// Cancel aborts the note gesture, restoring the note as it was at pointer
// down.
func (m *NoteEditor) Cancel() bool {
	if m.gesture != noteGestureActive {
		return false
	}
	m.cancelGesture()
	return true
}

func (m *NoteEditor) cancelGesture() {
	if m.noteGesture.state == NoteDragging {
		m.d = m.noteGesture.snapshot
		(*Model)(m).notify(ProjectChange)
	}
	m.noteGesture = noteGesture{}
	(*Model)(m).endGesture()
}

// applyDrag sets the dragged note from its state at pointer down and the
// total pointer movement.
func (m *NoteEditor) applyDrag(dx, dy float64) {
	g := &m.noteGesture
	clip := m.d.Project.ClipByID(g.clipID)
	if clip == nil {
		return
	}
	note := clip.Note(g.noteID)
	if note == nil {
		return
	}
	grid := (*Model)(m).View().Grid()
	minDur := m.minDuration()
	delta := daw.PixelsToBeats(dx, (*Model)(m).View().PixelsPerBeat())
	o := g.orig
	switch g.drag {
	case DragPosition:
		note.Time = grid.Snap(max(0, o.Time+delta))
		note.Note = o.Note
		if steps := int(math.Round(-dy / g.pitchScale)); steps != 0 {
			note.Note = o.Note.WithPitch(daw.ClampPitch(o.Note.MIDI()+steps, g.rng.Min, g.rng.Max))
		}
	case DragStart:
		note.Time = grid.Snap(max(0, o.Time+delta))
		note.Duration = max(minDur, o.Duration-(note.Time-o.Time))
	case DragEnd:
		note.Duration = max(minDur, grid.Snap(max(minDur, o.Duration+delta)))
	}
	fitToNotes(clip)
	m.d.ChangedSinceSave = true
	m.d.ChangedSinceRecovery = true
	(*Model)(m).notify(ProjectChange)
}

// fitToNotes grows a MIDI clip so that it covers all its notes. Clips never
// shrink here.
func fitToNotes(c *daw.Clip) bool {
	if !c.IsMIDI() {
		return false
	}
	if end := c.NotesEnd(); end > c.Duration {
		c.Duration = end
		return true
	}
	return false
}

// Editing

// Nudge moves every selected note one grid step left or right, snapped to
// the grid, or one semitone up or down within the range of its track. Ignored while a text
// input has focus or a gesture is in progress.
func (m *NoteEditor) Nudge(dir NudgeDirection) bool {
	if m.textInputFocused || m.gesture != noGesture || len(m.view.selectedNotes) == 0 {
		return false
	}
	if dir < NudgeLeft || dir > NudgeDown {
		return false
	}
	defer (*Model)(m).change("Nudge", ProjectChange, MajorChange)()
	step := m.minDuration()
	grid := (*Model)(m).View().Grid()
	for ti := range m.d.Project.Tracks {
		t := &m.d.Project.Tracks[ti]
		rng := m.TrackNoteRange(t.ID)
		for ci := range t.Clips {
			c := &t.Clips[ci]
			for ni := range c.Content.Notes {
				n := &c.Content.Notes[ni]
				if _, ok := m.view.selectedNotes[n.ID]; !ok {
					continue
				}
				switch dir {
				case NudgeLeft:
					n.Time = grid.Snap(max(0, n.Time-step))
				case NudgeRight:
					n.Time = grid.Snap(n.Time + step)
				case NudgeUp:
					n.Note = n.Note.WithPitch(daw.ClampPitch(n.Note.MIDI()+1, rng.Min, rng.Max))
				case NudgeDown:
					n.Note = n.Note.WithPitch(daw.ClampPitch(n.Note.MIDI()-1, rng.Min, rng.Max))
				}
			}
			fitToNotes(c)
		}
	}
	return true
}

// AddNote adds a note to a MIDI clip at time, relative to the clip start.
// The time is snapped; the note lasts one grid step. Returns the id of the
// new note.
func (m *NoteEditor) AddNote(clipID string, time float64, pitch daw.Pitch) (string, bool) {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil || !clip.IsMIDI() || m.gesture != noGesture {
		return "", false
	}
	defer (*Model)(m).change("AddNote", ProjectChange, MajorChange)()
	n := daw.NewNote(pitch, max(0, (*Model)(m).View().Grid().Snap(time)), m.minDuration(), daw.DefaultVelocity)
	clip.Content.Notes = append(clip.Content.Notes, n)
	fitToNotes(clip)
	return n.ID, true
}

// DeleteSelected removes the selected notes.
func (m *NoteEditor) DeleteSelected() bool {
	if m.gesture != noGesture || len(m.view.selectedNotes) == 0 {
		return false
	}
	defer (*Model)(m).change("DeleteNotes", ProjectChange|SelectionChange, MajorChange)()
	for ti := range m.d.Project.Tracks {
		t := &m.d.Project.Tracks[ti]
		for ci := range t.Clips {
			c := &t.Clips[ci]
			kept := c.Content.Notes[:0]
			for _, n := range c.Content.Notes {
				if _, ok := m.view.selectedNotes[n.ID]; !ok {
					kept = append(kept, n)
				}
			}
			c.Content.Notes = kept
		}
	}
	clear(m.view.selectedNotes)
	return true
}

// SetVelocity sets the velocity of the selected notes, clamped to [0, 1].
// Consecutive calls are undone together.
func (m *NoteEditor) SetVelocity(v float64) bool {
	if math.IsNaN(v) || len(m.view.selectedNotes) == 0 {
		return false
	}
	v = max(0, min(1, v))
	defer (*Model)(m).change("Velocity", ProjectChange, MinorChange)()
	for ti := range m.d.Project.Tracks {
		for ci := range m.d.Project.Tracks[ti].Clips {
			notes := m.d.Project.Tracks[ti].Clips[ci].Content.Notes
			for ni := range notes {
				if _, ok := m.view.selectedNotes[notes[ni].ID]; ok {
					notes[ni].Velocity = v
				}
			}
		}
	}
	return true
}

// Selection

// SelectNote makes the note the only selected one, or toggles it when add
// is true.
func (m *NoteEditor) SelectNote(noteID string, add bool) {
	if !m.noteExists(noteID) {
		return
	}
	toggleSelection(m.view.selectedNotes, noteID, add)
	(*Model)(m).notify(SelectionChange)
}

// SelectInRegion selects the notes of the clip overlapping the time window
// [t0, t1) with pitch in [p0, p1]. Without add, the previous note selection
// is replaced.
func (m *NoteEditor) SelectInRegion(clipID string, t0, t1 float64, p0, p1 int, add bool) int {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil {
		return 0
	}
	t0, t1 = min(t0, t1), max(t0, t1)
	p0, p1 = min(p0, p1), max(p0, p1)
	if !add {
		clear(m.view.selectedNotes)
	}
	count := 0
	for _, n := range clip.Content.Notes {
		if n.Time < t1 && n.Time+n.Duration > t0 && n.Note.MIDI() >= p0 && n.Note.MIDI() <= p1 {
			m.view.selectedNotes[n.ID] = struct{}{}
			count++
		}
	}
	(*Model)(m).notify(SelectionChange)
	return count
}

// SelectedNotes returns the ids of the selected notes in project order.
func (m *NoteEditor) SelectedNotes() []string {
	var ret []string
	for _, t := range m.d.Project.Tracks {
		for _, c := range t.Clips {
			for _, n := range c.Content.Notes {
				if _, ok := m.view.selectedNotes[n.ID]; ok {
					ret = append(ret, n.ID)
				}
			}
		}
	}
	return ret
}

func (m *NoteEditor) IsNoteSelected(noteID string) bool {
	_, ok := m.view.selectedNotes[noteID]
	return ok
}

// NoteIndex returns the current index of a note in its clip, or -1.
func (m *NoteEditor) NoteIndex(clipID, noteID string) int {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil {
		return -1
	}
	return clip.NoteIndex(noteID)
}

// Note returns a copy of a note of a clip.
func (m *NoteEditor) Note(clipID, noteID string) (daw.MidiNote, bool) {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil {
		return daw.MidiNote{}, false
	}
	n := clip.Note(noteID)
	if n == nil {
		return daw.MidiNote{}, false
	}
	return *n, true
}

func (m *NoteEditor) noteExists(noteID string) bool {
	for _, t := range m.d.Project.Tracks {
		for i := range t.Clips {
			if t.Clips[i].Note(noteID) != nil {
				return true
			}
		}
	}
	return false
}
