package editor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soliddaw/daw"
)

const (
	zoomStep = 1.25

	// seekStep and seekStepShift are how far, in beats, the arrow keys move
	// the playhead when no note is selected.
	seekStep      = 0.25
	seekStepShift = 1
)

// KeyEvent handles a key press and returns true if it triggered an action.
// All shortcuts are ignored while a text input has focus.
func (m *Model) KeyEvent(e KeyEvent) bool {
	if m.textInputFocused {
		return false
	}
	action, ok := m.KeyAction(e)
	if !ok {
		return false
	}
	return m.DoKeyAction(action)
}

// DoKeyAction performs a named key action. Returns false for unknown names
// and for actions that did nothing.
func (m *Model) DoKeyAction(action string) bool {
	switch action {
	// Transport
	case "PlayPause":
		return doAction(m.Transport().PlayPause())
	case "Stop":
		return doAction(m.Transport().Stop())
	case "Record":
		return doAction(m.Transport().Record())
	case "SeekStart":
		m.Transport().SetPosition(0)
		return true
	case "ToggleLoop":
		return doAction(m.Transport().ToggleLoop())
	case "LoopStartHere":
		m.Loop().SetStart(m.currentBeats())
		return true
	case "LoopEndHere":
		m.Loop().SetEnd(m.currentBeats())
		return true
	case "SeekBackward":
		return m.seek(-seekStepShift)
	case "SeekForward":
		return m.seek(seekStepShift)
	// Arrows nudge the selected notes, or move the playhead
	case "Left":
		if len(m.view.selectedNotes) > 0 {
			return m.Notes().Nudge(NudgeLeft)
		}
		return m.seek(-seekStep)
	case "Right":
		if len(m.view.selectedNotes) > 0 {
			return m.Notes().Nudge(NudgeRight)
		}
		return m.seek(seekStep)
	// Notes
	case "NudgeLeft":
		return m.Notes().Nudge(NudgeLeft)
	case "NudgeRight":
		return m.Notes().Nudge(NudgeRight)
	case "NudgeUp":
		return m.Notes().Nudge(NudgeUp)
	case "NudgeDown":
		return m.Notes().Nudge(NudgeDown)
	case "DeleteNotes":
		return m.Notes().DeleteSelected()
	case "Cancel":
		if m.CancelGesture() {
			return true
		}
		if !m.anythingSelected() {
			return false
		}
		m.View().ClearSelection()
		return true
	// History
	case "Undo":
		return doAction(m.History().Undo())
	case "Redo":
		return doAction(m.History().Redo())
	// Clips
	case "CopyClip":
		id, ok := m.firstSelectedClip()
		return ok && m.Clips().Copy(id)
	case "CutClip":
		id, ok := m.firstSelectedClip()
		return ok && m.Clips().Cut(id)
	case "DuplicateClip":
		id, ok := m.firstSelectedClip()
		if !ok {
			return false
		}
		_, ok = m.Clips().Duplicate(id)
		return ok
	case "PasteClip":
		_, ok := m.Clips().Paste(m.pasteTrack(), m.currentBeats())
		return ok
	// Tracks
	case "AddTrack":
		_, ok := m.Tracks().Add(fmt.Sprintf("Track %d", len(m.d.Project.Tracks)+1), daw.TrackInstrument)
		return ok
	// View
	case "ToggleSnap":
		m.View().SnapToGrid().Toggle()
		return true
	case "ZoomIn":
		return m.View().Zoom().SetValue(m.view.zoom * zoomStep)
	case "ZoomOut":
		return m.View().Zoom().SetValue(m.view.zoom / zoomStep)
	}
	if n, ok := strings.CutPrefix(action, "SelectTrack"); ok {
		i, err := strconv.Atoi(n)
		if err != nil || i < 1 || i > len(m.d.Project.Tracks) {
			return false
		}
		m.View().SelectTrack(m.d.Project.Tracks[i-1].ID, false)
		return true
	}
	return false
}

// seek moves the playhead by beats, stopping at the start.
func (m *Model) seek(beats float64) bool {
	m.Transport().SetBeats(max(0, m.currentBeats()+beats))
	return true
}

func (m *Model) anythingSelected() bool {
	return len(m.view.selectedTrack) > 0 || len(m.view.selectedClips) > 0 || len(m.view.selectedNotes) > 0
}

func doAction(a Action) bool {
	if !a.Enabled() {
		return false
	}
	a.Do()
	return true
}

func (m *Model) firstSelectedClip() (string, bool) {
	ids := m.View().SelectedClips()
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// pasteTrack is the first selected track, else the track the clipboard clip
// came from, else the first track.
func (m *Model) pasteTrack() string {
	if ids := m.View().SelectedTracks(); len(ids) > 0 {
		return ids[0]
	}
	if m.clipboard != nil && m.d.Project.Track(m.clipboard.TrackID) >= 0 {
		return m.clipboard.TrackID
	}
	if len(m.d.Project.Tracks) > 0 {
		return m.d.Project.Tracks[0].ID
	}
	return ""
}
