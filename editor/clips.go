package editor

import (
	"github.com/soliddaw/daw"
)

// Clips groups the operations on the clips of the timeline. Clip edits never
// talk to the sound engine; the next Play schedules the result.
type Clips Model

func (m *Model) Clips() *Clips { return (*Clips)(m) }

// Add places a clip on a track. A clip without an id, or with one already
// in use, is added as a clone with fresh ids. Its start is snapped and
// clamped to >= 0. Returns the clip id.
func (m *Clips) Add(trackID string, clip daw.Clip) (string, bool) {
	ti := m.d.Project.Track(trackID)
	if ti < 0 || !(clip.Duration > 0) {
		return "", false
	}
	defer (*Model)(m).change("AddClip", ProjectChange, MajorChange)()
	if clip.ID == "" || m.d.Project.ClipByID(clip.ID) != nil {
		clip = clip.Clone()
	}
	clip.TrackID = trackID
	clip.Start = m.snapStart(clip.Start)
	clip.EnsureNoteIDs()
	m.d.Project.Tracks[ti].Clips = append(m.d.Project.Tracks[ti].Clips, clip)
	return clip.ID, true
}

// Move sets the start of a clip, snapped and clamped to >= 0. Overlaps with
// other clips are allowed.
func (m *Clips) Move(clipID string, start float64) bool {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil {
		return false
	}
	start = m.snapStart(start)
	if start == clip.Start {
		return false
	}
	defer (*Model)(m).change("MoveClip", ProjectChange, MajorChange)()
	clip = m.d.Project.ClipByID(clipID)
	clip.Start = start
	return true
}

// Duplicate places a copy of the clip right after it, on the same track.
// The copy and its notes get new ids. Returns the id of the copy.
func (m *Clips) Duplicate(clipID string) (string, bool) {
	ti, ci := m.d.Project.FindClip(clipID)
	if ti < 0 {
		return "", false
	}
	defer (*Model)(m).change("DuplicateClip", ProjectChange, MajorChange)()
	t := &m.d.Project.Tracks[ti]
	dup := t.Clips[ci].Clone()
	dup.Start = t.Clips[ci].End()
	t.Clips = append(t.Clips, dup)
	return dup.ID, true
}

// Copy puts a copy of the clip on the clipboard. The clipboard holds one
// clip.
func (m *Clips) Copy(clipID string) bool {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil {
		return false
	}
	c := clip.Copy()
	m.clipboard = &c
	return true
}

// Cut copies the clip to the clipboard and deletes it.
func (m *Clips) Cut(clipID string) bool {
	if !m.Copy(clipID) {
		return false
	}
	return m.Delete(clipID)
}

// Paste places the clipboard clip on a track at the given beat, snapped and
// clamped to >= 0. Every paste gets new ids, so the clipboard can be pasted
// many times. Returns the id of the pasted clip.
func (m *Clips) Paste(trackID string, at float64) (string, bool) {
	if m.clipboard == nil || m.d.Project.Track(trackID) < 0 {
		return "", false
	}
	c := m.clipboard.Clone()
	c.Start = at
	return m.Add(trackID, c)
}

// Clipboard returns a copy of the clipboard clip.
func (m *Clips) Clipboard() (daw.Clip, bool) {
	if m.clipboard == nil {
		return daw.Clip{}, false
	}
	return m.clipboard.Copy(), true
}

// Delete removes a clip and its notes.
func (m *Clips) Delete(clipID string) bool {
	ti, ci := m.d.Project.FindClip(clipID)
	if ti < 0 {
		return false
	}
	defer (*Model)(m).change("DeleteClip", ProjectChange|SelectionChange, MajorChange)()
	t := &m.d.Project.Tracks[ti]
	t.Clips = append(t.Clips[:ci], t.Clips[ci+1:]...)
	(*Model)(m).pruneSelections()
	return true
}

func (m *Clips) Rename(clipID, name string) bool {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil || clip.Name == name {
		return false
	}
	defer (*Model)(m).change("RenameClip", ProjectChange, MajorChange)()
	m.d.Project.ClipByID(clipID).Name = name
	return true
}

func (m *Clips) SetColor(clipID, color string) bool {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil || clip.Color == color {
		return false
	}
	defer (*Model)(m).change("ClipColor", ProjectChange, MajorChange)()
	m.d.Project.ClipByID(clipID).Color = color
	return true
}

// FitToNotes grows a MIDI clip so that it covers all of its notes.
func (m *Clips) FitToNotes(clipID string) bool {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil || !clip.IsMIDI() || clip.NotesEnd() <= clip.Duration {
		return false
	}
	defer (*Model)(m).change("FitClip", ProjectChange, MajorChange)()
	return fitToNotes(m.d.Project.ClipByID(clipID))
}

// Clip returns a copy of a clip.
func (m *Clips) Clip(clipID string) (daw.Clip, bool) {
	clip := m.d.Project.ClipByID(clipID)
	if clip == nil {
		return daw.Clip{}, false
	}
	return clip.Copy(), true
}

func (m *Clips) snapStart(start float64) float64 {
	return max(0, (*Model)(m).View().Grid().Snap(start))
}
