package editor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
)

func clipModel(t *testing.T) (*editor.Model, daw.Project) {
	m, _ := newModel(nil)
	p := songProject()
	m.SetProject(p)
	return m, m.Project()
}

func TestDuplicateClip(t *testing.T) {
	assert := assert.New(t)
	m, p := clipModel(t)
	orig := p.Tracks[0].Clips[0]
	id, ok := m.Clips().Duplicate(orig.ID)
	if !assert.True(ok) {
		return
	}
	dup, _ := m.Clips().Clip(id)
	assert.Equal(4.0, dup.Start)
	assert.Equal(4.0, dup.Duration)
	assert.Equal(8.0, dup.End())
	assert.Equal(orig.TrackID, dup.TrackID)
	if assert.Len(dup.Content.Notes, 2) {
		assert.NotEqual(orig.Content.Notes[0].ID, dup.Content.Notes[0].ID)
		assert.Equal(orig.Content.Notes[0].Note, dup.Content.Notes[0].Note)
	}
	m.History().Undo().Do()
	_, ok = m.Clips().Clip(id)
	assert.False(ok)
	m.History().Redo().Do()
	_, ok = m.Clips().Clip(id)
	assert.True(ok)
}

func TestCopyPasteClip(t *testing.T) {
	assert := assert.New(t)
	m, p := clipModel(t)
	bass := p.Tracks[1].ID
	_, ok := m.Clips().Paste(bass, 0)
	assert.False(ok)
	src := p.Tracks[0].Clips[1]
	assert.True(m.Clips().Copy(src.ID))
	a, ok := m.Clips().Paste(bass, 16.3)
	assert.True(ok)
	b, _ := m.Clips().Paste(bass, -4)
	assert.NotEqual(a, b)
	ca, _ := m.Clips().Clip(a)
	cb, _ := m.Clips().Clip(b)
	assert.Equal(16.25, ca.Start)
	assert.Equal(0.0, cb.Start)
	assert.Equal(bass, ca.TrackID)
	assert.NotEqual(ca.Content.Notes[0].ID, cb.Content.Notes[0].ID)
	assert.Len(m.Project().Tracks[1].Clips, 2)
}

func TestCutAndDeleteClip(t *testing.T) {
	assert := assert.New(t)
	m, p := clipModel(t)
	first, second := p.Tracks[0].Clips[0], p.Tracks[0].Clips[1]
	m.View().SelectClip(first.ID, false)
	m.Notes().SelectNote(first.Content.Notes[0].ID, false)
	assert.True(m.Clips().Cut(first.ID))
	assert.Empty(m.View().SelectedClips())
	assert.Empty(m.Notes().SelectedNotes())
	clip, ok := m.Clips().Clipboard()
	if assert.True(ok) {
		assert.Equal(first.ID, clip.ID)
	}
	assert.True(m.Clips().Delete(second.ID))
	assert.Empty(m.Project().Tracks[0].Clips)
	assert.False(m.Clips().Delete(second.ID))
}

func TestMoveClip(t *testing.T) {
	assert := assert.New(t)
	m, p := clipModel(t)
	id := p.Tracks[0].Clips[1].ID
	assert.True(m.Clips().Move(id, 2.1))
	c, _ := m.Clips().Clip(id)
	assert.Equal(2.0, c.Start)
	assert.False(m.Clips().Move(id, 2.05))
	assert.True(m.Clips().Move(id, -3))
	c, _ = m.Clips().Clip(id)
	assert.Equal(0.0, c.Start)
}

func TestClipAttributes(t *testing.T) {
	assert := assert.New(t)
	m, p := clipModel(t)
	c := p.Tracks[0].Clips[0]
	assert.True(m.Clips().Rename(c.ID, "Verse"))
	assert.False(m.Clips().Rename(c.ID, "Verse"))
	assert.True(m.Clips().SetColor(c.ID, "#ff0000"))
	assert.False(m.Clips().FitToNotes(c.ID))
	got, _ := m.Clips().Clip(c.ID)
	assert.Equal("Verse", got.Name)
	assert.Equal("#ff0000", got.Color)
}

func TestAddClip(t *testing.T) {
	assert := assert.New(t)
	m, p := clipModel(t)
	lead := p.Tracks[0]
	_, ok := m.Clips().Add(lead.ID, daw.NewMidiClip("", 1, 0))
	assert.False(ok)
	_, ok = m.Clips().Add("missing", daw.NewMidiClip("", 1, 4))
	assert.False(ok)
	// a clip with an id already in use gets a new one
	id, ok := m.Clips().Add(lead.ID, lead.Clips[0])
	assert.True(ok)
	assert.NotEqual(lead.Clips[0].ID, id)
	c, _ := m.Clips().Clip(id)
	assert.Equal(lead.ID, c.TrackID)
}

func TestClipKeyShortcuts(t *testing.T) {
	assert := assert.New(t)
	m, p := clipModel(t)
	assert.False(m.KeyEvent(editor.KeyEvent{Name: "d", Shortcut: true}))
	m.View().SelectClip(p.Tracks[0].Clips[0].ID, false)
	assert.True(m.KeyEvent(editor.KeyEvent{Name: "d", Shortcut: true}))
	assert.Len(m.Project().Tracks[0].Clips, 3)
	assert.True(m.KeyEvent(editor.KeyEvent{Name: "c", Shortcut: true}))
	m.View().SelectTrack(p.Tracks[1].ID, false)
	m.Transport().SetBeats(2)
	assert.True(m.KeyEvent(editor.KeyEvent{Name: "v", Shortcut: true}))
	bass := m.Project().Tracks[1]
	if assert.Len(bass.Clips, 1) {
		assert.Equal(2.0, bass.Clips[0].Start)
	}
	assert.True(m.KeyEvent(editor.KeyEvent{Name: "z", Shortcut: true}))
	assert.Empty(m.Project().Tracks[1].Clips)
	assert.True(m.KeyEvent(editor.KeyEvent{Name: "Z", Shortcut: true, Shift: true}))
	assert.Len(m.Project().Tracks[1].Clips, 1)
}

func TestTracks(t *testing.T) {
	assert := assert.New(t)
	m, _ := newModel(nil)
	id, ok := m.Tracks().Add("Drums", daw.TrackInstrument)
	assert.True(ok)
	assert.True(m.Tracks().SetInstrument(id, daw.MembraneSynth))
	assert.False(m.Tracks().SetInstrument(id, daw.MembraneSynth))
	assert.True(m.Tracks().SetVolume(id, 3))
	assert.True(m.Tracks().SetPan(id, -0.5))
	assert.False(m.Tracks().SetPan(id, -0.5))
	tr := m.Project().Tracks[1]
	assert.Equal(daw.MembraneSynth, tr.Instrument.Kind)
	assert.Equal(1.0, tr.Volume)
	assert.Equal(-0.5, tr.Pan)
	audio, _ := m.Tracks().Add("Vox", daw.TrackAudio)
	assert.Nil(m.Project().Tracks[2].Instrument)
	assert.True(m.Tracks().Rename(audio, "Vocals"))
	m.View().SelectTrack(audio, false)
	assert.True(m.Tracks().Delete(audio))
	assert.Empty(m.View().SelectedTracks())
	assert.Len(m.Project().Tracks, 2)
}
