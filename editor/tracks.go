package editor

import (
	"math"

	"github.com/soliddaw/daw"
)

type Tracks Model

func (m *Model) Tracks() *Tracks { return (*Tracks)(m) }

// Add appends a track. Instrument tracks get the default synth. Returns the
// track id.
func (m *Tracks) Add(name string, typ daw.TrackType) (string, bool) {
	if typ != daw.TrackAudio && typ != daw.TrackInstrument {
		return "", false
	}
	defer (*Model)(m).change("AddTrack", ProjectChange, MajorChange)()
	t := daw.NewTrack(name)
	if typ == daw.TrackAudio {
		t.Type, t.Instrument = daw.TrackAudio, nil
	}
	m.d.Project.Tracks = append(m.d.Project.Tracks, t)
	return t.ID, true
}

// Delete removes a track with all its clips.
func (m *Tracks) Delete(trackID string) bool {
	i := m.d.Project.Track(trackID)
	if i < 0 {
		return false
	}
	defer (*Model)(m).change("DeleteTrack", ProjectChange|SelectionChange, MajorChange)()
	if inst := m.d.Project.Tracks[i].Instrument; inst != nil {
		m.sched.forget(inst.ID)
	}
	m.d.Project.Tracks = append(m.d.Project.Tracks[:i], m.d.Project.Tracks[i+1:]...)
	(*Model)(m).pruneSelections()
	return true
}

func (m *Tracks) Rename(trackID, name string) bool {
	return m.update(trackID, "RenameTrack", MajorChange, func(t *daw.Track) bool {
		if t.Name == name {
			return false
		}
		t.Name = name
		return true
	})
}

// SetInstrument replaces the instrument of a track with a new one of the
// given kind, with default parameters.
func (m *Tracks) SetInstrument(trackID string, kind daw.InstrumentKind) bool {
	if !kind.Valid() {
		return false
	}
	return m.update(trackID, "Instrument", MajorChange, func(t *daw.Track) bool {
		if t.Instrument != nil && t.Instrument.Kind == kind {
			return false
		}
		id := t.ID + "-synth"
		if t.Instrument != nil {
			id = t.Instrument.ID
		}
		m.sched.forget(id)
		inst := daw.NewInstrument(id, kind)
		t.Instrument = &inst
		t.Type = daw.TrackInstrument
		return true
	})
}

func (m *Tracks) SetMuted(trackID string, muted bool) bool {
	return m.update(trackID, "Mute", MajorChange, func(t *daw.Track) bool {
		if t.Muted == muted {
			return false
		}
		t.Muted = muted
		return true
	})
}

func (m *Tracks) SetSolo(trackID string, solo bool) bool {
	return m.update(trackID, "Solo", MajorChange, func(t *daw.Track) bool {
		if t.Solo == solo {
			return false
		}
		t.Solo = solo
		return true
	})
}

// SetVolume sets the volume of a track, clamped to [0, 1].
func (m *Tracks) SetVolume(trackID string, v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	v = max(0, min(1, v))
	return m.update(trackID, "Volume", MinorChange, func(t *daw.Track) bool {
		if t.Volume == v {
			return false
		}
		t.Volume = v
		return true
	})
}

// SetPan sets the pan of a track, clamped to [-1, 1].
func (m *Tracks) SetPan(trackID string, pan float64) bool {
	if math.IsNaN(pan) {
		return false
	}
	pan = max(-1, min(1, pan))
	return m.update(trackID, "Pan", MinorChange, func(t *daw.Track) bool {
		if t.Pan == pan {
			return false
		}
		t.Pan = pan
		return true
	})
}

// update runs f on the track as one change; the change is dropped if f
// reports that nothing changed.
func (m *Tracks) update(trackID, kind string, severity ChangeSeverity, f func(t *daw.Track) bool) bool {
	i := m.d.Project.Track(trackID)
	if i < 0 {
		return false
	}
	defer (*Model)(m).change(kind, ProjectChange, severity)()
	if !f(&m.d.Project.Tracks[i]) {
		m.changeCancel = true
		return false
	}
	return true
}
