package daw

import (
	"fmt"
	"math"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
)

type (
	// Project is the document being edited: tempo, meter and the tracks. The
	// project owns its tracks, tracks own their clips and clips own their
	// notes; nothing else holds references into it.
	Project struct {
		ID            string        `json:"id" yaml:"id"`
		Name          string        `json:"name" yaml:"name"`
		Tempo         float64       `json:"tempo" yaml:"tempo"`
		TimeSignature TimeSignature `json:"timeSignature" yaml:"timeSignature,flow"`
		Tracks        []Track       `json:"tracks" yaml:"tracks"`
		MasterVolume  float64       `json:"masterVolume" yaml:"masterVolume"`
		MasterPan     float64       `json:"masterPan" yaml:"masterPan"`
		MasterEffects []Effect      `json:"masterEffects,omitempty" yaml:"masterEffects,omitempty"`
	}

	TimeSignature struct {
		Numerator   int `json:"numerator" yaml:"numerator"`
		Denominator int `json:"denominator" yaml:"denominator"`
	}

	TrackType string

	// Track is a lane of clips. Clips of a track may overlap.
	Track struct {
		ID         string      `json:"id" yaml:"id"`
		Name       string      `json:"name" yaml:"name"`
		Type       TrackType   `json:"type" yaml:"type"`
		Volume     float64     `json:"volume" yaml:"volume"`
		Pan        float64     `json:"pan" yaml:"pan"`
		Muted      bool        `json:"muted,omitempty" yaml:"muted,omitempty"`
		Solo       bool        `json:"solo,omitempty" yaml:"solo,omitempty"`
		Armed      bool        `json:"armed,omitempty" yaml:"armed,omitempty"`
		Color      string      `json:"color,omitempty" yaml:"color,omitempty"`
		Instrument *Instrument `json:"instrument,omitempty" yaml:"instrument,omitempty"`
		Effects    []Effect    `json:"effects,omitempty" yaml:"effects,omitempty"`
		Clips      []Clip      `json:"clips" yaml:"clips"`
	}

	// Clip is a region placed on a track, in beats. The end of the clip is
	// always computed from Start and Duration.
	Clip struct {
		ID       string      `json:"id" yaml:"id"`
		TrackID  string      `json:"trackId" yaml:"trackId"`
		Name     string      `json:"name" yaml:"name"`
		Start    float64     `json:"start" yaml:"start"`
		Duration float64     `json:"duration" yaml:"duration"`
		Color    string      `json:"color,omitempty" yaml:"color,omitempty"`
		Content  ClipContent `json:"content" yaml:"content"`
	}

	ContentKind string

	// ClipContent holds either MIDI notes or audio, depending on Kind.
	ClipContent struct {
		Kind  ContentKind   `json:"kind" yaml:"kind"`
		Notes []MidiNote    `json:"notes,omitempty" yaml:"notes,omitempty"`
		Audio *AudioContent `json:"audio,omitempty" yaml:"audio,omitempty"`
	}

	// AudioContent references an audio file. Buffer is the decoded audio
	// and is never persisted.
	AudioContent struct {
		URL      string      `json:"url" yaml:"url"`
		Buffer   AudioBuffer `json:"-" yaml:"-"`
		Waveform []float32   `json:"waveform,omitempty" yaml:"waveform,omitempty,flow"`
	}

	// MidiNote is a note in a MIDI clip. Time is relative to the clip start.
	MidiNote struct {
		ID       string    `json:"id" yaml:"id"`
		Note     NoteValue `json:"note" yaml:"note"`
		Time     float64   `json:"time" yaml:"time"`
		Duration float64   `json:"duration" yaml:"duration"`
		Velocity float64   `json:"velocity" yaml:"velocity"`
	}
)

const (
	TrackAudio      TrackType = "audio"
	TrackInstrument TrackType = "instrument"

	ContentMIDI  ContentKind = "midi"
	ContentAudio ContentKind = "audio"
)

const (
	DefaultTempo    = 120
	DefaultVolume   = 0.8
	DefaultVelocity = 0.8
)

// NewID returns a fresh unique id for projects, tracks, clips and notes.
func NewID() string {
	return uuid.NewString()
}

// NewProject returns an empty project at 120 BPM in 4/4.
func NewProject(name string) Project {
	return Project{
		ID:            NewID(),
		Name:          name,
		Tempo:         DefaultTempo,
		TimeSignature: TimeSignature{4, 4},
		MasterVolume:  DefaultVolume,
	}
}

// NewTrack returns an instrument track with the default synth.
func NewTrack(name string) Track {
	id := NewID()
	inst := DefaultInstrument(id)
	return Track{ID: id, Name: name, Type: TrackInstrument, Volume: DefaultVolume, Instrument: &inst}
}

// NewMidiClip returns a MIDI clip; the notes get ids when they have none.
func NewMidiClip(trackID string, start, duration float64, notes ...MidiNote) Clip {
	c := Clip{ID: NewID(), TrackID: trackID, Start: start, Duration: duration, Content: ClipContent{Kind: ContentMIDI, Notes: notes}}
	c.EnsureNoteIDs()
	return c
}

// NewNote returns a note with a fresh id.
func NewNote(pitch Pitch, time, duration, velocity float64) MidiNote {
	return MidiNote{ID: NewID(), Note: NamedNote(pitch), Time: time, Duration: duration, Velocity: velocity}
}

func (ts TimeSignature) BeatsPerBar() int {
	if ts.Numerator <= 0 {
		return DefaultBeatsPerBar
	}
	return ts.Numerator
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Numerator, ts.Denominator)
}

// End returns Start + Duration.
func (c *Clip) End() float64 {
	return c.Start + c.Duration
}

// IsMIDI reports whether the clip holds notes.
func (c *Clip) IsMIDI() bool {
	return c.Content.Kind == ContentMIDI
}

// EnsureNoteIDs gives an id to every note that has none.
func (c *Clip) EnsureNoteIDs() {
	for i := range c.Content.Notes {
		if c.Content.Notes[i].ID == "" {
			c.Content.Notes[i].ID = NewID()
		}
	}
}

// Note returns a pointer to the note with the given id, or nil.
func (c *Clip) Note(id string) *MidiNote {
	for i := range c.Content.Notes {
		if c.Content.Notes[i].ID == id {
			return &c.Content.Notes[i]
		}
	}
	return nil
}

// NoteIndex returns the current index of the note, or -1.
func (c *Clip) NoteIndex(id string) int {
	for i := range c.Content.Notes {
		if c.Content.Notes[i].ID == id {
			return i
		}
	}
	return -1
}

// NotesEnd returns the end of the last note, relative to the clip start.
func (c *Clip) NotesEnd() float64 {
	end := 0.0
	for _, n := range c.Content.Notes {
		end = max(end, n.Time+n.Duration)
	}
	return end
}

// Copy makes a deep copy of the clip. The audio buffer is shared, as it is
// never modified.
func (c *Clip) Copy() Clip {
	ret := *c
	if c.Content.Notes != nil {
		ret.Content.Notes = make([]MidiNote, len(c.Content.Notes))
		copy(ret.Content.Notes, c.Content.Notes)
	}
	if c.Content.Audio != nil {
		a := *c.Content.Audio
		a.Waveform = append([]float32(nil), a.Waveform...)
		ret.Content.Audio = &a
	}
	return ret
}

// Clone is like Copy, but gives the clip and its notes new ids.
func (c *Clip) Clone() Clip {
	ret := c.Copy()
	ret.ID = NewID()
	for i := range ret.Content.Notes {
		ret.Content.Notes[i].ID = NewID()
	}
	return ret
}

func (t *Track) Copy() Track {
	ret := *t
	if t.Instrument != nil {
		inst := t.Instrument.Copy()
		ret.Instrument = &inst
	}
	ret.Effects = copyEffects(t.Effects)
	ret.Clips = make([]Clip, len(t.Clips))
	for i := range t.Clips {
		ret.Clips[i] = t.Clips[i].Copy()
	}
	return ret
}

// Clip returns the index of the clip with the given id, or -1.
func (t *Track) Clip(id string) int {
	for i := range t.Clips {
		if t.Clips[i].ID == id {
			return i
		}
	}
	return -1
}

// Copy makes a deep copy of the project.
func (p *Project) Copy() Project {
	ret := *p
	ret.Tracks = make([]Track, len(p.Tracks))
	for i := range p.Tracks {
		ret.Tracks[i] = p.Tracks[i].Copy()
	}
	ret.MasterEffects = copyEffects(p.MasterEffects)
	return ret
}

func copyEffects(effects []Effect) []Effect {
	if effects == nil {
		return nil
	}
	ret := make([]Effect, len(effects))
	for i := range effects {
		ret[i] = effects[i].Copy()
	}
	return ret
}

// Track returns the index of the track with the given id, or -1.
func (p *Project) Track(id string) int {
	for i := range p.Tracks {
		if p.Tracks[i].ID == id {
			return i
		}
	}
	return -1
}

// FindClip returns the track and clip indices of the clip, or -1, -1.
func (p *Project) FindClip(clipID string) (track, clip int) {
	for i := range p.Tracks {
		if j := p.Tracks[i].Clip(clipID); j >= 0 {
			return i, j
		}
	}
	return -1, -1
}

// ClipByID returns a pointer to the clip, or nil.
func (p *Project) ClipByID(clipID string) *Clip {
	t, c := p.FindClip(clipID)
	if t < 0 {
		return nil
	}
	return &p.Tracks[t].Clips[c]
}

// ContentEnd returns the largest clip end over all tracks, and false if the
// project has no clips.
func (p *Project) ContentEnd() (float64, bool) {
	end, found := 0.0, false
	for _, t := range p.Tracks {
		for i := range t.Clips {
			end = max(end, t.Clips[i].End())
			found = true
		}
	}
	return end, found
}

// Normalize repairs what loading can leave inconsistent: missing ids, clip
// back-references and the default meter.
func (p *Project) Normalize() {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.TimeSignature.Numerator == 0 && p.TimeSignature.Denominator == 0 {
		p.TimeSignature = TimeSignature{4, 4}
	}
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.ID == "" {
			t.ID = NewID()
		}
		if t.Type == "" {
			t.Type = TrackInstrument
		}
		for j := range t.Clips {
			c := &t.Clips[j]
			if c.ID == "" {
				c.ID = NewID()
			}
			c.TrackID = t.ID
			c.EnsureNoteIDs()
		}
	}
}

// Validate checks the invariants of the project.
func (p *Project) Validate() error {
	if p.Tempo <= 0 || math.IsNaN(p.Tempo) || math.IsInf(p.Tempo, 0) {
		return invalid(fmt.Sprintf("tempo %v should be > 0", p.Tempo))
	}
	if p.TimeSignature.Numerator <= 0 || p.TimeSignature.Denominator <= 0 {
		return invalid(fmt.Sprintf("invalid time signature %v", p.TimeSignature))
	}
	for _, t := range p.Tracks {
		if t.Type != TrackAudio && t.Type != TrackInstrument {
			return invalid(fmt.Sprintf("track %q has unknown type %q", t.Name, t.Type))
		}
		for _, c := range t.Clips {
			if c.Start < 0 {
				return invalid(fmt.Sprintf("clip %q starts before 0", c.Name))
			}
			if c.Duration <= 0 {
				return invalid(fmt.Sprintf("clip %q has non-positive duration", c.Name))
			}
			for _, n := range c.Content.Notes {
				if n.Time < 0 || n.Duration <= 0 {
					return invalid(fmt.Sprintf("clip %q has a note with invalid timing", c.Name))
				}
				if n.Velocity < 0 || n.Velocity > 1 {
					return invalid(fmt.Sprintf("clip %q has a note with velocity %v outside 0..1", c.Name, n.Velocity))
				}
			}
		}
	}
	return nil
}

func invalid(msg string) error {
	return fault.New(msg, ftag.With(MalformedImport), fmsg.WithDesc(msg, "The project is invalid: "+msg))
}
