// Package jmon converts projects to and from JMON, the JSON interchange
// format of the browser UI. A JMON track lists its notes either flattened,
// with times absolute within the track, or grouped into clips with times
// relative to the clip. Exported documents carry both the flattened notes and
// the clip windows, so that clips survive a round trip.
package jmon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gopkg.in/yaml.v3"

	"github.com/soliddaw/daw"
)

type (
	Document struct {
		Format        string   `json:"format,omitempty" yaml:"format,omitempty"`
		Version       string   `json:"version,omitempty" yaml:"version,omitempty"`
		ID            string   `json:"id,omitempty" yaml:"id,omitempty"`
		Name          string   `json:"name" yaml:"name"`
		Tempo         *float64 `json:"tempo,omitempty" yaml:"tempo,omitempty"`
		BPM           *float64 `json:"bpm,omitempty" yaml:"bpm,omitempty"`
		TimeSignature []int    `json:"timeSignature,omitempty" yaml:"timeSignature,omitempty,flow"`
		MasterVolume  *float64 `json:"masterVolume,omitempty" yaml:"masterVolume,omitempty"`
		Tracks        []Track  `json:"tracks,omitempty" yaml:"tracks,omitempty"`
		// Sequences is an older name of Tracks.
		Sequences []Track `json:"sequences,omitempty" yaml:"sequences,omitempty"`
		// Notes makes a single track document.
		Notes []Note `json:"notes,omitempty" yaml:"notes,omitempty"`
	}

	Track struct {
		Name             string         `json:"name" yaml:"name"`
		Instrument       string         `json:"instrument,omitempty" yaml:"instrument,omitempty"`
		InstrumentParams map[string]any `json:"instrumentParams,omitempty" yaml:"instrumentParams,omitempty"`
		Volume           *float64       `json:"volume,omitempty" yaml:"volume,omitempty"`
		Pan              float64        `json:"pan,omitempty" yaml:"pan,omitempty"`
		Muted            bool           `json:"muted,omitempty" yaml:"muted,omitempty"`
		Solo             bool           `json:"solo,omitempty" yaml:"solo,omitempty"`
		Color            string         `json:"color,omitempty" yaml:"color,omitempty"`
		Notes            []Note         `json:"notes,omitempty" yaml:"notes,omitempty"`
		Clips            []Clip         `json:"clips,omitempty" yaml:"clips,omitempty"`
	}

	// Clip is a clip window. When it has notes, their times are relative to
	// Start.
	Clip struct {
		ID       string `json:"id,omitempty" yaml:"id,omitempty"`
		Name     string `json:"name,omitempty" yaml:"name,omitempty"`
		Start    Beats  `json:"start" yaml:"start"`
		Duration Beats  `json:"duration" yaml:"duration"`
		Color    string `json:"color,omitempty" yaml:"color,omitempty"`
		Notes    []Note `json:"notes,omitempty" yaml:"notes,omitempty"`
	}

	Note struct {
		Note     daw.NoteValue `json:"note" yaml:"note"`
		Time     Beats         `json:"time" yaml:"time"`
		Duration Beats         `json:"duration" yaml:"duration"`
		Velocity *float64      `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	}
)

const (
	FormatName       = "jmon"
	FormatVersion    = "1.0"
	defaultVelocity  = 1.0
	defaultTrackName = "Track %d"
)

// Unmarshal parses a JSON or YAML document.
func Unmarshal(data []byte) (Document, error) {
	var doc Document
	trimmed := bytes.TrimSpace(data)
	var err error
	if len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &doc)
	} else {
		err = yaml.Unmarshal(trimmed, &doc)
	}
	if err != nil {
		desc := daw.UserMessage(err)
		if desc == "" {
			desc = "The file is not a valid JMON document"
		}
		return Document{}, fault.Wrap(err, ftag.With(daw.MalformedImport), fmsg.WithDesc("could not parse JMON", desc))
	}
	return doc, nil
}

// Read parses and imports a document.
func Read(r io.Reader) (daw.Project, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return daw.Project{}, fault.Wrap(err, fmsg.With("reading JMON"))
	}
	doc, err := Unmarshal(b)
	if err != nil {
		return daw.Project{}, err
	}
	return Import(doc)
}

// Write exports the project as indented JSON.
func Write(w io.Writer, p daw.Project) error {
	b, err := json.MarshalIndent(Export(p), "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("marshaling JMON"))
	}
	_, err = w.Write(b)
	return err
}

// Export converts a project to a document. Notes of the MIDI clips are
// flattened into the track with absolute times, and the clips are listed
// as windows without notes. When flattened notes would be imported into
// another clip than their own, as with overlapping clips, the track keeps
// its notes grouped in the clips instead. Audio clips are not part of JMON.
func Export(p daw.Project) Document {
	tempo, vol := p.Tempo, p.MasterVolume
	doc := Document{
		Format:        FormatName,
		Version:       FormatVersion,
		ID:            p.ID,
		Name:          p.Name,
		Tempo:         &tempo,
		TimeSignature: []int{p.TimeSignature.Numerator, p.TimeSignature.Denominator},
		MasterVolume:  &vol,
	}
	for _, t := range p.Tracks {
		volume := t.Volume
		jt := Track{
			Name:   t.Name,
			Volume: &volume,
			Pan:    t.Pan,
			Muted:  t.Muted,
			Solo:   t.Solo,
			Color:  t.Color,
		}
		if t.Instrument != nil {
			jt.Instrument = t.Instrument.Name
			if jt.Instrument == "" {
				jt.Instrument = t.Instrument.Kind.String()
			}
			jt.InstrumentParams = t.Instrument.Copy().Parameters
		}
		grouped := !flattenable(t.Clips)
		for _, c := range t.Clips {
			if !c.IsMIDI() {
				continue
			}
			jc := Clip{ID: c.ID, Name: c.Name, Start: Beats(c.Start), Duration: Beats(c.Duration), Color: c.Color}
			for _, n := range c.Content.Notes {
				vel := n.Velocity
				if grouped {
					jc.Notes = append(jc.Notes, Note{Note: n.Note, Time: Beats(n.Time), Duration: Beats(n.Duration), Velocity: &vel})
					continue
				}
				jt.Notes = append(jt.Notes, Note{Note: n.Note, Time: Beats(c.Start + n.Time), Duration: Beats(n.Duration), Velocity: &vel})
			}
			jt.Clips = append(jt.Clips, jc)
		}
		slices.SortStableFunc(jt.Notes, func(a, b Note) int {
			switch {
			case a.Time < b.Time:
				return -1
			case a.Time > b.Time:
				return 1
			}
			return 0
		})
		doc.Tracks = append(doc.Tracks, jt)
	}
	return doc
}

// Import converts a document to a project. The whole document is validated
// first; any problem rejects the import with an error tagged
// daw.MalformedImport. Unknown instruments are not an error: the name is kept
// and the track plays with a synth.
func Import(doc Document) (daw.Project, error) {
	if err := Validate(doc); err != nil {
		return daw.Project{}, err
	}
	p := daw.NewProject(doc.Name)
	if doc.ID != "" {
		p.ID = doc.ID
	}
	if p.Name == "" {
		p.Name = "JMON Project"
	}
	if t := doc.tempo(); t != nil {
		p.Tempo = *t
	}
	if len(doc.TimeSignature) == 2 {
		p.TimeSignature = daw.TimeSignature{Numerator: doc.TimeSignature[0], Denominator: doc.TimeSignature[1]}
	}
	if doc.MasterVolume != nil {
		p.MasterVolume = *doc.MasterVolume
	}
	for i, jt := range doc.tracks() {
		p.Tracks = append(p.Tracks, importTrack(jt, i, p.TimeSignature.BeatsPerBar()))
	}
	p.Normalize()
	return p, nil
}

// flattenable reports whether Import puts every flattened note back into the
// clip it came from: the first MIDI window containing the note start.
func flattenable(clips []daw.Clip) bool {
	for i, c := range clips {
		if !c.IsMIDI() {
			continue
		}
		for _, n := range c.Content.Notes {
			at := c.Start + n.Time
			first := slices.IndexFunc(clips, func(w daw.Clip) bool {
				return w.IsMIDI() && w.Start <= at && at < w.End()
			})
			if first != i {
				return false
			}
		}
	}
	return true
}

func (doc *Document) tempo() *float64 {
	if doc.Tempo != nil {
		return doc.Tempo
	}
	return doc.BPM
}

func (doc *Document) tracks() []Track {
	switch {
	case len(doc.Tracks) > 0:
		return doc.Tracks
	case len(doc.Sequences) > 0:
		return doc.Sequences
	case len(doc.Notes) > 0:
		return []Track{{Name: doc.Name, Notes: doc.Notes}}
	}
	return nil
}

func importTrack(jt Track, index, beatsPerBar int) daw.Track {
	name := jt.Name
	if name == "" {
		name = fmt.Sprintf(defaultTrackName, index+1)
	}
	t := daw.NewTrack(name)
	t.Pan, t.Muted, t.Solo, t.Color = jt.Pan, jt.Muted, jt.Solo, jt.Color
	if jt.Volume != nil {
		t.Volume = *jt.Volume
	}
	if jt.Instrument != "" {
		inst := importInstrument(t.ID, jt.Instrument, jt.InstrumentParams)
		t.Instrument = &inst
	}
	for _, jc := range jt.Clips {
		c := daw.NewMidiClip(t.ID, float64(jc.Start), float64(jc.Duration))
		if jc.ID != "" {
			c.ID = jc.ID
		}
		c.Name, c.Color = jc.Name, jc.Color
		for _, n := range jc.Notes {
			c.Content.Notes = append(c.Content.Notes, importNote(n, float64(n.Time)))
		}
		t.Clips = append(t.Clips, c)
	}
	var leftovers []Note
notes:
	for _, n := range jt.Notes {
		at := float64(n.Time)
		for i := range t.Clips {
			c := &t.Clips[i]
			if c.Start <= at && at < c.End() {
				c.Content.Notes = append(c.Content.Notes, importNote(n, at-c.Start))
				continue notes
			}
		}
		leftovers = append(leftovers, n)
	}
	if len(leftovers) > 0 {
		t.Clips = append(t.Clips, enclosingClip(t.ID, leftovers, beatsPerBar, len(jt.Clips) == 0))
	}
	return t
}

// enclosingClip makes a clip of whole bars containing the notes. Without
// other clips on the track it starts at 0, otherwise at the bar of the
// first note.
func enclosingClip(trackID string, notes []Note, beatsPerBar int, fromZero bool) daw.Clip {
	bar := float64(beatsPerBar)
	first, end := math.Inf(1), 0.0
	for _, n := range notes {
		first = min(first, float64(n.Time))
		end = max(end, float64(n.Time+n.Duration))
	}
	start := 0.0
	if !fromZero {
		start = math.Floor(first/bar) * bar
	}
	duration := max(bar, math.Ceil((end-start)/bar)*bar)
	c := daw.NewMidiClip(trackID, start, duration)
	for _, n := range notes {
		c.Content.Notes = append(c.Content.Notes, importNote(n, float64(n.Time)-start))
	}
	return c
}

func importNote(n Note, time float64) daw.MidiNote {
	vel := defaultVelocity
	if n.Velocity != nil {
		vel = *n.Velocity
	}
	return daw.MidiNote{ID: daw.NewID(), Note: n.Note, Time: time, Duration: float64(n.Duration), Velocity: vel}
}

// instrumentAliases maps words found in instrument names of other tools to
// instrument kinds.
var instrumentAliases = []struct {
	words []string
	kind  daw.InstrumentKind
}{
	{[]string{"drum", "membrane", "kick", "percussion"}, daw.MembraneSynth},
	{[]string{"pluck", "string", "guitar"}, daw.PluckSynth},
	{[]string{"fm"}, daw.FMSynth},
	{[]string{"am"}, daw.AMSynth},
}

func importInstrument(trackID, name string, params map[string]any) daw.Instrument {
	id := trackID + "-synth"
	kind, err := daw.ParseInstrumentKind(name)
	inst := daw.NewInstrument(id, kind)
	if err != nil {
		lower := strings.ToLower(name)
	aliases:
		for _, a := range instrumentAliases {
			for _, w := range a.words {
				if strings.Contains(lower, w) {
					inst = daw.NewInstrument(id, a.kind)
					break aliases
				}
			}
		}
		if inst.Kind == daw.Synth {
			inst.Name = name // unresolved; the engine falls back to a synth
		}
	}
	for k, v := range params {
		inst.Parameters[k] = v
	}
	return inst
}

// Validate checks the whole document and reports every problem in one error
// tagged daw.MalformedImport.
func Validate(doc Document) error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }
	if t := doc.tempo(); t != nil && !(*t > 0) {
		add("tempo %v should be > 0", *t)
	}
	if doc.TimeSignature != nil && (len(doc.TimeSignature) != 2 || doc.TimeSignature[0] <= 0 || doc.TimeSignature[1] <= 0) {
		add("time signature %v should be two positive numbers", doc.TimeSignature)
	}
	checkNotes := func(where string, notes []Note) {
		for i, n := range notes {
			if n.Time < 0 || math.IsNaN(float64(n.Time)) {
				add("%s note %d: negative time %v", where, i+1, float64(n.Time))
			}
			if !(n.Duration > 0) {
				add("%s note %d: duration %v should be > 0", where, i+1, float64(n.Duration))
			}
			if n.Velocity != nil && !(*n.Velocity >= 0 && *n.Velocity <= 1) {
				add("%s note %d: velocity %v outside 0..1", where, i+1, *n.Velocity)
			}
			if n.Note.Pitch > daw.MaxPitch {
				add("%s note %d: pitch %d outside 0..127", where, i+1, n.Note.MIDI())
			}
		}
	}
	for i, t := range doc.tracks() {
		where := fmt.Sprintf("track %d", i+1)
		if t.Volume != nil && !(*t.Volume >= 0) {
			add("%s: negative volume", where)
		}
		checkNotes(where, t.Notes)
		for j, c := range t.Clips {
			cw := fmt.Sprintf("%s clip %d", where, j+1)
			if c.Start < 0 || math.IsNaN(float64(c.Start)) {
				add("%s: negative start", cw)
			}
			if !(c.Duration > 0) {
				add("%s: duration should be > 0", cw)
			}
			checkNotes(cw, c.Notes)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	msg := strings.Join(problems, "; ")
	desc := problems[0]
	if len(problems) > 1 {
		desc = fmt.Sprintf("%s (and %d more problems)", problems[0], len(problems)-1)
	}
	return fault.New("malformed JMON: "+msg, ftag.With(daw.MalformedImport), fmsg.WithDesc("malformed JMON", "Import failed: "+desc))
}
