// Package midifile reads and writes projects as Standard MIDI Files.
package midifile

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/soliddaw/daw"
)

const drumChannel = 9

type noteEvent struct {
	tick     uint32
	off      bool
	channel  uint8
	key      uint8
	velocity uint8
}

// Export writes the project as an SMF format 1 file with daw.TicksPerBeat
// ticks per quarter note: a conductor track with tempo and meter, and one
// track per track of the project. Drum instruments play on channel 10.
func Export(p daw.Project, w io.Writer) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(daw.TicksPerBeat)
	var conductor smf.Track
	conductor.Add(0, smf.MetaTrackSequenceName(p.Name))
	conductor.Add(0, smf.MetaMeter(uint8(p.TimeSignature.Numerator), uint8(p.TimeSignature.Denominator)))
	conductor.Add(0, smf.MetaTempo(p.Tempo))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return fault.Wrap(err, fmsg.With("adding conductor track"))
	}
	for i, t := range p.Tracks {
		if t.Type == daw.TrackAudio {
			continue
		}
		channel := uint8(i % 16)
		if t.Instrument != nil && (t.Instrument.Kind == daw.MembraneSynth || t.Instrument.Kind == daw.Drum) {
			channel = drumChannel
		}
		var events []noteEvent
		for _, c := range t.Clips {
			if !c.IsMIDI() {
				continue
			}
			for _, n := range c.Content.Notes {
				on := daw.BeatsToTicks(c.Start + n.Time)
				off := daw.BeatsToTicks(c.Start + n.Time + n.Duration)
				key := uint8(n.Note.Pitch)
				events = append(events,
					noteEvent{tick: uint32(on), channel: channel, key: key, velocity: toMIDIVelocity(n.Velocity)},
					noteEvent{tick: uint32(off), off: true, channel: channel, key: key})
			}
		}
		sort.SliceStable(events, func(a, b int) bool {
			if events[a].tick != events[b].tick {
				return events[a].tick < events[b].tick
			}
			return events[a].off && !events[b].off
		})
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(t.Name))
		var last uint32
		for _, e := range events {
			if e.off {
				track.Add(e.tick-last, midi.NoteOff(e.channel, e.key))
			} else {
				track.Add(e.tick-last, midi.NoteOn(e.channel, e.key, e.velocity))
			}
			last = e.tick
		}
		track.Close(0)
		if err := s.Add(track); err != nil {
			return fault.Wrap(err, fmsg.With(fmt.Sprintf("adding track %q", t.Name)))
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return fault.Wrap(err, fmsg.With("writing MIDI file"))
	}
	return nil
}

// Import reads a Standard MIDI File into a new project called name. Every
// MIDI track with notes becomes a track with one clip starting at 0.
func Import(r io.Reader, name string) (p daw.Project, err error) {
	// smf can panic on malformed input
	defer func() {
		if rec := recover(); rec != nil {
			p, err = daw.Project{}, malformed(fmt.Errorf("%v", rec))
		}
	}()
	b, err := io.ReadAll(r)
	if err != nil {
		return daw.Project{}, fault.Wrap(err, fmsg.With("reading MIDI file"))
	}
	s, err := smf.ReadFrom(bytes.NewReader(b))
	if err != nil {
		return daw.Project{}, malformed(err)
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return daw.Project{}, malformed(fmt.Errorf("unsupported time format %v", s.TimeFormat))
	}
	resolution := float64(ticks)
	p = daw.NewProject(name)
	tempoSet, meterSet := false, false
	for i, events := range s.Tracks {
		trackName := ""
		type key struct{ channel, key uint8 }
		open := map[key][]daw.MidiNote{}
		var notes []daw.MidiNote
		drums := false
		var abs int64
		for _, ev := range events {
			abs += int64(ev.Delta)
			beats := float64(abs) / resolution
			var bpm float64
			var num, den uint8
			var text string
			var channel, k, velocity uint8
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				if !tempoSet && bpm > 0 {
					p.Tempo, tempoSet = math.Round(bpm*1000)/1000, true
				}
			case ev.Message.GetMetaMeter(&num, &den):
				if !meterSet && num > 0 && den > 0 {
					p.TimeSignature, meterSet = daw.TimeSignature{Numerator: int(num), Denominator: int(den)}, true
				}
			case ev.Message.GetMetaTrackName(&text):
				trackName = text
			case ev.Message.GetNoteOn(&channel, &k, &velocity) && velocity > 0:
				drums = drums || channel == drumChannel
				n := daw.MidiNote{ID: daw.NewID(), Note: daw.MIDINote(daw.Pitch(min(k, 127))), Time: beats, Velocity: float64(velocity) / 127}
				open[key{channel, k}] = append(open[key{channel, k}], n)
			case ev.Message.GetNoteOff(&channel, &k, &velocity), ev.Message.GetNoteOn(&channel, &k, &velocity):
				stack := open[key{channel, k}]
				if len(stack) == 0 {
					continue
				}
				n := stack[0]
				open[key{channel, k}] = stack[1:]
				n.Duration = beats - n.Time
				if n.Duration > 0 {
					notes = append(notes, n)
				}
			}
		}
		end := float64(abs) / resolution
		for _, stack := range open {
			for _, n := range stack {
				if n.Duration = end - n.Time; n.Duration > 0 {
					notes = append(notes, n)
				}
			}
		}
		if len(notes) == 0 {
			continue
		}
		sort.SliceStable(notes, func(a, b int) bool { return notes[a].Time < notes[b].Time })
		if trackName == "" {
			trackName = fmt.Sprintf("Track %d", i)
		}
		t := daw.NewTrack(trackName)
		if drums {
			inst := daw.NewInstrument(t.ID+"-synth", daw.MembraneSynth)
			t.Instrument = &inst
		}
		clip := daw.NewMidiClip(t.ID, 0, 0, notes...)
		clip.Name = trackName
		bar := float64(p.TimeSignature.BeatsPerBar())
		clip.Duration = max(bar, math.Ceil(clip.NotesEnd()/bar)*bar)
		t.Clips = []daw.Clip{clip}
		p.Tracks = append(p.Tracks, t)
	}
	p.Normalize()
	return p, nil
}

func toMIDIVelocity(v float64) uint8 {
	return uint8(max(1, min(127, math.Round(v*127))))
}

func malformed(err error) error {
	return fault.Wrap(err, ftag.With(daw.MalformedImport), fmsg.WithDesc("malformed MIDI file", "The file is not a valid MIDI file"))
}
