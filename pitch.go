package daw

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gopkg.in/yaml.v3"
)

type (
	// Pitch is a MIDI note number, 0..127. Middle C (C4) is 60.
	Pitch uint8

	// NoteValue is the pitch of a note as it appears in a file: either a
	// note name like "C#4" or a MIDI number. Named remembers which form was
	// read so that the value marshals back in the same form.
	NoteValue struct {
		Pitch Pitch
		Named bool
	}
)

const (
	MinPitch Pitch = 0
	MaxPitch Pitch = 127
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var semitones = map[string]int{"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11}

var pitchRegexp = regexp.MustCompile(`^([A-Ga-g])([#b]?)(-?\d+)$`)

// Name returns the note name with sharps, e.g. 61 is "C#4".
func (p Pitch) Name() string {
	return noteNames[p%12] + strconv.Itoa(int(p)/12-1)
}

func (p Pitch) String() string {
	return p.Name()
}

// ParsePitch parses a note name (C4, c#4, Db4, A-1) or a plain MIDI number.
func ParsePitch(s string) (Pitch, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return PitchFromMIDI(n)
	}
	m := pitchRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0, fault.New(fmt.Sprintf("invalid note name %q", s), fmsg.WithDesc("invalid note", fmt.Sprintf("%q is not a note name", s)))
	}
	n := semitones[strings.ToUpper(m[1])]
	switch m[2] {
	case "#":
		n++
	case "b":
		n--
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, fault.Wrap(err, fmsg.With("invalid octave"))
	}
	return PitchFromMIDI((octave+1)*12 + n)
}

// PitchFromMIDI checks that n is a valid MIDI note number.
func PitchFromMIDI(n int) (Pitch, error) {
	if n < int(MinPitch) || n > int(MaxPitch) {
		return 0, fault.New(fmt.Sprintf("note %d out of range", n), fmsg.WithDesc("note out of range", fmt.Sprintf("note %d is outside 0..127", n)))
	}
	return Pitch(n), nil
}

// ClampPitch clamps n into [lo, hi].
func ClampPitch(n, lo, hi int) Pitch {
	return Pitch(max(lo, min(hi, n)))
}

// NamedNote returns a NoteValue that marshals as a note name.
func NamedNote(p Pitch) NoteValue { return NoteValue{Pitch: p, Named: true} }

// MIDINote returns a NoteValue that marshals as a number.
func MIDINote(p Pitch) NoteValue { return NoteValue{Pitch: p} }

// MIDI returns the note number.
func (n NoteValue) MIDI() int { return int(n.Pitch) }

// WithPitch returns a copy with the pitch replaced, keeping the form.
func (n NoteValue) WithPitch(p Pitch) NoteValue {
	n.Pitch = p
	return n
}

func (n NoteValue) String() string {
	if n.Named {
		return n.Pitch.Name()
	}
	return strconv.Itoa(int(n.Pitch))
}

func (n NoteValue) MarshalJSON() ([]byte, error) {
	if n.Named {
		return json.Marshal(n.Pitch.Name())
	}
	return json.Marshal(int(n.Pitch))
}

func (n *NoteValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p, err := ParsePitch(s)
		if err != nil {
			return err
		}
		*n = NamedNote(p)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fault.Wrap(err, fmsg.With("note must be a name or a number"))
	}
	if f != float64(int(f)) {
		return fault.New(fmt.Sprintf("note %v is not an integer", f))
	}
	p, err := PitchFromMIDI(int(f))
	if err != nil {
		return err
	}
	*n = MIDINote(p)
	return nil
}

func (n NoteValue) MarshalYAML() (any, error) {
	if n.Named {
		return n.Pitch.Name(), nil
	}
	return int(n.Pitch), nil
}

func (n *NoteValue) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fault.New("note must be a scalar")
	}
	if value.ShortTag() == "!!int" {
		i, err := strconv.Atoi(value.Value)
		if err != nil {
			return fault.Wrap(err, fmsg.With("invalid note number"))
		}
		p, err := PitchFromMIDI(i)
		if err != nil {
			return err
		}
		*n = MIDINote(p)
		return nil
	}
	p, err := ParsePitch(value.Value)
	if err != nil {
		return err
	}
	*n = NamedNote(p)
	return nil
}
