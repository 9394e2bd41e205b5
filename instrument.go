package daw

import (
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	// Instrument describes a synth for a track. The sound engine builds the
	// actual instrument from it; Name keeps the kind name as it was read, so
	// that unknown kinds survive a load/save round trip.
	Instrument struct {
		ID         string         `json:"id" yaml:"id"`
		Name       string         `json:"name" yaml:"name"`
		Kind       InstrumentKind `json:"kind" yaml:"kind"`
		Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	}

	// Effect is an insert effect on a track or on the master bus.
	Effect struct {
		ID         string         `json:"id" yaml:"id"`
		Kind       EffectKind     `json:"kind" yaml:"kind"`
		Enabled    bool           `json:"enabled" yaml:"enabled"`
		Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	}

	InstrumentKind int
	EffectKind     int

	// Waveform is the oscillator shape an engine uses for an instrument kind.
	Waveform int

	InstrumentKindInfo struct {
		Name     string
		Waveform Waveform
		// PitchDrop makes the oscillator sweep down from a higher pitch,
		// like a drum membrane.
		PitchDrop bool
		// Release is the default release time in seconds.
		Release  float64
		Defaults func() map[string]any
	}

	EffectKindInfo struct {
		Name     string
		Defaults func() map[string]any
	}
)

const (
	Synth InstrumentKind = iota
	PolySynth
	MonoSynth
	AMSynth
	FMSynth
	DuoSynth
	PluckSynth
	NoiseSynth
	MembraneSynth
	Drum
	Sampler
	NumInstrumentKinds
)

const (
	Reverb EffectKind = iota
	Delay
	Filter
	Chorus
	Distortion
	Compressor
	NumEffectKinds
)

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
	Noise
)

func envelope(release float64) map[string]any {
	return map[string]any{"attack": 0.01, "decay": 0.3, "sustain": 0.3, "release": release}
}

func oscillator(typ string) map[string]any {
	return map[string]any{"type": typ}
}

// InstrumentKinds is the lookup table of all instrument kinds.
var InstrumentKinds = [NumInstrumentKinds]InstrumentKindInfo{
	Synth: {Name: "Synth", Waveform: Triangle, Release: 1, Defaults: func() map[string]any {
		return map[string]any{"oscillator": oscillator("triangle"), "envelope": envelope(1)}
	}},
	PolySynth: {Name: "PolySynth", Waveform: Triangle, Release: 1, Defaults: func() map[string]any {
		return map[string]any{"maxPolyphony": 32, "oscillator": oscillator("triangle"), "envelope": envelope(1)}
	}},
	MonoSynth: {Name: "MonoSynth", Waveform: Sawtooth, Release: 0.5, Defaults: func() map[string]any {
		return map[string]any{"frequency": 440, "detune": 0, "oscillator": oscillator("sawtooth"),
			"filter": map[string]any{"Q": 6, "type": "lowpass", "rolloff": -24}}
	}},
	AMSynth: {Name: "AMSynth", Waveform: Sine, Release: 1, Defaults: func() map[string]any {
		return map[string]any{"harmonicity": 3, "detune": 0, "oscillator": oscillator("sine"), "envelope": envelope(1)}
	}},
	FMSynth: {Name: "FMSynth", Waveform: Sine, Release: 1, Defaults: func() map[string]any {
		return map[string]any{"harmonicity": 3, "modulationIndex": 10, "detune": 0, "oscillator": oscillator("sine"), "envelope": envelope(1)}
	}},
	DuoSynth: {Name: "DuoSynth", Waveform: Sawtooth, Release: 0.8, Defaults: func() map[string]any {
		return map[string]any{"vibratoAmount": 0.5, "vibratoRate": 5, "harmonicity": 1.5}
	}},
	PluckSynth: {Name: "PluckSynth", Waveform: Sawtooth, Release: 0.3, Defaults: func() map[string]any {
		return map[string]any{"attackNoise": 1, "dampening": 4000, "resonance": 0.7}
	}},
	NoiseSynth: {Name: "NoiseSynth", Waveform: Noise, Release: 0.2, Defaults: func() map[string]any {
		return map[string]any{"noise": map[string]any{"type": "white"}, "envelope": envelope(0.2)}
	}},
	MembraneSynth: {Name: "MembraneSynth", Waveform: Sine, PitchDrop: true, Release: 0.4, Defaults: func() map[string]any {
		return map[string]any{"pitchDecay": 0.05, "octaves": 10, "envelope": envelope(0.4)}
	}},
	Drum: {Name: "Drum", Waveform: Noise, PitchDrop: true, Release: 0.15, Defaults: func() map[string]any {
		return map[string]any{"pitchDecay": 0.05, "octaves": 4}
	}},
	Sampler: {Name: "Sampler", Waveform: Sine, Release: 1, Defaults: func() map[string]any {
		return map[string]any{"urls": map[string]any{}, "release": 1}
	}},
}

// EffectKinds is the lookup table of all effect kinds.
var EffectKinds = [NumEffectKinds]EffectKindInfo{
	Reverb:     {Name: "Reverb", Defaults: func() map[string]any { return map[string]any{"roomSize": 0.7, "decay": 2.5, "wet": 0.3} }},
	Delay:      {Name: "Delay", Defaults: func() map[string]any { return map[string]any{"delayTime": 0.25, "feedback": 0.3, "wet": 0.4} }},
	Filter:     {Name: "Filter", Defaults: func() map[string]any { return map[string]any{"frequency": 1000, "Q": 1, "type": "lowpass", "wet": 1.0} }},
	Chorus:     {Name: "Chorus", Defaults: func() map[string]any { return map[string]any{"frequency": 1.5, "delayTime": 3.5, "depth": 0.7, "wet": 0.5} }},
	Distortion: {Name: "Distortion", Defaults: func() map[string]any { return map[string]any{"distortion": 0.4, "oversample": "4x", "wet": 0.6} }},
	Compressor: {Name: "Compressor", Defaults: func() map[string]any {
		return map[string]any{"threshold": -24, "ratio": 12, "attack": 0.003, "release": 0.25, "wet": 1.0}
	}},
}

var titleCaser = cases.Title(language.English)

// ParseInstrumentKind finds a kind by name, ignoring case. "synth" and
// "Synth" are the same kind. Unknown names return an error tagged
// UnresolvedInstrument.
func ParseInstrumentKind(name string) (InstrumentKind, error) {
	for i, k := range InstrumentKinds {
		if strings.EqualFold(k.Name, name) {
			return InstrumentKind(i), nil
		}
	}
	return Synth, fault.New(fmt.Sprintf("unknown instrument %q", name), ftag.With(UnresolvedInstrument),
		fmsg.WithDesc("unknown instrument", fmt.Sprintf("Instrument %q is not available, using a synth instead", name)))
}

func ParseEffectKind(name string) (EffectKind, error) {
	for i, k := range EffectKinds {
		if strings.EqualFold(k.Name, name) {
			return EffectKind(i), nil
		}
	}
	return 0, fault.New(fmt.Sprintf("unknown effect %q", name))
}

func (k InstrumentKind) Valid() bool { return k >= 0 && k < NumInstrumentKinds }

func (k InstrumentKind) Info() InstrumentKindInfo {
	if !k.Valid() {
		return InstrumentKinds[Synth]
	}
	return InstrumentKinds[k]
}

func (k InstrumentKind) String() string { return k.Info().Name }

// DisplayName splits the kind name into title-cased words: "AMSynth" is
// "Am Synth", "NoiseSynth" is "Noise Synth".
func (k InstrumentKind) DisplayName() string {
	name := k.Info().Name
	if i := strings.Index(name, "Synth"); i > 0 {
		name = name[:i] + " " + name[i:]
	}
	return titleCaser.String(name)
}

func (k InstrumentKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText accepts any name; unknown names become Synth.
func (k *InstrumentKind) UnmarshalText(text []byte) error {
	*k, _ = ParseInstrumentKind(string(text))
	return nil
}

func (k EffectKind) Valid() bool { return k >= 0 && k < NumEffectKinds }

func (k EffectKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("EffectKind(%d)", int(k))
	}
	return EffectKinds[k].Name
}

func (k EffectKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EffectKind) UnmarshalText(text []byte) error {
	var err error
	*k, err = ParseEffectKind(string(text))
	return err
}

// NewInstrument returns a descriptor of the given kind with default
// parameters.
func NewInstrument(id string, kind InstrumentKind) Instrument {
	info := kind.Info()
	return Instrument{ID: id, Name: info.Name, Kind: kind, Parameters: info.Defaults()}
}

// DefaultInstrument is the synth used for tracks that have none, named after
// the track.
func DefaultInstrument(trackID string) Instrument {
	return NewInstrument(trackID+"-synth", Synth)
}

func NewEffect(id string, kind EffectKind) Effect {
	return Effect{ID: id, Kind: kind, Enabled: true, Parameters: EffectKinds[kind].Defaults()}
}

// Resolved reports whether the instrument names a known kind.
func (i *Instrument) Resolved() bool {
	if i.Name == "" {
		return i.Kind.Valid()
	}
	k, err := ParseInstrumentKind(i.Name)
	return err == nil && k == i.Kind
}

// Parameters the scheduler sets on the instrument of a track, from the track
// and master volume and pan. Engines read them with Mix.
const (
	ParamMixGain = "mixGain"
	ParamMixPan  = "mixPan"
)

// WithMix returns a copy of the instrument with its mix parameters set.
func (i *Instrument) WithMix(gain, pan float64) Instrument {
	ret := i.Copy()
	if ret.Parameters == nil {
		ret.Parameters = map[string]any{}
	}
	ret.Parameters[ParamMixGain] = gain
	ret.Parameters[ParamMixPan] = pan
	return ret
}

// Mix returns the gain and pan set with WithMix; 1 and 0 when unset.
func (i *Instrument) Mix() (gain, pan float64) {
	gain, pan = 1, 0
	if g, ok := i.Parameters[ParamMixGain].(float64); ok {
		gain = g
	}
	if p, ok := i.Parameters[ParamMixPan].(float64); ok {
		pan = p
	}
	return gain, pan
}

// Copy makes a deep copy of the instrument.
func (i *Instrument) Copy() Instrument {
	ret := *i
	ret.Parameters = copyParams(i.Parameters)
	return ret
}

func (e *Effect) Copy() Effect {
	ret := *e
	ret.Parameters = copyParams(e.Parameters)
	return ret
}

func copyParams(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	ret := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = copyParams(sub)
		}
		ret[k] = v
	}
	return ret
}
