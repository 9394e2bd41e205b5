package engine

import (
	"math"

	"github.com/soliddaw/daw"
)

const (
	attackSeconds = 0.005
	voiceGain     = 0.2
	// membranes start this many times higher and sweep down to the pitch
	pitchDropRatio   = 4
	pitchDropSeconds = 0.05
	// releases are capped so that long pads do not pile up voices
	maxReleaseSeconds = 2
)

// voice is one sounding note.
type voice struct {
	info        daw.InstrumentKindInfo
	left, right float32 // channel gains of the instrument
	freq        float64
	phase       float64
	velocity    float64
	age         int // frames since the note started
	length      int // frames until release
	release     int
	attack      int
}

func newVoice(inst instrument, pitch daw.Pitch, seconds, velocity float64) voice {
	info := inst.info
	return voice{
		info:     info,
		left:     inst.left,
		right:    inst.right,
		freq:     440 * math.Pow(2, (float64(pitch)-69)/12),
		velocity: velocity,
		length:   max(1, int(seconds*daw.SampleRate)),
		release:  max(1, int(min(info.Release, maxReleaseSeconds)*daw.SampleRate)),
		attack:   max(1, int(attackSeconds*daw.SampleRate)),
	}
}

func (v *voice) done() bool { return v.age >= v.length+v.release }

func (v *voice) envelope() float64 {
	switch {
	case v.age < v.attack:
		return float64(v.age) / float64(v.attack)
	case v.age < v.length:
		return 1
	default:
		return max(0, 1-float64(v.age-v.length)/float64(v.release))
	}
}

// next returns the next sample of the voice and advances it.
func (v *voice) next(noise *uint32) float32 {
	freq := v.freq
	if v.info.PitchDrop {
		t := float64(v.age) / daw.SampleRate
		freq *= 1 + (pitchDropRatio-1)*math.Exp(-t/pitchDropSeconds)
	}
	var s float64
	switch v.info.Waveform {
	case daw.Sine:
		s = math.Sin(2 * math.Pi * v.phase)
	case daw.Square:
		if v.phase < 0.5 {
			s = 1
		} else {
			s = -1
		}
	case daw.Sawtooth:
		s = 2*v.phase - 1
	case daw.Triangle:
		s = 1 - 4*math.Abs(v.phase-0.5)
	case daw.Noise:
		// xorshift
		x := *noise
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		*noise = x
		s = float64(x)/math.MaxUint32*2 - 1
	}
	s *= v.envelope() * v.velocity * voiceGain
	v.phase += freq / daw.SampleRate
	v.phase -= math.Floor(v.phase)
	v.age++
	return float32(s)
}
