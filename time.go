package daw

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// BasePixelsPerBeat is the horizontal size of one beat at zoom 1.
	BasePixelsPerBeat = 200
	// TicksPerBeat is the resolution of bars:beats:ticks and of the
	// transport time used when scheduling events on a sound engine.
	TicksPerBeat = 480
	// DefaultBeatsPerBar is used when the time signature is unknown.
	DefaultBeatsPerBar = 4
)

// Ticks is a position on the transport, in 1/TicksPerBeat of a beat. Events
// scheduled in ticks follow tempo changes.
type Ticks int64

// BarsBeatsTicks is a musical position. All fields are 0-based; String
// produces the 1-based form shown to the user ("1:1:000" is the very start).
type BarsBeatsTicks struct {
	Bar, Beat, Tick int
}

// SecondsToBeats converts seconds to beats at the given tempo.
func SecondsToBeats(seconds, bpm float64) float64 {
	return seconds * bpm / 60
}

// BeatsToSeconds converts beats to seconds at the given tempo.
func BeatsToSeconds(beats, bpm float64) float64 {
	return beats * 60 / bpm
}

// BeatsToBarsBeatsTicks splits a position in beats into bars, beats and ticks.
// Non-positive beatsPerBar or ticksPerBeat fall back to 4 and 480. Negative
// positions are treated as 0.
func BeatsToBarsBeatsTicks(beats float64, beatsPerBar, ticksPerBeat int) BarsBeatsTicks {
	if beatsPerBar <= 0 {
		beatsPerBar = DefaultBeatsPerBar
	}
	if ticksPerBeat <= 0 {
		ticksPerBeat = TicksPerBeat
	}
	beats = max(beats, 0)
	bar := math.Floor(beats / float64(beatsPerBar))
	rem := beats - bar*float64(beatsPerBar)
	beat := math.Floor(rem)
	tick := int(math.Round((rem - beat) * float64(ticksPerBeat)))
	tick = max(0, min(ticksPerBeat-1, tick))
	// rounding can push rem to beatsPerBar exactly
	b := min(int(beat), beatsPerBar-1)
	return BarsBeatsTicks{Bar: int(bar), Beat: b, Tick: tick}
}

// Beats converts the position back to beats.
func (b BarsBeatsTicks) Beats(beatsPerBar, ticksPerBeat int) float64 {
	if beatsPerBar <= 0 {
		beatsPerBar = DefaultBeatsPerBar
	}
	if ticksPerBeat <= 0 {
		ticksPerBeat = TicksPerBeat
	}
	return float64(b.Bar*beatsPerBar+b.Beat) + float64(b.Tick)/float64(ticksPerBeat)
}

// String formats the position 1-based, e.g. "3:2:240".
func (b BarsBeatsTicks) String() string {
	return fmt.Sprintf("%d:%d:%03d", b.Bar+1, b.Beat+1, b.Tick)
}

// ParseBarsBeatsTicks parses the 1-based form produced by String.
func ParseBarsBeatsTicks(s string) (BarsBeatsTicks, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return BarsBeatsTicks{}, fmt.Errorf("invalid position %q: expected bars:beats:ticks", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return BarsBeatsTicks{}, fmt.Errorf("invalid position %q: %w", s, err)
		}
		v[i] = n
	}
	if v[0] < 1 || v[1] < 1 || v[2] < 0 {
		return BarsBeatsTicks{}, fmt.Errorf("invalid position %q: bars and beats start at 1", s)
	}
	return BarsBeatsTicks{Bar: v[0] - 1, Beat: v[1] - 1, Tick: v[2]}, nil
}

// PixelsPerBeat returns the horizontal scale at the given zoom.
func PixelsPerBeat(zoom float64) float64 {
	return zoom * BasePixelsPerBeat
}

func BeatsToPixels(beats, pixelsPerBeat float64) float64 {
	return beats * pixelsPerBeat
}

func PixelsToBeats(pixels, pixelsPerBeat float64) float64 {
	if pixelsPerBeat == 0 {
		return 0
	}
	return pixels / pixelsPerBeat
}

// BeatsToTicks rounds a position in beats to the nearest tick.
func BeatsToTicks(beats float64) Ticks {
	return Ticks(math.Round(beats * TicksPerBeat))
}

func (t Ticks) Beats() float64 {
	return float64(t) / TicksPerBeat
}
