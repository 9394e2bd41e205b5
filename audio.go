package daw

import "context"

type (
	// AudioBuffer is stereo audio at 44100 Hz, one [left, right] pair per
	// frame.
	AudioBuffer [][2]float32

	// InstrumentHandle is an opaque reference to an instrument created by a
	// SoundEngine. The timeline never holds the instrument itself.
	InstrumentHandle int

	// SoundEngine produces sound from scheduled events. Times of scheduled
	// events are transport ticks, so they follow tempo changes. Engines are
	// constructed explicitly and passed to the code that needs them.
	SoundEngine interface {
		// Initialize prepares the engine; calling it again is a no-op. An
		// error tagged EngineUnavailable means there is no audio backend.
		Initialize(ctx context.Context) error
		Dispose() error

		CreateInstrument(descriptor Instrument) (InstrumentHandle, error)
		ScheduleNoteAt(h InstrumentHandle, pitch Pitch, durationSeconds float64, at Ticks, velocity float64) error
		ScheduleAudioBufferAt(buffer AudioBuffer, at Ticks) error

		Start()
		Stop()
		Pause()
		CancelAllScheduled()
		CurrentSeconds() float64
		SetCurrentSeconds(seconds float64)
		SetTempo(bpm float64)
		SetLoop(enabled bool)
		SetLoopStart(at Ticks)
		SetLoopEnd(at Ticks)
	}

	// AudioContext is an audio output. Play keeps calling render to fill
	// buffers until the returned CloserWaiter is closed.
	AudioContext interface {
		Play(render func(buf AudioBuffer) error) (CloserWaiter, error)
		Close() error
	}

	CloserWaiter interface {
		Close() error
		Wait()
	}
)

// PanGains returns the left and right gains for a signal at gain, panned by
// pan in [-1, 1]. The center leaves both channels at gain; panning attenuates
// the opposite channel only.
func PanGains(gain, pan float64) (left, right float32) {
	pan = max(-1, min(1, pan))
	return float32(gain * min(1, 1-pan)), float32(gain * min(1, 1+pan))
}

// Mixed returns a copy of the buffer at gain, panned by pan.
func (b AudioBuffer) Mixed(gain, pan float64) AudioBuffer {
	l, r := PanGains(gain, pan)
	ret := make(AudioBuffer, len(b))
	for i, f := range b {
		ret[i] = [2]float32{f[0] * l, f[1] * r}
	}
	return ret
}

// Fill sets every frame of the buffer to value.
func (b AudioBuffer) Fill(value float32) {
	for i := range b {
		b[i] = [2]float32{value, value}
	}
}

// Interleaved returns the samples as L, R, L, R...
func (b AudioBuffer) Interleaved() []float32 {
	ret := make([]float32, 0, len(b)*2)
	for _, f := range b {
		ret = append(ret, f[0], f[1])
	}
	return ret
}

// Seconds returns the duration of the buffer at 44100 Hz.
func (b AudioBuffer) Seconds() float64 {
	return float64(len(b)) / SampleRate
}

const SampleRate = 44100
