// Package engine is a small software sound engine: a transport clock in
// beats, instruments built from the instrument kind table and a mixer. It
// plays through any daw.AudioContext, or renders offline without one.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"
	"github.com/viterin/vek/vek32"

	"github.com/soliddaw/daw"
)

type (
	// Engine implements daw.SoundEngine. All methods are safe to call from
	// any goroutine; Render is called from the audio output.
	Engine struct {
		open func() (daw.AudioContext, error)
		log  logrus.FieldLogger

		initMu      sync.Mutex
		initialized bool
		audio       daw.AudioContext
		output      daw.CloserWaiter

		mu          sync.Mutex
		instruments []instrument
		events      []event // sorted by at
		next        int     // index of the first event not yet fired
		voices      []voice
		buffers     []playingBuffer
		running     bool
		beats       float64
		tempo       float64
		loop        bool
		loopStart   daw.Ticks
		loopEnd     daw.Ticks
		noise       uint32
		peak        [2]float32

		left, right []float32
	}

	event struct {
		at         daw.Ticks
		instrument daw.InstrumentHandle
		pitch      daw.Pitch
		seconds    float64
		velocity   float64
		buffer     daw.AudioBuffer // if not nil, the event plays the buffer
	}

	// instrument is a kind of voice played at a fixed gain per channel.
	instrument struct {
		info        daw.InstrumentKindInfo
		left, right float32
	}

	playingBuffer struct {
		buffer daw.AudioBuffer
		pos    int
	}
)

const (
	defaultTempo = 120
	blockSize    = 512
	// at most this many voices sound at once; the oldest are dropped
	maxVoices = 64
)

var _ daw.SoundEngine = (*Engine)(nil)

// New returns an engine that opens its audio output with open when
// initialized. With a nil open the engine has no output and is driven by
// RenderFrames. log may be nil.
func New(open func() (daw.AudioContext, error), log logrus.FieldLogger) *Engine {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Engine{open: open, log: log, tempo: defaultTempo, noise: 0x9e3779b9}
}

// Initialize opens the audio output. It gives up when ctx is done; the
// returned error is then tagged daw.EngineUnavailable, like any failure to
// open the output.
func (e *Engine) Initialize(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized {
		return nil
	}
	if e.open == nil {
		e.initialized = true
		return nil
	}
	type result struct {
		audio daw.AudioContext
		err   error
	}
	opened := make(chan result, 1)
	go func() {
		a, err := e.open()
		opened <- result{a, err}
	}()
	var r result
	select {
	case r = <-opened:
	case <-ctx.Done():
		return unavailable(ctx.Err())
	}
	if r.err != nil {
		return unavailable(r.err)
	}
	output, err := r.audio.Play(e.Render)
	if err != nil {
		r.audio.Close()
		return unavailable(err)
	}
	e.audio, e.output, e.initialized = r.audio, output, true
	e.log.Debug("audio output opened")
	return nil
}

func unavailable(err error) error {
	return fault.Wrap(err, ftag.With(daw.EngineUnavailable),
		fmsg.WithDesc("could not open audio output", "No audio output is available, playback is disabled"))
}

// Dispose closes the audio output. The engine can be initialized again.
func (e *Engine) Dispose() error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if !e.initialized {
		return nil
	}
	e.initialized = false
	var err error
	if e.output != nil {
		err = e.output.Close()
		e.output.Wait()
	}
	if e.audio != nil {
		if cerr := e.audio.Close(); err == nil {
			err = cerr
		}
	}
	e.audio, e.output = nil, nil
	return err
}

func (e *Engine) CreateInstrument(descriptor daw.Instrument) (daw.InstrumentHandle, error) {
	if !descriptor.Kind.Valid() || !descriptor.Resolved() {
		return 0, fault.New(fmt.Sprintf("cannot build instrument %q", descriptor.Name), ftag.With(daw.UnresolvedInstrument))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l, r := daw.PanGains(descriptor.Mix())
	e.instruments = append(e.instruments, instrument{info: descriptor.Kind.Info(), left: l, right: r})
	return daw.InstrumentHandle(len(e.instruments) - 1), nil
}

func (e *Engine) ScheduleNoteAt(h daw.InstrumentHandle, pitch daw.Pitch, durationSeconds float64, at daw.Ticks, velocity float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h < 0 || int(h) >= len(e.instruments) {
		return fault.New(fmt.Sprintf("no instrument %d", h))
	}
	if durationSeconds <= 0 {
		return fault.New(fmt.Sprintf("note duration must be positive, got %v", durationSeconds))
	}
	e.insert(event{at: at, instrument: h, pitch: pitch, seconds: durationSeconds, velocity: max(0, min(1, velocity))})
	return nil
}

func (e *Engine) ScheduleAudioBufferAt(buffer daw.AudioBuffer, at daw.Ticks) error {
	if len(buffer) == 0 {
		return fault.New("empty audio buffer")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.insert(event{at: at, buffer: buffer})
	return nil
}

// insert keeps events sorted; an event before the clock does not fire until
// the clock passes it again.
func (e *Engine) insert(ev event) {
	i := sort.Search(len(e.events), func(i int) bool { return e.events[i].at > ev.at })
	e.events = append(e.events, event{})
	copy(e.events[i+1:], e.events[i:])
	e.events[i] = ev
	if i < e.next || ev.at.Beats() < e.beats {
		e.next = e.firstAfter(e.beats)
	}
}

// firstAfter returns the index of the first event at or after beats.
func (e *Engine) firstAfter(beats float64) int {
	return sort.Search(len(e.events), func(i int) bool { return e.events[i].at.Beats() >= beats })
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
}

func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.silence()
	e.beats = 0
	e.next = 0
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.silence()
}

func (e *Engine) CancelAllScheduled() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = e.events[:0]
	e.next = 0
	e.silence()
}

func (e *Engine) silence() {
	e.voices = e.voices[:0]
	e.buffers = e.buffers[:0]
}

func (e *Engine) CurrentSeconds() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return daw.BeatsToSeconds(e.beats, e.tempo)
}

func (e *Engine) SetCurrentSeconds(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seek(daw.SecondsToBeats(max(0, seconds), e.tempo))
}

func (e *Engine) seek(beats float64) {
	e.beats = beats
	e.next = e.firstAfter(beats)
	e.silence()
}

// SetTempo changes the speed of the clock. The position in beats is kept, so
// the position in seconds changes.
func (e *Engine) SetTempo(bpm float64) {
	if !(bpm > 0) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tempo = bpm
}

func (e *Engine) SetLoop(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loop = enabled
}

func (e *Engine) SetLoopStart(at daw.Ticks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loopStart = max(0, at)
}

func (e *Engine) SetLoopEnd(at daw.Ticks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loopEnd = max(0, at)
}

// Running reports whether the clock is advancing.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Peak returns the largest absolute sample of each channel in the last
// rendered buffer.
func (e *Engine) Peak() [2]float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}

// Render fills buf with the next frames and advances the clock. A stopped
// engine renders silence.
func (e *Engine) Render(buf daw.AudioBuffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for done := 0; done < len(buf); done += blockSize {
		end := min(done+blockSize, len(buf))
		e.renderBlock(buf[done:end])
	}
	return nil
}

// RenderFrames renders frames from the current position into a new buffer,
// reporting progress between blocks.
func (e *Engine) RenderFrames(frames int, progress func(float32)) (daw.AudioBuffer, error) {
	if frames < 0 {
		return nil, fault.New(fmt.Sprintf("cannot render %d frames", frames))
	}
	buf := make(daw.AudioBuffer, frames)
	const step = 64 * blockSize
	for done := 0; done < frames; done += step {
		end := min(done+step, frames)
		if err := e.Render(buf[done:end]); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(float32(end) / float32(frames))
		}
	}
	return buf, nil
}

func (e *Engine) renderBlock(buf daw.AudioBuffer) {
	n := len(buf)
	if cap(e.left) < n {
		e.left = make([]float32, n)
		e.right = make([]float32, n)
	}
	left, right := e.left[:n], e.right[:n]
	vek32.Zeros_Into(left, n)
	vek32.Zeros_Into(right, n)
	if e.running {
		step := e.tempo / 60 / daw.SampleRate
		for i := 0; i < n; i++ {
			e.fire()
			var l, r float32
			for v := range e.voices {
				s := e.voices[v].next(&e.noise)
				l += s * e.voices[v].left
				r += s * e.voices[v].right
			}
			for b := range e.buffers {
				pb := &e.buffers[b]
				if pb.pos < len(pb.buffer) {
					l += pb.buffer[pb.pos][0]
					r += pb.buffer[pb.pos][1]
					pb.pos++
				}
			}
			left[i], right[i] = l, r
			e.beats += step
			e.wrap()
			e.reap()
		}
	}
	vek32.MinimumNumber_Inplace(left, 1)
	vek32.MaximumNumber_Inplace(left, -1)
	vek32.MinimumNumber_Inplace(right, 1)
	vek32.MaximumNumber_Inplace(right, -1)
	for i := range buf {
		buf[i] = [2]float32{left[i], right[i]}
	}
	vek32.Abs_Inplace(left)
	vek32.Abs_Inplace(right)
	e.peak = [2]float32{vek32.Max(left), vek32.Max(right)}
}

// fire starts every event the clock has reached.
func (e *Engine) fire() {
	for e.next < len(e.events) && e.events[e.next].at.Beats() <= e.beats {
		ev := e.events[e.next]
		e.next++
		if ev.buffer != nil {
			e.buffers = append(e.buffers, playingBuffer{buffer: ev.buffer})
			continue
		}
		if len(e.voices) >= maxVoices {
			e.voices = append(e.voices[:0], e.voices[1:]...)
		}
		e.voices = append(e.voices, newVoice(e.instruments[ev.instrument], ev.pitch, ev.seconds, ev.velocity))
	}
}

// wrap jumps back to the loop start when the clock reaches the loop end.
// Sounding voices keep ringing across the jump.
func (e *Engine) wrap() {
	if !e.loop || e.loopEnd <= e.loopStart || e.beats < e.loopEnd.Beats() {
		return
	}
	e.beats = e.loopStart.Beats()
	e.next = e.firstAfter(e.beats)
}

func (e *Engine) reap() {
	voices := e.voices[:0]
	for _, v := range e.voices {
		if !v.done() {
			voices = append(voices, v)
		}
	}
	e.voices = voices
	buffers := e.buffers[:0]
	for _, b := range e.buffers {
		if b.pos < len(b.buffer) {
			buffers = append(buffers, b)
		}
	}
	e.buffers = buffers
}
