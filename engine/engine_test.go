package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/engine"
)

type fakeOutput struct{ closed bool }

func (o *fakeOutput) Close() error { o.closed = true; return nil }
func (o *fakeOutput) Wait()        {}

type fakeAudio struct {
	render func(daw.AudioBuffer) error
	output fakeOutput
	closed bool
}

func (a *fakeAudio) Play(render func(daw.AudioBuffer) error) (daw.CloserWaiter, error) {
	a.render = render
	return &a.output, nil
}

func (a *fakeAudio) Close() error { a.closed = true; return nil }

func offline(t *testing.T) *engine.Engine {
	e := engine.New(nil, nil)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("offline engine failed to initialize: %v", err)
	}
	return e
}

func TestNoteIsAudible(t *testing.T) {
	assert := assert.New(t)
	e := offline(t)
	h, err := e.CreateInstrument(daw.NewInstrument("i", daw.Synth))
	if !assert.NoError(err) {
		return
	}
	assert.NoError(e.ScheduleNoteAt(h, 69, 0.1, 0, 1))
	e.Start()
	buf, err := e.RenderFrames(daw.SampleRate/10, nil)
	assert.NoError(err)
	assert.Len(buf, daw.SampleRate/10)
	assert.Greater(e.Peak()[0], float32(0))
	assert.LessOrEqual(e.Peak()[0], float32(1))
}

func TestStoppedEngineIsSilent(t *testing.T) {
	e := offline(t)
	h, _ := e.CreateInstrument(daw.NewInstrument("i", daw.Synth))
	e.ScheduleNoteAt(h, 60, 1, 0, 1)
	buf, _ := e.RenderFrames(1000, nil)
	for _, f := range buf {
		if f != [2]float32{} {
			t.Fatalf("expected silence, got %v", f)
		}
	}
	assert.Equal(t, 0.0, e.CurrentSeconds())
}

func TestClockFollowsTempo(t *testing.T) {
	assert := assert.New(t)
	e := offline(t)
	e.SetTempo(60)
	e.Start()
	e.RenderFrames(daw.SampleRate, nil)
	assert.InDelta(1.0, e.CurrentSeconds(), 1e-3)
	// the position in beats is kept when the tempo changes
	e.SetTempo(120)
	assert.InDelta(0.5, e.CurrentSeconds(), 1e-3)
	e.SetTempo(0)
	assert.InDelta(0.5, e.CurrentSeconds(), 1e-3)
}

func TestLoopWraps(t *testing.T) {
	assert := assert.New(t)
	e := offline(t)
	e.SetTempo(120)
	e.SetLoopStart(daw.BeatsToTicks(1))
	e.SetLoopEnd(daw.BeatsToTicks(2))
	e.SetLoop(true)
	e.Start()
	// three seconds is six beats; the clock never reaches beat 2
	for i := 0; i < 30; i++ {
		e.RenderFrames(daw.SampleRate/10, nil)
		assert.Less(e.CurrentSeconds(), 1.0)
	}
	assert.GreaterOrEqual(e.CurrentSeconds(), 0.5)
	e.SetLoop(false)
	e.RenderFrames(daw.SampleRate, nil)
	assert.Greater(e.CurrentSeconds(), 1.0)
}

func TestEventsBehindTheClockDoNotFire(t *testing.T) {
	e := offline(t)
	h, _ := e.CreateInstrument(daw.NewInstrument("i", daw.Synth))
	e.SetCurrentSeconds(2)
	e.ScheduleNoteAt(h, 60, 0.5, 0, 1)
	e.Start()
	e.RenderFrames(daw.SampleRate/10, nil)
	assert.Equal(t, [2]float32{}, e.Peak())
}

func TestStopRewindsAndCancelClears(t *testing.T) {
	assert := assert.New(t)
	e := offline(t)
	h, _ := e.CreateInstrument(daw.NewInstrument("i", daw.Synth))
	e.Start()
	e.RenderFrames(daw.SampleRate/2, nil)
	e.Stop()
	assert.False(e.Running())
	assert.Equal(0.0, e.CurrentSeconds())
	e.ScheduleNoteAt(h, 60, 0.5, 0, 1)
	e.CancelAllScheduled()
	e.Start()
	e.RenderFrames(daw.SampleRate/10, nil)
	assert.Equal([2]float32{}, e.Peak())
}

func TestAudioBufferPlays(t *testing.T) {
	assert := assert.New(t)
	e := offline(t)
	clip := make(daw.AudioBuffer, 100)
	clip.Fill(0.5)
	assert.NoError(e.ScheduleAudioBufferAt(clip, 0))
	assert.Error(e.ScheduleAudioBufferAt(nil, 0))
	e.Start()
	buf, _ := e.RenderFrames(200, nil)
	assert.Equal([2]float32{0.5, 0.5}, buf[1])
	assert.Equal([2]float32{}, buf[150])
}

func peakOf(t *testing.T, inst daw.Instrument) [2]float32 {
	e := offline(t)
	h, err := e.CreateInstrument(inst)
	if err != nil {
		t.Fatalf("CreateInstrument: %v", err)
	}
	e.ScheduleNoteAt(h, 69, 0.1, 0, 1)
	e.Start()
	e.RenderFrames(daw.SampleRate/20, nil)
	return e.Peak()
}

func TestInstrumentGainAndPan(t *testing.T) {
	assert := assert.New(t)
	inst := daw.NewInstrument("i", daw.Synth)
	full := peakOf(t, inst)
	assert.Greater(full[0], float32(0))
	assert.Equal(full[0], full[1])
	half := peakOf(t, inst.WithMix(0.5, 0))
	assert.InDelta(full[0]/2, half[0], 1e-6)
	assert.InDelta(full[1]/2, half[1], 1e-6)
	left := peakOf(t, inst.WithMix(1, -1))
	assert.InDelta(full[0], left[0], 1e-6)
	assert.Equal(float32(0), left[1])
}

func TestAudioBufferMix(t *testing.T) {
	clip := make(daw.AudioBuffer, 10)
	clip.Fill(0.5)
	mixed := clip.Mixed(0.5, 1)
	assert.Equal(t, [2]float32{0, 0.25}, mixed[3])
	assert.Equal(t, [2]float32{0.5, 0.5}, clip[3])
}

func TestUnresolvedInstrumentIsRejected(t *testing.T) {
	e := offline(t)
	inst := daw.NewInstrument("i", daw.Synth)
	inst.Name = "Theremin"
	_, err := e.CreateInstrument(inst)
	if assert.Error(t, err) {
		assert.Equal(t, daw.UnresolvedInstrument, daw.ErrorKind(err))
	}
	assert.Error(t, e.ScheduleNoteAt(7, 60, 1, 0, 1))
}

func TestProgressIsReported(t *testing.T) {
	e := offline(t)
	var last float32
	calls := 0
	e.RenderFrames(daw.SampleRate, func(p float32) {
		assert.GreaterOrEqual(t, p, last)
		last = p
		calls++
	})
	assert.Equal(t, float32(1), last)
	assert.Greater(t, calls, 1)
}

func TestInitializeFailure(t *testing.T) {
	e := engine.New(func() (daw.AudioContext, error) { return nil, errors.New("no device") }, nil)
	err := e.Initialize(context.Background())
	if assert.Error(t, err) {
		assert.Equal(t, daw.EngineUnavailable, daw.ErrorKind(err))
		assert.NotEmpty(t, daw.UserMessage(err))
	}
}

func TestInitializeTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	e := engine.New(func() (daw.AudioContext, error) {
		<-block
		return nil, errors.New("too late")
	}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := e.Initialize(ctx)
	if assert.Error(t, err) {
		assert.Equal(t, daw.EngineUnavailable, daw.ErrorKind(err))
	}
}

func TestInitializeOpensOutputOnce(t *testing.T) {
	assert := assert.New(t)
	opens := 0
	audio := &fakeAudio{}
	e := engine.New(func() (daw.AudioContext, error) {
		opens++
		return audio, nil
	}, nil)
	assert.NoError(e.Initialize(context.Background()))
	assert.NoError(e.Initialize(context.Background()))
	assert.Equal(1, opens)
	if assert.NotNil(audio.render) {
		buf := make(daw.AudioBuffer, 64)
		assert.NoError(audio.render(buf))
	}
	assert.NoError(e.Dispose())
	assert.True(audio.output.closed)
	assert.True(audio.closed)
}
