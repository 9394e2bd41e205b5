package editor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
)

func TestStopWhenNotPlayingRewinds(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	m, _ := newModel(engine)
	m.Transport().SetPosition(5)
	assert.False(m.Transport().IsPlaying())
	m.Transport().Stop().Do()
	assert.Equal(0.0, m.Transport().Position())
	assert.False(m.Transport().IsPaused())
	// the engine was never needed
	assert.Equal(0, engine.initCalls)
}

func TestPlaySchedulesProject(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	m, _ := newModel(engine)
	m.SetProject(songProject())
	m.Transport().Tempo().SetValue(90)
	m.Transport().SetPosition(2)
	m.Transport().Play().Do()
	assert.True(m.Transport().IsPlaying())
	assert.True(engine.running)
	assert.Equal(90.0, engine.tempo)
	assert.Equal(2.0, engine.seconds)
	notes := engine.scheduled()
	if assert.Len(notes, 3) {
		assert.Equal(daw.Ticks(0), notes[0].at)
		assert.Equal(daw.Ticks(daw.TicksPerBeat), notes[1].at)
		assert.Equal(daw.Ticks(8*daw.TicksPerBeat), notes[2].at)
		assert.InDelta(daw.BeatsToSeconds(2, 90), notes[2].seconds, 1e-9)
		assert.Equal(0.8, notes[0].velocity)
	}
	// instruments are created once and reused by later plays
	if assert.Len(engine.instruments, 1) {
		assert.Equal(daw.Synth, engine.instruments[0].Kind)
	}
	m.Transport().Pause().Do()
	m.Transport().Play().Do()
	assert.Len(engine.instruments, 1)
	assert.Len(engine.scheduled(), 3)
	assert.Equal(2, engine.cancels)
}

func TestMutedAndSoloTracksAreSkipped(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	m, _ := newModel(engine)
	p := songProject()
	bass := &p.Tracks[1]
	bass.Clips = []daw.Clip{daw.NewMidiClip(bass.ID, 0, 4, daw.NewNote(36, 0, 4, 1))}
	m.SetProject(p)
	lead, bassID := p.Tracks[0].ID, p.Tracks[1].ID

	m.Tracks().SetMuted(lead, true)
	m.Transport().Play().Do()
	assert.Len(engine.scheduled(), 1)
	m.Transport().Stop().Do()

	m.Tracks().SetMuted(lead, false)
	m.Tracks().SetSolo(lead, true)
	m.Transport().Play().Do()
	assert.Len(engine.scheduled(), 3)
	m.Transport().Stop().Do()

	m.Tracks().SetSolo(bassID, true)
	m.Transport().Play().Do()
	assert.Len(engine.scheduled(), 4)
}

func TestTrackMixReachesEngine(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	m, _ := newModel(engine)
	p := songProject()
	p.MasterVolume = 0.5
	m.SetProject(p)
	lead := p.Tracks[0].ID
	m.Tracks().SetVolume(lead, 0.6)
	m.Tracks().SetPan(lead, -0.25)
	m.Transport().Play().Do()
	if assert.Len(engine.instruments, 1) {
		gain, pan := engine.instruments[0].Mix()
		assert.InDelta(0.3, gain, 1e-9)
		assert.Equal(-0.25, pan)
	}
	m.Transport().Stop().Do()
	// a new mix makes a new instrument; an unchanged one reuses it
	m.Tracks().SetPan(lead, 1)
	m.Transport().Play().Do()
	m.Transport().Stop().Do()
	m.Transport().Play().Do()
	if assert.Len(engine.instruments, 2) {
		_, pan := engine.instruments[1].Mix()
		assert.Equal(1.0, pan)
	}
	// the stored instrument has no mix parameters
	_, ok := m.Project().Tracks[0].Instrument.Parameters[daw.ParamMixGain]
	assert.False(ok)
}

func TestUnresolvedInstrumentFallsBackToSynth(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{reject: map[daw.InstrumentKind]bool{daw.FMSynth: true}}
	m, hook := newModel(engine)
	p := songProject()
	theremin := daw.NewInstrument("theremin", daw.Synth)
	theremin.Name = "Theremin"
	p.Tracks[0].Instrument = &theremin
	fm := daw.NewInstrument("fm", daw.FMSynth)
	p.Tracks[1].Instrument = &fm
	p.Tracks[1].Clips = []daw.Clip{daw.NewMidiClip(p.Tracks[1].ID, 0, 4, daw.NewNote(40, 0, 1, 1))}
	m.SetProject(p)
	m.Transport().Play().Do()
	assert.Len(engine.scheduled(), 4)
	for _, inst := range engine.instruments {
		assert.Equal(daw.Synth, inst.Kind)
		assert.True(inst.Resolved())
	}
	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(2, warnings)
	// the project keeps the instrument as it was loaded
	assert.Equal("Theremin", m.Project().Tracks[0].Instrument.Name)
}

func TestEngineUnavailable(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{initErr: errors.New("no audio device")}
	m, hook := newModel(engine)
	m.Transport().Play().Do()
	assert.False(m.Transport().IsPlaying())
	assert.False(m.Transport().EngineAvailable())
	assert.False(m.Transport().Play().Enabled())
	// further attempts neither initialize again nor alert again
	m.Transport().Play().Do()
	m.Transport().Record().Do()
	m.Transport().PlayPause().Do()
	assert.Equal(1, engine.initCalls)
	assert.Equal(1, m.Alerts().Count())
	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(1, warnings)
	// editing still works
	_, ok := m.Tracks().Add("More", daw.TrackInstrument)
	assert.True(ok)
}

func TestNoEngineMeansNoPlayback(t *testing.T) {
	m, _ := newModel(nil)
	m.Transport().Play().Do()
	assert.False(t, m.Transport().IsPlaying())
	assert.False(t, m.Transport().EngineAvailable())
}

func TestPauseKeepsEnginePosition(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	m, _ := newModel(engine)
	m.Transport().Play().Do()
	engine.SetCurrentSeconds(3.5)
	m.Transport().Pause().Do()
	assert.True(m.Transport().IsPaused())
	assert.Equal(3.5, m.Transport().Position())
	m.Transport().Play().Do()
	assert.Equal(3.5, engine.CurrentSeconds())
	assert.False(m.Transport().IsPaused())
}

func TestRecordStartsPlayback(t *testing.T) {
	assert := assert.New(t)
	m, _ := newModel(&fakeEngine{})
	m.Transport().Record().Do()
	assert.True(m.Transport().IsRecording())
	assert.True(m.Transport().IsPlaying())
	m.Transport().Record().Do()
	assert.False(m.Transport().IsRecording())
	assert.True(m.Transport().IsPlaying())
	m.Transport().Record().Do()
	m.Transport().Stop().Do()
	assert.False(m.Transport().IsRecording())
}

func TestTempoIsClamped(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	m, _ := newModel(engine)
	tempo := m.Transport().Tempo()
	tempo.SetValue(0)
	assert.Equal(1.0, tempo.Value())
	tempo.SetValue(5000)
	assert.Equal(999.0, tempo.Value())
	assert.Equal(999.0, m.Project().Tempo)
	// tempo changes reach the engine during playback
	m.Transport().Play().Do()
	tempo.SetValue(140)
	assert.Equal(140.0, engine.tempo)
	// consecutive tempo edits are one undo step
	m.History().Undo().Do()
	assert.Equal(120.0, m.Project().Tempo)
}

func TestPositionFromEngine(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	m, _ := newModel(engine)
	m.Loop().SetStart(4)
	m.Loop().SetEnd(8)
	m.Transport().IsLooping().SetValue(true)
	m.Transport().Play().Do()
	assert.True(engine.loop)
	assert.Equal(daw.BeatsToTicks(4), engine.loopStart)
	assert.Equal(daw.BeatsToTicks(8), engine.loopEnd)
	m.ProcessMsg(editor.MsgToModel{HasPosition: true, Position: 3})
	assert.Equal(3.0, m.Transport().Position())
	assert.Equal("2:3:000", m.Transport().BarsBeatsTicks().String())
	// at 120 BPM, beat 8 is 4 seconds; a late reading shows the loop start
	m.ProcessMsg(editor.MsgToModel{HasPosition: true, Position: 4})
	assert.Equal(2.0, m.Transport().Position())
	engine.SetCurrentSeconds(1)
	m.Transport().Poll()
	assert.Equal(1.0, m.Transport().Position())
	// not playing: positions are ignored
	m.Transport().Pause().Do()
	m.ProcessMsg(editor.MsgToModel{HasPosition: true, Position: 3})
	assert.Equal(1.0, m.Transport().Position())
}

func TestPollerRunsOnlyWhilePlaying(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	broker := editor.NewBroker()
	m := editor.NewModel(broker, engine, nil, "")
	assert.False(m.Transport().Polling())
	m.Transport().Play().Do()
	assert.True(m.Transport().Polling())
	// play while playing is disabled and starts no second poller
	m.Transport().Play().Do()
	m.Transport().Record().Do()
	assert.True(m.Transport().Polling())
	engine.SetCurrentSeconds(1.25)
	deadline := time.After(time.Second)
	for m.Transport().Position() != 1.25 {
		select {
		case msg := <-broker.ToModel:
			assert.True(msg.HasPosition)
			m.ProcessMsg(msg)
		case <-deadline:
			t.Fatal("the poller sent no position")
		}
	}
	m.Transport().Stop().Do()
	assert.False(m.Transport().Polling())
	// stopped poller sends nothing more
	for len(broker.ToModel) > 0 {
		<-broker.ToModel
	}
	_, ok := editor.TimeoutReceive(broker.ToModel, 50*time.Millisecond)
	assert.False(ok)
}

func TestPositionFromStoppedPollerIsDropped(t *testing.T) {
	assert := assert.New(t)
	engine := &fakeEngine{}
	broker := editor.NewBroker()
	m := editor.NewModel(broker, engine, nil, "")
	m.Transport().Play().Do()
	engine.SetCurrentSeconds(1.5)
	var old editor.MsgToModel
	deadline := time.After(time.Second)
	for old.Position != 1.5 {
		select {
		case old = <-broker.ToModel:
		case <-deadline:
			t.Fatal("the poller sent no position")
		}
	}
	m.Transport().Stop().Do()
	m.Transport().Play().Do()
	// a position queued before the stop must not move the restarted playhead
	m.ProcessMsg(old)
	assert.Equal(0.0, m.Transport().Position())
	m.Transport().Stop().Do()
}

func TestLoopInferredOnFirstEnable(t *testing.T) {
	assert := assert.New(t)
	m, _ := newModel(&fakeEngine{})
	m.SetProject(songProject())
	assert.False(m.Loop().Configured())
	m.Transport().ToggleLoop().Do()
	// the last clip ends at beat 12
	assert.Equal(editor.Loop{Start: 0, End: 12}, m.Loop().Value())
	m.Loop().SetEnd(20)
	m.Transport().ToggleLoop().Do()
	m.Transport().ToggleLoop().Do()
	assert.Equal(20.0, m.Loop().Value().End)
}

func TestTimeSignature(t *testing.T) {
	assert := assert.New(t)
	m, _ := newModel(nil)
	assert.False(m.Transport().SetTimeSignature(daw.TimeSignature{Numerator: 0, Denominator: 4}))
	assert.True(m.Transport().SetTimeSignature(daw.TimeSignature{Numerator: 3, Denominator: 4}))
	m.Transport().SetBeats(4)
	assert.Equal("2:2:000", m.Transport().BarsBeatsTicks().String())
}
