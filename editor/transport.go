package editor

import (
	"context"
	"time"

	"github.com/soliddaw/daw"
)

type (
	Transport Model

	transportData struct {
		playing     bool
		paused      bool
		recording   bool
		looping     bool
		currentTime float64 // seconds
	}

	engineStatus int

	transportPlay      Transport
	transportPause     Transport
	transportStop      Transport
	transportPlayPause Transport
	transportRecord    Transport
	transportLoop      Transport
	transportTempo     Transport
)

const (
	engineUnknown engineStatus = iota
	engineReady
	engineUnavailable
)

const (
	engineInitTimeout = 5 * time.Second
	minTempo          = 1
	maxTempo          = 999
)

func (m *Model) Transport() *Transport { return (*Transport)(m) }

func (m *Transport) IsPlaying() bool   { return m.transport.playing }
func (m *Transport) IsPaused() bool    { return m.transport.paused }
func (m *Transport) IsRecording() bool { return m.transport.recording }

// Position returns the transport position in seconds.
func (m *Transport) Position() float64 { return m.transport.currentTime }

// Beats returns the transport position in beats.
func (m *Transport) Beats() float64 { return (*Model)(m).currentBeats() }

// BarsBeatsTicks returns the transport position for display.
func (m *Transport) BarsBeatsTicks() daw.BarsBeatsTicks {
	return daw.BeatsToBarsBeatsTicks(m.Beats(), m.d.Project.TimeSignature.BeatsPerBar(), daw.TicksPerBeat)
}

func (m *Transport) TimeSignature() daw.TimeSignature { return m.d.Project.TimeSignature }

// EngineAvailable reports false once the sound engine has failed to
// initialize; playback is then disabled.
func (m *Transport) EngineAvailable() bool {
	return m.engineStatus != engineUnavailable
}

// Polling reports whether the position poller is running.
func (m *Transport) Polling() bool { return m.poller.running() }

// Play returns an Action to start playback from the current position. Every
// play cancels whatever the engine had scheduled and schedules the whole
// project again.
func (m *Transport) Play() Action { return MakeAction((*transportPlay)(m)) }

func (m *transportPlay) Enabled() bool { return !m.transport.playing && (*Transport)(m).EngineAvailable() }
func (m *transportPlay) Do() {
	model := (*Model)(m)
	if !model.ensureEngine() {
		return
	}
	m.engine.CancelAllScheduled()
	model.scheduleProject()
	m.engine.SetTempo(m.d.Project.Tempo)
	model.syncEngineLoop()
	m.engine.SetCurrentSeconds(m.transport.currentTime)
	m.engine.Start()
	m.transport.playing = true
	m.transport.paused = false
	model.startPoller()
	model.notify(TransportChange)
}

// Pause returns an Action to pause playback, keeping the position.
func (m *Transport) Pause() Action { return MakeAction((*transportPause)(m)) }

func (m *transportPause) Enabled() bool { return m.transport.playing }
func (m *transportPause) Do() {
	m.transport.playing = false
	m.transport.paused = true
	if m.engineStatus == engineReady {
		m.engine.Pause()
		m.transport.currentTime = max(0, m.engine.CurrentSeconds())
	}
	(*Model)(m).stopPoller()
	(*Model)(m).notify(TransportChange)
}

// Stop returns an Action to stop playback and recording and rewind to 0. It
// can be done in any state.
func (m *Transport) Stop() Action { return MakeAction((*transportStop)(m)) }

func (m *transportStop) Do() {
	m.transport.playing = false
	m.transport.paused = false
	m.transport.recording = false
	if m.engineStatus == engineReady {
		m.engine.Stop()
		m.engine.CancelAllScheduled()
		m.engine.SetCurrentSeconds(0)
	}
	m.transport.currentTime = 0
	(*Model)(m).stopPoller()
	(*Model)(m).notify(TransportChange)
}

// PlayPause returns an Action that pauses when playing and plays otherwise.
func (m *Transport) PlayPause() Action { return MakeAction((*transportPlayPause)(m)) }

func (m *transportPlayPause) Do() {
	if m.transport.playing {
		(*Transport)(m).Pause().Do()
	} else {
		(*Transport)(m).Play().Do()
	}
}

// Record returns an Action toggling recording. Starting to record also starts
// playback.
func (m *Transport) Record() Action { return MakeAction((*transportRecord)(m)) }

func (m *transportRecord) Enabled() bool { return m.transport.recording || (*Transport)(m).EngineAvailable() }
func (m *transportRecord) Do() {
	if m.transport.recording {
		m.transport.recording = false
		(*Model)(m).notify(TransportChange)
		return
	}
	if !m.transport.playing {
		(*Transport)(m).Play().Do()
		if !m.transport.playing {
			return
		}
	}
	m.transport.recording = true
	(*Model)(m).notify(TransportChange)
}

// IsLooping returns a Bool to toggle looping. The first time looping is
// enabled, an unconfigured loop region is fitted to the clips.
func (m *Transport) IsLooping() Bool { return MakeBool((*transportLoop)(m)) }

// ToggleLoop returns an Action flipping IsLooping.
func (m *Transport) ToggleLoop() Action { return MakeAction((*transportLoop)(m)) }

func (m *transportLoop) Value() bool { return m.transport.looping }
func (m *transportLoop) Do()         { m.SetValue(!m.transport.looping) }
func (m *transportLoop) SetValue(val bool) {
	m.transport.looping = val
	if val && !m.loop.configured {
		(*Model)(m).Loop().InferFromContent()
	}
	(*Model)(m).syncEngineLoop()
	(*Model)(m).notify(TransportChange | LoopChange)
}

// Tempo returns the project tempo in BPM. The transport has no tempo of its
// own, so the two cannot disagree. Changes reach the engine immediately,
// also during playback.
func (m *Transport) Tempo() Float { return MakeFloat((*transportTempo)(m)) }

func (m *transportTempo) Value() float64    { return m.d.Project.Tempo }
func (m *transportTempo) Range() FloatRange { return FloatRange{minTempo, maxTempo} }
func (m *transportTempo) SetValue(bpm float64) bool {
	defer (*Model)(m).change("Tempo", ProjectChange|TransportChange, MinorChange)()
	m.d.Project.Tempo = bpm
	if m.engineStatus == engineReady {
		m.engine.SetTempo(bpm)
	}
	return true
}

// SetTimeSignature changes the meter of the project.
func (m *Transport) SetTimeSignature(ts daw.TimeSignature) bool {
	if ts.Numerator <= 0 || ts.Denominator <= 0 || ts == m.d.Project.TimeSignature {
		return false
	}
	defer (*Model)(m).change("TimeSignature", ProjectChange|TransportChange, MajorChange)()
	m.d.Project.TimeSignature = ts
	return true
}

// SetPosition seeks to seconds, clamped to >= 0, on the engine as well.
func (m *Transport) SetPosition(seconds float64) {
	seconds = max(0, seconds)
	m.transport.currentTime = seconds
	if m.engineStatus == engineReady {
		m.engine.SetCurrentSeconds(seconds)
	}
	(*Model)(m).notify(TransportChange)
}

// SetBeats seeks to a position in beats.
func (m *Transport) SetBeats(beats float64) {
	m.SetPosition(daw.BeatsToSeconds(beats, m.d.Project.Tempo))
}

// Poll reads the engine clock once and updates the position, like one tick
// of the poller.
func (m *Transport) Poll() {
	if !m.transport.playing || m.engineStatus != engineReady {
		return
	}
	(*Model)(m).applyPosition(m.engine.CurrentSeconds())
}

// applyPosition sets the displayed position from the engine clock. When
// looping, a position at or past the loop end is shown at the loop start;
// the engine does the actual looping.
func (m *Model) applyPosition(seconds float64) {
	if !m.transport.playing {
		return
	}
	seconds = max(0, seconds)
	if m.transport.looping {
		tempo := m.d.Project.Tempo
		if seconds >= daw.BeatsToSeconds(m.loop.End, tempo) {
			seconds = daw.BeatsToSeconds(m.loop.Start, tempo)
		}
	}
	if seconds == m.transport.currentTime {
		return
	}
	m.transport.currentTime = seconds
	m.notify(TransportChange)
}

// ensureEngine initializes the engine on first use. If that fails, the
// failure is logged and alerted once and playback stays disabled.
func (m *Model) ensureEngine() bool {
	switch m.engineStatus {
	case engineReady:
		return true
	case engineUnavailable:
		return false
	}
	if m.engine == nil {
		m.engineFailed(nil)
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), engineInitTimeout)
	defer cancel()
	if err := m.engine.Initialize(ctx); err != nil {
		m.engineFailed(err)
		return false
	}
	m.engineStatus = engineReady
	m.sched.reset()
	return true
}

func (m *Model) engineFailed(err error) {
	m.engineStatus = engineUnavailable
	entry := m.log.WithField("component", "transport")
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("sound engine unavailable, playback disabled")
	m.Alerts().AddNamed("EngineUnavailable", "Audio is not available; playback is disabled", Warning)
	m.notify(TransportChange)
}
