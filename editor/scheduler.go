package editor

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/sirupsen/logrus"
	"github.com/soliddaw/daw"
)

type (
	// scheduler remembers the engine instruments created for the project, so
	// playing again does not create them again.
	scheduler struct {
		handles map[string]schedEntry
	}

	schedEntry struct {
		handle    daw.InstrumentHandle
		kind      daw.InstrumentKind
		gain, pan float64
	}
)

func makeScheduler() scheduler {
	return scheduler{handles: map[string]schedEntry{}}
}

// reset forgets all handles; needed when the engine is (re)initialized.
func (s *scheduler) reset() { clear(s.handles) }

// forget drops the handle of one instrument, e.g. when its kind changes.
func (s *scheduler) forget(id string) { delete(s.handles, id) }

// instrument returns the engine handle for the descriptor played at gain
// and pan, creating the instrument on first use or when its kind or mix
// changed. A descriptor the engine cannot resolve is replaced by a default
// synth of the same id.
func (s *scheduler) instrument(engine daw.SoundEngine, inst daw.Instrument, gain, pan float64, log logrus.FieldLogger) (daw.InstrumentHandle, error) {
	if e, ok := s.handles[inst.ID]; ok && e.kind == inst.Kind && e.gain == gain && e.pan == pan {
		return e.handle, nil
	}
	kind := inst.Kind
	if !inst.Resolved() {
		log.WithField("instrument", inst.Name).Warn("unknown instrument, falling back to synth")
		inst = daw.NewInstrument(inst.ID, daw.Synth)
	}
	mixed := inst.WithMix(gain, pan)
	h, err := engine.CreateInstrument(mixed)
	if err != nil && inst.Kind != daw.Synth {
		log.WithError(err).WithField("instrument", inst.Name).Warn("could not create instrument, falling back to synth")
		fallback := daw.NewInstrument(inst.ID, daw.Synth)
		h, err = engine.CreateInstrument(fallback.WithMix(gain, pan))
	}
	if err != nil {
		return 0, fault.Wrap(err, fmsg.With("creating instrument "+inst.ID))
	}
	s.handles[inst.ID] = schedEntry{handle: h, kind: kind, gain: gain, pan: pan}
	return h, nil
}

// trackMix is the gain and pan a track plays at: its own volume and pan
// combined with the master bus.
func trackMix(p *daw.Project, t *daw.Track) (gain, pan float64) {
	return t.Volume * p.MasterVolume, max(-1, min(1, t.Pan+p.MasterPan))
}

func (m *Model) scheduleProject() {
	m.sched.schedule(m.engine, &m.d.Project, m.log)
}

// schedule hands every audible clip of the project to the engine. Tracks
// without an instrument play with a default synth; the project is not
// modified.
func (s *scheduler) schedule(engine daw.SoundEngine, p *daw.Project, log logrus.FieldLogger) {
	solo := false
	for _, t := range p.Tracks {
		solo = solo || t.Solo
	}
	var notes, buffers, skipped int
	for _, t := range p.Tracks {
		if t.Muted || (solo && !t.Solo) {
			continue
		}
		inst := daw.DefaultInstrument(t.ID)
		if t.Instrument != nil {
			inst = *t.Instrument
		}
		gain, pan := trackMix(p, &t)
		for _, c := range t.Clips {
			switch c.Content.Kind {
			case daw.ContentMIDI:
				if len(c.Content.Notes) == 0 {
					continue
				}
				h, err := s.instrument(engine, inst, gain, pan, log)
				if err != nil {
					log.WithError(err).WithField("clip", c.ID).Warn("skipping clip")
					skipped++
					continue
				}
				for _, n := range c.Content.Notes {
					at := daw.BeatsToTicks(c.Start + n.Time)
					dur := daw.BeatsToSeconds(n.Duration, p.Tempo)
					if err := engine.ScheduleNoteAt(h, n.Note.Pitch, dur, at, n.Velocity); err != nil {
						log.WithError(err).WithField("clip", c.ID).Debug("could not schedule note")
						continue
					}
					notes++
				}
			case daw.ContentAudio:
				if c.Content.Audio == nil || c.Content.Audio.Buffer == nil {
					continue
				}
				if err := engine.ScheduleAudioBufferAt(c.Content.Audio.Buffer.Mixed(gain, pan), daw.BeatsToTicks(c.Start)); err != nil {
					log.WithError(err).WithField("clip", c.ID).Warn("could not schedule audio")
					continue
				}
				buffers++
			}
		}
	}
	log.WithFields(logrus.Fields{"notes": notes, "buffers": buffers, "skipped": skipped}).Debug("scheduled project")
}
