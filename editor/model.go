package editor

import (
	"github.com/sirupsen/logrus"
	"github.com/soliddaw/daw"
)

type (
	// Model is the editor state: the project, the transport, the view and
	// the gestures in progress. See the package documentation for the
	// threading rules.
	Model struct {
		d modelData

		undoStack    []modelData
		redoStack    []modelData
		prevUndoKind string

		changeLevel    int
		changeCancel   bool
		changeType     ChangeType
		changeSnapshot modelData

		view      viewData
		loop      loopData
		transport transportData
		clipboard *daw.Clip

		gesture     gestureOwner
		loopGesture loopGesture
		noteGesture noteGesture

		engine         daw.SoundEngine
		engineStatus   engineStatus
		sched          scheduler
		poller         poller
		pollGeneration uint64

		textInputFocused bool
		keyBindings      map[KeyEvent]string

		alerts      []Alert
		subscribers map[int]func(ChangeType)
		nextSubID   int

		broker *Broker
		log    logrus.FieldLogger
	}

	// modelData is the part of the model that is saved in undo snapshots and
	// recovery files.
	modelData struct {
		Project              daw.Project
		FilePath             string
		ChangedSinceSave     bool
		RecoveryFilePath     string
		ChangedSinceRecovery bool
	}

	// ChangeType tells subscribers what part of the model changed.
	ChangeType int

	ChangeSeverity int

	gestureOwner int
)

const (
	ProjectChange ChangeType = 1 << iota
	TransportChange
	LoopChange
	ViewChange
	SelectionChange
	AlertChange
	NoChange ChangeType = 0
)

const (
	MajorChange ChangeSeverity = iota
	MinorChange
)

const (
	noGesture gestureOwner = iota
	loopGestureActive
	noteGestureActive
)

const maxUndo = 64

// NewModel creates a model editing an empty project. engine may be nil, in
// which case playback is unavailable but editing works; log may be nil to use
// the standard logrus logger.
func NewModel(broker *Broker, engine daw.SoundEngine, log logrus.FieldLogger, recoveryFilePath string) *Model {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Model{
		broker:      broker,
		engine:      engine,
		log:         log,
		subscribers: map[int]func(ChangeType){},
	}
	m.d.Project = defaultProject()
	m.d.RecoveryFilePath = recoveryFilePath
	m.view = defaultView()
	m.loop = defaultLoop()
	m.sched = makeScheduler()
	m.keyBindings = defaultKeyBindingMap()
	return m
}

func defaultProject() daw.Project {
	p := daw.NewProject("Untitled")
	p.Tracks = []daw.Track{daw.NewTrack("Track 1")}
	return p
}

// Project returns a copy of the project being edited.
func (m *Model) Project() daw.Project { return m.d.Project.Copy() }

// SetProject replaces the project, e.g. after loading a file. Playback is
// stopped, a gesture in progress is cancelled, selections are cleared and the
// change can be undone.
func (m *Model) SetProject(p daw.Project) {
	m.Transport().Stop().Do()
	m.CancelGesture()
	defer m.change("SetProject", ProjectChange|SelectionChange, MajorChange)()
	p.Normalize()
	m.d.Project = p
	m.clearSelections()
	m.loop = defaultLoop()
	m.notify(LoopChange)
}

// FilePath is the file the project was loaded from or saved to.
func (m *Model) FilePath() string { return m.d.FilePath }

func (m *Model) ChangedSinceSave() bool { return m.d.ChangedSinceSave }

// Subscribe registers f to be called after every change of the model, with
// the kinds of the change. The returned function unsubscribes.
func (m *Model) Subscribe(f func(ChangeType)) (unsubscribe func()) {
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = f
	return func() { delete(m.subscribers, id) }
}

func (m *Model) notify(t ChangeType) {
	if t == NoChange || m.changeLevel > 0 {
		m.changeType |= t
		return
	}
	for _, f := range m.subscribers {
		f(t)
	}
}

// ProcessMsg applies a message received from the Broker.
func (m *Model) ProcessMsg(msg MsgToModel) {
	if msg.HasPosition && !m.stale(msg) {
		m.applyPosition(msg.Position)
	}
	switch e := msg.Data.(type) {
	case Alert:
		m.Alerts().AddAlert(e)
	case nil:
	default:
		m.log.WithField("type", e).Debug("ignoring unknown message")
	}
}

// SetTextInputFocused tells the model that a text input has the keyboard;
// keyboard shortcuts and note nudging are ignored meanwhile.
func (m *Model) SetTextInputFocused(focused bool) { m.textInputFocused = focused }

// change snapshots the model data for undo. Use as
//
//	defer m.change("Kind", ProjectChange, MajorChange)()
//
// Nested changes collapse into the outermost one. Setting m.changeCancel
// restores the snapshot. Consecutive minor changes of the same kind share
// one undo entry.
func (m *Model) change(kind string, t ChangeType, severity ChangeSeverity) func() {
	if m.changeLevel == 0 {
		m.changeSnapshot = m.d.Copy()
		m.changeCancel = false
		m.changeType = NoChange
	}
	m.changeLevel++
	m.changeType |= t
	return func() {
		m.changeLevel--
		if m.changeLevel > 0 {
			return
		}
		if m.changeCancel {
			m.d = m.changeSnapshot
			m.changeCancel = false
			return
		}
		if severity == MajorChange || m.prevUndoKind != kind {
			m.pushUndo(m.changeSnapshot)
		}
		m.prevUndoKind = kind
		m.d.ChangedSinceSave = true
		m.d.ChangedSinceRecovery = true
		m.notify(m.changeType)
	}
}

func (m *Model) pushUndo(snapshot modelData) {
	m.undoStack = append(m.undoStack, snapshot)
	if len(m.undoStack) > maxUndo {
		m.undoStack = m.undoStack[len(m.undoStack)-maxUndo:]
	}
	m.redoStack = m.redoStack[:0]
}

func (d *modelData) Copy() modelData {
	ret := *d
	ret.Project = d.Project.Copy()
	return ret
}

// beginGesture claims the pointer for one gesture. Only one gesture, loop
// handle or note, may be active at a time.
func (m *Model) beginGesture(g gestureOwner) bool {
	if m.gesture != noGesture {
		return false
	}
	m.gesture = g
	return true
}

func (m *Model) endGesture() { m.gesture = noGesture }

// GestureActive reports whether a pointer gesture is in progress.
func (m *Model) GestureActive() bool { return m.gesture != noGesture }

// CancelGesture aborts the gesture in progress, restoring the state from
// before it started. Returns false if there was nothing to cancel.
func (m *Model) CancelGesture() bool {
	switch m.gesture {
	case loopGestureActive:
		m.Loop().cancelGesture()
		return true
	case noteGestureActive:
		m.Notes().cancelGesture()
		return true
	}
	return false
}

func (m *Model) currentBeats() float64 {
	return daw.SecondsToBeats(m.transport.currentTime, m.d.Project.Tempo)
}
