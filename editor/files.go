package editor

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/engine"
	"github.com/soliddaw/daw/jmon"
	"github.com/soliddaw/daw/midifile"
)

// renderTail is rendered after the end of the last clip, so that releases
// are not cut.
const renderTail = 2 // seconds

// ReadProjectFile loads a project, choosing the format from the file name:
// .mid and .midi are Standard MIDI Files, .jmon is JMON, anything else is a
// native project in JSON or YAML.
func ReadProjectFile(path string, b []byte) (daw.Project, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return midifile.Import(bytes.NewReader(b), strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	case ".jmon":
		return jmon.Read(bytes.NewReader(b))
	}
	return UnmarshalProject(b)
}

// UnmarshalProject parses a native project, trying JSON first and then YAML.
// Both parse and validation failures are tagged daw.MalformedImport.
func UnmarshalProject(b []byte) (daw.Project, error) {
	var p daw.Project
	var v volumes
	if errJSON := json.Unmarshal(b, &p); errJSON == nil {
		json.Unmarshal(b, &v)
	} else {
		p = daw.Project{}
		if errYaml := yaml.Unmarshal(b, &p); errYaml != nil {
			return daw.Project{}, fault.Wrap(fmt.Errorf("%v / %v", errYaml, errJSON),
				ftag.With(daw.MalformedImport),
				fmsg.WithDesc("could not unmarshal project", "The file is not a valid JSON or YAML project"))
		}
		yaml.Unmarshal(b, &v)
	}
	v.apply(&p)
	p.Normalize()
	if err := p.Validate(); err != nil {
		return daw.Project{}, err
	}
	return p, nil
}

// volumes tells which volumes a project file sets. Missing ones play at
// daw.DefaultVolume instead of being silent.
type volumes struct {
	MasterVolume *float64 `json:"masterVolume" yaml:"masterVolume"`
	Tracks       []struct {
		Volume *float64 `json:"volume" yaml:"volume"`
	} `json:"tracks" yaml:"tracks"`
}

func (v volumes) apply(p *daw.Project) {
	if v.MasterVolume == nil {
		p.MasterVolume = daw.DefaultVolume
	}
	for i := range p.Tracks {
		if i >= len(v.Tracks) || v.Tracks[i].Volume == nil {
			p.Tracks[i].Volume = daw.DefaultVolume
		}
	}
}

// WriteProjectFile writes the project in the format chosen by the file name,
// like ReadProjectFile. Native projects are YAML unless the name ends with
// .json.
func WriteProjectFile(path string, w io.Writer, p daw.Project) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return midifile.Export(p, w)
	case ".jmon":
		return jmon.Write(w, p)
	case ".json":
		contents, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(contents)
		return err
	}
	contents, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	_, err = w.Write(contents)
	return err
}

// ReadProject loads a project from r, replacing the current one. If r is a
// file, its name decides the format and the model remembers the path.
func (m *Model) ReadProject(r io.ReadCloser) bool {
	b, err := io.ReadAll(r)
	if err != nil {
		m.Alerts().Add(fmt.Sprintf("Error reading a project file: %v", err), Error)
		return false
	}
	if err := r.Close(); err != nil {
		m.Alerts().Add(fmt.Sprintf("Error reading a project file: %v", err), Error)
		return false
	}
	path := ""
	if f, ok := r.(*os.File); ok {
		path = f.Name()
	}
	p, err := ReadProjectFile(path, b)
	if err != nil {
		m.Alerts().Add(userMessage("Error loading a project file", err), Error)
		return false
	}
	m.SetProject(p)
	if path != "" {
		m.d.FilePath = path
		// a project read from a file is persisted, so closing loses nothing
		m.d.ChangedSinceSave = false
	}
	return true
}

// WriteProject saves the project to w. If w is a file, its name decides the
// format and the model remembers the path.
func (m *Model) WriteProject(w io.WriteCloser) bool {
	path := ""
	if f, ok := w.(*os.File); ok {
		path = f.Name()
	}
	if err := WriteProjectFile(path, w, m.d.Project); err != nil {
		m.Alerts().Add(fmt.Sprintf("Error writing a project file: %v", err), Error)
		w.Close()
		return false
	}
	if err := w.Close(); err != nil {
		m.Alerts().Add(fmt.Sprintf("Error writing a project file: %v", err), Error)
		return false
	}
	if path != "" {
		m.d.FilePath = path
		m.d.ChangedSinceSave = false
	}
	return true
}

// ImportJMON replaces the project with a JMON document. A malformed document
// is rejected as a whole.
func (m *Model) ImportJMON(r io.Reader) bool {
	p, err := jmon.Read(r)
	if err != nil {
		m.Alerts().Add(userMessage("Import failed", err), Error)
		return false
	}
	m.SetProject(p)
	return true
}

// ExportJMON writes the project as a JMON document.
func (m *Model) ExportJMON(w io.Writer) error {
	return jmon.Write(w, m.d.Project)
}

// WriteWav renders the project in the background and writes it as a .wav
// file. Progress and errors are reported as alerts through the broker.
func (m *Model) WriteWav(w io.WriteCloser, pcm16 bool) {
	project := m.d.Project.Copy()
	seconds := RenderLength(project)
	b := make([]byte, 32+2)
	rand.Read(b)
	name := fmt.Sprintf("%x", b)[2 : 32+2]
	send := func(msg string, priority AlertPriority) {
		if m.broker == nil {
			return
		}
		TrySend(m.broker.ToModel, MsgToModel{Data: Alert{Message: msg, Priority: priority, Name: name, Duration: defaultAlertDuration}})
	}
	go func() {
		defer w.Close()
		buffer, err := Render(project, seconds, m.log, func(p float32) {
			send(fmt.Sprintf("Exporting project: %.0f%%", p*100), Info)
		})
		if err != nil {
			send(fmt.Sprintf("Error rendering the project during export: %v", err), Error)
			return
		}
		if err := daw.WriteWav(w, buffer, pcm16); err != nil {
			send(fmt.Sprintf("Error writing .wav: %v", err), Error)
			return
		}
		send("Export finished", Info)
	}()
}

// RenderLength returns how many seconds Render needs for the whole project.
func RenderLength(p daw.Project) float64 {
	end, _ := p.ContentEnd()
	return daw.BeatsToSeconds(end, p.Tempo) + renderTail
}

// Render plays the project from the start on an offline engine and returns
// the first seconds of the output. progress, if not nil, is called with the
// fraction done.
func Render(p daw.Project, seconds float64, log logrus.FieldLogger, progress func(float32)) (daw.AudioBuffer, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := engine.New(nil, log)
	if err := e.Initialize(context.Background()); err != nil {
		return nil, err
	}
	defer e.Dispose()
	s := makeScheduler()
	s.schedule(e, &p, log)
	e.SetTempo(p.Tempo)
	e.Start()
	return e.RenderFrames(int(seconds*daw.SampleRate), progress)
}

// userMessage prefers the user-facing description of a fault error.
func userMessage(prefix string, err error) string {
	if issue := daw.UserMessage(err); issue != "" {
		return prefix + ": " + issue
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}
