package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
)

type (
	// Server exposes an editor model over HTTP, for browser front ends that
	// keep their timeline in sync with a model running next to the audio
	// device. The model is only touched with mu held; Run applies the
	// messages from the broker the same way.
	Server struct {
		mu     sync.Mutex
		model  *editor.Model
		broker *editor.Broker
		log    logrus.FieldLogger

		saveRecovery func(f func())
		unsubscribe  func()
		alertsShown  time.Time
	}

	transportState struct {
		Playing         bool     `json:"playing"`
		Paused          bool     `json:"paused"`
		Recording       bool     `json:"recording"`
		Looping         bool     `json:"looping"`
		EngineAvailable bool     `json:"engineAvailable"`
		Seconds         float64  `json:"seconds"`
		Beats           float64  `json:"beats"`
		Position        string   `json:"position"`
		Tempo           float64  `json:"tempo"`
		Loop            loopJSON `json:"loop"`
	}

	loopJSON struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}

	positionRequest struct {
		Seconds *float64 `json:"seconds"`
		Beats   *float64 `json:"beats"`
		Position string  `json:"position"`
	}

	clipRequest struct {
		Start *float64 `json:"start"`
		Name  *string  `json:"name"`
		Color *string  `json:"color"`
	}

	alertJSON struct {
		Name     string `json:"name,omitempty"`
		Priority string `json:"priority"`
		Message  string `json:"message"`
	}
)

// NewServer serves m. Project changes are saved to the recovery file of the
// model once they have settled for recoveryDelay.
func NewServer(m *editor.Model, broker *editor.Broker, log logrus.FieldLogger, recoveryDelay time.Duration) *Server {
	s := &Server{
		model:        m,
		broker:       broker,
		log:          log.WithField("component", "server"),
		saveRecovery: debounce.New(recoveryDelay),
	}
	s.unsubscribe = m.Subscribe(func(t editor.ChangeType) {
		if t&editor.ProjectChange != 0 {
			s.saveRecovery(s.writeRecovery)
		}
	})
	return s
}

func (s *Server) writeRecovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.model.History().ChangedSinceRecovery() {
		return
	}
	if err := s.model.History().SaveRecovery(); err != nil {
		s.log.WithError(err).Warn("could not save recovery file")
		return
	}
	s.log.Debug("recovery file saved")
}

// Run applies the messages from the broker to the model until ctx is done.
func (s *Server) Run(ctx context.Context) {
	defer s.unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.broker.ToModel:
			s.mu.Lock()
			s.model.ProcessMsg(msg)
			s.mu.Unlock()
		}
	}
}

// Handler returns the routes, allowing cross-origin requests from origins.
func (s *Server) Handler(origins []string) http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/project", s.getProject).Methods(http.MethodGet)
	router.HandleFunc("/project", s.putProject).Methods(http.MethodPut)
	router.HandleFunc("/project.{format:yml|json|jmon|mid}", s.exportProject).Methods(http.MethodGet)
	router.HandleFunc("/project.wav", s.renderProject).Methods(http.MethodGet)
	router.HandleFunc("/transport", s.getTransport).Methods(http.MethodGet)
	router.HandleFunc("/transport/position", s.putPosition).Methods(http.MethodPut)
	router.HandleFunc("/transport/tempo", s.putTempo).Methods(http.MethodPut)
	router.HandleFunc("/transport/{action:play|pause|stop|playpause|record|loop}", s.postTransport).Methods(http.MethodPost)
	router.HandleFunc("/loop", s.putLoop).Methods(http.MethodPut)
	router.HandleFunc("/clips/{id}", s.putClip).Methods(http.MethodPut)
	router.HandleFunc("/clips/{id}", s.deleteClip).Methods(http.MethodDelete)
	router.HandleFunc("/clips/{id}/duplicate", s.duplicateClip).Methods(http.MethodPost)
	router.HandleFunc("/history/{action:undo|redo|clear}", s.postHistory).Methods(http.MethodPost)
	router.HandleFunc("/keys", s.postKey).Methods(http.MethodPost)
	router.HandleFunc("/alerts", s.getAlerts).Methods(http.MethodGet)
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("daw server. Point a timeline front end here to use it."))
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p := s.model.Project()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) putProject(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := editor.UnmarshalProject(b)
	if err != nil {
		http.Error(w, daw.UserMessage(err), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.model.SetProject(p)
	p = s.model.Project()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) exportProject(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	s.mu.Lock()
	p := s.model.Project()
	s.mu.Unlock()
	var buf bytes.Buffer
	if err := editor.WriteProjectFile("project."+format, &buf, p); err != nil {
		http.Error(w, fmt.Sprintf("Error exporting project: %v", err), http.StatusInternalServerError)
		return
	}
	switch format {
	case "mid":
		w.Header().Set("Content-Type", "audio/midi")
	case "yml":
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.Write(buf.Bytes())
}

// renderProject renders outside the lock; the model keeps serving meanwhile.
func (s *Server) renderProject(w http.ResponseWriter, r *http.Request) {
	pcm16, _ := strconv.ParseBool(r.URL.Query().Get("pcm16"))
	s.mu.Lock()
	p := s.model.Project()
	s.mu.Unlock()
	buf, err := editor.Render(p, editor.RenderLength(p), s.log, nil)
	if err != nil {
		http.Error(w, daw.UserMessage(err), http.StatusInternalServerError)
		return
	}
	var wav bytes.Buffer
	if err := daw.WriteWav(&wav, buf, pcm16); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Write(wav.Bytes())
}

func (s *Server) getTransport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	state := s.transportState()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

// transportState must be called with mu held.
func (s *Server) transportState() transportState {
	t := s.model.Transport()
	l := s.model.Loop().Value()
	return transportState{
		Playing:         t.IsPlaying(),
		Paused:          t.IsPaused(),
		Recording:       t.IsRecording(),
		Looping:         t.IsLooping().Value(),
		EngineAvailable: t.EngineAvailable(),
		Seconds:         t.Position(),
		Beats:           t.Beats(),
		Position:        t.BarsBeatsTicks().String(),
		Tempo:           t.Tempo().Value(),
		Loop:            loopJSON{Start: l.Start, End: l.End},
	}
}

func (s *Server) postTransport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.model.Transport()
	var action editor.Action
	switch mux.Vars(r)["action"] {
	case "play":
		action = t.Play()
	case "pause":
		action = t.Pause()
	case "stop":
		action = t.Stop()
	case "playpause":
		action = t.PlayPause()
	case "record":
		action = t.Record()
	case "loop":
		action = t.ToggleLoop()
	}
	if !action.Enabled() {
		writeJSON(w, http.StatusConflict, s.transportState())
		return
	}
	action.Do()
	writeJSON(w, http.StatusOK, s.transportState())
}

func (s *Server) putPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.model.Transport()
	switch {
	case req.Seconds != nil:
		t.SetPosition(*req.Seconds)
	case req.Beats != nil:
		t.SetBeats(*req.Beats)
	case req.Position != "":
		bbt, err := daw.ParseBarsBeatsTicks(req.Position)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		t.SetBeats(bbt.Beats(t.TimeSignature().BeatsPerBar(), daw.TicksPerBeat))
	default:
		http.Error(w, "seconds, beats or position required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.transportState())
}

func (s *Server) putTempo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BPM float64 `json:"bpm"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.Transport().Tempo().SetValue(req.BPM)
	writeJSON(w, http.StatusOK, s.transportState())
}

func (s *Server) putLoop(w http.ResponseWriter, r *http.Request) {
	var req loopJSON
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.model.Loop()
	// move the end first when growing, so the start never crosses it
	if req.Start >= l.Value().End {
		l.SetEnd(req.End)
		l.SetStart(req.Start)
	} else {
		l.SetStart(req.Start)
		l.SetEnd(req.End)
	}
	writeJSON(w, http.StatusOK, s.transportState())
}

func (s *Server) putClip(w http.ResponseWriter, r *http.Request) {
	var req clipRequest
	if !readJSON(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	clips := s.model.Clips()
	if _, ok := clips.Clip(id); !ok {
		http.Error(w, "no such clip", http.StatusNotFound)
		return
	}
	if req.Start != nil {
		clips.Move(id, *req.Start)
	}
	if req.Name != nil {
		clips.Rename(id, *req.Name)
	}
	if req.Color != nil {
		clips.SetColor(id, *req.Color)
	}
	c, _ := clips.Clip(id)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteClip(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ok := s.model.Clips().Delete(mux.Vars(r)["id"])
	s.mu.Unlock()
	if !ok {
		http.Error(w, "no such clip", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) duplicateClip(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.model.Clips().Duplicate(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "no such clip", http.StatusNotFound)
		return
	}
	c, _ := s.model.Clips().Clip(id)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) postHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var action editor.Action
	switch mux.Vars(r)["action"] {
	case "undo":
		action = s.model.History().Undo()
	case "redo":
		action = s.model.History().Redo()
	case "clear":
		action = s.model.History().ClearUndoHistory()
	}
	if !action.Enabled() {
		w.WriteHeader(http.StatusConflict)
		return
	}
	action.Do()
	writeJSON(w, http.StatusOK, s.model.Project())
}

func (s *Server) postKey(w http.ResponseWriter, r *http.Request) {
	var e editor.KeyEvent
	if !readJSON(w, r, &e) {
		return
	}
	s.mu.Lock()
	handled := s.model.KeyEvent(e)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"handled": handled})
}

func (s *Server) getAlerts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if !s.alertsShown.IsZero() {
		s.model.Alerts().Update(now.Sub(s.alertsShown))
	}
	s.alertsShown = now
	alerts := []alertJSON{}
	for a := range s.model.Alerts().Iterate() {
		alerts = append(alerts, alertJSON{Name: a.Name, Priority: a.Priority.String(), Message: a.Message})
	}
	writeJSON(w, http.StatusOK, alerts)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Could not unmarshal request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
