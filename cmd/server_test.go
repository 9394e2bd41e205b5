package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliddaw/daw"
	"github.com/soliddaw/daw/editor"
	"github.com/soliddaw/daw/engine"
)

type testServer struct {
	*httptest.Server
	t     *testing.T
	model *editor.Model
}

func newTestServer(t *testing.T, origins []string, recoveryFile string) *testServer {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	broker := editor.NewBroker()
	m := editor.NewModel(broker, engine.New(nil, logger), logger, recoveryFile)
	s := NewServer(m, broker, logger, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	ts := httptest.NewServer(s.Handler(origins))
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, t: t, model: m}
}

func (ts *testServer) do(method, path string, body any) (*http.Response, []byte) {
	ts.t.Helper()
	var r *bytes.Reader
	switch b := body.(type) {
	case nil:
		r = bytes.NewReader(nil)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		j, err := json.Marshal(b)
		require.NoError(ts.t, err)
		r = bytes.NewReader(j)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(ts.t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func (ts *testServer) transport(method, path string, body any) (int, transportState) {
	ts.t.Helper()
	resp, b := ts.do(method, path, body)
	var state transportState
	require.NoError(ts.t, json.Unmarshal(b, &state), string(b))
	return resp.StatusCode, state
}

func serverProject() daw.Project {
	p := daw.NewProject("Served")
	tr := daw.NewTrack("Lead")
	tr.Clips = []daw.Clip{
		daw.NewMidiClip(tr.ID, 0, 4, daw.NewNote(60, 0, 1, 0.8), daw.NewNote(64, 1, 1, 0.8)),
		daw.NewMidiClip(tr.ID, 8, 4, daw.NewNote(67, 0, 2, 1)),
	}
	p.Tracks = []daw.Track{tr}
	return p
}

func (ts *testServer) putProject() daw.Project {
	ts.t.Helper()
	resp, b := ts.do(http.MethodPut, "/project", serverProject())
	require.Equal(ts.t, http.StatusOK, resp.StatusCode, string(b))
	var p daw.Project
	require.NoError(ts.t, json.Unmarshal(b, &p))
	return p
}

func TestServerProject(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, nil, "")
	resp, b := ts.do(http.MethodGet, "/project", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains(string(b), `"name":"Untitled"`)

	p := ts.putProject()
	assert.Equal("Served", p.Name)
	assert.Len(p.Tracks[0].Clips, 2)

	resp, b = ts.do(http.MethodGet, "/project.yml", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains(string(b), "name: Served")
	resp, b = ts.do(http.MethodGet, "/project.mid", nil)
	assert.Equal("audio/midi", resp.Header.Get("Content-Type"))
	assert.Equal("MThd", string(b[:4]))

	resp, b = ts.do(http.MethodPut, "/project", `{"name": "Bad", "tempo": -1, "timeSignature": {"numerator": 4, "denominator": 4}}`)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Contains(string(b), "The project is invalid")
	resp, b = ts.do(http.MethodPut, "/project", `{not json`)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	assert.Contains(string(b), "not a valid JSON or YAML project")
	assert.Equal("Served", ts.model.Project().Name)
}

func TestServerTransport(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, nil, "")
	ts.putProject()

	code, state := ts.transport(http.MethodPost, "/transport/pause", nil)
	assert.Equal(http.StatusConflict, code)
	assert.False(state.Playing)

	code, state = ts.transport(http.MethodPost, "/transport/play", nil)
	assert.Equal(http.StatusOK, code)
	assert.True(state.Playing)
	assert.True(state.EngineAvailable)
	_, state = ts.transport(http.MethodPost, "/transport/pause", nil)
	assert.True(state.Paused)
	_, state = ts.transport(http.MethodPost, "/transport/stop", nil)
	assert.False(state.Playing)
	assert.Equal(0.0, state.Seconds)

	_, state = ts.transport(http.MethodPut, "/transport/tempo", map[string]float64{"bpm": 5000})
	assert.Equal(999.0, state.Tempo)
	_, state = ts.transport(http.MethodPut, "/transport/tempo", map[string]float64{"bpm": 60})
	assert.Equal(60.0, state.Tempo)

	_, state = ts.transport(http.MethodPut, "/transport/position", map[string]string{"position": "2:1:000"})
	assert.Equal(4.0, state.Beats)
	assert.Equal(4.0, state.Seconds)
	assert.Equal("2:1:000", state.Position)
	_, state = ts.transport(http.MethodPut, "/transport/position", map[string]float64{"seconds": -3})
	assert.Equal(0.0, state.Seconds)
	resp, _ := ts.do(http.MethodPut, "/transport/position", map[string]string{"position": "0:x"})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(http.MethodPut, "/transport/position", "{}")
	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	_, state = ts.transport(http.MethodPost, "/transport/loop", nil)
	assert.True(state.Looping)
	// inferred from the clips, ending with the last one
	assert.Equal(loopJSON{Start: 0, End: 12}, state.Loop)
}

func TestServerWithoutEngine(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := editor.NewModel(editor.NewBroker(), nil, logger, "")
	s := NewServer(m, editor.NewBroker(), logger, time.Millisecond)
	ts := httptest.NewServer(s.Handler(nil))
	defer ts.Close()
	resp, err := ts.Client().Post(ts.URL+"/transport/play", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, err = ts.Client().Get(ts.URL + "/alerts")
	require.NoError(t, err)
	defer resp.Body.Close()
	var alerts []alertJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&alerts))
	if assert.Len(t, alerts, 1) {
		assert.Equal(t, "EngineUnavailable", alerts[0].Name)
		assert.Equal(t, "warning", alerts[0].Priority)
	}
}

func TestServerLoop(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, nil, "")
	_, state := ts.transport(http.MethodPut, "/loop", loopJSON{Start: 20, End: 24})
	assert.Equal(loopJSON{Start: 20, End: 24}, state.Loop)
	_, state = ts.transport(http.MethodPut, "/loop", loopJSON{Start: 2, End: 6})
	assert.Equal(loopJSON{Start: 2, End: 6}, state.Loop)
	// an empty region keeps one grid step
	_, state = ts.transport(http.MethodPut, "/loop", loopJSON{Start: 3, End: 3})
	assert.Equal(loopJSON{Start: 3, End: 3.25}, state.Loop)
}

func TestServerClips(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, nil, "")
	p := ts.putProject()
	first := p.Tracks[0].Clips[0]

	resp, b := ts.do(http.MethodPost, "/clips/"+first.ID+"/duplicate", nil)
	assert.Equal(http.StatusCreated, resp.StatusCode)
	var dup daw.Clip
	require.NoError(t, json.Unmarshal(b, &dup))
	assert.Equal(4.0, dup.Start)

	resp, b = ts.do(http.MethodPut, "/clips/"+dup.ID, map[string]any{"start": 16.1, "name": "Again"})
	assert.Equal(http.StatusOK, resp.StatusCode)
	var moved daw.Clip
	require.NoError(t, json.Unmarshal(b, &moved))
	assert.Equal(16.0, moved.Start)
	assert.Equal("Again", moved.Name)

	resp, _ = ts.do(http.MethodDelete, "/clips/"+dup.ID, nil)
	assert.Equal(http.StatusNoContent, resp.StatusCode)
	resp, _ = ts.do(http.MethodDelete, "/clips/"+dup.ID, nil)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(http.MethodPut, "/clips/missing", map[string]any{"name": "x"})
	assert.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/history/undo", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	_, ok := ts.model.Clips().Clip(dup.ID)
	assert.True(ok)
	resp, _ = ts.do(http.MethodPost, "/history/redo", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(http.MethodPost, "/history/redo", nil)
	assert.Equal(http.StatusConflict, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/history/clear", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(http.MethodPost, "/history/undo", nil)
	assert.Equal(http.StatusConflict, resp.StatusCode)
	resp, _ = ts.do(http.MethodPost, "/history/clear", nil)
	assert.Equal(http.StatusConflict, resp.StatusCode)
}

func TestServerKeys(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, nil, "")
	resp, b := ts.do(http.MethodPost, "/keys", editor.KeyEvent{Name: "Space"})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.JSONEq(`{"handled": true}`, string(b))
	_, state := ts.transport(http.MethodGet, "/transport", nil)
	assert.True(state.Playing)
	_, b = ts.do(http.MethodPost, "/keys", editor.KeyEvent{Name: "q", Alt: true})
	assert.JSONEq(`{"handled": false}`, string(b))
	resp, _ = ts.do(http.MethodPost, "/keys", "not json")
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestServerRender(t *testing.T) {
	ts := newTestServer(t, nil, "")
	p := daw.NewProject("Blip")
	tr := daw.NewTrack("Beep")
	tr.Clips = []daw.Clip{daw.NewMidiClip(tr.ID, 0, 1, daw.NewNote(69, 0, 0.25, 1))}
	p.Tracks = []daw.Track{tr}
	resp, _ := ts.do(http.MethodPut, "/project", p)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, b := ts.do(http.MethodGet, "/project.wav?pcm16=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, "RIFF", string(b[:4]))
	assert.Equal(t, "WAVE", string(b[8:12]))
}

func TestServerCORS(t *testing.T) {
	ts := newTestServer(t, []string{"http://front.example"}, "")
	for origin, want := range map[string]string{
		"http://front.example": "http://front.example",
		"http://other.example": "",
	} {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/transport", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.Header.Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestServerSavesRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery")
	ts := newTestServer(t, nil, path)
	ts.putProject()
	assert.Eventually(t, func() bool {
		b, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(b), "Served")
	}, 5*time.Second, 10*time.Millisecond)
}
