package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clip-tracker/internal/logging"
	"clip-tracker/internal/models"
	"clip-tracker/internal/player"
	"clip-tracker/internal/service"
	"clip-tracker/internal/session"
	"clip-tracker/internal/submission"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type stubPlayer struct {
	mu       sync.Mutex
	position float64
}

func (p *stubPlayer) set(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pos
}

func (p *stubPlayer) CurrentPosition() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, nil
}

func (p *stubPlayer) TogglePlayback() error     { return nil }
func (p *stubPlayer) SeekAndPlay(float64) error { return nil }
func (p *stubPlayer) IsPlaying() (bool, error)  { return false, nil }

type testServer struct {
	router *mux.Router
	svc    *service.SessionService
}

func newTestServer(t *testing.T, sinks ...submission.Sink) *testServer {
	t.Helper()
	if len(sinks) == 0 {
		sinks = []submission.Sink{&submission.LogSink{Logger: zerolog.Nop()}}
	}
	svc := &service.SessionService{
		Sessions:  session.NewManager(session.Config{PollInterval: time.Hour, Logger: zerolog.Nop()}),
		Sinks:     submission.Multi(sinks),
		Downloads: &submission.Downloader{Logger: zerolog.Nop()},
		Logger:    zerolog.Nop(),
	}
	t.Cleanup(svc.Sessions.CloseAll)

	h := &EditorHandler{Service: svc, WS: player.DefaultWSConfig()}
	r := mux.NewRouter()
	r.Use(logging.HTTPMiddleware(zerolog.Nop()))
	h.Routes(r.PathPrefix("/api/v1").Subrouter())
	return &testServer{router: r, svc: svc}
}

type safeBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	var view models.SessionView
	if code := s.do(t, "POST", "/sessions", nil, &view); code != http.StatusCreated {
		t.Fatalf("create: status %d", code)
	}
	return view.SessionID
}

func TestMarkingFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	var view models.SessionView
	code := srv.do(t, "PUT", "/sessions/"+id+"/video", map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"}, &view)
	if code != http.StatusOK || view.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("load video: %d %+v", code, view)
	}

	// not ready yet
	if code := srv.do(t, "POST", "/sessions/"+id+"/marking/start", nil, nil); code != http.StatusConflict {
		t.Fatalf("start before ready: status %d, want 409", code)
	}

	sess, _ := srv.svc.GetSession(id)
	p := &stubPlayer{}
	sess.MarkPlayerReady("dQw4w9WgXcQ", p)

	p.set(12)
	if code := srv.do(t, "POST", "/sessions/"+id+"/marking/start", nil, &view); code != http.StatusOK {
		t.Fatalf("start: status %d", code)
	}
	if view.Marking != models.MarkingRecording || *view.PendingStart != 12 {
		t.Errorf("view = %+v", view)
	}
	if code := srv.do(t, "POST", "/sessions/"+id+"/marking/start", nil, nil); code != http.StatusConflict {
		t.Errorf("double start: status %d, want 409", code)
	}

	p.set(45.5)
	var ended struct {
		Created bool         `json:"created"`
		Clip    *models.Clip `json:"clip"`
	}
	if code := srv.do(t, "POST", "/sessions/"+id+"/marking/end", nil, &ended); code != http.StatusOK {
		t.Fatalf("end: status %d", code)
	}
	if !ended.Created || ended.Clip == nil || ended.Clip.StartTime != 12 || ended.Clip.EndTime != 45.5 {
		t.Fatalf("end = %+v", ended)
	}

	// a zero-length mark is reported, not failed
	srv.do(t, "POST", "/sessions/"+id+"/marking/start", nil, nil)
	ended.Clip = nil
	if code := srv.do(t, "POST", "/sessions/"+id+"/marking/end", nil, &ended); code != http.StatusOK || ended.Created || ended.Clip != nil {
		t.Errorf("zero-length end: %d %+v", code, ended)
	}

	var list struct {
		Clips []models.Clip `json:"clips"`
	}
	if code := srv.do(t, "GET", "/sessions/"+id+"/clips", nil, &list); code != http.StatusOK || len(list.Clips) != 1 {
		t.Errorf("clips: %d %+v", code, list)
	}
}

func TestClipEditingOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	sess, _ := srv.svc.GetSession(id)
	sess.LoadVideo("abc")
	sess.AddClip(models.Clip{ID: "c1", StartTime: 5, EndTime: 10})

	var list struct {
		Clips []models.Clip `json:"clips"`
	}
	code := srv.do(t, "PATCH", "/sessions/"+id+"/clips/c1", map[string]string{"title": "intro"}, &list)
	if code != http.StatusOK || len(list.Clips) != 1 || list.Clips[0].Title != "intro" {
		t.Fatalf("update: %d %+v", code, list)
	}

	if code := srv.do(t, "PATCH", "/sessions/"+id+"/clips/nope", map[string]string{"title": "x"}, nil); code != http.StatusNotFound {
		t.Errorf("update missing: status %d, want 404", code)
	}
	if code := srv.do(t, "PATCH", "/sessions/"+id+"/clips/c1", map[string]string{"title": strings.Repeat("a", 300)}, nil); code != http.StatusBadRequest {
		t.Errorf("long title: status %d, want 400", code)
	}

	if code := srv.do(t, "POST", "/sessions/"+id+"/clips/c1/preview", nil, nil); code != http.StatusConflict {
		t.Errorf("preview without player: status %d, want 409", code)
	}

	var resp struct {
		Submission models.Submission    `json:"submission"`
		Receipts   []submission.Receipt `json:"receipts"`
	}
	if code := srv.do(t, "POST", "/sessions/"+id+"/submit", nil, &resp); code != http.StatusOK {
		t.Fatalf("submit: status %d", code)
	}
	if resp.Submission.VideoID != "abc" || len(resp.Submission.Clips) != 1 || resp.Submission.Clips[0].Title != "intro" {
		t.Errorf("submission = %+v", resp.Submission)
	}

	for i := 0; i < 2; i++ {
		if code := srv.do(t, "DELETE", "/sessions/"+id+"/clips/c1", nil, &list); code != http.StatusOK || len(list.Clips) != 0 {
			t.Errorf("delete #%d: %d %+v", i+1, code, list)
		}
	}

	if code := srv.do(t, "POST", "/sessions/"+id+"/submit", nil, nil); code != http.StatusBadRequest {
		t.Errorf("empty submit: status %d, want 400", code)
	}
}

func TestErrorsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	tests := []struct {
		method, path string
		body         interface{}
		want         int
	}{
		{"GET", "/sessions/missing", nil, http.StatusNotFound},
		{"POST", "/sessions/missing/marking/start", nil, http.StatusNotFound},
		{"PUT", "/sessions/" + id + "/video", map[string]string{"url": "https://vimeo.com/1"}, http.StatusBadRequest},
		{"PUT", "/sessions/" + id + "/video", map[string]string{"url": ""}, http.StatusBadRequest},
		{"POST", "/sessions/" + id + "/marking/end", nil, http.StatusConflict},
		{"POST", "/sessions/" + id + "/playback/toggle", nil, http.StatusConflict},
		{"POST", "/downloads", map[string]interface{}{"video_id": "abc", "start_time": 5, "end_time": 1}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		var body map[string]string
		if code := srv.do(t, tt.method, tt.path, tt.body, &body); code != tt.want {
			t.Errorf("%s %s: status %d, want %d", tt.method, tt.path, code, tt.want)
		}
		if body["error"] == "" {
			t.Errorf("%s %s: no error message", tt.method, tt.path)
		}
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	var list map[string][]string
	if code := srv.do(t, "GET", "/sessions", nil, &list); code != http.StatusOK || len(list["sessions"]) != 1 {
		t.Fatalf("list: %d %v", code, list)
	}

	var view models.SessionView
	if code := srv.do(t, "GET", "/sessions/"+id, nil, &view); code != http.StatusOK || view.SessionID != id || view.Marking != models.MarkingIdle {
		t.Fatalf("get: %d %+v", code, view)
	}

	if code := srv.do(t, "DELETE", "/sessions/"+id, nil, nil); code != http.StatusOK {
		t.Fatalf("delete: status %d", code)
	}
	if code := srv.do(t, "GET", "/sessions/"+id, nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete: status %d", code)
	}
}

func TestDownloadOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	var ticket submission.Ticket
	code := srv.do(t, "POST", "/downloads", submission.DownloadRequest{VideoID: "abc", StartTime: 12, EndTime: 45.5, Title: "chorus"}, &ticket)
	if code != http.StatusAccepted {
		t.Fatalf("status %d", code)
	}
	if ticket.Message != `Preparing download for "chorus"` || ticket.Description != "Time range: 00:12 - 00:45" {
		t.Errorf("ticket = %+v", ticket)
	}
}

func TestPlayerWebSocket(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)
	srv.do(t, "PUT", "/sessions/"+id+"/video", map[string]string{"url": "https://youtu.be/abc"}, nil)

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/sessions/" + id + "/player"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var cmd player.Command
	if err := conn.ReadJSON(&cmd); err != nil {
		t.Fatalf("read: %v", err)
	}
	if cmd.Type != player.CmdLoad || cmd.VideoID != "abc" {
		t.Fatalf("command = %+v", cmd)
	}

	conn.WriteJSON(player.ClientMessage{Type: player.MsgReady, VideoID: "abc"})
	conn.WriteJSON(player.ClientMessage{Type: player.MsgState, VideoID: "abc", Position: 17})

	sess, _ := srv.svc.GetSession(id)
	deadline := time.Now().Add(2 * time.Second)
	for !sess.View().PlayerReady {
		if time.Now().After(deadline) {
			t.Fatal("session never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}

	deadline = time.Now().Add(2 * time.Second)
	for {
		if err := sess.StartMarking(); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("could not start marking")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if start := sess.View().PendingStart; start == nil {
		t.Fatal("no pending start")
	}
}

type downSink struct{}

func (downSink) Name() string { return "down" }

func (downSink) Submit(context.Context, models.Submission) (submission.Receipt, error) {
	return submission.Receipt{}, errors.New("connection refused")
}

func TestSubmitSinkFailureIsLoggedAsBadGateway(t *testing.T) {
	srv := newTestServer(t, downSink{})
	logs := &safeBuffer{buf: &bytes.Buffer{}}
	srv.router.Use(logging.HTTPMiddleware(zerolog.New(logs)))

	id := srv.createSession(t)
	sess, _ := srv.svc.GetSession(id)
	sess.LoadVideo("abc")
	sess.AddClip(models.Clip{ID: "c1", StartTime: 1, EndTime: 2})

	var body map[string]string
	if code := srv.do(t, "POST", "/sessions/"+id+"/submit", nil, &body); code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", code)
	}
	if !strings.Contains(body["error"], "down: connection refused") {
		t.Errorf("error = %q", body["error"])
	}
	if out := logs.String(); !strings.Contains(out, `"message":"request failed"`) || !strings.Contains(out, `"status":502`) {
		t.Errorf("failure not logged through the request logger:\n%s", out)
	}
}

func TestConnectPlayerRequiresUpgrade(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createSession(t)

	if code := srv.do(t, "GET", "/sessions/"+id+"/player", nil, nil); code != http.StatusBadRequest {
		t.Errorf("plain GET: status %d, want 400", code)
	}
	if code := srv.do(t, "GET", "/sessions/missing/player", nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown session: status %d, want 404", code)
	}

	sess, _ := srv.svc.GetSession(id)
	if sess.View().PlayerReady {
		t.Error("failed upgrade attached a player")
	}
}
