package player

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestServeRoundTrip(t *testing.T) {
	ready := make(chan string, 1)
	remote := NewRemote(func(videoID string, h Handle) { ready <- videoID }, zerolog.Nop())
	done := make(chan struct{})

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		Serve(conn, remote, DefaultWSConfig(), zerolog.Nop())
		close(done)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := remote.Load("abc"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read command: %v", err)
	}
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Type != CmdLoad || cmd.VideoID != "abc" {
		t.Fatalf("command = %+v", cmd)
	}

	if err := client.WriteJSON(ClientMessage{Type: MsgReady, VideoID: "abc"}); err != nil {
		t.Fatalf("write ready: %v", err)
	}
	select {
	case id := <-ready:
		if id != "abc" {
			t.Errorf("ready for %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ready never fired")
	}

	client.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after disconnect")
	}
	if _, err := remote.CurrentPosition(); err == nil {
		t.Error("remote usable after disconnect")
	}
}
