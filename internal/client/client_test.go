package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestFeedURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://127.0.0.1:3000", "ws://127.0.0.1:3000/ws", false},
		{"https://viz.example.com/", "wss://viz.example.com/ws", false},
		{"https://viz.example.com/kmeans", "wss://viz.example.com/kmeans/ws", false},
		{"ftp://nope", "", true},
	}
	for _, tt := range tests {
		got, err := FeedURL(tt.base)
		if (err != nil) != tt.wantErr {
			t.Errorf("FeedURL(%q) error = %v", tt.base, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FeedURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestDispatch(t *testing.T) {
	payload, _ := json.Marshal(ModelEvent{Points: 300, K: 3, Iteration: 4})

	msg := dispatch(WSMessage{Type: MsgStep, Seq: 9, Payload: payload})
	ev, ok := msg.(FeedEventMsg)
	if !ok {
		t.Fatalf("dispatch() = %T, want FeedEventMsg", msg)
	}
	if ev.Type != MsgStep || ev.Seq != 9 || ev.Event.K != 3 || ev.Event.Iteration != 4 {
		t.Errorf("event = %+v", ev)
	}

	if got := dispatch(WSMessage{Type: "unknown", Payload: payload}); got != nil {
		t.Errorf("dispatch(unknown) = %v, want nil", got)
	}
	if got := dispatch(WSMessage{Type: MsgStep, Payload: json.RawMessage(`"bad"`)}); got != nil {
		t.Errorf("dispatch(bad payload) = %v, want nil", got)
	}
}

func TestFeedListenAndRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"converged","seq":3,"payload":{"points":10,"k":2,"iteration":7}}`))
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewFeedClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	defer c.Close()

	if _, ok := c.Listen(ctx)().(FeedConnectedMsg); !ok {
		t.Fatal("Listen() did not connect")
	}
	msg := c.ReadLoop(ctx)()
	ev, ok := msg.(FeedEventMsg)
	if !ok {
		t.Fatalf("ReadLoop() = %T, want FeedEventMsg", msg)
	}
	if ev.Type != MsgConverged || ev.Event.Iteration != 7 {
		t.Errorf("event = %+v", ev)
	}
	if c.Seq() != 3 {
		t.Errorf("Seq() = %d, want 3", c.Seq())
	}
}

func TestReadLoopWithoutConnection(t *testing.T) {
	c := NewFeedClient("ws://127.0.0.1:1/ws")
	if _, ok := c.ReadLoop(context.Background())().(FeedDisconnectedMsg); !ok {
		t.Error("ReadLoop() without a connection did not report a disconnect")
	}
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"points":300,"k":3,"initialized":true,"iteration":2,"rssBytes":1048576,"clients":1}`))
	}))
	defer srv.Close()

	st, err := NewStatusClient(srv.URL).GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if st.Points != 300 || st.RSSBytes != 1<<20 || !st.Initialized {
		t.Errorf("status = %+v", st)
	}
}

func TestGetStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewStatusClient(srv.URL).GetStatus(context.Background()); err == nil {
		t.Error("GetStatus() on 500 succeeded")
	}
}
