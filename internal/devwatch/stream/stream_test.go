package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/testutil"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

type staticSnapshots struct {
	snap types.Snapshot
	err  error
}

func (s staticSnapshots) Snapshot(context.Context) (types.Snapshot, error) {
	return s.snap, s.err
}

type received struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setup(t *testing.T, snaps SnapshotSource, history int) (*events.Bus, *Server, *httptest.Server) {
	t.Helper()
	bus := events.NewBus(history)
	s := New(bus, snaps)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		ts.Close()
	})
	return bus, s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	testutil.AssertNoError(t, err, "Dial()")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg received
	testutil.AssertNoError(t, conn.ReadJSON(&msg), "ReadJSON()")
	return msg
}

func TestEventsAreBroadcast(t *testing.T) {
	bus, s, ts := setup(t, staticSnapshots{}, 0)
	conn := dial(t, ts)

	hello := read(t, conn)
	if hello.Type != "hello" {
		t.Fatalf("first message type = %q, want hello", hello.Type)
	}
	var greeting struct {
		ClientID string `json:"client_id"`
	}
	testutil.AssertNoError(t, json.Unmarshal(hello.Data, &greeting), "decode hello")
	if _, err := uuid.Parse(greeting.ClientID); err != nil {
		t.Errorf("client_id %q is not a UUID: %v", greeting.ClientID, err)
	}
	if n := s.Clients(); n != 1 {
		t.Errorf("Clients() = %d, want 1", n)
	}

	bus.Publish(events.FromTransition(types.NewNetworkDown("vite", 5173), time.Now()))

	msg := read(t, conn)
	if msg.Type != "event" {
		t.Fatalf("message type = %q, want event", msg.Type)
	}
	var e events.Event
	testutil.AssertNoError(t, json.Unmarshal(msg.Data, &e), "decode event")
	if e.Kind != events.KindTransition || e.Transition.Kind != types.NetworkDown || e.Transition.Port != 5173 {
		t.Errorf("event = %+v", e)
	}
}

func TestHistoryIsReplayedOnConnect(t *testing.T) {
	bus, _, ts := setup(t, staticSnapshots{}, 10)
	bus.Publish(events.Lifecycle(events.KindMonitorStarted, "", "watching [dev]", nil))
	bus.Publish(events.Lifecycle(events.KindMonitorError, "", "tick failed", errors.New("boom")))

	conn := dial(t, ts)
	hello := read(t, conn)
	testutil.AssertContains(t, string(hello.Data), `"history":2`)

	first, second := read(t, conn), read(t, conn)
	testutil.AssertContains(t, string(first.Data), `"monitor.started"`)
	testutil.AssertContains(t, string(second.Data), `"boom"`)
}

func TestClientRequests(t *testing.T) {
	snap := types.Snapshot{
		Processes: map[string]types.Process{"vite": {PID: 7, Port: 5173}},
		Readiness: types.Readiness{Score: 90, Level: types.LevelReady},
	}
	_, _, ts := setup(t, staticSnapshots{snap: snap}, 0)
	conn := dial(t, ts)
	read(t, conn)

	tests := []struct {
		request  string
		wantType string
		contains string
	}{
		{request: `{"type":"ping"}`, wantType: "pong"},
		{request: `{"type":"snapshot"}`, wantType: "snapshot", contains: `"pid":7`},
		{request: `{"type":"dance"}`, wantType: "error", contains: "Unknown message type"},
		{request: `not json`, wantType: "error", contains: "Invalid message format"},
	}
	for _, tt := range tests {
		testutil.AssertNoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.request)), "WriteMessage()")
		msg := read(t, conn)
		if msg.Type != tt.wantType {
			t.Errorf("%s: type = %q, want %q", tt.request, msg.Type, tt.wantType)
		}
		if tt.contains != "" {
			testutil.AssertContains(t, msg.Message+string(msg.Data), tt.contains)
		}
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	snap := types.Snapshot{
		Processes: map[string]types.Process{},
		Readiness: types.Readiness{Score: 70, Level: types.LevelPartial},
	}
	_, _, ts := setup(t, staticSnapshots{snap: snap}, 0)

	resp, err := http.Get(ts.URL + "/snapshot")
	testutil.AssertNoError(t, err, "GET /snapshot")
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got types.Snapshot
	testutil.AssertNoError(t, json.NewDecoder(resp.Body).Decode(&got), "decode")
	if got.Readiness.Level != types.LevelPartial || got.Readiness.Score != 70 {
		t.Errorf("readiness = %+v", got.Readiness)
	}

	post, err := http.Post(ts.URL+"/snapshot", "application/json", nil)
	testutil.AssertNoError(t, err, "POST /snapshot")
	_ = post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", post.StatusCode)
	}
}

func TestSnapshotEndpointError(t *testing.T) {
	_, _, ts := setup(t, staticSnapshots{err: errors.New("probe panicked")}, 0)

	resp, err := http.Get(ts.URL + "/snapshot")
	testutil.AssertNoError(t, err, "GET /snapshot")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestShutdownDisconnectsClients(t *testing.T) {
	bus := events.NewBus(0)
	s := New(bus, staticSnapshots{})
	testutil.AssertNoError(t, s.Start("127.0.0.1:0"), "Start()")

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/events", nil)
	testutil.AssertNoError(t, err, "Dial()")
	defer func() { _ = conn.Close() }()
	read(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	testutil.AssertNoError(t, s.Shutdown(ctx), "Shutdown()")

	if n := s.Clients(); n != 0 {
		t.Errorf("Clients() after shutdown = %d", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection should be closed after Shutdown")
	}
}
