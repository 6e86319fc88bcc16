// Package stream serves the event bus over a websocket and the current
// snapshot as JSON, for dashboards and editor integrations
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 256

	// newest events replayed to a client on connect
	historyReplay = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server binds to loopback by default; browsers on any local origin may connect
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Message is the envelope of everything sent to a client
type Message struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SnapshotSource supplies the snapshot served on /snapshot
type SnapshotSource interface {
	Snapshot(ctx context.Context) (types.Snapshot, error)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Server broadcasts bus events to websocket clients
type Server struct {
	bus   *events.Bus
	snaps SnapshotSource

	mu      sync.RWMutex
	clients map[*client]bool
	unsub   func()

	srv      *http.Server
	listener net.Listener
}

// New creates a server and subscribes it to bus
func New(bus *events.Bus, snaps SnapshotSource) *Server {
	s := &Server{
		bus:     bus,
		snaps:   snaps,
		clients: make(map[*client]bool),
	}
	s.unsub = bus.Subscribe(s.broadcastEvent)
	return s
}

// Handler routes /events, /snapshot and /healthz
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleWebSocket)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Event stream server error: %v", err)
		}
	}()
	log.InfoH2("Event stream listening on ws://%s/events", ln.Addr())
	return nil
}

// Addr is the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown unsubscribes from the bus, disconnects every client and stops
// the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsub()

	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("event stream shutdown error: %w", err)
	}
	return nil
}

// Clients counts connected websocket clients
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, err := s.snaps.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.DebugH3("encode snapshot: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}

	c := &client{id: uuid.New().String(), conn: conn, send: make(chan []byte, sendBuffer)}
	var history []events.Event
	if buf := s.bus.History(); buf != nil {
		history = buf.Last(historyReplay)
	}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	s.sendTo(c, Message{Type: "hello", Data: map[string]interface{}{"client_id": c.id, "history": len(history)}})
	for _, e := range history {
		s.sendTo(c, Message{Type: "event", Data: e})
	}
	log.DebugH2("Stream client %s connected from %s", c.id, r.RemoteAddr)

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.close()
		log.DebugH2("Stream client %s disconnected", c.id)
	}
}

func (s *Server) broadcastEvent(e events.Event) {
	data, err := json.Marshal(Message{Type: "event", Data: e})
	if err != nil {
		log.DebugH3("encode event: %v", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			log.Debug("Skipping stream client (channel full)")
		}
	}
}

func (s *Server) sendTo(c *client, msg Message) {
	data, _ := json.Marshal(msg)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.DebugH3("Stream client error: %v", err)
			}
			return
		}
		s.handleMessage(c, raw)
	}
}

func (s *Server) handleMessage(c *client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.sendTo(c, Message{Type: "error", Message: "Invalid message format"})
		return
	}

	switch msg.Type {
	case "ping":
		s.sendTo(c, Message{Type: "pong"})
	case "snapshot":
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		snap, err := s.snaps.Snapshot(ctx)
		if err != nil {
			s.sendTo(c, Message{Type: "error", Message: err.Error()})
			return
		}
		s.sendTo(c, Message{Type: "snapshot", Data: snap})
	default:
		s.sendTo(c, Message{Type: "error", Message: fmt.Sprintf("Unknown message type: %s", msg.Type)})
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
