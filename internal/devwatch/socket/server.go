package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dimasma0305/devwatch/internal/log"
)

// connTimeout bounds one request/response exchange
const connTimeout = 30 * time.Second

// CommandHandler processes socket commands
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd Command) Response
}

// Server accepts control connections on a Unix socket
type Server struct {
	socketPath string
	handler    CommandHandler

	mu       sync.RWMutex
	listener net.Listener
	conns    sync.WaitGroup
}

// NewServer creates a socket server
func NewServer(socketPath string, handler CommandHandler) *Server {
	return &Server{socketPath: socketPath, handler: handler}
}

// Path returns the socket file location
func (s *Server) Path() string { return s.socketPath }

// Init creates the socket, replacing a leftover file from a previous run
func (s *Server) Init() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Error("Failed to remove existing socket file: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0750); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.DebugH2("Socket server listening on %s", s.socketPath)
	return nil
}

// Run accepts connections until ctx is cancelled or the server is closed
func (s *Server) Run(ctx context.Context) {
	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()
	if listener == nil {
		return
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error("Failed to accept socket connection: %v", err)
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// Close stops accepting, removes the socket file and waits for in-flight
// connections
func (s *Server) Close() error {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	if listener == nil {
		return nil
	}
	err := listener.Close()
	if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
		log.Error("Failed to remove socket file: %v", removeErr)
	}
	s.conns.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	encoder := json.NewEncoder(conn)

	var cmd Command
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&cmd); err != nil {
		_ = encoder.Encode(Response{Success: false, Error: fmt.Sprintf("Failed to decode command: %v", err)})
		return
	}
	log.DebugH3("socket command: %s", cmd.Action)

	reqCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()
	if err := encoder.Encode(s.handler.HandleCommand(reqCtx, cmd)); err != nil {
		log.Error("Failed to send socket response: %v", err)
	}
}
