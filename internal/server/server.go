package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auralis-audio/aurascope/internal/encoding"
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// State is the server lifecycle state.
type State uint32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Statistics accumulates counters since the server started (or since the last
// reset).
type Statistics struct {
	TotalConnections      uint64
	ActiveConnections     uint32
	TotalDisconnections   uint64
	TotalMessagesSent     uint64
	TotalBytesTransmitted uint64
	FailedSends           uint64
	AverageMessageSize    float64
	StartedAt             time.Time
}

// Callbacks receive connection lifecycle and inbound message notifications.
// They are invoked outside the server's locks; implementations may call back
// into the server.
type Callbacks struct {
	OnClientConnected    func(ClientInfo)
	OnClientDisconnected func(ClientInfo)
	OnMessageReceived    func(ClientID, string)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // profiler traffic stays on localhost by default
	},
}

const writeTimeout = 5 * time.Second

// Server accepts observer connections on a websocket endpoint and fans
// snapshots out to them. All methods are safe for concurrent use.
type Server struct {
	state atomic.Uint32

	bindAddress string
	port        int
	maxClients  int

	listener   net.Listener
	httpServer *http.Server
	serveDone  chan struct{}

	clientsMu sync.RWMutex
	clients   map[ClientID]*client
	nextID    atomic.Uint64

	statsMu sync.Mutex
	stats   Statistics

	callbacksMu sync.RWMutex
	callbacks   Callbacks

	encoder encoding.Encoder
}

// New creates a stopped server. Snapshots broadcast through it are encoded
// with the given encoder.
func New(enc encoding.Encoder) *Server {
	return &Server{
		clients: make(map[ClientID]*client),
		encoder: enc,
	}
}

// SetCallbacks replaces the notification callbacks. Safe to call while the
// server is running.
func (s *Server) SetCallbacks(cb Callbacks) {
	s.callbacksMu.Lock()
	s.callbacks = cb
	s.callbacksMu.Unlock()
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// IsRunning reports whether the server accepts connections.
func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

// Start binds the listener and begins accepting connections on /stream.
// Starting a running server is a no-op. Port 0 binds an ephemeral port;
// Port() reports the one actually bound.
func (s *Server) Start(port int, bindAddress string, maxClients int) error {
	for !s.state.CompareAndSwap(uint32(StateStopped), uint32(StateStarting)) {
		switch s.State() {
		case StateRunning:
			return nil
		case StateStopping:
			// An in-flight Stop resolves in bounded time; wait it out.
			time.Sleep(time.Millisecond)
		default:
			return fmt.Errorf("server is %s, cannot start", s.State())
		}
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindAddress, port))
	if err != nil {
		s.state.Store(uint32(StateStopped))
		return fmt.Errorf("failed to bind %s:%d: %w", bindAddress, port, err)
	}

	s.bindAddress = bindAddress
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.maxClients = maxClients
	s.listener = listener
	s.serveDone = make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/", s.handleRoot)
	s.httpServer = &http.Server{Handler: mux}

	s.statsMu.Lock()
	s.stats = Statistics{StartedAt: time.Now()}
	s.statsMu.Unlock()

	go func() {
		defer close(s.serveDone)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("[server] serve error: %v", err)
		}
	}()

	s.state.Store(uint32(StateRunning))
	log.Printf("[server] listening on ws://%s:%d/stream (max %d clients)", bindAddress, s.port, maxClients)
	return nil
}

// Stop closes the listener and every client connection, then waits for the
// serve goroutine. Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(uint32(StateRunning), uint32(StateStopping)) {
		return nil
	}

	// Close refuses new connections. Hijacked websocket connections are not
	// tracked by net/http, so close them explicitly.
	err := s.httpServer.Close()

	s.clientsMu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.clients = make(map[ClientID]*client)
	s.clientsMu.Unlock()

	<-s.serveDone

	s.statsMu.Lock()
	s.stats.ActiveConnections = 0
	s.statsMu.Unlock()

	s.state.Store(uint32(StateStopped))
	log.Printf("[server] stopped")
	return err
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Aurascope telemetry server\n\n")
	fmt.Fprintf(w, "Stream endpoint: ws://%s:%d/stream\n", s.bindAddress, s.port)
	fmt.Fprintf(w, "Connected clients: %d/%d\n", s.GetClientCount(), s.maxClients)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[server] failed to upgrade connection: %v", err)
		return
	}

	c := &client{
		id:          ClientID(s.nextID.Add(1)),
		conn:        conn,
		remoteAddr:  r.RemoteAddr,
		connectedAt: time.Now(),
	}

	s.clientsMu.Lock()
	if len(s.clients) >= s.maxClients {
		s.clientsMu.Unlock()
		log.Printf("[server] rejecting %s: client limit %d reached", r.RemoteAddr, s.maxClients)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "client limit reached"))
		conn.Close()
		return
	}
	s.clients[c.id] = c
	active := len(s.clients)
	s.clientsMu.Unlock()

	s.statsMu.Lock()
	s.stats.TotalConnections++
	s.stats.ActiveConnections = uint32(active)
	s.statsMu.Unlock()

	log.Printf("[server] client %d connected from %s (total: %d)", c.id, r.RemoteAddr, active)

	s.callbacksMu.RLock()
	onConnected := s.callbacks.OnClientConnected
	s.callbacksMu.RUnlock()
	if onConnected != nil {
		onConnected(c.info())
	}

	s.readLoop(c)
}

// readLoop consumes inbound messages until the connection drops, then removes
// the client.
func (s *Server) readLoop(c *client) {
	defer s.removeClient(c)

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		s.callbacksMu.RLock()
		onMessage := s.callbacks.OnMessageReceived
		s.callbacksMu.RUnlock()
		if onMessage != nil {
			onMessage(c.id, string(data))
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	_, present := s.clients[c.id]
	if present {
		delete(s.clients, c.id)
	}
	active := len(s.clients)
	s.clientsMu.Unlock()

	c.conn.Close()

	// Stop already removed everyone; avoid double counting.
	if !present {
		return
	}

	s.statsMu.Lock()
	s.stats.TotalDisconnections++
	s.stats.ActiveConnections = uint32(active)
	s.statsMu.Unlock()

	log.Printf("[server] client %d disconnected (total: %d)", c.id, active)

	s.callbacksMu.RLock()
	onDisconnected := s.callbacks.OnClientDisconnected
	s.callbacksMu.RUnlock()
	if onDisconnected != nil {
		onDisconnected(c.info())
	}
}

// BroadcastMessage sends a text message to every connected client and returns
// the number of successful sends. Failed clients are left for their read
// loops to reap.
func (s *Server) BroadcastMessage(message string) int {
	if !s.IsRunning() {
		return 0
	}

	s.clientsMu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.clientsMu.RUnlock()

	payload := []byte(message)
	sent := 0
	failed := 0
	for _, c := range targets {
		if err := c.send(payload, writeTimeout); err != nil {
			log.Printf("[server] failed to send to client %d: %v", c.id, err)
			failed++
			continue
		}
		sent++
	}

	s.recordSends(sent, failed, len(payload))
	return sent
}

// BroadcastSnapshot encodes a snapshot once and broadcasts it.
func (s *Server) BroadcastSnapshot(snap snapshot.Snapshot) (int, error) {
	data, err := s.encoder.Encode(snap)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s snapshot: %w", snap.Kind(), err)
	}
	return s.BroadcastMessage(string(data)), nil
}

// SendMessageToClient sends a text message to one client. Returns false if
// the client is unknown or the send fails.
func (s *Server) SendMessageToClient(id ClientID, message string) bool {
	s.clientsMu.RLock()
	c := s.clients[id]
	s.clientsMu.RUnlock()
	if c == nil {
		return false
	}

	payload := []byte(message)
	if err := c.send(payload, writeTimeout); err != nil {
		log.Printf("[server] failed to send to client %d: %v", id, err)
		s.recordSends(0, 1, len(payload))
		return false
	}
	s.recordSends(1, 0, len(payload))
	return true
}

// DisconnectClient closes one client's connection. The read loop performs the
// actual removal.
func (s *Server) DisconnectClient(id ClientID) bool {
	s.clientsMu.RLock()
	c := s.clients[id]
	s.clientsMu.RUnlock()
	if c == nil {
		return false
	}
	c.conn.Close()
	return true
}

func (s *Server) recordSends(sent, failed, size int) {
	if sent == 0 && failed == 0 {
		return
	}
	s.statsMu.Lock()
	s.stats.TotalMessagesSent += uint64(sent)
	s.stats.TotalBytesTransmitted += uint64(sent * size)
	s.stats.FailedSends += uint64(failed)
	if s.stats.TotalMessagesSent > 0 {
		s.stats.AverageMessageSize = float64(s.stats.TotalBytesTransmitted) / float64(s.stats.TotalMessagesSent)
	}
	s.statsMu.Unlock()
}

// GetClientCount returns the number of connected clients.
func (s *Server) GetClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// GetMaxClients returns the configured connection limit.
func (s *Server) GetMaxClients() int {
	return s.maxClients
}

// Port returns the port the listener is bound to. Meaningful only while the
// server is running.
func (s *Server) Port() int {
	return s.port
}

// BindAddress returns the configured bind address.
func (s *Server) BindAddress() string {
	return s.bindAddress
}

// GetClientInfo returns a point-in-time view of one client.
func (s *Server) GetClientInfo(id ClientID) (ClientInfo, bool) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return ClientInfo{}, false
	}
	return c.info(), true
}

// GetAllClients returns a point-in-time view of every connected client.
func (s *Server) GetAllClients() []ClientInfo {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	out := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c.info())
	}
	return out
}

// GetStatistics returns a copy of the accumulated counters.
func (s *Server) GetStatistics() Statistics {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// ResetStatistics zeroes the counters, keeping the active connection count
// and start time.
func (s *Server) ResetStatistics() {
	s.clientsMu.RLock()
	active := uint32(len(s.clients))
	s.clientsMu.RUnlock()

	s.statsMu.Lock()
	started := s.stats.StartedAt
	s.stats = Statistics{ActiveConnections: active, StartedAt: started}
	s.statsMu.Unlock()
}
