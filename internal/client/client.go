package client

import (
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/auralis-audio/aurascope/internal/encoding"
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// State is the client connection state.
type State uint32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Config holds the observer connection settings.
type Config struct {
	// ServerAddress is host:port of the telemetry server.
	ServerAddress string
	ClientName    string
	ClientVersion string

	ConnectTimeout time.Duration
	AutoReconnect  bool
	ReconnectDelay time.Duration
}

// DefaultConfig returns settings for a local observer session.
func DefaultConfig() Config {
	return Config{
		ServerAddress:  "127.0.0.1:27002",
		ClientName:     "aurascope-client",
		ClientVersion:  "1.0.0",
		ConnectTimeout: 5 * time.Second,
		AutoReconnect:  false,
		ReconnectDelay: 2 * time.Second,
	}
}

// Callbacks receive decoded telemetry and connection notifications. All
// callbacks fire on the client's read goroutine.
type Callbacks struct {
	OnEngineData      func(*snapshot.EngineData)
	OnEntityData      func(*snapshot.EntityData)
	OnChannelData     func(*snapshot.ChannelData)
	OnListenerData    func(*snapshot.ListenerData)
	OnPerformanceData func(*snapshot.PerformanceData)
	OnEvent           func(*snapshot.EventData)

	// OnRawMessage sees every inbound frame before decoding.
	OnRawMessage   func([]byte)
	OnStateChanged func(State)
	OnError        func(error)
}

// Client is a telemetry observer: it connects to a running server's stream
// endpoint, decodes records and dispatches them to callbacks.
type Client struct {
	cfg        Config
	instanceID string

	state atomic.Uint32

	mu   sync.Mutex
	conn *websocket.Conn

	// writeMu serializes command sends; gorilla connections support one
	// concurrent writer only.
	writeMu sync.Mutex

	callbacksMu sync.RWMutex
	callbacks   Callbacks

	stopCh   chan struct{}
	readDone chan struct{}
}

// New creates a disconnected client with a fresh instance identity.
func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		instanceID: uuid.NewString(),
	}
}

// InstanceID returns this client's unique identity.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether the stream is live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// SetCallbacks replaces the callback set. Safe to call at any time.
func (c *Client) SetCallbacks(cb Callbacks) {
	c.callbacksMu.Lock()
	c.callbacks = cb
	c.callbacksMu.Unlock()
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(uint32(s))) == s {
		return
	}
	c.callbacksMu.RLock()
	onState := c.callbacks.OnStateChanged
	c.callbacksMu.RUnlock()
	if onState != nil {
		onState(s)
	}
}

func (c *Client) reportError(err error) {
	c.callbacksMu.RLock()
	onError := c.callbacks.OnError
	c.callbacksMu.RUnlock()
	if onError != nil {
		onError(err)
	}
}

// Connect dials the server's stream endpoint and starts the read loop.
// Connecting a connected client is a no-op.
func (c *Client) Connect() error {
	if !c.state.CompareAndSwap(uint32(StateDisconnected), uint32(StateConnecting)) {
		if c.State() == StateConnected {
			return nil
		}
		return fmt.Errorf("client is %s, cannot connect", c.State())
	}

	u := url.URL{Scheme: "ws", Host: c.cfg.ServerAddress, Path: "/stream"}
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to %s: %w", u.String(), err)
	}

	c.mu.Lock()
	c.conn = conn
	c.stopCh = make(chan struct{})
	c.readDone = make(chan struct{})
	c.mu.Unlock()

	c.setState(StateConnected)
	log.Printf("[client] %s connected to %s", c.cfg.ClientName, c.cfg.ServerAddress)

	go c.readLoop(conn, c.stopCh, c.readDone)
	return nil
}

// Disconnect closes the stream. Disconnecting a disconnected client is a
// no-op; auto-reconnect does not fire after an explicit disconnect.
func (c *Client) Disconnect() {
	if !c.state.CompareAndSwap(uint32(StateConnected), uint32(StateDisconnecting)) {
		return
	}

	c.mu.Lock()
	close(c.stopCh)
	conn := c.conn
	c.conn = nil
	readDone := c.readDone
	c.mu.Unlock()

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	conn.Close()
	<-readDone

	c.setState(StateDisconnected)
	log.Printf("[client] %s disconnected", c.cfg.ClientName)
}

// SendCommand sends a raw text command to the server.
func (c *Client) SendCommand(command string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !c.IsConnected() {
		return fmt.Errorf("client is not connected")
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, []byte(command))
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// RequestData asks the server for an immediate capture of one data type.
func (c *Client) RequestData(dataType snapshot.Kind) error {
	return c.SendCommand(fmt.Sprintf("request:%s", dataType))
}

func (c *Client) readLoop(conn *websocket.Conn, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
				// Explicit disconnect; state handling happens there.
				return
			default:
			}

			conn.Close()
			c.setState(StateDisconnected)
			c.reportError(fmt.Errorf("connection lost: %w", err))

			if c.cfg.AutoReconnect {
				go c.reconnect()
			}
			return
		}

		c.dispatch(data)
	}
}

// reconnect retries until the connection is restored or the client is
// explicitly disconnected.
func (c *Client) reconnect() {
	for {
		time.Sleep(c.cfg.ReconnectDelay)
		if c.State() != StateDisconnected {
			return
		}
		if err := c.Connect(); err == nil {
			return
		}
		log.Printf("[client] reconnect to %s failed, retrying", c.cfg.ServerAddress)
	}
}

func (c *Client) dispatch(data []byte) {
	c.callbacksMu.RLock()
	cb := c.callbacks
	c.callbacksMu.RUnlock()

	if cb.OnRawMessage != nil {
		cb.OnRawMessage(data)
	}

	snap, err := encoding.Decode(data)
	if err != nil {
		c.reportError(fmt.Errorf("failed to decode record: %w", err))
		return
	}

	switch s := snap.(type) {
	case *snapshot.EngineData:
		if cb.OnEngineData != nil {
			cb.OnEngineData(s)
		}
	case *snapshot.EntityData:
		if cb.OnEntityData != nil {
			cb.OnEntityData(s)
		}
	case *snapshot.ChannelData:
		if cb.OnChannelData != nil {
			cb.OnChannelData(s)
		}
	case *snapshot.ListenerData:
		if cb.OnListenerData != nil {
			cb.OnListenerData(s)
		}
	case *snapshot.PerformanceData:
		if cb.OnPerformanceData != nil {
			cb.OnPerformanceData(s)
		}
	case *snapshot.EventData:
		if cb.OnEvent != nil {
			cb.OnEvent(s)
		}
	}
}
