package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auralis-audio/aurascope/internal/encoding"
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

func startTestServer(t *testing.T, maxClients int) *Server {
	t.Helper()

	enc, err := encoding.NewEncoder(encoding.FormatJSON)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	s := New(enc)
	if err := s.Start(0, "127.0.0.1", maxClients); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://127.0.0.1:%d/stream", s.Port())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s failed: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClientCount(t *testing.T, s *Server, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.GetClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count: got %d, want %d", s.GetClientCount(), want)
}

func TestStartStopLifecycle(t *testing.T) {
	enc, _ := encoding.NewEncoder(encoding.FormatJSON)
	s := New(enc)

	if s.State() != StateStopped {
		t.Fatalf("new server state: got %s, want stopped", s.State())
	}
	if err := s.Start(0, "127.0.0.1", 4); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("server should be running after start")
	}
	if s.Port() == 0 {
		t.Error("ephemeral port should resolve to a concrete one")
	}

	// Starting again is a no-op.
	if err := s.Start(0, "127.0.0.1", 4); err != nil {
		t.Errorf("second start should be a no-op, got %v", err)
	}

	if err := s.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("state after stop: got %s, want stopped", s.State())
	}
	// Stopping again is a no-op.
	if err := s.Stop(); err != nil {
		t.Errorf("second stop should be a no-op, got %v", err)
	}
}

func TestRestartAfterStop(t *testing.T) {
	enc, _ := encoding.NewEncoder(encoding.FormatJSON)
	s := New(enc)

	if err := s.Start(0, "127.0.0.1", 2); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := s.Start(0, "127.0.0.1", 2); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer s.Stop()

	if !s.IsRunning() {
		t.Error("server should run again after restart")
	}
}

func TestBroadcastDelivery(t *testing.T) {
	s := startTestServer(t, 4)
	conn := dialTestServer(t, s)
	waitForClientCount(t, s, 1)

	sent := s.BroadcastMessage(`{"hello":"world"}`)
	if sent != 1 {
		t.Fatalf("broadcast: got %d sends, want 1", sent)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != `{"hello":"world"}` {
		t.Errorf("payload: got %s", data)
	}
}

func TestBroadcastSnapshotEncodes(t *testing.T) {
	s := startTestServer(t, 4)
	conn := dialTestServer(t, s)
	waitForClientCount(t, s, 1)

	snap := snapshot.NewEngineData()
	sent, err := s.BroadcastSnapshot(snap)
	if err != nil {
		t.Fatalf("broadcast snapshot failed: %v", err)
	}
	if sent != 1 {
		t.Fatalf("got %d sends, want 1", sent)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	decoded, err := encoding.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Kind() != snapshot.KindEngine {
		t.Errorf("kind: got %s, want engine", decoded.Kind())
	}
}

func TestClientLimitEnforced(t *testing.T) {
	s := startTestServer(t, 1)

	first := dialTestServer(t, s)
	waitForClientCount(t, s, 1)
	_ = first

	url := fmt.Sprintf("ws://127.0.0.1:%d/stream", s.Port())
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		// The upgrade succeeds before the limit check; the server must then
		// close the connection immediately.
		second.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := second.ReadMessage(); err == nil {
			t.Error("over-limit connection should be closed by the server")
		}
		second.Close()
	}

	if got := s.GetClientCount(); got != 1 {
		t.Errorf("client count: got %d, want 1", got)
	}
}

func TestInboundMessagesReachCallback(t *testing.T) {
	s := startTestServer(t, 4)

	received := make(chan string, 1)
	s.SetCallbacks(Callbacks{
		OnMessageReceived: func(id ClientID, msg string) {
			received <- msg
		},
	})

	conn := dialTestServer(t, s)
	waitForClientCount(t, s, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("request_data")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg != "request_data" {
			t.Errorf("message: got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message never reached the callback")
	}
}

func TestSendMessageToClient(t *testing.T) {
	s := startTestServer(t, 4)
	conn := dialTestServer(t, s)
	waitForClientCount(t, s, 1)

	clients := s.GetAllClients()
	if len(clients) != 1 {
		t.Fatalf("expected one client, got %d", len(clients))
	}

	if !s.SendMessageToClient(clients[0].ID, "direct") {
		t.Fatal("send to known client failed")
	}
	if s.SendMessageToClient(ClientID(9999), "direct") {
		t.Error("send to unknown client should report failure")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "direct" {
		t.Errorf("payload: got %s", data)
	}
}

func TestDisconnectClient(t *testing.T) {
	s := startTestServer(t, 4)

	disconnected := make(chan ClientInfo, 1)
	s.SetCallbacks(Callbacks{
		OnClientDisconnected: func(info ClientInfo) {
			disconnected <- info
		},
	})

	dialTestServer(t, s)
	waitForClientCount(t, s, 1)

	id := s.GetAllClients()[0].ID
	if !s.DisconnectClient(id) {
		t.Fatal("disconnect of known client failed")
	}

	select {
	case info := <-disconnected:
		if info.ID != id {
			t.Errorf("disconnected id: got %d, want %d", info.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback never fired")
	}
	waitForClientCount(t, s, 0)
}

func TestStatisticsAccumulate(t *testing.T) {
	s := startTestServer(t, 4)
	conn := dialTestServer(t, s)
	waitForClientCount(t, s, 1)

	payload := "0123456789"
	for i := 0; i < 3; i++ {
		if sent := s.BroadcastMessage(payload); sent != 1 {
			t.Fatalf("broadcast %d: got %d sends", i, sent)
		}
	}
	// Drain so the server-side writes complete cleanly.
	for i := 0; i < 3; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
	}

	stats := s.GetStatistics()
	if stats.TotalConnections != 1 {
		t.Errorf("total connections: got %d, want 1", stats.TotalConnections)
	}
	if stats.TotalMessagesSent != 3 {
		t.Errorf("messages sent: got %d, want 3", stats.TotalMessagesSent)
	}
	if stats.TotalBytesTransmitted != uint64(3*len(payload)) {
		t.Errorf("bytes: got %d, want %d", stats.TotalBytesTransmitted, 3*len(payload))
	}
	if stats.AverageMessageSize != float64(len(payload)) {
		t.Errorf("average size: got %g, want %d", stats.AverageMessageSize, len(payload))
	}

	s.ResetStatistics()
	stats = s.GetStatistics()
	if stats.TotalMessagesSent != 0 || stats.TotalConnections != 0 {
		t.Error("reset should zero the counters")
	}
	if stats.ActiveConnections != 1 {
		t.Errorf("active connections should survive reset, got %d", stats.ActiveConnections)
	}
}

func TestStopDuringBroadcast(t *testing.T) {
	s := startTestServer(t, 4)
	for i := 0; i < 3; i++ {
		dialTestServer(t, s)
	}
	waitForClientCount(t, s, 3)

	stopBroadcasting := make(chan struct{})
	broadcasterDone := make(chan struct{})
	go func() {
		defer close(broadcasterDone)
		for {
			select {
			case <-stopBroadcasting:
				return
			default:
				s.BroadcastMessage(`{"type":"event","eventName":"tick"}`)
			}
		}
	}()

	stopDone := make(chan error, 1)
	go func() { stopDone <- s.Stop() }()

	select {
	case <-stopDone:
	case <-time.After(5 * time.Second):
		t.Fatal("stop deadlocked against in-flight broadcasts")
	}
	close(stopBroadcasting)
	<-broadcasterDone

	if s.IsRunning() {
		t.Error("server should not be running after stop")
	}
	if got := s.GetClientCount(); got != 0 {
		t.Errorf("client count after stop: got %d, want 0", got)
	}
}

func TestStartWaitsOutInFlightStop(t *testing.T) {
	enc, _ := encoding.NewEncoder(encoding.FormatJSON)
	s := New(enc)
	if err := s.Start(0, "127.0.0.1", 2); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	go s.Stop()
	// Whether Start observes the stop mid-flight or already complete, it
	// must come up running rather than refuse.
	deadline := time.Now().Add(2 * time.Second)
	for s.State() == StateRunning && time.Now().Before(deadline) {
		time.Sleep(100 * time.Microsecond)
	}

	if err := s.Start(0, "127.0.0.1", 2); err != nil {
		t.Fatalf("start after stop began: %v", err)
	}
	defer s.Stop()
	if !s.IsRunning() {
		t.Error("server should be running")
	}
}

func TestBroadcastWhileStopped(t *testing.T) {
	enc, _ := encoding.NewEncoder(encoding.FormatJSON)
	s := New(enc)
	if sent := s.BroadcastMessage("nobody"); sent != 0 {
		t.Errorf("stopped server broadcast: got %d sends, want 0", sent)
	}
}
