package client

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/auralis-audio/aurascope/internal/encoding"
	"github.com/auralis-audio/aurascope/internal/server"
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

func startTestServer(t *testing.T) *server.Server {
	t.Helper()

	enc, err := encoding.NewEncoder(encoding.FormatJSON)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	s := server.New(enc)
	if err := s.Start(0, "127.0.0.1", 4); err != nil {
		t.Fatalf("server start failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func connectTestClient(t *testing.T, s *server.Server, cb Callbacks) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.ServerAddress = fmt.Sprintf("127.0.0.1:%d", s.Port())
	c := New(cfg)
	c.SetCallbacks(cb)
	if err := c.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(c.Disconnect)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.GetClientCount() == 1 {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never saw the client")
	return nil
}

func TestConnectDisconnect(t *testing.T) {
	s := startTestServer(t)

	states := make(chan State, 8)
	c := connectTestClient(t, s, Callbacks{
		OnStateChanged: func(st State) { states <- st },
	})

	if !c.IsConnected() {
		t.Error("client should report connected")
	}
	if c.InstanceID() == "" {
		t.Error("client should carry an instance id")
	}

	// Connecting again is a no-op.
	if err := c.Connect(); err != nil {
		t.Errorf("second connect should be a no-op, got %v", err)
	}

	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Errorf("state after disconnect: got %s", c.State())
	}
	c.Disconnect() // no-op
}

func TestConnectFailsWithoutServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerAddress = "127.0.0.1:1" // nothing listens here
	cfg.ConnectTimeout = 500 * time.Millisecond

	c := New(cfg)
	if err := c.Connect(); err == nil {
		t.Fatal("expected connect to fail")
	}
	if c.State() != StateDisconnected {
		t.Errorf("failed connect should leave the client disconnected, got %s", c.State())
	}
}

func TestTypedCallbacksReceiveRecords(t *testing.T) {
	s := startTestServer(t)

	engines := make(chan *snapshot.EngineData, 1)
	events := make(chan *snapshot.EventData, 1)
	raw := make(chan []byte, 8)

	connectTestClient(t, s, Callbacks{
		OnEngineData: func(d *snapshot.EngineData) { engines <- d },
		OnEvent:      func(d *snapshot.EventData) { events <- d },
		OnRawMessage: func(data []byte) { raw <- data },
	})

	engine := snapshot.NewEngineData()
	engine.SampleRate = 44100
	if _, err := s.BroadcastSnapshot(engine); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	event := snapshot.NewEvent("bank_loaded", "")
	if _, err := s.BroadcastSnapshot(event); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	select {
	case d := <-engines:
		if d.SampleRate != 44100 {
			t.Errorf("sample rate: got %d", d.SampleRate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine record never arrived")
	}
	select {
	case d := <-events:
		if d.Name != "bank_loaded" {
			t.Errorf("event name: got %q", d.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event record never arrived")
	}
	if len(raw) == 0 {
		t.Error("raw callback should have seen the frames")
	}
}

func TestSendCommandReachesServer(t *testing.T) {
	s := startTestServer(t)

	received := make(chan string, 1)
	s.SetCallbacks(server.Callbacks{
		OnMessageReceived: func(id server.ClientID, msg string) {
			received <- msg
		},
	})

	c := connectTestClient(t, s, Callbacks{})
	if err := c.RequestData(snapshot.KindPerformance); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg != "request:performance" {
			t.Errorf("command: got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command never reached the server")
	}
}

func TestConcurrentCommandSends(t *testing.T) {
	s := startTestServer(t)

	const senders, perSender = 4, 25
	received := make(chan string, senders*perSender)
	s.SetCallbacks(server.Callbacks{
		OnMessageReceived: func(id server.ClientID, msg string) {
			received <- msg
		},
	})

	c := connectTestClient(t, s, Callbacks{})

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if err := c.SendCommand("ping"); err != nil {
					t.Errorf("send failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for i := 0; i < senders*perSender; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d commands arrived", i, senders*perSender)
		}
	}
}

func TestSendCommandWhileDisconnected(t *testing.T) {
	c := New(DefaultConfig())
	if err := c.SendCommand("ping"); err == nil {
		t.Error("expected error while disconnected")
	}
}

func TestServerDropReportsError(t *testing.T) {
	s := startTestServer(t)

	errs := make(chan error, 1)
	c := connectTestClient(t, s, Callbacks{
		OnError: func(err error) { errs <- err },
	})

	s.Stop()

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("connection loss never reported")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && c.State() != StateDisconnected {
		time.Sleep(10 * time.Millisecond)
	}
	if c.State() != StateDisconnected {
		t.Errorf("client should end disconnected, got %s", c.State())
	}
}
