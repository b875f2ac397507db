package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"resumelift/internal/session"
)

// wsTestServer upgrades one connection, records the initiation payload, and
// plays back scripted provider messages
type wsTestServer struct {
	*httptest.Server
	initiation chan map[string]any
	inbound    chan map[string]any
	send       chan any
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	s := &wsTestServer{
		initiation: make(chan map[string]any, 1),
		inbound:    make(chan map[string]any, 16),
		send:       make(chan any, 16),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var init map[string]any
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		s.initiation <- init

		go func() {
			for msg := range s.send {
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
			// The websocket conn is hijacked, so CloseClientConnections
			// does not reach it; closing send drops the provider side.
			conn.Close()
		}()

		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			s.inbound <- msg
		}
	}))
	return s
}

func (s *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func collectEvents() (session.EventSink, chan session.Event) {
	events := make(chan session.Event, 16)
	return func(ev session.Event) { events <- ev }, events
}

func waitEvent(t *testing.T, events chan session.Event) session.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
		return nil
	}
}

func TestWebSocketTransportConnect(t *testing.T) {
	server := newWSTestServer(t)
	defer server.Close()
	defer close(server.send)

	transport := NewWebSocketTransport(5*time.Second, testLogger(t))
	sink, events := collectEvents()

	vars := map[string]string{
		"resume_summary":  "Skills: Go.",
		"is_continuation": "false",
	}
	conn, err := transport.Connect(context.Background(), server.wsURL(), vars, sink)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	// The initiation payload carries the dynamic variables
	select {
	case init := <-server.initiation:
		if init["type"] != "conversation_initiation_client_data" {
			t.Errorf("Unexpected initiation type: %v", init["type"])
		}
		dyn, ok := init["dynamic_variables"].(map[string]any)
		if !ok {
			t.Fatalf("Expected dynamic variables, got %v", init["dynamic_variables"])
		}
		if dyn["resume_summary"] != "Skills: Go." {
			t.Errorf("Expected resume summary variable, got %v", dyn["resume_summary"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Initiation payload never arrived")
	}

	server.send <- map[string]any{
		"type": "conversation_initiation_metadata",
		"conversation_initiation_metadata_event": map[string]any{
			"conversation_id": "conv-123",
		},
	}
	ev := waitEvent(t, events)
	connected, ok := ev.(session.Connected)
	if !ok {
		t.Fatalf("Expected Connected event, got %T", ev)
	}
	if connected.SessionID != "conv-123" {
		t.Errorf("Expected session ID conv-123, got %q", connected.SessionID)
	}

	server.send <- map[string]any{
		"type": "user_transcript",
		"user_transcription_event": map[string]any{
			"user_transcript": "I worked on payments",
		},
	}
	ev = waitEvent(t, events)
	userMsg, ok := ev.(session.MessageReceived)
	if !ok {
		t.Fatalf("Expected MessageReceived, got %T", ev)
	}
	if userMsg.Source != "user_transcript" || userMsg.Text != "I worked on payments" {
		t.Errorf("Unexpected user message: %+v", userMsg)
	}

	server.send <- map[string]any{
		"type": "agent_response",
		"agent_response_event": map[string]any{
			"agent_response": "What was the hardest part?",
		},
	}
	ev = waitEvent(t, events)
	agentMsg, ok := ev.(session.MessageReceived)
	if !ok {
		t.Fatalf("Expected MessageReceived, got %T", ev)
	}
	if agentMsg.Source != "agent_response" {
		t.Errorf("Expected agent source, got %q", agentMsg.Source)
	}
}

func TestWebSocketTransportAnswersPing(t *testing.T) {
	server := newWSTestServer(t)
	defer server.Close()
	defer close(server.send)

	transport := NewWebSocketTransport(5*time.Second, testLogger(t))
	sink, _ := collectEvents()

	conn, err := transport.Connect(context.Background(), server.wsURL(), nil, sink)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	server.send <- map[string]any{
		"type":       "ping",
		"ping_event": map[string]any{"event_id": 7},
	}

	select {
	case msg := <-server.inbound:
		if msg["type"] != "pong" {
			t.Errorf("Expected pong, got %v", msg["type"])
		}
		if id, _ := msg["event_id"].(float64); int(id) != 7 {
			t.Errorf("Expected event_id 7, got %v", msg["event_id"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pong never arrived")
	}
}

func TestWebSocketTransportServerDropEmitsDisconnected(t *testing.T) {
	server := newWSTestServer(t)
	defer server.Close()

	transport := NewWebSocketTransport(5*time.Second, testLogger(t))
	sink, events := collectEvents()

	conn, err := transport.Connect(context.Background(), server.wsURL(), nil, sink)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	// Closing the provider side ends the read loop with a disconnect
	close(server.send)
	server.CloseClientConnections()

	ev := waitEvent(t, events)
	if _, ok := ev.(session.Disconnected); !ok {
		t.Fatalf("Expected Disconnected event, got %T", ev)
	}
}

func TestWebSocketTransportDialFailure(t *testing.T) {
	transport := NewWebSocketTransport(time.Second, testLogger(t))
	sink, _ := collectEvents()

	_, err := transport.Connect(context.Background(), "ws://127.0.0.1:1/session", nil, sink)
	if err == nil {
		t.Fatal("Expected dial error")
	}
}

func TestInboundMessageDecoding(t *testing.T) {
	raw := `{"type":"user_transcript","user_transcription_event":{"user_transcript":"hello"}}`
	var msg inboundMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if msg.Type != "user_transcript" || msg.UserTranscription == nil || msg.UserTranscription.UserTranscript != "hello" {
		t.Errorf("Unexpected decode result: %+v", msg)
	}
}
