package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"resumelift/internal/errors"
	"resumelift/internal/session"
)

// WebSocketTransport opens realtime conversations with the voice agent over
// a websocket and normalizes the provider's message shapes into session
// events at the boundary.
type WebSocketTransport struct {
	dialTimeout time.Duration
	logger      *errors.Logger
}

// NewWebSocketTransport creates a websocket transport
func NewWebSocketTransport(dialTimeout time.Duration, logger *errors.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		dialTimeout: dialTimeout,
		logger:      logger,
	}
}

// initiationPayload is sent once after the handshake to configure the
// conversation with the caller's dynamic context variables
type initiationPayload struct {
	Type             string            `json:"type"`
	DynamicVariables map[string]string `json:"dynamic_variables,omitempty"`
}

// inboundMessage is the union of provider message shapes we understand.
// Unknown types are skipped.
type inboundMessage struct {
	Type string `json:"type"`

	InitiationMetadata *struct {
		ConversationID string `json:"conversation_id"`
	} `json:"conversation_initiation_metadata_event,omitempty"`

	UserTranscription *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	AgentResponse *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	Ping *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`
}

type pongPayload struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

// Connect dials the signed URL, sends the conversation initiation payload,
// and starts the read loop. Inbound messages reach the sink in arrival
// order because a single goroutine reads the socket.
func (t *WebSocketTransport) Connect(ctx context.Context, signedURL string, contextVars map[string]string, sink session.EventSink) (session.Connection, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.dialTimeout}

	conn, resp, err := dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		msg := "Failed to open the realtime voice connection"
		if resp != nil {
			msg = fmt.Sprintf("%s (status %d)", msg, resp.StatusCode)
		}
		return nil, errors.NewNetworkError(errors.ErrCodeRealtimeConnect, msg, err)
	}

	ws := &wsConnection{conn: conn}
	if err := ws.writeJSON(initiationPayload{
		Type:             "conversation_initiation_client_data",
		DynamicVariables: contextVars,
	}); err != nil {
		conn.Close()
		return nil, errors.NewNetworkError(errors.ErrCodeRealtimeConnect,
			"Failed to send conversation initiation", err)
	}

	go t.readLoop(ws, sink)
	return ws, nil
}

func (t *WebSocketTransport) readLoop(ws *wsConnection, sink session.EventSink) {
	for {
		var msg inboundMessage
		if err := ws.conn.ReadJSON(&msg); err != nil {
			if ws.isClosed() {
				// User-initiated close; the session manager already knows
				return
			}
			reason := ""
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			sink(session.Disconnected{ByUser: false, Reason: reason})
			return
		}

		switch msg.Type {
		case "conversation_initiation_metadata":
			id := ""
			if msg.InitiationMetadata != nil {
				id = msg.InitiationMetadata.ConversationID
			}
			sink(session.Connected{SessionID: id})

		case "user_transcript":
			if msg.UserTranscription != nil {
				sink(session.MessageReceived{
					Source: "user_transcript",
					Text:   msg.UserTranscription.UserTranscript,
					At:     time.Now(),
				})
			}

		case "agent_response":
			if msg.AgentResponse != nil {
				sink(session.MessageReceived{
					Source: "agent_response",
					Text:   msg.AgentResponse.AgentResponse,
					At:     time.Now(),
				})
			}

		case "ping":
			eventID := 0
			if msg.Ping != nil {
				eventID = msg.Ping.EventID
			}
			if err := ws.writeJSON(pongPayload{Type: "pong", EventID: eventID}); err != nil {
				t.logger.Debug("Failed to answer ping", "error", err)
			}

		default:
			t.logger.Debug("Skipping unknown realtime message", "type", msg.Type)
		}
	}
}

// wsConnection wraps the websocket with write serialization and a closed
// flag so the read loop can tell a user-initiated close from a drop
type wsConnection struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *wsConnection) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close gracefully ends the connection; safe to call more than once
func (c *wsConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
