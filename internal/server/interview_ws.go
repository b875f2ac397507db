package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"resumelift/internal/session"
	"resumelift/internal/types"
)

// interviewFrame is one push to the browser over the interview websocket.
// Messages carries only the transcript entries the client has not seen yet.
type interviewFrame struct {
	ConnectionState  string              `json:"connectionState"`
	Messages         []types.ChatMessage `json:"messages,omitempty"`
	ShowFinishButton bool                `json:"showFinishButton"`
	AwaitingDecision bool                `json:"awaitingDecision"`
	Notices          []Notice            `json:"notices,omitempty"`
}

const (
	framePollInterval = 250 * time.Millisecond
	frameWriteTimeout = 10 * time.Second
	framePingInterval = 30 * time.Second
)

var interviewUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Authentication happens in the middleware chain before the upgrade
		return true
	},
}

// frameCursor tracks what the client has already been sent
type frameCursor struct {
	state            string
	sent             int
	showFinishButton bool
	awaitingDecision bool
}

// nextFrame diffs the session snapshot against the cursor and builds the
// frame to push, if anything changed. A transcript shorter than the cursor
// means a workflow restart swapped in a fresh session manager; the client
// is resynced from the beginning.
func nextFrame(snap session.Session, notices []Notice, cur frameCursor) (interviewFrame, frameCursor, bool) {
	if len(snap.Transcript) < cur.sent {
		cur.sent = 0
	}

	state := snap.ConnectionState.String()
	changed := state != cur.state ||
		len(snap.Transcript) > cur.sent ||
		snap.ShowFinishButton != cur.showFinishButton ||
		snap.AwaitingDecision != cur.awaitingDecision ||
		len(notices) > 0
	if !changed {
		return interviewFrame{}, cur, false
	}

	frame := interviewFrame{
		ConnectionState:  state,
		Messages:         snap.Transcript[cur.sent:],
		ShowFinishButton: snap.ShowFinishButton,
		AwaitingDecision: snap.AwaitingDecision,
		Notices:          notices,
	}
	cur = frameCursor{
		state:            state,
		sent:             len(snap.Transcript),
		showFinishButton: snap.ShowFinishButton,
		awaitingDecision: snap.AwaitingDecision,
	}
	return frame, cur, true
}

// interviewEventsHandler upgrades the request to a websocket and relays
// interview session updates to the browser: new transcript turns, connection
// state changes, and queued notices. Clients that prefer polling can keep
// using GET /api/workflows/{id} instead; whichever consumer is active drains
// the notice queue.
func (s *Server) interviewEventsHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}

	conn, err := interviewUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("Interview websocket upgrade failed",
			"workflow_id", wf.ID,
			"error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.Logger.Debug("Interview websocket close failed", "error", err)
		}
	}()

	s.Logger.Info("Interview websocket opened",
		"workflow_id", wf.ID,
		"client_ip", getClientIP(r))

	// The read pump only services control frames; it signals when the
	// client goes away
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(framePollInterval)
	defer poll.Stop()
	ping := time.NewTicker(framePingInterval)
	defer ping.Stop()

	var cur frameCursor
	for {
		select {
		case <-r.Context().Done():
			return
		case <-clientGone:
			s.Logger.Debug("Interview websocket client disconnected", "workflow_id", wf.ID)
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			snap := wf.Sessions.Current().Snapshot()
			frame, next, send := nextFrame(snap, wf.Notices.Drain(), cur)
			if !send {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				s.Logger.Debug("Interview websocket write failed",
					"workflow_id", wf.ID,
					"error", err)
				return
			}
			cur = next

			if snap.ConnectionState == session.StateCompleted {
				_ = conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interview completed"))
				return
			}
		}
	}
}
