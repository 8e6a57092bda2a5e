package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sonlang/son/bridge"
)

// upgrader is shared across connections, mirroring the single
// websocket.Upgrader instance the reference websocket-based example keeps
// at package scope rather than constructing one per request.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const pushDeadline = 10 * time.Second

// handleWebSocket upgrades the connection and streams every transcript
// line produced by the bridge's log: entry point to this client, until
// the client disconnects. This is the "future push notifications" path
// named in §6, implemented rather than left as a stub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("websocket upgrade failed", "tag", "server", "error", err)
		return
	}
	defer conn.Close()

	lines := make(chan string, 64)
	unsubscribe := subscribeTranscript(lines)
	defer unsubscribe()

	s.Log.Debug("websocket client connected", "tag", "server")
	for line := range lines {
		conn.SetWriteDeadline(time.Now().Add(pushDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			s.Log.Debug("websocket client disconnected", "tag", "server", "error", err)
			return
		}
	}
}

func subscribeTranscript(ch chan string) func() {
	return bridge.Subscribe(ch)
}
