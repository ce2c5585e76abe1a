package api

import (
	"dm-chat/auth"
	"dm-chat/domain"
	"dm-chat/sink"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const maxInboundFrameSize = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// openSession upgrades to a WebSocket and keeps a presence session open for
// as long as the connection lives. Pushes flow one way, server to client;
// the client only answers pings.
func (s *Server) openSession(c *gin.Context) {
	userID, _ := auth.UserIDFrom(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already replied with an HTTP error
		s.log.Info("WebSocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	sessionSink := sink.NewSessionSink(s.settings.ConnectionBufferSize)
	sessionID := s.presence.OpenSession(userID, sessionSink)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(conn, sessionSink, sessionID)
	}()

	s.readPump(conn, sessionID)

	// Peer gone or connection broken: both are a disconnect
	sessionSink.Close()
	s.presence.CloseSession(sessionID)
	<-done
	_ = conn.Close()
}

func (s *Server) readPump(conn *websocket.Conn, sessionID domain.SessionID) {
	conn.SetReadLimit(maxInboundFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.settings.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.settings.PongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Info("WebSocket read failed", "session_id", sessionID, "error", err)
			}
			return
		}
	}
}

// writePump is the only writer of the connection. A failed write closes the
// connection, which ends the read pump and the session.
func (s *Server) writePump(conn *websocket.Conn, sessionSink *sink.SessionSink, sessionID domain.SessionID) {
	// Pings must go out before the peer's read deadline expires
	ticker := time.NewTicker(s.settings.PongWait * 9 / 10)
	defer ticker.Stop()
	fail := func(err error) {
		s.log.Warn("WebSocket write failed", "session_id", sessionID, "error", err)
		sessionSink.Close()
		_ = conn.Close()
	}
	for {
		select {
		case <-sessionSink.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.settings.WriteWait))
			_ = conn.Close()
			return
		case e := <-sessionSink.ConnectedUserEvent:
			frame, ok := toFrame(e)
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.settings.WriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				fail(err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.settings.WriteWait)); err != nil {
				fail(err)
				return
			}
		}
	}
}
