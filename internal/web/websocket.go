package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket streams session updates. With ?session_id= only that
// session is sent and the stream ends once it is finished.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	only := r.URL.Query().Get("session_id")

	updates := s.sessions.Subscribe()
	defer s.sessions.Unsubscribe(updates)

	// Send the current state first
	for _, session := range s.sessions.List() {
		if only != "" && session.ID != only {
			continue
		}
		if err := s.send(conn, session); err != nil {
			return
		}
		if only != "" && session.State.Finished() {
			return
		}
	}

	// Detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case session, ok := <-updates:
			if !ok {
				return
			}
			if only != "" && session.ID != only {
				continue
			}
			if err := s.send(conn, session); err != nil {
				s.logger.Debug("Failed to write WebSocket message: %v", err)
				return
			}
			if only != "" && session.State.Finished() {
				return
			}

		case <-ticker.C:
			// Keep the connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, session Session) error {
	data, err := json.Marshal(toResponse(session))
	if err != nil {
		s.logger.Error("Failed to marshal session: %v", err)
		return nil
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
