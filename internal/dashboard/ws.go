package dashboard

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const maxQuestionFrame = 16 << 10

// handleWebSocket answers each text frame as one independent question.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxQuestionFrame)

	// Add client to the list
	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("Advisory WebSocket closed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		exchange := s.advisor.Ask(r.Context(), string(data))
		s.metrics.HTTPRequestsInc("ws_advisory", http.StatusOK)
		if err := conn.WriteJSON(exchange); err != nil {
			log.Error().Err(err).Msg("Failed to send advisory reply")
			return
		}
	}
}
