package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin is accepted: the handshake must carry a bearer token, which browsers cannot
	// attach to a WebSocket handshake, so cookie-riding cross-site requests never authenticate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GenerateWSHandler is the WebSocket variant of GenerateHandler. The client sends one
// PromptSpec frame; the server answers with fragment frames and one terminal frame.
func (h *APIHandler) GenerateWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer func() {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		conn.Close()
	}()

	send := func(ev protocol.StreamEvent) bool {
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug().Err(err).Msg("Failed to write stream event")
			return false
		}
		return true
	}

	var spec core.PromptSpec
	if err := conn.ReadJSON(&spec); err != nil {
		send(protocol.StreamEvent{Type: protocol.EventError, Error: "Invalid request body"})
		return
	}

	// Generate only fails on invalid input; provider failures arrive through the stream.
	stream, err := h.relay.Generate(r.Context(), spec)
	if err != nil {
		send(protocol.StreamEvent{Type: protocol.EventError, Error: err.Error()})
		return
	}

	for {
		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			send(protocol.StreamEvent{Type: protocol.EventDone})
			break
		}
		if err != nil {
			send(protocol.StreamEvent{Type: protocol.EventError, Error: "Failed to generate tweet"})
			break
		}
		if !send(protocol.StreamEvent{Type: protocol.EventFragment, Data: frag}) {
			return
		}
	}
}
