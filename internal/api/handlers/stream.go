package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/api/dto"
	"waste-dispatch-service/internal/services"
)

const (
	streamPingEvery  = 20 * time.Second
	streamWriteLimit = 5 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// StreamHandler pushes an initial snapshot and then every round report of
// one episode over a websocket.
type StreamHandler struct {
	Registry *services.Registry
	Broker   *Broker
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, err := h.Registry.Get(id)
	if err != nil {
		writeServiceError(w, r, "stream episode", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("episode", id).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ch := h.Broker.Subscribe(id)
	defer h.Broker.Unsubscribe(id, ch)

	write := func(msg dto.StreamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteLimit))
		return conn.WriteJSON(msg)
	}

	snap := e.Snapshot()
	if err := write(dto.StreamMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}

	// The client never sends anything useful; reading detects disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case rep := <-ch:
			if err := write(dto.StreamMessage{Type: "round", Round: &rep}); err != nil {
				log.Debug().Err(err).Str("episode", id).Msg("stream write failed")
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(streamWriteLimit)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
