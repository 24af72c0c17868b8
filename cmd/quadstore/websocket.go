package main

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ldpstore/quadstore/internal/events"
	"github.com/ldpstore/quadstore/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// newWebSocketHandler upgrades incoming connections and registers them
// with pub for the lifetime of the socket.
func newWebSocketHandler(pub *events.WebSocketPublisher) http.HandlerFunc {
	log := logging.L().WithField("component", "serve")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		unregister := pub.Register(conn)
		defer unregister()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
