package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jhon1466/PeerDrop/internal/broker"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// Any origin may connect: room codes are the only admission control.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter wires the broker endpoints.
func NewRouter(hub *broker.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheckHandler)
	r.Get("/ws", ServeWs(hub))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// ServeWs returns an http.HandlerFunc that upgrades the request and attaches
// the connection to hub.
func ServeWs(hub *broker.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("failed to upgrade connection")
			return
		}

		client := broker.NewClient(hub, conn)
		hub.Register(client)

		// The pumps own the connection from here on.
		go client.WritePump()
		go client.ReadPump()
	}
}
