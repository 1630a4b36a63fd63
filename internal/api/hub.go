package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"personad/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// browser dashboard connects from a different origin in dev
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans new thoughts out to connected websocket clients. Slow or dead
// clients are dropped rather than blocking the brain.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan storage.Thought
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan storage.Thought)}
}

// BroadcastThought sends a thought to every connected client.
func (h *Hub) BroadcastThought(t storage.Thought) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- t:
		default:
			log.Warn().Str("component", "api").Str("remote", conn.RemoteAddr().String()).Msg("dropping slow websocket client")
			close(ch)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) chan storage.Thought {
	ch := make(chan storage.Thought, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// serveWS upgrades the connection and pumps thoughts until the client
// goes away.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "api").Err(err).Msg("websocket upgrade failed")
		return
	}
	ch := h.add(conn)

	// reader goroutine exists only to notice the close
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for t := range ch {
		if err := conn.WriteJSON(t); err != nil {
			h.remove(conn)
			return
		}
	}
}
