package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Options tunes the websocket transport.
type Options struct {
	// MaxMessageBytes caps one inbound frame. Chunked uploads must fit.
	MaxMessageBytes int64
	// EventRPS and EventBurst configure the per-connection token bucket.
	// EventRPS <= 0 disables limiting.
	EventRPS   float64
	EventBurst int
	// AllowedOrigins restricts the Origin header. Empty or "*" allows any.
	AllowedOrigins []string
}

// Hub upgrades HTTP requests to websocket clients and tracks them for
// shutdown.
type Hub struct {
	Router *Router

	opts     Options
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewHub returns a Hub dispatching to router.
func NewHub(router *Router, opts Options) *Hub {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 1 << 20
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = 1
	}
	h := &Hub{
		Router:  router,
		opts:    opts,
		clients: make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws: upgrade failed")
		return
	}
	c := newClient(h, conn)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.Router.Connect(c.session)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Len returns the number of open clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stats is a point-in-time view of the live side of the relay.
type Stats struct {
	Clients         int `json:"clients"`
	Connections     int `json:"connections"`
	Users           int `json:"users"`
	Admins          int `json:"admins"`
	UploadsInFlight int `json:"uploads_in_flight"`
}

// Stats reports open clients, registry size and pending chunked uploads.
func (h *Hub) Stats() Stats {
	st := Stats{Clients: h.Len()}
	if reg := h.Router.Registry; reg != nil {
		st.Connections = reg.Connections()
		for _, b := range reg.Snapshot() {
			st.Users++
			if b.IsAdmin {
				st.Admins++
			}
		}
	}
	if h.Router.Assembler != nil {
		st.UploadsInFlight = h.Router.Assembler.InFlight()
	}
	return st
}

// Shutdown closes every client and tears down the registry.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.Router.Registry.Close(ctx)
	log.Info().Int("clients", len(clients)).Msg("ws: hub shut down")
}
