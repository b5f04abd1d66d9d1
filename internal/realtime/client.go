package realtime

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-chat-relay/internal/observability"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBufSize  = 256
)

// Client is one websocket connection. It implements presence.Conn.
//
// The read pump decodes frames and hands them to the Router one at a time,
// so events of a connection are handled in arrival order. The write pump
// drains the egress buffer and keeps the peer alive with pings. A client
// whose buffer is full is kicked.
type Client struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	session *Session
	limiter *rate.Limiter
	egress  chan Frame

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		hub:    h,
		egress: make(chan Frame, sendBufSize),
		ctx:    ctx,
		cancel: cancel,
	}
	if h.opts.EventRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(h.opts.EventRPS), h.opts.EventBurst)
	}
	c.session = NewSession(c)
	return c
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Send queues an event without blocking. A full buffer closes the client.
func (c *Client) Send(event string, payload any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.egress <- Frame{Event: event, Data: payload}:
		return true
	default:
		c.session.Logger().Warn().Str("event", event).Msg("ws: egress full, kicking client")
		go c.Close()
		return false
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.egress)
		c.mu.Unlock()
		c.cancel()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Router.Disconnect(context.Background(), c.session)
		c.hub.remove(c)
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.session.Logger().Debug().Err(err).Msg("ws: undecodable frame dropped")
			observability.EventsTotal.WithLabelValues("unknown", observability.OutcomeIgnored).Inc()
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			observability.EventsTotal.WithLabelValues(env.Event, observability.OutcomeLimited).Inc()
			c.Send(EventError, ErrorPayload{Message: "Too many events"})
			continue
		}
		c.hub.Router.Dispatch(c.ctx, c.session, env)
	}
}

func (c *Client) logReadError(err error) {
	l := c.session.Logger()
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		l.Debug().Msg("ws: closed by peer")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		l.Warn().Err(err).Msg("ws: unexpected close")
	default:
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			l.Debug().Msg("ws: pong timeout")
			return
		}
		l.Debug().Err(err).Msg("ws: read error")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				c.session.Logger().Debug().Err(err).Msg("ws: write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}
