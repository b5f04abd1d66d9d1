// Package presence tracks live realtime connections and which user each one
// is bound to.
//
// A connection is attached as soon as it is upgraded and becomes registered
// once the client announces its user id. A user maps to at most one
// connection: a later registration replaces the earlier binding. The
// registry is process-local and lost on restart.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/observability"
)

// Outbound presence events.
const (
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
)

// Conn is a live client connection able to receive events.
type Conn interface {
	// ID is unique per connection for the lifetime of the process.
	ID() string
	// Send queues an event for delivery. It returns false when the
	// connection is closed or cannot accept more data.
	Send(event string, payload any) bool
}

// Directory is the slice of the user directory the registry needs.
type Directory interface {
	Lookup(ctx context.Context, userID uint) (*domain.User, error)
	SetOnline(ctx context.Context, userID uint) error
	SetOffline(ctx context.Context, userID uint, at time.Time) error
}

// DeliveryMarker flips pending messages of a freshly registered user to
// delivered.
type DeliveryMarker interface {
	MarkDelivered(ctx context.Context, receiverID uint) (int64, error)
}

type binding struct {
	conn    Conn
	isAdmin bool
}

// Binding is a snapshot entry of the registry.
type Binding struct {
	UserID  uint
	ConnID  string
	IsAdmin bool
}

// Registry maps user ids to live connections.
type Registry struct {
	Directory Directory
	Delivery  DeliveryMarker
	Now       func() time.Time

	mu    sync.RWMutex
	conns map[string]Conn
	users map[uint]binding
}

// NewRegistry returns an empty registry. Either collaborator may be nil.
func NewRegistry(dir Directory, delivery DeliveryMarker) *Registry {
	return &Registry{
		Directory: dir,
		Delivery:  delivery,
		Now:       time.Now,
		conns:     make(map[string]Conn),
		users:     make(map[uint]binding),
	}
}

func (r *Registry) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Registry) updateGauges() {
	observability.ConnectionsActive.Set(float64(len(r.conns)))
	observability.UsersRegistered.Set(float64(len(r.users)))
}

// Attach starts tracking a connection that is not yet bound to a user.
func (r *Registry) Attach(c Conn) {
	r.mu.Lock()
	r.conns[c.ID()] = c
	r.updateGauges()
	r.mu.Unlock()
}

// Detach stops tracking a connection. It does not unregister the user bound
// to it; call Unregister first.
func (r *Registry) Detach(c Conn) {
	r.mu.Lock()
	delete(r.conns, c.ID())
	r.updateGauges()
	r.mu.Unlock()
}

// Register binds userID to conn, replacing any earlier binding, and
// broadcasts user_connected to every attached connection. The user is then
// marked online and their pending messages delivered; failures there are
// logged and do not undo the binding.
func (r *Registry) Register(ctx context.Context, userID uint, conn Conn) {
	isAdmin := false
	if r.Directory != nil {
		u, err := r.Directory.Lookup(ctx, userID)
		switch {
		case err != nil:
			log.Warn().Err(err).Uint("user_id", userID).Msg("presence: role lookup failed")
		case u != nil:
			isAdmin = u.IsAdmin()
		}
	}

	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.users[userID] = binding{conn: conn, isAdmin: isAdmin}
	r.updateGauges()
	r.mu.Unlock()

	r.Broadcast(EventUserConnected, userID)

	if r.Directory != nil {
		if err := r.Directory.SetOnline(ctx, userID); err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("presence: set online failed")
		}
	}
	if r.Delivery != nil {
		n, err := r.Delivery.MarkDelivered(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("presence: mark delivered failed")
		} else if n > 0 {
			log.Debug().Uint("user_id", userID).Int64("messages", n).Msg("presence: marked delivered")
		}
	}
}

// Unregister removes the user bound to conn, if any, broadcasts
// user_disconnected and records the last-seen time. It reports the user id
// that was removed.
func (r *Registry) Unregister(ctx context.Context, conn Conn) (uint, bool) {
	id := conn.ID()
	r.mu.Lock()
	var (
		userID uint
		found  bool
	)
	for uid, b := range r.users {
		if b.conn.ID() == id {
			userID, found = uid, true
			delete(r.users, uid)
			break
		}
	}
	r.updateGauges()
	r.mu.Unlock()

	if !found {
		return 0, false
	}

	r.Broadcast(EventUserDisconnected, userID)

	if r.Directory != nil {
		if err := r.Directory.SetOffline(ctx, userID, r.now()); err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("presence: set offline failed")
		}
	}
	return userID, true
}

// Resolve returns the connection bound to userID.
func (r *Registry) Resolve(userID uint) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.users[userID]
	return b.conn, ok
}

// IsRegistered reports whether userID currently has a live connection.
func (r *Registry) IsRegistered(userID uint) bool {
	_, ok := r.Resolve(userID)
	return ok
}

// IsAdmin reports whether conn is registered to a user holding the admin
// role.
func (r *Registry) IsAdmin(conn Conn) bool {
	id := conn.ID()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.users {
		if b.conn.ID() == id {
			return b.isAdmin
		}
	}
	return false
}

// Admins returns the connections of every registered admin.
func (r *Registry) Admins() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0)
	for _, b := range r.users {
		if b.isAdmin {
			out = append(out, b.conn)
		}
	}
	return out
}

// Send delivers an event to userID if registered. It reports whether a
// connection accepted the event.
func (r *Registry) Send(userID uint, event string, payload any) bool {
	c, ok := r.Resolve(userID)
	if !ok {
		return false
	}
	return c.Send(event, payload)
}

// SendToAdmins delivers an event to every registered admin.
func (r *Registry) SendToAdmins(event string, payload any) {
	for _, c := range r.Admins() {
		c.Send(event, payload)
	}
}

// Broadcast delivers an event to every attached connection, registered or
// not. It iterates a snapshot; connections attached meanwhile may miss it.
func (r *Registry) Broadcast(event string, payload any) {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.Send(event, payload)
	}
}

// Snapshot returns the current bindings ordered by user id.
func (r *Registry) Snapshot() []Binding {
	r.mu.RLock()
	out := make([]Binding, 0, len(r.users))
	for uid, b := range r.users {
		out = append(out, Binding{UserID: uid, ConnID: b.conn.ID(), IsAdmin: b.isAdmin})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Connections returns the number of attached connections.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close forgets every connection and binding and marks the bound users
// offline. Used at shutdown.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	users := make([]uint, 0, len(r.users))
	for uid := range r.users {
		users = append(users, uid)
	}
	r.users = make(map[uint]binding)
	r.conns = make(map[string]Conn)
	r.updateGauges()
	r.mu.Unlock()

	if r.Directory == nil {
		return
	}
	at := r.now()
	for _, uid := range users {
		if err := r.Directory.SetOffline(ctx, uid, at); err != nil {
			log.Warn().Err(err).Uint("user_id", uid).Msg("presence: set offline at shutdown failed")
		}
	}
}
