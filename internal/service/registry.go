package service

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/nexochat/hub-api/internal/dto"
	"github.com/nexochat/hub-api/internal/observability"
)

const clientSendBufferSize = 32

// Client is one websocket connection bound to a user. A user may hold any
// number of simultaneous clients.
type Client struct {
	conn   *websocket.Conn
	send   chan dto.Event
	userID string
	closed chan struct{}
	once   sync.Once
	log    zerolog.Logger
}

// NewClient wraps an upgraded websocket connection for a resolved user identity.
func NewClient(conn *websocket.Conn, userID string, logger zerolog.Logger) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan dto.Event, clientSendBufferSize),
		userID: userID,
		closed: make(chan struct{}),
		log:    logger.With().Str("component", "hub_client").Str("user_id", userID).Logger(),
	}
}

// UserID returns the identity the connection is bound to.
func (c *Client) UserID() string { return c.userID }

// Deliver queues an event for the client, dropping it when the send buffer is
// full. Delivery is best-effort with no acknowledgment or retry.
func (c *Client) Deliver(event dto.Event) {
	select {
	case <-c.closed:
	case c.send <- event:
	default:
		observability.HubEventsDropped().WithLabelValues("slow_client").Inc()
		c.log.Warn().Str("event", event.Event).Msg("dropping event for slow client")
	}
}

// WriteLoop pumps queued events onto the wire until the client closes.
func (c *Client) WriteLoop() {
	defer c.Close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.log.Debug().Err(err).Msg("write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// Close shuts the connection down exactly once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// Registry maps user identities to their active connections and rooms to the
// connections joined to them. It is an explicitly owned component constructed
// once per process; all local fan-out goes through it.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
	rooms map[string]map[*Client]struct{}
	// joined tracks each client's rooms so Unregister can clean up.
	joined map[*Client]map[string]struct{}
	log    zerolog.Logger

	onUserOffline func(userID string)
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		users:  make(map[string]map[*Client]struct{}),
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
		log:    logger.With().Str("component", "registry").Logger(),
	}
}

// OnUserOffline installs the callback fired after a user's last connection is
// unregistered. Used for implicit call hangup.
func (r *Registry) OnUserOffline(fn func(userID string)) {
	r.onUserOffline = fn
}

// Register associates a connection with its user. Registering an already
// registered client is a no-op.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.joined[client]; exists {
		return
	}

	if _, exists := r.users[client.userID]; !exists {
		r.users[client.userID] = make(map[*Client]struct{})
	}
	r.users[client.userID][client] = struct{}{}
	r.joined[client] = make(map[string]struct{})

	observability.HubConnections().Inc()
	r.log.Debug().Str("user_id", client.userID).Msg("client registered")
}

// Unregister removes a connection from every map and reports whether it was
// the user's last one.
func (r *Registry) Unregister(client *Client) bool {
	r.mu.Lock()

	rooms, known := r.joined[client]
	if !known {
		r.mu.Unlock()
		return false
	}
	delete(r.joined, client)

	for roomID := range rooms {
		if members, ok := r.rooms[roomID]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}

	last := false
	if conns, ok := r.users[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(r.users, client.userID)
			last = true
		}
	}

	observability.HubConnections().Dec()
	r.log.Debug().Str("user_id", client.userID).Bool("last", last).Msg("client unregistered")
	r.mu.Unlock()

	if last && r.onUserOffline != nil {
		r.onUserOffline(client.userID)
	}

	return last
}

// Join adds the connection to a room's fan-out set. Join performs no
// membership or password verification; that is the caller's responsibility.
// Joining an already joined room is a no-op.
func (r *Registry) Join(client *Client, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, known := r.joined[client]
	if !known {
		return
	}
	if _, already := rooms[roomID]; already {
		return
	}

	if _, exists := r.rooms[roomID]; !exists {
		r.rooms[roomID] = make(map[*Client]struct{})
	}
	r.rooms[roomID][client] = struct{}{}
	rooms[roomID] = struct{}{}

	r.log.Debug().Str("user_id", client.userID).Str("room_id", roomID).Msg("client joined room")
}

// Broadcast delivers an event to every connection joined to the room,
// best-effort.
func (r *Registry) Broadcast(roomID string, event dto.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.rooms[roomID] {
		client.Deliver(event)
	}
}

// SendToUser delivers an event to every connection registered for the user.
// When none are registered the event is silently dropped; there is no offline
// mailbox.
func (r *Registry) SendToUser(userID string, event dto.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	if len(conns) == 0 {
		observability.HubEventsDropped().WithLabelValues("user_absent").Inc()
		return
	}
	for client := range conns {
		client.Deliver(event)
	}
}

// HasUser reports whether the user has at least one registered connection.
func (r *Registry) HasUser(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}
