package websocket

import (
	"sort"
	"time"
)

// Sender delivers one encoded frame to a single transport session. Send must
// not block; a session that cannot accept the frame returns an error.
type Sender interface {
	Send(frame []byte) error
}

// Connection is the registry entry for one live transport session.
type Connection struct {
	ID           string
	UserID       string
	Email        string
	ConnectedAt  time.Time
	RegisteredAt time.Time

	sender Sender
	topics map[Topic]struct{}
}

func (c *Connection) Registered() bool {
	return c.UserID != ""
}

// Topics returns the topics the connection is subscribed to, sorted.
func (c *Connection) Topics() []Topic {
	topics := make([]Topic, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	return topics
}

func (c *Connection) IsSubscribed(t Topic) bool {
	_, ok := c.topics[t]
	return ok
}

func (c *Connection) Send(frame []byte) error {
	return c.sender.Send(frame)
}

// Registry tracks live connections and the optional user identity bound to
// each. It is not safe for concurrent use; the hub goroutine owns it.
type Registry struct {
	conns map[string]*Connection
	users map[string]map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		users: make(map[string]map[string]*Connection),
	}
}

// Add creates the entry for a freshly connected session. Adding an id that is
// already present returns the existing entry.
func (r *Registry) Add(id string, sender Sender, now time.Time) *Connection {
	if conn, ok := r.conns[id]; ok {
		return conn
	}
	conn := &Connection{
		ID:          id,
		ConnectedAt: now,
		sender:      sender,
		topics:      make(map[Topic]struct{}),
	}
	r.conns[id] = conn
	return conn
}

func (r *Registry) Get(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

// Register binds a user identity to the connection, overwriting any previous
// one. It returns the previously bound user id and false when the connection
// is unknown.
func (r *Registry) Register(id, userID, email string, now time.Time) (string, bool) {
	conn, ok := r.conns[id]
	if !ok {
		return "", false
	}

	prev := conn.UserID
	if prev != "" && prev != userID {
		r.unbindUser(prev, id)
	}

	conn.UserID = userID
	conn.Email = email
	conn.RegisteredAt = now

	if r.users[userID] == nil {
		r.users[userID] = make(map[string]*Connection)
	}
	r.users[userID][id] = conn
	return prev, true
}

func (r *Registry) LookupUser(id string) (string, bool) {
	conn, ok := r.conns[id]
	if !ok || !conn.Registered() {
		return "", false
	}
	return conn.UserID, true
}

// Remove drops the connection. Unknown ids are ignored.
func (r *Registry) Remove(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	if conn.Registered() {
		r.unbindUser(conn.UserID, id)
	}
	delete(r.conns, id)
	return conn, true
}

// ConnectionsOf returns every live connection bound to userID.
func (r *Registry) ConnectionsOf(userID string) []*Connection {
	set := r.users[userID]
	conns := make([]*Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Registry) Len() int {
	return len(r.conns)
}

func (r *Registry) RegisteredLen() int {
	n := 0
	for _, set := range r.users {
		n += len(set)
	}
	return n
}

// Snapshot returns all live connections.
func (r *Registry) Snapshot() []*Connection {
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Registry) unbindUser(userID, id string) {
	set, ok := r.users[userID]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.users, userID)
	}
}
