// Package registry tracks live transport connections and the participant and
// room each one is currently bound to.
package registry

import "time"

type Binding struct {
	ParticipantID string
	RoomID        string
}

type conn struct {
	outbox      chan []byte
	open        bool
	binding     *Binding
	connectedAt time.Time
}

// Registry is owned by the hub goroutine and is not safe for concurrent use.
type Registry struct {
	conns map[string]*conn
	now   func() time.Time
}

func New() *Registry {
	return &Registry{conns: make(map[string]*conn), now: time.Now}
}

// Register records a new connection. The registry takes ownership of outbox
// and is the only party that closes it.
func (r *Registry) Register(connID string, outbox chan []byte) {
	if old, ok := r.conns[connID]; ok && old.open {
		close(old.outbox)
	}
	r.conns[connID] = &conn{outbox: outbox, open: true, connectedAt: r.now()}
}

// Bind attaches a participant and room to a registered connection. Unknown
// connections are ignored.
func (r *Registry) Bind(connID, participantID, roomID string) {
	c, ok := r.conns[connID]
	if !ok {
		return
	}
	c.binding = &Binding{ParticipantID: participantID, RoomID: roomID}
}

func (r *Registry) Unbind(connID string) {
	if c, ok := r.conns[connID]; ok {
		c.binding = nil
	}
}

// Resolve reports the binding for a connection. An unbound connection is a
// normal state, not an error.
func (r *Registry) Resolve(connID string) (Binding, bool) {
	c, ok := r.conns[connID]
	if !ok || c.binding == nil {
		return Binding{}, false
	}
	return *c.binding, true
}

func (r *Registry) Known(connID string) bool {
	_, ok := r.conns[connID]
	return ok
}

// Open reports whether messages can still be queued for the connection.
func (r *Registry) Open(connID string) bool {
	c, ok := r.conns[connID]
	return ok && c.open
}

// Unregister forgets the connection and closes its outbox. Safe to call any
// number of times, with or without a prior Bind.
func (r *Registry) Unregister(connID string) bool {
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	r.closeOutbox(c)
	delete(r.conns, connID)
	return true
}

// Send queues payload without blocking. Closed or unknown connections are
// skipped. A full outbox marks the connection as a slow consumer: the outbox
// is closed so the transport hangs up, and the disconnect path cleans up the
// rest.
func (r *Registry) Send(connID string, payload []byte) bool {
	c, ok := r.conns[connID]
	if !ok || !c.open {
		return false
	}
	select {
	case c.outbox <- payload:
		return true
	default:
		r.closeOutbox(c)
		return false
	}
}

// Close closes every outbox, used on shutdown.
func (r *Registry) Close() {
	for _, c := range r.conns {
		r.closeOutbox(c)
	}
}

func (r *Registry) closeOutbox(c *conn) {
	if c.open {
		close(c.outbox)
		c.open = false
	}
}

func (r *Registry) Len() int { return len(r.conns) }

func (r *Registry) BoundCount() int {
	n := 0
	for _, c := range r.conns {
		if c.binding != nil {
			n++
		}
	}
	return n
}
