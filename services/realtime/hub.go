package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
)

const (
	defaultQueueSize     = 1024
	defaultSessionBuffer = 64
)

// Event is the wire format of every message pushed to viewers.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// Session is one connected viewer. Encoded events arrive on Events until the session is disconnected.
type Session struct {
	id   uint64
	out  chan []byte
	once sync.Once
}

func (s *Session) ID() uint64 { return s.id }

func (s *Session) Events() <-chan []byte { return s.out }

// Hub owns the connected sessions and the active user counter of this process.
// Publishing never blocks: events are queued and dropped when the queue is full.
type Hub struct {
	logger        core.Logger
	queue         chan Event
	sessionBuffer int

	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   uint64
	active   int
	stopped  bool
}

var _ post.EventSink = (*Hub)(nil)

func NewHub(logger core.Logger, queueSize, sessionBuffer int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if sessionBuffer <= 0 {
		sessionBuffer = defaultSessionBuffer
	}
	return &Hub{
		logger:        logger,
		queue:         make(chan Event, queueSize),
		sessionBuffer: sessionBuffer,
		sessions:      make(map[uint64]*Session),
	}
}

// Start runs the dispatcher. The returned func stops it, delivers what is already queued
// and disconnects every session.
func (h *Hub) Start() func(context.Context) error {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		for {
			select {
			case ev := <-h.queue:
				h.dispatch(ev)
			case <-stopCh:
				for {
					select {
					case ev := <-h.queue:
						h.dispatch(ev)
					default:
						h.closeAll()
						return
					}
				}
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stopCh) })
		select {
		case <-doneCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Connect registers a new session and broadcasts the new active user count.
func (h *Hub) Connect() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sess := &Session{id: h.nextID, out: make(chan []byte, h.sessionBuffer)}
	if h.stopped {
		close(sess.out)
		return sess
	}
	h.sessions[sess.id] = sess
	h.active++
	h.enqueue(Event{Name: post.EventActiveUsers, Data: h.active})
	return sess
}

// Disconnect unregisters sess and broadcasts the new active user count. Calling it twice is a no-op.
func (h *Hub) Disconnect(sess *Session) {
	sess.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if _, ok := h.sessions[sess.id]; !ok {
			return
		}
		delete(h.sessions, sess.id)
		close(sess.out)
		h.active--
		h.enqueue(Event{Name: post.EventActiveUsers, Data: h.active})
	})
}

// ActiveUsers returns the number of connected sessions.
func (h *Hub) ActiveUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

// Publish queues an event for every connected session.
func (h *Hub) Publish(name string, data interface{}) {
	h.enqueue(Event{Name: name, Data: data})
}

func (h *Hub) PostUpdated(p post.Post) {
	h.Publish(post.EventPostUpdated, p)
}

func (h *Hub) PostDeleted(id string) {
	h.Publish(post.EventPostDeleted, post.DeletedPayload{ID: id})
}

func (h *Hub) enqueue(ev Event) {
	select {
	case h.queue <- ev:
	default:
		h.logger.Warn(fmt.Sprintf("realtime queue full, dropping %s event", ev.Name))
	}
}

func (h *Hub) dispatch(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error(fmt.Sprintf("encoding %s event: %v", ev.Name, err), err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sess := range h.sessions {
		select {
		case sess.out <- msg:
		default:
			// slow viewer: it misses this event
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for id, sess := range h.sessions {
		delete(h.sessions, id)
		close(sess.out)
	}
	h.active = 0
}
