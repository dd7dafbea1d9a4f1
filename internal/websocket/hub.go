package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jogardn/order-console/internal/form"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The console page may be served from another origin in development.
		return true
	},
}

// Hub accepts WebSocket connections and gives each one its own session
// with a fresh pair of form controllers.
type Hub struct {
	transport form.Transport
	publisher form.ActionPublisher
	logger    *logrus.Logger

	sessions   map[*Session]bool
	register   chan *Session
	unregister chan *Session
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewHub(transport form.Transport, logger *logrus.Logger) *Hub {
	return &Hub{
		transport:  transport,
		logger:     logger,
		sessions:   make(map[*Session]bool),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		done:       make(chan struct{}),
	}
}

// SetPublisher journals every completed action of every session.
func (h *Hub) SetPublisher(publisher form.ActionPublisher) {
	h.publisher = publisher
}

// Run serves registrations until ctx is done, then closes every session.
// Connections arriving after that are refused.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case session := <-h.register:
			h.mutex.Lock()
			h.sessions[session] = true
			count := len(h.sessions)
			h.mutex.Unlock()
			h.logger.WithFields(logrus.Fields{
				"session_id":    session.id,
				"session_count": count,
			}).Info("Console session opened")

		case session := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.sessions[session]; ok {
				delete(h.sessions, session)
				session.close()
			}
			count := len(h.sessions)
			h.mutex.Unlock()
			h.logger.WithFields(logrus.Fields{
				"session_id":    session.id,
				"session_count": count,
			}).Info("Console session closed")

		case <-ctx.Done():
			h.mutex.Lock()
			for session := range h.sessions {
				session.close()
				delete(h.sessions, session)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	session := h.newSession(conn)
	select {
	case h.register <- session:
	case <-h.done:
		h.logger.Warn("Console is shutting down, refusing WebSocket session")
		conn.Close()
		return
	}

	go session.writePump()
	session.sendInitialState()
	go session.readPump()
}

func (h *Hub) newSession(conn *websocket.Conn) *Session {
	s := &Session{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan Message, sendBufferSize),
		done:   make(chan struct{}),
		hub:    h,
		logger: h.logger,
		forms:  make(map[string]*form.Controller),
	}

	for _, resource := range []*form.Resource{form.OrderResource(), form.ItemResource()} {
		c := form.NewController(resource, h.transport, h.logger)
		c.SetSessionID(s.id)
		if h.publisher != nil {
			c.SetPublisher(h.publisher)
		}
		name := resource.Name
		c.OnChange(func(m form.Model) {
			s.enqueue(stateMessage(s.id, name, m))
		})
		s.forms[name] = c
	}
	return s
}

func (h *Hub) GetSessionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessions)
}
